package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Workflow     WorkflowConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Media        MediaConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Workflow.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORFLOW_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"VENDORFLOW_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"VENDORFLOW_LOG_WARN_STACK" default:"false"`

	CORSOrigins    []string `envconfig:"VENDORFLOW_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	// ImportsPerHour caps spreadsheet imports per user; zero disables the limit.
	ImportsPerHour int64    `envconfig:"VENDORFLOW_IMPORTS_PER_HOUR" default:"30"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORFLOW_SERVICE_KIND" default:"api"`
	// MetricsAddr is the listen address for /metrics on the background
	// workers. Empty disables the listener.
	MetricsAddr string `envconfig:"VENDORFLOW_METRICS_ADDR"`
}

type DBConfig struct {
	DSN       string        `envconfig:"VENDORFLOW_DB_DSN"`
	SlowQuery time.Duration `envconfig:"VENDORFLOW_DB_SLOW_QUERY" default:"500ms"`

	LegacyHost     string `envconfig:"VENDORFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"VENDORFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENDORFLOW_DB_USER"`
	LegacyPassword string `envconfig:"VENDORFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENDORFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENDORFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VENDORFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VENDORFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VENDORFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"VENDORFLOW_AUTO_MIGRATE" default:"false"`
	PubSubNotices bool `envconfig:"VENDORFLOW_FEATURE_PUBSUB_NOTIFICATIONS" default:"false"`
}

// WorkflowConfig bounds the vendor confirmation transaction.
type WorkflowConfig struct {
	TxSlots   int64         `envconfig:"VENDORFLOW_WORKFLOW_TX_SLOTS" default:"8"`
	TxMaxWait time.Duration `envconfig:"VENDORFLOW_WORKFLOW_TX_MAX_WAIT" default:"5s"`
	TxTimeout time.Duration `envconfig:"VENDORFLOW_WORKFLOW_TX_TIMEOUT" default:"10s"`
}

func (w WorkflowConfig) validate() error {
	if w.TxSlots <= 0 {
		return fmt.Errorf("%s must be positive", EnvWorkflowTxSlots)
	}
	if w.TxMaxWait <= 0 {
		return fmt.Errorf("%s must be positive", EnvWorkflowTxMaxWait)
	}
	if w.TxTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvWorkflowTxTimeout)
	}
	return nil
}

type GCPConfig struct {
	ProjectID       string `envconfig:"VENDORFLOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"VENDORFLOW_GCP_CREDENTIALS_JSON"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"VENDORFLOW_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"VENDORFLOW_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	ObjectPrefix  string `envconfig:"VENDORFLOW_GCS_OBJECT_PREFIX" default:"uploads"`
}

type MediaConfig struct {
	MaxUploadMB int `envconfig:"VENDORFLOW_MAX_UPLOAD_MB" default:"20"`
}

// MaxUploadBytes returns the configured upload ceiling in bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	if m.MaxUploadMB <= 0 {
		return 20 << 20
	}
	return int64(m.MaxUploadMB) << 20
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"VENDORFLOW_PUBSUB_DOMAIN_TOPIC" required:"true"`
	NotificationTopic  string `envconfig:"VENDORFLOW_PUBSUB_NOTIFICATION_TOPIC" default:"vf-notifications"`
	DomainSubscription string `envconfig:"VENDORFLOW_PUBSUB_DOMAIN_SUBSCRIPTION" default:"vf-domain-notifications"`

	// ProcessedTTL is how long a consumer remembers a handled event id.
	ProcessedTTL time.Duration `envconfig:"VENDORFLOW_PUBSUB_PROCESSED_TTL" default:"168h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDORFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDORFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDORFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval                time.Duration `envconfig:"VENDORFLOW_CRON_INTERVAL" default:"1h"`
	LockTTL                 time.Duration `envconfig:"VENDORFLOW_CRON_LOCK_TTL" default:"50m"`
	JobTimeout              time.Duration `envconfig:"VENDORFLOW_CRON_JOB_TIMEOUT" default:"10m"`
	AssignmentReminderAfter time.Duration `envconfig:"VENDORFLOW_CRON_ASSIGNMENT_REMINDER_AFTER" default:"24h"`
	NotificationRetention   time.Duration `envconfig:"VENDORFLOW_CRON_NOTIFICATION_RETENTION" default:"720h"`
	OutboxRetention         time.Duration `envconfig:"VENDORFLOW_CRON_OUTBOX_RETENTION" default:"336h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
