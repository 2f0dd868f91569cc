package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "VENDORFLOW"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "VENDORFLOW_APP_ENV"
	EnvPort      = "VENDORFLOW_APP_PORT"
	EnvLogLevel  = "VENDORFLOW_LOG_LEVEL"
	EnvLogFormat = "VENDORFLOW_LOG_FORMAT"

	EnvDBDSN  = "VENDORFLOW_DB_DSN"
	EnvDBHost = "VENDORFLOW_DB_HOST"
	EnvDBPort = "VENDORFLOW_DB_PORT"
	EnvDBUser = "VENDORFLOW_DB_USER"
	EnvDBPass = "VENDORFLOW_DB_PASSWORD"
	EnvDBName = "VENDORFLOW_DB_NAME"

	EnvRedisURL = "VENDORFLOW_REDIS_URL"

	EnvJWTSecret  = "VENDORFLOW_JWT_SECRET"
	EnvJWTIssuer  = "VENDORFLOW_JWT_ISSUER"
	EnvJWTExpMins = "VENDORFLOW_JWT_EXPIRATION_MINUTES"

	EnvWorkflowTxSlots   = "VENDORFLOW_WORKFLOW_TX_SLOTS"
	EnvWorkflowTxMaxWait = "VENDORFLOW_WORKFLOW_TX_MAX_WAIT"
	EnvWorkflowTxTimeout = "VENDORFLOW_WORKFLOW_TX_TIMEOUT"

	EnvGCPProjectID = "VENDORFLOW_GCP_PROJECT_ID"
	EnvGCSBucket    = "VENDORFLOW_GCS_BUCKET_NAME"

	EnvPubSubDomainTopic        = "VENDORFLOW_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationTopic  = "VENDORFLOW_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubDomainSubscription = "VENDORFLOW_PUBSUB_DOMAIN_SUBSCRIPTION"

	EnvCronReminderAfter = "VENDORFLOW_CRON_ASSIGNMENT_REMINDER_AFTER"
)

// legacyDBEnvVars must all be present when no DSN is configured.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
