package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	pkgstorage "github.com/angelmondragon/vendorflow-backend/pkg/storage"
)

const pingTimeout = 5 * time.Second

type Client struct {
	client        *storage.Client
	defaultBucket string
	publicBaseURL string
	objectPrefix  string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

var _ pkgstorage.Uploader = (*Client)(nil)

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(gcp.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	}
	sc, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	client := &Client{
		client:        sc,
		defaultBucket: cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		objectPrefix:  strings.Trim(cfg.ObjectPrefix, "/"),
	}

	if err := client.Ping(ctx); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}

	return client, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Ping checks that the default bucket exists and is readable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.client.Bucket(c.defaultBucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %q not accessible: %w", c.defaultBucket, err)
	}
	return nil
}

// Upload writes obj to the default bucket and returns its public URL.
func (c *Client) Upload(ctx context.Context, obj pkgstorage.Object) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("gcs client not initialized")
	}
	if obj.Path == "" {
		return "", errors.New("object path required")
	}
	name := c.objectName(obj.Path)

	w := c.client.Bucket(c.defaultBucket).Object(name).NewWriter(ctx)
	w.ContentType = obj.ContentType
	if len(obj.Metadata) > 0 {
		w.Metadata = obj.Metadata
	}
	if _, err := w.Write(obj.Data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing gcs object: %w", err)
	}
	return c.PublicURL(name), nil
}

func (c *Client) objectName(p string) string {
	p = strings.TrimLeft(p, "/")
	if c.objectPrefix == "" {
		return p
	}
	return c.objectPrefix + "/" + p
}

// PublicURL returns the URL under which an object of the default bucket is served.
func (c *Client) PublicURL(object string) string {
	base := c.publicBaseURL
	if base == "" {
		base = "https://storage.googleapis.com"
	}
	segments := strings.Split(object, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", base, url.PathEscape(c.defaultBucket), strings.Join(segments, "/"))
}
