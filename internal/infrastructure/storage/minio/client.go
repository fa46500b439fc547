// Package minio serves s3:// paths from MinIO or any other S3-compatible
// object storage.  Libraries, auxiliary structures and filter outputs can all
// live in buckets.
package minio

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/molfilter/internal/config"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molfilter/pkg/errors"
)

// ObjectAPI is the part of the MinIO client the store needs.  *minio.Object
// cannot be built outside the SDK, so reads go through GetObjectReader.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObjectReader(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// minioAPI adapts *minio.Client to ObjectAPI.
type minioAPI struct {
	*minio.Client
}

func (a minioAPI) GetObjectReader(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	obj, err := a.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Config holds connection parameters.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	// PartSize is the multipart chunk size for uploads of unknown length.
	PartSize uint64
}

// DefaultPartSize is used when Config.PartSize is zero.
const DefaultPartSize = 16 * 1024 * 1024

// ConfigFromS3 converts the storage.s3 configuration section.
func ConfigFromS3(c config.S3Config) Config {
	return Config{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		UseSSL:    c.UseSSL,
		Region:    c.Region,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Region == "" {
		cfg.Region = config.DefaultS3Region
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = DefaultPartSize
	}
}

// splitEndpoint accepts "host:port" or a URL.  An explicit scheme overrides
// UseSSL.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, errors.New(errors.CodeInvalidParam, "malformed storage.s3.endpoint").WithDetailf("endpoint %q", endpoint)
	}
	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	}
	return "", false, errors.New(errors.CodeInvalidParam, "unsupported endpoint scheme").WithDetailf("endpoint %q", endpoint)
}

// Client holds the SDK client and its settings.
type Client struct {
	api    ObjectAPI
	config Config
	logger logging.Logger
}

// NewClient builds a client without contacting the server; connection
// problems surface on first use.  Without static keys the standard
// AWS_/MINIO_ environment variables and ~/.aws/credentials are consulted.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	applyDefaults(&cfg)
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.CodeInvalidParam, "storage.s3.endpoint is not set")
	}
	host, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
		})
	}

	mc, err := minio.New(host, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "failed to create object storage client").
			WithDetailf("endpoint %q", cfg.Endpoint)
	}
	log.Debug("object storage client ready", logging.String("endpoint", host), logging.Bool("ssl", secure))
	return NewClientWithAPI(minioAPI{mc}, cfg, log), nil
}

// NewClientWithAPI wraps an existing ObjectAPI.
func NewClientWithAPI(api ObjectAPI, cfg Config, log logging.Logger) *Client {
	applyDefaults(&cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{api: api, config: cfg, logger: log}
}

// API returns the underlying object API.
func (c *Client) API() ObjectAPI { return c.api }

// isNotFound reports S3 "no such key/bucket" responses.
func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}
