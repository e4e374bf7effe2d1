package filestore

import "github.com/koustreak/dbjoin/internal/errs"

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings needed to reach the bucket that stores
// schema snapshots.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string

	AccessKey string
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string

	// Bucket is used for snapshot locations that omit one ("s3:///key").
	Bucket string
}

// DefaultConfig returns a local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// Enabled reports whether an object store has been configured at all.
func (c *Config) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

// Validate checks the settings a driver needs before dialing.
func (c *Config) Validate() error {
	if c == nil || c.Endpoint == "" {
		return errs.New(errs.ErrKindInvalidInput, "filestore endpoint is required")
	}
	switch c.Provider {
	case "", ProviderMinIO:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported filestore provider %q", c.Provider)
	}
	return nil
}
