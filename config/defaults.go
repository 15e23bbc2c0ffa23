package config

import (
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultLocalRootPath = "stock_data_lake"
	DefaultPartitioning  = "run"
	DefaultDriver        = "gcs"
	DefaultS3Endpoint    = "storage.googleapis.com"
	DefaultRegion        = "auto"
	DefaultFetchProvider = "yahoo"
	DefaultFetchWorkers  = 4
	DefaultFetchTimeout  = 30 * time.Second
	DefaultOutputDir     = "reports"
	DefaultRollingWindow = 20
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"

	// PlaceholderBucketName is the bucket shipped in example configs; runs refuse to use it.
	PlaceholderBucketName = "your-gcs-bucket-name"
)

func (c *Config) applyDefaults() {
	// Storage defaults
	if c.Storage.LocalRootPath == "" {
		c.Storage.LocalRootPath = DefaultLocalRootPath
	}
	if c.Storage.Partitioning == "" {
		c.Storage.Partitioning = DefaultPartitioning
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultDriver
	}
	if c.Storage.Driver == "s3" {
		if c.Storage.Endpoint == "" {
			c.Storage.Endpoint = DefaultS3Endpoint
		}
		if c.Storage.Region == "" {
			c.Storage.Region = DefaultRegion
		}
		if c.Storage.CredentialsSource == "" {
			c.Storage.CredentialsSource = "env"
		}
	}
	if c.Storage.CredentialsSource == "" {
		c.Storage.CredentialsSource = "adc"
	}
	if c.Storage.URIScheme == "" {
		c.Storage.URIScheme = c.defaultURIScheme()
	}

	// Fetch defaults
	if c.Fetch.Provider == "" {
		c.Fetch.Provider = DefaultFetchProvider
	}
	if c.Fetch.Workers == 0 {
		c.Fetch.Workers = DefaultFetchWorkers
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}

	// Processing defaults
	if c.Processing.OutputDir == "" {
		c.Processing.OutputDir = DefaultOutputDir
	}
	if c.Processing.RollingWindow == 0 {
		c.Processing.RollingWindow = DefaultRollingWindow
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// defaultURIScheme names objects the way Spark addresses them: gs:// for Google Cloud Storage,
// including the S3 interoperability endpoint, and s3a:// for other S3-compatible stores.
func (c *Config) defaultURIScheme() string {
	if c.Storage.Driver == "gcs" || strings.HasSuffix(c.Storage.Endpoint, "googleapis.com") {
		return "gs"
	}
	return "s3a"
}
