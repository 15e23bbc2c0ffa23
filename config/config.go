package config

import "time"

// Config is the complete configuration of a pipeline run.
type Config struct {
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	Fetch      FetchConfig      `yaml:"fetch" envconfig:"FETCH"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	Catalog    CatalogConfig    `yaml:"catalog" envconfig:"CATALOG"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
}

// StorageConfig configures both storage backends. The cloud options are only consulted when a run
// targets cloud storage.
type StorageConfig struct {
	LocalRootPath string `yaml:"local_root_path" envconfig:"LOCAL_ROOT_PATH" validate:"required"`
	Partitioning  string `yaml:"partitioning" envconfig:"PARTITIONING" validate:"oneof=run daily"`

	BucketName        string `yaml:"bucket_name" envconfig:"BUCKET_NAME"`
	Driver            string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=s3 gcs"`
	CredentialsSource string `yaml:"credentials_source" envconfig:"CREDENTIALS_SOURCE" validate:"oneof=env static file adc"`
	Endpoint          string `yaml:"endpoint" envconfig:"ENDPOINT"`
	Region            string `yaml:"region" envconfig:"REGION"`
	Insecure          bool   `yaml:"insecure" envconfig:"INSECURE"`
	AccessKeyID       string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey   string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	CredentialsFile   string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	URIScheme         string `yaml:"uri_scheme" envconfig:"URI_SCHEME" validate:"oneof=gs s3 s3a"`
}

// FetchConfig selects and tunes the market data provider.
type FetchConfig struct {
	Provider      string        `yaml:"provider" envconfig:"PROVIDER" validate:"oneof=yahoo polygon"`
	Workers       int           `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=32"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"min=0"`
	PolygonAPIKey string        `yaml:"polygon_api_key" envconfig:"POLYGON_API_KEY"`
}

// ProcessingConfig tunes local analysis.
type ProcessingConfig struct {
	OutputDir     string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	RollingWindow int    `yaml:"rolling_window" envconfig:"ROLLING_WINDOW" validate:"min=2"`
}

// CatalogConfig enables the Postgres partition catalog when DatabaseURL is set.
type CatalogConfig struct {
	DatabaseURL string `yaml:"database_url" envconfig:"DATABASE_URL"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
}
