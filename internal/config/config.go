package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Storage types accepted by StorageConfig.Type.
const (
	StorageMongoDB    = "mongodb"
	StoragePostgreSQL = "postgresql"
	StorageDynamoDB   = "dynamodb"
	StorageMemory     = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Sync      SyncConfig      `yaml:"sync"`
	Twitter   TwitterConfig   `yaml:"twitter"`
	Translate TranslateConfig `yaml:"translate"`
	Retry     RetryConfig     `yaml:"retry"`
	HTTP      HTTPConfig      `yaml:"http"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type string `yaml:"type" env:"STORAGE_TYPE" env-default:"mongodb"`

	MongoDBURI        string `yaml:"mongodb_uri"        env:"MONGODB_URI"        env-default:"mongodb://localhost:27017"`
	MongoDBDatabase   string `yaml:"mongodb_database"   env:"MONGODB_DATABASE"   env-default:"twitterbot"`
	MongoDBCollection string `yaml:"mongodb_collection" env:"MONGODB_COLLECTION" env-default:"sync_records"`

	PostgresURI string `yaml:"postgres_uri" env:"POSTGRES_URI"`

	Region    string `yaml:"region"     env:"AWS_REGION"        env-default:"us-west-2"`
	TableName string `yaml:"table_name" env:"TABLE_NAME"        env-default:"sync_records"`
	Endpoint  string `yaml:"endpoint"   env:"DYNAMODB_ENDPOINT"` // custom endpoint for DynamoDB Local
}

// SyncConfig drives the scheduled pipeline.
type SyncConfig struct {
	AccountID  string        `yaml:"account_id"  env:"SYNC_ACCOUNT_ID"  env-default:"44196397"`
	Interval   time.Duration `yaml:"interval"    env:"SYNC_INTERVAL"    env-default:"5s"`
	SourceLang string        `yaml:"source_lang" env:"SYNC_SOURCE_LANG" env-default:"en"`
	TargetLang string        `yaml:"target_lang" env:"SYNC_TARGET_LANG" env-default:"pt"`
	// FailFast stops a run at the first failed item instead of moving on to the next one.
	FailFast bool `yaml:"fail_fast" env:"SYNC_FAIL_FAST" env-default:"false"`
}

// TwitterConfig holds the upstream platform endpoint and credentials.
type TwitterConfig struct {
	BaseURL           string `yaml:"base_url"            env:"TWITTER_BASE_URL"            env-default:"https://api.twitter.com/2"`
	BearerToken       string `yaml:"bearer_token"        env:"TWITTER_BEARER_TOKEN"`
	APIKey            string `yaml:"api_key"             env:"TWITTER_API_KEY"`
	APIKeySecret      string `yaml:"api_key_secret"      env:"TWITTER_API_KEY_SECRET"`
	AccessToken       string `yaml:"access_token"        env:"TWITTER_ACCESS_TOKEN"`
	AccessTokenSecret string `yaml:"access_token_secret" env:"TWITTER_ACCESS_TOKEN_SECRET"`
}

// TranslateConfig holds the translation API endpoint and credentials.
type TranslateConfig struct {
	BaseURL string `yaml:"base_url" env:"TRANSLATE_BASE_URL" env-default:"https://deep-translate1.p.rapidapi.com"`
	Host    string `yaml:"host"     env:"TRANSLATE_HOST"     env-default:"deep-translate1.p.rapidapi.com"`
	Key     string `yaml:"key"      env:"TRANSLATE_KEY"`
}

// RetryConfig is the resilience policy shared by every outbound call.
type RetryConfig struct {
	MaxRetries           int           `yaml:"max_retries"            env:"RETRY_MAX_RETRIES"            env-default:"1"`
	Timeout              time.Duration `yaml:"timeout"                env:"RETRY_TIMEOUT"                env-default:"15s"`
	FirstAttemptDuration time.Duration `yaml:"first_attempt_duration" env:"RETRY_FIRST_ATTEMPT_DURATION" env-default:"1s"`
	LastAttemptDuration  time.Duration `yaml:"last_attempt_duration"  env:"RETRY_LAST_ATTEMPT_DURATION"  env-default:"5s"`
}

// HTTPConfig tunes the outbound connection pools.
type HTTPConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"HTTP_CONNECT_TIMEOUT" env-default:"10s"`
	ReadTimeout    time.Duration `yaml:"read_timeout"    env:"HTTP_READ_TIMEOUT"    env-default:"10s"`
	MaxConnections int           `yaml:"max_connections" env:"HTTP_MAX_CONNECTIONS" env-default:"500"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Load reads configuration from environment variables with defaults.
// When CONFIG_PATH is set the YAML file is read first and the environment overrides it.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Type {
	case StorageMongoDB:
		if c.Storage.MongoDBURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for mongodb storage"))
		}
	case StoragePostgreSQL:
		if c.Storage.PostgresURI == "" {
			errs = append(errs, errors.New("POSTGRES_URI is required for postgresql storage"))
		}
	case StorageDynamoDB:
		if c.Storage.TableName == "" {
			errs = append(errs, errors.New("TABLE_NAME is required for dynamodb storage"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported storage type: %s", c.Storage.Type))
	}

	if strings.TrimSpace(c.Sync.AccountID) == "" {
		errs = append(errs, errors.New("SYNC_ACCOUNT_ID is required"))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("SYNC_INTERVAL must be positive"))
	}
	if c.Sync.SourceLang == "" || c.Sync.TargetLang == "" {
		errs = append(errs, errors.New("SYNC_SOURCE_LANG and SYNC_TARGET_LANG are required"))
	}

	if c.Twitter.BearerToken == "" {
		errs = append(errs, errors.New("TWITTER_BEARER_TOKEN is required"))
	}
	if c.Twitter.APIKey == "" || c.Twitter.APIKeySecret == "" ||
		c.Twitter.AccessToken == "" || c.Twitter.AccessTokenSecret == "" {
		errs = append(errs, errors.New("TWITTER_API_KEY, TWITTER_API_KEY_SECRET, TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_TOKEN_SECRET are required"))
	}
	if c.Translate.Key == "" {
		errs = append(errs, errors.New("TRANSLATE_KEY is required"))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("RETRY_MAX_RETRIES must not be negative"))
	}
	if c.Retry.Timeout <= 0 {
		errs = append(errs, errors.New("RETRY_TIMEOUT must be positive"))
	}
	if c.Retry.FirstAttemptDuration <= 0 || c.Retry.LastAttemptDuration <= 0 {
		errs = append(errs, errors.New("retry backoff durations must be positive"))
	} else if c.Retry.FirstAttemptDuration > c.Retry.LastAttemptDuration {
		errs = append(errs, errors.New("RETRY_FIRST_ATTEMPT_DURATION must not exceed RETRY_LAST_ATTEMPT_DURATION"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
