package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mongotable/internal/common"
)

const (
	// DefaultDatabaseName is the database an exporter binds to when none is configured.
	DefaultDatabaseName = "Proj1"
	DefaultMongoHost    = "localhost"
	DefaultMongoPort    = "27017"
	DefaultFormat       = "csv"
	DefaultCompression  = "none"
	DefaultMaxRetries   = 5

	envPrefix = "MONGOTABLE"
)

// Config holds all configuration for the application.
type Config struct {
	// MongoDB configuration.
	MongoURI      string
	MongoHost     string
	MongoPort     string
	MongoUser     string
	MongoPassword string
	MongoDB       string

	// Output configuration.
	OutputFormat string
	OutputPath   string
	Compression  string

	// DynamoDB configuration.
	DynamoTable    string
	DynamoEndpoint string
	AWSRegion      string

	// Application configuration.
	AutoApprove bool
	MaxRetries  int
	MetricsAddr string
	Verbose     bool

	// EnvFile is the dotenv file read before the environment; empty means ".env".
	EnvFile string

	explicit map[string]bool
}

// Load loads configuration from a dotenv file, environment variables and the config file.
// Values already set (by flags) are kept.
func (c *Config) Load() error {
	envFile := c.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &common.FileIOError{Op: "read env file", Reason: err.Error(), Err: err}
	}

	v := viper.New()

	// Set default values.
	v.SetDefault("mongo_host", DefaultMongoHost)
	v.SetDefault("mongo_port", DefaultMongoPort)
	v.SetDefault("mongo_db", DefaultDatabaseName)
	v.SetDefault("output_format", DefaultFormat)
	v.SetDefault("compression", DefaultCompression)
	v.SetDefault("dynamo_endpoint", "http://localhost:8000")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("max_retries", DefaultMaxRetries)

	// Read from environment variables.
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	// Read from config file if it exists.
	home, err := os.UserHomeDir()
	if err != nil {
		return &common.FileIOError{Op: "get user home dir", Reason: err.Error(), Err: err}
	}
	v.AddConfigPath(filepath.Join(home, ".mongotable"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		// Ignore error if config file doesn't exist, but wrap other errors.
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return &common.FileIOError{Op: "read config file", Reason: err.Error(), Err: err}
		}
	}

	stringKeys := map[string]*string{
		"mongo_uri":       &c.MongoURI,
		"mongo_host":      &c.MongoHost,
		"mongo_port":      &c.MongoPort,
		"mongo_user":      &c.MongoUser,
		"mongo_password":  &c.MongoPassword,
		"mongo_db":        &c.MongoDB,
		"output_format":   &c.OutputFormat,
		"output_path":     &c.OutputPath,
		"compression":     &c.Compression,
		"dynamo_table":    &c.DynamoTable,
		"dynamo_endpoint": &c.DynamoEndpoint,
		"aws_region":      &c.AWSRegion,
		"metrics_addr":    &c.MetricsAddr,
	}
	for key, dst := range stringKeys {
		if !c.explicit[key] && *dst == "" {
			*dst = v.GetString(key)
		}
	}
	if !c.explicit["auto_approve"] && !c.AutoApprove {
		c.AutoApprove = v.GetBool("auto_approve")
	}
	if !c.explicit["verbose"] && !c.Verbose {
		c.Verbose = v.GetBool("verbose")
	}
	if !c.explicit["max_retries"] && c.MaxRetries == 0 {
		c.MaxRetries = v.GetInt("max_retries")
	}

	return nil
}

// MarkExplicit records keys whose current value was set on purpose (by a flag).
// Load leaves them alone even when the value is empty, false or zero.
func (c *Config) MarkExplicit(keys ...string) {
	if c.explicit == nil {
		c.explicit = make(map[string]bool, len(keys))
	}
	for _, key := range keys {
		c.explicit[key] = true
	}
}

// Validate checks if all required fields are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MongoDB) == "" {
		return &common.ConfigError{Op: "validate", Reason: "mongo_db field is required"}
	}
	if c.MongoURI == "" && strings.TrimSpace(c.MongoHost) == "" {
		return &common.ConfigError{Op: "validate", Reason: "mongo_host or mongo_uri is required"}
	}
	if c.MongoURI != "" {
		u, err := url.Parse(c.MongoURI)
		if err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			return &common.ConfigError{Op: "validate", Reason: "mongo_uri must use the mongodb:// or mongodb+srv:// scheme", Err: err}
		}
	}
	if c.MaxRetries < 0 {
		return &common.ConfigError{Op: "validate", Reason: "max_retries must not be negative"}
	}
	if c.Compression != "" && c.Compression != "none" && c.OutputPath == "" {
		return &common.ConfigError{Op: "validate", Reason: "compression requires output_path"}
	}
	return nil
}

// ValidateDynamo checks the fields required to load into DynamoDB.
func (c *Config) ValidateDynamo() error {
	if c.DynamoTable == "" {
		return &common.ConfigError{Op: "validate", Reason: "dynamo_table field is required"}
	}
	if c.AWSRegion == "" {
		return &common.ConfigError{Op: "validate", Reason: "aws_region field is required"}
	}
	if c.MaxRetries <= 0 {
		return &common.ConfigError{Op: "validate", Reason: "max_retries must be greater than 0"}
	}
	return nil
}

func (c *Config) GetMongoURI() string {
	if c.MongoURI != "" {
		return c.MongoURI
	}
	if c.MongoUser != "" && c.MongoPassword != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s",
			url.QueryEscape(c.MongoUser), url.QueryEscape(c.MongoPassword), c.MongoHost, c.MongoPort)
	}
	return fmt.Sprintf("mongodb://%s:%s", c.MongoHost, c.MongoPort)
}

func (c *Config) GetMongoDB() string {
	return c.MongoDB
}

func (c *Config) GetDynamoEndpoint() string {
	return c.DynamoEndpoint
}

func (c *Config) GetDynamoTable() string {
	return c.DynamoTable
}

func (c *Config) GetAWSRegion() string {
	return c.AWSRegion
}

func (c *Config) GetAutoApprove() bool {
	return c.AutoApprove
}

func (c *Config) GetMaxRetries() int {
	return c.MaxRetries
}
