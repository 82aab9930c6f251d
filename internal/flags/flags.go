package flags

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mongotable/internal/config"
	"mongotable/internal/output"
	"mongotable/internal/writers"
)

// AddMongoFlags adds MongoDB-related flags to the command.
func AddMongoFlags(cmd *cobra.Command) {
	cmd.Flags().String("mongo-uri", "", "MongoDB connection URI (overrides host, port, user and password).")
	cmd.Flags().String("mongo-host", config.DefaultMongoHost, "MongoDB host.")
	cmd.Flags().String("mongo-port", config.DefaultMongoPort, "MongoDB port.")
	cmd.Flags().String("mongo-user", "", "MongoDB username.")
	cmd.Flags().String("mongo-password", "", "MongoDB password.")
	cmd.Flags().String("mongo-db", config.DefaultDatabaseName, "Default MongoDB database.")
	cmd.Flags().String("database", "", "Read the collection from this database instead of the default one.")
}

// AddOutputFlags adds table output flags to the command.
func AddOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", config.DefaultFormat, "Output format, one of "+join(writers.List())+".")
	cmd.Flags().StringP("output", "o", "", "Output file; empty or - writes to stdout.")
	cmd.Flags().String("compression", config.DefaultCompression, "Output compression, one of "+join(output.Compressions())+".")
	cmd.Flags().String("delimiter", ",", "CSV field delimiter.")
	cmd.Flags().Bool("no-header", false, "Omit the CSV header row.")
	cmd.Flags().String("sheet-name", "", "Base name of XLSX sheets.")
}

// AddDynamoFlags adds DynamoDB-related flags to the command.
func AddDynamoFlags(cmd *cobra.Command) {
	cmd.Flags().String("dynamo-endpoint", "http://localhost:8000", "DynamoDB endpoint.")
	cmd.Flags().String("dynamo-table", "", "DynamoDB table name.")
	cmd.Flags().String("aws-region", "us-east-1", "AWS region.")
	cmd.Flags().Int("max-retries", config.DefaultMaxRetries, "Maximum number of retries for DynamoDB batch write.")
}

// AddAutoApproveFlag adds the auto-approve flag to the command.
func AddAutoApproveFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("auto-approve", false, "Skip the confirmation prompt.")
}

// AddNoProgressFlag adds the no-progress flag to the command.
func AddNoProgressFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-progress", false, "Disable the progress line.")
}

// AddMetricsFlags adds metrics-related flags to the command.
func AddMetricsFlags(cmd *cobra.Command) {
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :2112).")
}

// ApplyToConfig copies the flags the user set explicitly into cfg. Flags left at
// their defaults do not override environment or config file values.
func ApplyToConfig(cmd *cobra.Command, cfg *config.Config) {
	stringFlags := map[string]struct {
		key string
		dst *string
	}{
		"mongo-uri":       {"mongo_uri", &cfg.MongoURI},
		"mongo-host":      {"mongo_host", &cfg.MongoHost},
		"mongo-port":      {"mongo_port", &cfg.MongoPort},
		"mongo-user":      {"mongo_user", &cfg.MongoUser},
		"mongo-password":  {"mongo_password", &cfg.MongoPassword},
		"mongo-db":        {"mongo_db", &cfg.MongoDB},
		"format":          {"output_format", &cfg.OutputFormat},
		"output":          {"output_path", &cfg.OutputPath},
		"compression":     {"compression", &cfg.Compression},
		"dynamo-endpoint": {"dynamo_endpoint", &cfg.DynamoEndpoint},
		"dynamo-table":    {"dynamo_table", &cfg.DynamoTable},
		"aws-region":      {"aws_region", &cfg.AWSRegion},
		"metrics-addr":    {"metrics_addr", &cfg.MetricsAddr},
	}
	boolFlags := map[string]struct {
		key string
		dst *bool
	}{
		"auto-approve": {"auto_approve", &cfg.AutoApprove},
		"verbose":      {"verbose", &cfg.Verbose},
	}

	fs := cmd.Flags()
	for name, f := range stringFlags {
		if changed(fs, name) {
			*f.dst, _ = fs.GetString(name)
			cfg.MarkExplicit(f.key)
		}
	}
	for name, f := range boolFlags {
		if changed(fs, name) {
			*f.dst, _ = fs.GetBool(name)
			cfg.MarkExplicit(f.key)
		}
	}
	if changed(fs, "max-retries") {
		cfg.MaxRetries, _ = fs.GetInt("max-retries")
		cfg.MarkExplicit("max_retries")
	}
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

func join(values []string) string {
	return strings.Join(values, ", ")
}
