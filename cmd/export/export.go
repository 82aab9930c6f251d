package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mongotable/internal/common"
	"mongotable/internal/config"
	"mongotable/internal/exporter"
	"mongotable/internal/flags"
	"mongotable/internal/logger"
	"mongotable/internal/metrics"
	"mongotable/internal/output"
	"mongotable/internal/table"
	"mongotable/internal/writers"
)

// ExportCmd represents the export command.
var ExportCmd = &cobra.Command{
	Use:   "export <collection>",
	Short: "Export a MongoDB collection as a table",
	Long: `Read every document of a MongoDB collection and write it as a table.
The _id field is dropped and values equal to "na" become missing cells.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	writer, err := writers.Get(cfg.OutputFormat)
	if err != nil {
		return err
	}
	writerOpts, err := writerOptions(cmd)
	if err != nil {
		return err
	}

	log := NewLogger(cmd, cfg)
	defer func() { _ = log.Sync() }()

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()
	recorder := StartMetrics(ctx, cfg, log)

	start := time.Now()
	database, _ := cmd.Flags().GetString("database")
	tbl, err := ExportCollection(ctx, cfg, args[0], database, log, recorder)
	if err != nil {
		return err
	}

	rows, dest, err := writeTable(writer, tbl, writerOpts, output.Config{
		Path:        cfg.OutputPath,
		Compression: cfg.Compression,
		Stdout:      cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	log.Debug("table written", zap.String("destination", dest), zap.String("format", cfg.OutputFormat))
	printSummary(cmd.ErrOrStderr(), rows, tbl.Width(), args[0], dest, time.Since(start))
	return nil
}

// LoadConfig resolves the configuration from flags, the dotenv file, the environment
// and the config file, in that order of precedence.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	flags.ApplyToConfig(cmd, cfg)
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the command logger writing to the command's stderr.
func NewLogger(cmd *cobra.Command, cfg *config.Config) *zap.Logger {
	return logger.New(logger.Options{Verbose: cfg.Verbose, Output: cmd.ErrOrStderr()})
}

// StartMetrics serves Prometheus metrics until ctx is done when an address is
// configured. It returns nil otherwise.
func StartMetrics(ctx context.Context, cfg *config.Config, log *zap.Logger) *metrics.Metrics {
	if cfg.MetricsAddr == "" {
		return nil
	}
	m := metrics.NewMetrics()
	go func() {
		if err := m.StartMetricsServer(ctx, cfg.MetricsAddr); err != nil {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
	return m
}

// ExportCollection connects to MongoDB, exports collection and disconnects.
// An empty database reads from the configured default database.
func ExportCollection(ctx context.Context, cfg *config.Config, collection, database string, log *zap.Logger, m *metrics.Metrics) (*table.Table, error) {
	opts := []exporter.Option{exporter.WithLogger(log)}
	if m != nil {
		opts = append(opts, exporter.WithMetrics(m))
	}

	exp, err := exporter.New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := exp.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to disconnect from MongoDB", zap.Error(err))
		}
	}()

	return exp.Export(ctx, collection, exporter.WithDatabase(database))
}

// writeTable writes tbl to the destination in outCfg. A file left incomplete by a
// failed write is removed.
func writeTable(writer writers.Writer, tbl *table.Table, opts writers.Options, outCfg output.Config) (int, string, error) {
	out, dest, err := output.CreateWriter(outCfg)
	if err != nil {
		return 0, "", err
	}
	rows, err := writer.Write(out, tbl, opts)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = &common.FileIOError{Op: "close output", Reason: closeErr.Error(), Err: closeErr}
	}
	if err != nil {
		if dest != "-" {
			_ = os.Remove(dest)
		}
		return rows, dest, err
	}
	return rows, dest, nil
}

func writerOptions(cmd *cobra.Command) (writers.Options, error) {
	var opts writers.Options

	delimiter, _ := cmd.Flags().GetString("delimiter")
	if delimiter != "" {
		r, size := utf8.DecodeRuneInString(delimiter)
		if size != len(delimiter) {
			return opts, &common.ConfigError{Op: "parse flags", Reason: "delimiter must be a single character"}
		}
		opts.Delimiter = r
	}
	opts.NoHeader, _ = cmd.Flags().GetBool("no-header")
	opts.SheetName, _ = cmd.Flags().GetString("sheet-name")
	return opts, nil
}

func printSummary(w io.Writer, rows, columns int, collection, dest string, elapsed time.Duration) {
	if dest == "-" {
		dest = "stdout"
	}
	fmt.Fprintf(w, "Exported %s rows x %s columns from %s to %s in %s\n",
		common.FormatNumber(rows), common.FormatNumber(columns), collection, dest, common.FormatDuration(elapsed))
}

func init() {
	flags.AddMongoFlags(ExportCmd)
	flags.AddOutputFlags(ExportCmd)
	flags.AddMetricsFlags(ExportCmd)
}
