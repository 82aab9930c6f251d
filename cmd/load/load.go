package load

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"mongotable/cmd/export"
	"mongotable/internal/common"
	"mongotable/internal/flags"
	"mongotable/internal/loader"
	"mongotable/internal/progress"
)

// LoadCmd represents the load command.
var LoadCmd = &cobra.Command{
	Use:   "load <collection>",
	Short: "Export a collection and write its rows to DynamoDB",
	Long: `Export a MongoDB collection as a table and write every row as an item
of a DynamoDB table. Missing cells are left out of the item.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := export.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateDynamo(); err != nil {
		return err
	}

	log := export.NewLogger(cmd, cfg)
	defer func() { _ = log.Sync() }()

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()
	recorder := export.StartMetrics(ctx, cfg, log)

	start := time.Now()
	database, _ := cmd.Flags().GetString("database")
	tbl, err := export.ExportCollection(ctx, cfg, args[0], database, log, recorder)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Found %s rows to load into %s\n", common.FormatNumber(tbl.Len()), cfg.DynamoTable)
	if tbl.Len() == 0 {
		return nil
	}

	if !cfg.AutoApprove {
		if !common.ConfirmWithReader(cmd.InOrStdin(), "Are you sure you want to proceed with the load? (y/N) ") {
			fmt.Fprintln(cmd.ErrOrStderr(), "Load cancelled.")
			return nil
		}
	}

	opts := []loader.Option{loader.WithLogger(log)}
	if recorder != nil {
		opts = append(opts, loader.WithMetrics(recorder))
	}
	tracker := newTracker(cmd, tbl.Len())
	if tracker != nil {
		opts = append(opts, loader.WithProgress(tracker.UpdateProgress))
	}

	l, err := loader.NewDataLoader(ctx, cfg, opts...)
	if err != nil {
		return &common.LoadError{Reason: "failed to create DynamoDB loader", Err: err}
	}

	if tracker != nil {
		tracker.Start(ctx)
	}
	written, err := l.Load(ctx, tbl)
	if tracker != nil {
		tracker.Stop()
	}
	if err != nil {
		log.Error("load failed", zap.Int("written", written), zap.Error(err))
		return &common.LoadError{Reason: fmt.Sprintf("loaded %d of %d rows", written, tbl.Len()), Err: err}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Loaded %s rows into %s in %s\n",
		common.FormatNumber(written), cfg.DynamoTable, common.FormatDuration(time.Since(start)))
	return nil
}

// newTracker returns a progress tracker when stderr is a terminal and progress is enabled.
func newTracker(cmd *cobra.Command, rows int) *progress.Tracker {
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); noProgress {
		return nil
	}
	f, ok := cmd.ErrOrStderr().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return progress.NewProgressTracker(f, int64(rows), progress.DefaultUpdateInterval)
}

func init() {
	flags.AddMongoFlags(LoadCmd)
	flags.AddDynamoFlags(LoadCmd)
	flags.AddAutoApproveFlag(LoadCmd)
	flags.AddNoProgressFlag(LoadCmd)
	flags.AddMetricsFlags(LoadCmd)
}
