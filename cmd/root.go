package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mongotable/cmd/completion"
	"mongotable/cmd/export"
	"mongotable/cmd/load"
	"mongotable/cmd/version"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mongotable",
		Short: "Export MongoDB collections as tables",
		Long: `A command-line tool that reads whole MongoDB collections into tables
and writes them as CSV, JSON, YAML or XLSX, or loads them into DynamoDB.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
	root.AddCommand(
		export.ExportCmd,
		load.LoadCmd,
		version.VersionCmd,
		completion.CompletionCmd,
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
