package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	syncapp "github.com/stacklok/rewrite-sync/internal/app"
)

// telemetryShutdownTimeout bounds flushing of traces and metrics at exit
const telemetryShutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch all sources, merge them and publish the result",
		Long: `Run one synchronization:

- fetch every source concurrently
- store successful downloads of cacheable sources in the rules directory
- merge cached and freshly fetched sources in registry order
- write the merged document and the summary into the repository
- commit and push the changes

A source that fails only loses its section; cacheable sources fall back to
their last stored snapshot. The command fails when publishing fails.`,
		RunE: runSync,
	}

	runCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	runCmd.Flags().Bool("no-commit", false, "Write the documents without committing or pushing")
	runCmd.Flags().Bool("no-push", false, "Commit without pushing")

	return runCmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	noCommit, err := cmd.Flags().GetBool("no-commit")
	if err != nil {
		return fmt.Errorf("failed to get no-commit flag: %w", err)
	}
	noPush, err := cmd.Flags().GetBool("no-push")
	if err != nil {
		return fmt.Errorf("failed to get no-push flag: %w", err)
	}

	app, err := syncapp.NewSyncApp(ctx,
		syncapp.WithConfig(cfg),
		syncapp.WithNoCommit(noCommit),
		syncapp.WithNoPush(noPush),
	)
	if err != nil {
		return fmt.Errorf("failed to build sync application: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
		defer cancel()
		if err := app.Close(shutdownCtx); err != nil {
			slog.Error("Failed to close sync application", "error", err)
		}
	}()

	report, err := app.Run(ctx)
	if err != nil {
		if report == nil {
			return err
		}
		return fmt.Errorf("sync run %s failed: %w", report.RunID, err)
	}

	for _, o := range report.Failed() {
		slog.Warn("Source failed in this run", "source", o.Name, "class", o.Class, "error", o.Err())
	}
	return nil
}
