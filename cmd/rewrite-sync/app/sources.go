package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/rewrite-sync/internal/cache"
	"github.com/stacklok/rewrite-sync/internal/config"
	"github.com/stacklok/rewrite-sync/internal/filtering"
	"github.com/stacklok/rewrite-sync/internal/status"
)

const none = "-"

func newSourcesCmd() *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources with cache and status information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return printSources(cmd.Context(), cmd.OutOrStdout(), cfg, time.Now())
		},
	}
	sourcesCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	return sourcesCmd
}

// printSources renders one row per source a run would fetch: class, URL,
// the cached snapshot and the outcome of the last run
func printSources(ctx context.Context, w io.Writer, cfg *config.Config, now time.Time) error {
	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to build source registry: %w", err)
	}
	reg, err = filtering.NewDefaultFilterService().ApplyFilters(ctx, reg, cfg.Filter)
	if err != nil {
		return fmt.Errorf("failed to filter sources: %w", err)
	}

	entries, err := cache.NewFileStore(cfg.RulesPath()).List(ctx)
	if err != nil {
		return err
	}
	cached := make(map[string]cache.Entry, len(entries))
	for _, e := range entries {
		cached[e.Name] = e
	}

	statuses, err := status.NewFileStatusPersistence(cfg.StatusPath()).Load(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Class", "URL", "Cached", "Cache Age", "Status", "Last Success")

	for _, src := range reg.Ordered() {
		size, age := none, none
		if e, ok := cached[src.Name]; ok && src.Cacheable() {
			size = humanize.Bytes(uint64(e.Size)) //nolint:gosec // file sizes are never negative
			age = humanize.RelTime(e.ModTime, now, "ago", "from now")
		}

		phase, lastSuccess := none, none
		if st, ok := statuses[src.Name]; ok && st != nil {
			phase = string(st.Phase)
			if st.LastSuccess != nil {
				lastSuccess = humanize.RelTime(*st.LastSuccess, now, "ago", "from now")
			}
		}

		if err := table.Append([]string{
			src.Name, string(src.Class), src.URL, size, age, phase, lastSuccess,
		}); err != nil {
			return fmt.Errorf("failed to add table row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
