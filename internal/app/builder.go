package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/rewrite-sync/internal/cache"
	"github.com/stacklok/rewrite-sync/internal/config"
	"github.com/stacklok/rewrite-sync/internal/filtering"
	"github.com/stacklok/rewrite-sync/internal/git"
	"github.com/stacklok/rewrite-sync/internal/merge"
	"github.com/stacklok/rewrite-sync/internal/pipeline"
	"github.com/stacklok/rewrite-sync/internal/publish"
	"github.com/stacklok/rewrite-sync/internal/sources"
	"github.com/stacklok/rewrite-sync/internal/status"
	"github.com/stacklok/rewrite-sync/internal/telemetry"
	"github.com/stacklok/rewrite-sync/internal/versions"
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects the inputs of NewSyncApp
// It supports dependency injection for testing while providing sensible defaults for production
type syncAppConfig struct {
	config *config.Config

	// Command line switches
	noCommit bool
	noPush   bool

	// Optional component overrides (primarily for testing)
	fetcher   sources.Fetcher
	gitClient git.Client
	telemetry *telemetry.Telemetry
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return cfg, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithNoCommit writes the documents without committing or pushing
func WithNoCommit(noCommit bool) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.noCommit = noCommit
		return nil
	}
}

// WithNoPush commits without pushing
func WithNoPush(noPush bool) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.noPush = noPush
		return nil
	}
}

// WithFetcher allows injecting a custom fetcher (for testing)
func WithFetcher(f sources.Fetcher) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.fetcher = f
		return nil
	}
}

// WithGitClient allows injecting a custom git client (for testing)
func WithGitClient(c git.Client) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.gitClient = c
		return nil
	}
}

// WithTelemetry uses already initialized telemetry instead of creating it
// from the configuration
func WithTelemetry(t *telemetry.Telemetry) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if t == nil {
			return fmt.Errorf("telemetry cannot be nil")
		}
		cfg.telemetry = t
		return nil
	}
}

// NewSyncApp builds the sync pipeline from configuration
func NewSyncApp(ctx context.Context, opts ...SyncAppOptions) (*SyncApp, error) {
	b, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	ownsTelemetry := b.telemetry == nil
	if ownsTelemetry {
		b.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(b.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	runner, err := buildRunner(ctx, b)
	if err != nil {
		if ownsTelemetry {
			_ = b.telemetry.Shutdown(ctx)
		}
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	return &SyncApp{
		config: b.config,
		components: &AppComponents{
			Runner:    runner,
			Telemetry: b.telemetry,
		},
		lockPath: b.config.GetLockFile(),
	}, nil
}

// buildRunner wires fetcher, cache, merger, publisher and status into a runner
func buildRunner(ctx context.Context, b *syncAppConfig) (*pipeline.Runner, error) {
	cfg := b.config
	slog.Info("Initializing sync components")

	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to build source registry: %w", err)
	}
	reg, err = filtering.NewDefaultFilterService().ApplyFilters(ctx, reg, cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to filter sources: %w", err)
	}

	metrics, err := telemetry.NewSyncMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	tracer := b.telemetry.Tracer(telemetry.TracerName)

	if b.fetcher == nil {
		b.fetcher = sources.NewHTTPFetcher(
			sources.WithTimeout(cfg.Fetch.GetTimeout()),
			sources.WithUserAgent(cfg.Fetch.GetUserAgent()),
			sources.WithInsecureCacheable(cfg.Fetch.GetInsecureCacheable()),
			sources.WithMetrics(metrics),
			sources.WithTracer(tracer),
		)
	}

	if b.gitClient == nil {
		b.gitClient = git.NewDefaultGitClient(cfg.GetRepoPath(),
			git.WithAuthor(cfg.Publish.GetAuthorName(), cfg.Publish.GetAuthorEmail()),
			git.WithRemote(cfg.Publish.GetRemote()),
			git.WithAuth(git.AuthFromEnv()),
		)
	}

	publisher := publish.NewGitPublisher(b.gitClient, cfg.OutputPath(), cfg.SummaryPath(),
		publish.WithCommit(cfg.Publish.CommitEnabled() && !b.noCommit),
		publish.WithPush(cfg.Publish.PushEnabled() && !b.noPush),
		publish.WithCommitPrefix(cfg.Publish.GetCommitPrefix()),
		publish.WithTracer(tracer),
	)

	merger := merge.NewMerger(merge.Labels{
		Title:   cfg.Output.GetTitle(),
		Updated: cfg.Output.GetUpdatedLabel(),
		Sources: cfg.Output.GetSourcesLabel(),
	})

	runner, err := pipeline.NewRunner(reg, b.fetcher, cache.NewFileStore(cfg.RulesPath()), merger, publisher,
		pipeline.WithDirectories(cfg.RewritePath(), cfg.RulesPath()),
		pipeline.WithStatusPersistence(status.NewFileStatusPersistence(cfg.StatusPath())),
		pipeline.WithConcurrency(cfg.Fetch.Concurrency),
		pipeline.WithSummaryTitle(cfg.Output.GetTitle()),
		pipeline.WithMetrics(metrics),
		pipeline.WithTracer(tracer),
	)
	if err != nil {
		return nil, err
	}

	slog.Info("Sync components initialized successfully",
		"version", versions.GetVersionInfo().Version,
		"repo", cfg.GetRepoPath(),
		"sources", reg.Len(),
		"commit", cfg.Publish.CommitEnabled() && !b.noCommit,
		"push", cfg.Publish.PushEnabled() && !b.noPush,
	)
	return runner, nil
}
