package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/rewrite-sync/internal/config"
	gitmocks "github.com/stacklok/rewrite-sync/internal/git/mocks"
	"github.com/stacklok/rewrite-sync/internal/registry"
	"github.com/stacklok/rewrite-sync/internal/sources"
	sourcesmocks "github.com/stacklok/rewrite-sync/internal/sources/mocks"
	"github.com/stacklok/rewrite-sync/internal/telemetry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	stateDir := t.TempDir()
	return &config.Config{
		RepoPath: t.TempDir(),
		StateDir: stateDir,
		LockFile: filepath.Join(stateDir, "run.lock"),
		Sources: []config.SourceConfig{
			{Name: "adultraplus", URL: "https://rules.example/adultraplus", Class: string(registry.ClassCacheable)},
			{Name: "wechatad", URL: "https://rules.example/wechatad", Class: string(registry.ClassDirect)},
		},
	}
}

func newFetcher(ctrl *gomock.Controller) *sourcesmocks.MockFetcher {
	fetcher := sourcesmocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, src registry.SourceDescriptor) sources.FetchResult {
			return sources.FetchResult{Source: src, Content: []byte("# " + src.Name + "\n")}
		}).AnyTimes()
	return fetcher
}

func TestBaseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []SyncAppOptions
		wantErr string
	}{
		{
			name:    "missing config",
			opts:    nil,
			wantErr: "config cannot be nil",
		},
		{
			name:    "nil telemetry",
			opts:    []SyncAppOptions{WithConfig(&config.Config{}), WithTelemetry(nil)},
			wantErr: "telemetry cannot be nil",
		},
		{
			name: "switches",
			opts: []SyncAppOptions{WithConfig(&config.Config{}), WithNoCommit(true), WithNoPush(true)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := baseConfig(tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.noCommit)
			assert.True(t, cfg.noPush)
		})
	}
}

func TestNewSyncApp_InvalidSources(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Sources = append(cfg.Sources, config.SourceConfig{Name: "bad", URL: "https://rules.example/bad", Class: "sometimes"})

	_, err := NewSyncApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build source registry")
}

func TestSyncApp_Run(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []SyncAppOptions
		wantCommit bool
		wantPush   bool
	}{
		{name: "commit and push", wantCommit: true, wantPush: true},
		{name: "no push", opts: []SyncAppOptions{WithNoPush(true)}, wantCommit: true},
		{name: "no commit", opts: []SyncAppOptions{WithNoCommit(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			cfg := testConfig(t)

			client := gitmocks.NewMockClient(ctrl)
			if tt.wantCommit {
				client.EXPECT().CommitAll(gomock.Any(), gomock.Any()).Return(nil)
			}
			if tt.wantPush {
				client.EXPECT().Push(gomock.Any()).Return(nil)
			}

			opts := append([]SyncAppOptions{
				WithConfig(cfg),
				WithFetcher(newFetcher(ctrl)),
				WithGitClient(client),
			}, tt.opts...)

			ctx := context.Background()
			app, err := NewSyncApp(ctx, opts...)
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, app.Close(ctx)) })
			assert.Same(t, cfg, app.GetConfig())

			report, err := app.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"adultraplus", "wechatad"}, report.Sections)

			output, err := os.ReadFile(cfg.OutputPath())
			require.NoError(t, err)
			assert.Contains(t, string(output), "# adultraplus\n")

			cached, err := os.ReadFile(filepath.Join(cfg.RulesPath(), "adultraplus.conf"))
			require.NoError(t, err)
			assert.Equal(t, "# adultraplus\n", string(cached))
		})
	}
}

func TestSyncApp_RunFiltersSources(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := testConfig(t)
	cfg.Filter = &config.FilterConfig{Classes: &config.ClassFilterConfig{Exclude: []string{"direct"}}}

	fetcher := sourcesmocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, src registry.SourceDescriptor) sources.FetchResult {
			assert.Equal(t, "adultraplus", src.Name)
			return sources.FetchResult{Source: src, Content: []byte("# adultraplus\n")}
		}).Times(1)

	ctx := context.Background()
	app, err := NewSyncApp(ctx, WithConfig(cfg), WithFetcher(fetcher), WithNoCommit(true))
	require.NoError(t, err)

	report, err := app.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"adultraplus"}, report.Sections)
}

func TestNewSyncApp_FilterExcludesAll(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Filter = &config.FilterConfig{Names: &config.NameFilterConfig{Include: []string{"nothing-*"}}}

	_, err := NewSyncApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to filter sources")
}

func TestSyncApp_RunLockHeld(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := testConfig(t)

	// Neither the fetcher nor git may be touched
	fetcher := sourcesmocks.NewMockFetcher(ctrl)
	client := gitmocks.NewMockClient(ctrl)

	ctx := context.Background()
	app, err := NewSyncApp(ctx, WithConfig(cfg), WithFetcher(fetcher), WithGitClient(client))
	require.NoError(t, err)

	lock := flock.New(cfg.GetLockFile())
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = lock.Unlock() })

	report, err := app.Run(ctx)
	require.ErrorIs(t, err, ErrRunInProgress)
	assert.Nil(t, report)
}

func TestSyncApp_RunReleasesLock(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := testConfig(t)

	client := gitmocks.NewMockClient(ctrl)
	client.EXPECT().CommitAll(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	client.EXPECT().Push(gomock.Any()).Return(nil).Times(2)

	ctx := context.Background()
	app, err := NewSyncApp(ctx, WithConfig(cfg), WithFetcher(newFetcher(ctrl)), WithGitClient(client))
	require.NoError(t, err)

	_, err = app.Run(ctx)
	require.NoError(t, err)
	_, err = app.Run(ctx)
	require.NoError(t, err)
}

func TestSyncApp_InjectedTelemetryIsClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tel, err := telemetry.New(ctx)
	require.NoError(t, err)

	app, err := NewSyncApp(ctx, WithConfig(testConfig(t)), WithTelemetry(tel))
	require.NoError(t, err)
	assert.Same(t, tel, app.components.Telemetry)
	assert.NoError(t, app.Close(ctx))
}
