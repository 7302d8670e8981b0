package status

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileStatusPersistence_SaveAndLoad(t *testing.T) {
	t.Parallel()

	// Status file lives in a state directory that does not exist yet
	statusPath := filepath.Join(t.TempDir(), ".rewrite-sync", StatusFileName)

	persistence := NewFileStatusPersistence(statusPath)
	require.NotNil(t, persistence)

	now := time.Now().UTC().Truncate(time.Second)
	testStatuses := map[string]*SourceStatus{
		"youtube": {
			Phase:       PhaseSucceeded,
			LastAttempt: &now,
			LastSuccess: &now,
			Bytes:       1024,
		},
		"wechatad": {
			Phase:       PhaseFailed,
			Message:     "fetch wechatad failed: HTTP 500",
			LastAttempt: &now,
		},
	}

	ctx := context.Background()
	err := persistence.Save(ctx, testStatuses)
	require.NoError(t, err)

	// Verify file was created
	_, err = os.Stat(statusPath)
	require.NoError(t, err)

	loaded, err := persistence.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, PhaseSucceeded, loaded["youtube"].Phase)
	require.Equal(t, 1024, loaded["youtube"].Bytes)
	require.True(t, now.Equal(*loaded["youtube"].LastSuccess))
	require.Equal(t, PhaseFailed, loaded["wechatad"].Phase)
	require.Equal(t, "fetch wechatad failed: HTTP 500", loaded["wechatad"].Message)
	require.Nil(t, loaded["wechatad"].LastSuccess)
}

func TestFileStatusPersistence_LoadNonExistent(t *testing.T) {
	t.Parallel()

	persistence := NewFileStatusPersistence(filepath.Join(t.TempDir(), "missing", StatusFileName))

	// Load non-existent status should return empty map
	loaded, err := persistence.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Empty(t, loaded)
}

func TestFileStatusPersistence_Overwrite(t *testing.T) {
	t.Parallel()

	statusPath := filepath.Join(t.TempDir(), StatusFileName)
	persistence := NewFileStatusPersistence(statusPath)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, persistence.Save(ctx, map[string]*SourceStatus{
		"youtube":  {Phase: PhaseSucceeded, LastAttempt: &now},
		"wechatad": {Phase: PhaseFailed, LastAttempt: &now},
	}))
	require.NoError(t, persistence.Save(ctx, map[string]*SourceStatus{
		"youtube": {Phase: PhaseFailed, Message: "timeout", LastAttempt: &now},
	}))

	loaded, err := persistence.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, PhaseFailed, loaded["youtube"].Phase)
	require.Equal(t, "timeout", loaded["youtube"].Message)

	// Verify no temporary files were left behind
	entries, err := os.ReadDir(filepath.Dir(statusPath))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStatusPersistence_SaveNil(t *testing.T) {
	t.Parallel()

	persistence := NewFileStatusPersistence(filepath.Join(t.TempDir(), StatusFileName))
	ctx := context.Background()

	require.NoError(t, persistence.Save(ctx, nil))
	loaded, err := persistence.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestFileStatusPersistence_LoadInvalid(t *testing.T) {
	t.Parallel()

	statusPath := filepath.Join(t.TempDir(), StatusFileName)
	require.NoError(t, os.WriteFile(statusPath, []byte("{invalid json}"), 0600))

	_, err := NewFileStatusPersistence(statusPath).Load(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to unmarshal status data")
}

func TestRecord(t *testing.T) {
	t.Parallel()

	first := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		got := Record(nil, first, 42, nil)
		require.Equal(t, PhaseSucceeded, got.Phase)
		require.Equal(t, first, *got.LastAttempt)
		require.Equal(t, first, *got.LastSuccess)
		require.Equal(t, 42, got.Bytes)
		require.Empty(t, got.Message)
	})

	t.Run("failure carries forward last success", func(t *testing.T) {
		t.Parallel()
		prev := Record(nil, first, 42, nil)
		got := Record(prev, second, 0, errors.New("fetch youtube failed: HTTP 503"))
		require.Equal(t, PhaseFailed, got.Phase)
		require.Equal(t, second, *got.LastAttempt)
		require.Equal(t, first, *got.LastSuccess)
		require.Equal(t, 42, got.Bytes)
		require.Equal(t, "fetch youtube failed: HTTP 503", got.Message)
	})

	t.Run("failure without history", func(t *testing.T) {
		t.Parallel()
		got := Record(nil, second, 0, errors.New("boom"))
		require.Equal(t, PhaseFailed, got.Phase)
		require.Nil(t, got.LastSuccess)
		require.Zero(t, got.Bytes)
	})

	t.Run("success after failure", func(t *testing.T) {
		t.Parallel()
		prev := Record(Record(nil, first, 42, nil), second, 0, errors.New("boom"))
		third := second.Add(time.Hour)
		got := Record(prev, third, 7, nil)
		require.Equal(t, PhaseSucceeded, got.Phase)
		require.Equal(t, third, *got.LastSuccess)
		require.Equal(t, 7, got.Bytes)
	})
}
