package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe370-hub/compras-api/internal/coordinator/runlog"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "workflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSaveAndGetLatest(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	started := runlog.NewEntry(ctx, "run-1", runlog.StatusStarted, "", `{"cliente_id":3}`, nil)
	require.NoError(t, repo.Save(ctx, started))

	done := runlog.NewEntry(ctx, "run-1", runlog.StatusStepDone, "Create_Order_Step", "", nil)
	done.UpdatedAt = started.UpdatedAt.Add(time.Millisecond)
	require.NoError(t, repo.Save(ctx, done))

	latest, err := repo.GetLatest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusStepDone, latest.Status)
	assert.Equal(t, "Create_Order_Step", latest.CurrentStep)
	assert.Empty(t, latest.Payload)
	assert.Equal(t, "[]", latest.ErrorMessages)
}

func TestGetLatestPrefersInsertionOrderOnEqualTimestamps(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ts := time.Now().UTC()
	first := runlog.NewEntry(ctx, "run-2", runlog.StatusCompensating, "Create_Item_Step_2", "", []string{"boom"})
	first.UpdatedAt = ts
	second := runlog.NewEntry(ctx, "run-2", runlog.StatusFailed, "Create_Item_Step_2", "", []string{"boom"})
	second.UpdatedAt = ts
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	latest, err := repo.GetLatest(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusFailed, latest.Status)
	assert.Contains(t, latest.ErrorMessages, "boom")
}

func TestGetLatestUnknownRun(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetLatest(context.Background(), "missing")
	assert.ErrorIs(t, err, runlog.ErrRunNotFound)
}
