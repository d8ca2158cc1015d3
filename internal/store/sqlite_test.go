package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(id, query string, started time.Time, inconsistent int) *model.Report {
	final := "corrected"
	r := &model.Report{
		RunID:              id,
		Query:              query,
		StartedAt:          started,
		Backend:            "cortex",
		InitialResponse:    "answer",
		InitialResponseSQL: []string{"SELECT 1"},
		Claims:             []model.Claim{},
		Verifications:      []model.VerificationRecord{},
		Summary: model.Summary{
			Total:        2,
			Consistent:   2 - inconsistent,
			Inconsistent: inconsistent,
		},
	}
	if inconsistent > 0 {
		r.FinalResponse = &final
		r.Summary.Corrected = true
	}
	return r
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := report("run-1", "What was revenue?", time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC), 1)
	require.NoError(t, s.SaveRun(ctx, in))

	out, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, in.Query, out.Query)
	assert.Equal(t, in.InitialResponseSQL, out.InitialResponseSQL)
	require.NotNil(t, out.FinalResponse)
	assert.Equal(t, "corrected", *out.FinalResponse)
	assert.Equal(t, 1, out.Summary.Inconsistent)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	_, err := newStore(t).GetRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	require.NoError(t, s.SaveRun(ctx, report("run-1", "first", started, 0)))
	require.NoError(t, s.SaveRun(ctx, report("run-1", "second", started, 0)))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "second", runs[0].Query)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, report(id, "q-"+id, base.Add(time.Duration(i)*time.Hour), i%2)))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
	assert.True(t, runs[1].Corrected)
	assert.Equal(t, 1, runs[1].Inconsistent)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Hour)))

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_RequiresRunID(t *testing.T) {
	err := newStore(t).SaveRun(context.Background(), &model.Report{Query: "q"})
	assert.Error(t, err)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}
