package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marksearch/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLite_RecordAndList(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &model.SearchRecord{Query: "kuzu", Scope: model.ScopeAll, Total: 4, DurationMs: 3100, CreatedAt: base}
	require.NoError(t, st.RecordSearch(ctx, first))
	assert.NotEmpty(t, first.ID)

	second := &model.SearchRecord{
		Query:      "acme",
		Scope:      "wipo",
		Errors:     []string{"wipo: captcha challenge detected"},
		DurationMs: 800,
		CreatedAt:  base.Add(time.Minute),
	}
	require.NoError(t, st.RecordSearch(ctx, second))

	got, err := st.ListSearches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, "wipo", got[0].Scope)
	assert.Equal(t, []string{"wipo: captcha challenge detected"}, got[0].Errors)
	assert.True(t, got[0].CreatedAt.Equal(second.CreatedAt))

	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, 4, got[1].Total)
	assert.Equal(t, int64(3100), got[1].DurationMs)
	assert.Nil(t, got[1].Errors)

	limited, err := st.ListSearches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_ListEmpty(t *testing.T) {
	st := newTestSQLite(t)
	got, err := st.ListSearches(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSQLite_CreatedAtDefaults(t *testing.T) {
	st := newTestSQLite(t)
	rec := &model.SearchRecord{Query: "x", Scope: model.ScopeAll}
	before := time.Now().UTC()
	require.NoError(t, st.RecordSearch(context.Background(), rec))
	assert.False(t, rec.CreatedAt.Before(before))
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLite(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), DriverNone, "")
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	require.NotNil(t, st)
	_, err = st.ListSearches(context.Background(), 5)
	assert.NoError(t, err)
	assert.NoError(t, st.Close())

	_, err = Open(context.Background(), "mongo", "")
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, defaultListLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxListLimit, clampLimit(10_000))
}
