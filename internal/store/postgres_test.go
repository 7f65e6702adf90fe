package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marksearch/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS searches`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordSearch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := &model.SearchRecord{
		Query:      "kuzu",
		Scope:      model.ScopeAll,
		Total:      3,
		Errors:     []string{"euipo: navigation timeout"},
		DurationMs: 2500,
	}

	mock.ExpectExec(`INSERT INTO searches \(id, query, scope, total, errors, duration_ms, created_at\)`).
		WithArgs(pgxmock.AnyArg(), "kuzu", model.ScopeAll, 3, []byte(`["euipo: navigation timeout"]`), int64(2500), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordSearch(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordSearch_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO searches`).
		WillReturnError(errors.New("connection refused"))

	err := s.RecordSearch(context.Background(), &model.SearchRecord{Query: "x", Scope: "wipo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert search")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSearches(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "query", "scope", "total", "errors", "duration_ms", "created_at"}).
		AddRow("id-2", "acme", "wipo", 0, []byte(`["wipo: captcha challenge detected"]`), int64(900), now).
		AddRow("id-1", "kuzu", "all", 5, []byte(nil), int64(3000), now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT id, query, scope, total, errors, duration_ms, created_at FROM searches ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(defaultListLimit).
		WillReturnRows(rows)

	got, err := s.ListSearches(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "id-2", got[0].ID)
	assert.Equal(t, []string{"wipo: captcha challenge detected"}, got[0].Errors)
	assert.Equal(t, 5, got[1].Total)
	assert.Nil(t, got[1].Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSearches_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, query, scope`).
		WithArgs(50).
		WillReturnError(errors.New("relation \"searches\" does not exist"))

	_, err := s.ListSearches(context.Background(), 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list searches")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectClose()
	assert.NoError(t, s.Close())
}
