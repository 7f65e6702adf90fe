package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/marksearch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id          TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	scope       TEXT NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	errors      TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordSearch(ctx context.Context, rec *model.SearchRecord) error {
	errs, err := prepare(rec)
	if err != nil {
		return err
	}
	var errText sql.NullString
	if errs != nil {
		errText = sql.NullString{String: string(errs), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO searches (id, query, scope, total, errors, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Query, rec.Scope, rec.Total, errText, rec.DurationMs, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert search")
}

func (s *SQLiteStore) ListSearches(ctx context.Context, limit int) ([]model.SearchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, scope, total, errors, duration_ms, created_at FROM searches ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list searches")
	}
	defer func() { _ = rows.Close() }()

	out := []model.SearchRecord{}
	for rows.Next() {
		var (
			rec     model.SearchRecord
			errText sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Scope, &rec.Total, &errText, &rec.DurationMs, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search")
		}
		if rec.Errors, err = decodeErrors([]byte(errText.String)); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list searches iterate")
}
