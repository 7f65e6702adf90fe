// Package store persists search history.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/marksearch/internal/model"
)

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Store defines the persistence interface for search history.
type Store interface {
	// RecordSearch saves rec, assigning ID and CreatedAt when unset.
	RecordSearch(ctx context.Context, rec *model.SearchRecord) error
	// ListSearches returns the most recent searches, newest first.
	ListSearches(ctx context.Context, limit int) ([]model.SearchRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and migrates it. It returns a nil
// Store when history is disabled.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: none, sqlite, postgres)", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// prepare fills generated fields on rec and encodes its errors.
func prepare(rec *model.SearchRecord) ([]byte, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if len(rec.Errors) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(rec.Errors)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal errors")
	}
	return b, nil
}

func decodeErrors(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var errs []string
	if err := json.Unmarshal(b, &errs); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal errors")
	}
	return errs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
