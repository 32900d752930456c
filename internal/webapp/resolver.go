package webapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrCodeNotFound indicates the externally visible app code has no site
// record.
var ErrCodeNotFound = errors.New("webapp: app code not found")

// Resolver maps the externally visible alphanumeric app code to the
// internal app id. All session-store keys are namespaced by internal id, so
// resolution happens before any store access.
type Resolver interface {
	AppIDByCode(ctx context.Context, code string) (string, error)
}

// PGResolver resolves codes against the sites lookup table.
type PGResolver struct {
	db *sql.DB
}

var _ Resolver = (*PGResolver)(nil)

// NewPGResolver constructs the postgres-backed resolver.
func NewPGResolver(db *sql.DB) *PGResolver {
	return &PGResolver{db: db}
}

func (r *PGResolver) AppIDByCode(ctx context.Context, code string) (string, error) {
	var appID string
	err := r.db.QueryRowContext(ctx, `select app_id from sites where code=$1`, code).Scan(&appID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("webapp: resolve code: %w", err)
	}
	return appID, nil
}
