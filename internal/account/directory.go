package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProvisionInput carries the identity reported by the provider for one
// login, plus request metadata.
type ProvisionInput struct {
	Email     string
	Name      string
	RoleClaim []string
	IP        string
}

// Directory maps external identities to internal accounts and keeps tenant
// membership and role in sync with the provider.
type Directory struct {
	db          *sql.DB
	tenantID    string
	defaultRole string
	now         func() time.Time
}

// DirectoryOption configures Directory behavior.
type DirectoryOption func(*Directory)

// WithDirectoryClock overrides the time source (useful for tests).
func WithDirectoryClock(fn func() time.Time) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.now = fn
		}
	}
}

// NewDirectory constructs the directory for one configured tenant.
func NewDirectory(db *sql.DB, tenantID, defaultRole string, opts ...DirectoryOption) (*Directory, error) {
	if db == nil {
		return nil, errors.New("account: db is required")
	}
	if tenantID == "" {
		return nil, errors.New("account: tenant id is required")
	}
	d := &Directory{
		db:          db,
		tenantID:    tenantID,
		defaultRole: defaultRole,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ResolveOrProvision is the central state-machine step of a login: it finds
// or creates the account for an email, ensures tenant membership at the
// resolved role (last-write-wins on role changes), and records login
// metadata. All mutations commit as one transaction; any failure rolls the
// whole step back so partial provisioning is never observable. Repeated
// identical calls are idempotent apart from login timestamps.
func (d *Directory) ResolveOrProvision(ctx context.Context, in ProvisionInput) (*Account, Role, error) {
	email := in.Email
	if email == "" {
		return nil, "", ErrIdentityIncomplete
	}
	name := in.Name
	if name == "" {
		// Fall back to the email local part.
		name = email
		if i := strings.IndexByte(email, '@'); i > 0 {
			name = email[:i]
		}
	}
	role := ResolveRole(in.RoleClaim, d.defaultRole)
	now := d.now().UTC()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("account: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	acct, err := findByEmail(ctx, tx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		acct = &Account{
			ID:     uuid.NewString(),
			Email:  email,
			Name:   name,
			Status: StatusActive,
		}
		if _, err := tx.ExecContext(ctx, `
			insert into accounts(id, email, name, avatar, status, last_login_at, last_login_ip, created_at, updated_at)
			values ($1,$2,$3,'',$4,$5,$6,$7,$7)
		`, acct.ID, acct.Email, acct.Name, StatusActive, now, in.IP, now); err != nil {
			return nil, "", fmt.Errorf("account: create account: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			insert into tenant_account_joins(id, tenant_id, account_id, role, created_at, updated_at)
			values ($1,$2,$3,$4,$5,$5)
		`, uuid.NewString(), d.tenantID, acct.ID, role, now); err != nil {
			return nil, "", fmt.Errorf("account: create membership: %w", err)
		}
	case err != nil:
		return nil, "", err
	default:
		if err := d.syncMembership(ctx, tx, acct.ID, role, now); err != nil {
			return nil, "", err
		}
		if _, err := tx.ExecContext(ctx, `
			update accounts set name=$2, status=$3, last_login_at=$4, last_login_ip=$5, updated_at=$4 where id=$1
		`, acct.ID, name, StatusActive, now, in.IP); err != nil {
			return nil, "", fmt.Errorf("account: update login info: %w", err)
		}
		acct.Name = name
		acct.Status = StatusActive
	}
	acct.LastLoginAt = &now
	acct.LastLoginIP = in.IP

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("account: commit: %w", err)
	}
	return acct, role, nil
}

func (d *Directory) syncMembership(ctx context.Context, tx *sql.Tx, accountID string, role Role, now time.Time) error {
	var (
		membershipID string
		current      string
	)
	err := tx.QueryRowContext(ctx, `
		select id, role from tenant_account_joins where tenant_id=$1 and account_id=$2
	`, d.tenantID, accountID).Scan(&membershipID, &current)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, `
			insert into tenant_account_joins(id, tenant_id, account_id, role, created_at, updated_at)
			values ($1,$2,$3,$4,$5,$5)
		`, uuid.NewString(), d.tenantID, accountID, role, now); err != nil {
			return fmt.Errorf("account: create membership: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("account: load membership: %w", err)
	}
	if Role(current) != role {
		if _, err := tx.ExecContext(ctx, `
			update tenant_account_joins set role=$2, updated_at=$3 where id=$1
		`, membershipID, role, now); err != nil {
			return fmt.Errorf("account: sync role: %w", err)
		}
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findByEmail(ctx context.Context, q queryer, email string) (*Account, error) {
	var acct Account
	var lastLoginAt sql.NullTime
	var lastLoginIP sql.NullString
	err := q.QueryRowContext(ctx, `
		select id, email, name, avatar, status, last_login_at, last_login_ip, created_at, updated_at
		from accounts where email=$1
	`, email).Scan(
		&acct.ID, &acct.Email, &acct.Name, &acct.Avatar, &acct.Status,
		&lastLoginAt, &lastLoginIP, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: find by email: %w", err)
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		acct.LastLoginAt = &t
	}
	acct.LastLoginIP = lastLoginIP.String
	return &acct, nil
}

// FindByEmail looks up an account by exact email match.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return findByEmail(ctx, d.db, email)
}

// MembershipRole returns the account's role inside the configured tenant.
func (d *Directory) MembershipRole(ctx context.Context, accountID string) (Role, error) {
	var role string
	err := d.db.QueryRowContext(ctx, `
		select role from tenant_account_joins where tenant_id=$1 and account_id=$2
	`, d.tenantID, accountID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("account: membership role: %w", err)
	}
	return Role(role), nil
}
