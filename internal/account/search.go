package account

import (
	"context"
	"fmt"
	"strings"
)

// SearchPage is one page of active accounts matched by a keyword search.
type SearchPage struct {
	Accounts   []*Account
	Page       int
	TotalPages int
	HasMore    bool
}

// ActiveByIDs loads active accounts for the given ids, preserving only rows
// that exist. Used to expand access-grant allow-lists into member records.
func (d *Directory) ActiveByIDs(ctx context.Context, ids []string) ([]*Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		select id, email, name, avatar, status, created_at, updated_at
		from accounts where status='active' and id in (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("account: active by ids: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		var acct Account
		if err := rows.Scan(&acct.ID, &acct.Email, &acct.Name, &acct.Avatar, &acct.Status, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("account: scan: %w", err)
		}
		out = append(out, &acct)
	}
	return out, rows.Err()
}

// SearchActive pages through active accounts matching the keyword against
// name or email. Ordering is by name then id for stable pagination.
func (d *Directory) SearchActive(ctx context.Context, keyword string, page, perPage int) (*SearchPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	where := `status='active'`
	args := []any{}
	if keyword != "" {
		where += ` and (name ilike $1 or email ilike $1)`
		args = append(args, "%"+keyword+"%")
	}

	var total int
	if err := d.db.QueryRowContext(ctx, `select count(*) from accounts where `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("account: search count: %w", err)
	}
	if total == 0 {
		return &SearchPage{Page: page}, nil
	}

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	args = append(args, perPage, (page-1)*perPage)
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		select id, email, name, avatar, status, created_at, updated_at
		from accounts where %s order by name, id limit $%d offset $%d
	`, where, limitArg, offsetArg), args...)
	if err != nil {
		return nil, fmt.Errorf("account: search: %w", err)
	}
	defer rows.Close()

	result := &SearchPage{Page: page}
	for rows.Next() {
		var acct Account
		if err := rows.Scan(&acct.ID, &acct.Email, &acct.Name, &acct.Avatar, &acct.Status, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("account: scan: %w", err)
		}
		result.Accounts = append(result.Accounts, &acct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.TotalPages = (total + perPage - 1) / perPage
	result.HasMore = page < result.TotalPages
	return result, nil
}
