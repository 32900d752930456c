package session

import (
	"context"
	"errors"
	"time"
)

// Tokens persists the refresh-token mappings. Each token is stored in both
// directions (token→account and account→token) with identical TTL so either
// side can be looked up or revoked. Losing the reverse mapping only breaks
// bulk revocation by account, not the refresh flow itself.
type Tokens struct {
	store         Store
	tokenPrefix   string
	accountPrefix string
	ttl           time.Duration
}

// TokensConfig configures key prefixes and the validity window.
type TokensConfig struct {
	RefreshTokenPrefix        string
	AccountRefreshTokenPrefix string
	TTL                       time.Duration
}

// NewTokens builds the refresh-token persistence helper.
func NewTokens(store Store, cfg TokensConfig) *Tokens {
	if cfg.RefreshTokenPrefix == "" {
		cfg.RefreshTokenPrefix = DefaultRefreshTokenPrefix
	}
	if cfg.AccountRefreshTokenPrefix == "" {
		cfg.AccountRefreshTokenPrefix = DefaultAccountRefreshTokenPrefix
	}
	return &Tokens{
		store:         store,
		tokenPrefix:   cfg.RefreshTokenPrefix,
		accountPrefix: cfg.AccountRefreshTokenPrefix,
		ttl:           cfg.TTL,
	}
}

func (t *Tokens) tokenKey(refreshToken string) string {
	return t.tokenPrefix + refreshToken
}

func (t *Tokens) accountKey(accountID string) string {
	return t.accountPrefix + accountID
}

// StoreRefreshToken writes both mappings with the configured TTL. Expiry is
// enforced by the store; the application never checks timestamps.
func (t *Tokens) StoreRefreshToken(ctx context.Context, refreshToken, accountID string) error {
	if err := t.store.SetWithTTL(ctx, t.tokenKey(refreshToken), accountID, t.ttl); err != nil {
		return err
	}
	return t.store.SetWithTTL(ctx, t.accountKey(accountID), refreshToken, t.ttl)
}

// AccountForRefreshToken resolves a refresh token to the account it was
// issued for. Returns ErrNotFound for unknown or expired tokens.
func (t *Tokens) AccountForRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return t.store.Get(ctx, t.tokenKey(refreshToken))
}

// RevokeRefreshToken removes both directions of the mapping.
func (t *Tokens) RevokeRefreshToken(ctx context.Context, refreshToken, accountID string) error {
	return t.store.Delete(ctx, t.tokenKey(refreshToken), t.accountKey(accountID))
}

// RevokeByAccount removes the token currently associated with the account,
// if any, along with its forward mapping.
func (t *Tokens) RevokeByAccount(ctx context.Context, accountID string) error {
	refreshToken, err := t.store.Get(ctx, t.accountKey(accountID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return t.store.Delete(ctx, t.tokenKey(refreshToken), t.accountKey(accountID))
}
