package sso

import (
	"context"
	"errors"
	"fmt"

	"ssogate.org/internal/account"
	"ssogate.org/internal/oidc"
	"ssogate.org/internal/session"
	"ssogate.org/internal/token"
)

// ErrInvalidRefreshToken indicates the presented refresh token is unknown
// or expired. Distinct from a malformed request so a client can tell
// "log in again" apart from a bad call.
var ErrInvalidRefreshToken = errors.New("sso: invalid refresh token")

// TokenPair is the console login result: the signed access token, the
// opaque refresh token and the CSRF double-submit token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
}

// Service orchestrates the login pipeline: code exchange, account
// provisioning and token issuance.
type Service struct {
	gateway   *oidc.Gateway
	directory *account.Directory
	issuer    *token.Issuer
	tokens    *session.Tokens
}

// NewService wires the pipeline.
func NewService(gateway *oidc.Gateway, directory *account.Directory, issuer *token.Issuer, tokens *session.Tokens) *Service {
	return &Service{
		gateway:   gateway,
		directory: directory,
		issuer:    issuer,
		tokens:    tokens,
	}
}

// LoginURL builds the provider's authorization URL, optionally threading
// extra redirect params (app code + post-login target) through the round
// trip.
func (s *Service) LoginURL(extraParams string) string {
	return s.gateway.LoginURL(extraParams)
}

// resolveIdentity runs the shared front half of every callback: exchange
// the code, fetch the identity, provision or sync the account.
func (s *Service) resolveIdentity(ctx context.Context, code, clientIP, extraParams string) (*account.Account, error) {
	providerToken, err := s.gateway.Exchange(ctx, code, extraParams)
	if err != nil {
		return nil, err
	}
	info, err := s.gateway.FetchUserInfo(ctx, providerToken)
	if err != nil {
		return nil, err
	}
	acct, _, err := s.directory.ResolveOrProvision(ctx, account.ProvisionInput{
		Email:     info.Email,
		Name:      info.Name,
		RoleClaim: info.Roles,
		IP:        clientIP,
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// ConsoleCallback completes a console login: it mints the access, refresh
// and CSRF tokens and persists the refresh-token mapping.
func (s *Service) ConsoleCallback(ctx context.Context, code, clientIP string) (*TokenPair, *account.Account, error) {
	acct, err := s.resolveIdentity(ctx, code, clientIP, "")
	if err != nil {
		return nil, nil, err
	}

	accessToken, err := s.issuer.IssueConsoleToken(acct.ID)
	if err != nil {
		return nil, nil, err
	}
	refreshToken, err := s.issuer.NewRefreshToken()
	if err != nil {
		return nil, nil, err
	}
	csrfToken, err := s.issuer.IssueCSRFToken(acct.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.tokens.StoreRefreshToken(ctx, refreshToken, acct.ID); err != nil {
		return nil, nil, fmt.Errorf("sso: persist refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfToken,
	}, acct, nil
}

// WebAppCallback completes a resource-scoped login: a single bearer token
// for the embedding application, no refresh token.
func (s *Service) WebAppCallback(ctx context.Context, code, clientIP, extraParams string) (string, error) {
	acct, err := s.resolveIdentity(ctx, code, clientIP, extraParams)
	if err != nil {
		return "", err
	}
	return s.issuer.IssueWebAppToken(acct.ID, acct.Email)
}

// Refresh exchanges a stored refresh token for a fresh console access token
// and CSRF token. The refresh token itself stays valid until its store TTL
// elapses or it is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	accountID, err := s.tokens.AccountForRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	accessToken, err := s.issuer.IssueConsoleToken(accountID)
	if err != nil {
		return nil, err
	}
	csrfToken, err := s.issuer.IssueCSRFToken(accountID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfToken,
	}, nil
}

// Logout revokes the refresh token in both directions. Unknown tokens are a
// no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	accountID, err := s.tokens.AccountForRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.tokens.RevokeRefreshToken(ctx, refreshToken, accountID)
}
