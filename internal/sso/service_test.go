package sso

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ssogate.org/internal/account"
	"ssogate.org/internal/oidc"
	"ssogate.org/internal/session"
	"ssogate.org/internal/token"
)

// provider is a minimal in-process OIDC provider for the pipeline tests.
type provider struct {
	server   *httptest.Server
	userinfo oidc.UserInfo
	// when set, the token endpoint rejects every exchange
	rejectExchange bool
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	p := &provider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"authorization_endpoint": p.server.URL + "/authorize",
			"token_endpoint":         p.server.URL + "/token",
			"userinfo_endpoint":      p.server.URL + "/userinfo",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if p.rejectExchange {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-token",
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(p.userinfo)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

type testEnv struct {
	svc      *Service
	provider *provider
	mock     sqlmock.Sqlmock
	redis    *miniredis.Miniredis
	issuer   *token.Issuer
	tokens   *session.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	p := newProvider(t)

	gw, err := oidc.NewGateway(oidc.Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		DiscoveryURL: p.server.URL + "/.well-known/openid-configuration",
		RedirectURI:  "https://gateway.example.com/console/api/enterprise/sso/oidc/callback",
		Scope:        "openid profile email",
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if err := gw.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	dir, err := account.NewDirectory(db, "tenant-1", "normal")
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}

	issuer, err := token.NewIssuer("test-secret",
		token.WithIssuer("SELF_HOSTED"),
		token.WithAccessTTL(time.Hour),
	)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := session.NewRedisStoreFromClient(client)
	tokens := session.NewTokens(store, session.TokensConfig{TTL: time.Hour})

	return &testEnv{
		svc:      NewService(gw, dir, issuer, tokens),
		provider: p,
		mock:     mock,
		redis:    mr,
		issuer:   issuer,
		tokens:   tokens,
	}
}

func (e *testEnv) expectProvision(email, name string) {
	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`select id, email, name, avatar, status.*from accounts where email`).
		WithArgs(email).
		WillReturnError(sql.ErrNoRows)
	e.mock.ExpectExec(`insert into accounts`).
		WithArgs(sqlmock.AnyArg(), email, name, account.StatusActive, sqlmock.AnyArg(), "10.0.0.1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectExec(`insert into tenant_account_joins`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectCommit()
}

func TestConsoleCallbackIssuesTokenTriple(t *testing.T) {
	env := newTestEnv(t)
	env.provider.userinfo = oidc.UserInfo{Email: "dev@example.com", Name: "Dev", Roles: []string{"editor"}}
	env.expectProvision("dev@example.com", "Dev")

	pair, acct, err := env.svc.ConsoleCallback(context.Background(), "auth-code", "10.0.0.1")
	if err != nil {
		t.Fatalf("ConsoleCallback: %v", err)
	}
	if acct.Email != "dev@example.com" {
		t.Fatalf("unexpected account email: %s", acct.Email)
	}

	claims, err := env.issuer.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify access token: %v", err)
	}
	if claims["sub"] != token.SubjectConsole {
		t.Fatalf("unexpected sub claim: %v", claims["sub"])
	}
	if claims["user_id"] != acct.ID {
		t.Fatalf("access token bound to wrong account: %v", claims["user_id"])
	}

	csrf, err := env.issuer.Verify(pair.CSRFToken)
	if err != nil {
		t.Fatalf("Verify csrf token: %v", err)
	}
	if csrf["sub"] != acct.ID {
		t.Fatalf("csrf token bound to wrong account: %v", csrf["sub"])
	}

	gotAccount, err := env.tokens.AccountForRefreshToken(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("AccountForRefreshToken: %v", err)
	}
	if gotAccount != acct.ID {
		t.Fatalf("refresh token mapped to %s, want %s", gotAccount, acct.ID)
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWebAppCallbackIssuesBearerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.provider.userinfo = oidc.UserInfo{Email: "viewer@example.com", Roles: nil}
	env.expectProvision("viewer@example.com", "viewer")

	bearer, err := env.svc.WebAppCallback(context.Background(), "auth-code", "10.0.0.1",
		"app_code%3Dabc123%26redirect_url%3Dhttps%253A%252F%252Fapp.example.com")
	if err != nil {
		t.Fatalf("WebAppCallback: %v", err)
	}

	claims, err := env.issuer.Verify(bearer)
	if err != nil {
		t.Fatalf("Verify bearer: %v", err)
	}
	if claims["sub"] != token.SubjectWebApp {
		t.Fatalf("unexpected sub claim: %v", claims["sub"])
	}
	if claims["session_id"] != "viewer@example.com" {
		t.Fatalf("unexpected session_id claim: %v", claims["session_id"])
	}
	if claims["token_source"] != "webapp_login_token" {
		t.Fatalf("unexpected token_source claim: %v", claims["token_source"])
	}

	// No refresh token is minted on this path.
	if got := env.redis.Keys(); len(got) != 0 {
		t.Fatalf("unexpected session keys: %v", got)
	}
}

func TestConsoleCallbackUpstreamRejection(t *testing.T) {
	env := newTestEnv(t)
	env.provider.rejectExchange = true

	_, _, err := env.svc.ConsoleCallback(context.Background(), "bad-code", "10.0.0.1")
	if !errors.Is(err, oidc.ErrUpstreamAuth) {
		t.Fatalf("expected ErrUpstreamAuth, got %v", err)
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no database work expected: %v", err)
	}
}

func TestConsoleCallbackRejectsIdentityWithoutEmail(t *testing.T) {
	env := newTestEnv(t)
	env.provider.userinfo = oidc.UserInfo{Name: "No Email"}

	_, _, err := env.svc.ConsoleCallback(context.Background(), "auth-code", "10.0.0.1")
	if !errors.Is(err, account.ErrIdentityIncomplete) {
		t.Fatalf("expected ErrIdentityIncomplete, got %v", err)
	}
}

func TestRefreshReusesStoredToken(t *testing.T) {
	env := newTestEnv(t)
	if err := env.tokens.StoreRefreshToken(context.Background(), "refresh-1", "acct-9"); err != nil {
		t.Fatalf("StoreRefreshToken: %v", err)
	}

	pair, err := env.svc.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken != "refresh-1" {
		t.Fatalf("refresh token must be preserved, got %s", pair.RefreshToken)
	}
	claims, err := env.issuer.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims["user_id"] != "acct-9" {
		t.Fatalf("refreshed token bound to wrong account: %v", claims["user_id"])
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Refresh(context.Background(), "never-issued"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if _, err := env.svc.Refresh(context.Background(), ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for empty token, got %v", err)
	}
}

func TestLogoutRevokesBothMappings(t *testing.T) {
	env := newTestEnv(t)
	if err := env.tokens.StoreRefreshToken(context.Background(), "refresh-2", "acct-3"); err != nil {
		t.Fatalf("StoreRefreshToken: %v", err)
	}
	if err := env.svc.Logout(context.Background(), "refresh-2"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.tokens.AccountForRefreshToken(context.Background(), "refresh-2"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected mapping gone, got %v", err)
	}
	if got := env.redis.Keys(); len(got) != 0 {
		t.Fatalf("expected all session keys removed, got %v", got)
	}

	// Unknown tokens are a quiet no-op.
	if err := env.svc.Logout(context.Background(), "refresh-2"); err != nil {
		t.Fatalf("Logout of unknown token: %v", err)
	}
}
