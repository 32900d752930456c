package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

type providerStub struct {
	srv *httptest.Server

	tokenStatus    int
	tokenBody      map[string]any
	userinfoStatus int
	userinfoBody   map[string]any

	lastTokenForm url.Values
}

func newProviderStub(t *testing.T) *providerStub {
	t.Helper()
	p := &providerStub{
		tokenStatus:    http.StatusOK,
		tokenBody:      map[string]any{"access_token": "provider-token", "token_type": "Bearer"},
		userinfoStatus: http.StatusOK,
		userinfoBody:   map[string]any{"email": "u@example.com", "name": "U", "roles": []string{"editor"}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"authorization_endpoint": p.srv.URL + "/authorize",
			"token_endpoint":         p.srv.URL + "/token",
			"userinfo_endpoint":      p.srv.URL + "/userinfo",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		p.lastTokenForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.tokenStatus)
		_ = json.NewEncoder(w).Encode(p.tokenBody)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(p.userinfoStatus)
		_ = json.NewEncoder(w).Encode(p.userinfoBody)
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func newTestGateway(t *testing.T, p *providerStub) *Gateway {
	t.Helper()
	g, err := NewGateway(Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		DiscoveryURL: p.srv.URL + "/.well-known/openid-configuration",
		RedirectURI:  "https://console.example.com/callback",
		Scope:        "openid profile email roles",
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if err := g.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return g
}

func TestDiscoverMissingEndpointIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"authorization_endpoint": "https://idp.example.com/authorize",
			"token_endpoint":         "https://idp.example.com/token",
			// userinfo_endpoint deliberately absent
		})
	}))
	t.Cleanup(srv.Close)

	g, err := NewGateway(Config{
		ClientID:     "c",
		ClientSecret: "s",
		DiscoveryURL: srv.URL,
		RedirectURI:  "https://console.example.com/callback",
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if err := g.Discover(context.Background()); !errors.Is(err, ErrConfigIncomplete) {
		t.Fatalf("expected ErrConfigIncomplete, got %v", err)
	}
}

func TestDiscoverNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	g, err := NewGateway(Config{ClientID: "c", ClientSecret: "s", DiscoveryURL: srv.URL, RedirectURI: "x"})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if err := g.Discover(context.Background()); !errors.Is(err, ErrConfigIncomplete) {
		t.Fatalf("expected ErrConfigIncomplete, got %v", err)
	}
}

func TestLoginURL(t *testing.T) {
	p := newProviderStub(t)
	g := newTestGateway(t, p)

	raw := g.LoginURL("")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse login url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-1" {
		t.Fatalf("unexpected client_id: %s", q.Get("client_id"))
	}
	if q.Get("response_type") != "code" {
		t.Fatalf("unexpected response_type: %s", q.Get("response_type"))
	}
	if q.Get("redirect_uri") != "https://console.example.com/callback" {
		t.Fatalf("unexpected redirect_uri: %s", q.Get("redirect_uri"))
	}
	if q.Get("state") != "random_state" {
		t.Fatalf("unexpected state: %s", q.Get("state"))
	}
}

func TestLoginURLThreadsExtraParams(t *testing.T) {
	p := newProviderStub(t)
	g := newTestGateway(t, p)

	extra := url.QueryEscape("app_code=abc&redirect_url=https://app.example.com/x")
	raw := g.LoginURL(extra)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse login url: %v", err)
	}
	redirect := u.Query().Get("redirect_uri")
	want := "https://console.example.com/callback?app_code=abc&redirect_url=https://app.example.com/x"
	if redirect != want {
		t.Fatalf("redirect_uri=%q, want %q", redirect, want)
	}
}

func TestExchangeSendsMatchingRedirectURI(t *testing.T) {
	p := newProviderStub(t)
	g := newTestGateway(t, p)

	tok, err := g.Exchange(context.Background(), "auth-code", "app_code=abc&redirect_url=/x")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok != "provider-token" {
		t.Fatalf("unexpected token: %s", tok)
	}
	form := p.lastTokenForm
	if form.Get("grant_type") != "authorization_code" {
		t.Fatalf("unexpected grant_type: %s", form.Get("grant_type"))
	}
	if form.Get("code") != "auth-code" {
		t.Fatalf("unexpected code: %s", form.Get("code"))
	}
	if form.Get("client_id") != "client-1" || form.Get("client_secret") != "secret-1" {
		t.Fatal("client credentials must be form-encoded")
	}
	want := "https://console.example.com/callback?app_code=abc&redirect_url=/x"
	if form.Get("redirect_uri") != want {
		t.Fatalf("redirect_uri=%q, want %q", form.Get("redirect_uri"), want)
	}
}

func TestExchangeUpstreamFailure(t *testing.T) {
	p := newProviderStub(t)
	g := newTestGateway(t, p)
	p.tokenStatus = http.StatusBadRequest
	p.tokenBody = map[string]any{"error": "invalid_grant"}

	if _, err := g.Exchange(context.Background(), "bad-code", ""); !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected ErrUpstreamAuth, got %v", err)
	}
}

func TestFetchUserInfo(t *testing.T) {
	p := newProviderStub(t)
	g := newTestGateway(t, p)

	info, err := g.FetchUserInfo(context.Background(), "provider-token")
	if err != nil {
		t.Fatalf("FetchUserInfo: %v", err)
	}
	if info.Email != "u@example.com" || info.Name != "U" {
		t.Fatalf("unexpected userinfo: %+v", info)
	}
	if len(info.Roles) != 1 || info.Roles[0] != "editor" {
		t.Fatalf("unexpected roles: %v", info.Roles)
	}
}

func TestFetchUserInfoUpstreamFailure(t *testing.T) {
	p := newProviderStub(t)
	g := newTestGateway(t, p)

	if _, err := g.FetchUserInfo(context.Background(), "wrong-token"); !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected ErrUpstreamAuth, got %v", err)
	}
}
