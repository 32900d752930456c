package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"ssogate.org/internal/audit"
	"ssogate.org/internal/obs"
	"ssogate.org/internal/sso"
	"ssogate.org/internal/token"
)

type loginURLResponse struct {
	URL string `json:"url"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	CSRFToken    string `json:"csrf_token"`
}

// handleConsoleLoginURL returns the provider authorization URL, or issues
// the redirect directly when the caller passes is_login.
func (a *API) handleConsoleLoginURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	loginURL := a.sso.LoginURL("")
	if r.URL.Query().Get("is_login") != "" {
		http.Redirect(w, r, loginURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, loginURLResponse{URL: loginURL})
}

// handleWebAppLoginURL returns the authorization URL for an embedded
// application login, threading the app code and post-login target through
// the provider round trip.
func (a *API) handleWebAppLoginURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	extra := "app_code=" + q.Get("app_code") + "&redirect_url=" + q.Get("redirect_url")
	writeJSON(w, http.StatusOK, loginURLResponse{URL: a.sso.LoginURL(extra)})
}

// handleCallback finishes the provider round trip. The presence of both
// app_code and redirect_url selects the web-app flow; otherwise the console
// flow issues the cookie triple.
func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	code := q.Get("code")
	redirectURL := q.Get("redirect_url")
	appCode := q.Get("app_code")
	ip := clientIP(r)

	if appCode != "" && redirectURL != "" {
		extra := "app_code=" + appCode + "&redirect_url=" + redirectURL
		bearer, err := a.sso.WebAppCallback(r.Context(), code, ip, extra)
		obs.ObserveLogin("webapp", err)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		_ = audit.LogEvent(r.Context(), "sso.login.webapp", map[string]any{
			"app_code": appCode,
			"ip":       ip,
		})
		target := a.opts.ConsoleWebURL + "/webapp-signin?web_sso_token=" + url.QueryEscape(bearer) +
			"&redirect_url=" + url.QueryEscape(redirectURL)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	pair, acct, err := a.sso.ConsoleCallback(r.Context(), code, ip)
	obs.ObserveLogin("console", err)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	_ = audit.LogEvent(audit.WithSubject(r.Context(), acct.ID), "sso.login.console", map[string]any{
		"email": acct.Email,
		"ip":    ip,
	})
	a.setTokenCookies(w, pair)
	http.Redirect(w, r, a.opts.ConsoleWebURL, http.StatusFound)
}

// handleRefreshToken exchanges a refresh token for a fresh access and CSRF
// token. The refresh token comes from the JSON body or, failing that, the
// refresh cookie.
func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	refreshToken := a.refreshTokenFromRequest(w, r)
	pair, err := a.sso.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, sso.ErrInvalidRefreshToken) {
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}
	a.setTokenCookies(w, pair)
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		CSRFToken:    pair.CSRFToken,
	})
}

// handleLogout revokes the refresh token. Unknown tokens succeed quietly.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	refreshToken := a.refreshTokenFromRequest(w, r)
	if err := a.sso.Logout(r.Context(), refreshToken); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": true})
}

func (a *API) refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if c, err := r.Cookie(a.cookies.Name(token.CookieRefreshToken)); err == nil {
		return c.Value
	}
	return ""
}

func (a *API) setTokenCookies(w http.ResponseWriter, pair *sso.TokenPair) {
	a.cookies.SetAccessToken(w, pair.AccessToken, a.opts.AccessTokenTTL)
	a.cookies.SetRefreshToken(w, pair.RefreshToken, a.opts.RefreshTokenTTL)
	a.cookies.SetCSRFToken(w, pair.CSRFToken, a.opts.AccessTokenTTL)
}
