package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ssogate.org/internal/account"
	"ssogate.org/internal/obs"
	"ssogate.org/internal/session"
	"ssogate.org/internal/sso"
	"ssogate.org/internal/token"
	"ssogate.org/internal/webapp"
)

// ReadyProbe checks the backing stores before the service reports ready.
type ReadyProbe struct {
	DB    *sql.DB
	Store session.Store
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Store != nil {
		return rp.Store.Ping(ctx)
	}
	return nil
}

// Options carries the request-independent settings of the HTTP layer.
type Options struct {
	Version       string
	Edition       string
	ConsoleWebURL string
	TenantID      string
	CookieSecure  bool

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	opts       Options
	readyProbe ReadyProbe

	sso       *sso.Service
	webapp    *webapp.Service
	directory *account.Directory
	verifier  webapp.ClaimVerifier
	cookies   token.Cookies

	rateBurst  int
	ratePerSec int
}

func New(opts Options, readyProbe ReadyProbe, ssoSvc *sso.Service, webappSvc *webapp.Service, directory *account.Directory, verifier webapp.ClaimVerifier) *API {
	a := &API{
		mux:        http.NewServeMux(),
		opts:       opts,
		readyProbe: readyProbe,
		sso:        ssoSvc,
		webapp:     webappSvc,
		directory:  directory,
		verifier:   verifier,
		cookies:    token.Cookies{Secure: opts.CookieSecure},
		rateBurst:  50,
		ratePerSec: 25,
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// console login
	a.mux.HandleFunc("/console/api/enterprise/sso/oidc/login", a.handleConsoleLoginURL)
	a.mux.HandleFunc("/console/api/enterprise/sso/oidc/callback", a.handleCallback)
	a.mux.HandleFunc("/console/api/enterprise/sso/refresh-token", a.handleRefreshToken)
	a.mux.HandleFunc("/console/api/enterprise/sso/logout", a.handleLogout)

	// embedded web-app login
	a.mux.HandleFunc("/api/enterprise/sso/oidc/login", a.handleWebAppLoginURL)
	a.mux.HandleFunc("/api/enterprise/sso/members/oidc/login", a.handleWebAppLoginURL)

	// access-grant admin surface
	a.mux.HandleFunc("/webapp/access-mode", a.handleSetAccessMode)
	a.mux.HandleFunc("/console/api/enterprise/webapp/app/access-mode", a.handleAccessModeConsole)
	a.mux.HandleFunc("/webapp/access-mode/id", a.handleGetAccessMode)
	a.mux.HandleFunc("/api/webapp/access-mode", a.handleGetAccessMode)
	a.mux.HandleFunc("/webapp/access-mode/code", a.handleGetAccessModeByCode)
	a.mux.HandleFunc("/webapp/access-mode/batch/id", a.handleAccessModeBatch)
	a.mux.HandleFunc("/webapp/clean", a.handleCleanAccessMode)

	// permission checks
	a.mux.HandleFunc("/api/webapp/permission", a.handleBearerPermission)
	a.mux.HandleFunc("/console/api/enterprise/webapp/permission", a.handleBearerPermission)
	a.mux.HandleFunc("/webapp/permission", a.handleSubjectPermission)
	a.mux.HandleFunc("/webapp/permission/batch", a.handlePermissionBatch)

	// allow-list introspection
	a.mux.HandleFunc("/console/api/enterprise/webapp/app/subjects", a.handleSubjects)
	a.mux.HandleFunc("/console/api/enterprise/webapp/app/subject/search", a.handleSubjectSearch)

	// tenant metadata consumed by the fronted application
	a.mux.HandleFunc("/info", a.handleEnterpriseInfo)
	a.mux.HandleFunc("/console/api/system-features", a.handleSystemFeatures)
	a.mux.HandleFunc("/console/api/features", a.handleFeatures)
	a.mux.HandleFunc("/subscription/info", a.handleSubscriptionInfo)
	a.mux.HandleFunc("/app-sso-setting", a.handleAppSSOSetting)
	a.mux.HandleFunc("/sso/app/last-update-time", a.handleLastUpdateTime)
	a.mux.HandleFunc("/sso/workspace/last-update-time", a.handleLastUpdateTime)
	a.mux.HandleFunc("/workspace/", a.handleWorkspaceInfo)
	a.mux.HandleFunc("/workspaces/", a.handleWorkspacePermission)
	a.mux.HandleFunc("/check-credential-policy-compliance", a.handleCredentialPolicy)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- health ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "ssogate",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
