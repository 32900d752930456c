package token

import (
	"net/http"
	"time"
)

// Session cookie base names. When the console is served over HTTPS the
// __Host- prefix is applied, which additionally pins Secure and path=/.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	CookieCSRFToken    = "csrf_token"
)

// Cookies writes the three session cookies for the console login path.
type Cookies struct {
	Secure bool
}

// Name returns the effective cookie name for the deployment.
func (c Cookies) Name(base string) string {
	if c.Secure {
		return "__Host-" + base
	}
	return base
}

func (c Cookies) set(w http.ResponseWriter, base, value string, maxAge time.Duration, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name(base),
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: httpOnly,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetAccessToken writes the access token cookie (HttpOnly).
func (c Cookies) SetAccessToken(w http.ResponseWriter, value string, ttl time.Duration) {
	c.set(w, CookieAccessToken, value, ttl, true)
}

// SetRefreshToken writes the refresh token cookie (HttpOnly).
func (c Cookies) SetRefreshToken(w http.ResponseWriter, value string, ttl time.Duration) {
	c.set(w, CookieRefreshToken, value, ttl, true)
}

// SetCSRFToken writes the CSRF cookie. It is readable by scripts so the
// client can echo it back for the double-submit check.
func (c Cookies) SetCSRFToken(w http.ResponseWriter, value string, ttl time.Duration) {
	c.set(w, CookieCSRFToken, value, ttl, false)
}
