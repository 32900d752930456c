package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Distinct verification failures. Authorization paths collapse all three to
// the visitor subject; explicit refresh endpoints surface them separately so
// a client can tell "log in again" apart from a malformed request.
var (
	ErrExpired   = errors.New("token: expired")
	ErrSignature = errors.New("token: invalid signature")
	ErrMalformed = errors.New("token: malformed")
)

// Subject claims distinguishing the two token flavors.
const (
	SubjectConsole = "Console API Passport"
	SubjectWebApp  = "Web API Passport"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Issuer mints and verifies the service's signed tokens. All tokens share
// one HS256 secret; they differ only in claim shape.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures Issuer behavior.
type Option func(*Issuer)

// WithIssuer sets the iss claim written into console access tokens.
func WithIssuer(issuer string) Option {
	return func(i *Issuer) {
		if issuer != "" {
			i.issuer = issuer
		}
	}
}

// WithAccessTTL configures the access and CSRF token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures the refresh token validity window.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer signing with the given shared secret.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	i := &Issuer{
		secret:     []byte(secret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) sign(claims jwt.MapClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// IssueConsoleToken mints the console access token for an account.
func (i *Issuer) IssueConsoleToken(accountID string) (string, error) {
	if accountID == "" {
		return "", errors.New("token: account id is required")
	}
	exp := i.now().UTC().Add(i.accessTTL)
	return i.sign(jwt.MapClaims{
		"user_id": accountID,
		"exp":     exp.Unix(),
		"iss":     i.issuer,
		"sub":     SubjectConsole,
	})
}

// IssueWebAppToken mints the resource-scoped bearer token returned to
// embedding applications. It carries a session marker and an internal
// auth-type marker instead of an issuer field, and has no refresh token.
func (i *Issuer) IssueWebAppToken(accountID, email string) (string, error) {
	if accountID == "" {
		return "", errors.New("token: account id is required")
	}
	exp := i.now().UTC().Add(i.accessTTL)
	return i.sign(jwt.MapClaims{
		"user_id":      accountID,
		"session_id":   email,
		"auth_type":    "internal",
		"token_source": "webapp_login_token",
		"exp":          exp.Unix(),
		"sub":          SubjectWebApp,
	})
}

// IssueCSRFToken mints the double-submit token bound to an account. Same TTL
// class as the access token; verification is the caller's responsibility.
func (i *Issuer) IssueCSRFToken(accountID string) (string, error) {
	if accountID == "" {
		return "", errors.New("token: account id is required")
	}
	exp := i.now().UTC().Add(i.accessTTL)
	return i.sign(jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": accountID,
	})
}

// NewRefreshToken generates an opaque capability token: 64 random bytes,
// hex encoded, no embedded structure.
func (i *Issuer) NewRefreshToken() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: refresh token entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Verify decodes and validates a signed token, returning its claim map.
// Structural, signature and expiry failures map to distinct errors.
func (i *Issuer) Verify(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, ErrMalformed
	}
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrSignature
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrSignature):
			return nil, ErrSignature
		default:
			return nil, ErrMalformed
		}
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Subject extracts the effective subject id from a verified claim map:
// end_user_id when present, else user_id.
func Subject(claims map[string]any) string {
	if v, ok := claims["end_user_id"].(string); ok && v != "" {
		return v
	}
	if v, ok := claims["user_id"].(string); ok && v != "" {
		return v
	}
	return ""
}
