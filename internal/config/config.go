package config

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds service configuration loaded from environment variables.
// Core packages never read the environment themselves; values are passed
// down from here at wiring time.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	Edition  string `envconfig:"EDITION" default:"SELF_HOSTED"`
	Version  string `envconfig:"VERSION" default:"dev"`
	TenantID string `envconfig:"TENANT_ID" required:"true"`

	ConsoleWebURL string `envconfig:"CONSOLE_WEB_URL" default:""`

	// SecretKey signs access and CSRF tokens.
	SecretKey string `envconfig:"SECRET_KEY" required:"true"`

	OIDCClientID     string `envconfig:"OIDC_CLIENT_ID" required:"true"`
	OIDCClientSecret string `envconfig:"OIDC_CLIENT_SECRET" required:"true"`
	OIDCDiscoveryURL string `envconfig:"OIDC_DISCOVERY_URL" required:"true"`
	OIDCRedirectURI  string `envconfig:"OIDC_REDIRECT_URI" required:"true"`
	OIDCScope        string `envconfig:"OIDC_SCOPE" default:"openid profile email roles"`
	OIDCResponseType string `envconfig:"OIDC_RESPONSE_TYPE" default:"code"`

	AccountDefaultRole string `envconfig:"ACCOUNT_DEFAULT_ROLE" default:"normal"`

	AccessTokenExpireMinutes int `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"900"`
	RefreshTokenExpireDays   int `envconfig:"REFRESH_TOKEN_EXPIRE_DAYS" default:"30"`

	RefreshTokenPrefix        string `envconfig:"REFRESH_TOKEN_PREFIX" default:"refresh_token:"`
	AccountRefreshTokenPrefix string `envconfig:"ACCOUNT_REFRESH_TOKEN_PREFIX" default:"account_refresh_token:"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisUsername string `envconfig:"REDIS_USERNAME" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	ProviderTimeoutSeconds int `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"10"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AccessTokenExpireMinutes <= 0 {
		return errors.New("config: ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.RefreshTokenExpireDays <= 0 {
		return errors.New("config: REFRESH_TOKEN_EXPIRE_DAYS must be positive")
	}
	if c.ProviderTimeoutSeconds <= 0 {
		return errors.New("config: PROVIDER_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// AccessTokenTTL returns the access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

// ProviderTimeout bounds outbound calls to the identity provider.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// ConsoleSecure reports whether the console is served over HTTPS, which
// controls cookie hardening.
func (c *Config) ConsoleSecure() bool {
	return strings.HasPrefix(c.ConsoleWebURL, "https")
}
