package odoogate

import (
	"fmt"
	"strings"
	"time"
)

// Environment names recognized by Config.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds gateway configuration. Populated from the environment with
// caarlos0/env in cmd/odoogate; tests construct it directly.
type Config struct {
	// Environment is the runtime environment flag. Outside production,
	// error responses may carry a details field.
	Environment string `env:"APP_ENV" envDefault:"development"`

	// Port the gateway listens on.
	Port int `env:"PORT" envDefault:"3000"`

	// SigningSecret is the process-wide key for the signed token form.
	// Required in production; a development fallback is generated
	// otherwise.
	SigningSecret string `env:"JWT_SECRET"`

	// FrontendURL is the single allowed cross-origin frontend.
	// Empty disables CORS headers.
	FrontendURL string `env:"FRONTEND_URL"`

	// Upstream Odoo server.
	OdooURL      string `env:"ODOO_URL" envDefault:"http://localhost"`
	OdooDatabase string `env:"ODOO_DB"`
	OdooPort     int    `env:"ODOO_PORT" envDefault:"8069"`

	// VerifyTimeout bounds one upstream authentication call. A verifier
	// that neither succeeds nor fails within this window loses the race
	// and the login fails.
	VerifyTimeout time.Duration `env:"VERIFY_TIMEOUT" envDefault:"10s"`

	// LoginRateCeiling is the number of login attempts one caller may make
	// per RateWindow before RATE_LIMITED.
	LoginRateCeiling int `env:"LOGIN_RATE_CEILING" envDefault:"5"`

	// APIRateCeiling is the general per-caller request ceiling per
	// RateWindow.
	APIRateCeiling int `env:"API_RATE_CEILING" envDefault:"100"`

	// RateWindow is the window both ceilings apply over.
	RateWindow time.Duration `env:"RATE_WINDOW" envDefault:"15m"`

	// SessionIdleTimeout is how long a session may sit idle before the
	// reaper evicts it. Independent of the signed token's own expiry.
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"1h"`

	// ReaperInterval is how often the reaper sweeps the store.
	ReaperInterval time.Duration `env:"REAPER_INTERVAL" envDefault:"30m"`

	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP for client IP
	// extraction. Only enable behind a trusted reverse proxy.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// TrustedProxyCount is the number of trusted proxies in front of the
	// gateway when TrustProxyHeaders is set.
	TrustedProxyCount int `env:"TRUSTED_PROXY_COUNT" envDefault:"1"`

	// EnableInstrumentation turns on OpenTelemetry metrics and tracing.
	EnableInstrumentation bool `env:"ENABLE_INSTRUMENTATION" envDefault:"false"`
}

// IsProduction reports whether the environment flag names a production-like
// run. Error details are suppressed in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// Sanitize normalizes fields and fills defaults for zero values, so a
// directly-constructed Config behaves like an env-parsed one.
func (c *Config) Sanitize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.OdooPort == 0 {
		c.OdooPort = 8069
	}
	if c.VerifyTimeout == 0 {
		c.VerifyTimeout = 10 * time.Second
	}
	if c.LoginRateCeiling == 0 {
		c.LoginRateCeiling = 5
	}
	if c.APIRateCeiling == 0 {
		c.APIRateCeiling = 100
	}
	if c.RateWindow == 0 {
		c.RateWindow = 15 * time.Minute
	}
	if c.SessionIdleTimeout == 0 {
		c.SessionIdleTimeout = time.Hour
	}
	if c.ReaperInterval == 0 {
		c.ReaperInterval = 30 * time.Minute
	}
	c.FrontendURL = strings.TrimRight(strings.TrimSpace(c.FrontendURL), "/")
}

// Validate checks the configuration for unrecoverable problems. These are the
// only conditions that may halt the process.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	if c.IsProduction() {
		if c.SigningSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(c.SigningSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}

	if c.VerifyTimeout < time.Second {
		return fmt.Errorf("verify timeout %v is too short", c.VerifyTimeout)
	}
	if c.LoginRateCeiling < 1 || c.APIRateCeiling < 1 {
		return fmt.Errorf("rate ceilings must be positive")
	}
	if c.SessionIdleTimeout < time.Minute {
		return fmt.Errorf("session idle timeout %v is too short", c.SessionIdleTimeout)
	}
	if c.ReaperInterval < time.Second {
		return fmt.Errorf("reaper interval %v is too short", c.ReaperInterval)
	}

	return nil
}
