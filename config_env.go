package authcore

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/meenu-gupta/authcore/session"
)

type envConfig struct {
	SessionSecret         string        `env:"AUTHCORE_SESSION_SECRET"`
	SecondarySecret       string        `env:"AUTHCORE_SECONDARY_SECRET"`
	Issuer                string        `env:"AUTHCORE_TOKEN_ISSUER"`
	Audience              string        `env:"AUTHCORE_TOKEN_AUDIENCE"`
	AccessTTL             time.Duration `env:"AUTHCORE_ACCESS_TTL"`
	RefreshTTL            time.Duration `env:"AUTHCORE_REFRESH_TTL"`
	Leeway                time.Duration `env:"AUTHCORE_TOKEN_LEEWAY"`
	InvitationExpiryGrace time.Duration `env:"AUTHCORE_INVITATION_GRACE"`

	PasswordMaxAge time.Duration `env:"AUTHCORE_PASSWORD_MAX_AGE"`

	SessionLifecycle   string        `env:"AUTHCORE_SESSION_LIFECYCLE"`
	SessionIdleTimeout time.Duration `env:"AUTHCORE_SESSION_IDLE_TIMEOUT"`
	SessionKeyPrefix   string        `env:"AUTHCORE_SESSION_KEY_PREFIX"`
	SessionRetention   time.Duration `env:"AUTHCORE_SESSION_RETENTION"`

	ConfirmationTTL      time.Duration `env:"AUTHCORE_CONFIRMATION_TTL"`
	ConfirmationDigits   int           `env:"AUTHCORE_CONFIRMATION_DIGITS"`
	ConfirmationAttempts int           `env:"AUTHCORE_CONFIRMATION_ATTEMPTS"`

	MFAAllowToggle *bool `env:"AUTHCORE_MFA_ALLOW_TOGGLE"`
	MFARequired    bool  `env:"AUTHCORE_MFA_REQUIRED"`

	EventBufferSize int `env:"AUTHCORE_EVENT_BUFFER_SIZE"`

	MetricsEnabled bool `env:"AUTHCORE_METRICS_ENABLED"`
	MetricsLatency bool `env:"AUTHCORE_METRICS_LATENCY"`

	TestEnvironment bool `env:"AUTHCORE_TEST_ENVIRONMENT"`
}

// ConfigFromEnv overlays AUTHCORE_* environment variables on
// DefaultConfig. Unset variables keep their defaults; the result still
// passes through Build's validation.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return cfg, fmt.Errorf("authcore: parse environment: %w", err)
	}

	cfg.Token.SessionSecret = []byte(raw.SessionSecret)
	cfg.Token.SecondarySecret = []byte(raw.SecondarySecret)
	if raw.Issuer != "" {
		cfg.Token.Issuer = raw.Issuer
	}
	if raw.Audience != "" {
		cfg.Token.Audience = raw.Audience
	}
	if raw.AccessTTL != 0 {
		cfg.Token.AccessTTL = raw.AccessTTL
	}
	if raw.RefreshTTL != 0 {
		cfg.Token.RefreshTTL = raw.RefreshTTL
	}
	if raw.Leeway != 0 {
		cfg.Token.Leeway = raw.Leeway
	}
	if raw.InvitationExpiryGrace != 0 {
		cfg.Token.InvitationExpiryGrace = raw.InvitationExpiryGrace
	}
	if raw.PasswordMaxAge != 0 {
		cfg.Password.MaxAge = raw.PasswordMaxAge
	}
	if raw.SessionLifecycle != "" {
		cfg.Session.Lifecycle = session.Lifecycle(raw.SessionLifecycle)
	}
	if raw.SessionIdleTimeout != 0 {
		cfg.Session.IdleTimeout = raw.SessionIdleTimeout
	}
	if raw.SessionKeyPrefix != "" {
		cfg.Session.KeyPrefix = raw.SessionKeyPrefix
	}
	if raw.SessionRetention != 0 {
		cfg.Session.Retention = raw.SessionRetention
	}
	if raw.ConfirmationTTL != 0 {
		cfg.Confirmation.TTL = raw.ConfirmationTTL
	}
	if raw.ConfirmationDigits != 0 {
		cfg.Confirmation.CodeDigits = raw.ConfirmationDigits
	}
	if raw.ConfirmationAttempts != 0 {
		cfg.Confirmation.MaxAttempts = raw.ConfirmationAttempts
	}
	if raw.MFAAllowToggle != nil {
		cfg.MFA.AllowToggle = *raw.MFAAllowToggle
	}
	cfg.MFA.Required = raw.MFARequired
	if raw.EventBufferSize != 0 {
		cfg.Events.BufferSize = raw.EventBufferSize
	}
	cfg.Metrics.Enabled = raw.MetricsEnabled
	cfg.Metrics.EnableLatency = raw.MetricsLatency
	cfg.TestEnvironment = raw.TestEnvironment

	return cfg, nil
}
