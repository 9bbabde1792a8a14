package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/meenu-gupta/authcore/session"
)

// TokenConfig holds signing material and token lifetimes. AccessTTL or
// RefreshTTL of zero mints tokens without an exp claim; expiry-free
// clients are a supported configuration.
type TokenConfig struct {
	// SessionSecret signs access and refresh tokens.
	SessionSecret []byte
	// SecondarySecret signs confirmation, invitation, and custom tokens.
	// It must differ from SessionSecret.
	SecondarySecret []byte
	Issuer          string
	Audience        string
	Leeway          time.Duration
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	// InvitationExpiryGrace bounds the expired-invitation decode bypass.
	InvitationExpiryGrace time.Duration
}

// PasswordConfig holds the argon2id cost parameters and the password
// age policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxAge fails sign-in closed once the password is older than this.
	// Zero disables the check.
	MaxAge time.Duration
}

// SessionConfig selects the device-session schema and its policies.
type SessionConfig struct {
	Lifecycle session.Lifecycle
	// IdleTimeout bounds refreshes of SECOND-stage sessions without
	// re-auth. Zero falls back to the access-token lifetime.
	IdleTimeout time.Duration
	KeyPrefix   string
	// Retention bounds how long redis session rows live.
	Retention time.Duration
}

// ConfirmationConfig controls one-time code issuance.
type ConfirmationConfig struct {
	TTL         time.Duration
	CodeDigits  int
	MaxAttempts int
	KeyPrefix   string
}

// MFAConfig holds the deployment MFA policy.
type MFAConfig struct {
	// AllowToggle permits callers to flip mfaEnabled via SetAuthAttributes.
	AllowToggle bool
	// Required reports deployment-wide mandatory MFA through
	// CheckAuthAttributes.
	Required bool
}

// EventsConfig controls the post-event dispatcher.
type EventsConfig struct {
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process metric recording.
type MetricsConfig struct {
	Enabled       bool
	EnableLatency bool
}

// Config is the engine configuration. Zero values fall back to
// DefaultConfig where a safe default exists; secrets never default.
type Config struct {
	Token        TokenConfig
	Password     PasswordConfig
	Session      SessionConfig
	Confirmation ConfirmationConfig
	MFA          MFAConfig
	Events       EventsConfig
	Metrics      MetricsConfig
	// TestEnvironment gates the TestCredentialsProvider. It must never be
	// set in production; Build refuses test credentials without it.
	TestEnvironment bool
}

// DefaultConfig returns the baseline configuration without secrets.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Leeway:                30 * time.Second,
			AccessTTL:             15 * time.Minute,
			RefreshTTL:            30 * 24 * time.Hour,
			InvitationExpiryGrace: 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Session: SessionConfig{
			Lifecycle: session.LifecycleSingleSlot,
			KeyPrefix: "ds",
			Retention: 45 * 24 * time.Hour,
		},
		Confirmation: ConfirmationConfig{
			TTL:         5 * time.Minute,
			CodeDigits:  6,
			MaxAttempts: 3,
			KeyPrefix:   "cc",
		},
		MFA: MFAConfig{
			AllowToggle: true,
		},
		Events: EventsConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate checks the parts of the configuration the codec and hasher do
// not check themselves.
func (c *Config) Validate() error {
	if !c.Session.Lifecycle.Valid() {
		return fmt.Errorf("config: unknown session lifecycle %q", c.Session.Lifecycle)
	}
	if c.Token.AccessTTL < 0 || c.Token.RefreshTTL < 0 {
		return errors.New("config: token lifetimes must not be negative")
	}
	if c.Token.RefreshTTL != 0 && c.Token.AccessTTL > c.Token.RefreshTTL {
		return errors.New("config: access tokens must not outlive refresh tokens")
	}
	if c.Session.IdleTimeout < 0 {
		return errors.New("config: session idle timeout must not be negative")
	}
	if c.Confirmation.TTL <= 0 {
		return errors.New("config: confirmation ttl must be positive")
	}
	if c.Password.MaxAge < 0 {
		return errors.New("config: password max age must not be negative")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	cfg.Token.SessionSecret = cloneBytes(cfg.Token.SessionSecret)
	cfg.Token.SecondarySecret = cloneBytes(cfg.Token.SecondarySecret)
	return cfg
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
