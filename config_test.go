package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown lifecycle", func(c *Config) { c.Session.Lifecycle = "ring-buffer" }},
		{"negative access ttl", func(c *Config) { c.Token.AccessTTL = -time.Minute }},
		{"access outlives refresh", func(c *Config) {
			c.Token.AccessTTL = 48 * time.Hour
			c.Token.RefreshTTL = time.Hour
		}},
		{"negative idle timeout", func(c *Config) { c.Session.IdleTimeout = -time.Second }},
		{"zero confirmation ttl", func(c *Config) { c.Confirmation.TTL = 0 }},
		{"negative password max age", func(c *Config) { c.Password.MaxAge = -time.Hour }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHCORE_SESSION_SECRET", "session-secret-0123456789abcdef")
	t.Setenv("AUTHCORE_SECONDARY_SECRET", "secondary-secret-0123456789abcd")
	t.Setenv("AUTHCORE_ACCESS_TTL", "5m")
	t.Setenv("AUTHCORE_SESSION_LIFECYCLE", string(LifecycleAppendOnly))
	t.Setenv("AUTHCORE_CONFIRMATION_DIGITS", "8")
	t.Setenv("AUTHCORE_MFA_ALLOW_TOGGLE", "false")
	t.Setenv("AUTHCORE_METRICS_ENABLED", "true")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if string(cfg.Token.SessionSecret) != "session-secret-0123456789abcdef" {
		t.Fatal("session secret must come from the environment")
	}
	if cfg.Token.AccessTTL != 5*time.Minute {
		t.Fatalf("access ttl = %s", cfg.Token.AccessTTL)
	}
	if cfg.Session.Lifecycle != LifecycleAppendOnly {
		t.Fatalf("lifecycle = %s", cfg.Session.Lifecycle)
	}
	if cfg.Confirmation.CodeDigits != 8 {
		t.Fatalf("digits = %d", cfg.Confirmation.CodeDigits)
	}
	if cfg.MFA.AllowToggle {
		t.Fatal("toggle override must stick")
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("metrics toggle must stick")
	}
	// Untouched fields keep their defaults.
	if cfg.Token.RefreshTTL != DefaultConfig().Token.RefreshTTL {
		t.Fatalf("refresh ttl = %s", cfg.Token.RefreshTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.Token.SessionSecret[0] ^= 0xff
	if cfg.Token.SessionSecret[0] == clone.Token.SessionSecret[0] {
		t.Fatal("clone must not share secret backing arrays")
	}
}
