package authcore

import (
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/internal/flows"
	"github.com/meenu-gupta/authcore/internal/metrics"
	"github.com/meenu-gupta/authcore/internal/stores"
	"github.com/meenu-gupta/authcore/password"
	"github.com/meenu-gupta/authcore/session"
	"github.com/meenu-gupta/authcore/token"
)

// Builder assembles an Engine. Chain the With methods and finish with
// Build; a Builder is single-use and not safe for concurrent mutation.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	users     identity.UserStore
	sessions  session.Store
	sink      events.Sink
	codes     flows.ConfirmationCodes
	testCreds flows.TestCredentials
	logger    zerolog.Logger
	hasLogger bool
	clock     func() time.Time
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration. Call it before the other
// With methods if both are used; Build validates the final result.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used for the default session and
// confirmation-code stores. Unnecessary when both stores are injected.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore supplies the user persistence backend. Required.
func (b *Builder) WithUserStore(users identity.UserStore) *Builder {
	b.users = users
	return b
}

// WithSessionStore overrides the redis-backed device-session store.
func (b *Builder) WithSessionStore(sessions session.Store) *Builder {
	b.sessions = sessions
	return b
}

// WithEventSink supplies the notification collaborator. Without one,
// pre events always pass and post events are discarded.
func (b *Builder) WithEventSink(sink events.Sink) *Builder {
	b.sink = sink
	return b
}

// WithConfirmationCodes overrides the redis-backed one-time code store.
func (b *Builder) WithConfirmationCodes(codes flows.ConfirmationCodes) *Builder {
	b.codes = codes
	return b
}

// WithTestCredentials registers fixed-code test identities. Build fails
// unless the configuration also sets TestEnvironment.
func (b *Builder) WithTestCredentials(creds flows.TestCredentials) *Builder {
	b.testCreds = creds
	return b
}

// WithLogger replaces the default stderr logger.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	b.hasLogger = true
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the wiring and returns a ready Engine. The returned
// engine owns the event dispatcher; call Close when done with it.
func (b *Builder) Build() (*Engine, error) {
	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("authcore: user store is required")
	}
	if b.testCreds != nil && !cfg.TestEnvironment {
		return nil, errors.New("authcore: test credentials require a test environment configuration")
	}

	codec, err := token.NewCodec(token.Config{
		SessionSecret:         cfg.Token.SessionSecret,
		SecondarySecret:       cfg.Token.SecondarySecret,
		Issuer:                cfg.Token.Issuer,
		Audience:              cfg.Token.Audience,
		Leeway:                cfg.Token.Leeway,
		InvitationExpiryGrace: cfg.Token.InvitationExpiryGrace,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("authcore: a session store or redis client is required")
		}
		sessions, err = session.NewRedisStore(b.redis, cfg.Session.KeyPrefix, cfg.Session.Lifecycle, cfg.Session.Retention)
		if err != nil {
			return nil, err
		}
	}

	codes := b.codes
	if codes == nil {
		if b.redis == nil {
			return nil, errors.New("authcore: a confirmation code store or redis client is required")
		}
		codes = stores.NewConfirmationStore(b.redis, cfg.Confirmation.KeyPrefix, cfg.Confirmation.CodeDigits, cfg.Confirmation.MaxAttempts)
	}

	log := b.logger
	if !b.hasLogger {
		log = zerolog.New(os.Stderr).With().Timestamp().Str("component", "authcore").Logger()
	}

	idleTimeout := cfg.Session.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = cfg.Token.AccessTTL
	}

	pipeline := events.NewPipeline(events.DispatcherConfig{
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, b.sink, log)

	deps := flows.Deps{
		Users:     b.users,
		Sessions:  sessions,
		Codec:     codec,
		Passwords: hasher,
		Codes:     codes,
		Events:    pipeline,
		TestCreds: b.testCreds,
		Logger:    log,
		Clock:     b.clock,
		Config: flows.Config{
			AccessTTL:          cfg.Token.AccessTTL,
			RefreshTTL:         cfg.Token.RefreshTTL,
			SessionIdleTimeout: idleTimeout,
			PasswordMaxAge:     cfg.Password.MaxAge,
			ConfirmationTTL:    cfg.Confirmation.TTL,
			Lifecycle:          cfg.Session.Lifecycle,
			AllowMFAToggle:     cfg.MFA.AllowToggle,
			MFARequired:        cfg.MFA.Required,
			TestEnvironment:    cfg.TestEnvironment,
		},
	}

	return &Engine{
		service: flows.New(deps),
		codec:   codec,
		events:  pipeline,
		metrics: metrics.New(metrics.Config{
			Enabled:       cfg.Metrics.Enabled,
			EnableLatency: cfg.Metrics.EnableLatency,
		}),
		log: log,
	}, nil
}
