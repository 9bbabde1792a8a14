package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/store/memory"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SessionSecret = []byte("session-secret-0123456789abcdef")
	cfg.Token.SecondarySecret = []byte("secondary-secret-0123456789abcd")
	cfg.Token.Issuer = "authcore-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine *Engine
	users  *memory.UserStore
	sink   *events.ChannelSink
}

func newTestEngine(t *testing.T, mutate func(*Config), build func(*Builder)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	users := memory.NewUserStore()
	sink := events.NewChannelSink(32)
	b := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(users).
		WithEventSink(sink).
		WithLogger(zerolog.Nop())
	if build != nil {
		build(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, users: users, sink: sink}
}

// waitEvent drains the sink until an event of the wanted type shows up.
func waitEvent(t *testing.T, sink *events.ChannelSink, typ events.Type) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event arrived", typ)
		}
	}
}

func TestEngineEmailPasswordJourney(t *testing.T) {
	env := newTestEngine(t, nil, nil)
	ctx := context.Background()

	signedUp, err := env.engine.SignUp(ctx, SignUpRequest{
		Method:   MethodEmailPassword,
		Email:    "journey@user.test",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	// Password sign-in before email verification fails closed.
	if _, err := env.engine.SignIn(ctx, SignInRequest{
		Method:   MethodEmailPassword,
		Email:    "journey@user.test",
		Password: "correct-horse",
	}); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("unverified email sign-in: %v", err)
	}

	if _, err := env.engine.RequestConfirmation(ctx, RequestConfirmationRequest{
		Method: MethodEmail,
		Email:  "journey@user.test",
	}); err != nil {
		t.Fatalf("request confirmation: %v", err)
	}
	code := waitEvent(t, env.sink, events.ConfirmationRequested).Metadata["code"]
	if code == "" {
		t.Fatal("issued code must reach the sink")
	}

	// The emailed code both signs in and verifies the email.
	res, err := env.engine.SignIn(ctx, SignInRequest{
		Method:           MethodEmail,
		Email:            "journey@user.test",
		ConfirmationCode: code,
		DeviceAgent:      "ios-app",
	})
	if err != nil {
		t.Fatalf("code sign-in: %v", err)
	}
	if res.UID != signedUp.UID || res.AuthStage != StageNormal {
		t.Fatalf("result = %+v", res)
	}

	res, err = env.engine.SignIn(ctx, SignInRequest{
		Method:      MethodEmailPassword,
		Email:       "journey@user.test",
		Password:    "correct-horse",
		DeviceAgent: "ios-app",
	})
	if err != nil {
		t.Fatalf("password sign-in: %v", err)
	}

	claims, err := env.engine.DecodeAccessToken(res.AuthToken)
	if err != nil {
		t.Fatalf("decode access: %v", err)
	}
	if claims.Identity != res.UID || !claims.Fresh {
		t.Fatalf("claims = %+v", claims)
	}

	refreshed, err := env.engine.RefreshToken(ctx, RefreshRequest{
		RefreshToken: res.RefreshToken,
		DeviceAgent:  "ios-app",
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken != "" {
		t.Fatal("single-factor sessions must not rotate the refresh token")
	}
	derived, err := env.engine.DecodeAccessToken(refreshed.AuthToken)
	if err != nil {
		t.Fatalf("decode refreshed access: %v", err)
	}
	if derived.Fresh {
		t.Fatal("refreshed access tokens must not be fresh")
	}

	out := SignOutRequest{UserID: res.UID, RefreshToken: res.RefreshToken, DeviceAgent: "ios-app"}
	if _, err := env.engine.SignOut(ctx, out); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if _, err := env.engine.SignOut(ctx, out); !errors.Is(err, ErrUserAlreadySignedOut) {
		t.Fatalf("second signout: %v", err)
	}
	if _, err := env.engine.RefreshToken(ctx, RefreshRequest{
		RefreshToken: res.RefreshToken,
		DeviceAgent:  "ios-app",
	}); !errors.Is(err, ErrUserAlreadySignedOut) {
		t.Fatalf("refresh after signout: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricSignInSuccess] != 2 {
		t.Fatalf("signin success counter = %d", snap.Counters[MetricSignInSuccess])
	}
	if snap.Counters[MetricSignInFailure] != 1 {
		t.Fatalf("signin failure counter = %d", snap.Counters[MetricSignInFailure])
	}
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("refresh success counter = %d", snap.Counters[MetricRefreshSuccess])
	}
	if snap.Counters[MetricRefreshStale] != 1 {
		t.Fatalf("refresh stale counter = %d", snap.Counters[MetricRefreshStale])
	}
}

// testCreds is a fixed-code TestCredentialsProvider.
type testCreds map[string]string

func (c testCreds) ConfirmationCode(recipient string) (string, bool) {
	code, ok := c[recipient]
	return code, ok
}

func seedMFAUser(t *testing.T, env *testEnv, email, phone, password string) string {
	t.Helper()

	// The hasher is internal to the engine, so seed through the sign-up and
	// attribute paths instead of writing hashes directly.
	res, err := env.engine.SignUp(context.Background(), SignUpRequest{
		Method:   MethodEmailPassword,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("seed signup: %v", err)
	}

	verified := true
	update := identity.AttributeUpdate{
		EmailVerified:       &verified,
		PhoneNumber:         &phone,
		PhoneNumberVerified: &verified,
		MFAIdentifiers: &[]identity.AuthIdentifier{{
			Type:     identity.IdentifierPhoneNumber,
			Value:    phone,
			Verified: true,
		}},
	}
	if err := env.users.SetAuthAttributes(context.Background(), res.UID, update); err != nil {
		t.Fatalf("seed attributes: %v", err)
	}
	return res.UID
}

func TestEngineTwoFactorJourney(t *testing.T) {
	creds := testCreds{"+15551234567": "111222"}
	env := newTestEngine(t,
		func(cfg *Config) { cfg.TestEnvironment = true },
		func(b *Builder) { b.WithTestCredentials(creds) },
	)
	ctx := context.Background()

	uid := seedMFAUser(t, env, "mfa@user.test", "+15551234567", "correct-horse")

	first, err := env.engine.SignIn(ctx, SignInRequest{
		Method:      MethodTwoFactorAuth,
		Email:       "mfa@user.test",
		Password:    "correct-horse",
		DeviceAgent: "ios-app",
	})
	if err != nil {
		t.Fatalf("first factor: %v", err)
	}
	if first.AuthStage != StageFirst {
		t.Fatalf("stage = %s", first.AuthStage)
	}

	second, err := env.engine.SignIn(ctx, SignInRequest{
		Method:           MethodTwoFactorAuth,
		RefreshToken:     first.RefreshToken,
		ConfirmationCode: "111222",
		DeviceAgent:      "ios-app",
	})
	if err != nil {
		t.Fatalf("second factor: %v", err)
	}
	if second.UID != uid || second.AuthStage != StageSecond {
		t.Fatalf("second = %+v", second)
	}

	// Privileged sessions rotate on refresh; the loser of the rotation race
	// sees a missing session.
	rotated, err := env.engine.RefreshToken(ctx, RefreshRequest{
		RefreshToken: second.RefreshToken,
		Password:     "correct-horse",
		DeviceAgent:  "ios-app",
	})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.RefreshToken == "" {
		t.Fatal("second-stage refresh must rotate the token")
	}
	if _, err := env.engine.RefreshToken(ctx, RefreshRequest{
		RefreshToken: second.RefreshToken,
		Password:     "correct-horse",
		DeviceAgent:  "ios-app",
	}); !errors.Is(err, ErrDeviceSessionDoesNotExist) {
		t.Fatalf("stale refresh: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshStale] != 1 {
		t.Fatalf("stale counter = %d", snap.Counters[MetricRefreshStale])
	}
}

func TestEngineMFAAutoUpgrade(t *testing.T) {
	creds := testCreds{"mfa-ready@user.test": "333444"}
	env := newTestEngine(t,
		func(cfg *Config) { cfg.TestEnvironment = true },
		func(b *Builder) { b.WithTestCredentials(creds) },
	)
	ctx := context.Background()

	seedMFAUser(t, env, "mfa-ready@user.test", "+15557654321", "correct-horse")

	// A plain emailed-code sign-in on a fully MFA-ready account mints a
	// SECOND-stage session directly.
	res, err := env.engine.SignIn(ctx, SignInRequest{
		Method:           MethodEmail,
		Email:            "mfa-ready@user.test",
		ConfirmationCode: "333444",
		DeviceAgent:      "ios-app",
	})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	if res.AuthStage != StageSecond {
		t.Fatalf("stage = %s", res.AuthStage)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricSignInMFAUpgrade] != 1 {
		t.Fatalf("mfa upgrade counter = %d", snap.Counters[MetricSignInMFAUpgrade])
	}
}

func TestEngineCheckAndDelete(t *testing.T) {
	env := newTestEngine(t, nil, nil)
	ctx := context.Background()

	uid := seedMFAUser(t, env, "probe@user.test", "+15550001111", "correct-horse")

	check, err := env.engine.CheckAuthAttributes(ctx, CheckAuthAttributesRequest{Email: "probe@user.test"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.PasswordSet || !check.EligibleForMFA {
		t.Fatalf("check = %+v", check)
	}

	if err := env.engine.DeleteUser(ctx, uid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.engine.CheckAuthAttributes(ctx, CheckAuthAttributesRequest{Email: "probe@user.test"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deleted user probe: %v", err)
	}
}

func TestEngineCloseRejectsOperations(t *testing.T) {
	env := newTestEngine(t, nil, nil)

	env.engine.Close()
	env.engine.Close() // idempotent

	if _, err := env.engine.SignIn(context.Background(), SignInRequest{
		Method: MethodEmailPassword,
		Email:  "anyone@user.test",
	}); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("closed engine sign-in: %v", err)
	}
}
