package token

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(Config{
		SessionSecret:         []byte("session-secret-0123456789abcdef"),
		SecondarySecret:       []byte("secondary-secret-0123456789abcd"),
		Issuer:                "authcore-test",
		Audience:              "app",
		InvitationExpiryGrace: time.Hour,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func TestNewCodecValidation(t *testing.T) {
	if _, err := NewCodec(Config{
		SessionSecret:   []byte("short"),
		SecondarySecret: []byte("secondary-secret-0123456789abcd"),
	}); err == nil {
		t.Fatal("short session secret must be rejected")
	}
	same := []byte("identical-secret-0123456789abcd")
	if _, err := NewCodec(Config{SessionSecret: same, SecondarySecret: same}); err == nil {
		t.Fatal("identical secrets must be rejected")
	}
}

func TestRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	user := UserClaims{
		ProjectID: "proj-1",
		ClientID:  "client-1",
		Method:    "EMAIL_PASSWORD",
		AuthStage: "NORMAL",
		Extra:     map[string]any{"tenant": "acme"},
	}
	before := time.Now()
	tok, err := codec.Encode(TypeRefresh, "user-42", user, time.Hour)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	claims, err := codec.Decode(tok, TypeRefresh)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.TokenType != "refresh" || claims.Identity != "user-42" {
		t.Fatalf("claims: %+v", claims)
	}
	if claims.User.ProjectID != "proj-1" || claims.User.AuthStage != "NORMAL" {
		t.Fatalf("user claims: %+v", claims.User)
	}
	if claims.User.Extra["tenant"] != "acme" {
		t.Fatalf("extra claims: %+v", claims.User.Extra)
	}
	if claims.ID == "" {
		t.Fatal("jti must be stamped")
	}
	if claims.IssuedAt == nil || claims.NotBefore == nil || claims.ExpiresAt == nil {
		t.Fatal("iat/nbf/exp must be stamped")
	}
	wantExp := before.Add(time.Hour)
	if d := claims.ExpiresAt.Time.Sub(wantExp); d < -5*time.Second || d > 5*time.Second {
		t.Fatalf("exp off by %v", d)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	codec := newTestCodec(t)

	tok, err := codec.Encode(TypeRefresh, "user-42", UserClaims{}, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	claims, err := codec.Decode(tok, TypeRefresh)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Fatal("zero ttl must omit exp")
	}
}

func TestEncodeRejectsEmptyIdentity(t *testing.T) {
	codec := newTestCodec(t)
	if _, err := codec.Encode(TypeAccess, "", UserClaims{}, time.Hour); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
}

func TestDecodeWrongType(t *testing.T) {
	codec := newTestCodec(t)

	tok, err := codec.Encode(TypeRefresh, "user-42", UserClaims{}, time.Hour)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := codec.Decode(tok, TypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected wrong type, got %v", err)
	}
}

func TestDecodeExpired(t *testing.T) {
	codec := newTestCodec(t)

	tok, err := codec.Encode(TypeAccess, "user-42", UserClaims{}, -time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := codec.Decode(tok, TypeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	codec := newTestCodec(t)
	if _, err := codec.Decode("not-a-token", TypeAccess); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestSecretSeparation(t *testing.T) {
	codec := newTestCodec(t)

	// Confirmation tokens sign with the secondary secret; verifying them
	// against the session secret must fail.
	tok, err := codec.Encode(TypeConfirmation, "user-42", UserClaims{}, time.Hour)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := codec.Decode(tok, TypeAccess); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("cross-secret decode must fail the signature, got %v", err)
	}
	if _, err := codec.Decode(tok, TypeConfirmation); err != nil {
		t.Fatalf("same-secret decode: %v", err)
	}
}

func TestDeriveAccessCarriesClaims(t *testing.T) {
	codec := newTestCodec(t)

	refreshStr, err := codec.Encode(TypeRefresh, "user-42", UserClaims{
		Method:    "TWO_FACTOR_AUTH",
		AuthStage: "SECOND",
	}, time.Hour)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	refresh, err := codec.Decode(refreshStr, TypeRefresh)
	if err != nil {
		t.Fatalf("decode refresh: %v", err)
	}

	accessStr, err := codec.DeriveAccess(refresh, 15*time.Minute, true)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	access, err := codec.Decode(accessStr, TypeAccess)
	if err != nil {
		t.Fatalf("decode access: %v", err)
	}
	if access.Identity != "user-42" || access.User.AuthStage != "SECOND" {
		t.Fatalf("derived claims: %+v", access)
	}
	if !access.Fresh {
		t.Fatal("fresh marker lost")
	}
	if access.ID == refresh.ID {
		t.Fatal("derived token must get its own jti")
	}
}

func TestDecodeAllowExpiredInvitationGrace(t *testing.T) {
	codec := newTestCodec(t)

	tok, err := codec.Encode(TypeInvitation, "user-42", UserClaims{}, -time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Strict decode refuses it.
	if _, err := codec.Decode(tok, TypeInvitation); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("strict decode: %v", err)
	}
	// Within the grace window the bypass accepts it.
	if _, err := codec.DecodeAllowExpired(tok, TypeInvitation); err != nil {
		t.Fatalf("grace decode: %v", err)
	}

	// The bypass is invitation-only.
	expired, err := codec.Encode(TypeAccess, "user-42", UserClaims{}, -time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := codec.DecodeAllowExpired(expired, TypeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("non-invitation bypass: %v", err)
	}
}

func TestDecodeAllowExpiredStillChecksIssuerAndAudience(t *testing.T) {
	codec := newTestCodec(t)

	// Same secrets, foreign issuer: the grace decode bypasses exp only, so
	// the issuer check must still fire.
	foreign, err := NewCodec(Config{
		SessionSecret:         []byte("session-secret-0123456789abcdef"),
		SecondarySecret:       []byte("secondary-secret-0123456789abcd"),
		Issuer:                "someone-else",
		Audience:              "app",
		InvitationExpiryGrace: time.Hour,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	tok, err := foreign.Encode(TypeInvitation, "user-42", UserClaims{}, -time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := codec.DecodeAllowExpired(tok, TypeInvitation); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("foreign issuer must be rejected, got %v", err)
	}

	wrongAud, err := NewCodec(Config{
		SessionSecret:         []byte("session-secret-0123456789abcdef"),
		SecondarySecret:       []byte("secondary-secret-0123456789abcd"),
		Issuer:                "authcore-test",
		Audience:              "other-app",
		InvitationExpiryGrace: time.Hour,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	tok, err = wrongAud.Encode(TypeInvitation, "user-42", UserClaims{}, -time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := codec.DecodeAllowExpired(tok, TypeInvitation); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("foreign audience must be rejected, got %v", err)
	}
}

func TestDecodeAllowExpiredBeyondGrace(t *testing.T) {
	codec, err := NewCodec(Config{
		SessionSecret:         []byte("session-secret-0123456789abcdef"),
		SecondarySecret:       []byte("secondary-secret-0123456789abcd"),
		InvitationExpiryGrace: time.Second,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	tok, err := codec.Encode(TypeInvitation, "user-42", UserClaims{}, -time.Minute)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := codec.DecodeAllowExpired(tok, TypeInvitation); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("beyond grace must fail, got %v", err)
	}
}
