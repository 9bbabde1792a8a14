// Package token encodes and decodes the signed tokens exchanged with
// callers. Access and refresh tokens share one signing secret; confirmation,
// invitation, and custom tokens use a second secret so a leaked session
// secret does not compromise invite or confirmation flows.
package token

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type tags the token kind inside the claim set.
type Type string

const (
	// TypeAccess is the short-lived credential authorizing API calls.
	TypeAccess Type = "access"
	// TypeRefresh is the longer-lived credential minting access tokens.
	TypeRefresh Type = "refresh"
	// TypeConfirmation carries a pending email/phone confirmation.
	TypeConfirmation Type = "confirmation"
	// TypeInvitation carries an account invitation.
	TypeInvitation Type = "invitation"
	// TypeCustom is reserved for collaborator-defined tokens.
	TypeCustom Type = "custom"
)

var (
	// ErrTokenExpired is returned when a token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenType is returned when the type claim does not match the
	// expected kind.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrMalformedToken is returned for signature failures, undecodable
	// payloads, and a missing identity claim.
	ErrMalformedToken = errors.New("malformed token")
	// ErrEncoding is returned when claims cannot be serialized or signed.
	ErrEncoding = errors.New("token encoding failed")
)

// UserClaims are the business attributes stamped into session tokens. They
// survive encode/decode round-trips unchanged and are carried forward from
// refresh tokens into derived access tokens.
type UserClaims struct {
	ProjectID string         `json:"projectId,omitempty"`
	ClientID  string         `json:"clientId,omitempty"`
	Method    string         `json:"method,omitempty"`
	AuthStage string         `json:"authStage,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Claims is the full decoded claim set.
type Claims struct {
	TokenType string     `json:"type"`
	Identity  string     `json:"identity"`
	User      UserClaims `json:"userClaims"`
	// Fresh marks an access token minted directly by a sign-in rather than
	// by a refresh. Only access tokens carry it.
	Fresh bool `json:"fresh,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the codec signing material and verification constraints.
type Config struct {
	// SessionSecret signs access and refresh tokens.
	SessionSecret []byte
	// SecondarySecret signs confirmation, invitation, and custom tokens.
	SecondarySecret []byte
	Issuer          string
	Audience        string
	Leeway          time.Duration
	// InvitationExpiryGrace bounds how long past exp an invitation token is
	// still accepted by DecodeAllowExpired.
	InvitationExpiryGrace time.Duration
}

// Codec mints and verifies tokens. Operations are pure and synchronous;
// a Codec is safe for concurrent use.
type Codec struct {
	config Config
}

// NewCodec validates the configuration and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.SessionSecret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	if len(cfg.SecondarySecret) < 16 {
		return nil, errors.New("secondary secret must be at least 16 bytes")
	}
	if subtle.ConstantTimeCompare(cfg.SessionSecret, cfg.SecondarySecret) == 1 {
		return nil, errors.New("session and secondary secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.InvitationExpiryGrace <= 0 {
		cfg.InvitationExpiryGrace = 24 * time.Hour
	}
	return &Codec{config: cfg}, nil
}

// Encode mints a token of the given type. iat, nbf, and a random jti are
// always stamped; exp is set only for a nonzero ttl, so a zero ttl
// produces a token that never expires by itself.
func (c *Codec) Encode(typ Type, identity string, user UserClaims, ttl time.Duration) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("%w: empty identity", ErrEncoding)
	}

	now := time.Now()
	claims := Claims{
		TokenType: string(typ),
		Identity:  identity,
		User:      user,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secretFor(typ))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// DeriveAccess mints an access token from a decoded refresh token's claims.
// Identity and user claims carry over unchanged; fresh marks tokens minted
// by a direct sign-in.
func (c *Codec) DeriveAccess(refresh *Claims, ttl time.Duration, fresh bool) (string, error) {
	if refresh == nil || refresh.Identity == "" {
		return "", fmt.Errorf("%w: no refresh claims", ErrEncoding)
	}

	now := time.Now()
	claims := Claims{
		TokenType: string(TypeAccess),
		Identity:  refresh.Identity,
		User:      refresh.User,
		Fresh:     fresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secretFor(TypeAccess))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Decode verifies signature, audience, and expiry, then enforces the claim
// shape: the type claim must equal expected and the identity claim must be
// present.
func (c *Codec) Decode(tokenStr string, expected Type) (*Claims, error) {
	claims, err := c.parse(tokenStr, expected, false)
	if err != nil {
		return nil, err
	}
	return c.checkShape(claims, expected)
}

// DecodeAllowExpired is the time-boxed expiry bypass used only for
// invitation-token verification of already-consumed invites. Any other
// expected type falls back to strict decoding.
func (c *Codec) DecodeAllowExpired(tokenStr string, expected Type) (*Claims, error) {
	if expected != TypeInvitation {
		return c.Decode(tokenStr, expected)
	}

	claims, err := c.parse(tokenStr, expected, false)
	if err == nil {
		return c.checkShape(claims, expected)
	}
	if !errors.Is(err, ErrTokenExpired) {
		return nil, err
	}

	claims, err = c.parse(tokenStr, expected, true)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	if time.Since(claims.ExpiresAt.Time) > c.config.InvitationExpiryGrace {
		return nil, ErrTokenExpired
	}
	return c.checkShape(claims, expected)
}

func (c *Codec) parse(tokenStr string, expected Type, skipValidation bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if skipValidation {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		if c.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(c.config.Leeway))
		}
		if c.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(c.config.Issuer))
		}
		if c.config.Audience != "" {
			options = append(options, jwt.WithAudience(c.config.Audience))
		}
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return c.secretFor(expected), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || (!skipValidation && !tok.Valid) {
		return nil, ErrMalformedToken
	}
	if skipValidation {
		// Only the exp check is bypassed; the remaining registered claims
		// must still hold.
		if c.config.Issuer != "" && claims.Issuer != c.config.Issuer {
			return nil, fmt.Errorf("%w: issuer mismatch", ErrMalformedToken)
		}
		if c.config.Audience != "" {
			matched := false
			for _, aud := range claims.Audience {
				if subtle.ConstantTimeCompare([]byte(aud), []byte(c.config.Audience)) == 1 {
					matched = true
				}
			}
			if !matched {
				return nil, fmt.Errorf("%w: audience mismatch", ErrMalformedToken)
			}
		}
		if claims.NotBefore != nil && time.Now().Add(c.config.Leeway).Before(claims.NotBefore.Time) {
			return nil, fmt.Errorf("%w: token not yet valid", ErrMalformedToken)
		}
	}
	return claims, nil
}

func (c *Codec) checkShape(claims *Claims, expected Type) (*Claims, error) {
	if claims.TokenType != string(expected) {
		return nil, ErrWrongTokenType
	}
	if claims.Identity == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func (c *Codec) secretFor(typ Type) []byte {
	switch typ {
	case TypeAccess, TypeRefresh:
		return c.config.SessionSecret
	default:
		return c.config.SecondarySecret
	}
}
