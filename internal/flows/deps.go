// Package flows implements the authentication use cases as pure functions
// over an explicit dependency set. The root engine wires Deps once and
// delegates every request to the matching Run function.
package flows

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/password"
	"github.com/meenu-gupta/authcore/session"
	"github.com/meenu-gupta/authcore/token"
)

// ConfirmationCodes issues and consumes one-time confirmation codes keyed
// by delivery channel and recipient.
type ConfirmationCodes interface {
	Issue(ctx context.Context, channel, recipient string, ttl time.Duration) (string, error)
	Verify(ctx context.Context, channel, recipient, code string) error
}

// TestCredentials supplies fixed confirmation codes for designated test
// identities. It is only ever consulted when the deployment runs in a
// test environment; production wiring leaves it nil.
type TestCredentials interface {
	// ConfirmationCode returns the code the recipient must present, and
	// whether the recipient is a registered test identity at all.
	ConfirmationCode(recipient string) (code string, ok bool)
}

// Config carries the flow-level policy knobs.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SessionIdleTimeout bounds how long a SECOND-stage session may sit
	// idle before a refresh without re-auth fails.
	SessionIdleTimeout time.Duration
	// PasswordMaxAge fails sign-in closed once a password is older than
	// this. Zero disables the check.
	PasswordMaxAge  time.Duration
	ConfirmationTTL time.Duration
	Lifecycle       session.Lifecycle
	// AllowMFAToggle permits callers to flip mfaEnabled through
	// SetAuthAttributes. When false the field is ignored.
	AllowMFAToggle bool
	// MFARequired is the deployment-wide MFA policy reported by
	// CheckAuthAttributes.
	MFARequired     bool
	TestEnvironment bool
}

// Deps is the immutable dependency set shared by all flows.
type Deps struct {
	Users     identity.UserStore
	Sessions  session.Store
	Codec     *token.Codec
	Passwords *password.Hasher
	Codes     ConfirmationCodes
	Events    *events.Pipeline
	TestCreds TestCredentials
	Logger    zerolog.Logger
	Config    Config
	Clock     func() time.Time
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// event builds a success notification with the shared envelope fields.
func (d Deps) event(typ events.Type, userID, clientID, projectID, deviceAgent string, meta map[string]string) events.Event {
	return events.Event{
		Timestamp:   d.now(),
		Type:        typ,
		UserID:      userID,
		ProjectID:   projectID,
		ClientID:    clientID,
		DeviceAgent: deviceAgent,
		Success:     true,
		Metadata:    meta,
	}
}

// SignUpRequest carries a registration.
type SignUpRequest struct {
	Method      identity.SignInMethod
	Email       string
	PhoneNumber string
	Password    string
	DisplayName string
	ClientID    string
	ProjectID   string
	Attributes  map[string]any
}

// SignUpResult is the registration outcome.
type SignUpResult struct {
	UID string
}

// SignInRequest carries one sign-in attempt. Which fields are meaningful
// depends on the method and inferred stage.
type SignInRequest struct {
	Method           identity.SignInMethod
	Email            string
	PhoneNumber      string
	Password         string
	ConfirmationCode string
	RefreshToken     string
	DeviceAgent      string
	ClientID         string
	ProjectID        string
}

// SignInResult is the sign-in outcome.
type SignInResult struct {
	UID          string
	AuthToken    string
	RefreshToken string
	ExpiresIn    int64
	AuthStage    identity.AuthStage
}

// RefreshRequest carries a token refresh. Password+Email or DeviceToken
// optionally re-authenticate a SECOND-stage session.
type RefreshRequest struct {
	RefreshToken string
	Password     string
	Email        string
	DeviceToken  string
	DeviceAgent  string
}

// RefreshResult is the refresh outcome. RefreshToken is empty when the
// token was not rotated.
type RefreshResult struct {
	AuthToken             string
	ExpiresIn             int64
	RefreshToken          string
	RefreshTokenExpiresIn int64
}

// SetAuthAttributesRequest carries an attribute mutation authorized by a
// token. Empty string fields and a nil MFAEnabled mean "not supplied".
type SetAuthAttributesRequest struct {
	AuthToken        string
	TokenType        string
	Email            string
	PhoneNumber      string
	Password         string
	OldPassword      string
	DeviceToken      string
	ConfirmationCode string
	MFAEnabled       *bool
	DeviceAgent      string
}

// SetAuthAttributesResult reports what was granted. PhoneNumberUpdated is
// false when the number was stored unverified pending confirmation.
// RefreshToken replaces the caller's token after a password rotation that
// was authorized by a refresh token.
type SetAuthAttributesResult struct {
	UID                   string
	PhoneNumberUpdated    bool
	RefreshToken          string
	RefreshTokenExpiresIn int64
}

// CheckAuthAttributesRequest selects a user by exactly one of AuthToken,
// Email, or PhoneNumber.
type CheckAuthAttributesRequest struct {
	AuthToken   string
	Email       string
	PhoneNumber string
	ClientID    string
	ProjectID   string
}

// CheckAuthAttributesResult is the read-only attribute probe outcome.
type CheckAuthAttributesResult struct {
	Email               string
	PhoneNumber         string
	EmailVerified       bool
	PhoneNumberVerified bool
	PasswordSet         bool
	EligibleForMFA      bool
	MFAEnabled          bool
	MFARequired         bool
}

// SignOutRequest invalidates one device session. DeviceToken additionally
// revokes that device's trust identifier under the append-only lifecycle.
type SignOutRequest struct {
	UserID       string
	RefreshToken string
	DeviceAgent  string
	DeviceToken  string
}

// SignOutResult is the sign-out outcome.
type SignOutResult struct {
	ID string
}

// RequestConfirmationRequest asks for a one-time code to be issued and
// handed to the event sink for delivery.
type RequestConfirmationRequest struct {
	Method      identity.SignInMethod
	Email       string
	PhoneNumber string
	ClientID    string
	ProjectID   string
}

// RequestConfirmationResult reports the issued code's lifetime.
type RequestConfirmationResult struct {
	ExpiresIn int64
}
