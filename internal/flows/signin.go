package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/internal/stores"
	"github.com/meenu-gupta/authcore/token"
)

// Delivery channels for confirmation codes.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Strategy authenticates one (method, stage) pair. Common post-steps
// (token minting, session bookkeeping, events) live in RunSignIn.
type Strategy interface {
	Name() string
	ResolveUser(ctx context.Context, d Deps, req SignInRequest) (*identity.AuthUser, error)
	// Validate checks credentials and performs strategy-specific identity
	// mutations such as marking an email or phone verified.
	Validate(ctx context.Context, d Deps, user *identity.AuthUser, req SignInRequest) error
	// RefreshClaims stamps the method and resulting auth stage.
	RefreshClaims(d Deps, user *identity.AuthUser, req SignInRequest) token.UserClaims
}

type strategyKey struct {
	method identity.SignInMethod
	stage  identity.AuthStage
}

var strategyTable = map[strategyKey]Strategy{
	{identity.MethodEmail, identity.StageNormal}:             emailCodeStrategy{},
	{identity.MethodPhoneNumber, identity.StageNormal}:       phoneCodeStrategy{},
	{identity.MethodEmailPassword, identity.StageNormal}:     emailPasswordStrategy{},
	{identity.MethodTwoFactorAuth, identity.StageFirst}:      twoFactorFirstStrategy{},
	{identity.MethodTwoFactorAuth, identity.StageSecond}:     twoFactorSecondStrategy{},
	{identity.MethodTwoFactorAuth, identity.StageRememberMe}: rememberMeStrategy{},
}

// StrategyFor returns the strategy registered for (method, stage).
// Unlisted pairs fail request validation.
func StrategyFor(method identity.SignInMethod, stage identity.AuthStage) (Strategy, error) {
	s, ok := strategyTable[strategyKey{method, stage}]
	if !ok {
		return nil, fmt.Errorf("%w: no sign-in strategy for method %q stage %q",
			identity.ErrInvalidRequest, method, stage)
	}
	return s, nil
}

// InferStage derives the requested auth stage from the request shape. Only
// the two-factor method is staged; every other method runs at NORMAL.
func InferStage(req SignInRequest) (identity.AuthStage, error) {
	if req.Method != identity.MethodTwoFactorAuth {
		return identity.StageNormal, nil
	}
	switch {
	case req.RefreshToken == "" && req.Password != "":
		return identity.StageFirst, nil
	case req.RefreshToken != "" && req.ConfirmationCode != "":
		return identity.StageSecond, nil
	case req.RefreshToken != "" && req.Password != "":
		return identity.StageRememberMe, nil
	default:
		return "", fmt.Errorf("%w: two-factor sign-in needs a password or a refresh token plus code",
			identity.ErrInvalidRequest)
	}
}

// RunSignIn dispatches to a strategy and performs the shared post-steps:
// mint refresh, derive access, register the device session, emit the
// sign-in event.
func RunSignIn(ctx context.Context, req SignInRequest, d Deps) (*SignInResult, error) {
	stage, err := InferStage(req)
	if err != nil {
		return nil, err
	}
	strat, err := StrategyFor(req.Method, stage)
	if err != nil {
		return nil, err
	}

	user, err := strat.ResolveUser(ctx, d, req)
	if err != nil {
		return nil, err
	}
	if user.Status != identity.StatusNormal {
		return nil, identity.ErrUnauthorized
	}
	if err := strat.Validate(ctx, d, user, req); err != nil {
		return nil, err
	}

	// Authentication succeeded, but an over-age password still fails the
	// sign-in closed.
	if d.Config.PasswordMaxAge > 0 && user.PasswordSet() && !user.PasswordUpdatedAt.IsZero() {
		if d.now().Sub(user.PasswordUpdatedAt) > d.Config.PasswordMaxAge {
			return nil, identity.ErrPasswordExpired
		}
	}

	claims := strat.RefreshClaims(d, user, req)
	refreshStr, err := d.Codec.Encode(token.TypeRefresh, user.ID, claims, d.Config.RefreshTTL)
	if err != nil {
		return nil, err
	}
	refreshClaims, err := d.Codec.Decode(refreshStr, token.TypeRefresh)
	if err != nil {
		return nil, err
	}
	accessStr, err := d.Codec.DeriveAccess(refreshClaims, d.Config.AccessTTL, true)
	if err != nil {
		return nil, err
	}

	if _, err := d.Sessions.Register(ctx, user.ID, req.DeviceAgent, refreshStr); err != nil {
		return nil, err
	}

	d.Events.Post(ctx, d.event(events.PostSignIn, user.ID, req.ClientID, req.ProjectID, req.DeviceAgent, map[string]string{
		"method":    string(req.Method),
		"authStage": claims.AuthStage,
		"strategy":  strat.Name(),
	}))

	return &SignInResult{
		UID:          user.ID,
		AuthToken:    accessStr,
		RefreshToken: refreshStr,
		ExpiresIn:    int64(d.Config.AccessTTL.Seconds()),
		AuthStage:    identity.AuthStage(claims.AuthStage),
	}, nil
}

// verifyConfirmationCode checks a one-time code for the recipient,
// consulting the test-credentials provider first when one is wired.
func verifyConfirmationCode(ctx context.Context, d Deps, channel, recipient, code string) error {
	if code == "" {
		return identity.ErrConfirmationCodeMissing
	}
	if d.TestCreds != nil && d.Config.TestEnvironment {
		if want, ok := d.TestCreds.ConfirmationCode(recipient); ok {
			if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
				return nil
			}
			return identity.ErrInvalidVerificationCode
		}
	}
	if d.Codes == nil {
		return identity.ErrInvalidVerificationCode
	}
	err := d.Codes.Verify(ctx, channel, recipient, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrCodeNotFound),
		errors.Is(err, stores.ErrCodeMismatch),
		errors.Is(err, stores.ErrCodeAttemptsExceeded):
		return identity.ErrInvalidVerificationCode
	default:
		return fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
}

// verifyPassword compares a candidate against the user's current hash.
func verifyPassword(d Deps, user *identity.AuthUser, candidate string) error {
	if !user.PasswordSet() {
		return identity.ErrPasswordNotSet
	}
	ok, err := d.Passwords.Verify(candidate, user.HashedPassword)
	if err != nil {
		return err
	}
	if !ok {
		return identity.ErrInvalidUsernameOrPassword
	}
	return nil
}

// upgradeStage promotes a single-factor confirmation sign-in straight to a
// SECOND-stage session when the account is fully MFA-ready.
func upgradeStage(user *identity.AuthUser) identity.AuthStage {
	if user.EligibleForMFA() {
		return identity.StageSecond
	}
	return identity.StageNormal
}

// emailCodeStrategy verifies an emailed one-time code and marks the email
// verified.
type emailCodeStrategy struct{}

func (emailCodeStrategy) Name() string { return "email_code" }

func (emailCodeStrategy) ResolveUser(ctx context.Context, d Deps, req SignInRequest) (*identity.AuthUser, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("%w: email required", identity.ErrInvalidRequest)
	}
	return d.Users.GetUserByEmail(ctx, identity.NormalizeEmail(req.Email))
}

func (emailCodeStrategy) Validate(ctx context.Context, d Deps, user *identity.AuthUser, req SignInRequest) error {
	if err := verifyConfirmationCode(ctx, d, ChannelEmail, identity.NormalizeEmail(req.Email), req.ConfirmationCode); err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	verified := true
	if err := d.Users.SetAuthAttributes(ctx, user.ID, identity.AttributeUpdate{EmailVerified: &verified}); err != nil {
		return err
	}
	user.EmailVerified = true
	return nil
}

func (emailCodeStrategy) RefreshClaims(d Deps, user *identity.AuthUser, req SignInRequest) token.UserClaims {
	return token.UserClaims{
		ProjectID: req.ProjectID,
		ClientID:  req.ClientID,
		Method:    string(identity.MethodEmail),
		AuthStage: string(upgradeStage(user)),
	}
}

// phoneCodeStrategy verifies an SMS code, marks the phone verified, and
// upserts a verified PHONE_NUMBER identifier.
type phoneCodeStrategy struct{}

func (phoneCodeStrategy) Name() string { return "phone_code" }

func (phoneCodeStrategy) ResolveUser(ctx context.Context, d Deps, req SignInRequest) (*identity.AuthUser, error) {
	if req.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: phone number required", identity.ErrInvalidRequest)
	}
	return d.Users.GetUserByPhoneNumber(ctx, req.PhoneNumber)
}

func (phoneCodeStrategy) Validate(ctx context.Context, d Deps, user *identity.AuthUser, req SignInRequest) error {
	if err := verifyConfirmationCode(ctx, d, ChannelSMS, req.PhoneNumber, req.ConfirmationCode); err != nil {
		return err
	}
	user.UpsertIdentifier(identity.AuthIdentifier{
		Type:     identity.IdentifierPhoneNumber,
		Value:    req.PhoneNumber,
		Verified: true,
	})
	verified := true
	update := identity.AttributeUpdate{
		PhoneNumberVerified: &verified,
		MFAIdentifiers:      &user.MFAIdentifiers,
	}
	if err := d.Users.SetAuthAttributes(ctx, user.ID, update); err != nil {
		return err
	}
	user.PhoneNumberVerified = true
	return nil
}

func (phoneCodeStrategy) RefreshClaims(d Deps, user *identity.AuthUser, req SignInRequest) token.UserClaims {
	return token.UserClaims{
		ProjectID: req.ProjectID,
		ClientID:  req.ClientID,
		Method:    string(identity.MethodPhoneNumber),
		AuthStage: string(upgradeStage(user)),
	}
}

// emailPasswordStrategy is the classic single-factor credential check. The
// email must already be verified.
type emailPasswordStrategy struct{}

func (emailPasswordStrategy) Name() string { return "email_password" }

func (emailPasswordStrategy) ResolveUser(ctx context.Context, d Deps, req SignInRequest) (*identity.AuthUser, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password required", identity.ErrInvalidRequest)
	}
	return d.Users.GetUserByEmail(ctx, identity.NormalizeEmail(req.Email))
}

func (emailPasswordStrategy) Validate(ctx context.Context, d Deps, user *identity.AuthUser, req SignInRequest) error {
	if !user.EmailVerified {
		return identity.ErrEmailNotVerified
	}
	return verifyPassword(d, user, req.Password)
}

func (emailPasswordStrategy) RefreshClaims(d Deps, user *identity.AuthUser, req SignInRequest) token.UserClaims {
	return token.UserClaims{
		ProjectID: req.ProjectID,
		ClientID:  req.ClientID,
		Method:    string(identity.MethodEmailPassword),
		AuthStage: string(identity.StageNormal),
	}
}

// twoFactorFirstStrategy runs the password leg of the two-factor flow and
// mints an unprivileged FIRST-stage token.
type twoFactorFirstStrategy struct{}

func (twoFactorFirstStrategy) Name() string { return "two_factor_first" }

func (twoFactorFirstStrategy) ResolveUser(ctx context.Context, d Deps, req SignInRequest) (*identity.AuthUser, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("%w: email required", identity.ErrInvalidRequest)
	}
	return d.Users.GetUserByEmail(ctx, identity.NormalizeEmail(req.Email))
}

func (twoFactorFirstStrategy) Validate(ctx context.Context, d Deps, user *identity.AuthUser, req SignInRequest) error {
	return verifyPassword(d, user, req.Password)
}

func (twoFactorFirstStrategy) RefreshClaims(d Deps, user *identity.AuthUser, req SignInRequest) token.UserClaims {
	return token.UserClaims{
		ProjectID: req.ProjectID,
		ClientID:  req.ClientID,
		Method:    string(identity.MethodTwoFactorAuth),
		AuthStage: string(identity.StageFirst),
	}
}

// twoFactorSecondStrategy upgrades a FIRST-stage (or re-validates a
// SECOND-stage) session by checking an SMS code against the user's
// verified phone identifier.
type twoFactorSecondStrategy struct{}

func (twoFactorSecondStrategy) Name() string { return "two_factor_second" }

func (twoFactorSecondStrategy) ResolveUser(ctx context.Context, d Deps, req SignInRequest) (*identity.AuthUser, error) {
	claims, err := decodeStagedRefresh(d, req.RefreshToken, identity.StageFirst, identity.StageSecond)
	if err != nil {
		return nil, err
	}
	return d.Users.GetUserByID(ctx, claims.Identity)
}

func (twoFactorSecondStrategy) Validate(ctx context.Context, d Deps, user *identity.AuthUser, req SignInRequest) error {
	phone, ok := user.VerifiedPhoneIdentifier()
	if !ok {
		if user.PhoneNumber == "" {
			return identity.ErrPhoneNumberNotSet
		}
		return identity.ErrPhoneNumberNotVerified
	}
	return verifyConfirmationCode(ctx, d, ChannelSMS, phone.Value, req.ConfirmationCode)
}

func (twoFactorSecondStrategy) RefreshClaims(d Deps, user *identity.AuthUser, req SignInRequest) token.UserClaims {
	return token.UserClaims{
		ProjectID: req.ProjectID,
		ClientID:  req.ClientID,
		Method:    string(identity.MethodTwoFactorAuth),
		AuthStage: string(identity.StageSecond),
	}
}

// rememberMeStrategy re-establishes a SECOND-stage session with a password
// only, skipping a fresh SMS round-trip.
type rememberMeStrategy struct{}

func (rememberMeStrategy) Name() string { return "remember_me" }

func (rememberMeStrategy) ResolveUser(ctx context.Context, d Deps, req SignInRequest) (*identity.AuthUser, error) {
	claims, err := decodeStagedRefresh(d, req.RefreshToken, identity.StageSecond)
	if err != nil {
		return nil, err
	}
	return d.Users.GetUserByID(ctx, claims.Identity)
}

func (rememberMeStrategy) Validate(ctx context.Context, d Deps, user *identity.AuthUser, req SignInRequest) error {
	return verifyPassword(d, user, req.Password)
}

func (rememberMeStrategy) RefreshClaims(d Deps, user *identity.AuthUser, req SignInRequest) token.UserClaims {
	return token.UserClaims{
		ProjectID: req.ProjectID,
		ClientID:  req.ClientID,
		Method:    string(identity.MethodTwoFactorAuth),
		AuthStage: string(identity.StageSecond),
	}
}

// decodeStagedRefresh decodes a refresh token and checks that it was
// minted by the two-factor method at one of the allowed stages. A token
// from a different method is a provider mismatch, not a stage error.
func decodeStagedRefresh(d Deps, refreshToken string, allowed ...identity.AuthStage) (*token.Claims, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token required", identity.ErrInvalidRequest)
	}
	claims, err := d.Codec.Decode(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.User.Method != string(identity.MethodTwoFactorAuth) {
		return nil, identity.ErrInvalidTokenProvider
	}
	for _, stage := range allowed {
		if claims.User.AuthStage == string(stage) {
			return claims, nil
		}
	}
	return nil, identity.ErrUnauthorized
}
