package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/session"
	"github.com/meenu-gupta/authcore/token"
)

// RunSetAuthAttributes applies the granted attribute changes as one atomic
// store update. Each supplied attribute is checked against its own rule
// set before anything is written; the first violation aborts the whole
// request with no partial write.
func RunSetAuthAttributes(ctx context.Context, req SetAuthAttributesRequest, d Deps) (*SetAuthAttributesResult, error) {
	claims, err := decodeAuthorizingToken(d, req.AuthToken, req.TokenType)
	if err != nil {
		return nil, err
	}
	user, err := d.Users.GetUserByID(ctx, claims.Identity)
	if err != nil {
		return nil, err
	}
	if user.Status != identity.StatusNormal {
		return nil, identity.ErrUnauthorized
	}

	if err := d.Events.Pre(ctx, d.event(events.PreSetAuthAttributes, user.ID, claims.User.ClientID, claims.User.ProjectID, req.DeviceAgent, nil)); err != nil {
		return nil, err
	}

	var (
		update         identity.AttributeUpdate
		changed        []string
		phoneUpdated   bool
		rotatePassword bool
		identifiers    = append([]identity.AuthIdentifier(nil), user.MFAIdentifiers...)
		identifiersSet bool
	)
	scratch := *user
	scratch.MFAIdentifiers = identifiers

	if req.PhoneNumber != "" {
		verified, err := applyPhoneNumber(ctx, req, d, &scratch, &update)
		if err != nil {
			return nil, err
		}
		phoneUpdated = verified
		identifiersSet = true
		changed = append(changed, "phoneNumber")
	}

	if req.DeviceToken != "" && !scratch.HasDeviceToken(req.DeviceToken) {
		scratch.UpsertIdentifier(identity.AuthIdentifier{
			Type:  identity.IdentifierDeviceToken,
			Value: req.DeviceToken,
		})
		identifiersSet = true
		changed = append(changed, "deviceToken")
	}

	if req.Password != "" {
		rotated, err := applyPassword(req, d, &scratch, &update)
		if err != nil {
			return nil, err
		}
		rotatePassword = rotated
		changed = append(changed, "password")
	}

	if req.Email != "" {
		if user.Email != "" {
			return nil, identity.ErrEmailAlreadySet
		}
		email := identity.NormalizeEmail(req.Email)
		falseVal := false
		update.Email = &email
		update.EmailVerified = &falseVal
		changed = append(changed, "email")
	}

	if req.MFAEnabled != nil && d.Config.AllowMFAToggle {
		update.MFAEnabled = req.MFAEnabled
		changed = append(changed, "mfaEnabled")
	}

	if identifiersSet {
		update.MFAIdentifiers = &scratch.MFAIdentifiers
	}

	if !update.Empty() {
		if err := d.Users.SetAuthAttributes(ctx, user.ID, update); err != nil {
			return nil, err
		}
	}

	result := &SetAuthAttributesResult{UID: user.ID, PhoneNumberUpdated: phoneUpdated}

	// A password rotation kills every refresh token minted before it,
	// including the one that authorized this request. Hand refresh-token
	// callers a replacement so they are not silently signed out.
	if rotatePassword && claims.TokenType == string(token.TypeRefresh) {
		next, err := d.Codec.Encode(token.TypeRefresh, user.ID, claims.User, d.Config.RefreshTTL)
		if err != nil {
			return nil, err
		}
		if _, err := d.Sessions.Swap(ctx, user.ID, req.AuthToken, next); err != nil {
			if !errors.Is(err, session.ErrDeviceSessionDoesNotExist) {
				return nil, err
			}
			if _, err := d.Sessions.Register(ctx, user.ID, req.DeviceAgent, next); err != nil {
				return nil, err
			}
		}
		result.RefreshToken = next
		result.RefreshTokenExpiresIn = int64(d.Config.RefreshTTL.Seconds())
	}

	meta := map[string]string{}
	for _, name := range changed {
		meta[name] = "updated"
	}
	d.Events.Post(ctx, d.event(events.PostSetAuthAttributes, user.ID, claims.User.ClientID, claims.User.ProjectID, req.DeviceAgent, meta))

	return result, nil
}

// applyPhoneNumber enforces the phone enrollment rules. Replacing a
// verified number needs a fresh confirmation code; a first number is
// stored unverified and reported as not yet updated.
func applyPhoneNumber(ctx context.Context, req SetAuthAttributesRequest, d Deps, user *identity.AuthUser, update *identity.AttributeUpdate) (bool, error) {
	current, hasVerified := user.VerifiedPhoneIdentifier()
	if hasVerified {
		if current.Value == req.PhoneNumber {
			return false, identity.ErrPhoneNumberAlreadySet
		}
		if req.ConfirmationCode == "" {
			return false, identity.ErrConfirmationCodeMissing
		}
		if err := verifyConfirmationCode(ctx, d, ChannelSMS, req.PhoneNumber, req.ConfirmationCode); err != nil {
			return false, err
		}
		user.UpsertIdentifier(identity.AuthIdentifier{
			Type:     identity.IdentifierPhoneNumber,
			Value:    req.PhoneNumber,
			Verified: true,
		})
		trueVal := true
		update.PhoneNumber = &req.PhoneNumber
		update.PhoneNumberVerified = &trueVal
		return true, nil
	}

	user.UpsertIdentifier(identity.AuthIdentifier{
		Type:  identity.IdentifierPhoneNumber,
		Value: req.PhoneNumber,
	})
	falseVal := false
	update.PhoneNumber = &req.PhoneNumber
	update.PhoneNumberVerified = &falseVal
	return false, nil
}

// applyPassword enforces the password lifecycle rules. Returns whether an
// existing password was rotated (as opposed to a first-time set).
func applyPassword(req SetAuthAttributesRequest, d Deps, user *identity.AuthUser, update *identity.AttributeUpdate) (bool, error) {
	now := d.now()

	if !user.PasswordSet() {
		hash, err := d.Passwords.Hash(req.Password)
		if err != nil {
			return false, err
		}
		update.HashedPassword = &hash
		update.PasswordCreatedAt = &now
		update.PasswordUpdatedAt = &now
		return false, nil
	}

	if req.OldPassword == "" {
		return false, identity.ErrPasswordAlreadySet
	}
	ok, err := d.Passwords.Verify(req.OldPassword, user.HashedPassword)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, identity.ErrInvalidPassword
	}

	reuse, err := d.Passwords.Verify(req.Password, user.HashedPassword)
	if err != nil {
		return false, err
	}
	if reuse {
		return false, identity.ErrAlreadyUsedPassword
	}
	for _, previous := range user.PreviousPasswords {
		match, err := d.Passwords.Verify(req.Password, previous)
		if err != nil {
			return false, err
		}
		if match {
			return false, identity.ErrAlreadyUsedPassword
		}
	}

	hash, err := d.Passwords.Hash(req.Password)
	if err != nil {
		return false, err
	}
	user.PushPreviousPassword(user.HashedPassword)
	update.HashedPassword = &hash
	update.PreviousPasswords = &user.PreviousPasswords
	update.PasswordUpdatedAt = &now
	return true, nil
}

// RunCheckAuthAttributes is the read-only probe over a user's auth state.
// Exactly one selector must be supplied.
func RunCheckAuthAttributes(ctx context.Context, req CheckAuthAttributesRequest, d Deps) (*CheckAuthAttributesResult, error) {
	var (
		user *identity.AuthUser
		err  error
	)
	switch {
	case req.AuthToken != "" && req.Email == "" && req.PhoneNumber == "":
		claims, derr := d.Codec.Decode(req.AuthToken, token.TypeAccess)
		if derr != nil {
			return nil, derr
		}
		user, err = d.Users.GetUserByID(ctx, claims.Identity)
	case req.Email != "" && req.AuthToken == "" && req.PhoneNumber == "":
		user, err = d.Users.GetUserByEmail(ctx, identity.NormalizeEmail(req.Email))
	case req.PhoneNumber != "" && req.AuthToken == "" && req.Email == "":
		user, err = d.Users.GetUserByPhoneNumber(ctx, req.PhoneNumber)
	default:
		return nil, fmt.Errorf("%w: exactly one of authToken, email, phoneNumber", identity.ErrInvalidRequest)
	}
	if err != nil {
		return nil, err
	}

	required := d.Config.MFARequired || user.MFAEnabled
	if !required {
		probe, perr := d.Events.RequireMFA(ctx, d.event(events.MFACheck, user.ID, req.ClientID, req.ProjectID, "", nil))
		if perr != nil {
			d.Logger.Warn().Err(perr).Str("user_id", user.ID).Msg("mfa requirement probe failed")
		} else {
			required = probe
		}
	}

	return &CheckAuthAttributesResult{
		Email:               user.Email,
		PhoneNumber:         user.PhoneNumber,
		EmailVerified:       user.EmailVerified,
		PhoneNumberVerified: user.PhoneNumberVerified,
		PasswordSet:         user.PasswordSet(),
		EligibleForMFA:      user.EligibleForMFA(),
		MFAEnabled:          user.MFAEnabled,
		MFARequired:         required,
	}, nil
}

// decodeAuthorizingToken accepts the token kinds allowed to authorize an
// attribute mutation. Expired invitations get the time-boxed grace decode.
func decodeAuthorizingToken(d Deps, authToken, tokenType string) (*token.Claims, error) {
	if authToken == "" {
		return nil, fmt.Errorf("%w: auth token required", identity.ErrInvalidRequest)
	}
	switch token.Type(tokenType) {
	case token.TypeAccess, "":
		return d.Codec.Decode(authToken, token.TypeAccess)
	case token.TypeRefresh:
		return d.Codec.Decode(authToken, token.TypeRefresh)
	case token.TypeInvitation:
		return d.Codec.DecodeAllowExpired(authToken, token.TypeInvitation)
	default:
		return nil, fmt.Errorf("%w: token type %q cannot authorize attribute changes",
			identity.ErrInvalidRequest, tokenType)
	}
}
