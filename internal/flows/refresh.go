package flows

import (
	"context"
	"errors"
	"time"

	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/session"
	"github.com/meenu-gupta/authcore/token"
)

// RunRefresh validates a refresh token against the user's current password
// state and session constraints, mints a new access token, and rotates the
// refresh token for SECOND-stage sessions.
func RunRefresh(ctx context.Context, req RefreshRequest, d Deps) (*RefreshResult, error) {
	if req.RefreshToken == "" {
		return nil, identity.ErrInvalidRequest
	}

	claims, err := d.Codec.Decode(req.RefreshToken, token.TypeRefresh)
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

	issuedAt := time.Time{}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	// Refresh tokens minted before a password change are dead. The initial
	// password set does not count as a change.
	if !user.PasswordUpdatedAt.IsZero() &&
		user.PasswordUpdatedAt.After(issuedAt) &&
		!user.PasswordUpdatedAt.Equal(user.PasswordCreatedAt) {
		return nil, token.ErrTokenExpired
	}

	deviceAuthed := false
	if claims.User.AuthStage == string(identity.StageSecond) {
		switch {
		case req.Password != "":
			// Explicit re-auth resets the idle clock.
			if req.Email != "" && identity.NormalizeEmail(req.Email) != user.Email {
				return nil, identity.ErrInvalidUsernameOrPassword
			}
			if err := verifyPassword(d, user, req.Password); err != nil {
				if errors.Is(err, identity.ErrPasswordNotSet) {
					return nil, identity.ErrInvalidUsernameOrPassword
				}
				return nil, err
			}
		case req.DeviceToken != "":
			if !user.HasDeviceToken(req.DeviceToken) {
				return nil, identity.ErrUnauthorized
			}
			deviceAuthed = true
		default:
			if d.Config.SessionIdleTimeout > 0 && d.now().Sub(issuedAt) > d.Config.SessionIdleTimeout {
				return nil, identity.ErrSessionTimeout
			}
		}
	}

	// The presented token must still be the one its session row holds,
	// whatever the stage. A row that was rotated away is gone; a signed-out
	// row is inactive or has its digest nulled. Without this check a
	// signed-out single-factor refresh token would keep minting access
	// tokens until its own expiry.
	sess, err := d.Sessions.FindByRefreshToken(ctx, user.ID, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !sess.Active || sess.RefreshDigest != session.Fingerprint(req.RefreshToken) {
		return nil, session.ErrUserAlreadySignedOut
	}

	accessStr, err := d.Codec.DeriveAccess(claims, d.Config.AccessTTL, false)
	if err != nil {
		return nil, err
	}
	result := &RefreshResult{
		AuthToken: accessStr,
		ExpiresIn: int64(d.Config.AccessTTL.Seconds()),
	}

	// SECOND-stage sessions rotate the refresh token, carrying forward the
	// remaining expiry window. Device-token callers keep their existing
	// session untouched so device-bound rows do not thrash.
	if claims.User.AuthStage == string(identity.StageSecond) && !deviceAuthed {
		remaining := time.Duration(0)
		if claims.ExpiresAt != nil {
			remaining = claims.ExpiresAt.Time.Sub(d.now())
			if remaining <= 0 {
				return nil, token.ErrTokenExpired
			}
		}
		nextRefresh, err := d.Codec.Encode(token.TypeRefresh, claims.Identity, claims.User, remaining)
		if err != nil {
			return nil, err
		}
		if _, err := d.Sessions.Swap(ctx, user.ID, req.RefreshToken, nextRefresh); err != nil {
			return nil, err
		}
		result.RefreshToken = nextRefresh
		result.RefreshTokenExpiresIn = int64(remaining.Seconds())
	}
	return result, nil
}
