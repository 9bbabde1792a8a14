package flows

import (
	"context"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/session"
)

// RunSignOut invalidates the caller's device session. Under the
// append-only lifecycle a supplied device token also revokes that device's
// trust identifier, so the device must re-verify on its next sign-in.
func RunSignOut(ctx context.Context, req SignOutRequest, d Deps) (*SignOutResult, error) {
	if req.UserID == "" || req.RefreshToken == "" {
		return nil, identity.ErrInvalidRequest
	}

	if err := d.Sessions.SignOut(ctx, req.UserID, req.DeviceAgent, req.RefreshToken); err != nil {
		return nil, err
	}

	if req.DeviceToken != "" && d.Config.Lifecycle == session.LifecycleAppendOnly {
		user, err := d.Users.GetUserByID(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if user.RemoveIdentifier(identity.IdentifierDeviceToken, req.DeviceToken) {
			update := identity.AttributeUpdate{MFAIdentifiers: &user.MFAIdentifiers}
			if err := d.Users.SetAuthAttributes(ctx, user.ID, update); err != nil {
				return nil, err
			}
		}
	}

	d.Events.Post(ctx, d.event(events.SignOut, req.UserID, "", "", req.DeviceAgent, nil))
	return &SignOutResult{ID: req.UserID}, nil
}
