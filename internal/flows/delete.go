package flows

import (
	"context"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
)

// RunDeleteUser hard-deletes the identity record and purges every device
// session the user owns. Sessions go first so a concurrent refresh cannot
// resurrect a row for a user that is about to disappear.
func RunDeleteUser(ctx context.Context, userID string, d Deps) error {
	if userID == "" {
		return identity.ErrInvalidRequest
	}
	if _, err := d.Users.GetUserByID(ctx, userID); err != nil {
		return err
	}

	if err := d.Sessions.PurgeUser(ctx, userID); err != nil {
		return err
	}
	if err := d.Users.DeleteUser(ctx, userID); err != nil {
		return err
	}

	d.Events.Post(ctx, d.event(events.DeleteUser, userID, "", "", "", nil))
	return nil
}
