package flows

import (
	"context"
	"fmt"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
)

// RunSignUp creates a new identity record. The pre event can veto the
// registration; the post event is delivered inside the store transaction
// when the store supports one, so a failed side effect rolls the insert
// back.
func RunSignUp(ctx context.Context, req SignUpRequest, d Deps) (*SignUpResult, error) {
	if err := validateSignUp(req); err != nil {
		return nil, err
	}

	if err := d.Events.Pre(ctx, d.event(events.PreSignUp, "", req.ClientID, req.ProjectID, "", map[string]string{
		"method": string(req.Method),
	})); err != nil {
		return nil, err
	}

	now := d.now()
	user := &identity.AuthUser{
		Status:      identity.StatusNormal,
		Email:       identity.NormalizeEmail(req.Email),
		PhoneNumber: req.PhoneNumber,
		DisplayName: req.DisplayName,
		Attributes:  req.Attributes,
	}
	if req.Password != "" {
		hash, err := d.Passwords.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		user.HashedPassword = hash
		user.PasswordCreatedAt = now
		user.PasswordUpdatedAt = now
	}

	postEvent := func(uid string) events.Event {
		return d.event(events.PostSignUp, uid, req.ClientID, req.ProjectID, "", map[string]string{
			"method": string(req.Method),
		})
	}

	var uid string
	if tx, ok := d.Users.(identity.TransactionalUserStore); ok {
		err := tx.WithTransaction(ctx, func(ctx context.Context, users identity.UserStore) error {
			id, err := users.CreateUser(ctx, user)
			if err != nil {
				return err
			}
			uid = id
			return d.Events.Deliver(ctx, postEvent(id))
		})
		if err != nil {
			return nil, err
		}
	} else {
		id, err := d.Users.CreateUser(ctx, user)
		if err != nil {
			return nil, err
		}
		uid = id
		d.Events.Post(ctx, postEvent(id))
	}

	return &SignUpResult{UID: uid}, nil
}

func validateSignUp(req SignUpRequest) error {
	switch req.Method {
	case identity.MethodEmail:
		if req.Email == "" {
			return fmt.Errorf("%w: email required", identity.ErrInvalidRequest)
		}
	case identity.MethodPhoneNumber:
		if req.PhoneNumber == "" {
			return fmt.Errorf("%w: phone number required", identity.ErrInvalidRequest)
		}
	case identity.MethodEmailPassword, identity.MethodTwoFactorAuth:
		if req.Email == "" || req.Password == "" {
			return fmt.Errorf("%w: email and password required", identity.ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown sign-up method %q", identity.ErrInvalidRequest, req.Method)
	}
	return nil
}
