package session

import (
	"context"
	"errors"
)

var (
	// ErrDeviceSessionDoesNotExist is returned when no session row matches
	// the lookup filter. Concurrent refreshers racing on the same token see
	// it on the losing side of the swap.
	ErrDeviceSessionDoesNotExist = errors.New("device session does not exist")
	// ErrUserAlreadySignedOut is returned when the matched session was
	// already signed out.
	ErrUserAlreadySignedOut = errors.New("user already signed out")
	// ErrBackendUnavailable wraps infrastructure failures of the backing
	// store.
	ErrBackendUnavailable = errors.New("session backend unavailable")
)

// Store is the device-session persistence contract. Every mutation must be
// a single atomic operation with a precise filter so that concurrent
// refresh attempts never interleave: of two concurrent Swap calls on the
// same token, exactly one wins and the loser observes
// ErrDeviceSessionDoesNotExist.
type Store interface {
	// Register records a successful sign-in for (userID, deviceAgent).
	// Single-slot stores overwrite the slot; append-only stores add a row.
	Register(ctx context.Context, userID, deviceAgent, refreshToken string) (*DeviceSession, error)
	// FindByAgent returns the current session for (userID, deviceAgent).
	FindByAgent(ctx context.Context, userID, deviceAgent string) (*DeviceSession, error)
	// FindByRefreshToken returns the session row holding the token.
	FindByRefreshToken(ctx context.Context, userID, refreshToken string) (*DeviceSession, error)
	// Swap atomically repoints the row holding currentToken at nextToken.
	// A row that is missing, inactive, or already rotated away fails with
	// ErrDeviceSessionDoesNotExist.
	Swap(ctx context.Context, userID, currentToken, nextToken string) (*DeviceSession, error)
	// SignOut invalidates a session per the configured lifecycle:
	// single-slot nulls the token of the (userID, deviceAgent) slot;
	// append-only flips the row matched by refreshToken inactive.
	SignOut(ctx context.Context, userID, deviceAgent, refreshToken string) error
	// PurgeUser removes every session owned by userID.
	PurgeUser(ctx context.Context, userID string) error
}
