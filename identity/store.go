package identity

import (
	"context"
	"time"
)

// AttributeUpdate carries the granted attribute changes of a single
// SetAuthAttributes call. Nil fields are left untouched; the whole update
// must be applied as one atomic write keyed by user id.
type AttributeUpdate struct {
	Email               *string
	EmailVerified       *bool
	PhoneNumber         *string
	PhoneNumberVerified *bool
	HashedPassword      *string
	PreviousPasswords   *[]string
	PasswordCreatedAt   *time.Time
	PasswordUpdatedAt   *time.Time
	MFAEnabled          *bool
	MFAIdentifiers      *[]AuthIdentifier
}

// Empty reports whether the update carries no change at all.
func (u AttributeUpdate) Empty() bool {
	return u.Email == nil && u.EmailVerified == nil &&
		u.PhoneNumber == nil && u.PhoneNumberVerified == nil &&
		u.HashedPassword == nil && u.PreviousPasswords == nil &&
		u.PasswordCreatedAt == nil && u.PasswordUpdatedAt == nil &&
		u.MFAEnabled == nil && u.MFAIdentifiers == nil
}

// UserStore is the identity persistence boundary, consumed but never
// implemented by the core. Implementations must keep email uniqueness
// case-insensitive and phone uniqueness exact, and must express every
// mutation as one atomic update with a precise filter.
type UserStore interface {
	// CreateUser persists a new record and returns its id. A duplicate
	// email or phone number fails with ErrUserAlreadyExists.
	CreateUser(ctx context.Context, user *AuthUser) (string, error)
	// GetUserByID loads a record by id; ErrUnauthorized when absent.
	GetUserByID(ctx context.Context, id string) (*AuthUser, error)
	// GetUserByEmail loads a record by normalized email; ErrUnauthorized
	// when absent.
	GetUserByEmail(ctx context.Context, email string) (*AuthUser, error)
	// GetUserByPhoneNumber loads a record by phone number; ErrUnauthorized
	// when absent.
	GetUserByPhoneNumber(ctx context.Context, phoneNumber string) (*AuthUser, error)
	// SetAuthAttributes applies the update atomically to the record with
	// the given id; ErrUnauthorized when absent.
	SetAuthAttributes(ctx context.Context, id string, update AttributeUpdate) error
	// DeleteUser removes the record and cascades to every device session
	// owned by it.
	DeleteUser(ctx context.Context, id string) error
}

// TransactionalUserStore is implemented by stores that can span multiple
// writes with explicit commit/cancel. Returning an error from fn aborts the
// transaction; every write made through the store handed to fn is rolled
// back.
type TransactionalUserStore interface {
	UserStore
	WithTransaction(ctx context.Context, fn func(ctx context.Context, store UserStore) error) error
}
