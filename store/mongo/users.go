// Package mongo provides MongoDB-backed store implementations. The user
// store relies on unique sparse indexes for email and phone uniqueness
// and expresses every mutation as one update with a precise filter.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/meenu-gupta/authcore/identity"
)

const userCollection = "auth_users"

// UserStore is a identity.TransactionalUserStore over a mongo database.
type UserStore struct {
	db *mongo.Database
}

var (
	_ identity.UserStore              = (*UserStore)(nil)
	_ identity.TransactionalUserStore = (*UserStore)(nil)
)

// NewUserStore ensures the uniqueness indexes and returns the store.
func NewUserStore(ctx context.Context, db *mongo.Database) (*UserStore, error) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	if _, err := db.Collection(userCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create user indexes: %w", err)
	}
	return &UserStore{db: db}, nil
}

func (s *UserStore) collection() *mongo.Collection {
	return s.db.Collection(userCollection)
}

// CreateUser inserts the record under a fresh uuid id. Duplicate email or
// phone number surfaces as identity.ErrUserAlreadyExists.
func (s *UserStore) CreateUser(ctx context.Context, user *identity.AuthUser) (string, error) {
	stored := *user
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	if _, err := s.collection().InsertOne(ctx, &stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", identity.ErrUserAlreadyExists
		}
		return "", fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	return stored.ID, nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*identity.AuthUser, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*identity.AuthUser, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) GetUserByPhoneNumber(ctx context.Context, phone string) (*identity.AuthUser, error) {
	return s.findOne(ctx, bson.M{"phone_number": phone})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*identity.AuthUser, error) {
	var user identity.AuthUser
	err := s.collection().FindOne(ctx, filter).Decode(&user)
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, identity.ErrUnauthorized
	default:
		return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
}

// SetAuthAttributes applies the non-nil update fields as one $set.
func (s *UserStore) SetAuthAttributes(ctx context.Context, id string, update identity.AttributeUpdate) error {
	set := bson.M{}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.EmailVerified != nil {
		set["email_verified"] = *update.EmailVerified
	}
	if update.PhoneNumber != nil {
		set["phone_number"] = *update.PhoneNumber
	}
	if update.PhoneNumberVerified != nil {
		set["phone_number_verified"] = *update.PhoneNumberVerified
	}
	if update.HashedPassword != nil {
		set["hashed_password"] = *update.HashedPassword
	}
	if update.PreviousPasswords != nil {
		set["previous_passwords"] = *update.PreviousPasswords
	}
	if update.PasswordCreatedAt != nil {
		set["password_created_at"] = *update.PasswordCreatedAt
	}
	if update.PasswordUpdatedAt != nil {
		set["password_updated_at"] = *update.PasswordUpdatedAt
	}
	if update.MFAEnabled != nil {
		set["mfa_enabled"] = *update.MFAEnabled
	}
	if update.MFAIdentifiers != nil {
		set["mfa_identifiers"] = *update.MFAIdentifiers
	}
	if len(set) == 0 {
		return nil
	}

	res, err := s.collection().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return identity.ErrUnauthorized
	}
	return nil
}

// DeleteUser removes the record. A missing record is already deleted.
func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.collection().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	return nil
}

// WithTransaction runs fn inside a mongo session transaction. Returning an
// error from fn aborts the transaction.
func (s *UserStore) WithTransaction(ctx context.Context, fn func(context.Context, identity.UserStore) error) error {
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, s)
	})
	return err
}
