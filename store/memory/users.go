// Package memory provides in-process store implementations. They back the
// examples and the test suites; nothing here survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/meenu-gupta/authcore/identity"
)

// UserStore is a mutex-guarded in-memory identity.UserStore with
// transaction support via whole-store snapshots.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]*identity.AuthUser
	byEmail map[string]string
	byPhone map[string]string
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]*identity.AuthUser),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}
}

var (
	_ identity.UserStore              = (*UserStore)(nil)
	_ identity.TransactionalUserStore = (*UserStore)(nil)
)

func cloneUser(u *identity.AuthUser) *identity.AuthUser {
	c := *u
	c.PreviousPasswords = append([]string(nil), u.PreviousPasswords...)
	c.MFAIdentifiers = append([]identity.AuthIdentifier(nil), u.MFAIdentifiers...)
	c.AuthKeys = append([]string(nil), u.AuthKeys...)
	if u.Attributes != nil {
		c.Attributes = make(map[string]any, len(u.Attributes))
		for k, v := range u.Attributes {
			c.Attributes[k] = v
		}
	}
	if u.ValidationData != nil {
		c.ValidationData = make(map[string]any, len(u.ValidationData))
		for k, v := range u.ValidationData {
			c.ValidationData[k] = v
		}
	}
	return &c
}

// CreateUser inserts the record, rejecting duplicate emails and phone
// numbers.
func (s *UserStore) CreateUser(_ context.Context, user *identity.AuthUser) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email != "" {
		if _, exists := s.byEmail[user.Email]; exists {
			return "", identity.ErrUserAlreadyExists
		}
	}
	if user.PhoneNumber != "" {
		if _, exists := s.byPhone[user.PhoneNumber]; exists {
			return "", identity.ErrUserAlreadyExists
		}
	}

	stored := cloneUser(user)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.users[stored.ID] = stored
	if stored.Email != "" {
		s.byEmail[stored.Email] = stored.ID
	}
	if stored.PhoneNumber != "" {
		s.byPhone[stored.PhoneNumber] = stored.ID
	}
	return stored.ID, nil
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (*identity.AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, identity.ErrUnauthorized
	}
	return cloneUser(u), nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*identity.AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, identity.ErrUnauthorized
	}
	return cloneUser(s.users[id]), nil
}

func (s *UserStore) GetUserByPhoneNumber(_ context.Context, phone string) (*identity.AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return nil, identity.ErrUnauthorized
	}
	return cloneUser(s.users[id]), nil
}

// SetAuthAttributes applies the supplied fields as one update.
func (s *UserStore) SetAuthAttributes(_ context.Context, id string, update identity.AttributeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return identity.ErrUnauthorized
	}

	if update.Email != nil {
		if other, exists := s.byEmail[*update.Email]; exists && other != id {
			return identity.ErrUserAlreadyExists
		}
		delete(s.byEmail, u.Email)
		u.Email = *update.Email
		if u.Email != "" {
			s.byEmail[u.Email] = id
		}
	}
	if update.EmailVerified != nil {
		u.EmailVerified = *update.EmailVerified
	}
	if update.PhoneNumber != nil {
		if other, exists := s.byPhone[*update.PhoneNumber]; exists && other != id {
			return identity.ErrUserAlreadyExists
		}
		delete(s.byPhone, u.PhoneNumber)
		u.PhoneNumber = *update.PhoneNumber
		if u.PhoneNumber != "" {
			s.byPhone[u.PhoneNumber] = id
		}
	}
	if update.PhoneNumberVerified != nil {
		u.PhoneNumberVerified = *update.PhoneNumberVerified
	}
	if update.HashedPassword != nil {
		u.HashedPassword = *update.HashedPassword
	}
	if update.PreviousPasswords != nil {
		u.PreviousPasswords = append([]string(nil), (*update.PreviousPasswords)...)
	}
	if update.PasswordCreatedAt != nil {
		u.PasswordCreatedAt = *update.PasswordCreatedAt
	}
	if update.PasswordUpdatedAt != nil {
		u.PasswordUpdatedAt = *update.PasswordUpdatedAt
	}
	if update.MFAEnabled != nil {
		u.MFAEnabled = *update.MFAEnabled
	}
	if update.MFAIdentifiers != nil {
		u.MFAIdentifiers = append([]identity.AuthIdentifier(nil), (*update.MFAIdentifiers)...)
	}
	return nil
}

func (s *UserStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return identity.ErrUnauthorized
	}
	delete(s.byEmail, u.Email)
	delete(s.byPhone, u.PhoneNumber)
	delete(s.users, id)
	return nil
}

// WithTransaction snapshots the store, runs fn, and restores the snapshot
// when fn fails. Single-writer semantics only; concurrent transactions
// serialize on the store lock held by each operation.
func (s *UserStore) WithTransaction(ctx context.Context, fn func(context.Context, identity.UserStore) error) error {
	snapshot := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type userSnapshot struct {
	users   map[string]*identity.AuthUser
	byEmail map[string]string
	byPhone map[string]string
}

func (s *UserStore) snapshot() userSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := userSnapshot{
		users:   make(map[string]*identity.AuthUser, len(s.users)),
		byEmail: make(map[string]string, len(s.byEmail)),
		byPhone: make(map[string]string, len(s.byPhone)),
	}
	for id, u := range s.users {
		snap.users[id] = cloneUser(u)
	}
	for k, v := range s.byEmail {
		snap.byEmail[k] = v
	}
	for k, v := range s.byPhone {
		snap.byPhone[k] = v
	}
	return snap
}

func (s *UserStore) restore(snap userSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.byEmail = snap.byEmail
	s.byPhone = snap.byPhone
}
