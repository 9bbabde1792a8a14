package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meenu-gupta/authcore/session"
)

type sessionRow struct {
	userID      string
	deviceAgent string
	digest      string
	active      bool
	createdAt   time.Time
	updatedAt   time.Time
}

// SessionStore is a mutex-guarded in-memory session.Store supporting both
// lifecycle variants. Rows are keyed by (user, agent) under single-slot
// and by (user, token digest) under append-only.
type SessionStore struct {
	lifecycle session.Lifecycle

	mu   sync.Mutex
	rows map[string]*sessionRow
}

// NewSessionStore returns an empty store for the given lifecycle.
func NewSessionStore(lifecycle session.Lifecycle) (*SessionStore, error) {
	if !lifecycle.Valid() {
		return nil, fmt.Errorf("unknown session lifecycle %q", lifecycle)
	}
	return &SessionStore{
		lifecycle: lifecycle,
		rows:      make(map[string]*sessionRow),
	}, nil
}

var _ session.Store = (*SessionStore)(nil)

// Lifecycle reports the configured variant.
func (s *SessionStore) Lifecycle() session.Lifecycle { return s.lifecycle }

func (s *SessionStore) slotKey(userID, deviceAgent string) string {
	return userID + "\x00" + session.Fingerprint(deviceAgent)
}

func (s *SessionStore) rowKey(userID, digest string) string {
	return userID + "\x00" + digest
}

func toDeviceSession(r *sessionRow) *session.DeviceSession {
	return &session.DeviceSession{
		UserID:        r.userID,
		DeviceAgent:   r.deviceAgent,
		RefreshDigest: r.digest,
		Active:        r.active,
		CreatedAt:     r.createdAt,
		UpdatedAt:     r.updatedAt,
	}
}

func (s *SessionStore) Register(_ context.Context, userID, deviceAgent, refreshToken string) (*session.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	digest := session.Fingerprint(refreshToken)
	row := &sessionRow{
		userID:      userID,
		deviceAgent: deviceAgent,
		digest:      digest,
		active:      true,
		createdAt:   now,
		updatedAt:   now,
	}

	if s.lifecycle == session.LifecycleSingleSlot {
		key := s.slotKey(userID, deviceAgent)
		if existing, ok := s.rows[key]; ok {
			row.createdAt = existing.createdAt
		}
		s.rows[key] = row
	} else {
		s.rows[s.rowKey(userID, digest)] = row
	}
	return toDeviceSession(row), nil
}

func (s *SessionStore) FindByAgent(_ context.Context, userID, deviceAgent string) (*session.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle == session.LifecycleSingleSlot {
		if row, ok := s.rows[s.slotKey(userID, deviceAgent)]; ok {
			return toDeviceSession(row), nil
		}
		return nil, session.ErrDeviceSessionDoesNotExist
	}
	for _, row := range s.rows {
		if row.userID == userID && row.deviceAgent == deviceAgent && row.active {
			return toDeviceSession(row), nil
		}
	}
	return nil, session.ErrDeviceSessionDoesNotExist
}

func (s *SessionStore) FindByRefreshToken(_ context.Context, userID, refreshToken string) (*session.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.findByDigestLocked(userID, session.Fingerprint(refreshToken))
	if row == nil {
		return nil, session.ErrDeviceSessionDoesNotExist
	}
	return toDeviceSession(row), nil
}

// Swap atomically repoints the row holding currentToken at nextToken. Of
// two racing swaps exactly one finds the current digest; the other fails.
func (s *SessionStore) Swap(_ context.Context, userID, currentToken, nextToken string) (*session.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := session.Fingerprint(currentToken)
	row := s.findByDigestLocked(userID, current)
	if row == nil || !row.active || row.digest == "" {
		return nil, session.ErrDeviceSessionDoesNotExist
	}

	next := session.Fingerprint(nextToken)
	if s.lifecycle == session.LifecycleAppendOnly {
		delete(s.rows, s.rowKey(userID, current))
		s.rows[s.rowKey(userID, next)] = row
	}
	row.digest = next
	row.updatedAt = time.Now()
	return toDeviceSession(row), nil
}

func (s *SessionStore) SignOut(_ context.Context, userID, deviceAgent, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle == session.LifecycleSingleSlot {
		row, ok := s.rows[s.slotKey(userID, deviceAgent)]
		if !ok {
			return session.ErrDeviceSessionDoesNotExist
		}
		if row.digest == "" {
			return session.ErrUserAlreadySignedOut
		}
		row.digest = ""
		row.active = false
		row.updatedAt = time.Now()
		return nil
	}

	row := s.findByDigestLocked(userID, session.Fingerprint(refreshToken))
	if row == nil {
		return session.ErrDeviceSessionDoesNotExist
	}
	if !row.active {
		return session.ErrUserAlreadySignedOut
	}
	row.active = false
	row.updatedAt = time.Now()
	return nil
}

func (s *SessionStore) PurgeUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, row := range s.rows {
		if row.userID == userID {
			delete(s.rows, key)
		}
	}
	return nil
}

func (s *SessionStore) findByDigestLocked(userID, digest string) *sessionRow {
	if s.lifecycle == session.LifecycleAppendOnly {
		return s.rows[s.rowKey(userID, digest)]
	}
	for _, row := range s.rows {
		if row.userID == userID && row.digest == digest {
			return row
		}
	}
	return nil
}
