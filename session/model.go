// Package session tracks device sessions: the per-device records binding a
// user to their currently valid refresh token. Two lifecycle variants
// coexist because call sites depend on different semantics: the single-slot
// variant keeps at most one active session per (user, device agent) and
// nulls the token on sign-out; the append-only variant keeps one row per
// issued refresh token with an active flag flipped on sign-out.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Lifecycle selects the device-session schema variant.
type Lifecycle string

const (
	// LifecycleSingleSlot keeps one slot per (user, device agent);
	// re-registering overwrites, sign-out nulls the token.
	LifecycleSingleSlot Lifecycle = "single-slot"
	// LifecycleAppendOnly keeps one row per (user, device agent, refresh
	// token); sign-out flips the row inactive.
	LifecycleAppendOnly Lifecycle = "append-only"
)

// Valid reports whether l names a known lifecycle.
func (l Lifecycle) Valid() bool {
	return l == LifecycleSingleSlot || l == LifecycleAppendOnly
}

// DeviceSession is one tracked sign-in. Stores never persist the refresh
// token itself, only its fingerprint; RefreshDigest is empty once a
// single-slot session has been signed out.
type DeviceSession struct {
	UserID        string
	DeviceAgent   string
	RefreshDigest string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Fingerprint derives the stored lookup digest for a refresh token.
func Fingerprint(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}
