package identity

import (
	"strings"
	"time"
)

// UserStatus is the lifecycle state of an identity record.
type UserStatus string

const (
	// StatusNormal marks a fully usable account.
	StatusNormal UserStatus = "NORMAL"
	// StatusArchived marks a soft-retired account that can no longer sign in.
	StatusArchived UserStatus = "ARCHIVED"
	// StatusCompromised marks an account frozen after a security incident.
	StatusCompromised UserStatus = "COMPROMISED"
	// StatusUnknown is the zero-value status for records written before
	// status tracking existed.
	StatusUnknown UserStatus = "UNKNOWN"
)

// SignInMethod selects the credential family a sign-in request presents.
type SignInMethod string

const (
	// MethodEmail signs in with an emailed one-time code.
	MethodEmail SignInMethod = "EMAIL"
	// MethodPhoneNumber signs in with an SMS one-time code.
	MethodPhoneNumber SignInMethod = "PHONE_NUMBER"
	// MethodEmailPassword signs in with email plus password.
	MethodEmailPassword SignInMethod = "EMAIL_PASSWORD"
	// MethodTwoFactorAuth runs the staged two-factor flow.
	MethodTwoFactorAuth SignInMethod = "TWO_FACTOR_AUTH"
)

// AuthStage is the position within the two-factor flow. It is stamped into
// refresh-token claims and gates what a session is allowed to do.
type AuthStage string

const (
	// StageNormal is a plain single-factor session.
	StageNormal AuthStage = "NORMAL"
	// StageFirst is a password-only session awaiting the second factor.
	StageFirst AuthStage = "FIRST"
	// StageSecond is a fully verified two-factor session.
	StageSecond AuthStage = "SECOND"
	// StageRememberMe re-establishes a SECOND session with a password only.
	StageRememberMe AuthStage = "REMEMBER_ME"
)

// IdentifierType distinguishes the MFA identifier kinds attached to a user.
type IdentifierType string

const (
	// IdentifierPhoneNumber is a phone number; at most one verified entry
	// per user is meaningful.
	IdentifierPhoneNumber IdentifierType = "PHONE_NUMBER"
	// IdentifierDeviceToken is a per-device trust token. Device tokens are
	// never "verified"; their presence is the trust signal.
	IdentifierDeviceToken IdentifierType = "DEVICE_TOKEN"
)

// AuthIdentifier is a single MFA identifier entry.
type AuthIdentifier struct {
	Type     IdentifierType `json:"type"     bson:"type"`
	Value    string         `json:"value"    bson:"value"`
	Verified bool           `json:"verified" bson:"verified"`
}

// PreviousPasswordWindow bounds the password-reuse history. A new password
// must differ from the current hash and the last PreviousPasswordWindow
// retired hashes.
const PreviousPasswordWindow = 3

// AuthUser is the identity record consumed by every use case. It is loaded
// from and persisted through a UserStore; the core never caches it across
// requests.
type AuthUser struct {
	ID                  string           `json:"id"                  bson:"_id,omitempty"`
	Status              UserStatus       `json:"status"              bson:"status"`
	Email               string           `json:"email,omitempty"     bson:"email,omitempty"`
	EmailVerified       bool             `json:"emailVerified"       bson:"email_verified"`
	PhoneNumber         string           `json:"phoneNumber,omitempty" bson:"phone_number,omitempty"`
	PhoneNumberVerified bool             `json:"phoneNumberVerified" bson:"phone_number_verified"`
	HashedPassword      string           `json:"-"                   bson:"hashed_password,omitempty"`
	PreviousPasswords   []string         `json:"-"                   bson:"previous_passwords,omitempty"`
	PasswordCreatedAt   time.Time        `json:"-"                   bson:"password_created_at,omitempty"`
	PasswordUpdatedAt   time.Time        `json:"-"                   bson:"password_updated_at,omitempty"`
	MFAEnabled          bool             `json:"mfaEnabled"          bson:"mfa_enabled"`
	MFAIdentifiers      []AuthIdentifier `json:"mfaIdentifiers,omitempty" bson:"mfa_identifiers,omitempty"`
	AuthKeys            []string         `json:"-"                   bson:"auth_keys,omitempty"`
	DisplayName         string           `json:"displayName,omitempty" bson:"display_name,omitempty"`
	Attributes          map[string]any   `json:"userAttributes,omitempty" bson:"user_attributes,omitempty"`
	ValidationData      map[string]any   `json:"-"                   bson:"validation_data,omitempty"`
}

// PasswordSet reports whether the user has a stored password hash.
func (u *AuthUser) PasswordSet() bool {
	return u.HashedPassword != ""
}

// VerifiedPhoneIdentifier returns the verified PHONE_NUMBER identifier, if
// any. At most one verified entry per type is assumed; the first wins.
func (u *AuthUser) VerifiedPhoneIdentifier() (AuthIdentifier, bool) {
	for _, id := range u.MFAIdentifiers {
		if id.Type == IdentifierPhoneNumber && id.Verified {
			return id, true
		}
	}
	return AuthIdentifier{}, false
}

// HasDeviceToken reports whether value is registered as a DEVICE_TOKEN
// identifier on this user.
func (u *AuthUser) HasDeviceToken(value string) bool {
	if value == "" {
		return false
	}
	for _, id := range u.MFAIdentifiers {
		if id.Type == IdentifierDeviceToken && id.Value == value {
			return true
		}
	}
	return false
}

// EligibleForMFA reports whether the user can be auto-promoted to a
// second-factor session: password set, verified phone identifier present,
// and a verified email.
func (u *AuthUser) EligibleForMFA() bool {
	if !u.PasswordSet() {
		return false
	}
	if _, ok := u.VerifiedPhoneIdentifier(); !ok {
		return false
	}
	return u.Email != "" && u.EmailVerified
}

// PushPreviousPassword appends a retired hash to the history, most recent
// last, and trims the window to PreviousPasswordWindow entries.
func (u *AuthUser) PushPreviousPassword(hash string) {
	u.PreviousPasswords = append(u.PreviousPasswords, hash)
	if n := len(u.PreviousPasswords); n > PreviousPasswordWindow {
		u.PreviousPasswords = append([]string(nil), u.PreviousPasswords[n-PreviousPasswordWindow:]...)
	}
}

// UpsertIdentifier replaces the identifier matching (type, value) or, for
// PHONE_NUMBER, the existing entry of that type, keeping at most one
// meaningful phone entry. Missing entries are appended.
func (u *AuthUser) UpsertIdentifier(id AuthIdentifier) {
	for i, existing := range u.MFAIdentifiers {
		if existing.Type != id.Type {
			continue
		}
		if id.Type == IdentifierPhoneNumber || existing.Value == id.Value {
			u.MFAIdentifiers[i] = id
			return
		}
	}
	u.MFAIdentifiers = append(u.MFAIdentifiers, id)
}

// RemoveIdentifier drops the identifier matching (type, value). It reports
// whether an entry was removed.
func (u *AuthUser) RemoveIdentifier(typ IdentifierType, value string) bool {
	for i, existing := range u.MFAIdentifiers {
		if existing.Type == typ && existing.Value == value {
			u.MFAIdentifiers = append(u.MFAIdentifiers[:i], u.MFAIdentifiers[i+1:]...)
			return true
		}
	}
	return false
}

// NormalizeEmail canonicalizes an email for the case-insensitive uniqueness
// rule: trimmed and lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
