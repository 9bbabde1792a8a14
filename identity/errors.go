package identity

import "errors"

// Request-scope failure taxonomy. Every value is recoverable by retrying
// with different input and is surfaced to the boundary with a stable code;
// none is a fatal process error.
var (
	// ErrUnauthorized covers user-not-found and generic bad-credential cases.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidUsernameOrPassword is the password re-auth failure.
	ErrInvalidUsernameOrPassword = errors.New("invalid username or password")
	// ErrInvalidRequest rejects a request shape before dispatch.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUserAlreadyExists rejects duplicate email/phone on sign-up.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrSessionTimeout forces explicit re-auth on an idle privileged session.
	ErrSessionTimeout = errors.New("session timeout")
	// ErrInvalidVerificationCode rejects a wrong, expired, or exhausted
	// confirmation code.
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	// ErrInvalidTokenProvider rejects a refresh token whose method claim
	// does not match the requested operation.
	ErrInvalidTokenProvider = errors.New("invalid token provider")
	// ErrEmailNotVerified blocks password sign-in before email verification.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrEmailAlreadySet rejects a second email set; email is one-time.
	ErrEmailAlreadySet = errors.New("email already set")
	// ErrPhoneNumberNotSet means no phone identifier exists at all.
	ErrPhoneNumberNotSet = errors.New("phone number not set")
	// ErrPhoneNumberNotVerified means the phone identifier is unverified.
	ErrPhoneNumberNotVerified = errors.New("phone number not verified")
	// ErrPhoneNumberAlreadySet rejects re-setting the identical number.
	ErrPhoneNumberAlreadySet = errors.New("phone number already set")
	// ErrPhoneNumberAlreadyVerified rejects re-verifying a verified number.
	ErrPhoneNumberAlreadyVerified = errors.New("phone number already verified")
	// ErrPasswordNotSet means the account has no password credential.
	ErrPasswordNotSet = errors.New("password not set")
	// ErrPasswordAlreadySet rejects a first-time set on an account that
	// already carries a password (rotation requires the old password).
	ErrPasswordAlreadySet = errors.New("password already set")
	// ErrInvalidPassword rejects a wrong old password during rotation.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrAlreadyUsedPassword rejects reuse of the current hash or any hash
	// in the previous-password window.
	ErrAlreadyUsedPassword = errors.New("password already used")
	// ErrConfirmationCodeMissing means the operation needs a confirmation
	// code and none was supplied.
	ErrConfirmationCodeMissing = errors.New("confirmation code missing")
	// ErrPasswordExpired fails sign-in closed when the password age exceeds
	// the configured maximum, even though authentication itself succeeded.
	ErrPasswordExpired = errors.New("password expired")
)

// ErrStoreUnavailable wraps infrastructure failures (network/timeout to the
// backing store). It is distinct from the request-scope taxonomy above and
// should trigger caller-side retry, not client-error handling.
var ErrStoreUnavailable = errors.New("user store unavailable")
