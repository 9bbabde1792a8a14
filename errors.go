package authcore

import (
	"errors"

	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/session"
	"github.com/meenu-gupta/authcore/token"
)

// Sentinel errors re-exported so callers compare against a single package.
var (
	ErrUnauthorized               = identity.ErrUnauthorized
	ErrInvalidUsernameOrPassword  = identity.ErrInvalidUsernameOrPassword
	ErrInvalidRequest             = identity.ErrInvalidRequest
	ErrUserAlreadyExists          = identity.ErrUserAlreadyExists
	ErrSessionTimeout             = identity.ErrSessionTimeout
	ErrInvalidVerificationCode    = identity.ErrInvalidVerificationCode
	ErrInvalidTokenProvider       = identity.ErrInvalidTokenProvider
	ErrEmailNotVerified           = identity.ErrEmailNotVerified
	ErrEmailAlreadySet            = identity.ErrEmailAlreadySet
	ErrPhoneNumberNotSet          = identity.ErrPhoneNumberNotSet
	ErrPhoneNumberNotVerified     = identity.ErrPhoneNumberNotVerified
	ErrPhoneNumberAlreadySet      = identity.ErrPhoneNumberAlreadySet
	ErrPhoneNumberAlreadyVerified = identity.ErrPhoneNumberAlreadyVerified
	ErrPasswordNotSet             = identity.ErrPasswordNotSet
	ErrPasswordAlreadySet         = identity.ErrPasswordAlreadySet
	ErrInvalidPassword            = identity.ErrInvalidPassword
	ErrAlreadyUsedPassword        = identity.ErrAlreadyUsedPassword
	ErrConfirmationCodeMissing    = identity.ErrConfirmationCodeMissing
	ErrPasswordExpired            = identity.ErrPasswordExpired
	ErrStoreUnavailable           = identity.ErrStoreUnavailable

	ErrTokenExpired   = token.ErrTokenExpired
	ErrWrongTokenType = token.ErrWrongTokenType
	ErrMalformedToken = token.ErrMalformedToken

	ErrDeviceSessionDoesNotExist = session.ErrDeviceSessionDoesNotExist
	ErrUserAlreadySignedOut      = session.ErrUserAlreadySignedOut
)

// ErrEngineClosed is returned by every operation after Close.
var ErrEngineClosed = errors.New("authcore: engine closed")

// Code maps an operation error to its stable wire code. The codes are part
// of the public contract and never change between releases; new failure
// modes get new codes. Unknown errors map to "InternalError".
func Code(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, identity.ErrInvalidUsernameOrPassword):
		return "InvalidUsernameOrPassword"
	case errors.Is(err, identity.ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, identity.ErrUserAlreadyExists):
		return "UserAlreadyExists"
	case errors.Is(err, identity.ErrSessionTimeout):
		return "SessionTimeout"
	case errors.Is(err, identity.ErrInvalidVerificationCode):
		return "InvalidVerificationCode"
	case errors.Is(err, identity.ErrInvalidTokenProvider):
		return "InvalidTokenProvider"
	case errors.Is(err, identity.ErrEmailNotVerified):
		return "EmailNotVerified"
	case errors.Is(err, identity.ErrEmailAlreadySet):
		return "EmailAlreadySet"
	case errors.Is(err, identity.ErrPhoneNumberNotSet):
		return "PhoneNumberNotSet"
	case errors.Is(err, identity.ErrPhoneNumberNotVerified):
		return "PhoneNumberNotVerified"
	case errors.Is(err, identity.ErrPhoneNumberAlreadySet):
		return "PhoneNumberAlreadySet"
	case errors.Is(err, identity.ErrPhoneNumberAlreadyVerified):
		return "PhoneNumberAlreadyVerified"
	case errors.Is(err, identity.ErrPasswordNotSet):
		return "PasswordNotSet"
	case errors.Is(err, identity.ErrPasswordAlreadySet):
		return "PasswordAlreadySet"
	case errors.Is(err, identity.ErrInvalidPassword):
		return "InvalidPassword"
	case errors.Is(err, identity.ErrAlreadyUsedPassword):
		return "AlreadyUsedPassword"
	case errors.Is(err, identity.ErrConfirmationCodeMissing):
		return "ConfirmationCodeMissing"
	case errors.Is(err, identity.ErrPasswordExpired):
		return "PasswordExpired"
	case errors.Is(err, token.ErrTokenExpired):
		return "TokenExpired"
	case errors.Is(err, token.ErrWrongTokenType):
		return "WrongTokenType"
	case errors.Is(err, token.ErrMalformedToken):
		return "MalformedToken"
	case errors.Is(err, session.ErrDeviceSessionDoesNotExist):
		return "DeviceSessionDoesNotExist"
	case errors.Is(err, session.ErrUserAlreadySignedOut):
		return "UserAlreadySignedOut"
	case errors.Is(err, identity.ErrStoreUnavailable), errors.Is(err, session.ErrBackendUnavailable):
		return "StoreUnavailable"
	case errors.Is(err, identity.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrEngineClosed):
		return "EngineClosed"
	default:
		return "InternalError"
	}
}
