package authcore

import (
	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/internal/flows"
	"github.com/meenu-gupta/authcore/session"
)

// Domain types re-exported so most integrations only import this package.
type (
	AuthUser               = identity.AuthUser
	AuthIdentifier         = identity.AuthIdentifier
	AttributeUpdate        = identity.AttributeUpdate
	UserStore              = identity.UserStore
	TransactionalUserStore = identity.TransactionalUserStore
	SignInMethod           = identity.SignInMethod
	AuthStage              = identity.AuthStage
	UserStatus             = identity.UserStatus
	IdentifierType         = identity.IdentifierType

	DeviceSession = session.DeviceSession
	SessionStore  = session.Store
	Lifecycle     = session.Lifecycle

	Event     = events.Event
	EventType = events.Type
	EventSink = events.Sink

	ConfirmationCodeStore   = flows.ConfirmationCodes
	TestCredentialsProvider = flows.TestCredentials

	SignUpRequest              = flows.SignUpRequest
	SignUpResult               = flows.SignUpResult
	SignInRequest              = flows.SignInRequest
	SignInResult               = flows.SignInResult
	RefreshRequest             = flows.RefreshRequest
	RefreshResult              = flows.RefreshResult
	SetAuthAttributesRequest   = flows.SetAuthAttributesRequest
	SetAuthAttributesResult    = flows.SetAuthAttributesResult
	CheckAuthAttributesRequest = flows.CheckAuthAttributesRequest
	CheckAuthAttributesResult  = flows.CheckAuthAttributesResult
	SignOutRequest             = flows.SignOutRequest
	SignOutResult              = flows.SignOutResult
	RequestConfirmationRequest = flows.RequestConfirmationRequest
	RequestConfirmationResult  = flows.RequestConfirmationResult
)

// Sign-in methods.
const (
	MethodEmail         = identity.MethodEmail
	MethodPhoneNumber   = identity.MethodPhoneNumber
	MethodEmailPassword = identity.MethodEmailPassword
	MethodTwoFactorAuth = identity.MethodTwoFactorAuth
)

// Authentication stages.
const (
	StageNormal     = identity.StageNormal
	StageFirst      = identity.StageFirst
	StageSecond     = identity.StageSecond
	StageRememberMe = identity.StageRememberMe
)

// User statuses.
const (
	StatusNormal      = identity.StatusNormal
	StatusArchived    = identity.StatusArchived
	StatusCompromised = identity.StatusCompromised
	StatusUnknown     = identity.StatusUnknown
)

// Device-session lifecycles.
const (
	LifecycleSingleSlot = session.LifecycleSingleSlot
	LifecycleAppendOnly = session.LifecycleAppendOnly
)
