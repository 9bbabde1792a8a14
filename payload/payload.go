// Package payload defines the JSON request and response shapes of an HTTP
// boundary over the engine, with validation tags checked before a request
// reaches the core.
package payload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/meenu-gupta/authcore"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a payload struct's tags. The returned error lists every
// failing field and is safe to echo to clients.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return err
	}
	var fields []string
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid request fields: %s", strings.Join(fields, ", "))
}

type SignUpRequest struct {
	Method      string         `json:"method"      validate:"required,oneof=EMAIL PHONE_NUMBER EMAIL_PASSWORD TWO_FACTOR_AUTH"`
	Email       string         `json:"email,omitempty"       validate:"omitempty,email"`
	PhoneNumber string         `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	Password    string         `json:"password,omitempty"    validate:"omitempty,min=8"`
	DisplayName string         `json:"displayName,omitempty" validate:"omitempty,max=128"`
	ClientID    string         `json:"clientId,omitempty"    validate:"omitempty,max=128"`
	ProjectID   string         `json:"projectId,omitempty"   validate:"omitempty,max=128"`
	Attributes  map[string]any `json:"userAttributes,omitempty"`
}

func (r SignUpRequest) ToEngine() authcore.SignUpRequest {
	return authcore.SignUpRequest{
		Method:      authcore.SignInMethod(r.Method),
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		Password:    r.Password,
		DisplayName: r.DisplayName,
		ClientID:    r.ClientID,
		ProjectID:   r.ProjectID,
		Attributes:  r.Attributes,
	}
}

type SignUpResponse struct {
	UID string `json:"uid"`
}

type SignInRequest struct {
	Method           string `json:"method"      validate:"required,oneof=EMAIL PHONE_NUMBER EMAIL_PASSWORD TWO_FACTOR_AUTH"`
	Email            string `json:"email,omitempty"            validate:"omitempty,email"`
	PhoneNumber      string `json:"phoneNumber,omitempty"      validate:"omitempty,e164"`
	Password         string `json:"password,omitempty"`
	ConfirmationCode string `json:"confirmationCode,omitempty" validate:"omitempty,numeric"`
	RefreshToken     string `json:"refreshToken,omitempty"`
	DeviceAgent      string `json:"deviceAgent,omitempty"      validate:"omitempty,max=256"`
	ClientID         string `json:"clientId,omitempty"         validate:"omitempty,max=128"`
	ProjectID        string `json:"projectId,omitempty"        validate:"omitempty,max=128"`
}

func (r SignInRequest) ToEngine() authcore.SignInRequest {
	return authcore.SignInRequest{
		Method:           authcore.SignInMethod(r.Method),
		Email:            r.Email,
		PhoneNumber:      r.PhoneNumber,
		Password:         r.Password,
		ConfirmationCode: r.ConfirmationCode,
		RefreshToken:     r.RefreshToken,
		DeviceAgent:      r.DeviceAgent,
		ClientID:         r.ClientID,
		ProjectID:        r.ProjectID,
	}
}

type SignInResponse struct {
	UID          string `json:"uid"`
	AuthToken    string `json:"authToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	AuthStage    string `json:"authStage"`
}

func NewSignInResponse(res *authcore.SignInResult) SignInResponse {
	return SignInResponse{
		UID:          res.UID,
		AuthToken:    res.AuthToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
		AuthStage:    string(res.AuthStage),
	}
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	Password     string `json:"password,omitempty"`
	Email        string `json:"email,omitempty"       validate:"omitempty,email"`
	DeviceToken  string `json:"deviceToken,omitempty"`
	DeviceAgent  string `json:"deviceAgent,omitempty" validate:"omitempty,max=256"`
}

func (r RefreshRequest) ToEngine() authcore.RefreshRequest {
	return authcore.RefreshRequest{
		RefreshToken: r.RefreshToken,
		Password:     r.Password,
		Email:        r.Email,
		DeviceToken:  r.DeviceToken,
		DeviceAgent:  r.DeviceAgent,
	}
}

type RefreshResponse struct {
	AuthToken             string `json:"authToken"`
	ExpiresIn             int64  `json:"expiresIn"`
	RefreshToken          string `json:"refreshToken,omitempty"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn,omitempty"`
}

func NewRefreshResponse(res *authcore.RefreshResult) RefreshResponse {
	return RefreshResponse{
		AuthToken:             res.AuthToken,
		ExpiresIn:             res.ExpiresIn,
		RefreshToken:          res.RefreshToken,
		RefreshTokenExpiresIn: res.RefreshTokenExpiresIn,
	}
}

type SetAuthAttributesRequest struct {
	TokenType        string `json:"tokenType,omitempty"        validate:"omitempty,oneof=access refresh invitation"`
	Email            string `json:"email,omitempty"            validate:"omitempty,email"`
	PhoneNumber      string `json:"phoneNumber,omitempty"      validate:"omitempty,e164"`
	Password         string `json:"password,omitempty"         validate:"omitempty,min=8"`
	OldPassword      string `json:"oldPassword,omitempty"`
	DeviceToken      string `json:"deviceToken,omitempty"`
	ConfirmationCode string `json:"confirmationCode,omitempty" validate:"omitempty,numeric"`
	MFAEnabled       *bool  `json:"mfaEnabled,omitempty"`
	DeviceAgent      string `json:"deviceAgent,omitempty"      validate:"omitempty,max=256"`
}

// ToEngine attaches the bearer token carried by the transport layer.
func (r SetAuthAttributesRequest) ToEngine(authToken string) authcore.SetAuthAttributesRequest {
	return authcore.SetAuthAttributesRequest{
		AuthToken:        authToken,
		TokenType:        r.TokenType,
		Email:            r.Email,
		PhoneNumber:      r.PhoneNumber,
		Password:         r.Password,
		OldPassword:      r.OldPassword,
		DeviceToken:      r.DeviceToken,
		ConfirmationCode: r.ConfirmationCode,
		MFAEnabled:       r.MFAEnabled,
		DeviceAgent:      r.DeviceAgent,
	}
}

type SetAuthAttributesResponse struct {
	UID                   string `json:"uid"`
	PhoneNumberUpdated    bool   `json:"phoneNumberUpdated"`
	RefreshToken          string `json:"refreshToken,omitempty"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn,omitempty"`
}

type CheckAuthAttributesRequest struct {
	Email       string `json:"email,omitempty"       validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	ClientID    string `json:"clientId,omitempty"    validate:"omitempty,max=128"`
	ProjectID   string `json:"projectId,omitempty"   validate:"omitempty,max=128"`
}

// ToEngine attaches the optional bearer token carried by the transport
// layer; an empty token leaves email or phone as the selector.
func (r CheckAuthAttributesRequest) ToEngine(authToken string) authcore.CheckAuthAttributesRequest {
	return authcore.CheckAuthAttributesRequest{
		AuthToken:   authToken,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		ClientID:    r.ClientID,
		ProjectID:   r.ProjectID,
	}
}

type CheckAuthAttributesResponse struct {
	Email               string `json:"email,omitempty"`
	PhoneNumber         string `json:"phoneNumber,omitempty"`
	EmailVerified       bool   `json:"emailVerified"`
	PhoneNumberVerified bool   `json:"phoneNumberVerified"`
	PasswordSet         bool   `json:"passwordSet"`
	EligibleForMFA      bool   `json:"eligibleForMfa"`
	MFAEnabled          bool   `json:"mfaEnabled"`
	MFARequired         bool   `json:"mfaRequired"`
}

func NewCheckAuthAttributesResponse(res *authcore.CheckAuthAttributesResult) CheckAuthAttributesResponse {
	return CheckAuthAttributesResponse{
		Email:               res.Email,
		PhoneNumber:         res.PhoneNumber,
		EmailVerified:       res.EmailVerified,
		PhoneNumberVerified: res.PhoneNumberVerified,
		PasswordSet:         res.PasswordSet,
		EligibleForMFA:      res.EligibleForMFA,
		MFAEnabled:          res.MFAEnabled,
		MFARequired:         res.MFARequired,
	}
}

type SignOutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	DeviceAgent  string `json:"deviceAgent,omitempty" validate:"omitempty,max=256"`
	DeviceToken  string `json:"deviceToken,omitempty"`
}

type RequestConfirmationRequest struct {
	Method      string `json:"method"      validate:"required,oneof=EMAIL PHONE_NUMBER"`
	Email       string `json:"email,omitempty"       validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	ClientID    string `json:"clientId,omitempty"    validate:"omitempty,max=128"`
	ProjectID   string `json:"projectId,omitempty"   validate:"omitempty,max=128"`
}

func (r RequestConfirmationRequest) ToEngine() authcore.RequestConfirmationRequest {
	return authcore.RequestConfirmationRequest{
		Method:      authcore.SignInMethod(r.Method),
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		ClientID:    r.ClientID,
		ProjectID:   r.ProjectID,
	}
}

type RequestConfirmationResponse struct {
	ExpiresIn int64 `json:"expiresIn"`
}

// ErrorResponse is the uniform failure shape. Code carries the stable
// engine code from authcore.Code.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
