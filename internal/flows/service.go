package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Users != nil && s.deps.Codec != nil
}

func (s Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	return RunSignUp(ctx, req, s.deps)
}

func (s Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	return RunSignIn(ctx, req, s.deps)
}

func (s Service) Refresh(ctx context.Context, req RefreshRequest) (*RefreshResult, error) {
	return RunRefresh(ctx, req, s.deps)
}

func (s Service) SetAuthAttributes(ctx context.Context, req SetAuthAttributesRequest) (*SetAuthAttributesResult, error) {
	return RunSetAuthAttributes(ctx, req, s.deps)
}

func (s Service) CheckAuthAttributes(ctx context.Context, req CheckAuthAttributesRequest) (*CheckAuthAttributesResult, error) {
	return RunCheckAuthAttributes(ctx, req, s.deps)
}

func (s Service) SignOut(ctx context.Context, req SignOutRequest) (*SignOutResult, error) {
	return RunSignOut(ctx, req, s.deps)
}

func (s Service) RequestConfirmation(ctx context.Context, req RequestConfirmationRequest) (*RequestConfirmationResult, error) {
	return RunRequestConfirmation(ctx, req, s.deps)
}

func (s Service) DeleteUser(ctx context.Context, userID string) error {
	return RunDeleteUser(ctx, userID, s.deps)
}
