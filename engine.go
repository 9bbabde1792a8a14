package authcore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
	"github.com/meenu-gupta/authcore/internal/flows"
	"github.com/meenu-gupta/authcore/internal/metrics"
	"github.com/meenu-gupta/authcore/session"
	"github.com/meenu-gupta/authcore/token"
)

// Engine is the assembled authentication service. All methods are safe
// for concurrent use. Operations return sentinel errors from this
// package; map them to wire codes with Code.
type Engine struct {
	service flows.Service
	codec   *token.Codec
	events  *events.Pipeline
	metrics *metrics.Metrics
	log     zerolog.Logger
	closed  atomic.Bool
}

// SignUp registers a new user.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := time.Now()
	res, err := e.service.SignUp(ctx, req)
	e.metrics.Observe(MetricSignUpLatency, time.Since(start))
	if err != nil {
		e.metrics.Inc(MetricSignUpFailure, 1)
		return nil, err
	}
	e.metrics.Inc(MetricSignUpSuccess, 1)
	return res, nil
}

// SignIn runs one step of the sign-in state machine. The stage is
// inferred from the request shape; callers never supply it.
func (e *Engine) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := time.Now()
	res, err := e.service.SignIn(ctx, req)
	e.metrics.Observe(MetricSignInLatency, time.Since(start))
	if err != nil {
		e.metrics.Inc(MetricSignInFailure, 1)
		return nil, err
	}
	e.metrics.Inc(MetricSignInSuccess, 1)
	if res.AuthStage == identity.StageSecond && req.Method != identity.MethodTwoFactorAuth {
		e.metrics.Inc(MetricSignInMFAUpgrade, 1)
	}
	return res, nil
}

// RefreshToken exchanges a refresh token for a new access token,
// rotating the refresh token when the session schema calls for it.
func (e *Engine) RefreshToken(ctx context.Context, req RefreshRequest) (*RefreshResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := time.Now()
	res, err := e.service.Refresh(ctx, req)
	e.metrics.Observe(MetricRefreshLatency, time.Since(start))
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure, 1)
		switch {
		case errors.Is(err, session.ErrDeviceSessionDoesNotExist),
			errors.Is(err, session.ErrUserAlreadySignedOut):
			e.metrics.Inc(MetricRefreshStale, 1)
		case errors.Is(err, identity.ErrSessionTimeout):
			e.metrics.Inc(MetricRefreshIdleTimeout, 1)
		}
		return nil, err
	}
	e.metrics.Inc(MetricRefreshSuccess, 1)
	return res, nil
}

// SetAuthAttributes mutates credentials and identifiers under token
// authority.
func (e *Engine) SetAuthAttributes(ctx context.Context, req SetAuthAttributesRequest) (*SetAuthAttributesResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := time.Now()
	res, err := e.service.SetAuthAttributes(ctx, req)
	e.metrics.Observe(MetricAttributesLatency, time.Since(start))
	if err != nil {
		e.metrics.Inc(MetricAttributesRejected, 1)
		return nil, err
	}
	e.metrics.Inc(MetricAttributesUpdated, 1)
	return res, nil
}

// CheckAuthAttributes reports a user's credential state without
// mutating anything.
func (e *Engine) CheckAuthAttributes(ctx context.Context, req CheckAuthAttributesRequest) (*CheckAuthAttributesResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return e.service.CheckAuthAttributes(ctx, req)
}

// SignOut invalidates the caller's device session.
func (e *Engine) SignOut(ctx context.Context, req SignOutRequest) (*SignOutResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	res, err := e.service.SignOut(ctx, req)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricSignOutSuccess, 1)
	return res, nil
}

// RequestConfirmation issues a one-time code and hands it to the event
// sink for delivery.
func (e *Engine) RequestConfirmation(ctx context.Context, req RequestConfirmationRequest) (*RequestConfirmationResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := time.Now()
	res, err := e.service.RequestConfirmation(ctx, req)
	e.metrics.Observe(MetricConfirmationLatency, time.Since(start))
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricConfirmationIssued, 1)
	return res, nil
}

// DeleteUser removes the user record and every session it owns.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := e.service.DeleteUser(ctx, userID); err != nil {
		return err
	}
	e.metrics.Inc(MetricDeleteUserSuccess, 1)
	return nil
}

// DecodeAccessToken verifies an access token for middleware use. It
// does not consult any store.
func (e *Engine) DecodeAccessToken(tokenString string) (*token.Claims, error) {
	return e.codec.Decode(tokenString, token.TypeAccess)
}

// MetricsSnapshot copies out everything recorded so far.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	snap := e.metrics.Snapshot()
	if dropped := e.events.Dropped(); dropped > 0 {
		snap.Counters[MetricEventsDropped] = dropped
	}
	return snap
}

// EventsDropped reports post events lost to a full dispatch buffer.
func (e *Engine) EventsDropped() uint64 {
	return e.events.Dropped()
}

// Close drains the event dispatcher and rejects further operations.
// Close is idempotent.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.events.Close()
}
