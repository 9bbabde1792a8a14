package authcore

import "github.com/meenu-gupta/authcore/internal/metrics"

// Metric IDs recorded by the engine. Counter IDs count occurrences;
// .latency IDs are histograms in milliseconds.
const (
	MetricSignUpSuccess       = "auth.signup.success"
	MetricSignUpFailure       = "auth.signup.failure"
	MetricSignInSuccess       = "auth.signin.success"
	MetricSignInFailure       = "auth.signin.failure"
	MetricSignInMFAUpgrade    = "auth.signin.mfa_upgrade"
	MetricRefreshSuccess      = "auth.refresh.success"
	MetricRefreshFailure      = "auth.refresh.failure"
	MetricRefreshStale        = "auth.refresh.stale_session"
	MetricRefreshIdleTimeout  = "auth.refresh.idle_timeout"
	MetricAttributesUpdated   = "auth.attributes.updated"
	MetricAttributesRejected  = "auth.attributes.rejected"
	MetricSignOutSuccess      = "auth.signout.success"
	MetricConfirmationIssued  = "auth.confirmation.issued"
	MetricDeleteUserSuccess   = "auth.delete_user.success"
	MetricEventsDropped       = "auth.events.dropped"
	MetricSignInLatency       = "auth.signin.latency"
	MetricRefreshLatency      = "auth.refresh.latency"
	MetricSignUpLatency       = "auth.signup.latency"
	MetricAttributesLatency   = "auth.attributes.latency"
	MetricConfirmationLatency = "auth.confirmation.latency"
)

// Snapshot types re-exported for exporters and operators.
type (
	MetricsSnapshot   = metrics.Snapshot
	HistogramSnapshot = metrics.HistogramSnapshot
)
