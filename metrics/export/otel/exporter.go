// Package otel republishes engine metric snapshots through an
// OpenTelemetry meter. The exporter is pull-based: a registered callback
// reads a fresh snapshot on every collection cycle.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/meenu-gupta/authcore"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricDef struct {
	id   string
	name string
	help string
}

var counterDefs = []metricDef{
	{authcore.MetricSignUpSuccess, "authcore_signup_success_total", "Successful registrations."},
	{authcore.MetricSignUpFailure, "authcore_signup_failure_total", "Failed registrations."},
	{authcore.MetricSignInSuccess, "authcore_signin_success_total", "Successful sign-ins."},
	{authcore.MetricSignInFailure, "authcore_signin_failure_total", "Failed sign-ins."},
	{authcore.MetricSignInMFAUpgrade, "authcore_signin_mfa_upgrade_total", "Sign-ins auto-upgraded to a second-stage session."},
	{authcore.MetricRefreshSuccess, "authcore_refresh_success_total", "Successful token refreshes."},
	{authcore.MetricRefreshFailure, "authcore_refresh_failure_total", "Failed token refreshes."},
	{authcore.MetricRefreshStale, "authcore_refresh_stale_session_total", "Refreshes rejected for a missing or rotated session."},
	{authcore.MetricRefreshIdleTimeout, "authcore_refresh_idle_timeout_total", "Refreshes rejected for an idle privileged session."},
	{authcore.MetricAttributesUpdated, "authcore_attributes_updated_total", "Granted attribute updates."},
	{authcore.MetricAttributesRejected, "authcore_attributes_rejected_total", "Rejected attribute updates."},
	{authcore.MetricSignOutSuccess, "authcore_signout_success_total", "Successful sign-outs."},
	{authcore.MetricConfirmationIssued, "authcore_confirmation_issued_total", "Issued confirmation codes."},
	{authcore.MetricDeleteUserSuccess, "authcore_delete_user_success_total", "Deleted users."},
}

var histogramDefs = []metricDef{
	{authcore.MetricSignInLatency, "authcore_signin_latency_ms", "Sign-in latency."},
	{authcore.MetricSignUpLatency, "authcore_signup_latency_ms", "Sign-up latency."},
	{authcore.MetricRefreshLatency, "authcore_refresh_latency_ms", "Refresh latency."},
	{authcore.MetricAttributesLatency, "authcore_attributes_latency_ms", "Attribute update latency."},
	{authcore.MetricConfirmationLatency, "authcore_confirmation_latency_ms", "Confirmation issuance latency."},
}

// bucketSuffixes mirror the engine histogram bounds plus the overflow
// bucket.
var bucketSuffixes = [9]string{"1", "5", "10", "25", "50", "100", "250", "500", "inf"}

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	EventsDropped() uint64
}

type observedCounter struct {
	id         string
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      string
	buckets [9]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter bridges engine snapshots into OpenTelemetry instruments.
type Exporter struct {
	source        metricsSource
	registration  metric.Registration
	counters      []observedCounter
	histograms    []observedHistogram
	eventsDropped metric.Int64ObservableCounter
}

// NewExporter registers observable instruments for every engine metric on
// the meter. Close unregisters them.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source, which
// keeps the exporter testable without a full engine.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(counterDefs)),
		histograms: make([]observedHistogram, 0, len(histogramDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+len(histogramDefs)*10+1)

	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range histogramDefs {
		h := observedHistogram{id: def.id}
		for i, suffix := range bucketSuffixes {
			name := def.name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	eventsDropped, err := meter.Int64ObservableCounter(
		"authcore_events_dropped_total",
		metric.WithDescription("Post events dropped by dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create events dropped counter: %w", err)
	}
	exporter.eventsDropped = eventsDropped
	observables = append(observables, eventsDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		for _, h := range exporter.histograms {
			cumulative := cumulativeBuckets(snapshot.Histograms[h.id])
			for i := range cumulative {
				observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
			}
			observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		}
		observer.ObserveInt64(exporter.eventsDropped, int64(exporter.source.EventsDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func cumulativeBuckets(hs authcore.HistogramSnapshot) [9]uint64 {
	var out [9]uint64
	var running uint64
	for i, count := range hs.Counts {
		running += count
		out[i] = running
	}
	return out
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
