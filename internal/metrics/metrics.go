// Package metrics is the in-process recording layer for engine counters
// and latency histograms. Recording is lock-free; exporters pull
// snapshots on their own schedule.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Config toggles recording. Disabled recorders are still safe to call.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Histogram bucket bounds in milliseconds. Observations above the last
// bound land in the overflow bucket.
var latencyBucketsMS = [8]float64{1, 5, 10, 25, 50, 100, 250, 500}

// HistogramSnapshot is a point-in-time copy of one latency histogram.
type HistogramSnapshot struct {
	BucketsMS [8]float64
	Counts    [9]uint64
	SumMS     float64
	Count     uint64
}

// Snapshot is a point-in-time copy of all recorded series.
type Snapshot struct {
	Counters   map[string]uint64
	Histograms map[string]HistogramSnapshot
}

type histogram struct {
	counts [9]atomic.Uint64
	sumUS  atomic.Uint64
	count  atomic.Uint64
}

func (h *histogram) observe(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000
	idx := len(latencyBucketsMS)
	for i, bound := range latencyBucketsMS {
		if ms <= bound {
			idx = i
			break
		}
	}
	h.counts[idx].Add(1)
	h.sumUS.Add(uint64(d.Microseconds()))
	h.count.Add(1)
}

// Metrics aggregates counters and histograms keyed by metric ID.
type Metrics struct {
	cfg Config

	mu         sync.RWMutex
	counters   map[string]*atomic.Uint64
	histograms map[string]*histogram
}

func New(cfg Config) *Metrics {
	return &Metrics{
		cfg:        cfg,
		counters:   make(map[string]*atomic.Uint64),
		histograms: make(map[string]*histogram),
	}
}

// Inc adds delta to the counter named id.
func (m *Metrics) Inc(id string, delta uint64) {
	if m == nil || !m.cfg.Enabled {
		return
	}
	m.counter(id).Add(delta)
}

// Observe records one latency sample for id.
func (m *Metrics) Observe(id string, d time.Duration) {
	if m == nil || !m.cfg.Enabled || !m.cfg.EnableLatency {
		return
	}
	m.histogram(id).observe(d)
}

func (m *Metrics) counter(id string) *atomic.Uint64 {
	m.mu.RLock()
	c, ok := m.counters[id]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[id]; ok {
		return c
	}
	c = new(atomic.Uint64)
	m.counters[id] = c
	return c
}

func (m *Metrics) histogram(id string) *histogram {
	m.mu.RLock()
	h, ok := m.histograms[id]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.histograms[id]; ok {
		return h
	}
	h = new(histogram)
	m.histograms[id] = h
	return h
}

// Snapshot copies out all series recorded so far. Returns zero-value maps
// when recording is disabled.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:   make(map[string]uint64),
		Histograms: make(map[string]HistogramSnapshot),
	}
	if m == nil || !m.cfg.Enabled {
		return snap
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, c := range m.counters {
		snap.Counters[id] = c.Load()
	}
	for id, h := range m.histograms {
		hs := HistogramSnapshot{
			BucketsMS: latencyBucketsMS,
			SumMS:     float64(h.sumUS.Load()) / 1000,
			Count:     h.count.Load(),
		}
		for i := range h.counts {
			hs.Counts[i] = h.counts[i].Load()
		}
		snap.Histograms[id] = hs
	}
	return snap
}
