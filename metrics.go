package authcore

import "sync/atomic"

// MetricID indexes a counter in the engine's metrics block.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricTokensIssued
	MetricTokensRevoked
	MetricVerifyFailure
	MetricPasswordRehash
	MetricRegistrations
	metricCount
)

var metricNames = [metricCount]string{
	"login_success",
	"login_failure",
	"login_rate_limited",
	"tokens_issued",
	"tokens_revoked",
	"verify_failure",
	"password_rehash",
	"registrations",
}

// Metrics is a fixed block of atomic counters. Counters are cheap
// enough to leave always-on; a disabled Metrics turns every operation
// into a no-op. A nil *Metrics is valid.
type Metrics struct {
	enabled  bool
	counters [metricCount]atomic.Uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) inc(id MetricID) {
	if m == nil || !m.enabled {
		return
	}
	if id < 0 || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns a single counter value.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id < 0 || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns all counters keyed by metric name.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, metricCount)
	for id := MetricID(0); id < metricCount; id++ {
		var v uint64
		if m != nil {
			v = m.counters[id].Load()
		}
		out[metricNames[id]] = v
	}
	return out
}
