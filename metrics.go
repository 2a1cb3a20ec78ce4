package devAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that returned a token.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected for bad credentials or unknown users.
	MetricLoginFailure
	// MetricLoginLocked counts logins rejected because the account is blocked.
	MetricLoginLocked
	// MetricLoginSuperseded counts logins whose cache write lost to a newer login on the same device.
	MetricLoginSuperseded
	// MetricRegisterSuccess counts created accounts.
	MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations rejected for a taken username or email.
	MetricRegisterDuplicate
	// MetricValidateSuccess counts tokens accepted by ValidateToken.
	MetricValidateSuccess
	// MetricValidateFailure counts tokens rejected by ValidateToken.
	MetricValidateFailure
	// MetricCacheUnavailable counts session cache calls that failed at the transport.
	MetricCacheUnavailable
	// MetricSessionCreated counts session cache slots written at login.
	MetricSessionCreated
	// MetricSessionEvicted counts session cache slots removed by validation or revocation.
	MetricSessionEvicted
	// MetricDeviceTrusted counts TrustDevice calls that hit a device.
	MetricDeviceTrusted
	// MetricDeviceRevoked counts RevokeDevice calls that hit a device.
	MetricDeviceRevoked
	// MetricLogout counts single-device logouts.
	MetricLogout
	// MetricLogoutAll counts logout-all operations.
	MetricLogoutAll
	// MetricValidateLatency is the ValidateToken latency histogram.
	MetricValidateLatency

	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the first seven latency
// buckets; the eighth is unbounded.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(latencyBounds) + 1

// counterSlot keeps each counter on its own cache line so hot counters
// updated from different cores do not contend.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// latencyHistogram is a fixed-bucket histogram with a running sum in
// nanoseconds.
type latencyHistogram struct {
	buckets [latencyBucketCount]atomic.Uint64
	sumNS   atomic.Uint64
}

func (h *latencyHistogram) observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	i := 0
	for i < len(latencyBounds) && d > latencyBounds[i] {
		i++
	}
	h.buckets[i].Add(1)
	h.sumNS.Add(uint64(d))
}

// MetricsConfig controls in-process metric collection.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// Metrics is a fixed set of lock-free counters plus the validate latency
// histogram. A nil or disabled *Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counterSlot
	validate      latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
//
// Histogram buckets are non-cumulative with upper bounds 5ms, 10ms, 25ms,
// 50ms, 100ms, 250ms, 500ms and +Inf.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
}

// NewMetrics returns a collector for cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is collected.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount || id == MetricValidateLatency {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records d in the histogram for id. Only [MetricValidateLatency] has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.validate.observe(d)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies every counter and, when enabled, the latency histogram.
// Individual loads are atomic; the snapshot as a whole is not.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := emptySnapshot()
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id != MetricValidateLatency {
			s.Counters[id] = m.counters[id].n.Load()
		}
	}

	if m.enableLatency {
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = m.validate.buckets[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
		s.HistogramSums[MetricValidateLatency] = time.Duration(m.validate.sumNS.Load())
	}
	return s
}
