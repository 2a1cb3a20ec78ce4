package internaldefs

import (
	devAuth "github.com/MrEthical07/devAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   devAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   devAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: devAuth.MetricLoginSuccess, Name: "devauth_login_success_total", Help: "Logins that returned a token."},
	{ID: devAuth.MetricLoginFailure, Name: "devauth_login_failure_total", Help: "Logins rejected for bad credentials or unknown users."},
	{ID: devAuth.MetricLoginLocked, Name: "devauth_login_locked_total", Help: "Logins rejected because the account is blocked."},
	{ID: devAuth.MetricLoginSuperseded, Name: "devauth_login_superseded_total", Help: "Logins that lost the cache write to a newer login on the same device."},
	{ID: devAuth.MetricRegisterSuccess, Name: "devauth_register_success_total", Help: "Created accounts."},
	{ID: devAuth.MetricRegisterDuplicate, Name: "devauth_register_duplicate_total", Help: "Registrations rejected for a taken username or email."},
	{ID: devAuth.MetricValidateSuccess, Name: "devauth_validate_success_total", Help: "Tokens accepted."},
	{ID: devAuth.MetricValidateFailure, Name: "devauth_validate_failure_total", Help: "Tokens rejected."},
	{ID: devAuth.MetricCacheUnavailable, Name: "devauth_cache_unavailable_total", Help: "Session cache calls that failed at the transport."},
	{ID: devAuth.MetricSessionCreated, Name: "devauth_session_created_total", Help: "Session cache slots written at login."},
	{ID: devAuth.MetricSessionEvicted, Name: "devauth_session_evicted_total", Help: "Session cache slots removed by validation or revocation."},
	{ID: devAuth.MetricDeviceTrusted, Name: "devauth_device_trusted_total", Help: "Devices marked trusted."},
	{ID: devAuth.MetricDeviceRevoked, Name: "devauth_device_revoked_total", Help: "Devices revoked."},
	{ID: devAuth.MetricLogout, Name: "devauth_logout_total", Help: "Single-device logouts."},
	{ID: devAuth.MetricLogoutAll, Name: "devauth_logout_all_total", Help: "Logout-all operations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: devAuth.MetricValidateLatency, Name: "devauth_validate_latency_seconds", Help: "ValidateToken latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "devauth_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramBounds are the bucket upper bounds in Prometheus text form.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSeconds are the finite bucket upper bounds; +Inf is implied.
var HistogramBoundSeconds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BackendUpName is the gauge reporting cache and store reachability.
const BackendUpName = "devauth_backend_up"

// BackendUpHelp describes [BackendUpName].
const BackendUpHelp = "Whether a backend answered its last health probe (1) or not (0)."

// NormalizeBuckets copies raw into a fixed-size array, zero-filling when short.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
