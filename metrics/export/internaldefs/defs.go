package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef binds a client counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef binds a client histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricRequestSent, Name: "gosession_request_sent_total", Help: "Requests handed to the base transport, replays included."},
	{ID: goSession.MetricAuthFailure, Name: "gosession_auth_failure_total", Help: "Responses with an authorization failure status."},
	{ID: goSession.MetricRefreshStarted, Name: "gosession_refresh_started_total", Help: "Refresh endpoint calls."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh episodes."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed refresh episodes."},
	{ID: goSession.MetricRefreshJoined, Name: "gosession_refresh_joined_total", Help: "Requests that waited on a refresh started by another request."},
	{ID: goSession.MetricRefreshSkippedStale, Name: "gosession_refresh_skipped_stale_total", Help: "Authorization failures resolved from an already rotated credential."},
	{ID: goSession.MetricReplaySent, Name: "gosession_replay_sent_total", Help: "Requests replayed after a refresh."},
	{ID: goSession.MetricRetryExhausted, Name: "gosession_retry_exhausted_total", Help: "Replays that failed authorization again."},
	{ID: goSession.MetricSessionTeardown, Name: "gosession_session_teardown_total", Help: "Sessions ended by a failed refresh."},
	{ID: goSession.MetricNavigationFallback, Name: "gosession_navigation_fallback_total", Help: "Teardowns with no navigation callback registered."},
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed logins."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logouts."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Refresh endpoint round trip latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the client's latency buckets.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside metric names.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed 8-bucket array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
