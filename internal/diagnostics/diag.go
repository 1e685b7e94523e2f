package diagnostics

import "time"

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes emitted by the control loop.
const (
	CodePushFailed     = "DEVICE.PUSH_FAILED"
	CodeReconnected    = "DEVICE.RECONNECTED"
	CodeExhausted      = "DEVICE.RECONNECT_EXHAUSTED"
	CodeKeepAlive      = "DEVICE.KEEPALIVE_FAILED"
	CodeNoReadings     = "READINGS.NONE"
	CodeUnknownKey     = "READINGS.UNKNOWN_KEY"
	CodeIntentChanged  = "INTENT.CHANGED"
	CodeTestRunning    = "TEST.RUNNING"
	CodeTestDone       = "TEST.DONE"
	CodeTestUnknown    = "TEST.UNKNOWN"
	CodeReconnectAsked = "DEVICE.RECONNECT_REQUESTED"
)

type Diagnostic struct {
	Time           time.Time      `json:"time"`
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// Sink receives diagnostics, e.g. a websocket broadcaster.
type Sink func(Diagnostic)

// Emit stamps d and passes it on; a nil sink drops it.
func (s Sink) Emit(d Diagnostic) {
	if s == nil {
		return
	}
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	s(d)
}
