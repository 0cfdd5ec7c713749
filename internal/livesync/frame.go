// Package livesync keeps local state in sync with a server doing long-running
// work. It opens transport channels (polling, streamed feeds, websockets),
// tracks them per correlation key and delivers their updates to observers in
// order.
package livesync

import (
	"encoding/json"
	"fmt"
	"time"
)

// Key identifies one logical update session (job id, stream, chat client).
type Key string

// ChannelState is the lifecycle state of a channel.
type ChannelState int

const (
	StateIdle ChannelState = iota
	StateConnecting
	StateOpen
	StateDraining
	StateClosed
	StateFailed
)

var stateNames = map[ChannelState]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateOpen:       "open",
	StateDraining:   "draining",
	StateClosed:     "closed",
	StateFailed:     "failed",
}

func (s ChannelState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// IsTerminal reports whether the channel can no longer deliver updates.
func (s ChannelState) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}

// FrameKind discriminates payload variants.
type FrameKind int

const (
	KindStatus FrameKind = iota
	KindLog
	KindChat
	KindMetric
	KindDiagnostic
	KindLifecycle
)

var kindNames = map[FrameKind]string{
	KindStatus:     "status",
	KindLog:        "log",
	KindChat:       "chat",
	KindMetric:     "metric",
	KindDiagnostic: "diagnostic",
	KindLifecycle:  "lifecycle",
}

func (k FrameKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Payload is the typed content of a frame.
type Payload interface {
	Kind() FrameKind
}

// Frame is one update delivered to an observer.
type Frame struct {
	Key     Key
	Seq     uint64 // per-key delivery sequence, starting at 1
	At      time.Time
	Payload Payload
}

// Phase is the status of a background job.
type Phase string

const (
	PhaseStarted    Phase = "started"
	PhaseProcessing Phase = "processing"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// IsTerminal reports whether no further progress is expected.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseStarted, PhaseProcessing, PhaseCompleted, PhaseFailed:
		return true
	}
	return false
}

// StatusUpdate is the progress of a job as reported by the status endpoint.
type StatusUpdate struct {
	Phase    Phase  `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Result   string `json:"result,omitempty"`
}

func (StatusUpdate) Kind() FrameKind { return KindStatus }

// LogRecord is one entry of the streamed log feed.
type LogRecord struct {
	Level         string    `json:"level"`
	Source        string    `json:"service"`
	Message       string    `json:"message"`
	EmittedAt     time.Time `json:"timestamp"`
	CorrelationID string    `json:"request_id"`
}

func (LogRecord) Kind() FrameKind { return KindLog }

// UnmarshalJSON accepts timestamps with or without a zone offset; the log
// feed emits naive ISO-8601 local times.
func (r *LogRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Level         string `json:"level"`
		Source        string `json:"service"`
		Message       string `json:"message"`
		EmittedAt     string `json:"timestamp"`
		CorrelationID string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := parseTimestamp(raw.EmittedAt)
	if err != nil {
		return err
	}
	*r = LogRecord{
		Level:         raw.Level,
		Source:        raw.Source,
		Message:       raw.Message,
		EmittedAt:     ts,
		CorrelationID: raw.CorrelationID,
	}
	return nil
}

// ChatEvent is one chat message, either received over the wire or
// synthesized locally (System).
type ChatEvent struct {
	Text       string
	SenderID   string
	ReceivedAt time.Time
	Self       bool
	System     bool
}

func (ChatEvent) Kind() FrameKind { return KindChat }

// MetricSample is one host metrics sample from the monitoring feed.
type MetricSample struct {
	CPU               float64   `json:"cpu_usage"`
	Memory            float64   `json:"memory_usage"`
	Disk              float64   `json:"disk_usage"`
	ActiveConnections int       `json:"active_connections"`
	RequestsPerMinute int       `json:"requests_per_minute"`
	SampledAt         time.Time `json:"-"`
}

func (MetricSample) Kind() FrameKind { return KindMetric }

// DiagnosticCode classifies a non-fatal fault.
type DiagnosticCode string

const (
	DiagDecode    DiagnosticCode = "decode"
	DiagValidate  DiagnosticCode = "validate"
	DiagFetch     DiagnosticCode = "fetch"
	DiagRejected  DiagnosticCode = "rejected"
	DiagTransport DiagnosticCode = "transport"
)

// Diagnostic reports a fault that did not end the subscription.
type Diagnostic struct {
	Code DiagnosticCode
	Err  error
}

func (Diagnostic) Kind() FrameKind { return KindDiagnostic }

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %v", d.Code, d.Err)
}

// Lifecycle announces that a channel reached a terminal state on its own.
// Err is nil for a clean end.
type Lifecycle struct {
	State ChannelState
	Err   error
}

func (Lifecycle) Kind() FrameKind { return KindLifecycle }

// Update is one raw emission of a channel: a payload or a fault.
type Update struct {
	Payload Payload
	Err     error
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
