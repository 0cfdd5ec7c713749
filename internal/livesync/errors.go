package livesync

import (
	"errors"
	"fmt"
)

var (
	// ErrShutdown is returned by a Controller that has been shut down.
	ErrShutdown = errors.New("livesync: controller shut down")
	// ErrUnknownKey is returned when no channel is registered for a key.
	ErrUnknownKey = errors.New("livesync: unknown key")
	// ErrNotSender is returned by Send when the key's channel is receive-only.
	ErrNotSender = errors.New("livesync: channel does not accept outbound messages")
)

// TransientFetchError is a failed poll. The poller retries on its next tick.
type TransientFetchError struct {
	Attempt int
	Err     error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch attempt %d: %v", e.Attempt, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// DecodeError is a frame that could not be decoded. It is dropped.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", truncate(e.Line, 64), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError is a decoded payload that violates a frame invariant.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid frame: " + e.Reason
}

// TransportFailure is an unexpected loss of the underlying connection.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// RejectedOperation is an operation refused because of the channel state.
// Nothing changes on the channel.
type RejectedOperation struct {
	Op    string
	State ChannelState
}

func (e *RejectedOperation) Error() string {
	return fmt.Sprintf("%s rejected: channel is %s", e.Op, e.State)
}

// diagnosticCode maps a channel fault onto the code observers see.
func diagnosticCode(err error) DiagnosticCode {
	var (
		fetchErr     *TransientFetchError
		decodeErr    *DecodeError
		validateErr  *ValidationError
		rejectedErr  *RejectedOperation
		transportErr *TransportFailure
	)
	switch {
	case errors.As(err, &fetchErr):
		return DiagFetch
	case errors.As(err, &decodeErr):
		return DiagDecode
	case errors.As(err, &validateErr):
		return DiagValidate
	case errors.As(err, &rejectedErr):
		return DiagRejected
	case errors.As(err, &transportErr):
		return DiagTransport
	}
	return DiagTransport
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}
