package pmsense

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means the framer needs more bytes before it can produce
	// a frame candidate. Normal control flow, not a failure.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrDesync is reported once after the framer had to discard buffered
	// bytes to stay within its bound. Informational, reading may continue.
	ErrDesync = errors.New("stream desynchronized")
	// ErrTimeout means no valid frame arrived within the allowed window.
	ErrTimeout = errors.New("timeout waiting for measurement")
	// ErrClosedSession means the session was used after Close.
	ErrClosedSession = errors.New("session closed")
	// ErrUnknownFamily means the sensor family id is not registered.
	ErrUnknownFamily = errors.New("unknown sensor family")
	// ErrWarmingUp means the sensor replied with an all-zero data frame.
	// Plantower sensors do this for up to 30s after wakeup.
	ErrWarmingUp = errors.New("sensor warming up")
)

// InvalidReason tags why a frame was rejected by the validator.
type InvalidReason string

const (
	LengthMismatch   InvalidReason = "LengthMismatch"
	ChecksumMismatch InvalidReason = "ChecksumMismatch"
	TrailerMismatch  InvalidReason = "TrailerMismatch"
)

// FrameError is the validator's rejection verdict.
type FrameError struct {
	Family string
	Reason InvalidReason
	Detail string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s frame invalid: %s (%s)", e.Family, e.Reason, e.Detail)
}

// TransportError wraps I/O failures from the transport collaborator.
// The protocol layer passes these through without interpreting them.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
