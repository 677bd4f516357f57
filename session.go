/*
Sensor session: the public face of the protocol layer.

One session drives one transport, synchronously, from one goroutine. The
only blocking call is RequestMeasurement and it is always bounded by the
caller's timeout, so a silent or dead sensor cannot wedge the caller.
Checksum and length failures are recovered locally by resynchronizing the
framer; they surface only as an elapsed timeout.
*/

package pmsense

import (
	"errors"
	"time"
)

// Transport is the serial-port collaborator. Implementations live outside
// the protocol layer (serialport package, simulator, test fakes).
type Transport interface {
	// ReadAvailable returns whatever bytes arrive within timeout, up to
	// max. An empty slice with nil error means the window elapsed in
	// silence; that is not an error.
	ReadAvailable(max int, timeout time.Duration) ([]byte, error)
	Write(p []byte) error
	Close() error
}

const (
	readChunk = 64
	// poll granularity while waiting for bytes; the sensors answer
	// commands within ~50ms
	pollSlice = 50 * time.Millisecond
)

type sessionState int

const (
	sessionIdle sessionState = iota
	sessionAwaiting
	sessionClosed
)

// Session reads measurements from one physical sensor. Not safe for use
// from multiple goroutines; run one session per transport.
type Session struct {
	family  SensorFamily
	tr      Transport
	framer  *Framer
	state   sessionState
	passive bool
}

// NewSession resolves the sensor family and binds it to a transport.
func NewSession(familyID string, tr Transport) (*Session, error) {
	f, err := Lookup(familyID)
	if err != nil {
		return nil, err
	}
	return &Session{family: f, tr: tr, framer: NewFramer(f)}, nil
}

// Family returns the resolved sensor family.
func (s *Session) Family() SensorFamily { return s.family }

func (s *Session) command(cmd []byte) error {
	if s.state == sessionClosed {
		return ErrClosedSession
	}
	if len(cmd) == 0 {
		return nil // family does not support it, e.g. PMS3003
	}
	if err := s.tr.Write(cmd); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Wake brings the sensor out of sleep. Plantower sensors need up to 30s of
// fan spin-up before frames carry data; that shows up as ErrWarmingUp
// retries inside RequestMeasurement.
func (s *Session) Wake() error { return s.command(s.family.Commands.Wake) }

// Sleep stops the fan and the laser. Extends sensor lifetime between polls.
func (s *Session) Sleep() error { return s.command(s.family.Commands.Sleep) }

// SetPassiveMode switches the sensor to report only when asked. Subsequent
// RequestMeasurement calls send the family's read command first.
func (s *Session) SetPassiveMode() error {
	if err := s.command(s.family.Commands.PassiveMode); err != nil {
		return err
	}
	s.passive = len(s.family.Commands.PassiveRead) > 0
	return nil
}

// SetActiveMode switches the sensor back to spontaneous periodic reporting.
func (s *Session) SetActiveMode() error {
	if err := s.command(s.family.Commands.ActiveMode); err != nil {
		return err
	}
	s.passive = false
	return nil
}

// RequestMeasurement returns the next decoded measurement, or ErrTimeout
// if no valid frame arrives within timeout. Invalid frames are dropped and
// reading continues; transport failures surface as *TransportError. After
// a timeout the read buffer is discarded, so no partial frame state leaks
// into the next call, and the session stays usable.
func (s *Session) RequestMeasurement(timeout time.Duration) (Measurement, error) {
	if s.state == sessionClosed {
		return Measurement{}, ErrClosedSession
	}
	s.state = sessionAwaiting
	defer func() {
		if s.state == sessionAwaiting {
			s.state = sessionIdle
		}
	}()

	if s.passive {
		if err := s.command(s.family.Commands.PassiveRead); err != nil {
			return Measurement{}, err
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		fr, err := s.framer.Next()
		if err == nil {
			if verr := Validate(fr); verr != nil {
				s.framer.Resync(fr)
				continue
			}
			m, derr := Decode(fr, time.Now())
			if derr != nil {
				continue // warming up, keep listening
			}
			return m, nil
		}
		if errors.Is(err, ErrDesync) {
			continue
		}

		remain := time.Until(deadline)
		if remain <= 0 {
			s.framer.Reset()
			return Measurement{}, ErrTimeout
		}
		wait := pollSlice
		if remain < wait {
			wait = remain
		}
		chunk, rerr := s.tr.ReadAvailable(readChunk, wait)
		if rerr != nil {
			return Measurement{}, &TransportError{Op: "read", Err: rerr}
		}
		s.framer.Push(chunk)
	}
}

// Close releases the transport. Further calls fail with ErrClosedSession.
func (s *Session) Close() error {
	if s.state == sessionClosed {
		return nil
	}
	s.state = sessionClosed
	if err := s.tr.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}
