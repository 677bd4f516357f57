/*
Simulated PM sensor.

Implements pmsense.Transport, so a Session can run against it with no
hardware attached. The simulated device reacts to the family's real command
sequences (sleep, wake, reporting mode, passive read) and produces frames
from a signal model. A fault model injects the stream corruption seen on
real wiring: bad checksums, truncated frames and idle line noise. The
simulator always degrades the stream, never the protocol: every fault must
be recoverable by the reader's resynchronization.
*/

package sim

import (
	"bytes"
	"math"
	"math/rand"
	"sync"
	"time"

	"pmsense"
)

// SignalModel generates a channel value as sine wave plus noise, clamped
// to zero. A zero model is a constant zero signal.
type SignalModel struct {
	Offset    float64
	Amplitude float64
	Period    time.Duration // sine period, 0 disables the wave
	Noise     float64       // uniform in [-Noise, Noise]
}

// At evaluates the signal.
func (s SignalModel) At(t time.Time, rng *rand.Rand) float64 {
	wave := 0.0
	if ms := s.Period.Milliseconds(); ms > 0 {
		angle := 2 * math.Pi * float64(t.UnixMilli()%ms) / float64(ms)
		wave = math.Sin(angle) * s.Amplitude
	}
	noise := 0.0
	if s.Noise > 0 {
		noise = (rng.Float64()*2 - 1) * s.Noise
	}
	return math.Max(0, s.Offset+wave+noise)
}

// FaultModel selects communication faults to inject.
type FaultModel struct {
	CorruptChecksum bool // every second frame carries a flipped checksum byte
	TruncateFrames  bool // every second frame loses its tail bytes
	LineNoise       bool // random bytes between frames
}

// Sensor is a simulated device on a fake serial line.
type Sensor struct {
	mu       sync.Mutex
	family   pmsense.SensorFamily
	deviceID uint16
	signals  map[string]SignalModel
	faults   FaultModel
	emitGap  time.Duration // active mode period between frames

	rng      *rand.Rand
	pending  []byte
	passive  bool
	asleep   bool
	closed   bool
	frameSeq int
	lastEmit time.Time
}

// Option configures the simulated sensor.
type Option func(*Sensor)

// WithSignal sets the signal model for one channel.
func WithSignal(channel string, m SignalModel) Option {
	return func(s *Sensor) { s.signals[channel] = m }
}

// WithFaults sets the fault injection model.
func WithFaults(f FaultModel) Option {
	return func(s *Sensor) { s.faults = f }
}

// WithDeviceID sets the 16-bit device id reported by families that have one.
func WithDeviceID(id uint16) Option {
	return func(s *Sensor) { s.deviceID = id }
}

// WithEmitGap sets the spontaneous reporting period in active mode.
// Zero (the default) emits a frame on every read.
func WithEmitGap(d time.Duration) Option {
	return func(s *Sensor) { s.emitGap = d }
}

// WithSeed fixes the noise source, for reproducible tests.
func WithSeed(seed int64) Option {
	return func(s *Sensor) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewSensor creates a simulated sensor of the given family.
func NewSensor(familyID string, opts ...Option) (*Sensor, error) {
	f, err := pmsense.Lookup(familyID)
	if err != nil {
		return nil, err
	}
	s := &Sensor{
		family:   f,
		deviceID: 0xA160,
		signals:  map[string]SignalModel{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Write receives command bytes from the session and adjusts device state,
// like the real sensor's command handler would.
func (s *Sensor) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	cmds := s.family.Commands
	switch {
	case len(cmds.Sleep) > 0 && bytes.Equal(p, cmds.Sleep):
		s.asleep = true
	case len(cmds.Wake) > 0 && bytes.Equal(p, cmds.Wake):
		s.asleep = false
	case len(cmds.PassiveMode) > 0 && bytes.Equal(p, cmds.PassiveMode):
		s.passive = true
	case len(cmds.ActiveMode) > 0 && bytes.Equal(p, cmds.ActiveMode):
		s.passive = false
	case len(cmds.PassiveRead) > 0 && bytes.Equal(p, cmds.PassiveRead):
		if !s.asleep {
			s.emitFrame(time.Now())
		}
	}
	return nil
}

// ReadAvailable hands out queued bytes. In active mode frames are produced
// on demand, respecting the configured emission gap.
func (s *Sensor) ReadAvailable(max int, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	now := time.Now()
	if len(s.pending) == 0 && !s.passive && !s.asleep {
		if s.emitGap == 0 || now.Sub(s.lastEmit) >= s.emitGap {
			s.emitFrame(now)
		}
	}
	n := len(s.pending)
	if n > max {
		n = max
	}
	out := append([]byte(nil), s.pending[:n]...)
	s.pending = s.pending[n:]
	s.mu.Unlock()

	if len(out) == 0 && timeout > 0 {
		// nothing to say, let the line idle like real silence would
		time.Sleep(timeout)
	}
	return out, nil
}

// Close shuts the fake line; further calls fail.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// emitFrame encodes one frame from the signal models and queues it, with
// faults applied. Caller holds the lock.
func (s *Sensor) emitFrame(now time.Time) {
	values := map[string]float64{}
	for _, fl := range s.family.Fields {
		values[fl.Channel] = s.signals[fl.Channel].At(now, s.rng)
	}
	frame, err := pmsense.EncodeFrame(s.family, values, s.deviceID)
	if err != nil {
		return // signal model produced an unencodable value, skip the frame
	}
	s.frameSeq++
	corruptTurn := s.frameSeq%2 == 1
	if s.faults.CorruptChecksum && corruptTurn {
		// flip a payload byte so the declared checksum no longer matches
		frame[4] ^= 0xFF
	}
	if s.faults.TruncateFrames && corruptTurn {
		frame = frame[:len(frame)-3]
	}
	if s.faults.LineNoise {
		noise := make([]byte, 1+s.rng.Intn(4))
		s.rng.Read(noise)
		s.pending = append(s.pending, noise...)
	}
	s.pending = append(s.pending, frame...)
	s.lastEmit = now
}

var errClosed = errClosedType{}

type errClosedType struct{}

func (errClosedType) Error() string { return "simulated sensor closed" }
