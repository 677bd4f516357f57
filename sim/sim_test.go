package sim

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmsense"
)

func TestSignalModel(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	zero := SignalModel{}
	assert.Equal(t, 0.0, zero.At(time.Now(), rng))

	flat := SignalModel{Offset: 12.5}
	assert.Equal(t, 12.5, flat.At(time.Now(), rng))

	// amplitude larger than offset, still never below zero
	wavy := SignalModel{Offset: 5, Amplitude: 20, Period: time.Minute, Noise: 3}
	for i := 0; i < 200; i++ {
		v := wavy.At(time.Unix(int64(i), 0), rng)
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestSensorActiveMode(t *testing.T) {
	sensor, err := NewSensor("SDS011",
		WithSignal("pm25", SignalModel{Offset: 12}),
		WithSignal("pm10", SignalModel{Offset: 30}),
		WithDeviceID(0xBEEF),
		WithSeed(42))
	require.NoError(t, err)

	s, err := pmsense.NewSession("SDS011", sensor)
	require.NoError(t, err)
	defer s.Close()

	m, err := s.RequestMeasurement(time.Second)
	require.NoError(t, err)
	v, ok := m.Value("pm25")
	require.True(t, ok)
	assert.InDelta(t, 12.0, v, 0.05) // quantized to 0.1 ug/m3 registers
	assert.Equal(t, "BEEF", m.DeviceID)
}

// Every injected fault must be survivable: the session still produces
// measurements, just later.
func TestSensorFaultRecovery(t *testing.T) {
	for _, faults := range []FaultModel{
		{CorruptChecksum: true},
		{TruncateFrames: true},
		{LineNoise: true},
		{CorruptChecksum: true, TruncateFrames: true, LineNoise: true},
	} {
		sensor, err := NewSensor("PMSx003",
			WithSignal("pm25", SignalModel{Offset: 8}),
			WithFaults(faults),
			WithSeed(7))
		require.NoError(t, err)

		s, err := pmsense.NewSession("PMSx003", sensor)
		require.NoError(t, err)

		m, err := s.RequestMeasurement(2 * time.Second)
		require.NoError(t, err, "faults %+v", faults)
		v, ok := m.Value("pm25")
		require.True(t, ok)
		assert.Equal(t, 8.0, v)
		require.NoError(t, s.Close())
	}
}

func TestSensorSleepStopsEmission(t *testing.T) {
	sensor, err := NewSensor("PMSx003", WithSignal("pm25", SignalModel{Offset: 8}))
	require.NoError(t, err)

	s, err := pmsense.NewSession("PMSx003", sensor)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Sleep())
	_, err = s.RequestMeasurement(50 * time.Millisecond)
	assert.ErrorIs(t, err, pmsense.ErrTimeout)

	require.NoError(t, s.Wake())
	_, err = s.RequestMeasurement(time.Second)
	assert.NoError(t, err)
}

func TestSensorPassiveMode(t *testing.T) {
	sensor, err := NewSensor("PMSx003", WithSignal("pm10", SignalModel{Offset: 40}))
	require.NoError(t, err)

	s, err := pmsense.NewSession("PMSx003", sensor)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetPassiveMode())
	m, err := s.RequestMeasurement(time.Second)
	require.NoError(t, err)
	v, _ := m.Value("pm10")
	assert.Equal(t, 40.0, v)
}

func TestSensorEmitGap(t *testing.T) {
	sensor, err := NewSensor("SDS011",
		WithSignal("pm25", SignalModel{Offset: 5}),
		WithEmitGap(time.Hour))
	require.NoError(t, err)

	// first read emits, second hits the gap and stays silent
	b, err := sensor.ReadAvailable(64, 0)
	require.NoError(t, err)
	assert.Len(t, b, 10)
	b, err = sensor.ReadAvailable(64, 0)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestSensorClosed(t *testing.T) {
	sensor, err := NewSensor("SDS011")
	require.NoError(t, err)
	require.NoError(t, sensor.Close())

	_, err = sensor.ReadAvailable(64, 0)
	assert.Error(t, err)
	assert.Error(t, sensor.Write([]byte{0x01}))
}

func TestSensorUnknownFamily(t *testing.T) {
	_, err := NewSensor("nope")
	assert.True(t, errors.Is(err, pmsense.ErrUnknownFamily))
}
