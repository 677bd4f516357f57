package pmsense

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Decode maps a validated frame into a Measurement via the family's field
// map. The frame must have passed Validate first; the decoder trusts that
// guarantee completely and does no bounds or checksum re-checking. Feeding
// it an unvalidated frame is a programming error.
//
// The only expected failure is ErrWarmingUp on families whose sensors emit
// all-zero frames while the fan spins up; callers retry those.
func Decode(fr RawFrame, at time.Time) (Measurement, error) {
	f := fr.Family
	channels := make([]ChannelValue, len(f.Fields))
	allZero := true
	for i, fl := range f.Fields {
		raw := f.register(fr.Bytes, fl.Offset)
		if raw != 0 {
			allZero = false
		}
		channels[i] = ChannelValue{
			Channel: fl.Channel,
			Value:   float64(raw) * fl.Scale,
			Unit:    fl.Unit,
		}
	}
	if allZero && f.ZeroIsWarmup {
		return Measurement{}, ErrWarmingUp
	}
	m := Measurement{
		Time:     at,
		Sensor:   f.Name,
		Channels: channels,
	}
	if f.IDOffset >= 0 {
		// device id bytes are transmitted high byte first even on
		// little-endian families (SDS011 datasheet, response examples)
		m.DeviceID = fmt.Sprintf("%04X", binary.BigEndian.Uint16(fr.Bytes[f.IDOffset:]))
	}
	return m, nil
}

// register reads the 16-bit field at the given offset in the family's
// declared byte order.
func (f SensorFamily) register(b []byte, offset int) uint16 {
	if f.LittleEndian {
		return binary.LittleEndian.Uint16(b[offset:])
	}
	return binary.BigEndian.Uint16(b[offset:])
}
