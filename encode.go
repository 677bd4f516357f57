package pmsense

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeFrame builds a wire frame carrying the given channel values, the
// inverse of Decode. Used by the simulator and by the round-trip tests;
// real sensors obviously encode their own frames.
//
// values maps channel name to the scaled (engineering unit) value; missing
// channels encode as zero. deviceID is ignored by families without an id
// register.
func EncodeFrame(f SensorFamily, values map[string]float64, deviceID uint16) ([]byte, error) {
	b := make([]byte, f.FrameLen)
	copy(b, f.StartMarker)
	if f.LengthField {
		binary.BigEndian.PutUint16(b[len(f.StartMarker):], uint16(f.FrameLen-len(f.StartMarker)-2))
	}
	for _, fl := range f.Fields {
		v, ok := values[fl.Channel]
		if !ok {
			continue
		}
		raw := math.Round(v / fl.Scale)
		if raw < 0 || raw > math.MaxUint16 {
			return nil, fmt.Errorf("channel %s: value %v does not fit a 16-bit register", fl.Channel, v)
		}
		if f.LittleEndian {
			binary.LittleEndian.PutUint16(b[fl.Offset:], uint16(raw))
		} else {
			binary.BigEndian.PutUint16(b[fl.Offset:], uint16(raw))
		}
	}
	if f.IDOffset >= 0 {
		binary.BigEndian.PutUint16(b[f.IDOffset:], deviceID)
	}
	cs := f.checksumStart()
	if len(f.TailMarker) > 0 {
		copy(b[f.FrameLen-len(f.TailMarker):], f.TailMarker)
	}
	sum := f.Checksum.compute(b[f.SumFrom:cs])
	if f.Checksum.width() == 2 {
		binary.BigEndian.PutUint16(b[cs:], sum)
	} else {
		b[cs] = byte(sum)
	}
	return b, nil
}
