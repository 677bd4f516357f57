/*
Frame grammar table for the supported particulate matter sensors.

Each sensor model is one SensorFamily value: start marker, frame length,
checksum algorithm and field layout. The framer, validator and decoder are
generic over this table, so adding a sensor model is adding one entry here
(or registering one from configuration). Constants are taken from the
vendor datasheets, not guessed.
*/

package pmsense

import (
	"fmt"
	"sort"
)

// Concentration units used by the field maps.
const (
	UnitUgm3    = "ug/m3"  // mass concentration
	UnitPer0_1L = "#/0.1L" // number concentration per 100cc
)

// ChecksumKind selects the per-family checksum algorithm.
type ChecksumKind int

const (
	// ChecksumSum16BE is a 16-bit sum of the span bytes, stored big-endian.
	// Used by the Plantower PMSx003 series.
	ChecksumSum16BE ChecksumKind = iota
	// ChecksumSum8 is the low byte of the sum of the span bytes.
	// Used by the NovaFitness SDS01x series.
	ChecksumSum8
	// ChecksumXor8 is 8-bit XOR parity over the span bytes.
	ChecksumXor8
)

func (k ChecksumKind) width() int {
	if k == ChecksumSum16BE {
		return 2
	}
	return 1
}

func (k ChecksumKind) compute(span []byte) uint16 {
	var sum uint16
	for _, b := range span {
		if k == ChecksumXor8 {
			sum ^= uint16(b)
		} else {
			sum += uint16(b)
		}
	}
	if k != ChecksumSum16BE {
		sum &= 0xFF
	}
	return sum
}

// FieldSpec maps one fixed-width register inside a frame to a named channel.
type FieldSpec struct {
	Channel string
	Offset  int     // byte offset of a 16-bit register
	Scale   float64 // multiplier applied to the raw register value
	Unit    string
}

// SensorFamily describes one vendor/model frame format. Values are
// immutable once registered.
type SensorFamily struct {
	Name        string
	StartMarker []byte
	TailMarker  []byte // optional trailer after the checksum, e.g. 0xAB on SDS01x
	// FrameLen is the total frame length in bytes. For length-prefixed
	// families this is the nominal length the validator enforces.
	FrameLen int
	// LengthField marks families whose frames carry a 16-bit big-endian
	// count of the remaining bytes directly after the start marker.
	LengthField  bool
	LittleEndian bool
	Checksum     ChecksumKind
	// SumFrom is the offset where the checksum span starts. The span always
	// ends where the checksum field begins.
	SumFrom int
	Fields  []FieldSpec
	// IDOffset is the offset of a 16-bit device id register, -1 when the
	// family has none.
	IDOffset int
	// ZeroIsWarmup marks families that emit all-zero data frames while the
	// fan spins up; such frames are retried, not surfaced.
	ZeroIsWarmup bool
	Commands     CommandSet
}

// checksumStart is the offset of the checksum field inside a frame.
func (f SensorFamily) checksumStart() int {
	return f.FrameLen - len(f.TailMarker) - f.Checksum.width()
}

// minFrameLen is the smallest byte count the framer needs before the frame
// length is known.
func (f SensorFamily) minFrameLen() int {
	if f.LengthField {
		return len(f.StartMarker) + 2
	}
	return f.FrameLen
}

func plantowerFields(withHCHO bool, records int) []FieldSpec {
	fields := []FieldSpec{
		{"raw01", 4, 1, UnitUgm3},
		{"raw25", 6, 1, UnitUgm3},
		{"raw10", 8, 1, UnitUgm3},
		{"pm01", 10, 1, UnitUgm3},
		{"pm25", 12, 1, UnitUgm3},
		{"pm10", 14, 1, UnitUgm3},
	}
	if records >= 12 {
		fields = append(fields,
			FieldSpec{"n0_3", 16, 1, UnitPer0_1L},
			FieldSpec{"n0_5", 18, 1, UnitPer0_1L},
			FieldSpec{"n1_0", 20, 1, UnitPer0_1L},
			FieldSpec{"n2_5", 22, 1, UnitPer0_1L},
			FieldSpec{"n5_0", 24, 1, UnitPer0_1L},
			FieldSpec{"n10_0", 26, 1, UnitPer0_1L},
		)
	}
	if withHCHO {
		// datasheet unit is 1/1000 mg/m3, which is ug/m3
		fields = append(fields, FieldSpec{"hcho", 28, 1, UnitUgm3})
	}
	return fields
}

var builtinFamilies = []SensorFamily{
	{
		Name:         "PMSx003",
		StartMarker:  []byte{0x42, 0x4D},
		FrameLen:     32,
		LengthField:  true,
		Checksum:     ChecksumSum16BE,
		Fields:       plantowerFields(false, 12),
		IDOffset:     -1,
		ZeroIsWarmup: true,
		Commands:     plantowerCommands,
	},
	{
		Name:         "PMS3003",
		StartMarker:  []byte{0x42, 0x4D},
		FrameLen:     24,
		LengthField:  true,
		Checksum:     ChecksumSum16BE,
		Fields:       plantowerFields(false, 6),
		IDOffset:     -1,
		ZeroIsWarmup: true,
		// PMS3003 is active-mode only, it accepts no commands
	},
	{
		Name:         "PMS5003S",
		StartMarker:  []byte{0x42, 0x4D},
		FrameLen:     32,
		LengthField:  true,
		Checksum:     ChecksumSum16BE,
		Fields:       plantowerFields(true, 12),
		IDOffset:     -1,
		ZeroIsWarmup: true,
		Commands:     plantowerCommands,
	},
	{
		Name:         "SDS011",
		StartMarker:  []byte{0xAA, 0xC0},
		TailMarker:   []byte{0xAB},
		FrameLen:     10,
		LittleEndian: true,
		Checksum:     ChecksumSum8,
		SumFrom:      2,
		Fields: []FieldSpec{
			{"pm25", 2, 0.1, UnitUgm3},
			{"pm10", 4, 0.1, UnitUgm3},
		},
		IDOffset: 6,
		Commands: sds011Commands,
	},
}

// Models that share another model's frame format.
var familyAliases = map[string]string{
	"PMS1003": "PMSx003",
	"PMS5003": "PMSx003",
	"PMS7003": "PMSx003",
	"PMSA003": "PMSx003",
	"SDS018":  "SDS011",
	"SDS021":  "SDS011",
}

var registry = map[string]SensorFamily{}

func init() {
	for _, f := range builtinFamilies {
		registry[f.Name] = f
	}
}

// Lookup resolves a sensor family id, following model aliases.
func Lookup(id string) (SensorFamily, error) {
	if target, ok := familyAliases[id]; ok {
		id = target
	}
	f, ok := registry[id]
	if !ok {
		return SensorFamily{}, fmt.Errorf("%w: %q", ErrUnknownFamily, id)
	}
	return f, nil
}

// Families lists the registered family names, sorted.
func Families() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a sensor family, typically loaded from configuration.
// Must happen before sessions are created; the registry is not locked.
// Malformed families are rejected here so the framer and decoder can trust
// every registered entry without re-checking offsets.
func Register(f SensorFamily) error {
	if f.Name == "" {
		return fmt.Errorf("family name is empty")
	}
	if target, ok := familyAliases[f.Name]; ok {
		// Lookup resolves aliases first, so the entry would be unreachable
		return fmt.Errorf("family name %s is an alias of %s", f.Name, target)
	}
	if len(f.StartMarker) == 0 {
		return fmt.Errorf("family %s: start marker is empty", f.Name)
	}
	min := len(f.StartMarker) + len(f.TailMarker) + f.Checksum.width()
	if f.LengthField {
		min += 2
	}
	if f.FrameLen < min {
		return fmt.Errorf("family %s: frame length %d shorter than framing overhead %d", f.Name, f.FrameLen, min)
	}
	if f.SumFrom < 0 || f.SumFrom >= f.checksumStart() {
		return fmt.Errorf("family %s: checksum span start %d out of range", f.Name, f.SumFrom)
	}
	if len(f.Fields) == 0 {
		return fmt.Errorf("family %s: no fields", f.Name)
	}
	for _, fl := range f.Fields {
		if fl.Offset < 0 || fl.Offset+2 > f.checksumStart() {
			return fmt.Errorf("family %s: field %s offset %d outside payload", f.Name, fl.Channel, fl.Offset)
		}
	}
	if f.IDOffset >= 0 && f.IDOffset+2 > f.checksumStart() {
		return fmt.Errorf("family %s: id offset %d outside payload", f.Name, f.IDOffset)
	}
	if f.IDOffset < 0 {
		f.IDOffset = -1
	}
	registry[f.Name] = f
	return nil
}
