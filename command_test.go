package pmsense

import (
	"bytes"
	"testing"
)

// Command sequences pinned against the datasheet examples. These nail the
// checksum arithmetic down to something real.
func TestPlantowerCommandBytes(t *testing.T) {
	cases := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"wake", plantowerCommands.Wake, []byte{0x42, 0x4D, 0xE4, 0x00, 0x01, 0x01, 0x74}},
		{"sleep", plantowerCommands.Sleep, []byte{0x42, 0x4D, 0xE4, 0x00, 0x00, 0x01, 0x73}},
		{"passive", plantowerCommands.PassiveMode, []byte{0x42, 0x4D, 0xE1, 0x00, 0x00, 0x01, 0x70}},
		{"active", plantowerCommands.ActiveMode, []byte{0x42, 0x4D, 0xE1, 0x00, 0x01, 0x01, 0x71}},
		{"read", plantowerCommands.PassiveRead, []byte{0x42, 0x4D, 0xE2, 0x00, 0x00, 0x01, 0x71}},
	}
	for _, c := range cases {
		if !bytes.Equal(c.got, c.want) {
			t.Errorf("%v = % X, want % X", c.name, c.got, c.want)
		}
	}
}

func TestSDS011CommandBytes(t *testing.T) {
	// datasheet: query data from any device,
	// AA B4 04 00 00 00 00 00 00 00 00 00 00 00 00 FF FF 02 AB
	want := []byte{0xAA, 0xB4, 0x04, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF, 0x02, 0xAB}
	if !bytes.Equal(sds011Commands.PassiveRead, want) {
		t.Errorf("query = % X, want % X", sds011Commands.PassiveRead, want)
	}

	// set any device to work: fn 6, write 1, work 1, checksum 06
	want = []byte{0xAA, 0xB4, 0x06, 0x01, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF, 0x06, 0xAB}
	if !bytes.Equal(sds011Commands.Wake, want) {
		t.Errorf("wake = % X, want % X", sds011Commands.Wake, want)
	}

	for _, cmd := range [][]byte{
		sds011Commands.Wake, sds011Commands.Sleep,
		sds011Commands.PassiveMode, sds011Commands.ActiveMode,
		sds011Commands.PassiveRead,
	} {
		if len(cmd) != 19 {
			t.Errorf("command length %d, want 19: % X", len(cmd), cmd)
		}
	}
}

func TestPMS3003HasNoCommands(t *testing.T) {
	f, err := Lookup("PMS3003")
	if err != nil {
		t.Fatal(err)
	}
	if f.Commands.Wake != nil || f.Commands.PassiveRead != nil {
		t.Errorf("PMS3003 should be active-only, got %#v", f.Commands)
	}
}
