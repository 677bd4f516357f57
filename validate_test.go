package pmsense

import (
	"errors"
	"testing"
)

func frameOf(t *testing.T, familyID, hexBytes string) RawFrame {
	t.Helper()
	return RawFrame{Family: mustFamily(t, familyID), Bytes: mustHex(t, hexBytes)}
}

func TestValidateGoldenFrames(t *testing.T) {
	for _, c := range []struct{ family, hex string }{
		{"PMSx003", pmsx003Hex},
		{"PMS3003", pms3003Hex},
		{"SDS011", sds011Hex},
		{"PMSx003", warmupHex}, // warming-up frames are wire-valid
	} {
		if err := Validate(frameOf(t, c.family, c.hex)); err != nil {
			t.Errorf("%v golden frame rejected: %v", c.family, err)
		}
	}
}

func TestValidateLengthMismatch(t *testing.T) {
	fr := frameOf(t, "PMSx003", pmsx003Hex)
	fr.Bytes = fr.Bytes[:10]
	var ferr *FrameError
	err := Validate(fr)
	if !errors.As(err, &ferr) || ferr.Reason != LengthMismatch {
		t.Errorf("expected LengthMismatch, got %v", err)
	}
}

func TestValidateTrailerMismatch(t *testing.T) {
	fr := frameOf(t, "SDS011", sds011Hex)
	fr.Bytes[len(fr.Bytes)-1] = 0xAC
	var ferr *FrameError
	err := Validate(fr)
	if !errors.As(err, &ferr) || ferr.Reason != TrailerMismatch {
		t.Errorf("expected TrailerMismatch, got %v", err)
	}
}

// Flipping any single byte inside the checksum span must be caught.
func TestValidateFlipAnyByteInSpan(t *testing.T) {
	cases := []struct {
		family   string
		hex      string
		from, to int // checksum span
	}{
		{"PMSx003", pmsx003Hex, 0, 30},
		{"PMS3003", pms3003Hex, 0, 22},
		{"SDS011", sds011Hex, 2, 8},
	}
	for _, c := range cases {
		golden := mustHex(t, c.hex)
		for i := c.from; i < c.to; i++ {
			for _, flip := range []byte{0x01, 0x80, 0xFF} {
				mut := append([]byte(nil), golden...)
				mut[i] ^= flip
				err := Validate(RawFrame{Family: mustFamily(t, c.family), Bytes: mut})
				var ferr *FrameError
				if !errors.As(err, &ferr) || ferr.Reason != ChecksumMismatch {
					t.Fatalf("%v byte %d flip %#02x: expected ChecksumMismatch, got %v", c.family, i, flip, err)
				}
			}
		}
	}
}

func TestValidateCorruptChecksumField(t *testing.T) {
	golden := mustHex(t, pmsx003Hex)
	mut := append([]byte(nil), golden...)
	mut[30], mut[31] = 0x00, 0x00
	err := Validate(RawFrame{Family: mustFamily(t, "PMSx003"), Bytes: mut})
	var ferr *FrameError
	if !errors.As(err, &ferr) || ferr.Reason != ChecksumMismatch {
		t.Errorf("expected ChecksumMismatch, got %v", err)
	}
}
