package pmsense

import (
	"encoding/binary"
	"fmt"
)

// Validate checks a frame candidate against its family's declared length,
// trailer and checksum. Pure function: nil on success, *FrameError with a
// reason tag on rejection. Checks run cheapest first.
func Validate(fr RawFrame) error {
	f := fr.Family
	if len(fr.Bytes) != f.FrameLen {
		return &FrameError{
			Family: f.Name,
			Reason: LengthMismatch,
			Detail: fmt.Sprintf("got %d bytes, want %d", len(fr.Bytes), f.FrameLen),
		}
	}
	if tail := f.TailMarker; len(tail) > 0 {
		got := fr.Bytes[f.FrameLen-len(tail):]
		for i, b := range tail {
			if got[i] != b {
				return &FrameError{
					Family: f.Name,
					Reason: TrailerMismatch,
					Detail: fmt.Sprintf("got %X, want %X", got, tail),
				}
			}
		}
	}
	cs := f.checksumStart()
	want := f.Checksum.compute(fr.Bytes[f.SumFrom:cs])
	var got uint16
	if f.Checksum.width() == 2 {
		got = binary.BigEndian.Uint16(fr.Bytes[cs:])
	} else {
		got = uint16(fr.Bytes[cs])
	}
	if got != want {
		return &FrameError{
			Family: f.Name,
			Reason: ChecksumMismatch,
			Detail: fmt.Sprintf("got %#04x, want %#04x", got, want),
		}
	}
	return nil
}
