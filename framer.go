/*
Byte-stream framing.

The Framer turns an unbounded, possibly noisy byte stream into aligned
frame candidates for one sensor family. It owns the read buffer; nothing
else touches it. Validation happens outside: when a sliced frame fails,
the caller hands it back through Resync and scanning resumes one byte past
the failed marker, so a corrupted stream degrades to dropped frames and
never to a stuck reader.
*/

package pmsense

import (
	"bytes"
	"encoding/binary"
)

// RawFrame is a contiguous byte sequence believed to be one protocol frame.
type RawFrame struct {
	Family SensorFamily
	Bytes  []byte
}

// Framer locates frame boundaries for one family. Not safe for concurrent
// use; one Framer per session, per transport.
type Framer struct {
	family  SensorFamily
	buf     []byte
	max     int
	dropped bool
}

// NewFramer creates a framer with a buffer bounded to a few frame lengths.
func NewFramer(f SensorFamily) *Framer {
	max := 4 * f.FrameLen
	if max < 64 {
		max = 64
	}
	return &Framer{family: f, max: max}
}

// Push appends newly read transport bytes. If the bound is exceeded the
// oldest bytes are discarded and the next call to Next reports ErrDesync
// once.
func (r *Framer) Push(p []byte) {
	r.buf = append(r.buf, p...)
	if len(r.buf) > r.max {
		over := len(r.buf) - r.max
		r.buf = append([]byte(nil), r.buf[over:]...)
		r.dropped = true
	}
}

// Next slices out the next frame candidate and advances past it.
// Returns ErrIncomplete when more bytes are needed and ErrDesync once after
// buffered bytes had to be discarded.
func (r *Framer) Next() (RawFrame, error) {
	if r.dropped {
		r.dropped = false
		return RawFrame{}, ErrDesync
	}
	marker := r.family.StartMarker
	for {
		i := bytes.Index(r.buf, marker)
		if i < 0 {
			r.retainPartialMarker()
			return RawFrame{}, ErrIncomplete
		}
		if i > 0 {
			r.buf = r.buf[i:]
		}
		if len(r.buf) < r.family.minFrameLen() {
			return RawFrame{}, ErrIncomplete
		}
		total := r.family.FrameLen
		if r.family.LengthField {
			rest := int(binary.BigEndian.Uint16(r.buf[len(marker):]))
			total = len(marker) + 2 + rest
			floor := len(marker) + 2 + r.family.Checksum.width() + len(r.family.TailMarker)
			if total < floor || total > r.max {
				// length field is garbage, the marker was a false positive
				r.buf = r.buf[1:]
				continue
			}
		}
		if len(r.buf) < total {
			// partial frame stays buffered
			return RawFrame{}, ErrIncomplete
		}
		frame := append([]byte(nil), r.buf[:total]...)
		r.buf = append([]byte(nil), r.buf[total:]...)
		return RawFrame{Family: r.family, Bytes: frame}, nil
	}
}

// Resync re-queues a frame that failed validation, minus its first byte.
// Net cursor progress per rejected frame is at least one byte, which bounds
// retries to the buffer length.
func (r *Framer) Resync(fr RawFrame) {
	if len(fr.Bytes) < 2 {
		return
	}
	nb := make([]byte, 0, len(fr.Bytes)-1+len(r.buf))
	nb = append(nb, fr.Bytes[1:]...)
	nb = append(nb, r.buf...)
	r.buf = nb
}

// Reset discards all buffered bytes. Called on timeout so no partial state
// survives across measurement requests.
func (r *Framer) Reset() {
	r.buf = nil
	r.dropped = false
}

// Buffered reports how many bytes are waiting in the framer.
func (r *Framer) Buffered() int { return len(r.buf) }

// retainPartialMarker drops scanned bytes that cannot start a frame but
// keeps a tail that could still be the beginning of the start marker.
func (r *Framer) retainPartialMarker() {
	marker := r.family.StartMarker
	keep := 0
	maxKeep := len(marker) - 1
	if maxKeep > len(r.buf) {
		maxKeep = len(r.buf)
	}
	for k := maxKeep; k > 0; k-- {
		if bytes.Equal(r.buf[len(r.buf)-k:], marker[:k]) {
			keep = k
			break
		}
	}
	r.buf = append([]byte(nil), r.buf[len(r.buf)-keep:]...)
}
