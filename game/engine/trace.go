package engine

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Trace is the ordered sequence of cells an agent occupied during an episode,
// starting with its spawn cell.
type Trace []GridLocation

// Digest hashes the trace. Two agents that walked the same cells in the same
// order have equal digests.
func (t Trace) Digest() uint64 {
	h := xxh3.New()
	var buf [16]byte
	for _, loc := range t {
		binary.LittleEndian.PutUint64(buf[0:8], uint64(int64(loc.X)))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(loc.Y)))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Final returns the last cell of the trace.
func (t Trace) Final() (GridLocation, bool) {
	if len(t) == 0 {
		return GridLocation{}, false
	}
	return t[len(t)-1], true
}

// Equal reports whether both traces visit the same cells in the same order.
func (t Trace) Equal(other Trace) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// RecordingDigest hashes a recorded offset sequence.
func RecordingDigest(moves []Offset) uint64 {
	buf := make([]byte, 0, len(moves)*2)
	for _, o := range moves {
		buf = append(buf, byte(int8(o.X)), byte(int8(o.Y)))
	}
	return xxh3.Hash(buf)
}
