package engine

// TimeLoopRecorder is the append-only log of the authoritative agent's accepted
// offsets. During the replay iteration it is drained front to back.
type TimeLoopRecorder struct {
	moves  []Offset
	cursor int
}

// Append records an accepted offset.
func (r *TimeLoopRecorder) Append(offset Offset) {
	r.moves = append(r.moves, offset)
}

// Next dequeues the next offset to replay.
func (r *TimeLoopRecorder) Next() (Offset, bool) {
	if r.cursor >= len(r.moves) {
		return Offset{}, false
	}
	offset := r.moves[r.cursor]
	r.cursor++
	return offset, true
}

// Remaining returns how many offsets are left to replay.
func (r *TimeLoopRecorder) Remaining() int {
	return len(r.moves) - r.cursor
}

// Len returns the number of recorded offsets.
func (r *TimeLoopRecorder) Len() int {
	return len(r.moves)
}

// Moves returns a copy of the full recording.
func (r *TimeLoopRecorder) Moves() []Offset {
	out := make([]Offset, len(r.moves))
	copy(out, r.moves)
	return out
}

// Rewind moves the replay cursor back to the first offset.
func (r *TimeLoopRecorder) Rewind() {
	r.cursor = 0
}

// Clear drops the recording. Only called when a full cycle has completed.
func (r *TimeLoopRecorder) Clear() {
	r.moves = nil
	r.cursor = 0
}
