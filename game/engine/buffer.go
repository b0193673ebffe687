package engine

// MoveBuffer is the single-slot input debouncer. It holds at most one pending
// cardinal offset. A newer input overwrites an older unconsumed one.
type MoveBuffer struct {
	next    Offset
	pending bool
}

// Record stores offset if it is exactly one cardinal step. Anything else
// (no press, opposite presses cancelling out, diagonals) is ignored.
func (b *MoveBuffer) Record(offset Offset) bool {
	if !offset.IsCardinal() {
		return false
	}
	b.next = offset
	b.pending = true
	return true
}

// Consume returns and clears the stored offset.
func (b *MoveBuffer) Consume() (Offset, bool) {
	if !b.pending {
		return Offset{}, false
	}
	offset := b.next
	b.Reset()
	return offset, true
}

// Peek returns the stored offset without clearing it.
func (b *MoveBuffer) Peek() (Offset, bool) {
	return b.next, b.pending
}

// Reset empties the slot. Called at the start of every playing episode.
func (b *MoveBuffer) Reset() {
	b.next = Offset{}
	b.pending = false
}
