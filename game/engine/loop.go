package engine

// LoopCounter tracks which iteration of the level is in progress:
// 0 is authoritative and recorded, 1 replays it alongside a new live run.
type LoopCounter struct {
	iteration int
}

// Iteration returns the current iteration.
func (c *LoopCounter) Iteration() int {
	return c.iteration
}

// Authoritative reports whether moves of this iteration are recorded.
func (c *LoopCounter) Authoritative() bool {
	return c.iteration == 0
}

// ActiveAgents returns how many agents play in this iteration.
func (c *LoopCounter) ActiveAgents() int {
	return c.iteration + 1
}

// Advance moves to the next iteration modulo LoopsPerCycle. It returns true when
// a full cycle has completed and the counter wrapped back to 0.
func (c *LoopCounter) Advance() bool {
	c.iteration = (c.iteration + 1) % LoopsPerCycle
	return c.iteration == 0
}
