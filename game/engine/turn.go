package engine

// TurnScheduler owns turn state: which loop number may move next. It rotates
// round-robin over the active agents and skips those that cannot move.
type TurnScheduler struct {
	turn   int
	agents int
}

// NewTurnScheduler returns a scheduler for n active agents, starting at turn 0.
func NewTurnScheduler(n int) TurnScheduler {
	if n < 1 {
		n = 1
	}
	return TurnScheduler{agents: n}
}

// CurrentMover returns the loop number whose input may be consumed.
func (s *TurnScheduler) CurrentMover() int {
	return s.turn
}

// Agents returns the number of active agents.
func (s *TurnScheduler) Agents() int {
	return s.agents
}

// Reset sets the number of active agents and gives the turn back to 0.
func (s *TurnScheduler) Reset(n int) {
	if n < 1 {
		n = 1
	}
	s.agents = n
	s.turn = 0
}

// Advance is called exactly once per movement completion. It returns false,
// leaving the turn unchanged, when the completing agent is not the current mover.
func (s *TurnScheduler) Advance(completed int, canMove func(loopNumber int) bool) bool {
	if completed != s.turn {
		return false
	}
	s.rotate(canMove)
	return true
}

// Pass hands the turn on without a completed move, used when the mover has
// nothing left to do.
func (s *TurnScheduler) Pass(canMove func(loopNumber int) bool) {
	s.rotate(canMove)
}

func (s *TurnScheduler) rotate(canMove func(loopNumber int) bool) {
	for delta := 1; delta <= s.agents; delta++ {
		candidate := (s.turn + delta) % s.agents
		if canMove(candidate) {
			s.turn = candidate
			return
		}
	}
	// Nobody can move: ready for the next iteration.
	s.turn = 0
}
