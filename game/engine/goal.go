package engine

// AgentState is the per-agent input to the goal detector.
type AgentState struct {
	LoopNumber int
	Location   GridLocation
	Settled    bool
}

// GoalDetector declares an episode over when every active agent rests on the goal.
type GoalDetector struct {
	Goal GridLocation
}

// AtGoal reports whether loc is the goal cell.
func (d GoalDetector) AtGoal(loc GridLocation) bool {
	return loc == d.Goal
}

// Reached returns true iff there is at least one agent and every agent is
// settled on the goal cell. An agent mid-animation blocks it even when its
// logical location already matches.
func (d GoalDetector) Reached(agents []AgentState) bool {
	if len(agents) == 0 {
		return false
	}
	for _, a := range agents {
		if !a.Settled || !d.AtGoal(a.Location) {
			return false
		}
	}
	return true
}
