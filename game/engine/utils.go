package engine

// ManhattanDistance calculates the Manhattan distance between two locations
func ManhattanDistance(from, to GridLocation) int {
	return abs(from.X-to.X) + abs(from.Y-to.Y)
}

// FuelNeeded returns the minimum fuel a shortest walk from one cell to another
// spends: one per upward step plus one per leftward step.
func FuelNeeded(from, to GridLocation) int {
	need := 0
	if to.Y > from.Y {
		need += to.Y - from.Y
	}
	if to.X < from.X {
		need += from.X - to.X
	}
	return need
}

// CountItems counts the items of a kind in a snapshot
func CountItems(snap *Snapshot, kind ItemKind) int {
	count := 0
	for _, it := range snap.Items {
		if it.Kind == kind {
			count++
		}
	}
	return count
}

// LiveAgent returns the loop 0 agent of a snapshot
func LiveAgent(snap *Snapshot) (AgentView, bool) {
	for _, a := range snap.Agents {
		if a.LoopNumber == 0 {
			return a, true
		}
	}
	return AgentView{}, false
}

// FindNearestItem finds the closest item of a kind and returns its location and distance
func FindNearestItem(snap *Snapshot, from GridLocation, kind ItemKind) (GridLocation, int, bool) {
	minDistance := -1
	var nearest GridLocation
	found := false

	for _, it := range snap.Items {
		if it.Kind != kind {
			continue
		}
		distance := ManhattanDistance(from, it.Location)
		if minDistance == -1 || distance < minDistance {
			minDistance = distance
			nearest = it.Location
			found = true
		}
	}

	return nearest, minDistance, found
}

// AnalyzeFuelRisk assesses whether the live agent can still afford the goal
func AnalyzeFuelRisk(snap *Snapshot) string {
	live, ok := LiveAgent(snap)
	if !ok {
		return "UNKNOWN: No live agent"
	}

	need := FuelNeeded(live.Location, snap.Goal)
	switch {
	case live.AtGoal:
		return "DONE: Resting on the goal"
	case need > live.Inventory.Fuel+CountItems(snap, Fuel):
		return "DANGER: Not enough fuel left on the board to reach the goal!"
	case need > live.Inventory.Fuel:
		return "CAUTION: Pick up fuel before heading to the goal"
	case live.Inventory.Fuel == 0:
		return "LOW: Only down and right moves are free"
	}
	return "SAFE: Fuel sufficient"
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
