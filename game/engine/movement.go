package engine

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
)

// MoveAttempt is a request for an agent to move one cell.
type MoveAttempt struct {
	Mover      ecs.Entity `json:"-"`
	LoopNumber int        `json:"loop_number"`
	Offset     Offset     `json:"offset"`
	Replay     bool       `json:"replay"`
}

// Move is a validated attempt, ready to be applied. From and To are filled in
// when the move is applied.
type Move struct {
	Mover      ecs.Entity   `json:"-"`
	LoopNumber int          `json:"loop_number"`
	Offset     Offset       `json:"offset"`
	FuelCost   int          `json:"fuel_cost"`
	Replay     bool         `json:"replay"`
	From       GridLocation `json:"from"`
	To         GridLocation `json:"to"`
}

// RejectReason explains why an attempt was dropped.
type RejectReason string

const (
	RejectNone         RejectReason = ""
	RejectInsufficient RejectReason = "insufficient_fuel"
	RejectOutOfBounds  RejectReason = "out_of_bounds"
	RejectNotCardinal  RejectReason = "not_cardinal"
)

// Rejection records a dropped attempt. Rejections are not errors.
type Rejection struct {
	LoopNumber int          `json:"loop_number"`
	Offset     Offset       `json:"offset"`
	Reason     RejectReason `json:"reason"`
	From       GridLocation `json:"from"`
	Fuel       int          `json:"fuel"`
}

func (r Rejection) String() string {
	return fmt.Sprintf("loop %d move %s from %s rejected: %s (fuel=%d)", r.LoopNumber, r.Offset, r.From, r.Reason, r.Fuel)
}

// FuelCost returns the fuel a move needs: one for a leftward component plus
// one for an upward component. Down and right are free.
func FuelCost(offset Offset) int {
	cost := 0
	if offset.X < 0 {
		cost++
	}
	if offset.Y > 0 {
		cost++
	}
	return cost
}

// ValidateMove checks an offset against the agent's fuel and the grid bounds, in
// that order. It returns the fuel cost when the move is accepted.
func ValidateMove(grid Grid, from GridLocation, inv Inventory, offset Offset) (int, RejectReason) {
	if !offset.IsCardinal() {
		return 0, RejectNotCardinal
	}
	cost := FuelCost(offset)
	if cost > inv.Fuel {
		return cost, RejectInsufficient
	}
	if !grid.Contains(from.Add(offset)) {
		return cost, RejectOutOfBounds
	}
	return cost, RejectNone
}

// ApplyMove mutates location and inventory for an accepted move.
func ApplyMove(loc *GridLocation, inv *Inventory, mv Move) {
	*loc = loc.Add(mv.Offset)
	if mv.FuelCost > 0 {
		inv.Fuel -= mv.FuelCost
	}
}
