package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/mcp-training/sootloop/game/engine"
	"github.com/wricardo/mcp-training/sootloop/game/service"
)

// Formatting helpers

func formatSessionInfo(s *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", s.ID)
	fmt.Fprintf(&b, "Level: %s\n", s.ConfigName)
	fmt.Fprintf(&b, "Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Last Accessed: %s\n", s.LastAccessedAt.Format("2006-01-02 15:04:05"))
	if s.Faulted {
		fmt.Fprintf(&b, "FAULTED: %s\n", s.Fault)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(s.GameState))
	return b.String()
}

// renderGrid draws the board with the top row first. The live agent wins a
// shared cell, then the echo, then items, then the goal and start markers.
func renderGrid(state *engine.Snapshot) string {
	cells := make([][]byte, state.Height)
	for y := range cells {
		cells[y] = []byte(strings.Repeat(".", state.Width))
	}
	set := func(loc engine.GridLocation, c byte) {
		if loc.X >= 0 && loc.Y >= 0 && loc.X < state.Width && loc.Y < state.Height {
			cells[loc.Y][loc.X] = c
		}
	}

	set(state.Start, 'S')
	set(state.Goal, 'G')
	for _, it := range state.Items {
		switch it.Kind {
		case engine.Candy:
			set(it.Location, 'c')
		case engine.Fuel:
			set(it.Location, 'f')
		}
	}
	for _, a := range state.Agents {
		if a.LoopNumber != 0 {
			set(a.Location, 'E')
		}
	}
	if live, ok := engine.LiveAgent(state); ok {
		set(live.Location, 'L')
	}

	var b strings.Builder
	for y := state.Height - 1; y >= 0; y-- {
		fmt.Fprintf(&b, "%2d ", y)
		for x := 0; x < state.Width; x++ {
			b.WriteByte(cells[y][x])
			if x < state.Width-1 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("   ")
	for x := 0; x < state.Width; x++ {
		fmt.Fprintf(&b, "%d", x%10)
		if x < state.Width-1 {
			b.WriteByte(' ')
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func formatGameState(state *engine.Snapshot) string {
	if state == nil {
		return "No game state"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Level: %s  Episode: %d  Iteration: %d  Tick: %d\n", state.LevelName, state.Episode, state.Iteration, state.Tick)
	fmt.Fprintf(&b, "Phase: %s\n", state.Phase)
	if state.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", state.Message)
	}

	for _, a := range state.Agents {
		name := "You"
		if a.LoopNumber != 0 {
			name = fmt.Sprintf("Echo (loop %d)", a.LoopNumber)
		}
		fmt.Fprintf(&b, "%s at %s  Candies: %d  Fuel: %d", name, a.Location, a.Inventory.Candies, a.Inventory.Fuel)
		if a.AtGoal {
			b.WriteString("  [at goal]")
		}
		if a.LoopNumber != 0 {
			fmt.Fprintf(&b, "  Replay left: %d", a.Remaining)
		}
		b.WriteString("\n")
	}

	if len(state.Agents) > 1 {
		if state.Turn == 0 {
			b.WriteString("Turn: yours\n")
		} else {
			fmt.Fprintf(&b, "Turn: loop %d\n", state.Turn)
		}
	}
	fmt.Fprintf(&b, "Items left: %d candy, %d fuel\n", engine.CountItems(state, engine.Candy), engine.CountItems(state, engine.Fuel))
	fmt.Fprintf(&b, "Recorded moves: %d\n", len(state.Recording))

	b.WriteString("\nGrid (L=you, E=echo, G=goal, S=start, c=candy, f=fuel):\n")
	b.WriteString(renderGrid(state))

	if state.Summary != nil {
		b.WriteString("\n")
		b.WriteString(formatSummary(state.Summary))
	}

	return b.String()
}

func formatSummary(s *engine.Summary) string {
	return fmt.Sprintf("Episode over: %s\nScore: %d (candies %d, fuel left %d)\nMoves: %d in %d ticks\n",
		s.Outcome, s.Score, s.TotalCandies, s.FuelLeft, s.Moves, s.Ticks)
}

func writeEvents(b *strings.Builder, events []service.GameEvent) {
	for _, e := range events {
		fmt.Fprintf(b, "  [%s] %s\n", e.Type, e.Message)
	}
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Success {
		b.WriteString("✓ Move successful\n")
	} else {
		b.WriteString("✗ Move failed\n")
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	if s := result.Step; s != nil {
		fmt.Fprintf(&b, "%s: %s -> %s  fuel %d -> %d", s.Dir, s.From, s.To, s.FuelBefore, s.FuelAfter)
		if s.Candy {
			b.WriteString("  +candy")
		}
		if s.Fuel {
			b.WriteString("  +fuel")
		}
		if s.Goal {
			b.WriteString("  goal")
		}
		b.WriteString("\n")
	}
	if result.Rejection != nil {
		fmt.Fprintf(&b, "Rejected: %s\n", result.Rejection.Reason)
	}
	if len(result.Events) > 0 {
		b.WriteString("Events:\n")
		writeEvents(&b, result.Events)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatBulkMoveResult(sessionID string, result *service.BulkMoveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", sessionID)
	fmt.Fprintf(&b, "Executed %d/%d moves", result.MovesExecuted, result.RequestedMoves)
	if result.Truncated {
		fmt.Fprintf(&b, " (truncated to %d)", result.Limit)
	}
	b.WriteString("\n")
	if result.StopReasonCode != "" {
		fmt.Fprintf(&b, "Stopped on move %d: %s (%s)\n", result.StoppedOnMove, result.StoppedReason, result.StopReasonCode)
	}
	fmt.Fprintf(&b, "Position: %s -> %s\n", result.StartPos, result.EndPos)
	fmt.Fprintf(&b, "Fuel: %d -> %d  Score: %+d  Ticks: %d\n", result.StartFuel, result.EndFuel, result.ScoreDelta, result.Ticks)

	if len(result.Steps) > 0 {
		b.WriteString("Steps:\n")
		for _, s := range result.Steps {
			mark := "✓"
			if !s.Success {
				mark = "✗"
			}
			fmt.Fprintf(&b, "  %s %d. %s %s -> %s fuel %d\n", mark, s.Idx, s.Dir, s.From, s.To, s.FuelAfter)
		}
	}
	if result.GameOver {
		fmt.Fprintf(&b, "Game over: %s\n", result.GameOverCode)
	}
	if len(result.PossibleMoves) > 0 {
		fmt.Fprintf(&b, "Possible moves: %s\n", strings.Join(result.PossibleMoves, ", "))
	}
	if result.FuelRisk != "" {
		fmt.Fprintf(&b, "Fuel risk: %s\n", result.FuelRisk)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (Page %d/%d, Total: %d moves)\n\n", history.Page, history.TotalPages, history.TotalMoves)

	for _, m := range history.Moves {
		who := "you"
		if m.Replayed {
			who = fmt.Sprintf("echo %d", m.LoopNumber)
		}
		fmt.Fprintf(&b, "#%d [iter %d, tick %d] %s %s: %s -> %s (cost %d, fuel %d)\n",
			m.MoveNumber, m.Iteration, m.Tick, who, m.Direction, m.From, m.To, m.FuelCost, m.FuelAfter)
	}

	if history.HasNext || history.HasPrevious {
		b.WriteString("\n")
		if history.HasPrevious {
			b.WriteString("← Previous page available\n")
		}
		if history.HasNext {
			b.WriteString("→ Next page available\n")
		}
	}
	return b.String()
}

func formatRecording(rec *service.RecordingInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Iteration: %d\n", rec.Iteration)
	fmt.Fprintf(&b, "Recorded moves: %d  Replay remaining: %d\n", len(rec.Moves), rec.Remaining)
	fmt.Fprintf(&b, "Digest: %s\n", rec.Digest)
	if len(rec.Moves) > 0 {
		names := make([]string, len(rec.Moves))
		for i, o := range rec.Moves {
			names[i] = o.String()
		}
		fmt.Fprintf(&b, "Moves: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}

// describeCell lists everything at loc and what stepping onto it from the live
// agent would cost when it is adjacent.
func describeCell(state *engine.Snapshot, loc engine.GridLocation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cell %s:\n", loc)

	empty := true
	if loc == state.Start {
		b.WriteString("- Start cell\n")
		empty = false
	}
	if loc == state.Goal {
		b.WriteString("- Goal\n")
		empty = false
	}
	for _, it := range state.Items {
		if it.Location == loc {
			fmt.Fprintf(&b, "- Item: %s\n", it.Kind)
			empty = false
		}
	}
	for _, a := range state.Agents {
		if a.Location != loc {
			continue
		}
		if a.LoopNumber == 0 {
			b.WriteString("- You are here\n")
		} else {
			fmt.Fprintf(&b, "- Echo (loop %d) is here\n", a.LoopNumber)
		}
		empty = false
	}
	if empty {
		b.WriteString("- Empty\n")
	}

	live, ok := engine.LiveAgent(state)
	if !ok || live.Location == loc {
		return b.String()
	}

	grid := engine.Grid{Width: state.Width, Height: state.Height, Spacing: state.Spacing}
	offset := engine.Offset{X: loc.X - live.Location.X, Y: loc.Y - live.Location.Y}
	if !offset.IsCardinal() {
		fmt.Fprintf(&b, "Distance from you: %d, fuel needed: %d\n",
			engine.ManhattanDistance(live.Location, loc), engine.FuelNeeded(live.Location, loc))
		return b.String()
	}

	cost, reason := engine.ValidateMove(grid, live.Location, live.Inventory, offset)
	if reason != engine.RejectNone {
		fmt.Fprintf(&b, "Moving %s from you: rejected (%s)\n", offset, reason)
	} else {
		fmt.Fprintf(&b, "Moving %s from you: allowed, costs %d fuel\n", offset, cost)
	}
	return b.String()
}
