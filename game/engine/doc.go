// Package engine provides the core simulation for the Soot Loop puzzle game.
//
// The engine package implements the turn-based movement and time-loop rules:
//   - Grid model mapping integer cells to spatial centers
//   - Debounced single-slot movement input
//   - Move validation against grid bounds and the fuel budget
//   - Translation animation between cells with a cubic bezier ease
//   - Round-robin turn rotation between the live agent and its echo
//   - Recording of the authoritative loop and verbatim replay by the echo
//   - Item pickup and episode termination
//
// Core Types:
//
// Engine owns one level: the entity store (agents and items), the move buffer,
// the time-loop recording, the loop counter and the turn scheduler. LevelConfig
// defines the grid and level population, loaded from YAML or JSON files.
//
// Usage:
//
//	cfg := engine.DefaultLevelConfig()
//	eng, err := engine.NewEngine(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// One tick per rendered frame
//	report := eng.Tick(engine.InputFrame{Pressed: []engine.Direction{engine.Right}}, 16*time.Millisecond)
//	snapshot := eng.Snapshot()
//
// Game Rules:
//
// The live agent starts in the top-left cell and must reach the bottom-right goal.
// Moving down or right is free; moving up or left costs one fuel each. Candies and
// fuel lie on the grid and are picked up when an agent settles on their cell.
// When every agent rests on the goal the episode is over. Restarting runs the
// same level again, this time with an echo replaying the previous run's moves,
// alternating turns with the live agent.
//
// Invariant violations (two moves in one tick, a completion from the agent whose
// turn it is not, a rejected replay under the strict policy) are programming
// errors: the engine panics with an *InvariantViolation.
package engine
