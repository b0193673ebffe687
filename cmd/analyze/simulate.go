package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/sootloop/game/engine"
)

// maxSettleTicks bounds the ticks spent waiting for the live agent's turn.
const maxSettleTicks = 10000

// IterationResult is one played episode of a simulation.
type IterationResult struct {
	Iteration  int
	Summary    *engine.Summary
	LiveTrace  engine.Trace
	EchoTrace  engine.Trace
	Rejections []engine.Rejection
	Ticks      uint64
}

// SimulationResult covers a full recording cycle: the authoritative iteration
// and the replay that follows it.
type SimulationResult struct {
	Level           string
	Recording       []engine.Offset
	RecordingDigest uint64
	Iterations      []IterationResult
	// EchoRetraced is true when the echo walked the iteration 0 trace cell for cell.
	EchoRetraced bool
}

// parseMoves accepts comma or whitespace separated directions.
func parseMoves(s string) ([]engine.Direction, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	moves := make([]engine.Direction, 0, len(fields))
	for i, f := range fields {
		d, err := engine.ParseDirection(f)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		moves = append(moves, d)
	}
	return moves, nil
}

// simulate plays first as iteration 0, restarts, and plays second (first when
// empty) next to the echo. A strict replay rejection panics out of the engine.
func simulate(cfg *engine.LevelConfig, first, second []engine.Direction, dt time.Duration) (*SimulationResult, error) {
	e, err := engine.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	if len(second) == 0 {
		second = first
	}

	result := &SimulationResult{Level: cfg.Name}

	it0, err := playIteration(e, first, dt)
	if err != nil {
		return nil, err
	}
	result.Iterations = append(result.Iterations, *it0)
	result.Recording = e.Recording()
	result.RecordingDigest = engine.RecordingDigest(result.Recording)

	if err := e.Restart(); err != nil {
		return nil, err
	}

	it1, err := playIteration(e, second, dt)
	if err != nil {
		return result, err
	}
	result.Iterations = append(result.Iterations, *it1)
	result.EchoRetraced = it1.EchoTrace.Equal(it0.LiveTrace)
	return result, nil
}

func playIteration(e *engine.Engine, moves []engine.Direction, dt time.Duration) (*IterationResult, error) {
	res := &IterationResult{Iteration: e.Iteration()}
	startTick := e.Ticks()

	for _, dir := range moves {
		if err := settle(e, dt); err != nil {
			return nil, err
		}
		if e.IsOver() {
			break
		}
		report := e.Tick(engine.InputFrame{Pressed: []engine.Direction{dir}}, dt)
		if report.Rejection != nil && report.Rejection.LoopNumber == 0 {
			res.Rejections = append(res.Rejections, *report.Rejection)
		}
	}
	if err := settle(e, dt); err != nil {
		return nil, err
	}
	if !e.IsOver() {
		live, _ := engine.LiveAgent(e.Snapshot())
		return nil, fmt.Errorf("iteration %d: script ended at %s before the episode was over", res.Iteration, live.Location)
	}

	res.Summary = e.Summary()
	res.LiveTrace = e.Trace(0)
	if e.Iteration() > 0 {
		res.EchoTrace = e.Trace(1)
	}
	res.Ticks = e.Ticks() - startTick
	return res, nil
}

// settle ticks without input until the live agent holds the turn at rest.
func settle(e *engine.Engine, dt time.Duration) error {
	for n := 0; !e.IsOver() && (e.CurrentMover() != 0 || !e.Settled()); n++ {
		if n >= maxSettleTicks {
			return fmt.Errorf("engine did not settle after %d ticks", n)
		}
		e.Tick(engine.InputFrame{}, dt)
	}
	return nil
}
