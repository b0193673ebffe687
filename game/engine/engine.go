package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/mlange-42/ark/ecs"
)

// ItemGet is emitted once per pickup.
type ItemGet struct {
	LoopNumber int          `json:"loop_number"`
	Kind       ItemKind     `json:"kind"`
	Location   GridLocation `json:"location"`
}

// TickReport describes everything that happened during one tick.
type TickReport struct {
	Tick             uint64       `json:"tick"`
	Ignored          bool         `json:"ignored,omitempty"`
	Attempt          *MoveAttempt `json:"attempt,omitempty"`
	Move             *Move        `json:"move,omitempty"`
	Rejection        *Rejection   `json:"rejection,omitempty"`
	Passed           bool         `json:"passed,omitempty"`
	Completed        []int        `json:"completed,omitempty"`
	ItemGets         []ItemGet    `json:"item_gets,omitempty"`
	InventoryChanged *Inventory   `json:"inventory_changed,omitempty"`
	Turn             int          `json:"turn"`
	Ended            bool         `json:"ended,omitempty"`
	Outcome          Outcome      `json:"outcome,omitempty"`
}

// Eventful reports whether anything observable happened during the tick.
func (r *TickReport) Eventful() bool {
	return r.Move != nil || r.Rejection != nil || r.Passed || len(r.Completed) > 0 ||
		len(r.ItemGets) > 0 || r.InventoryChanged != nil || r.Ended
}

// Engine owns one level and runs the movement and time-loop simulation. It is
// single-threaded: callers serialize access.
type Engine struct {
	cfg   *LevelConfig
	grid  Grid
	goal  GoalDetector
	world *World
	rng   *rand.Rand

	buffer   MoveBuffer
	recorder TimeLoopRecorder
	loops    LoopCounter
	turns    TurnScheduler
	level    Level

	phase        Phase
	outcome      Outcome
	summary      *Summary
	message      string
	tick         uint64
	episode      int
	episodeTicks uint64
	episodeMoves int

	liveInventory  Inventory
	history        []MoveRecord
	traces         map[int]Trace
	previousTraces map[int]Trace
}

// NewEngine creates a new engine with the provided level and starts the first episode
func NewEngine(config *LevelConfig) (*Engine, error) {
	if err := ValidateLevelConfig(config); err != nil {
		return nil, err
	}
	cfg := config.Clone()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		cfg:  cfg,
		grid: cfg.Grid(),
		goal: GoalDetector{Goal: cfg.GoalCell()},
		rng:  rand.New(rand.NewSource(seed)),
	}
	e.world = NewWorld(e.grid, cfg.AnimationDuration(), cfg.Curve())
	e.startEpisode()
	return e, nil
}

// NewEngineWithDefaults creates an engine on the default level
func NewEngineWithDefaults() *Engine {
	e, err := NewEngine(DefaultLevelConfig())
	if err != nil {
		panic(fmt.Sprintf("default level is invalid: %v", err))
	}
	return e
}

// startEpisode despawns everything and populates the level for the current iteration.
func (e *Engine) startEpisode() {
	e.world.Clear()
	e.buffer.Reset()

	if e.loops.Authoritative() {
		e.level = Populate(e.cfg, e.rng)
	} else {
		e.recorder.Rewind()
	}
	for _, req := range e.level.Items {
		e.world.Spawn(req)
	}

	start := e.cfg.StartCell()
	e.traces = make(map[int]Trace)
	for loop := 0; loop < e.loops.ActiveAgents(); loop++ {
		e.world.Spawn(SpawnRequest{Kind: SpawnAgent, Location: start, LoopNumber: loop, StartingFuel: e.cfg.StartingFuel})
		e.traces[loop] = Trace{start}
	}
	e.turns.Reset(e.loops.ActiveAgents())

	e.phase = Playing
	e.outcome = OutcomeNone
	e.summary = nil
	e.episode++
	e.episodeTicks = 0
	e.episodeMoves = 0
	e.liveInventory = Inventory{Fuel: e.cfg.StartingFuel}

	e.message = e.cfg.Messages.Welcome
	if !e.loops.Authoritative() && e.cfg.Messages.Echo != "" {
		e.message = e.cfg.Messages.Echo
	}
}

// Restart leaves the game over state and starts the next iteration. After a
// full cycle the recording is cleared and a fresh level is generated.
func (e *Engine) Restart() error {
	if e.phase != GameOver {
		return ErrEpisodeNotOver
	}
	e.previousTraces = e.traces
	if e.loops.Advance() {
		e.recorder.Clear()
	}
	e.startEpisode()
	return nil
}

// Reset abandons the current cycle and starts over from iteration 0 on a new layout.
func (e *Engine) Reset() {
	e.loops = LoopCounter{}
	e.recorder.Clear()
	e.previousTraces = nil
	e.startEpisode()
}

// Tick runs one simulation step with the directions just pressed and the elapsed
// time. Ticks in the game over state are ignored.
func (e *Engine) Tick(frame InputFrame, dt time.Duration) *TickReport {
	if e.phase != Playing {
		return &TickReport{Tick: e.tick, Ignored: true, Turn: e.turns.CurrentMover(), Outcome: e.outcome}
	}
	e.tick++
	e.episodeTicks++
	report := &TickReport{Tick: e.tick}

	// input -> debounce -> attempt -> validation -> mutation -> animation start
	e.buffer.Record(frame.Reduce())
	attempts := e.collectAttempts(report)
	if len(attempts) > 1 {
		violate(ViolationMultipleAttempts, e.tick, "count", len(attempts))
	}
	var moves []Move
	for _, attempt := range attempts {
		a := attempt
		report.Attempt = &a
		if mv, ok := e.validate(a, report); ok {
			moves = append(moves, mv)
		}
	}
	if len(moves) > 1 {
		violate(ViolationMultipleMoves, e.tick, "count", len(moves))
	}
	for _, mv := range moves {
		e.apply(mv, report)
	}

	// animation update -> completion -> turn rotation -> pickups -> termination
	completed := e.world.UpdateAnimations(dt)
	if len(completed) > 1 {
		violate(ViolationMultipleCompletions, e.tick, "count", len(completed))
	}
	for _, c := range completed {
		e.complete(c, report)
	}
	e.pickUpItems(report)
	e.notifyInventory(report)
	e.checkTermination(report)

	report.Turn = e.turns.CurrentMover()
	return report
}

func (e *Engine) collectAttempts(report *TickReport) []MoveAttempt {
	var attempts []MoveAttempt
	if a, ok := e.liveAttempt(); ok {
		attempts = append(attempts, a)
	}
	if a, ok := e.replayAttempt(report); ok {
		attempts = append(attempts, a)
	}
	return attempts
}

// liveAttempt consumes the move buffer when it is the live agent's turn and
// its previous move has settled.
func (e *Engine) liveAttempt() (MoveAttempt, bool) {
	if e.turns.CurrentMover() != 0 {
		return MoveAttempt{}, false
	}
	live := e.requireAgent(0)
	if !e.world.Animator(live).Settled() {
		return MoveAttempt{}, false
	}
	offset, ok := e.buffer.Consume()
	if !ok {
		return MoveAttempt{}, false
	}
	return MoveAttempt{Mover: live, LoopNumber: 0, Offset: offset}, true
}

// replayAttempt dequeues the next recorded offset for the echo. An echo with
// nothing left to replay passes its turn.
func (e *Engine) replayAttempt(report *TickReport) (MoveAttempt, bool) {
	if e.loops.Authoritative() || e.turns.CurrentMover() != 1 {
		return MoveAttempt{}, false
	}
	echo := e.requireAgent(1)
	if !e.world.Animator(echo).Settled() {
		return MoveAttempt{}, false
	}
	offset, ok := e.recorder.Next()
	if !ok {
		e.turns.Pass(e.canMove)
		report.Passed = true
		return MoveAttempt{}, false
	}
	return MoveAttempt{Mover: echo, LoopNumber: 1, Offset: offset, Replay: true}, true
}

func (e *Engine) requireAgent(loop int) ecs.Entity {
	agent, ok := e.world.AgentByLoop(loop)
	if !ok {
		violate(ViolationMissingAgent, e.tick, "loop_number", loop, "iteration", e.loops.Iteration())
	}
	return agent
}

func (e *Engine) validate(a MoveAttempt, report *TickReport) (Move, bool) {
	if !e.world.IsAgent(a.Mover) {
		violate(ViolationMoverNotFound, e.tick, "loop_number", a.LoopNumber, "offset", a.Offset)
	}
	loc := *e.world.Location(a.Mover)
	inv := *e.world.Inventory(a.Mover)

	cost, reason := ValidateMove(e.grid, loc, inv, a.Offset)
	if reason == RejectNone {
		return Move{Mover: a.Mover, LoopNumber: a.LoopNumber, Offset: a.Offset, FuelCost: cost, Replay: a.Replay}, true
	}

	report.Rejection = &Rejection{LoopNumber: a.LoopNumber, Offset: a.Offset, Reason: reason, From: loc, Fuel: inv.Fuel}
	if a.Replay {
		if e.cfg.Policy() == ReplayStrict {
			violate(ViolationReplayRejected, e.tick,
				"loop_number", a.LoopNumber,
				"offset", a.Offset.String(),
				"reason", string(reason),
				"from", loc.String(),
				"fuel", inv.Fuel,
				"remaining", e.recorder.Remaining())
		}
		e.turns.Pass(e.canMove)
		report.Passed = true
	}
	return Move{}, false
}

func (e *Engine) apply(mv Move, report *TickReport) {
	loc := e.world.Location(mv.Mover)
	inv := e.world.Inventory(mv.Mover)
	from := *loc

	ApplyMove(loc, inv, mv)
	if e.loops.Authoritative() && mv.LoopNumber == 0 {
		e.recorder.Append(mv.Offset)
	}
	e.world.Animator(mv.Mover).Begin(e.grid.CenterOf(*loc))

	e.traces[mv.LoopNumber] = append(e.traces[mv.LoopNumber], *loc)
	e.episodeMoves++
	dir, _ := mv.Offset.Direction()
	e.history = append(e.history, MoveRecord{
		MoveNumber: len(e.history) + 1,
		Tick:       e.tick,
		Iteration:  e.loops.Iteration(),
		LoopNumber: mv.LoopNumber,
		Direction:  dir,
		From:       from,
		To:         *loc,
		FuelCost:   mv.FuelCost,
		FuelAfter:  inv.Fuel,
		Replayed:   mv.Replay,
	})
	mv.From, mv.To = from, *loc
	report.Move = &mv
}

func (e *Engine) complete(agent ecs.Entity, report *TickReport) {
	soot := e.world.Soot(agent)
	expected := e.turns.CurrentMover()
	if !e.turns.Advance(soot.LoopNumber, e.canMove) {
		violate(ViolationWrongMover, e.tick, "expected_loop", expected, "completed_loop", soot.LoopNumber)
	}
	report.Completed = append(report.Completed, soot.LoopNumber)
}

// canMove is false iff an agent tagged with the loop number rests on the goal.
func (e *Engine) canMove(loop int) bool {
	for _, s := range e.world.AgentStates() {
		if s.LoopNumber == loop && e.goal.AtGoal(s.Location) {
			return false
		}
	}
	return true
}

// pickUpItems lets every settled agent collect the items on its cell. Agents are
// visited in loop order, so the live agent wins a shared cell.
func (e *Engine) pickUpItems(report *TickReport) {
	for _, agent := range e.world.Agents() {
		if !e.world.Animator(agent).Settled() {
			continue
		}
		loc := *e.world.Location(agent)
		for _, item := range e.world.ItemsAt(loc) {
			kind := e.world.ItemKind(item)
			if !e.world.Despawn(item) {
				continue
			}
			e.world.Inventory(agent).Add(kind)
			report.ItemGets = append(report.ItemGets, ItemGet{
				LoopNumber: e.world.Soot(agent).LoopNumber,
				Kind:       kind,
				Location:   loc,
			})
		}
	}
}

// notifyInventory reports the live agent's inventory when it changed this tick.
func (e *Engine) notifyInventory(report *TickReport) {
	live, ok := e.world.AgentByLoop(0)
	if !ok {
		return
	}
	inv := *e.world.Inventory(live)
	if inv != e.liveInventory {
		e.liveInventory = inv
		report.InventoryChanged = &inv
	}
}

func (e *Engine) checkTermination(report *TickReport) {
	states := e.world.AgentStates()
	switch {
	case e.goal.Reached(states):
		e.endEpisode(OutcomeGoalReached)
	case e.cfg.Policy() == ReplaySkip && e.echoStranded(states):
		e.endEpisode(OutcomeEchoStranded)
	default:
		return
	}
	report.Ended = true
	report.Outcome = e.outcome
}

// echoStranded is true when the live agent rests on the goal and the echo has
// settled elsewhere with nothing left to replay.
func (e *Engine) echoStranded(states []AgentState) bool {
	if e.loops.Authoritative() || e.recorder.Remaining() > 0 {
		return false
	}
	for _, s := range states {
		if !s.Settled {
			return false
		}
		if s.LoopNumber == 0 && !e.goal.AtGoal(s.Location) {
			return false
		}
	}
	return true
}

func (e *Engine) endEpisode(outcome Outcome) {
	e.phase = GameOver
	e.outcome = outcome

	summary := &Summary{Outcome: outcome, Moves: e.episodeMoves, Ticks: e.episodeTicks}
	for _, agent := range e.world.Agents() {
		inv := e.world.Inventory(agent)
		summary.TotalCandies += inv.Candies
		if e.world.Soot(agent).LoopNumber == 0 {
			summary.Score = inv.Candies
			summary.FuelLeft = inv.Fuel
		}
	}
	e.summary = summary

	format := e.cfg.Messages.GameOver
	if format == "" {
		format = "Game over! Candies collected: %d"
	}
	if strings.Contains(format, "%d") {
		e.message = fmt.Sprintf(format, summary.Score)
	} else {
		e.message = format
	}
}

// Phase returns the episode phase.
func (e *Engine) Phase() Phase { return e.phase }

// IsOver reports whether the episode has ended.
func (e *Engine) IsOver() bool { return e.phase == GameOver }

// Iteration returns the loop iteration in progress.
func (e *Engine) Iteration() int { return e.loops.Iteration() }

// CurrentMover returns the loop number whose turn it is.
func (e *Engine) CurrentMover() int { return e.turns.CurrentMover() }

// Config returns the level configuration.
func (e *Engine) Config() *LevelConfig { return e.cfg }

// Episode returns the 1-based episode counter.
func (e *Engine) Episode() int { return e.episode }

// Ticks returns the total number of simulated ticks.
func (e *Engine) Ticks() uint64 { return e.tick }

// Summary returns the end-of-episode summary, nil while playing.
func (e *Engine) Summary() *Summary { return e.summary }

// Recording returns the recorded offsets of the current cycle.
func (e *Engine) Recording() []Offset { return e.recorder.Moves() }

// ReplayRemaining returns how many recorded offsets the echo has yet to replay.
func (e *Engine) ReplayRemaining() int {
	if e.loops.Authoritative() {
		return 0
	}
	return e.recorder.Remaining()
}

// History returns a copy of every accepted move since the engine was created.
func (e *Engine) History() []MoveRecord {
	out := make([]MoveRecord, len(e.history))
	copy(out, e.history)
	return out
}

// Trace returns the cells visited by an agent during the current episode.
func (e *Engine) Trace(loop int) Trace {
	return append(Trace(nil), e.traces[loop]...)
}

// PreviousTrace returns an agent's trace from the episode before the last restart.
func (e *Engine) PreviousTrace(loop int) Trace {
	return append(Trace(nil), e.previousTraces[loop]...)
}

// Settled reports whether no agent is animating.
func (e *Engine) Settled() bool {
	for _, s := range e.world.AgentStates() {
		if !s.Settled {
			return false
		}
	}
	return true
}

// Snapshot returns the read-only view of the current state.
func (e *Engine) Snapshot() *Snapshot {
	snap := &Snapshot{
		LevelName: e.cfg.Name,
		Phase:     e.phase,
		Iteration: e.loops.Iteration(),
		Episode:   e.episode,
		Tick:      e.tick,
		Turn:      e.turns.CurrentMover(),
		Width:     e.grid.Width,
		Height:    e.grid.Height,
		Spacing:   e.grid.Spacing,
		Start:     e.cfg.StartCell(),
		Goal:      e.goal.Goal,
		Agents:    e.world.AgentViews(e.goal.Goal),
		Items:     e.world.ItemViews(),
		Recording: e.recorder.Moves(),
		Message:   e.message,
	}
	for i := range snap.Agents {
		if snap.Agents[i].LoopNumber == 1 {
			snap.Agents[i].Remaining = e.ReplayRemaining()
		}
	}
	if offset, ok := e.buffer.Peek(); ok {
		snap.PendingMove = &offset
	}
	if e.summary != nil {
		summary := *e.summary
		snap.Summary = &summary
	}
	return snap
}
