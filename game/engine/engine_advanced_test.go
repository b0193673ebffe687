package engine

import (
	"testing"
)

func mustPanicWithViolation(t *testing.T, kind ViolationKind, fn func()) *InvariantViolation {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	if recovered == nil {
		t.Fatalf("Expected panic with %s", kind)
	}
	v, ok := AsViolation(recovered)
	if !ok {
		t.Fatalf("Expected *InvariantViolation, got %T: %v", recovered, recovered)
	}
	if v.Kind != kind {
		t.Fatalf("Expected violation %s, got %s", kind, v.Kind)
	}
	return v
}

func playToGameOver(t *testing.T, e *Engine, dirs ...Direction) {
	t.Helper()
	for _, dir := range dirs {
		press(t, e, dir)
	}
	if !e.IsOver() {
		t.Fatalf("Expected game over after %v", dirs)
	}
}

func itemSet(snap *Snapshot) map[ItemView]int {
	set := make(map[ItemView]int)
	for _, it := range snap.Items {
		set[ItemView{Kind: it.Kind, Location: it.Location}]++
	}
	return set
}

func TestReplayRoundTrip(t *testing.T) {
	e := newTestEngine(t, createCorridorConfig())

	playToGameOver(t, e, Right, Right, Down)
	recorded := e.Recording()
	want := []Offset{Right.Offset(), Right.Offset(), Down.Offset()}
	if len(recorded) != len(want) {
		t.Fatalf("Expected %d recorded moves, got %v", len(want), recorded)
	}
	for i := range want {
		if recorded[i] != want[i] {
			t.Fatalf("Recording mismatch at %d: %v", i, recorded)
		}
	}

	if err := e.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	snap := e.Snapshot()
	if snap.Iteration != 1 || len(snap.Agents) != 2 {
		t.Fatalf("Expected iteration 1 with two agents, got %d/%d", snap.Iteration, len(snap.Agents))
	}
	if snap.Agents[1].Location != snap.Start || snap.Agents[1].Remaining != 3 {
		t.Errorf("Expected echo at start with 3 moves queued, got %+v", snap.Agents[1])
	}
	if snap.Turn != 0 {
		t.Errorf("Expected live agent to move first, got turn %d", snap.Turn)
	}

	for i, dir := range []Direction{Right, Right, Down} {
		press(t, e, dir)
		if e.CurrentMover() != 1 {
			t.Fatalf("Step %d: expected echo's turn, got %d", i, e.CurrentMover())
		}
		report := echoStep(t, e)
		if report.Move == nil || !report.Move.Replay || report.Move.Offset != want[i] {
			t.Fatalf("Step %d: expected replayed %v, got %+v", i, want[i], report.Move)
		}
	}

	if !e.IsOver() || e.Summary().Outcome != OutcomeGoalReached {
		t.Fatalf("Expected both agents on the goal, got phase %s", e.Phase())
	}
	if !e.Trace(1).Equal(e.PreviousTrace(0)) {
		t.Errorf("Expected echo trace %v to equal recorded trace %v", e.Trace(1), e.PreviousTrace(0))
	}
	if e.Trace(1).Digest() != e.PreviousTrace(0).Digest() {
		t.Error("Expected equal trace digests")
	}
	if len(e.Recording()) != 3 {
		t.Errorf("Expected replay iteration not to record, got %v", e.Recording())
	}

	history := e.History()
	replayed := 0
	for _, h := range history {
		if h.Replayed {
			replayed++
			if h.Iteration != 1 || h.LoopNumber != 1 {
				t.Errorf("Unexpected replayed record %+v", h)
			}
		}
	}
	if replayed != 3 || len(history) != 9 {
		t.Errorf("Expected 9 moves with 3 replayed, got %d/%d", len(history), replayed)
	}

	if err := e.Restart(); err != nil {
		t.Fatalf("Second restart failed: %v", err)
	}
	if e.Iteration() != 0 || len(e.Recording()) != 0 || len(e.Snapshot().Agents) != 1 {
		t.Errorf("Expected a fresh cycle after two iterations, got iteration=%d recording=%v", e.Iteration(), e.Recording())
	}
}

func TestTurnResetsWhenAllAgentsFinish(t *testing.T) {
	e := newTestEngine(t, createCorridorConfig())
	playToGameOver(t, e, Down, Right, Right)
	if err := e.Restart(); err != nil {
		t.Fatal(err)
	}

	// The live agent reaches the goal first and is skipped from then on.
	press(t, e, Down)
	echoStep(t, e)
	press(t, e, Right)
	echoStep(t, e)
	press(t, e, Right)
	if e.CurrentMover() != 1 {
		t.Fatalf("Expected echo's turn, got %d", e.CurrentMover())
	}
	reports := settle(t, e)
	last := reports[len(reports)-1]
	if !last.Ended {
		t.Fatalf("Expected episode over once both rest on the goal, got %+v", last)
	}
	if e.CurrentMover() != 0 {
		t.Errorf("Expected turn reset to 0 when nobody can move, got %d", e.CurrentMover())
	}
}

func TestLevelLayoutReusedOnReplay(t *testing.T) {
	cfg := DefaultLevelConfig()
	cfg.Seed = 11
	e := newTestEngine(t, cfg)

	before := itemSet(e.Snapshot())
	playToGameOver(t, e, Right, Right, Right, Right, Down, Down, Down, Down)
	if err := e.Restart(); err != nil {
		t.Fatal(err)
	}
	after := itemSet(e.Snapshot())

	if len(before) != len(after) {
		t.Fatalf("Expected the same layout on iteration 1, got %v vs %v", before, after)
	}
	for k, n := range before {
		if after[k] != n {
			t.Errorf("Item %v: expected %d, got %d", k, n, after[k])
		}
	}
	for _, a := range e.Snapshot().Agents {
		if a.Inventory != (Inventory{}) {
			t.Errorf("Expected fresh inventories on restart, got %+v", a)
		}
	}
}

func TestReplayRejectedStrict(t *testing.T) {
	cfg := createCorridorConfig()
	cfg.Items = []ItemPlacement{{Kind: Fuel, X: 1, Y: 0}}
	e := newTestEngine(t, cfg)

	playToGameOver(t, e, Down, Right, Up, Right, Down)
	if err := e.Restart(); err != nil {
		t.Fatal(err)
	}

	press(t, e, Down)
	echoStep(t, e)
	press(t, e, Right) // live agent takes the fuel the echo relied on
	echoStep(t, e)
	press(t, e, Up)

	v := mustPanicWithViolation(t, ViolationReplayRejected, func() { echoStep(t, e) })
	if reason, _ := v.Details.Get("reason"); reason != string(RejectInsufficient) {
		t.Errorf("Expected insufficient fuel reason, got %v", reason)
	}
}

func TestReplayRejectedSkip(t *testing.T) {
	cfg := createCorridorConfig()
	cfg.ReplayPolicy = ReplaySkip
	cfg.Items = []ItemPlacement{{Kind: Fuel, X: 1, Y: 0}}
	e := newTestEngine(t, cfg)

	playToGameOver(t, e, Down, Right, Up, Right, Down)
	if err := e.Restart(); err != nil {
		t.Fatal(err)
	}

	press(t, e, Down)
	echoStep(t, e)
	press(t, e, Right)
	echoStep(t, e)
	press(t, e, Up)

	report := echoStep(t, e)
	if report.Rejection == nil || !report.Passed || report.Move != nil {
		t.Fatalf("Expected skipped replay, got %+v", report)
	}
	if e.CurrentMover() != 0 {
		t.Fatalf("Expected turn back to the live agent, got %d", e.CurrentMover())
	}

	press(t, e, Right)
	echoStep(t, e)
	press(t, e, Down)
	if !e.IsOver() || e.Summary().Outcome != OutcomeGoalReached {
		t.Errorf("Expected goal reached, got phase %s", e.Phase())
	}
}

func TestEchoStranded(t *testing.T) {
	cfg := createCorridorConfig()
	cfg.ReplayPolicy = ReplaySkip
	cfg.Goal = &GridLocation{X: 1, Y: 0}
	cfg.Items = []ItemPlacement{{Kind: Fuel, X: 2, Y: 1}}
	e := newTestEngine(t, cfg)

	playToGameOver(t, e, Right, Right, Left, Down)
	if err := e.Restart(); err != nil {
		t.Fatal(err)
	}

	press(t, e, Right)
	echoStep(t, e)
	press(t, e, Right) // fuel goes to the live agent
	echoStep(t, e)
	press(t, e, Left)
	echoStep(t, e) // echo cannot pay for left and passes
	press(t, e, Down)
	if e.IsOver() {
		t.Fatal("Expected the echo to still have a move queued")
	}

	reports := settle(t, e)
	last := reports[len(reports)-1]
	if !last.Ended || last.Outcome != OutcomeEchoStranded {
		t.Fatalf("Expected echo stranded, got %+v", last)
	}
	if echo := agent(t, e, 1); echo.Location != (GridLocation{X: 2, Y: 0}) {
		t.Errorf("Expected echo at (2,0), got %s", echo.Location)
	}
}

func TestResetStartsNewCycle(t *testing.T) {
	e := newTestEngine(t, createCorridorConfig())
	playToGameOver(t, e, Right, Right, Down)
	if err := e.Restart(); err != nil {
		t.Fatal(err)
	}

	e.Reset()
	if e.Iteration() != 0 || len(e.Recording()) != 0 || e.Phase() != Playing {
		t.Errorf("Expected reset to iteration 0, got iteration=%d phase=%s", e.Iteration(), e.Phase())
	}
	if e.Episode() != 3 {
		t.Errorf("Expected episode counter 3, got %d", e.Episode())
	}
}

func TestSummaryCountsAllCandies(t *testing.T) {
	cfg := createCorridorConfig()
	cfg.Items = []ItemPlacement{{Kind: Candy, X: 1, Y: 1}, {Kind: Candy, X: 2, Y: 1}}
	e := newTestEngine(t, cfg)

	playToGameOver(t, e, Right, Right, Down)
	if s := e.Summary(); s.Score != 2 || s.TotalCandies != 2 {
		t.Fatalf("Expected score 2, got %+v", s)
	}
	if err := e.Restart(); err != nil {
		t.Fatal(err)
	}

	// Live agent goes down first, so the echo collects both candies.
	press(t, e, Down)
	echoStep(t, e)
	press(t, e, Right)
	echoStep(t, e)
	press(t, e, Right)
	settle(t, e)

	s := e.Summary()
	if s == nil {
		t.Fatal("Expected episode over")
	}
	if s.Score != 0 || s.TotalCandies != 2 {
		t.Errorf("Expected live score 0 and total 2, got %+v", s)
	}
}
