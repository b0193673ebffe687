package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/elliotchance/orderedmap/v2"
)

func TestTurnSchedulerRotation(t *testing.T) {
	always := func(int) bool { return true }

	s := NewTurnScheduler(2)
	if s.CurrentMover() != 0 {
		t.Fatalf("Expected turn 0, got %d", s.CurrentMover())
	}
	if !s.Advance(0, always) || s.CurrentMover() != 1 {
		t.Fatalf("Expected turn 1 after loop 0 completes, got %d", s.CurrentMover())
	}
	if !s.Advance(1, always) || s.CurrentMover() != 0 {
		t.Fatalf("Expected turn 0 after loop 1 completes, got %d", s.CurrentMover())
	}
}

func TestTurnSchedulerSingleAgent(t *testing.T) {
	s := NewTurnScheduler(1)
	if !s.Advance(0, func(int) bool { return true }) || s.CurrentMover() != 0 {
		t.Errorf("Expected a lone agent to keep the turn, got %d", s.CurrentMover())
	}
}

func TestTurnSchedulerSkipsFinished(t *testing.T) {
	s := NewTurnScheduler(2)
	echoFinished := func(loop int) bool { return loop != 1 }

	s.Advance(0, echoFinished)
	if s.CurrentMover() != 0 {
		t.Errorf("Expected the finished echo to be skipped, got turn %d", s.CurrentMover())
	}
}

func TestTurnSchedulerNobodyCanMove(t *testing.T) {
	s := NewTurnScheduler(2)
	s.Advance(0, func(int) bool { return true })
	s.Advance(1, func(int) bool { return false })
	if s.CurrentMover() != 0 {
		t.Errorf("Expected turn reset to 0 when nobody can move, got %d", s.CurrentMover())
	}
}

func TestTurnSchedulerNeverSelectsBlocked(t *testing.T) {
	for blocked := 0; blocked < 3; blocked++ {
		s := NewTurnScheduler(3)
		canMove := func(loop int) bool { return loop != blocked }
		for i := 0; i < 6; i++ {
			s.Pass(canMove)
			if s.CurrentMover() == blocked {
				t.Fatalf("Scheduler selected blocked loop %d", blocked)
			}
		}
	}
}

func TestTurnSchedulerWrongMover(t *testing.T) {
	s := NewTurnScheduler(2)
	if s.Advance(1, func(int) bool { return true }) {
		t.Error("Expected completion from the wrong agent to be refused")
	}
	if s.CurrentMover() != 0 {
		t.Errorf("Expected turn to stay at 0, got %d", s.CurrentMover())
	}
}

func TestTimeLoopRecorder(t *testing.T) {
	var r TimeLoopRecorder
	moves := []Offset{Right.Offset(), Right.Offset(), Down.Offset()}
	for _, m := range moves {
		r.Append(m)
	}

	if r.Len() != 3 || r.Remaining() != 3 {
		t.Fatalf("Expected 3 recorded and remaining, got %d/%d", r.Len(), r.Remaining())
	}
	for i, want := range moves {
		got, ok := r.Next()
		if !ok || got != want {
			t.Fatalf("Move %d: expected %v, got %v (ok=%v)", i, want, got, ok)
		}
	}
	if _, ok := r.Next(); ok {
		t.Error("Expected drained recorder")
	}

	r.Rewind()
	if got, _ := r.Next(); got != Right.Offset() {
		t.Errorf("Expected rewind to restart from the first move, got %v", got)
	}

	copied := r.Moves()
	copied[0] = Up.Offset()
	if r.Moves()[0] != Right.Offset() {
		t.Error("Expected Moves to return a copy")
	}

	r.Clear()
	if r.Len() != 0 || r.Remaining() != 0 {
		t.Error("Expected empty recorder after clear")
	}
}

func TestLoopCounter(t *testing.T) {
	var c LoopCounter
	if !c.Authoritative() || c.ActiveAgents() != 1 {
		t.Fatal("Expected iteration 0 to be authoritative with one agent")
	}
	if c.Advance() {
		t.Error("Expected no wrap after iteration 0")
	}
	if c.Iteration() != 1 || c.ActiveAgents() != 2 || c.Authoritative() {
		t.Errorf("Expected iteration 1 with two agents, got %d/%d", c.Iteration(), c.ActiveAgents())
	}
	if !c.Advance() || c.Iteration() != 0 {
		t.Error("Expected wrap to iteration 0 after a full cycle")
	}
}

func TestGoalDetector(t *testing.T) {
	d := GoalDetector{Goal: GridLocation{X: 4, Y: 0}}
	goal := d.Goal

	tests := []struct {
		name     string
		agents   []AgentState
		expected bool
	}{
		{"no agents", nil, false},
		{"single agent settled on goal", []AgentState{{Location: goal, Settled: true}}, true},
		{"single agent animating onto goal", []AgentState{{Location: goal, Settled: false}}, false},
		{"single agent elsewhere", []AgentState{{Location: GridLocation{X: 3}, Settled: true}}, false},
		{"both on goal", []AgentState{{Location: goal, Settled: true}, {LoopNumber: 1, Location: goal, Settled: true}}, true},
		{"echo still out", []AgentState{{Location: goal, Settled: true}, {LoopNumber: 1, Location: GridLocation{X: 3}, Settled: true}}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := d.Reached(test.agents); got != test.expected {
				t.Errorf("Expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestInvariantViolation(t *testing.T) {
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		violate(ViolationWrongMover, 42, "expected_loop", 0, "completed_loop", 1)
	}()

	v, ok := AsViolation(recovered)
	if !ok {
		t.Fatalf("Expected an *InvariantViolation, got %T", recovered)
	}
	if v.Kind != ViolationWrongMover || v.Tick != 42 {
		t.Errorf("Unexpected violation %+v", v)
	}
	if msg := v.Error(); !strings.Contains(msg, "[expected_loop=0 completed_loop=1]") {
		t.Errorf("Expected ordered details in %q", msg)
	}
	if f := v.Fields(); f["kind"] != "wrong_mover" || f["completed_loop"] != 1 {
		t.Errorf("Unexpected fields %v", f)
	}

	wrapped := errorsJoin(v)
	if got, ok := AsViolation(wrapped); !ok || got != v {
		t.Error("Expected AsViolation to unwrap wrapped errors")
	}
	if _, ok := AsViolation("boom"); ok {
		t.Error("Expected plain panics not to be violations")
	}
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("session faulted"), err)
}

func TestViolationWithoutDetails(t *testing.T) {
	v := &InvariantViolation{Kind: ViolationMissingAgent, Details: orderedmap.NewOrderedMap[string, any]()}
	if !strings.HasSuffix(v.Error(), "[]") {
		t.Errorf("Expected empty detail list, got %q", v.Error())
	}
}

func TestTraceDigest(t *testing.T) {
	a := Trace{{X: 0, Y: 4}, {X: 1, Y: 4}, {X: 1, Y: 3}}
	b := Trace{{X: 0, Y: 4}, {X: 1, Y: 4}, {X: 1, Y: 3}}
	c := Trace{{X: 0, Y: 4}, {X: 0, Y: 3}, {X: 1, Y: 3}}

	if a.Digest() != b.Digest() || !a.Equal(b) {
		t.Error("Expected identical traces to match")
	}
	if a.Digest() == c.Digest() || a.Equal(c) {
		t.Error("Expected different orders to differ")
	}
	if last, ok := a.Final(); !ok || last != (GridLocation{X: 1, Y: 3}) {
		t.Errorf("Expected final (1,3), got %s", last)
	}
	if RecordingDigest([]Offset{Right.Offset(), Down.Offset()}) == RecordingDigest([]Offset{Down.Offset(), Right.Offset()}) {
		t.Error("Expected recording digest to depend on order")
	}
}
