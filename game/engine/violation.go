package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// ViolationKind classifies a fatal invariant violation.
type ViolationKind string

const (
	ViolationMultipleAttempts    ViolationKind = "multiple_move_attempts"
	ViolationMultipleMoves       ViolationKind = "multiple_moves"
	ViolationMultipleCompletions ViolationKind = "multiple_movement_completions"
	ViolationWrongMover          ViolationKind = "wrong_mover"
	ViolationMissingAgent        ViolationKind = "missing_agent"
	ViolationReplayRejected      ViolationKind = "replay_rejected"
	ViolationMoverNotFound       ViolationKind = "mover_not_found"
)

// InvariantViolation is a scheduling or consistency defect. The engine panics
// with it; it is never returned as an ordinary error.
type InvariantViolation struct {
	Kind    ViolationKind
	Tick    uint64
	Details *orderedmap.OrderedMap[string, any]
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation %s at tick %d %s", v.Kind, v.Tick, detailsString(v.Details))
}

// Fields returns the details as a plain map, for reporting.
func (v *InvariantViolation) Fields() map[string]any {
	fields := make(map[string]any, v.Details.Len()+2)
	fields["kind"] = string(v.Kind)
	fields["tick"] = v.Tick
	for _, key := range v.Details.Keys() {
		fields[key], _ = v.Details.Get(key)
	}
	return fields
}

// AsViolation extracts an *InvariantViolation from a recovered panic value.
func AsViolation(recovered any) (*InvariantViolation, bool) {
	switch v := recovered.(type) {
	case *InvariantViolation:
		return v, true
	case error:
		var iv *InvariantViolation
		if errors.As(v, &iv) {
			return iv, true
		}
	}
	return nil, false
}

// violate panics with a violation. kv is a flat list of key/value pairs kept in order.
func violate(kind ViolationKind, tick uint64, kv ...any) {
	details := orderedmap.NewOrderedMap[string, any]()
	for i := 0; i+1 < len(kv); i += 2 {
		details.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	panic(&InvariantViolation{Kind: kind, Tick: tick, Details: details})
}

func detailsString(data *orderedmap.OrderedMap[string, any]) string {
	if data == nil {
		return "[]"
	}
	parts := make([]string, 0, data.Len())
	for _, key := range data.Keys() {
		v, _ := data.Get(key)
		parts = append(parts, fmt.Sprintf("%s=%v", key, v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
