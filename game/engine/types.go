package engine

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Default level geometry
	DefaultMaxX        = 5
	DefaultMaxY        = 5
	DefaultGridSpacing = 130

	DefaultCandies           = 10
	DefaultFuel              = 2
	DefaultAnimationDuration = 200 * time.Millisecond

	// Validation constants
	MinGridSize     = 2
	MaxGridSize     = 32
	MaxItems        = 256
	MaxStartingFuel = 99

	// Loop iterations per recording cycle: 0 is authoritative, 1 replays it.
	LoopsPerCycle = 2
)

// GridLocation is an integer cell coordinate. X grows to the right, Y grows upward.
type GridLocation struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns the location shifted by offset.
func (l GridLocation) Add(o Offset) GridLocation {
	return GridLocation{X: l.X + o.X, Y: l.Y + o.Y}
}

func (l GridLocation) String() string {
	return fmt.Sprintf("(%d,%d)", l.X, l.Y)
}

// Offset is a relative grid displacement.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// LengthSquared returns x*x + y*y.
func (o Offset) LengthSquared() int {
	return o.X*o.X + o.Y*o.Y
}

// IsZero reports whether the offset is (0,0).
func (o Offset) IsZero() bool {
	return o.X == 0 && o.Y == 0
}

// IsCardinal reports whether the offset is one of the four unit directions.
func (o Offset) IsCardinal() bool {
	return o.LengthSquared() == 1
}

// Direction returns the named direction of a cardinal offset.
func (o Offset) Direction() (Direction, bool) {
	for _, d := range Directions {
		if d.Offset() == o {
			return d, true
		}
	}
	return "", false
}

func (o Offset) String() string {
	if d, ok := o.Direction(); ok {
		return string(d)
	}
	return fmt.Sprintf("(%d,%d)", o.X, o.Y)
}

// Direction is a logical input direction.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Directions lists the four logical directions.
var Directions = []Direction{Up, Down, Left, Right}

// Offset returns the unit offset for the direction, or the zero offset when unknown.
func (d Direction) Offset() Offset {
	switch d {
	case Up:
		return Offset{X: 0, Y: 1}
	case Down:
		return Offset{X: 0, Y: -1}
	case Left:
		return Offset{X: -1, Y: 0}
	case Right:
		return Offset{X: 1, Y: 0}
	}
	return Offset{}
}

// ParseDirection accepts direction names, WASD keys and compass points.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "w", "north":
		return Up, nil
	case "down", "s", "south":
		return Down, nil
	case "left", "a", "west":
		return Left, nil
	case "right", "d", "east":
		return Right, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// ItemKind tags an item entity.
type ItemKind string

const (
	Candy ItemKind = "candy"
	Fuel  ItemKind = "fuel"
)

// Inventory holds an agent's counters. Both stay >= 0.
type Inventory struct {
	Candies int `json:"candies"`
	Fuel    int `json:"fuel"`
}

// Add increments the counter matching the item kind.
func (inv *Inventory) Add(kind ItemKind) {
	switch kind {
	case Candy:
		inv.Candies++
	case Fuel:
		inv.Fuel++
	}
}

// Soot tags an agent with the loop number it plays in the current iteration:
// 0 is the live agent, 1 is the echo replaying the previous iteration.
type Soot struct {
	LoopNumber int
}

// Item tags an item entity.
type Item struct {
	Kind ItemKind
}

// Phase is the outer application state of an engine.
type Phase string

const (
	Playing  Phase = "playing"
	GameOver Phase = "game_over"
)

// Outcome explains why an episode ended.
type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeGoalReached  Outcome = "goal_reached"
	OutcomeEchoStranded Outcome = "echo_stranded"
)

// InputFrame is the set of logical directions that were just pressed this tick.
type InputFrame struct {
	Pressed []Direction `json:"pressed,omitempty"`
}

// Reduce folds the pressed directions into a single offset. Opposite presses cancel
// and simultaneous presses on both axes produce a diagonal.
func (f InputFrame) Reduce() Offset {
	var offset Offset
	seen := make(map[Direction]bool, len(f.Pressed))
	for _, d := range f.Pressed {
		if seen[d] {
			continue
		}
		seen[d] = true
		o := d.Offset()
		offset.X += o.X
		offset.Y += o.Y
	}
	return offset
}

// MoveRecord is one accepted move in the engine history.
type MoveRecord struct {
	MoveNumber int          `json:"move_number"`
	Tick       uint64       `json:"tick"`
	Iteration  int          `json:"iteration"`
	LoopNumber int          `json:"loop_number"`
	Direction  Direction    `json:"direction"`
	From       GridLocation `json:"from"`
	To         GridLocation `json:"to"`
	FuelCost   int          `json:"fuel_cost"`
	FuelAfter  int          `json:"fuel_after"`
	Replayed   bool         `json:"replayed"`
}

// AgentView is the presentation view of an agent.
type AgentView struct {
	ID         uint32       `json:"id"`
	LoopNumber int          `json:"loop_number"`
	Location   GridLocation `json:"location"`
	Inventory  Inventory    `json:"inventory"`
	Position   [2]float64   `json:"position"`
	Animating  bool         `json:"animating"`
	AtGoal     bool         `json:"at_goal"`
	Remaining  int          `json:"replay_remaining,omitempty"`
}

// ItemView is the presentation view of an item.
type ItemView struct {
	ID       uint32       `json:"id"`
	Kind     ItemKind     `json:"kind"`
	Location GridLocation `json:"location"`
	Position [2]float64   `json:"position"`
}

// Summary is the end-of-episode score display.
type Summary struct {
	Outcome      Outcome `json:"outcome"`
	Score        int     `json:"score"`
	TotalCandies int     `json:"total_candies"`
	FuelLeft     int     `json:"fuel_left"`
	Moves        int     `json:"moves"`
	Ticks        uint64  `json:"ticks"`
}

// Snapshot is the read-only state handed to presentation and transports.
type Snapshot struct {
	LevelName   string       `json:"level_name"`
	Phase       Phase        `json:"phase"`
	Iteration   int          `json:"iteration"`
	Episode     int          `json:"episode"`
	Tick        uint64       `json:"tick"`
	Turn        int          `json:"turn"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Spacing     int          `json:"spacing"`
	Start       GridLocation `json:"start"`
	Goal        GridLocation `json:"goal"`
	Agents      []AgentView  `json:"agents"`
	Items       []ItemView   `json:"items"`
	Recording   []Offset     `json:"recording"`
	PendingMove *Offset      `json:"pending_move,omitempty"`
	Message     string       `json:"message"`
	Summary     *Summary     `json:"summary,omitempty"`
}
