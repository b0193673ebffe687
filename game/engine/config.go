package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// ReplayPolicy decides what happens when a replayed offset is rejected.
type ReplayPolicy string

const (
	// ReplayStrict treats a rejected replay as a fatal invariant violation.
	ReplayStrict ReplayPolicy = "strict"
	// ReplaySkip drops the rejected offset and the echo passes its turn.
	ReplaySkip ReplayPolicy = "skip"
)

// ItemPlacement is a fixed item position in a level file.
type ItemPlacement struct {
	Kind ItemKind `json:"kind" yaml:"kind"`
	X    int      `json:"x" yaml:"x"`
	Y    int      `json:"y" yaml:"y"`
}

// Location returns the placement cell.
func (p ItemPlacement) Location() GridLocation {
	return GridLocation{X: p.X, Y: p.Y}
}

// EaseConfig holds the two free control points of the move ease curve.
type EaseConfig struct {
	P1 [2]float64 `json:"p1" yaml:"p1"`
	P2 [2]float64 `json:"p2" yaml:"p2"`
}

// LevelConfig represents a level definition loaded from YAML or JSON
type LevelConfig struct {
	Name         string          `json:"name" yaml:"name"`
	Description  string          `json:"description" yaml:"description"`
	Width        int             `json:"width" yaml:"width"`
	Height       int             `json:"height" yaml:"height"`
	GridSpacing  int             `json:"grid_spacing" yaml:"grid_spacing"`
	Start        *GridLocation   `json:"start,omitempty" yaml:"start,omitempty"`
	Goal         *GridLocation   `json:"goal,omitempty" yaml:"goal,omitempty"`
	Candies      int             `json:"candies" yaml:"candies"`
	Fuel         int             `json:"fuel" yaml:"fuel"`
	StartingFuel int             `json:"starting_fuel" yaml:"starting_fuel"`
	Items        []ItemPlacement `json:"items,omitempty" yaml:"items,omitempty"`
	AnimationMS  int             `json:"animation_ms" yaml:"animation_ms"`
	Ease         EaseConfig      `json:"ease" yaml:"ease"`
	ReplayPolicy ReplayPolicy    `json:"replay_policy" yaml:"replay_policy"`
	Seed         int64           `json:"seed,omitempty" yaml:"seed,omitempty"`
	Messages     struct {
		Welcome  string `json:"welcome" yaml:"welcome"`
		Echo     string `json:"echo" yaml:"echo"`
		GameOver string `json:"game_over" yaml:"game_over"`
	} `json:"messages" yaml:"messages"`
}

// DefaultLevelConfig returns the classic 5x5 level.
func DefaultLevelConfig() *LevelConfig {
	cfg := &LevelConfig{
		Name:         "classic",
		Description:  "5x5 grid, 10 candies, 2 fuel. Reach the bottom-right corner, then race your past self.",
		Width:        DefaultMaxX,
		Height:       DefaultMaxY,
		GridSpacing:  DefaultGridSpacing,
		Candies:      DefaultCandies,
		Fuel:         DefaultFuel,
		AnimationMS:  int(DefaultAnimationDuration / time.Millisecond),
		Ease:         EaseConfig{P1: [2]float64{0, 0}, P2: [2]float64{0.4, 1.5}},
		ReplayPolicy: ReplayStrict,
	}
	cfg.Messages.Welcome = "Guide the soot sprite to the goal. Moving up or left costs fuel."
	cfg.Messages.Echo = "Your past self is back! Take turns with it."
	cfg.Messages.GameOver = "Game over! Candies collected: %d"
	return cfg
}

// StartCell returns the spawn cell, by default the top-left corner.
func (c *LevelConfig) StartCell() GridLocation {
	if c.Start != nil {
		return *c.Start
	}
	return GridLocation{X: 0, Y: c.Height - 1}
}

// GoalCell returns the goal cell, by default the bottom-right corner.
func (c *LevelConfig) GoalCell() GridLocation {
	if c.Goal != nil {
		return *c.Goal
	}
	return GridLocation{X: c.Width - 1, Y: 0}
}

// Grid returns the grid model for the level.
func (c *LevelConfig) Grid() Grid {
	return Grid{Width: c.Width, Height: c.Height, Spacing: c.GridSpacing}
}

// AnimationDuration returns the move animation length.
func (c *LevelConfig) AnimationDuration() time.Duration {
	return time.Duration(c.AnimationMS) * time.Millisecond
}

// Curve returns the ease curve for move animations.
func (c *LevelConfig) Curve() CubicBezierEase {
	return CubicBezierEase{
		P1: mgl64.Vec2{c.Ease.P1[0], c.Ease.P1[1]},
		P2: mgl64.Vec2{c.Ease.P2[0], c.Ease.P2[1]},
	}
}

// Policy returns the replay policy, strict when unset.
func (c *LevelConfig) Policy() ReplayPolicy {
	if c.ReplayPolicy == "" {
		return ReplayStrict
	}
	return c.ReplayPolicy
}

// FixedFuel returns the amount of fuel the level guarantees: starting fuel plus
// every fuel item, random or fixed.
func (c *LevelConfig) FixedFuel() int {
	total := c.StartingFuel + c.Fuel
	for _, it := range c.Items {
		if it.Kind == Fuel {
			total++
		}
	}
	return total
}

// Clone returns a deep copy.
func (c *LevelConfig) Clone() *LevelConfig {
	out := *c
	if c.Start != nil {
		start := *c.Start
		out.Start = &start
	}
	if c.Goal != nil {
		goal := *c.Goal
		out.Goal = &goal
	}
	out.Items = append([]ItemPlacement(nil), c.Items...)
	return &out
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: config validation: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// ValidateLevelConfig validates a level configuration for correctness and playability
func ValidateLevelConfig(config *LevelConfig) error {
	if config == nil {
		return invalidf("config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return invalidf("name is required")
	}

	// Validate grid geometry
	if config.Width < MinGridSize || config.Width > MaxGridSize {
		return invalidf("width must be between %d and %d, got %d", MinGridSize, MaxGridSize, config.Width)
	}
	if config.Height < MinGridSize || config.Height > MaxGridSize {
		return invalidf("height must be between %d and %d, got %d", MinGridSize, MaxGridSize, config.Height)
	}
	if config.GridSpacing <= 0 {
		return invalidf("grid_spacing must be positive, got %d", config.GridSpacing)
	}

	grid := config.Grid()
	start, goal := config.StartCell(), config.GoalCell()
	if !grid.Contains(start) {
		return invalidf("start %s is outside the %dx%d grid", start, config.Width, config.Height)
	}
	if !grid.Contains(goal) {
		return invalidf("goal %s is outside the %dx%d grid", goal, config.Width, config.Height)
	}
	if start == goal {
		return invalidf("start and goal must be different cells, both are %s", start)
	}

	// Validate population
	if config.Candies < 0 || config.Fuel < 0 {
		return invalidf("candies and fuel must not be negative, got %d and %d", config.Candies, config.Fuel)
	}
	if total := config.Candies + config.Fuel + len(config.Items); total > MaxItems {
		return invalidf("level holds %d items, at most %d allowed", total, MaxItems)
	}
	if config.StartingFuel < 0 || config.StartingFuel > MaxStartingFuel {
		return invalidf("starting_fuel must be between 0 and %d, got %d", MaxStartingFuel, config.StartingFuel)
	}
	for i, it := range config.Items {
		if it.Kind != Candy && it.Kind != Fuel {
			return invalidf("items[%d] has unknown kind %q", i, it.Kind)
		}
		loc := it.Location()
		if !grid.Contains(loc) {
			return invalidf("items[%d] at %s is outside the grid", i, loc)
		}
		if loc == start || loc == goal {
			return invalidf("items[%d] at %s may not be placed on the start or goal cell", i, loc)
		}
	}

	// Validate animation
	if config.AnimationMS < 0 || config.AnimationMS > 10000 {
		return invalidf("animation_ms must be between 0 and 10000, got %d", config.AnimationMS)
	}
	if err := config.Curve().Validate(); err != nil {
		return invalidf("ease: %v", err)
	}

	switch config.ReplayPolicy {
	case "", ReplayStrict, ReplaySkip:
	default:
		return invalidf("replay_policy must be %q or %q, got %q", ReplayStrict, ReplaySkip, config.ReplayPolicy)
	}

	// Validate format strings
	if config.Messages.GameOver != "" && !strings.Contains(config.Messages.GameOver, "%d") {
		return invalidf("messages.game_over must contain %%d for the score")
	}

	// Validate winnability - up and left moves on the way to the goal need fuel
	if need := FuelNeeded(start, goal); need > config.FixedFuel() {
		return invalidf("goal %s needs %d fuel from start %s but the level only provides %d",
			goal, need, start, config.FixedFuel())
	}

	return nil
}

// ParseLevelConfig decodes a level from YAML or JSON over the default level, so
// omitted fields keep their default values. format is "yaml" or "json".
func ParseLevelConfig(data []byte, format string) (*LevelConfig, error) {
	config := DefaultLevelConfig()
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse json level: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse yaml level: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported level format %q", format)
	}
	return config, nil
}

// FormatForPath returns the level format implied by a file extension.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}

// LoadLevelConfig loads and validates a level file
func LoadLevelConfig(filename string) (*LevelConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	config, err := ParseLevelConfig(data, FormatForPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("level '%s': %w", filename, err)
	}

	// Validate the loaded configuration
	if err := ValidateLevelConfig(config); err != nil {
		return nil, fmt.Errorf("level '%s': %w", filename, err)
	}

	return config, nil
}
