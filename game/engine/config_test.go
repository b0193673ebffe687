package engine

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultLevelConfig(t *testing.T) {
	cfg := DefaultLevelConfig()
	if err := ValidateLevelConfig(cfg); err != nil {
		t.Fatalf("Expected default level to be valid, got %v", err)
	}

	if cfg.StartCell() != (GridLocation{X: 0, Y: 4}) {
		t.Errorf("Expected start (0,4), got %s", cfg.StartCell())
	}
	if cfg.GoalCell() != (GridLocation{X: 4, Y: 0}) {
		t.Errorf("Expected goal (4,0), got %s", cfg.GoalCell())
	}
	if cfg.AnimationDuration() != 200*time.Millisecond {
		t.Errorf("Expected 200ms animation, got %v", cfg.AnimationDuration())
	}
	if cfg.Policy() != ReplayStrict {
		t.Errorf("Expected strict replay by default, got %s", cfg.Policy())
	}
	if cfg.Grid() != DefaultGrid() {
		t.Errorf("Expected default grid, got %+v", cfg.Grid())
	}
}

func TestValidateLevelConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LevelConfig)
		errText string
	}{
		{"missing name", func(c *LevelConfig) { c.Name = "" }, "name is required"},
		{"grid too small", func(c *LevelConfig) { c.Width = 1 }, "width must be between"},
		{"grid too tall", func(c *LevelConfig) { c.Height = MaxGridSize + 1 }, "height must be between"},
		{"zero spacing", func(c *LevelConfig) { c.GridSpacing = 0 }, "grid_spacing must be positive"},
		{"start outside", func(c *LevelConfig) { c.Start = &GridLocation{X: 9, Y: 9} }, "start (9,9) is outside"},
		{"goal outside", func(c *LevelConfig) { c.Goal = &GridLocation{X: -1, Y: 0} }, "goal (-1,0) is outside"},
		{"start equals goal", func(c *LevelConfig) { c.Goal = &GridLocation{X: 0, Y: 4} }, "must be different cells"},
		{"negative candies", func(c *LevelConfig) { c.Candies = -1 }, "must not be negative"},
		{"too many items", func(c *LevelConfig) { c.Candies = MaxItems }, "at most"},
		{"starting fuel too high", func(c *LevelConfig) { c.StartingFuel = MaxStartingFuel + 1 }, "starting_fuel must be between"},
		{"unknown item kind", func(c *LevelConfig) {
			c.Items = []ItemPlacement{{Kind: "rock", X: 1, Y: 1}}
		}, "unknown kind"},
		{"item outside grid", func(c *LevelConfig) {
			c.Items = []ItemPlacement{{Kind: Candy, X: 7, Y: 1}}
		}, "is outside the grid"},
		{"item on start", func(c *LevelConfig) {
			c.Items = []ItemPlacement{{Kind: Candy, X: 0, Y: 4}}
		}, "start or goal cell"},
		{"item on goal", func(c *LevelConfig) {
			c.Items = []ItemPlacement{{Kind: Fuel, X: 4, Y: 0}}
		}, "start or goal cell"},
		{"negative animation", func(c *LevelConfig) { c.AnimationMS = -5 }, "animation_ms"},
		{"bad ease", func(c *LevelConfig) { c.Ease.P2 = [2]float64{1.5, 1} }, "ease"},
		{"bad replay policy", func(c *LevelConfig) { c.ReplayPolicy = "lenient" }, "replay_policy"},
		{"game over without score", func(c *LevelConfig) { c.Messages.GameOver = "Bye" }, "must contain %d"},
		{"unwinnable", func(c *LevelConfig) {
			c.Start = &GridLocation{X: 4, Y: 0}
			c.Goal = &GridLocation{X: 0, Y: 4}
			c.Fuel = 0
		}, "needs 8 fuel"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultLevelConfig()
			test.mutate(cfg)
			err := ValidateLevelConfig(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), test.errText) {
				t.Errorf("Expected error containing %q, got %q", test.errText, err.Error())
			}
		})
	}
}

func TestValidateLevelConfigWinnableWithFuel(t *testing.T) {
	cfg := DefaultLevelConfig()
	cfg.Start = &GridLocation{X: 4, Y: 0}
	cfg.Goal = &GridLocation{X: 0, Y: 4}
	cfg.Fuel = 0
	cfg.StartingFuel = 5
	cfg.Items = []ItemPlacement{{Kind: Fuel, X: 2, Y: 2}, {Kind: Fuel, X: 3, Y: 3}, {Kind: Fuel, X: 1, Y: 1}}

	if err := ValidateLevelConfig(cfg); err != nil {
		t.Errorf("Expected level with 8 fuel to be valid, got %v", err)
	}
}

func TestParseLevelConfig(t *testing.T) {
	yamlData := []byte(`
name: tiny
width: 3
height: 2
candies: 1
fuel: 0
replay_policy: skip
items:
  - kind: fuel
    x: 1
    y: 0
messages:
  game_over: "Score %d"
`)
	cfg, err := ParseLevelConfig(yamlData, "yaml")
	if err != nil {
		t.Fatalf("Failed to parse yaml: %v", err)
	}
	if cfg.Name != "tiny" || cfg.Width != 3 || cfg.Height != 2 {
		t.Errorf("Unexpected geometry %+v", cfg)
	}
	if cfg.GridSpacing != DefaultGridSpacing || cfg.AnimationMS != 200 {
		t.Errorf("Expected omitted fields to keep defaults, got spacing=%d anim=%d", cfg.GridSpacing, cfg.AnimationMS)
	}
	if cfg.StartCell() != (GridLocation{X: 0, Y: 1}) || cfg.GoalCell() != (GridLocation{X: 2, Y: 0}) {
		t.Errorf("Expected corners derived from size, got %s -> %s", cfg.StartCell(), cfg.GoalCell())
	}
	if cfg.Policy() != ReplaySkip || len(cfg.Items) != 1 || cfg.Items[0].Kind != Fuel {
		t.Errorf("Unexpected policy/items %s %+v", cfg.Policy(), cfg.Items)
	}
	if cfg.Messages.Welcome == "" {
		t.Error("Expected default welcome message to survive")
	}
	if err := ValidateLevelConfig(cfg); err != nil {
		t.Errorf("Expected parsed level to be valid, got %v", err)
	}

	jsonData := []byte(`{"name":"json-level","width":4,"height":4,"start":{"x":0,"y":0},"goal":{"x":3,"y":3},"starting_fuel":6}`)
	cfg, err = ParseLevelConfig(jsonData, "json")
	if err != nil {
		t.Fatalf("Failed to parse json: %v", err)
	}
	if cfg.StartCell() != (GridLocation{X: 0, Y: 0}) || cfg.GoalCell() != (GridLocation{X: 3, Y: 3}) {
		t.Errorf("Unexpected start/goal %s %s", cfg.StartCell(), cfg.GoalCell())
	}

	if _, err := ParseLevelConfig([]byte("name: x"), "toml"); err == nil {
		t.Error("Expected unsupported format error")
	}
	if _, err := ParseLevelConfig([]byte("{"), "json"); err == nil {
		t.Error("Expected parse error for malformed json")
	}
}

func TestLoadLevelConfig(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("name: good\ncandies: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadLevelConfig(good)
	if err != nil {
		t.Fatalf("Failed to load level: %v", err)
	}
	if cfg.Name != "good" || cfg.Candies != 3 {
		t.Errorf("Unexpected level %+v", cfg)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"name":"bad","width":1}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLevelConfig(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}

	if _, err := LoadLevelConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadLevelConfigConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "alt.yml"), []byte("name: alt\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := LoadLevelConfig("configs/alt.yml")
	if err != nil {
		t.Fatalf("Expected CONFIG_DIR to be honoured, got %v", err)
	}
	if cfg.Name != "alt" {
		t.Errorf("Expected alt level, got %s", cfg.Name)
	}
}

func TestLevelConfigClone(t *testing.T) {
	cfg := DefaultLevelConfig()
	cfg.Start = &GridLocation{X: 0, Y: 4}
	cfg.Items = []ItemPlacement{{Kind: Candy, X: 1, Y: 1}}

	clone := cfg.Clone()
	clone.Start.X = 3
	clone.Items[0].X = 2

	if cfg.Start.X != 0 || cfg.Items[0].X != 1 {
		t.Error("Expected clone to be independent of the original")
	}
}

func TestPopulate(t *testing.T) {
	cfg := DefaultLevelConfig()
	cfg.Items = []ItemPlacement{{Kind: Fuel, X: 2, Y: 2}}

	level := Populate(cfg, rand.New(rand.NewSource(1)))
	if len(level.Items) != 1+DefaultCandies+DefaultFuel {
		t.Fatalf("Expected %d spawn requests, got %d", 1+DefaultCandies+DefaultFuel, len(level.Items))
	}
	if level.Items[0].Kind != SpawnFuel || level.Items[0].Location != (GridLocation{X: 2, Y: 2}) {
		t.Errorf("Expected fixed placement first, got %+v", level.Items[0])
	}
	if level.TotalCandies() != DefaultCandies {
		t.Errorf("Expected %d candies, got %d", DefaultCandies, level.TotalCandies())
	}

	grid := cfg.Grid()
	for seed := int64(0); seed < 50; seed++ {
		level := Populate(cfg, rand.New(rand.NewSource(seed)))
		for _, req := range level.Items {
			if !grid.Contains(req.Location) {
				t.Fatalf("Seed %d: item outside grid at %s", seed, req.Location)
			}
			if req.Location == cfg.StartCell() || req.Location == cfg.GoalCell() {
				t.Fatalf("Seed %d: item spawned on start or goal at %s", seed, req.Location)
			}
		}
	}

	a := Populate(cfg, rand.New(rand.NewSource(9)))
	b := Populate(cfg, rand.New(rand.NewSource(9)))
	for i := range a.Items {
		if a.Items[i] != b.Items[i] {
			t.Fatal("Expected equal seeds to produce equal layouts")
		}
	}
}

func TestFuelNeeded(t *testing.T) {
	tests := []struct {
		from, to GridLocation
		expected int
	}{
		{GridLocation{X: 0, Y: 4}, GridLocation{X: 4, Y: 0}, 0},
		{GridLocation{X: 4, Y: 0}, GridLocation{X: 0, Y: 4}, 8},
		{GridLocation{X: 2, Y: 2}, GridLocation{X: 2, Y: 3}, 1},
		{GridLocation{X: 2, Y: 2}, GridLocation{X: 1, Y: 2}, 1},
	}

	for _, test := range tests {
		if got := FuelNeeded(test.from, test.to); got != test.expected {
			t.Errorf("FuelNeeded(%s,%s): expected %d, got %d", test.from, test.to, test.expected, got)
		}
	}
	if d := ManhattanDistance(GridLocation{X: 0, Y: 4}, GridLocation{X: 4, Y: 0}); d != 8 {
		t.Errorf("Expected distance 8, got %d", d)
	}
}
