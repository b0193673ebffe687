package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/wricardo/mcp-training/sootloop/game/config"
	"github.com/wricardo/mcp-training/sootloop/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// LevelAnalysis holds fuel heuristics for a level.
type LevelAnalysis struct {
	Name        string
	Width       int
	Height      int
	Start       engine.GridLocation
	Goal        engine.GridLocation
	Policy      engine.ReplayPolicy
	FuelBudget  int
	FreeCells   int
	TotalCells  int
	FixedItems  []ItemCost
	RandomItems int
}

// ItemCost is the fuel a detour through a fixed item costs from start to goal.
type ItemCost struct {
	Placement  engine.ItemPlacement
	Cost       int
	Affordable bool
}

// validateLevelFile loads a level through the config manager, so JSON files
// are checked against the level schema before the level rules run.
func validateLevelFile(path string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(path),
		Valid:  true,
		Errors: []string{},
	}

	mgr, err := config.NewManager(filepath.Dir(path))
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	cfg, err := mgr.LoadConfig(filepath.Base(path))
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	candies := cfg.Candies
	for _, it := range cfg.Items {
		if it.Kind == engine.Candy {
			candies++
		}
	}
	if candies == 0 {
		result.Errors = append(result.Errors, "⚠ no candy on the board, every score will be 0")
	}

	a := analyzeLevel(cfg)
	for _, it := range a.FixedItems {
		if !it.Affordable {
			result.Errors = append(result.Errors, fmt.Sprintf("⚠ %s at (%d,%d) needs %d fuel, only %d on the board",
				it.Placement.Kind, it.Placement.X, it.Placement.Y, it.Cost, a.FuelBudget))
		}
	}

	result.Errors = append(result.Errors,
		fmt.Sprintf("✓ Name: %s", cfg.Name),
		fmt.Sprintf("✓ Grid: %dx%d, start %s, goal %s", cfg.Width, cfg.Height, a.Start, a.Goal),
		fmt.Sprintf("✓ Items: %d fixed, %d random", len(cfg.Items), a.RandomItems),
		fmt.Sprintf("✓ Fuel: %d starting, %d on the board", cfg.StartingFuel, a.FuelBudget),
		fmt.Sprintf("✓ Replay: %s", a.Policy),
	)
	return result
}

// analyzeLevel measures how much of the board a free walk covers. Moving down
// or right costs nothing, so the free cells lie in the rectangle between start
// and goal when the goal is down and right of the start.
func analyzeLevel(cfg *engine.LevelConfig) LevelAnalysis {
	a := LevelAnalysis{
		Name:        cfg.Name,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Start:       cfg.StartCell(),
		Goal:        cfg.GoalCell(),
		Policy:      cfg.Policy(),
		FuelBudget:  cfg.FixedFuel(),
		TotalCells:  cfg.Width * cfg.Height,
		RandomItems: cfg.Candies + cfg.Fuel,
	}

	for _, loc := range cfg.Grid().Cells() {
		if detourCost(a.Start, loc, a.Goal) == 0 {
			a.FreeCells++
		}
	}

	for _, it := range cfg.Items {
		cost := detourCost(a.Start, it.Location(), a.Goal)
		a.FixedItems = append(a.FixedItems, ItemCost{
			Placement:  it,
			Cost:       cost,
			Affordable: cost <= a.FuelBudget,
		})
	}
	return a
}

func detourCost(start, via, goal engine.GridLocation) int {
	return engine.FuelNeeded(start, via) + engine.FuelNeeded(via, goal)
}

func writeAnalysis(out io.Writer, a LevelAnalysis) {
	fmt.Fprintf(out, "Name: %s\n", a.Name)
	fmt.Fprintf(out, "Grid: %d x %d\n", a.Width, a.Height)
	fmt.Fprintf(out, "Start: %s  Goal: %s\n", a.Start, a.Goal)
	fmt.Fprintf(out, "Replay policy: %s\n", a.Policy)
	fmt.Fprintf(out, "Fuel on the board: %d\n", a.FuelBudget)
	fmt.Fprintf(out, "Start to goal needs: %d fuel\n", engine.FuelNeeded(a.Start, a.Goal))
	fmt.Fprintf(out, "Free cells: %d of %d\n", a.FreeCells, a.TotalCells)
	fmt.Fprintf(out, "Random items: %d\n", a.RandomItems)

	var costly []ItemCost
	for _, it := range a.FixedItems {
		if !it.Affordable {
			costly = append(costly, it)
		}
	}
	if len(costly) > 0 {
		fmt.Fprintf(out, "⚠️  WARNING: %d fixed items cost more fuel than the board holds!\n", len(costly))
		for i, it := range costly {
			if i < 5 {
				fmt.Fprintf(out, "   %s at (%d, %d) needs %d\n", it.Placement.Kind, it.Placement.X, it.Placement.Y, it.Cost)
			}
		}
		if len(costly) > 5 {
			fmt.Fprintf(out, "   ... and %d more\n", len(costly)-5)
		}
	} else {
		fmt.Fprintf(out, "✅ All %d fixed items are affordable\n", len(a.FixedItems))
	}
}
