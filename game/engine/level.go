package engine

import (
	"fmt"
	"math/rand"
)

// SpawnKind tags a spawn request variant.
type SpawnKind int

const (
	SpawnCandy SpawnKind = iota
	SpawnFuel
	SpawnAgent
)

func (k SpawnKind) String() string {
	switch k {
	case SpawnCandy:
		return "candy"
	case SpawnFuel:
		return "fuel"
	case SpawnAgent:
		return "agent"
	}
	return fmt.Sprintf("SpawnKind(%d)", int(k))
}

// SpawnRequest describes one entity to create. LoopNumber and StartingFuel only
// apply to SpawnAgent.
type SpawnRequest struct {
	Kind         SpawnKind
	Location     GridLocation
	LoopNumber   int
	StartingFuel int
}

// Level is the item layout of a level. It is generated on iteration 0 and
// respawned unchanged on iteration 1.
type Level struct {
	Items []SpawnRequest
}

// Populate builds the item layout: fixed placements first, then candies and fuel
// at uniform-random cells. Random items never land on the start or goal cell.
func Populate(cfg *LevelConfig, rng *rand.Rand) Level {
	var level Level
	for _, it := range cfg.Items {
		level.Items = append(level.Items, SpawnRequest{Kind: itemSpawnKind(it.Kind), Location: it.Location()})
	}

	free := freeCells(cfg)
	if len(free) == 0 {
		return level
	}
	place := func(kind SpawnKind, n int) {
		for i := 0; i < n; i++ {
			loc := free[rng.Intn(len(free))]
			level.Items = append(level.Items, SpawnRequest{Kind: kind, Location: loc})
		}
	}
	place(SpawnCandy, cfg.Candies)
	place(SpawnFuel, cfg.Fuel)
	return level
}

// TotalCandies returns how many candies the level holds.
func (l Level) TotalCandies() int {
	n := 0
	for _, r := range l.Items {
		if r.Kind == SpawnCandy {
			n++
		}
	}
	return n
}

func freeCells(cfg *LevelConfig) []GridLocation {
	start, goal := cfg.StartCell(), cfg.GoalCell()
	var cells []GridLocation
	for _, c := range cfg.Grid().Cells() {
		if c != start && c != goal {
			cells = append(cells, c)
		}
	}
	return cells
}

func itemSpawnKind(kind ItemKind) SpawnKind {
	if kind == Fuel {
		return SpawnFuel
	}
	return SpawnCandy
}

func spawnItemKind(kind SpawnKind) ItemKind {
	if kind == SpawnFuel {
		return Fuel
	}
	return Candy
}
