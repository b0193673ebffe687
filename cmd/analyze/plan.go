package main

import (
	"github.com/wricardo/mcp-training/sootloop/game/engine"
)

// Plan is a move script for the authoritative iteration that collects items
// nearest-first while the fuel budget still covers the way to the goal.
type Plan struct {
	Moves    []engine.Direction
	Targets  []engine.GridLocation
	Candies  int
	FuelLeft int
}

type planner struct {
	goal  engine.GridLocation
	pos   engine.GridLocation
	fuel  int
	items map[engine.GridLocation][]engine.ItemKind
	plan  Plan
}

// planRoute plans from the live agent of snap. Items on every cell the route
// crosses are counted as picked up, since each move ends at rest on its cell.
func planRoute(snap *engine.Snapshot) Plan {
	live, ok := engine.LiveAgent(snap)
	if !ok {
		return Plan{}
	}

	p := &planner{
		goal:  snap.Goal,
		pos:   live.Location,
		fuel:  live.Inventory.Fuel,
		items: make(map[engine.GridLocation][]engine.ItemKind),
	}
	p.plan.Candies = live.Inventory.Candies
	for _, it := range snap.Items {
		p.items[it.Location] = append(p.items[it.Location], it.Kind)
	}

	for {
		target, path, ok := p.nextTarget()
		if !ok {
			break
		}
		p.plan.Targets = append(p.plan.Targets, target)
		p.walk(path)
	}

	if p.pos != p.goal {
		if path, ok := p.route(p.pos, p.goal); ok {
			p.walk(path)
		}
	}
	p.plan.FuelLeft = p.fuel
	return p.plan
}

// nextTarget picks the closest affordable item cell. Candy wins a distance tie.
func (p *planner) nextTarget() (engine.GridLocation, []engine.GridLocation, bool) {
	var (
		best     engine.GridLocation
		bestPath []engine.GridLocation
		bestDist = -1
		bestCand bool
	)

	for loc, kinds := range p.items {
		if len(kinds) == 0 || loc == p.pos {
			continue
		}
		gain, candy := 0, false
		for _, k := range kinds {
			switch k {
			case engine.Fuel:
				gain++
			case engine.Candy:
				candy = true
			}
		}

		there := engine.FuelNeeded(p.pos, loc)
		if there > p.fuel || there+engine.FuelNeeded(loc, p.goal) > p.fuel+gain {
			continue
		}
		path, ok := p.route(p.pos, loc)
		if !ok {
			continue
		}

		dist := len(path)
		better := bestDist == -1 || dist < bestDist ||
			(dist == bestDist && candy && !bestCand) ||
			(dist == bestDist && candy == bestCand && less(loc, best))
		if better {
			best, bestPath, bestDist, bestCand = loc, path, dist, candy
		}
	}

	return best, bestPath, bestDist != -1
}

// route returns the cells from one location to another, x first or y first,
// whichever does not cross the goal before arriving.
func (p *planner) route(from, to engine.GridLocation) ([]engine.GridLocation, bool) {
	for _, xFirst := range []bool{true, false} {
		path := manhattanPath(from, to, xFirst)
		crosses := false
		for _, loc := range path[:len(path)-1] {
			if loc == p.goal {
				crosses = true
				break
			}
		}
		if !crosses {
			return path, true
		}
	}
	return nil, false
}

func (p *planner) walk(path []engine.GridLocation) {
	for _, next := range path {
		offset := engine.Offset{X: next.X - p.pos.X, Y: next.Y - p.pos.Y}
		dir, _ := offset.Direction()
		p.fuel -= engine.FuelCost(offset)
		p.plan.Moves = append(p.plan.Moves, dir)
		p.pos = next

		for _, k := range p.items[next] {
			switch k {
			case engine.Candy:
				p.plan.Candies++
			case engine.Fuel:
				p.fuel++
			}
		}
		delete(p.items, next)
	}
}

func manhattanPath(from, to engine.GridLocation, xFirst bool) []engine.GridLocation {
	var path []engine.GridLocation
	cur := from
	stepX := func() {
		for cur.X != to.X {
			cur.X += sign(to.X - cur.X)
			path = append(path, cur)
		}
	}
	stepY := func() {
		for cur.Y != to.Y {
			cur.Y += sign(to.Y - cur.Y)
			path = append(path, cur)
		}
	}
	if xFirst {
		stepX()
		stepY()
	} else {
		stepY()
		stepX()
	}
	return path
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// less orders locations top row first, then left to right.
func less(a, b engine.GridLocation) bool {
	if a.Y != b.Y {
		return a.Y > b.Y
	}
	return a.X < b.X
}
