package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/mlange-42/ark/ecs"
)

// World is the entity store for one engine: agents and items on the ark ECS.
type World struct {
	ecs  *ecs.World
	grid Grid

	animDuration time.Duration
	curve        Easing

	agentMapper *ecs.Map4[Soot, GridLocation, Inventory, TranslationAnimator]
	agentFilter *ecs.Filter4[Soot, GridLocation, Inventory, TranslationAnimator]
	itemMapper  *ecs.Map2[Item, GridLocation]
	itemFilter  *ecs.Filter2[Item, GridLocation]

	sootMap *ecs.Map[Soot]
	locMap  *ecs.Map[GridLocation]
	invMap  *ecs.Map[Inventory]
	animMap *ecs.Map[TranslationAnimator]
	itemMap *ecs.Map[Item]
}

// NewWorld creates an empty entity store.
func NewWorld(grid Grid, animDuration time.Duration, curve Easing) *World {
	w := ecs.NewWorld()
	return &World{
		ecs:          w,
		grid:         grid,
		animDuration: animDuration,
		curve:        curve,
		agentMapper:  ecs.NewMap4[Soot, GridLocation, Inventory, TranslationAnimator](w),
		agentFilter:  ecs.NewFilter4[Soot, GridLocation, Inventory, TranslationAnimator](w),
		itemMapper:   ecs.NewMap2[Item, GridLocation](w),
		itemFilter:   ecs.NewFilter2[Item, GridLocation](w),
		sootMap:      ecs.NewMap[Soot](w),
		locMap:       ecs.NewMap[GridLocation](w),
		invMap:       ecs.NewMap[Inventory](w),
		animMap:      ecs.NewMap[TranslationAnimator](w),
		itemMap:      ecs.NewMap[Item](w),
	}
}

// Spawn dispatches a spawn request. New entities snap to their cell center.
func (w *World) Spawn(req SpawnRequest) ecs.Entity {
	switch req.Kind {
	case SpawnAgent:
		soot := Soot{LoopNumber: req.LoopNumber}
		loc := req.Location
		inv := Inventory{Fuel: req.StartingFuel}
		anim := NewSettledAnimator(w.grid.CenterOf(loc), w.animDuration, w.curve)
		return w.agentMapper.NewEntity(&soot, &loc, &inv, &anim)
	case SpawnCandy, SpawnFuel:
		item := Item{Kind: spawnItemKind(req.Kind)}
		loc := req.Location
		return w.itemMapper.NewEntity(&item, &loc)
	}
	panic(fmt.Sprintf("unknown spawn kind %v", req.Kind))
}

// Clear despawns every entity.
func (w *World) Clear() {
	var toRemove []ecs.Entity

	query := w.agentFilter.Query()
	for query.Next() {
		toRemove = append(toRemove, query.Entity())
	}
	items := w.itemFilter.Query()
	for items.Next() {
		toRemove = append(toRemove, items.Entity())
	}

	for _, e := range toRemove {
		w.ecs.RemoveEntity(e)
	}
}

// Alive reports whether the entity still exists.
func (w *World) Alive(e ecs.Entity) bool {
	return w.ecs.Alive(e)
}

// Agents returns all agent entities ordered by loop number.
func (w *World) Agents() []ecs.Entity {
	type agent struct {
		entity ecs.Entity
		loop   int
	}
	var agents []agent
	query := w.agentFilter.Query()
	for query.Next() {
		soot, _, _, _ := query.Get()
		agents = append(agents, agent{entity: query.Entity(), loop: soot.LoopNumber})
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].loop < agents[j].loop })

	out := make([]ecs.Entity, len(agents))
	for i, a := range agents {
		out[i] = a.entity
	}
	return out
}

// AgentByLoop returns the agent tagged with the loop number.
func (w *World) AgentByLoop(loop int) (ecs.Entity, bool) {
	var found ecs.Entity
	ok := false
	query := w.agentFilter.Query()
	for query.Next() {
		soot, _, _, _ := query.Get()
		if soot.LoopNumber == loop && !ok {
			found = query.Entity()
			ok = true
		}
	}
	return found, ok
}

// IsAgent reports whether e is a live agent entity.
func (w *World) IsAgent(e ecs.Entity) bool {
	return w.ecs.Alive(e) && w.sootMap.Has(e) && w.animMap.Has(e)
}

// Soot returns the agent tag.
func (w *World) Soot(e ecs.Entity) *Soot { return w.sootMap.Get(e) }

// Location returns the entity's cell.
func (w *World) Location(e ecs.Entity) *GridLocation { return w.locMap.Get(e) }

// Inventory returns the agent's inventory.
func (w *World) Inventory(e ecs.Entity) *Inventory { return w.invMap.Get(e) }

// Animator returns the agent's translation animator.
func (w *World) Animator(e ecs.Entity) *TranslationAnimator { return w.animMap.Get(e) }

// AgentStates returns the goal detector view of every agent.
func (w *World) AgentStates() []AgentState {
	var states []AgentState
	query := w.agentFilter.Query()
	for query.Next() {
		soot, loc, _, anim := query.Get()
		states = append(states, AgentState{LoopNumber: soot.LoopNumber, Location: *loc, Settled: anim.Settled()})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].LoopNumber < states[j].LoopNumber })
	return states
}

// UpdateAnimations advances every animator by dt and returns the agents whose
// animation finished this tick.
func (w *World) UpdateAnimations(dt time.Duration) []ecs.Entity {
	var completed []ecs.Entity
	query := w.agentFilter.Query()
	for query.Next() {
		_, _, _, anim := query.Get()
		if anim.Update(dt) {
			completed = append(completed, query.Entity())
		}
	}
	return completed
}

// ItemsAt returns the items lying on a cell.
func (w *World) ItemsAt(loc GridLocation) []ecs.Entity {
	var found []ecs.Entity
	query := w.itemFilter.Query()
	for query.Next() {
		_, itemLoc := query.Get()
		if *itemLoc == loc {
			found = append(found, query.Entity())
		}
	}
	return found
}

// ItemKind returns the kind of an item entity.
func (w *World) ItemKind(e ecs.Entity) ItemKind { return w.itemMap.Get(e).Kind }

// Despawn removes a single entity if it is still alive.
func (w *World) Despawn(e ecs.Entity) bool {
	if !w.ecs.Alive(e) {
		return false
	}
	w.ecs.RemoveEntity(e)
	return true
}

// AgentViews returns presentation views of every agent ordered by loop number.
func (w *World) AgentViews(goal GridLocation) []AgentView {
	var views []AgentView
	query := w.agentFilter.Query()
	for query.Next() {
		soot, loc, inv, anim := query.Get()
		views = append(views, AgentView{
			ID:         query.Entity().ID(),
			LoopNumber: soot.LoopNumber,
			Location:   *loc,
			Inventory:  *inv,
			Position:   [2]float64{anim.Position.X(), anim.Position.Y()},
			Animating:  !anim.Settled(),
			AtGoal:     *loc == goal,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].LoopNumber < views[j].LoopNumber })
	return views
}

// ItemViews returns presentation views of every item ordered by location.
func (w *World) ItemViews() []ItemView {
	var views []ItemView
	query := w.itemFilter.Query()
	for query.Next() {
		item, loc := query.Get()
		center := w.grid.CenterOf(*loc)
		views = append(views, ItemView{
			ID:       query.Entity().ID(),
			Kind:     item.Kind,
			Location: *loc,
			Position: [2]float64{center.X(), center.Y()},
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Location.X != views[j].Location.X {
			return views[i].Location.X < views[j].Location.X
		}
		if views[i].Location.Y != views[j].Location.Y {
			return views[i].Location.Y < views[j].Location.Y
		}
		return views[i].ID < views[j].ID
	})
	return views
}
