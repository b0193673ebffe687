// Package config provides level configuration management for the soot loop game.
//
// The config package handles:
//   - Loading levels from YAML (.yaml, .yml) and JSON (.json) files
//   - JSON schema validation of JSON levels
//   - Level validation through the engine rules (geometry, items, winnability)
//   - Default level selection with an embedded fallback
//   - Level discovery and listing
//
// Level Format:
//
// A level names its grid size, start and goal cells, how many candies and fuel
// cans are scattered at random, optional fixed item placements, the move
// animation and the replay policy:
//
//	name: corridor
//	width: 3
//	height: 2
//	start: {x: 0, y: 1}
//	goal: {x: 2, y: 0}
//	candies: 0
//	fuel: 1
//	items:
//	  - {kind: candy, x: 1, y: 1}
//	replay_policy: skip
//
// Omitted fields keep the values of the classic level.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadConfig("corridor")
//	levels, err := manager.ListConfigs()
//	fallback := manager.GetDefault()
package config
