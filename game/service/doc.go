// Package service provides the business logic layer for the soot loop game.
//
// The service package implements:
//   - Multi-session game management
//   - Tick-level input (Press, Tick, TickAll) and turn-level moves (Move, BulkMove)
//   - Episode control (Restart into the next loop iteration, Reset to a fresh cycle)
//   - Recording, trace and move history queries
//   - Fault isolation for sessions whose engine hit an invariant violation
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages level loading and validation.
// EpisodeObserver receives eventful tick reports and finished episodes.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Engine access is serialized by a single lock. A move presses
// one direction and then keeps ticking until the live agent may move again, so
// the echo replays its recorded move inside the same call.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr, journal)
//
//	info, err := gameService.CreateSession(ctx, "corridor")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Move(ctx, info.ID, "right")
//
// Faults:
//
// An invariant violation panics inside the engine. The service recovers it,
// reports it to Sentry, and marks the session faulted. Every later call on that
// session returns ErrSessionFaulted; only DeleteSession still works.
package service
