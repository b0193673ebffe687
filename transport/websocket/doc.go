// Package websocket pushes live game snapshots to browser and agent clients.
//
// A central Hub owns every connection. Clients attach to one session with
// ?session=<id> and receive JSON messages for that session only:
//
//	{"session_id": "ab12", "event": "state_update", "game_state": {...}}
//	{"session_id": "ab12", "event": "events", "data": [...]}
//	{"session_id": "ab12", "event": "error", "data": "episode is over"}
//
// Clients may send commands, which the hub hands to the CommandHandler:
//
//	{"action": "press", "directions": ["up"]}
//
// Usage:
//
//	hub := websocket.NewHub()
//	hub.SetCommandHandler(handler)
//	go hub.Run(ctx)
//
//	hub.BroadcastToSession(sessionID, snapshot)
//
// Broadcasts are queued and never block the caller; when the queue is full the
// message is dropped. A client that cannot keep up is disconnected.
package websocket
