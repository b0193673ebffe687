// Package api provides the HTTP REST API for the soot loop game.
//
// Endpoints:
//
// Session Management:
//   - POST   /api/sessions                  - Create a session ({"config_id": "corridor"})
//   - GET    /api/sessions                  - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET    /api/sessions/unified          - Sessions for the multi-session view (?sessionIds=a,b or ?configName=x)
//   - GET    /api/sessions/{id}             - Session info with its snapshot
//   - DELETE /api/sessions/{id}             - Delete a session
//
// Game Operations:
//   - GET  /api/sessions/{id}/state         - Current snapshot
//   - POST /api/sessions/{id}/press         - Queue directions for the next tick ({"directions": ["up"]})
//   - POST /api/sessions/{id}/tick          - Run ticks ({"dt_ms": 16, "count": 10})
//   - POST /api/sessions/{id}/move          - Press one direction and run until the live agent may move again
//   - POST /api/sessions/{id}/bulk-move     - Several moves, stopping at the first rejection
//   - POST /api/sessions/{id}/restart       - Start the next loop iteration after game over
//   - POST /api/sessions/{id}/reset         - Start a fresh recording cycle
//   - GET  /api/sessions/{id}/recording     - Recorded offsets, replay progress and digest
//   - GET  /api/sessions/{id}/history       - Move history (?page=1&limit=20&order=desc)
//
// Configuration:
//   - GET  /api/configs                     - List levels
//   - GET  /api/configs/{name}              - Level definition
//   - POST /api/configs                     - Save a level
//
// WebSocket:
//   - GET /ws?session={id}                  - Live snapshots, see package websocket
//
// Errors are returned as JSON, {"error": "message"}, with these status codes:
//
//	404  unknown session or level
//	409  episode over, episode not over, session faulted
//	400  malformed body, unknown direction, invalid level
//	500  anything else
//
// Enriched responses:
//
// Move returns the step taken (from, to, fuel before and after, pickups), the
// rejection when the move was refused, the events of every tick it ran and the
// final snapshot. Bulk move adds the stop reason code, start and end position,
// fuel and score delta, the moves still possible and a fuel risk code.
package api
