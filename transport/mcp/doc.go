// Package mcp exposes the soot loop game to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool calls the REST API and renders the
// JSON response as text, so an MCP process can run next to a remote game server.
//
// MCP Tools:
//   - create_session, get_session, list_sessions, list_configs
//   - game_state: Snapshot with a text grid, inventories and replay progress
//   - move, bulk_move: Turn-level moves, the echo answers inside the same call
//   - press, tick: Frame-level input and simulation
//   - restart_episode, reset_game: Next loop iteration, or a fresh cycle
//   - recording, move_history: Recorded offsets, digest and paginated moves
//   - describe_cell: Agents, items and markers on one cell
//   - game_instructions: Rules and legend
//
// Grids are printed with the top row first; row 0 is the bottom of the board.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
