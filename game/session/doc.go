// Package session provides in-memory session management for the soot loop game.
//
// Each session owns one engine instance and the level it was created from.
// Sessions use 4-character hex IDs for easy reference; callers may also pick
// their own ID. Lookups are case-insensitive.
//
// Usage:
//
//	manager := session.NewManager()
//
//	sess, err := manager.Create("", level)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err = manager.Get(sess.ID)
//
// The manager is safe for concurrent use. It only guards its own map: engine
// access is serialized by the game service. Idle sessions are removed with
// CleanupExpiredSessions.
package session
