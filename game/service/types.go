package service

import (
	"time"

	"github.com/wricardo/mcp-training/sootloop/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	Faulted        bool                `json:"faulted,omitempty"`
	Fault          string              `json:"fault,omitempty"`
	GameState      *engine.Snapshot    `json:"game_state"`
	GameConfig     *engine.LevelConfig `json:"game_config"`
}

// TickResult is the outcome of one simulated tick for one session
type TickResult struct {
	SessionID string             `json:"session_id"`
	Report    *engine.TickReport `json:"report"`
	Events    []GameEvent        `json:"events,omitempty"`
	GameState *engine.Snapshot   `json:"game_state"`
	Err       error              `json:"-"`
}

// MoveResult contains the result of a move operation. A move presses one
// direction and advances the simulation until the live agent may move again
// or the episode ends.
type MoveResult struct {
	Success   bool              `json:"success"`
	GameState *engine.Snapshot  `json:"game_state"`
	Message   string            `json:"message"`
	Events    []GameEvent       `json:"events,omitempty"`
	Step      *StepInfo         `json:"step,omitempty"`
	Rejection *engine.Rejection `json:"rejection,omitempty"`
	Ticks     int               `json:"ticks"`
}

// BulkMoveResult contains the result of multiple moves
type BulkMoveResult struct {
	// Summary
	MovesExecuted  int              `json:"moves_executed"`
	RequestedMoves int              `json:"requested_moves"`
	Success        bool             `json:"success"`
	GameState      *engine.Snapshot `json:"game_state"`
	Events         []GameEvent      `json:"events"`
	StoppedReason  string           `json:"stopped_reason,omitempty"`   // Human-readable reason
	StopReasonCode string           `json:"stop_reason_code,omitempty"` // Machine-friendly code: invalid_direction|insufficient_fuel|out_of_bounds|not_cardinal|game_over|goal_reached|echo_stranded
	StoppedOnMove  int              `json:"stopped_on_move,omitempty"`  // 1-based index of the move that caused stop
	Truncated      bool             `json:"truncated,omitempty"`
	Limit          int              `json:"limit,omitempty"`

	// Start/end snapshot
	StartPos   engine.GridLocation `json:"start_pos"`
	EndPos     engine.GridLocation `json:"end_pos"`
	StartFuel  int                 `json:"start_fuel"`
	EndFuel    int                 `json:"end_fuel"`
	ScoreDelta int                 `json:"score_delta"`
	Ticks      int                 `json:"ticks"`

	// Per-step compact trace (only for this call)
	Steps []StepInfo `json:"steps,omitempty"`

	// Failure diagnostics
	Rejection *engine.Rejection `json:"rejection,omitempty"`

	// Final status aids
	GameOver      bool     `json:"game_over"`
	GameOverCode  string   `json:"game_over_code,omitempty"`
	Message       string   `json:"message,omitempty"`
	PossibleMoves []string `json:"possible_moves,omitempty"`
	FuelRisk      string   `json:"fuel_risk,omitempty"`
}

// StepInfo is a compact record for each executed move
type StepInfo struct {
	Idx        int                 `json:"idx"`
	Dir        string              `json:"dir"`
	From       engine.GridLocation `json:"from"`
	To         engine.GridLocation `json:"to"`
	FuelBefore int                 `json:"fuel_before"`
	FuelAfter  int                 `json:"fuel_after"`
	Success    bool                `json:"success"`
	Candy      bool                `json:"candy,omitempty"`
	Fuel       bool                `json:"fuel,omitempty"`
	Goal       bool                `json:"goal,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type       string              `json:"type"` // "move", "replay", "rejected", "pass", "item_get", "inventory", "game_over", "restart", "reset"
	Message    string              `json:"message"`
	Timestamp  time.Time           `json:"timestamp"`
	Tick       uint64              `json:"tick"`
	LoopNumber int                 `json:"loop_number"`
	Position   engine.GridLocation `json:"position"`
}

// RecordingInfo describes the recorded offsets of the current cycle
type RecordingInfo struct {
	Iteration int             `json:"iteration"`
	Moves     []engine.Offset `json:"moves"`
	Remaining int             `json:"remaining"`
	Digest    string          `json:"digest"`
	Trace     engine.Trace    `json:"trace,omitempty"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveRecord `json:"moves"`
	TotalMoves  int                 `json:"total_moves"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalPages  int                 `json:"total_pages"`
	HasNext     bool                `json:"has_next"`
	HasPrevious bool                `json:"has_previous"`
}

// ConfigInfo provides information about a level configuration
type ConfigInfo struct {
	Filename     string              `json:"filename"`
	ConfigID     string              `json:"config_id"` // The identifier to use for session creation
	Name         string              `json:"name"`      // Display name
	Description  string              `json:"description"`
	Width        int                 `json:"width"`
	Height       int                 `json:"height"`
	Candies      int                 `json:"candies"`
	Fuel         int                 `json:"fuel"`
	StartingFuel int                 `json:"starting_fuel"`
	ReplayPolicy engine.ReplayPolicy `json:"replay_policy"`
}
