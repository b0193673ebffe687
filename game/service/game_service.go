package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/sootloop/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Input and simulation
	Press(ctx context.Context, sessionID string, directions []string) (*engine.Snapshot, error)
	Tick(ctx context.Context, sessionID string, dt time.Duration) (*TickResult, error)
	TickAll(ctx context.Context, dt time.Duration) []*TickResult

	// Game Operations
	Move(ctx context.Context, sessionID, direction string) (*MoveResult, error)
	BulkMove(ctx context.Context, sessionID string, moves []string) (*BulkMoveResult, error)
	Restart(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	GetRecording(ctx context.Context, sessionID string) (*RecordingInfo, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.LevelConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.LevelConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles level configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.LevelConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.LevelConfig
	SaveConfig(name string, config *engine.LevelConfig) error
}

// EpisodeObserver is notified about every tick that changed something and about
// every finished episode. Telemetry sinks implement it.
type EpisodeObserver interface {
	ObserveTick(sessionID string, report *engine.TickReport)
	ObserveEpisode(sessionID string, episode int, iteration int, summary *engine.Summary)
}

// Session represents an active game session
type Session struct {
	ID             string
	ConfigID       string
	Engine         *engine.Engine
	Config         *engine.LevelConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Input holds the directions pressed since the last tick.
	Input engine.InputFrame
	// Fault is set once the engine panicked with an invariant violation.
	Fault error
}
