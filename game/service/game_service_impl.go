package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/wricardo/mcp-training/sootloop/game/engine"
)

const (
	// DefaultTickInterval is the simulated time step used when the service
	// advances a session on its own.
	DefaultTickInterval = time.Second / 60

	// MaxAdvanceTicks bounds how long a single move may take to settle.
	MaxAdvanceTicks = 10000

	// MaxBulkMoves limits the number of moves accepted by one bulk call.
	MaxBulkMoves = 50
)

var (
	// ErrSessionFaulted is returned for every operation on a session whose engine
	// hit an invariant violation.
	ErrSessionFaulted = errors.New("session faulted")

	// ErrConfigNotFound is returned by config managers when no level file matches.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrSessionNotFound is returned when no session has the requested ID.
	ErrSessionNotFound = errors.New("session not found")
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  SessionManager
	configs   ConfigManager
	observers []EpisodeObserver
	step      time.Duration

	// engine reads run ECS queries, so every engine access is exclusive
	mu sync.Mutex
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	// Fallback: return as-is or "default"
	if configName == "" {
		return "default"
	}
	return configName
}

// NewGameService creates a new game service instance. Observers are notified
// about eventful ticks and finished episodes of every session.
func NewGameService(sessions SessionManager, configs ConfigManager, observers ...EpisodeObserver) GameService {
	return &gameServiceImpl{
		sessions:  sessions,
		configs:   configs,
		observers: observers,
		step:      DefaultTickInterval,
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Load configuration
	var config *engine.LevelConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: config '%s' not found. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: config '%s' not found. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	session, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Prefer the requested identifier, otherwise look up the config_id by display name
	session.ConfigID = configName
	if session.ConfigID == "" {
		session.ConfigID = s.getConfigID(config.Name)
	}
	log.Printf("Session %s created with level %q", session.ID, config.Name)

	return s.sessionInfo(session), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(session), nil
}

// ListSessions returns all active sessions ordered by creation time
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	return nil
}

// Press queues directions for the next tick of a session
func (s *gameServiceImpl) Press(ctx context.Context, sessionID string, directions []string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Fault != nil {
		return nil, sess.Fault
	}
	if sess.Engine.IsOver() {
		return nil, fmt.Errorf("%w: restart the episode first", engine.ErrEpisodeOver)
	}

	pressed := make([]engine.Direction, 0, len(directions))
	for _, d := range directions {
		dir, err := engine.ParseDirection(d)
		if err != nil {
			return nil, err
		}
		pressed = append(pressed, dir)
	}
	sess.Input.Pressed = append(sess.Input.Pressed, pressed...)

	var snap *engine.Snapshot
	err = s.guard(sess, "press", func() error {
		snap = sess.Engine.Snapshot()
		return nil
	})
	return snap, err
}

// Tick runs one simulation step of a session with the queued input
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, dt time.Duration) (*TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	result := s.tickSession(sess, dt)
	return result, result.Err
}

// TickAll advances every playing session by one step. Sessions whose tick was
// ignored or changed nothing observable are left out of the result.
func (s *gameServiceImpl) TickAll(ctx context.Context, dt time.Duration) []*TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []*TickResult
	for _, sess := range s.sessions.List() {
		if sess.Fault != nil || sess.Engine.IsOver() {
			continue
		}
		result := s.tickSession(sess, dt)
		if result.Err != nil || (result.Report != nil && result.Report.Eventful()) {
			results = append(results, result)
		}
	}
	return results
}

func (s *gameServiceImpl) tickSession(sess *Session, dt time.Duration) *TickResult {
	result := &TickResult{SessionID: sess.ID}
	result.Err = s.guard(sess, "tick", func() error {
		frame := sess.Input
		sess.Input = engine.InputFrame{}
		result.Report, result.Events = s.advance(sess, frame, dt)
		result.GameState = sess.Engine.Snapshot()
		return nil
	})
	return result
}

// Move presses one direction for the live agent and runs the simulation until
// the live agent may move again or the episode ends
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	dir, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	result := &MoveResult{}
	err = s.guard(sess, "move", func() error {
		out, err := s.runMove(sess, dir, 1)
		result.Events = out.events
		result.Ticks = out.ticks
		if err != nil {
			return err
		}
		result.Success = out.step != nil
		result.Step = out.step
		result.Rejection = out.rejection
		result.GameState = sess.Engine.Snapshot()
		result.Message = result.GameState.Message
		if out.rejection != nil {
			result.Message = out.rejection.String()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkMove executes multiple moves in sequence and stops at the first rejected
// move or at the end of the episode
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string) (*BulkMoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         make([]GameEvent, 0),
		Success:        true,
	}

	// Limit moves to prevent abuse
	if len(moves) > MaxBulkMoves {
		result.Truncated = true
		result.Limit = MaxBulkMoves
		moves = moves[:MaxBulkMoves]
	}

	err = s.guard(sess, "bulk_move", func() error {
		start := sess.Engine.Snapshot()
		startLive, _ := engine.LiveAgent(start)
		result.StartPos = startLive.Location
		result.StartFuel = startLive.Inventory.Fuel

		for i, move := range moves {
			if sess.Engine.IsOver() {
				result.StoppedReason = "episode is over"
				result.StopReasonCode = "game_over"
				result.StoppedOnMove = i + 1
				break
			}

			dir, err := engine.ParseDirection(move)
			if err != nil {
				result.Success = false
				result.StoppedReason = fmt.Sprintf("move %d: %v", i+1, err)
				result.StopReasonCode = "invalid_direction"
				result.StoppedOnMove = i + 1
				break
			}

			out, err := s.runMove(sess, dir, i+1)
			result.Events = append(result.Events, out.events...)
			result.Ticks += out.ticks
			if err != nil {
				return err
			}
			if out.rejection != nil {
				result.Success = false
				result.Rejection = out.rejection
				result.StoppedReason = fmt.Sprintf("move %d rejected: %s", i+1, out.rejection.Reason)
				result.StopReasonCode = string(out.rejection.Reason)
				result.StoppedOnMove = i + 1
				break
			}
			result.MovesExecuted++
			result.Steps = append(result.Steps, *out.step)
		}

		end := sess.Engine.Snapshot()
		endLive, _ := engine.LiveAgent(end)
		result.GameState = end
		result.EndPos = endLive.Location
		result.EndFuel = endLive.Inventory.Fuel
		result.ScoreDelta = endLive.Inventory.Candies - startLive.Inventory.Candies
		result.Message = end.Message
		result.GameOver = end.Phase == engine.GameOver
		if result.GameOver && end.Summary != nil {
			result.GameOverCode = string(end.Summary.Outcome)
			if result.StopReasonCode == "" {
				result.StopReasonCode = result.GameOverCode
			}
		}

		// Decision aids
		result.PossibleMoves = possibleMoves(sess.Config, end)
		result.FuelRisk = riskCode(engine.AnalyzeFuelRisk(end))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Restart leaves the game over state and starts the next loop iteration
func (s *gameServiceImpl) Restart(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	var snap *engine.Snapshot
	err = s.guard(sess, "restart", func() error {
		if err := sess.Engine.Restart(); err != nil {
			return err
		}
		sess.Input = engine.InputFrame{}
		snap = sess.Engine.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Session %s restarted: episode %d, iteration %d", sess.ID, snap.Episode, snap.Iteration)
	return snap, nil
}

// Reset starts a new recording cycle from iteration 0
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	var snap *engine.Snapshot
	err = s.guard(sess, "reset", func() error {
		sess.Engine.Reset()
		sess.Input = engine.InputFrame{}
		snap = sess.Engine.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	var snap *engine.Snapshot
	err = s.guard(sess, "state", func() error {
		snap = sess.Engine.Snapshot()
		return nil
	})
	return snap, err
}

// GetRecording returns the recorded offsets of the current cycle
func (s *gameServiceImpl) GetRecording(ctx context.Context, sessionID string) (*RecordingInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Fault != nil {
		return nil, sess.Fault
	}

	moves := sess.Engine.Recording()
	return &RecordingInfo{
		Iteration: sess.Engine.Iteration(),
		Moves:     moves,
		Remaining: sess.Engine.ReplayRemaining(),
		Digest:    fmt.Sprintf("%016x", engine.RecordingDigest(moves)),
		Trace:     sess.Engine.Trace(0),
	}, nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.History()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	// Calculate pagination
	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var moves []engine.MoveRecord
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else if start < total {
		moves = history[start:end]
	}

	if moves == nil {
		moves = []engine.MoveRecord{}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available level configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific level configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a level configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error {
	return s.configs.SaveConfig(configName, config)
}

func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	info := &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameConfig:     sess.Config,
	}
	if info.ConfigName == "" {
		info.ConfigName = s.getConfigID(sess.Config.Name)
	}
	if err := s.guard(sess, "info", func() error {
		info.GameState = sess.Engine.Snapshot()
		return nil
	}); err != nil {
		info.Faulted = true
		info.Fault = err.Error()
	}
	return info
}

// guard runs fn against a session engine. A panic marks the session faulted and
// is reported; the process keeps serving other sessions.
func (s *gameServiceImpl) guard(sess *Session, op string, fn func() error) (err error) {
	if sess.Fault != nil {
		return sess.Fault
	}
	defer func() {
		if r := recover(); r != nil {
			sess.Fault = s.fault(sess, op, r)
			err = sess.Fault
		}
	}()
	return fn()
}

func (s *gameServiceImpl) fault(sess *Session, op string, recovered any) error {
	violation, isViolation := engine.AsViolation(recovered)
	var cause error
	if isViolation {
		cause = violation
	} else {
		cause = fmt.Errorf("panic: %v", recovered)
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("session", sess.ID)
		scope.SetTag("operation", op)
		scope.SetTag("level", sess.Config.Name)
		if isViolation {
			scope.SetTag("violation", string(violation.Kind))
			scope.SetContext("violation", violation.Fields())
		}
	})
	hub.Recover(cause)
	hub.Flush(2 * time.Second)

	log.Printf("[FAULT] session=%s op=%s: %v", sess.ID, op, cause)
	return fmt.Errorf("%w: %w", ErrSessionFaulted, cause)
}

// moveOutcome collects everything that happened while one move was played out.
type moveOutcome struct {
	step      *StepInfo
	rejection *engine.Rejection
	events    []GameEvent
	gets      []engine.ItemGet
	ticks     int
}

// runMove waits until the live agent may move, presses dir and waits again
// until the move and any echo reply have settled.
func (s *gameServiceImpl) runMove(sess *Session, dir engine.Direction, idx int) (*moveOutcome, error) {
	out := &moveOutcome{}
	if err := s.settle(sess, out); err != nil {
		return out, err
	}
	if sess.Engine.IsOver() {
		return out, fmt.Errorf("%w: restart the episode first", engine.ErrEpisodeOver)
	}

	before, _ := engine.LiveAgent(sess.Engine.Snapshot())
	sess.Input = engine.InputFrame{}
	frame := engine.InputFrame{Pressed: []engine.Direction{dir}}
	report := s.tickOnce(sess, frame, out)
	if report.Rejection != nil && report.Rejection.LoopNumber == 0 {
		out.rejection = report.Rejection
		return out, nil
	}
	if report.Move == nil {
		return out, fmt.Errorf("live agent did not attempt %s at tick %d", dir, report.Tick)
	}

	if err := s.settle(sess, out); err != nil {
		return out, err
	}

	snap := sess.Engine.Snapshot()
	after, _ := engine.LiveAgent(snap)
	step := &StepInfo{
		Idx:        idx,
		Dir:        string(dir),
		From:       report.Move.From,
		To:         report.Move.To,
		FuelBefore: before.Inventory.Fuel,
		FuelAfter:  after.Inventory.Fuel,
		Success:    true,
		Goal:       after.AtGoal,
	}
	for _, get := range out.gets {
		if get.LoopNumber != 0 {
			continue
		}
		switch get.Kind {
		case engine.Candy:
			step.Candy = true
		case engine.Fuel:
			step.Fuel = true
		}
	}
	out.step = step
	return out, nil
}

// settle ticks without input until the live agent holds the turn with every
// agent at rest, or the episode is over.
func (s *gameServiceImpl) settle(sess *Session, out *moveOutcome) error {
	e := sess.Engine
	for !e.IsOver() && (e.CurrentMover() != 0 || !e.Settled()) {
		if out.ticks >= MaxAdvanceTicks {
			return fmt.Errorf("session %s did not settle after %d ticks", sess.ID, out.ticks)
		}
		s.tickOnce(sess, engine.InputFrame{}, out)
	}
	return nil
}

func (s *gameServiceImpl) tickOnce(sess *Session, frame engine.InputFrame, out *moveOutcome) *engine.TickReport {
	report, events := s.advance(sess, frame, s.step)
	out.ticks++
	out.events = append(out.events, events...)
	out.gets = append(out.gets, report.ItemGets...)
	return report
}

// advance runs one engine tick and fans the report out to events and observers.
func (s *gameServiceImpl) advance(sess *Session, frame engine.InputFrame, dt time.Duration) (*engine.TickReport, []GameEvent) {
	report := sess.Engine.Tick(frame, dt)
	if report.Ignored || !report.Eventful() {
		return report, nil
	}

	events := reportEvents(report, sess.Engine.Snapshot().Message)
	for _, o := range s.observers {
		o.ObserveTick(sess.ID, report)
	}
	if report.Ended {
		summary := sess.Engine.Summary()
		log.Printf("Session %s episode %d ended: %s (score %d, total candies %d)",
			sess.ID, sess.Engine.Episode(), summary.Outcome, summary.Score, summary.TotalCandies)
		for _, o := range s.observers {
			o.ObserveEpisode(sess.ID, sess.Engine.Episode(), sess.Engine.Iteration(), summary)
		}
	}
	return report, events
}

// reportEvents converts a tick report into client facing events
func reportEvents(report *engine.TickReport, message string) []GameEvent {
	now := time.Now()
	var events []GameEvent
	add := func(typ string, loop int, pos engine.GridLocation, msg string) {
		events = append(events, GameEvent{
			Type:       typ,
			Message:    msg,
			Timestamp:  now,
			Tick:       report.Tick,
			LoopNumber: loop,
			Position:   pos,
		})
	}

	if mv := report.Move; mv != nil {
		typ := "move"
		if mv.Replay {
			typ = "replay"
		}
		add(typ, mv.LoopNumber, mv.To, fmt.Sprintf("Loop %d moved %s to %s (fuel cost %d)", mv.LoopNumber, mv.Offset, mv.To, mv.FuelCost))
	}
	if r := report.Rejection; r != nil {
		add("rejected", r.LoopNumber, r.From, r.String())
	}
	if report.Passed {
		add("pass", 1, engine.GridLocation{}, "Echo passed its turn")
	}
	for _, get := range report.ItemGets {
		add("item_get", get.LoopNumber, get.Location, fmt.Sprintf("Loop %d picked up %s at %s", get.LoopNumber, get.Kind, get.Location))
	}
	if inv := report.InventoryChanged; inv != nil {
		add("inventory", 0, engine.GridLocation{}, fmt.Sprintf("Candies: %d Fuel: %d", inv.Candies, inv.Fuel))
	}
	if report.Ended {
		add("game_over", 0, engine.GridLocation{}, message)
	}
	return events
}

// possibleMoves lists the directions the live agent could take right now
func possibleMoves(cfg *engine.LevelConfig, snap *engine.Snapshot) []string {
	live, ok := engine.LiveAgent(snap)
	if !ok || snap.Phase != engine.Playing {
		return nil
	}
	var moves []string
	for _, dir := range engine.Directions {
		if _, reason := engine.ValidateMove(cfg.Grid(), live.Location, live.Inventory, dir.Offset()); reason == engine.RejectNone {
			moves = append(moves, string(dir))
		}
	}
	return moves
}

func riskCode(text string) string {
	code, _, found := strings.Cut(text, ":")
	if !found {
		return "UNKNOWN"
	}
	return code
}
