package telemetry

import (
	"errors"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/sootloop/game/engine"
)

// Recorder observes game sessions and writes their telemetry. Every episode of
// every session gets its own UUID; journal entries and the CSV row of an
// episode share it.
type Recorder struct {
	journal  *Journal
	episodes *EpisodeLog

	mu      sync.Mutex
	current map[string]string
	now     func() time.Time
}

// NewRecorder creates a recorder writing into dir. Returns nil if dir is empty
// (telemetry disabled); a nil recorder ignores every call.
func NewRecorder(dir string) (*Recorder, error) {
	if dir == "" {
		return nil, nil
	}
	episodes, err := NewEpisodeLog(dir)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		journal:  NewJournal(filepath.Join(dir, "journal"), "ticks"),
		episodes: episodes,
		current:  make(map[string]string),
		now:      time.Now,
	}, nil
}

// EpisodeID returns the ID of the session's running episode.
func (r *Recorder) EpisodeID(sessionID string) string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.episodeIDLocked(sessionID)
}

func (r *Recorder) episodeIDLocked(sessionID string) string {
	id, ok := r.current[sessionID]
	if !ok {
		id = uuid.NewString()
		r.current[sessionID] = id
	}
	return id
}

// ObserveTick journals an eventful tick.
func (r *Recorder) ObserveTick(sessionID string, report *engine.TickReport) {
	if r == nil {
		return
	}
	r.mu.Lock()
	entry := TickEntry{
		Time:      r.now(),
		SessionID: sessionID,
		EpisodeID: r.episodeIDLocked(sessionID),
		Report:    report,
	}
	r.mu.Unlock()

	if err := r.journal.Write(entry); err != nil {
		log.Printf("telemetry: journal write failed: %v", err)
	}
}

// ObserveEpisode writes the episode row and starts a new episode ID for the
// session.
func (r *Recorder) ObserveEpisode(sessionID string, episode, iteration int, summary *engine.Summary) {
	if r == nil || summary == nil {
		return
	}
	r.mu.Lock()
	rec := EpisodeRecord{
		EpisodeID:    r.episodeIDLocked(sessionID),
		SessionID:    sessionID,
		Episode:      episode,
		Iteration:    iteration,
		Outcome:      string(summary.Outcome),
		Score:        summary.Score,
		TotalCandies: summary.TotalCandies,
		FuelLeft:     summary.FuelLeft,
		Moves:        summary.Moves,
		Ticks:        summary.Ticks,
		EndedAt:      r.now().UTC(),
	}
	delete(r.current, sessionID)
	err := r.episodes.Write(rec)
	r.mu.Unlock()

	if err != nil {
		log.Printf("telemetry: episode write failed: %v", err)
	}
}

// JournalPath returns the journal file currently written.
func (r *Recorder) JournalPath() string {
	if r == nil {
		return ""
	}
	return r.journal.Path()
}

// EpisodesPath returns the episodes CSV path.
func (r *Recorder) EpisodesPath() string {
	if r == nil {
		return ""
	}
	return r.episodes.Path()
}

// Close flushes and closes both outputs.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.journal.Close(), r.episodes.Close())
}
