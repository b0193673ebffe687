package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
)

// EpisodeRecord is one row of episodes.csv.
type EpisodeRecord struct {
	EpisodeID    string    `csv:"episode_id"`
	SessionID    string    `csv:"session_id"`
	Episode      int       `csv:"episode"`
	Iteration    int       `csv:"iteration"`
	Outcome      string    `csv:"outcome"`
	Score        int       `csv:"score"`
	TotalCandies int       `csv:"total_candies"`
	FuelLeft     int       `csv:"fuel_left"`
	Moves        int       `csv:"moves"`
	Ticks        uint64    `csv:"ticks"`
	EndedAt      time.Time `csv:"ended_at"`
}

// EpisodeLog appends episode rows to a CSV file.
type EpisodeLog struct {
	file          *os.File
	headerWritten bool
}

// NewEpisodeLog creates (or truncates) episodes.csv inside dir.
func NewEpisodeLog(dir string) (*EpisodeLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "episodes.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating episodes.csv: %w", err)
	}
	return &EpisodeLog{file: f}, nil
}

// Write appends one episode row. The first write includes the header.
func (l *EpisodeLog) Write(rec EpisodeRecord) error {
	records := []EpisodeRecord{rec}
	if !l.headerWritten {
		if err := gocsv.Marshal(records, l.file); err != nil {
			return fmt.Errorf("writing episode: %w", err)
		}
		l.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, l.file); err != nil {
		return fmt.Errorf("writing episode: %w", err)
	}
	return nil
}

// Path returns the CSV file path.
func (l *EpisodeLog) Path() string {
	return l.file.Name()
}

func (l *EpisodeLog) Close() error {
	return l.file.Close()
}

// ReadEpisodes loads every row of an episodes.csv file.
func ReadEpisodes(path string) ([]EpisodeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []EpisodeRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("reading episodes: %w", err)
	}
	return records, nil
}
