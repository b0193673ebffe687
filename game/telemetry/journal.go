// Package telemetry records finished episodes as CSV rows and eventful ticks as
// a zstd-compressed JSON lines journal.
package telemetry

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/wricardo/mcp-training/sootloop/game/engine"
)

// TickEntry is one journal line.
type TickEntry struct {
	Time      time.Time          `json:"time"`
	SessionID string             `json:"session_id"`
	EpisodeID string             `json:"episode_id"`
	Report    *engine.TickReport `json:"report"`
}

// Journal appends JSON lines to a zstd stream. A new file is started every
// UTC day.
type Journal struct {
	dir    string
	prefix string
	now    func() time.Time

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

// NewJournal creates a journal writing <prefix>-<day>.jsonl.zst files into dir.
func NewJournal(dir, prefix string) *Journal {
	return &Journal{dir: dir, prefix: prefix, now: time.Now}
}

// Write appends v as one JSON line and flushes it to the encoder.
func (j *Journal) Write(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	day := j.now().UTC().Format("2006-01-02")
	if day != j.curDay {
		if err := j.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

// Path returns the file the journal is currently writing, or "" before the
// first write.
func (j *Journal) Path() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.curDay == "" {
		return ""
	}
	return j.pathForDay(j.curDay)
}

// Close ends the current zstd frame and closes the file. A later Write reopens
// the day's file and appends a new frame.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) rotateLocked(day string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.pathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 64*1024)
	j.curDay = day
	return nil
}

func (j *Journal) closeLocked() error {
	var err error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	j.curDay = ""
	return err
}

func (j *Journal) pathForDay(day string) string {
	return filepath.Join(j.dir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, day))
}

// ReadJournal decodes every entry of a journal file. Appended zstd frames are
// read back to back.
func ReadJournal(path string) ([]TickEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd stream: %w", err)
	}
	defer dec.Close()

	var entries []TickEntry
	jd := json.NewDecoder(dec)
	for {
		var entry TickEntry
		if err := jd.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return entries, fmt.Errorf("journal entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, entry)
	}
}
