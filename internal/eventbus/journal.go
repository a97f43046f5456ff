package eventbus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

const journalBuffer = 256

// Journal appends board events to daily NDJSON files.
type Journal struct {
	dir string
	mu  sync.Mutex
}

type journalEntry struct {
	*Event
	LoggedAt time.Time `json:"loggedAt"`
}

func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return &Journal{dir: dir}, nil
}

func (j *Journal) Append(ev *Event) error {
	data, err := json.Marshal(journalEntry{Event: ev, LoggedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path(ev.CreatedAt), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write event to journal: %w", err)
	}
	return nil
}

// Run records every event published on bus until ctx is done.
func (j *Journal) Run(ctx context.Context, bus *Bus) {
	id, ch := bus.Subscribe(journalBuffer)
	defer bus.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := j.Append(ev); err != nil {
				slog.WarnContext(ctx, "failed to journal event", "event_id", ev.ID, "error", err)
			}
		}
	}
}

// ReadDay returns the events journaled on date's day, optionally limited to
// the given types. Lines that fail to decode are skipped.
func (j *Journal) ReadDay(date time.Time, types ...Type) ([]*Event, error) {
	data, err := os.ReadFile(j.path(date))
	if errors.Is(err, os.ErrNotExist) {
		return []*Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal file: %w", err)
	}

	events := []*Event{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry journalEntry
		if err := json.Unmarshal(line, &entry); err != nil || entry.Event == nil {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, entry.Type) {
			continue
		}
		events = append(events, entry.Event)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan journal file: %w", err)
	}
	return events, nil
}

func (j *Journal) path(t time.Time) string {
	return filepath.Join(j.dir, fmt.Sprintf("events_%s.ndjson", t.Format("2006-01-02")))
}
