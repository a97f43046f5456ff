package mockapi

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/pkg/cerr"
)

type seedFile struct {
	Tickets []*voc.Ticket `yaml:"tickets"`
}

// LoadSeed reads a YAML seed file of the form {tickets: [...]}.
func LoadSeed(path string) ([]*voc.Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) ([]*voc.Ticket, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	seen := make(map[int64]bool, len(f.Tickets))
	for i, t := range f.Tickets {
		if t == nil || t.ID <= 0 {
			return nil, fmt.Errorf("seed ticket #%d: id must be positive", i)
		}
		if !t.Status.Valid() {
			return nil, fmt.Errorf("seed ticket %d: missing status", t.ID)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("seed ticket %d: duplicate id", t.ID)
		}
		seen[t.ID] = true
	}
	return f.Tickets, nil
}

// Import upserts tickets into repo. Missing ticket numbers and timestamps
// are filled in.
func Import(ctx context.Context, repo voc.Repository, tickets []*voc.Ticket, now time.Time) (created, updated int, err error) {
	for _, t := range tickets {
		t = t.Clone()
		if t.TicketID == "" {
			t.TicketID = fmt.Sprintf("VOC-%04d", t.ID)
		}
		if t.Priority == "" {
			t.Priority = voc.PriorityNormal
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}

		_, err := repo.Get(ctx, t.ID)
		switch {
		case cerr.IsCode(err, cerr.NotFound):
			if err := repo.Create(ctx, t); err != nil {
				return created, updated, err
			}
			created++
		case err != nil:
			return created, updated, err
		default:
			if err := repo.Update(ctx, t); err != nil {
				return created, updated, err
			}
			updated++
		}
	}
	return created, updated, nil
}
