package mockapi

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/pkg/panicerr"
)

// DebounceInterval is the delay after an fsnotify event before the seed file
// is re-read.
const DebounceInterval = 100 * time.Millisecond

// SeedWatcher re-imports a seed file whenever its content changes.
type SeedWatcher struct {
	path     string
	repo     voc.Repository
	debounce time.Duration
	lastHash [sha256.Size]byte
}

func NewSeedWatcher(path string, repo voc.Repository) *SeedWatcher {
	return &SeedWatcher{path: path, repo: repo, debounce: DebounceInterval}
}

// Sync imports the seed file unless its checksum matches the last import.
func (w *SeedWatcher) Sync(ctx context.Context) (bool, error) {
	h, err := hashFile(w.path)
	if err != nil {
		return false, err
	}
	if h == w.lastHash {
		return false, nil
	}
	tickets, err := LoadSeed(w.path)
	if err != nil {
		return false, err
	}
	created, updated, err := Import(ctx, w.repo, tickets, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to import seed file: %w", err)
	}
	w.lastHash = h
	slog.InfoContext(ctx, "imported seed file", "path", w.path, "created", created, "updated", updated)
	return true, nil
}

// Run watches the seed file's directory until ctx is done. Editors and
// deploy tools often replace files by rename, so the directory is watched
// rather than the file.
func (w *SeedWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	name := filepath.Base(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	slog.InfoContext(ctx, "watching seed file", "path", w.path)

	trigger := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case <-trigger:
			err := panicerr.Safe(func() error {
				_, err := w.Sync(ctx)
				return err
			})()
			if err != nil {
				slog.WarnContext(ctx, "failed to reload seed file", "path", w.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "fsnotify error", "error", err)
		}
	}
}

func hashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash %s: %w", path, err)
	}
	var result [sha256.Size]byte
	copy(result[:], h.Sum(nil))
	return result, nil
}
