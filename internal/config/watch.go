package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"studiobook/internal/catalog"
)

// catalogWatcher tracks the catalog file by content. Edits that leave the bytes unchanged
// (a touch, an editor rewriting the same text) are ignored, and a broken revision is
// reported once rather than on every tick until it is fixed.
type catalogWatcher struct {
	path     string
	onUpdate func(*catalog.Catalog)
	onError  func(error)

	applied  [sha256.Size]byte
	rejected [sha256.Size]byte
}

// load reads the file and applies it if its content differs from the last revision seen.
// It returns the parse error of a new broken revision.
func (w *catalogWatcher) load() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	sum := sha256.Sum256(data)
	if sum == w.applied || sum == w.rejected {
		return nil
	}

	cat, err := ParseCatalog([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		w.rejected = sum
		return err
	}
	w.applied = sum
	w.rejected = [sha256.Size]byte{}
	if w.onUpdate != nil {
		w.onUpdate(cat)
	}
	return nil
}

func (w *catalogWatcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(w.path); err != nil {
				// Missing while being replaced; try again next tick.
				continue
			}
			if err := w.load(); err != nil && w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// WatchCatalog loads catalog.yaml, hands it to onUpdate and then polls the file every
// interval until ctx is done. A changed file that fails to parse goes to onError once and
// the previous catalog stays in effect. The initial load must succeed.
func WatchCatalog(ctx context.Context, path string, interval time.Duration, onUpdate func(*catalog.Catalog), onError func(error)) error {
	if path == "" {
		path = "configs/catalog.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	w := &catalogWatcher{path: path, onUpdate: onUpdate, onError: onError}
	if err := w.load(); err != nil {
		return err
	}
	go w.run(ctx, interval)
	return nil
}
