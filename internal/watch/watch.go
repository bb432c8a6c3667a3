// Package watch re-runs a read-only scan whenever manifests under the
// watched paths change. Events are debounced to coalesce editor save
// sequences, and files whose content hash matches a previously clean
// scan are skipped.
package watch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yamlr/yamlr/internal/logging"
	"github.com/yamlr/yamlr/internal/models"
)

// Scanner runs one read-only pass over the given paths.
type Scanner interface {
	Run(ctx context.Context, paths []string) (*models.ScanResult, error)
}

// RenderFunc receives each scan result for display.
type RenderFunc func(*models.ScanResult)

// Config holds watcher settings.
type Config struct {
	// Paths are the files and directories to watch.
	Paths []string

	// DebounceMillis coalesces change events within this period into
	// one re-scan. Default 500ms.
	DebounceMillis int

	// CacheSize bounds the clean-file hash cache. Default 1024.
	CacheSize int
}

// Watcher drives re-scans off filesystem events.
type Watcher struct {
	config  Config
	scanner Scanner
	render  RenderFunc
	logger  *logging.Logger

	// clean maps a path to the content hash of its last clean scan.
	clean *lru.Cache[string, [sha256.Size]byte]

	mu            sync.Mutex
	pending       map[string]struct{}
	debounceTimer *time.Timer
}

// New creates a watcher over the given paths. The scanner should run
// in dry-run mode; the watcher never writes.
func New(cfg Config, scanner Scanner, render RenderFunc) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if scanner == nil {
		return nil, fmt.Errorf("scanner cannot be nil")
	}
	if cfg.DebounceMillis <= 0 {
		cfg.DebounceMillis = 500
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	cache, err := lru.New[string, [sha256.Size]byte](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	if render == nil {
		render = func(*models.ScanResult) {}
	}
	return &Watcher{
		config:  cfg,
		scanner: scanner,
		render:  render,
		logger:  logging.GetLogger("watch"),
		clean:   cache,
		pending: make(map[string]struct{}),
	}, nil
}

// Start runs an initial scan and then blocks, re-scanning on changes,
// until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	result, err := w.scanner.Run(ctx, w.config.Paths)
	if err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}
	w.remember(result)
	w.render(result)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := w.watchRoots()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.logger.Info("watching %d directories (debounce: %dms)", len(dirs), w.config.DebounceMillis)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("context cancelled, stopping")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New subdirectories need their own watch.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						w.logger.Warn("watching new directory %s: %v", event.Name, err)
					}
					continue
				}
			}
			if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				w.clean.Remove(event.Name)
				continue
			}
			if !relevant(event) {
				continue
			}
			w.enqueue(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error: %v", err)
		}
	}
}

// relevant reports whether the event should trigger a re-scan.
func relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".yaml" || ext == ".yml"
}

// enqueue records a dirty path and (re)arms the debounce timer.
func (w *Watcher) enqueue(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(
		time.Duration(w.config.DebounceMillis)*time.Millisecond,
		func() { w.flush(ctx) },
	)
}

// flush re-scans the pending paths, skipping those whose content hash
// matches their last clean scan.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	var dirty []string
	for path := range pending {
		data, err := os.ReadFile(path)
		if err != nil {
			w.clean.Remove(path)
			continue
		}
		sum := sha256.Sum256(data)
		if cached, ok := w.clean.Get(path); ok && cached == sum {
			continue
		}
		dirty = append(dirty, path)
	}
	if len(dirty) == 0 {
		return
	}
	sort.Strings(dirty)

	w.logger.Debug("re-scanning %d changed files", len(dirty))
	result, err := w.scanner.Run(ctx, dirty)
	if err != nil {
		w.logger.Warn("re-scan failed: %v", err)
		return
	}
	w.remember(result)
	w.render(result)
}

// remember caches the content hash of every clean file so an unchanged
// save does not trigger another scan.
func (w *Watcher) remember(result *models.ScanResult) {
	for i := range result.Files {
		file := &result.Files[i]
		if file.Outcome != models.OutcomeClean {
			w.clean.Remove(file.Path)
			continue
		}
		data, err := os.ReadFile(file.Path)
		if err != nil {
			continue
		}
		w.clean.Add(file.Path, sha256.Sum256(data))
	}
}

// watchRoots resolves the configured paths to the directory set that
// needs fsnotify watches, including nested subdirectories.
func (w *Watcher) watchRoots() ([]string, error) {
	seen := make(map[string]struct{})
	for _, path := range w.config.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			seen[filepath.Dir(path)] = struct{}{}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				seen[p] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}
