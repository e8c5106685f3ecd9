// Package watcher implements the Watcher (§4.8): a debounced filesystem
// event feed that coalesces burst edits (IDE formatters touching a file
// several times in a row) into a single Created/Modified/Deleted event
// per path per quiet window, with a polling fallback when the OS event
// source is unavailable.
//
// Grounded directly on mvp-joe-project-cortex's
// internal/indexer/watcher.go: the same fsnotify setup, the same
// debounce-timer-plus-signal-channel shape, and the same
// recursive-directory-registration walk, generalized from that file's
// single always-fsnotify path into one that falls back to polling when
// fsnotify.NewWatcher fails (§4.8 "gracefully degrade to a polling scan").
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codeweaver/core/internal/corelog"
	"github.com/codeweaver/core/internal/discovery"
)

// Kind is one of the three event kinds §4.8 names.
type Kind string

const (
	Created  Kind = "Created"
	Modified Kind = "Modified"
	Deleted  Kind = "Deleted"
)

// Event is one coalesced, debounced filesystem change.
type Event struct {
	Kind    Kind
	RelPath string
}

// Config tunes the watcher (§4.8's stated defaults).
type Config struct {
	RootDir            string
	Discovery          *discovery.Discovery
	QuietWindow        time.Duration // default 500ms
	PollIntervalSeconds int           // used only in polling-fallback mode
}

// DefaultConfig returns §4.8's stated defaults, with RootDir/Discovery
// left for the caller to fill in.
func DefaultConfig() Config {
	return Config{QuietWindow: 500 * time.Millisecond, PollIntervalSeconds: 30}
}

// Watcher emits coalesced Events on Events() until Stop is called.
type Watcher struct {
	cfg    Config
	events chan Event

	fsWatcher *fsnotify.Watcher // nil in polling-fallback mode

	stopCh chan struct{}
	wg     sync.WaitGroup
	stop   sync.Once
}

// New builds a Watcher rooted at cfg.RootDir. If the OS event source is
// unavailable, it silently falls back to polling rather than failing
// construction, matching §4.8's degrade-not-fail requirement.
func New(cfg Config) (*Watcher, error) {
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = 500 * time.Millisecond
	}
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = 30
	}

	w := &Watcher{cfg: cfg, events: make(chan Event, 256), stopCh: make(chan struct{})}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		corelog.Event(slog.LevelWarn, "watcher.fsnotify_unavailable", slog.Any("error", err))
		return w, nil // degrade to polling; see Start
	}
	if err := w.addDirectoriesRecursively(fsw, cfg.RootDir); err != nil {
		fsw.Close()
		corelog.Event(slog.LevelWarn, "watcher.initial_registration_failed", slog.Any("error", err))
		return w, nil // degrade to polling rather than fail construction
	}
	w.fsWatcher = fsw
	return w, nil
}

// Events returns the channel Created/Modified/Deleted events arrive on.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start launches the event loop (fsnotify-driven, or a polling scan if
// fsnotify was unavailable at construction).
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	if w.fsWatcher != nil {
		go w.watchFsnotify(ctx)
	} else {
		go w.watchPolling(ctx)
	}
}

// Stop halts the event loop and closes the Events channel.
func (w *Watcher) Stop() {
	w.stop.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	close(w.events)
}

func (w *Watcher) watchFsnotify(ctx context.Context) {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	signal := make(chan struct{}, 1)
	pending := make(map[string]Kind)
	var mu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			kind, ok := classifyOp(event.Op)
			if !ok {
				continue
			}

			relPath, normErr := w.normalize(event.Name)
			if normErr != nil {
				corelog.Event(slog.LevelWarn, "watcher.normalize_failed", slog.String("path", event.Name), slog.Any("error", normErr))
				continue
			}
			if relPath == "" {
				continue // the watched root itself, not a file event
			}

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if !w.shouldIgnoreDir(relPath) {
						if err := w.addDirectoriesRecursively(w.fsWatcher, event.Name); err != nil {
							corelog.Event(slog.LevelWarn, "watcher.watch_new_dir_failed", slog.String("path", event.Name), slog.Any("error", err))
						}
					}
					continue // directory events themselves are not file events
				}
			}

			mu.Lock()
			pending[relPath] = kind
			mu.Unlock()

			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.AfterFunc(w.cfg.QuietWindow, func() {
				select {
				case signal <- struct{}{}:
				default:
				}
			})

		case <-signal:
			mu.Lock()
			batch := pending
			pending = make(map[string]Kind)
			mu.Unlock()
			for relPath, kind := range batch {
				w.emit(Event{Kind: kind, RelPath: relPath})
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			corelog.Event(slog.LevelWarn, "watcher.fsnotify_error", slog.Any("error", err))
		}
	}
}

// watchPolling is the degraded event source (§4.8): it rescans the tree
// every PollIntervalSeconds and diffs modification times against the
// previous scan, emitting coalesced events the same way the fsnotify path
// does (there is nothing to debounce against here; each poll cycle is
// already its own quiet window).
func (w *Watcher) watchPolling(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Duration(w.cfg.PollIntervalSeconds) * time.Second)
	defer ticker.Stop()

	seen := make(map[string]time.Time)
	w.pollOnce(seen)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pollOnce(seen)
		}
	}
}

func (w *Watcher) pollOnce(seen map[string]time.Time) {
	current := make(map[string]time.Time)
	_ = filepath.Walk(w.cfg.RootDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info == nil || info.IsDir() {
			return nil
		}
		relPath, err := w.normalize(path)
		if err != nil || relPath == "" {
			return nil
		}
		current[relPath] = info.ModTime()
		if prevMod, existed := seen[relPath]; !existed {
			w.emit(Event{Kind: Created, RelPath: relPath})
		} else if !info.ModTime().Equal(prevMod) {
			w.emit(Event{Kind: Modified, RelPath: relPath})
		}
		return nil
	})

	for relPath := range seen {
		if _, stillPresent := current[relPath]; !stillPresent {
			w.emit(Event{Kind: Deleted, RelPath: relPath})
		}
	}

	for k, v := range current {
		seen[k] = v
	}
	for k := range seen {
		if _, ok := current[k]; !ok {
			delete(seen, k)
		}
	}
}

func (w *Watcher) emit(e Event) {
	select {
	case w.events <- e:
	case <-w.stopCh:
	}
}

func classifyOp(op fsnotify.Op) (Kind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return Created, true
	case op&fsnotify.Write != 0:
		return Modified, true
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return Deleted, true
	default:
		return "", false
	}
}

func (w *Watcher) normalize(absPath string) (string, error) {
	relPath, err := filepath.Rel(w.cfg.RootDir, absPath)
	if err != nil {
		return "", err
	}
	relPath = filepath.ToSlash(relPath)
	if relPath == "." {
		return "", err
	}
	return relPath, nil
}

func (w *Watcher) shouldIgnoreDir(relPath string) bool {
	if w.cfg.Discovery == nil {
		return false
	}
	return w.cfg.Discovery.ShouldIgnore(relPath)
}

func (w *Watcher) addDirectoriesRecursively(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			corelog.Event(slog.LevelWarn, "watcher.walk_error", slog.String("path", path), slog.Any("error", walkErr))
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		relPath, err := w.normalize(path)
		if err == nil && relPath != "" && w.shouldIgnoreDir(relPath) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			corelog.Event(slog.LevelWarn, "watcher.add_dir_failed", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		return nil
	})
}
