package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/msageha/formflow/internal/events"
	"github.com/msageha/formflow/internal/logging"
	ffyaml "github.com/msageha/formflow/internal/yaml"
)

// Watcher hot-reloads the rule table when files in the rules directory change.
// Malformed files are quarantined and the previous table stays in effect.
type Watcher struct {
	rulesDir string
	debounce time.Duration
	compiler *Compiler
	loader   *Loader
	bus      *events.Bus
	logger   *logging.Logger

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher over rulesDir feeding the given compiler. The
// bus and logger may be nil.
func NewWatcher(rulesDir string, debounce time.Duration, compiler *Compiler, bus *events.Bus, logger *logging.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		rulesDir: rulesDir,
		debounce: debounce,
		compiler: compiler,
		loader:   NewLoader(rulesDir),
		bus:      bus,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start performs an initial load and begins watching for changes.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.rulesDir, 0755); err != nil {
		return fmt.Errorf("ensure rules dir: %w", err)
	}

	w.reload()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.rulesDir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", w.rulesDir, err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Close stops the watcher and waits for the loop to exit.
func (w *Watcher) Close() error {
	w.cancel()
	var err error
	if w.fsw != nil {
		err = w.fsw.Close()
	}
	w.wg.Wait()

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !hasYAMLExtension(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debugf("fsnotify event=%s file=%s", event.Op, event.Name)
				w.scheduleReload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("fsnotify error=%v", err)
		}
	}
}

// scheduleReload applies debounce logic before reloading: editors fire several
// events per save.
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.reload)
}

// reload quarantines unparseable rule files, then swaps the effective table in
// one step. On any remaining load failure the previous table stays in effect.
func (w *Watcher) reload() {
	w.quarantineBadFiles()

	table, err := w.loader.Load()
	if err != nil {
		w.logger.Errorf("rules reload failed, keeping previous table: %v", err)
		return
	}

	w.compiler.SetTable(table)
	w.logger.Infof("rules reloaded dir=%s fields=%d", w.rulesDir, len(table))

	if w.bus != nil {
		w.bus.Publish(events.EventRulesReloaded, map[string]interface{}{
			"rules_dir": w.rulesDir,
		})
	}
}

func (w *Watcher) quarantineBadFiles() {
	entries, err := os.ReadDir(w.rulesDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !hasYAMLExtension(entry.Name()) {
			continue
		}
		path := filepath.Join(w.rulesDir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if _, err := w.loader.LoadFromBytes(content); err != nil {
			w.logger.Warnf("invalid rule file %s: %v", path, err)
			if qerr := ffyaml.Quarantine(w.rulesDir, path); qerr != nil {
				w.logger.Errorf("quarantine failed for %s: %v", path, qerr)
			}
		}
	}
}
