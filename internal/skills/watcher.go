package skills

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"finch/pkg/logger"
)

const debounceDelay = 100 * time.Millisecond

// Watcher re-imports skill files when they are written.
type Watcher struct {
	watcher  *fsnotify.Watcher
	importer *Importer
	dir      string
	stopCh   chan struct{}
	done     chan struct{}
	debounce map[string]*time.Timer
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopped  bool

	// onImport is called after each re-import attempt. Tests use it.
	onImport func(path string, err error)
}

// NewWatcher creates a watcher for dir.
func NewWatcher(importer *Importer, dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  w,
		importer: importer,
		dir:      dir,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. ctx bounds the imports, not the watcher's
// lifetime; call Stop to end it.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && IsSkillFile(event.Name) {
				w.handleEvent(ctx, event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Str("dir", w.dir).Msg("Skill watcher error")
		}
	}
}

// handleEvent imports path once writes to it have settled. Deleting a
// file keeps its skill.
func (w *Watcher) handleEvent(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if timer, ok := w.debounce[path]; ok && timer.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.debounce[path] = time.AfterFunc(debounceDelay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()

		s, err := w.importer.ImportFile(ctx, path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Skill file not imported")
		} else {
			logger.Info().Str("path", path).Str("skill", s.Name).Msg("Skill file re-imported")
		}
		if w.onImport != nil {
			w.onImport(path, err)
		}
	})
}

// Stop ends watching and waits for imports in flight.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	for path, timer := range w.debounce {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.debounce, path)
	}
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
	if started {
		<-w.done
	}
	w.wg.Wait()
}
