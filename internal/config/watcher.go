package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lanshare/internal/util/logger/sl"
)

const (
	DefaultDebounceDuration = 500 * time.Millisecond
	DefaultErrorBufferSize  = 16
)

var ErrInvalidPath = errors.New("invalid config path")

// WatcherConfig holds the reload settings.
type WatcherConfig struct {
	DebounceDuration time.Duration
	ErrorBufferSize  int
	Logger           *slog.Logger
}

// Watcher re-reads the config file whenever it changes on disk and
// hands the fresh Config to the reload callback. The parent directory
// is watched rather than the file itself, because editors replace
// config files instead of writing them in place.
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	onReload  func(*Config)
	errors    chan error
	log       *slog.Logger
	debouncer *Debouncer
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewWatcher(path string, onReload func(*Config), cfg WatcherConfig) (*Watcher, error) {
	if cfg.DebounceDuration == 0 {
		cfg.DebounceDuration = DefaultDebounceDuration
	}
	if cfg.ErrorBufferSize == 0 {
		cfg.ErrorBufferSize = DefaultErrorBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		watcher:   watcher,
		path:      abs,
		onReload:  onReload,
		errors:    make(chan error, cfg.ErrorBufferSize),
		log:       cfg.Logger,
		debouncer: NewDebouncer(cfg.DebounceDuration),
		stopChan:  make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	defer close(w.errors)

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldProcessEvent(event) {
				w.processEvent(event)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return abs == w.path
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	const op = "config.Watcher.processEvent"

	w.debouncer.Debounce(func() {
		cfg, err := Load(w.path)
		if err != nil {
			// A broken edit keeps the previous config in effect.
			w.handleError(fmt.Errorf("failed to reload config: %w", err))
			return
		}

		w.log.Info("config reloaded",
			slog.String("op", op),
			slog.String("path", w.path),
		)
		w.onReload(cfg)
	})
}

func (w *Watcher) handleError(err error) {
	select {
	case w.errors <- err:
	default:
		w.log.Warn("error buffer full, dropping error", sl.Err(err))
	}
}

func (w *Watcher) Close() error {
	close(w.stopChan)
	w.wg.Wait()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	return nil
}

func (w *Watcher) Errors() <-chan error {
	return w.errors
}
