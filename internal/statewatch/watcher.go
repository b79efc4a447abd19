// Package statewatch follows the persisted mode file so that changes made
// by one-shot commands in other processes reach live observers.
package statewatch

import (
	"fmt"
	"path/filepath"
	"sync"

	"suntheme/internal/clock"
	"suntheme/internal/history"
	"suntheme/internal/mode"
	"suntheme/internal/sink"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Publisher receives mode changes observed in the state file
type Publisher interface {
	Publish(e history.Entry)
}

// OwnWrites reports the mode this process last wrote to the state file.
// sink.StateFile implements it.
type OwnWrites interface {
	LastWritten() (mode.Mode, bool)
}

// Watcher publishes the state file's mode whenever the file changes
type Watcher struct {
	path      string
	publisher Publisher
	clock     clock.Clock
	logger    *zap.Logger
	own       OwnWrites

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher for the state file at path
func New(path string, publisher Publisher, clk clock.Clock, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:      filepath.Clean(path),
		publisher: publisher,
		clock:     clk,
		logger:    logger.Named("statewatch"),
		done:      make(chan struct{}),
	}
}

// IgnoreOwn skips changes whose mode matches what this process last wrote.
// Those are published by the writer with its own source.
func (w *Watcher) IgnoreOwn(own OwnWrites) *Watcher {
	w.own = own
	return w
}

// Start begins watching. The file's directory is watched rather than the
// file, since writers may replace it and the file may not exist yet.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("Watching state file", zap.String("path", w.path))
	return nil
}

// Stop ends watching and waits for the event loop to exit
func (w *Watcher) Stop() error {
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.publishCurrent()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) publishCurrent() {
	m, ok, err := sink.ReadMode(w.path)
	if err != nil {
		// Commonly a read racing a partial write; the next event retries.
		w.logger.Debug("Failed to read state file", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if w.own != nil {
		if written, ok := w.own.LastWritten(); ok && written == m {
			w.logger.Debug("Ignoring own state file write", zap.Stringer("mode", m))
			return
		}
	}
	w.publish(m)
}

func (w *Watcher) publish(m mode.Mode) {
	w.logger.Debug("State file changed", zap.Stringer("mode", m))
	w.publisher.Publish(history.NewEntry(m, history.SourceExternal, w.clock.Now()))
}
