package engine

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// reloadDebounce coalesces bursts of filesystem events (editors write
// several times per save) into one rebuild.
const reloadDebounce = 100 * time.Millisecond

// Reload outcomes recorded in metrics.
const (
	reloadSuccess = "success"
	reloadFailure = "failure"
)

// routeWatcher follows every directory of the route tree. New
// directories picked up by a reload are added on the next apply.
type routeWatcher struct {
	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}
}

// Stop closes the watcher and waits for its loop to exit.
func (w *routeWatcher) Stop() error {
	close(w.stopCh)
	err := w.fsw.Close()
	<-w.doneCh
	return err
}

// ensureWatcherLocked starts the watch loop on first use and keeps
// the watched directory set in step with the tree. Caller holds e.mu.
func (e *Engine) ensureWatcherLocked(dirs []string) error {
	if e.closed {
		return nil
	}
	if e.watcher == nil {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		w := &routeWatcher{
			fsw:    fsw,
			stopCh: make(chan struct{}),
			doneCh: make(chan struct{}),
		}
		e.watcher = w
		go e.watchLoop(w)
	}

	for _, dir := range dirs {
		if err := e.watcher.fsw.Add(dir); err != nil {
			e.logger.Warn("cannot watch route directory",
				observability.String("dir", dir),
				observability.Error(err),
			)
		}
	}
	return nil
}

// watchLoop debounces filesystem events into rebuilds, additionally
// throttled to one rebuild per second so a busy sync job cannot make
// the engine spin on discovery.
func (e *Engine) watchLoop(w *routeWatcher) {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerCh <-chan time.Time

	arm := func(d time.Duration) {
		if timer == nil {
			timer = time.NewTimer(d)
			timerCh = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			arm(reloadDebounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			e.logger.Error("route watcher error", observability.Error(err))

		case <-timerCh:
			if !e.reloadRate.Allow() {
				arm(time.Second)
				continue
			}
			e.reloadFromWatch()
		}
	}
}

func (e *Engine) reloadFromWatch() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loadLocked(context.Background()); err != nil {
		e.logger.Error("route reload failed, previous table keeps serving",
			observability.Error(err),
		)
		e.metrics.RecordReload(reloadFailure)
		return
	}
	e.metrics.RecordReload(reloadSuccess)
	e.logger.Info("routes reloaded")
}
