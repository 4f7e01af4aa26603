// Package watcher implements §4.I: a recursive filesystem watch rooted at
// the project folder, invalidating the resource and card caches as changes
// are observed. It is grounded on the teacher's watchCache() poll loop
// (internal/xpls/dispatcher.go), which already implements exactly the
// "falls back to periodic re-scan" design the spec calls for (§9).
package watcher

import (
	"time"

	radovskyb "github.com/radovskyb/watcher"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
)

// Invalidator is called with the changed path for every filesystem event.
// Duplicate calls are tolerated since §4.D/§4.E invalidators are idempotent.
type Invalidator func(path string) error

// Watcher recursively watches a project root and invokes Invalidator on
// every filesystem event. Rename events are not special-cased here: renames
// are owned by the Rename command (§4.I), and the resulting create/remove
// pair still triggers invalidation through the ordinary path.
type Watcher struct {
	w        *radovskyb.Watcher
	log      logging.Logger
	interval time.Duration
	done     chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger overrides the no-op default logger.
func WithLogger(l logging.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithPollInterval overrides the default 100ms poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// New constructs a Watcher rooted at root, recursively watching for changes
// and invoking onChange for each one. The watcher is not started until
// Start is called.
func New(root string, onChange Invalidator, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		w:        radovskyb.New(),
		log:      logging.NewNopLogger(),
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	w.w.SetMaxEvents(1)

	if err := w.w.AddRecursive(root); err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeWatcherFailed, err, "cannot watch "+root)
	}

	go w.loop(onChange)
	return w, nil
}

func (w *Watcher) loop(onChange Invalidator) {
	for {
		select {
		case event := <-w.w.Event:
			if err := onChange(event.Path); err != nil {
				w.log.Info("invalidation failed after filesystem change", "path", event.Path, "error", err)
			}
		case err := <-w.w.Error:
			w.log.Info("content watcher error, closing", "error", err)
			w.w.Close()
		case <-w.w.Closed:
			close(w.done)
			return
		}
	}
}

// Start begins polling for changes. It blocks until Close is called or the
// underlying poll loop errors, so callers typically run it in a goroutine.
func (w *Watcher) Start() error {
	if err := w.w.Start(w.interval); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeWatcherFailed, err, "content watcher failed to start")
	}
	return nil
}

// Close stops the watcher and waits for its event loop to exit.
func (w *Watcher) Close() {
	w.w.Close()
	<-w.done
}
