// Package lock implements §4.K: the project-scoped reader/writer lock with
// writer preference, the writer-lock decorator commands wrap themselves in,
// and the calculation engine's independent solver mutex.
package lock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
)

// RWLock is a reader/writer lock with writer preference: once a writer is
// waiting, new readers queue behind it rather than starving it indefinitely
// (§5 "Project RW lock").
type RWLock struct {
	mu       sync.Mutex
	cond     *sync.Cond
	readers  int
	writer   bool
	writersQ int
}

// New constructs an unlocked RWLock.
func New() *RWLock {
	l := &RWLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// RLock blocks until a read lock can be acquired, honoring writer
// preference: it will not proceed while a writer holds the lock or is
// queued ahead of it.
func (l *RWLock) RLock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writer || l.writersQ > 0 {
		l.cond.Wait()
	}
	l.readers++
}

// RUnlock releases a read lock.
func (l *RWLock) RUnlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readers--
	if l.readers == 0 {
		l.cond.Broadcast()
	}
}

// Lock blocks until the exclusive write lock can be acquired.
func (l *RWLock) Lock() {
	l.mu.Lock()
	l.writersQ++
	for l.writer || l.readers > 0 {
		l.cond.Wait()
	}
	l.writersQ--
	l.writer = true
	l.mu.Unlock()
}

// Unlock releases the write lock.
func (l *RWLock) Unlock() {
	l.mu.Lock()
	l.writer = false
	l.mu.Unlock()
	l.cond.Broadcast()
}

// LockContext acquires the write lock, returning errkind.Cancelled if ctx is
// done first. Readers are not interruptible (§5), writers may be cancelled
// "at safe points" — here, before acquisition begins.
func (l *RWLock) LockContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errkind.Wrap(errkind.Concurrency, errkind.CodeCancelled, err, "writer lock wait cancelled")
	}

	done := make(chan struct{})
	go func() {
		l.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The goroutine above will still complete and leave the lock held;
		// since the caller is abandoning the operation, release it again
		// once acquired so the lock isn't stuck held forever.
		go func() {
			<-done
			l.Unlock()
		}()
		return errkind.Wrap(errkind.Concurrency, errkind.CodeCancelled, ctx.Err(), "writer lock wait cancelled")
	}
}

// Writer wraps a mutating operation with the writer lock and a diagnostic
// label, matching §4.K's "writer-lock decorator keyed by a human-readable
// description."
func Writer(l *RWLock, label string, fn func() error) (err error) {
	l.Lock()
	defer l.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = errkind.New(errkind.Engine, errkind.CodeSolverFailure, "panic during "+label)
		}
	}()
	return fn()
}

// Reader wraps a read-only operation with the reader lock.
func Reader(l *RWLock, fn func() error) error {
	l.RLock()
	defer l.RUnlock()
	return fn()
}

// SolverMutex is the calculation engine's independent mutex guarding
// generate() and each run*/setProgram batch, kept separate from the project
// RW lock so a write transaction's filesystem phase doesn't serialize
// against unrelated solver reads (§5 "Solver mutex"). It is built on a
// weighted semaphore of size 1 rather than sync.Mutex so solver calls can be
// cancelled via context while waiting, matching "solver calls ... must be
// interruptible via cancellation" (§5).
type SolverMutex struct {
	sem *semaphore.Weighted
}

// NewSolverMutex constructs a ready-to-use SolverMutex.
func NewSolverMutex() *SolverMutex {
	return &SolverMutex{sem: semaphore.NewWeighted(1)}
}

// Lock acquires the solver mutex, blocking until available.
func (s *SolverMutex) Lock() { _ = s.sem.Acquire(context.Background(), 1) }

// Unlock releases the solver mutex.
func (s *SolverMutex) Unlock() { s.sem.Release(1) }

// With runs fn while holding the solver mutex.
func (s *SolverMutex) With(fn func() error) error {
	s.Lock()
	defer s.Unlock()
	return fn()
}

// WithContext runs fn while holding the solver mutex, returning
// errkind.Cancelled if ctx is done before the mutex is acquired.
func (s *SolverMutex) WithContext(ctx context.Context, fn func() error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errkind.Wrap(errkind.Concurrency, errkind.CodeCancelled, err, "solver mutex wait cancelled")
	}
	defer s.sem.Release(1)
	return fn()
}
