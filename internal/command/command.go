// Package command implements §4.G: the atomic mutation layer sitting above
// the resource cache, card cache and calculation engine. Every mutating
// operation here is a thin, writer-lock-decorated imperative flow in the
// style of the teacher's cmd/up/project/init.go -- validate, touch the
// filesystem, update the in-memory caches, then (only on success) tell the
// calculation engine what changed and emit an event.
package command

import (
	"context"
	"sync"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/calculation"
	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/lock"
	"github.com/CyberismoCom/cyberismo-core/internal/project"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

// EventKind names one of the events a successful command may emit (§4.G).
type EventKind string

const (
	CardsAdded      EventKind = "CardsAdded"
	CardChanged     EventKind = "CardChanged"
	CardMoved       EventKind = "CardMoved"
	CardDeleted     EventKind = "CardDeleted"
	ResourceChanged EventKind = "ResourceChanged"
	ModuleImported  EventKind = "ModuleImported"
	ModuleRemoved   EventKind = "ModuleRemoved"
)

// Event is emitted once a write command has fully committed.
type Event struct {
	Kind  EventKind
	Cards []string
	Name  string
}

// Listener receives every event a Commands instance emits. Listeners run
// synchronously on the committing goroutine, after the writer lock has
// already been released.
type Listener func(Event)

// Commands is the command layer's single entry point: it holds every
// collaborator a write operation needs and serialises all of them through
// one project-scoped writer lock (§4.K).
type Commands struct {
	fs        afero.Fs
	layout    respath.Layout
	validator *schema.Validator

	project   *project.Store
	resources *resource.Handler
	cards     *card.Cache
	engine    *calculation.Engine

	rw *lock.RWLock

	mu        sync.Mutex
	listeners []Listener
	migrator  MigrationRunner
}

// MigrationRunner abstracts the schema migration runner (§4.L), kept as an
// interface here so this package doesn't depend on internal/migration;
// callers wire a concrete runner in with SetMigrationRunner.
type MigrationRunner interface {
	Migrate(ctx context.Context, targetVersion string) error
}

// SetMigrationRunner installs the migration runner Update.schema delegates
// to. Not safe to call concurrently with a running command.
func (c *Commands) SetMigrationRunner(m MigrationRunner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.migrator = m
}

// New wires together a Commands instance over already-populated
// collaborators; callers are responsible for constructing and populating
// each one (resource.Handler.Populate, card.Cache.Populate, calculation.
// Engine.Generate) before issuing commands against it.
func New(
	fs afero.Fs,
	layout respath.Layout,
	validator *schema.Validator,
	proj *project.Store,
	resources *resource.Handler,
	cards *card.Cache,
	engine *calculation.Engine,
) *Commands {
	return &Commands{
		fs:        fs,
		layout:    layout,
		validator: validator,
		project:   proj,
		resources: resources,
		cards:     cards,
		engine:    engine,
		rw:        lock.New(),
	}
}

// OnEvent registers a listener invoked after every successful write
// command. It is not safe to call concurrently with a running command.
func (c *Commands) OnEvent(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Commands) emit(e Event) {
	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range listeners {
		l(e)
	}
}

// write wraps a mutating operation with the project writer lock, honoring
// ctx cancellation while waiting for the lock (§5 "writers ... cancelled at
// safe points"). label is a human-readable diagnostic tag for the
// operation, matching §4.K's "writer-lock decorator keyed by a
// human-readable description."
func (c *Commands) write(ctx context.Context, label string, fn func() error) error {
	if err := c.rw.LockContext(ctx); err != nil {
		return err
	}
	defer c.rw.Unlock()
	return withLabel(label, fn)
}

// Read wraps a non-mutating operation with the project reader lock, so a
// concurrent read never observes a write command mid-commit (§8 testable
// property 6, "no partial observation").
func (c *Commands) Read(fn func() error) error {
	c.rw.RLock()
	defer c.rw.RUnlock()
	return fn()
}

// withLabel recovers a panicking command body into a CoreError carrying the
// operation's diagnostic label, mirroring lock.Writer's own recovery
// behaviour for the context-aware path.
func withLabel(label string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errkind.New(errkind.Engine, errkind.CodeSolverFailure, "panic during "+label)
		}
	}()
	return fn()
}

// Resources returns the resource cache this Commands instance mutates,
// for read-only use by a higher-level facade (e.g. pkg/manager's Show).
func (c *Commands) Resources() *resource.Handler { return c.resources }

// Cards returns the card cache this Commands instance mutates, for
// read-only use by a higher-level facade.
func (c *Commands) Cards() *card.Cache { return c.cards }

// Engine returns the calculation engine this Commands instance keeps in
// sync, for read-only use (queries, graph rendering) by a higher-level
// facade.
func (c *Commands) Engine() *calculation.Engine { return c.engine }

// Project returns the configuration store this Commands instance mutates,
// for read-only use by a higher-level facade.
func (c *Commands) Project() *project.Store { return c.project }

// Layout returns the path layout this Commands instance was constructed
// with.
func (c *Commands) Layout() respath.Layout { return c.layout }

// localPrefix is the project's current card-key prefix.
func (c *Commands) localPrefix() string {
	return c.project.Config().CardKeyPrefix
}
