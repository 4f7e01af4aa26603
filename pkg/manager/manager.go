// Package manager implements §6: the CommandManager facade a host process
// (a CLI, an editor extension, an HTTP server) drives instead of talking to
// the internal packages directly. It is a per-path handle explicitly
// constructed by the caller -- there is no package-level singleton (§9
// "Global singletons... becomes a per-path handle explicitly constructed by
// the host").
package manager

import (
	"context"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/calculation"
	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/command"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/migration"
	"github.com/CyberismoCom/cyberismo-core/internal/project"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

// Envelope is the synchronous wrapper result every CommandManager method
// returns (§6): a status code, an optional payload, and an optional
// human-readable message (always populated on a non-2xx result).
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Payload    any    `json:"payload,omitempty"`
	Message    string `json:"message,omitempty"`
}

const (
	StatusOK             = 200
	StatusNoContent      = 204
	StatusPartialSuccess = 207
	StatusBadRequest     = 400
	StatusForbidden      = 403
	StatusInternal       = 500
)

// Manager is the CommandManager facade for a single project rooted at a
// filesystem path. Construct one with New (or Open, over an existing
// afero.Fs) per project the host process wants to work with.
type Manager struct {
	fs     afero.Fs
	layout respath.Layout

	cmds      *command.Commands
	resources *resource.Handler
	cards     *card.Cache
	engine    *calculation.Engine
	project   *project.Store
}

// New opens (or initializes the in-memory view of) the project rooted at
// path on the OS filesystem.
func New(path string) (*Manager, error) {
	return Open(afero.NewOsFs(), path)
}

// Open opens the project rooted at path on fs, populating every cache and
// the calculation engine and wiring in the engine's built-in migration
// chain (§4.L's DefaultSteps) before returning.
func Open(fs afero.Fs, path string) (*Manager, error) {
	layout := respath.NewLayout(path)
	validator, err := schema.New()
	if err != nil {
		return nil, err
	}

	projStore, err := project.NewStore(fs, layout, validator)
	if err != nil {
		return nil, err
	}

	resources := resource.New(fs, layout, validator, projStore.Config().CardKeyPrefix, nil)
	if err := resources.Populate(); err != nil {
		return nil, err
	}

	cards := card.New(fs, layout)
	if err := cards.Populate(); err != nil {
		return nil, err
	}
	if err := populateTemplates(cards, resources, layout, projStore.Config().CardKeyPrefix); err != nil {
		return nil, err
	}

	engine := calculation.New()
	if err := engine.Generate(context.Background(), resources, cards, nil); err != nil {
		return nil, err
	}

	cmds := command.New(fs, layout, validator, projStore, resources, cards, engine)
	cmds.SetMigrationRunner(migration.New(fs, layout, projStore, migration.DefaultSteps()...))

	return &Manager{
		fs:        fs,
		layout:    layout,
		cmds:      cmds,
		resources: resources,
		cards:     cards,
		engine:    engine,
		project:   projStore,
	}, nil
}

// OnEvent registers a listener invoked after every successful write
// command, forwarding to the underlying Commands instance (§4.G events).
func (m *Manager) OnEvent(l command.Listener) { m.cmds.OnEvent(l) }

// populateTemplates hydrates the card cache's per-template partitions for
// every template resource the handler knows about (local and module),
// mirroring the folder-resource path logic resource.Handler keeps private
// to itself (§9 "no cycles at ownership level" -- this package, not
// internal/resource or internal/card, is the one allowed to know about
// both).
func populateTemplates(cards *card.Cache, resources *resource.Handler, layout respath.Layout, localPrefix string) error {
	for _, obj := range resources.ResourceTypes(resource.Template, resource.All) {
		folder := layout.LocalResourceTypeFolder(string(resource.Template))
		if obj.Prefix != localPrefix {
			folder = layout.ModuleResourceTypeFolder(obj.Prefix, string(resource.Template))
		}
		dir := layout.FolderResourcePath(folder, obj.Identifier)
		root := respath.CardChildrenFolder(dir)
		if err := cards.PopulateTemplate(obj.Name(), root); err != nil {
			return err
		}
	}
	return nil
}

// ok wraps a successful payload in a 200 envelope.
func ok(payload any) Envelope { return Envelope{StatusCode: StatusOK, Payload: payload} }

// noContent is the 204 envelope for a successful operation with nothing to
// return.
func noContent() Envelope { return Envelope{StatusCode: StatusNoContent} }

// fail classifies err into the §6 status codes via its errkind.Kind:
// Policy -> 403, InvalidInput/NotFound/Conflict/Schema -> 400, everything
// else (Engine/IO/Concurrency/SchemaVersion, or an unclassified error) -> 500.
func fail(err error) Envelope {
	kind, ok := errkind.KindOf(err)
	if !ok {
		return Envelope{StatusCode: StatusInternal, Message: err.Error()}
	}
	switch kind {
	case errkind.Policy:
		return Envelope{StatusCode: StatusForbidden, Message: err.Error()}
	case errkind.InvalidInput, errkind.NotFound, errkind.Conflict, errkind.Schema:
		return Envelope{StatusCode: StatusBadRequest, Message: err.Error()}
	default:
		return Envelope{StatusCode: StatusInternal, Message: err.Error()}
	}
}
