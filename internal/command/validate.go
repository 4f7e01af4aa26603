package command

import (
	"context"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

// Violation is one schema non-conformance found by ValidateProject, naming
// the resource or card it belongs to.
type Violation struct {
	Resource string
	Message  string
}

// ValidateProject re-validates every cached resource and every project
// card's metadata against its bundled schema, aggregating every violation
// found rather than stopping at the first (SPEC_FULL.md's enrichment of
// §4.G Validate.project). It does not mutate anything, so it runs without
// the writer lock.
func (c *Commands) ValidateProject() ([]Violation, error) {
	var violations []Violation

	for _, kind := range resource.Kinds {
		for _, obj := range c.resources.ResourceTypes(kind, resource.All) {
			if err := c.resources.Validate(obj.Name(), nil); err != nil {
				violations = append(violations, Violation{Resource: obj.Name(), Message: err.Error()})
			}
		}
	}

	if c.validator != nil {
		cards, err := c.cards.Cards("")
		if err != nil {
			return nil, err
		}
		for _, rec := range cards {
			if err := c.validator.Validate(schema.CardBase, rec.Metadata); err != nil {
				violations = append(violations, Violation{Resource: rec.Key, Message: err.Error()})
			}
		}
	}

	return violations, nil
}

// UpdateSchema runs the configured migration runner up to targetVersion (or
// the latest known version, if empty), then rebuilds every cache and the
// calculation graph from the migrated disk layout (§4.G Update.schema, the
// user-facing entry point into §4.L's migration runner).
func (c *Commands) UpdateSchema(ctx context.Context, targetVersion string) error {
	if c.migrator == nil {
		return errkind.New(errkind.Engine, errkind.CodeMigrationFailed, "no migration runner configured")
	}
	err := c.write(ctx, "update schema to "+targetVersion, func() error {
		if err := c.migrator.Migrate(ctx, targetVersion); err != nil {
			return err
		}
		if err := c.resources.Populate(); err != nil {
			return err
		}
		if err := c.cards.Populate(); err != nil {
			return err
		}
		return c.engine.Generate(ctx, c.resources, c.cards, nil)
	})
	if err != nil {
		return err
	}
	c.emit(Event{Kind: ResourceChanged, Name: "schema"})
	return nil
}
