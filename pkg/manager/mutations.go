package manager

import (
	"context"

	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

// CreateCard clones templateName's card subtree under parentKey (or the
// project root when empty), returning the newly minted card keys.
func (m *Manager) CreateCard(ctx context.Context, templateName, parentKey string) Envelope {
	keys, err := m.cmds.CreateCard(ctx, templateName, parentKey)
	if err != nil {
		return fail(err)
	}
	return ok(keys)
}

// CreateAttachment uploads a single attachment file onto cardKey.
func (m *Manager) CreateAttachment(ctx context.Context, cardKey, filename string, data []byte) Envelope {
	if err := m.cmds.CreateAttachment(ctx, cardKey, filename, data); err != nil {
		return fail(err)
	}
	return noContent()
}

// CreateAttachments uploads a batch of attachment files onto cardKey,
// reporting 207 when some (but not all) files failed to persist.
func (m *Manager) CreateAttachments(ctx context.Context, cardKey string, files map[string][]byte) Envelope {
	result, err := m.cmds.CreateAttachments(ctx, cardKey, files)
	if err != nil {
		return fail(err)
	}
	if len(result.Failed) == 0 {
		return ok(result)
	}
	if len(result.Succeeded) == 0 {
		return Envelope{StatusCode: StatusBadRequest, Payload: result, Message: "every attachment in the batch failed to persist"}
	}
	return Envelope{StatusCode: StatusPartialSuccess, Payload: result}
}

// CreateResource persists a brand-new local resource.
func (m *Manager) CreateResource(ctx context.Context, kind resource.Kind, identifier string, doc map[string]any, files map[string][]byte) Envelope {
	obj, err := m.cmds.CreateResource(ctx, kind, identifier, doc, files)
	if err != nil {
		return fail(err)
	}
	return ok(obj)
}

// EditCardContent rewrites a card's AsciiDoc body.
func (m *Manager) EditCardContent(ctx context.Context, cardKey, content string) Envelope {
	if err := m.cmds.EditCardContent(ctx, cardKey, content); err != nil {
		return fail(err)
	}
	return noContent()
}

// EditCardMetadata sets (or, when value is nil, clears) one custom field on
// a card.
func (m *Manager) EditCardMetadata(ctx context.Context, cardKey, fieldName string, value any) Envelope {
	if err := m.cmds.EditCardMetadata(ctx, cardKey, fieldName, value); err != nil {
		return fail(err)
	}
	return noContent()
}

// MoveCard reparents a card under newParentKey (or the project root, when
// empty).
func (m *Manager) MoveCard(ctx context.Context, cardKey, newParentKey string) Envelope {
	if err := m.cmds.MoveCard(ctx, cardKey, newParentKey); err != nil {
		return fail(err)
	}
	return noContent()
}

// MoveRankByIndex rebalances a card's rank to the given 0-based index among
// its current siblings.
func (m *Manager) MoveRankByIndex(ctx context.Context, cardKey string, index int) Envelope {
	if err := m.cmds.MoveRankByIndex(ctx, cardKey, index); err != nil {
		return fail(err)
	}
	return noContent()
}

// TransitionCard runs a named workflow transition on a card.
func (m *Manager) TransitionCard(ctx context.Context, cardKey, transitionName string) Envelope {
	if err := m.cmds.TransitionCard(ctx, cardKey, transitionName); err != nil {
		return fail(err)
	}
	return noContent()
}

// RenameProject changes the project's card-key prefix project-wide.
func (m *Manager) RenameProject(ctx context.Context, newPrefix string) Envelope {
	if err := m.cmds.RenameProject(ctx, newPrefix); err != nil {
		return fail(err)
	}
	return noContent()
}

// Remove deletes a local resource, or (when file is non-empty) a single
// content file inside a folder resource.
func (m *Manager) Remove(ctx context.Context, kind resource.Kind, identifier, file string) Envelope {
	if err := m.cmds.Remove(ctx, kind, identifier, file); err != nil {
		return fail(err)
	}
	return noContent()
}

// ImportModule registers and copies in a foreign project's resources as a
// read-only module.
func (m *Manager) ImportModule(ctx context.Context, sourcePath, prefix string) Envelope {
	if err := m.cmds.ImportModule(ctx, sourcePath, prefix); err != nil {
		return fail(err)
	}
	return noContent()
}

// RemoveModule unregisters and deletes a previously imported module.
func (m *Manager) RemoveModule(ctx context.Context, prefix string) Envelope {
	if err := m.cmds.RemoveModule(ctx, prefix); err != nil {
		return fail(err)
	}
	return noContent()
}

// ValidateProject re-validates every resource and card against its schema,
// returning every violation found (an empty list is a clean project).
func (m *Manager) ValidateProject() Envelope {
	violations, err := m.cmds.ValidateProject()
	if err != nil {
		return fail(err)
	}
	return ok(violations)
}

// UpdateSchema runs the configured migration chain up to targetVersion (or
// the latest known version, when empty).
func (m *Manager) UpdateSchema(ctx context.Context, targetVersion string) Envelope {
	if err := m.cmds.UpdateSchema(ctx, targetVersion); err != nil {
		return fail(err)
	}
	return noContent()
}
