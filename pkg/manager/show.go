package manager

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

// entity names §6's show(entity, name?, opts) dispatches on.
const (
	entityProject    = "project"
	entityModule     = "module"
	entityModules    = "modules"
	entityCard       = "card"
	entityCards      = "cards"
	entityCardType   = "cardType"
	entityCardTypes  = "cardTypes"
	entityFieldType  = "fieldType"
	entityFieldTypes = "fieldTypes"
	entityLinkType   = "linkType"
	entityLinkTypes  = "linkTypes"
	entityWorkflow   = "workflow"
	entityWorkflows  = "workflows"
	entityTemplate   = "template"
	entityTemplates  = "templates"
	entityReport     = "report"
	entityReports    = "reports"
	entityAttachment = "attachment"
	entityLabels     = "labels"
)

// entityKinds maps a singular/plural show entity name onto its resource.Kind.
var entityKinds = map[string]resource.Kind{
	entityCardType:   resource.CardType,
	entityCardTypes:  resource.CardType,
	entityFieldType:  resource.FieldType,
	entityFieldTypes: resource.FieldType,
	entityLinkType:   resource.LinkType,
	entityLinkTypes:  resource.LinkType,
	entityWorkflow:   resource.Workflow,
	entityWorkflows:  resource.Workflow,
	entityTemplate:   resource.Template,
	entityTemplates:  resource.Template,
	entityReport:     resource.Report,
	entityReports:    resource.Report,
}

// Show dispatches a read-only lookup by entity kind, wrapped in the project
// reader lock so it never observes a write command mid-commit (§6).
func (m *Manager) Show(entity, name string, opts map[string]any) Envelope {
	var result Envelope
	err := m.cmds.Read(func() error {
		result = m.show(entity, name, opts)
		return nil
	})
	if err != nil {
		return fail(err)
	}
	return result
}

func (m *Manager) show(entity, name string, opts map[string]any) Envelope {
	switch entity {
	case entityProject:
		return ok(m.project.Config())
	case entityModule:
		return m.showModule(name)
	case entityModules:
		return ok(m.project.Config().Modules)
	case entityCard:
		return m.showCard(name)
	case entityCards:
		return m.showCards(name)
	case entityAttachment:
		return m.showAttachment(name, opts)
	case entityLabels:
		return ok(m.labels())
	default:
		if kind, ok := entityKinds[entity]; ok {
			if name == "" {
				return ok(m.resources.ResourceTypes(kind, resource.All))
			}
			return m.showResource(name)
		}
		return Envelope{StatusCode: StatusBadRequest, Message: "unknown entity: " + entity}
	}
}

func (m *Manager) showResource(name string) Envelope {
	obj, err := m.resources.ByName(name)
	if err != nil {
		return fail(err)
	}
	return ok(obj)
}

func (m *Manager) showModule(prefix string) Envelope {
	for _, mod := range m.project.Config().Modules {
		if mod.Name == prefix {
			return ok(mod)
		}
	}
	return Envelope{StatusCode: StatusBadRequest, Message: "no such module: " + prefix}
}

func (m *Manager) showCard(key string) Envelope {
	rec, err := m.cards.Find(key)
	if err != nil {
		return fail(err)
	}
	return ok(rec)
}

func (m *Manager) showCards(root string) Envelope {
	recs, err := m.cards.Cards(root)
	if err != nil {
		return fail(err)
	}
	return ok(recs)
}

func (m *Manager) showAttachment(cardKey string, opts map[string]any) Envelope {
	filename, _ := opts["file"].(string)
	if filename == "" {
		rec, err := m.cards.Find(cardKey)
		if err != nil {
			return fail(err)
		}
		return ok(rec.Attachments)
	}
	rec, err := m.cards.Find(cardKey)
	if err != nil {
		return fail(err)
	}
	path := filepath.Join(respath.CardAttachmentsFolder(rec.Path), filename)
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return fail(errkind.Wrap(errkind.NotFound, errkind.CodeAttachmentNotFound, err, "attachment not found: "+filename))
	}
	return ok(data)
}

// labels collects the distinct values of the "labels" metadata field across
// every project card and every template's cards (local and module templates
// alike), for the aggregate labels() show call.
func (m *Manager) labels() []string {
	recs, err := m.cards.Cards("")
	if err != nil {
		return nil
	}
	for _, obj := range m.resources.ResourceTypes(resource.Template, resource.All) {
		recs = append(recs, m.cards.TemplateCards(obj.Name())...)
	}
	seen := map[string]bool{}
	var out []string
	for _, rec := range recs {
		raw, ok := rec.Metadata["labels"].([]any)
		if !ok {
			continue
		}
		for _, v := range raw {
			s, ok := v.(string)
			if !ok || s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
