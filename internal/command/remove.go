package command

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

// Remove deletes a local resource, or (when file is non-empty) a single
// content file inside a folder resource, refusing to remove anything still
// referenced by a surviving card, another resource, or a folder resource's
// own content files (§4.G Remove).
func (c *Commands) Remove(ctx context.Context, kind resource.Kind, identifier, file string) error {
	name := respath.Format(c.localPrefix(), string(kind), identifier)
	err := c.write(ctx, "remove "+name, func() error {
		if file != "" {
			return c.removeResourceFile(name, file)
		}

		if users := c.resources.Usage(name); len(users) > 0 {
			return inUseError(name, users)
		}
		if users := c.cardsReferencing(name); len(users) > 0 {
			return inUseError(name, users)
		}
		if users := c.filesReferencing(name); len(users) > 0 {
			return inUseError(name, users)
		}

		if err := c.resources.Delete(name); err != nil {
			return err
		}
		return c.engine.HandleResourceRemoved(ctx, name)
	})
	if err != nil {
		return err
	}
	c.emit(Event{Kind: ResourceChanged, Name: name})
	return nil
}

func inUseError(name string, users []string) error {
	return errkind.New(errkind.Conflict, errkind.CodeResourceInUse, name+" is still referenced by "+strings.Join(users, ", "))
}

func (c *Commands) removeResourceFile(name, file string) error {
	obj, err := c.resources.ByName(name)
	if err != nil {
		return err
	}
	if obj.ReadOnly {
		return errkind.New(errkind.Policy, errkind.CodeReadOnlyModule, "module resources are read-only: "+name)
	}
	if !obj.Kind.IsFolder() {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, name+" is not a folder resource")
	}
	folder := c.layout.LocalResourceTypeFolder(string(obj.Kind))
	dir := c.layout.FolderResourcePath(folder, obj.Identifier)
	path := filepath.Join(dir, file)
	if err := c.fs.Remove(path); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot remove "+path)
	}
	return c.resources.Changed()
}

// cardsReferencing returns the keys of every project card whose metadata
// mentions name verbatim (e.g. a cardType or a customFields field name).
func (c *Commands) cardsReferencing(name string) []string {
	all, err := c.cards.Cards("")
	if err != nil {
		return nil
	}
	var users []string
	for _, rec := range all {
		if metadataReferences(rec.Metadata, name) {
			users = append(users, rec.Key)
		}
	}
	sort.Strings(users)
	return users
}

func metadataReferences(v any, name string) bool {
	switch t := v.(type) {
	case string:
		return t == name
	case []any:
		for _, e := range t {
			if metadataReferences(e, name) {
				return true
			}
		}
	case map[string]any:
		for _, vv := range t {
			if metadataReferences(vv, name) {
				return true
			}
		}
	}
	return false
}

// filesReferencing returns the names of every folder resource (template,
// report, graphModel, graphView, calculation) whose content files mention
// name verbatim, covering .lp/.hbs references Usage's document-only scan
// doesn't see.
func (c *Commands) filesReferencing(name string) []string {
	var users []string
	for _, kind := range []resource.Kind{resource.Template, resource.Report, resource.GraphModel, resource.GraphView, resource.Calculation} {
		for _, obj := range c.resources.ResourceTypes(kind, resource.All) {
			for _, content := range obj.Files {
				if strings.Contains(string(content), name) {
					users = append(users, obj.Name())
					break
				}
			}
		}
	}
	sort.Strings(users)
	return users
}
