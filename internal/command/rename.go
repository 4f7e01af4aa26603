package command

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

// RenameProject changes the project's card-key prefix, renaming every local
// resource and every project card to the new prefix, rewriting prefix
// references embedded in card content and resource content files, then
// rebuilding every cache and the calculation graph from the new disk layout
// (§4.G Rename.project). newPrefix must differ from the current prefix.
func (c *Commands) RenameProject(ctx context.Context, newPrefix string) error {
	oldPrefix := c.localPrefix()
	if newPrefix == "" {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "new prefix must not be empty")
	}
	if newPrefix == oldPrefix {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "new prefix is the same as the current prefix")
	}

	err := c.write(ctx, "rename project "+oldPrefix+" to "+newPrefix, func() error {
		if err := c.project.SetCardPrefix(newPrefix); err != nil {
			return err
		}
		if err := c.project.Save(); err != nil {
			return err
		}

		for _, kind := range resource.Kinds {
			for _, obj := range c.resources.ResourceTypes(kind, resource.Local) {
				oldName := obj.Name()
				newName := newPrefix + "/" + string(kind) + "/" + obj.Identifier
				if err := c.resources.Rename(oldName, newName); err != nil {
					return err
				}
			}
		}

		if err := renameCardTree(c.fs, c.layout.CardRoot(), oldPrefix, newPrefix); err != nil {
			return err
		}

		if err := rewritePrefixReferences(c.fs, c.layout.CardRoot(), oldPrefix, newPrefix); err != nil {
			return err
		}
		if err := rewritePrefixReferences(c.fs, c.layout.LocalResourcesFolder(), oldPrefix, newPrefix); err != nil {
			return err
		}

		c.resources.SetLocalPrefix(newPrefix)
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
	c.emit(Event{Kind: ResourceChanged, Name: newPrefix})
	return nil
}

// renameCardTree walks dir top-down, renaming every card folder whose name
// starts with oldPrefix+"_" to the same suffix under newPrefix, then
// recursing into the renamed folder's children subfolder -- a card's own
// directory name doubles as its key (card.Cache's walkInto convention).
func renameCardTree(fsys afero.Fs, dir, oldPrefix, newPrefix string) error {
	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot stat "+dir)
	}
	if !exists {
		return nil
	}
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read "+dir)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		oldKey := e.Name()
		if !strings.HasPrefix(oldKey, oldPrefix+"_") {
			continue
		}
		newKey := newPrefix + strings.TrimPrefix(oldKey, oldPrefix)
		oldPath := filepath.Join(dir, oldKey)
		newPath := filepath.Join(dir, newKey)
		if err := fsys.Rename(oldPath, newPath); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot rename "+oldPath+" to "+newPath)
		}

		childDir := filepath.Join(newPath, "c")
		if exists, _ := afero.DirExists(fsys, childDir); exists {
			if err := renameCardTree(fsys, childDir, oldPrefix, newPrefix); err != nil {
				return err
			}
		}
	}
	return nil
}

// rewritePrefixReferences replaces every literal "oldPrefix/" occurrence with
// "newPrefix/" in every .adoc, .hbs, .json and .lp file under root, covering
// resource references embedded in card content, Handlebars templates,
// resource documents and calculation logic programs.
func rewritePrefixReferences(fsys afero.Fs, root, oldPrefix, newPrefix string) error {
	old := oldPrefix + "/"
	replacement := newPrefix + "/"

	exists, err := afero.DirExists(fsys, root)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot stat "+root)
	}
	if !exists {
		return nil
	}

	return afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".adoc", ".hbs", ".json", ".lp":
		default:
			return nil
		}

		b, err := afero.ReadFile(fsys, path)
		if err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read "+path)
		}
		if !strings.Contains(string(b), old) {
			return nil
		}
		rewritten := strings.ReplaceAll(string(b), old, replacement)
		if err := afero.WriteFile(fsys, path, []byte(rewritten), info.Mode()); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write "+path)
		}
		return nil
	})
}
