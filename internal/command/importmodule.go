package command

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/project"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

// ImportModule copies a foreign project's resources under
// .cards/modules/<prefix>/, registering the module in cardsConfig.json and
// rebuilding the resource cache and calculation graph so the module's
// resources become visible (§4.G Import.module). prefix defaults to the
// source project's own cardKeyPrefix when empty. Importing a module whose
// prefix collides with the local prefix or an already-imported module is
// rejected.
func (c *Commands) ImportModule(ctx context.Context, sourcePath, prefix string) error {
	err := c.write(ctx, "import module from "+sourcePath, func() error {
		sourceLayout := respath.NewLayout(sourcePath)
		cfg, err := project.Extract(project.FileSource{FS: c.fs, Path: sourceLayout.ConfigFile()})
		if err != nil {
			return err
		}

		if prefix == "" {
			prefix = cfg.CardKeyPrefix
		}
		if prefix == c.localPrefix() {
			return errkind.New(errkind.Conflict, errkind.CodePrefixCollision, "module prefix "+prefix+" collides with the local project prefix")
		}
		for _, p := range c.resources.ModulePrefixes() {
			if p == prefix {
				return errkind.New(errkind.Conflict, errkind.CodeModuleAlreadyImported, "a module with prefix "+prefix+" is already imported")
			}
		}

		if err := c.project.AddModule(prefix, sourcePath); err != nil {
			return err
		}
		if err := c.project.Save(); err != nil {
			return err
		}

		dest := c.layout.ModuleFolder(prefix)
		if err := copyTree(c.fs, sourceLayout.LocalResourcesFolder(), dest); err != nil {
			return err
		}

		if err := c.resources.ChangedModules(prefix); err != nil {
			return err
		}
		return c.engine.Generate(ctx, c.resources, c.cards, nil)
	})
	if err != nil {
		return err
	}
	c.emit(Event{Kind: ModuleImported, Name: prefix})
	return nil
}

// RemoveModule unregisters an imported module and deletes its copied
// resources, refusing to proceed if any local resource or card still
// references one of the module's resources (§4.G Remove, applied to a whole
// module).
func (c *Commands) RemoveModule(ctx context.Context, prefix string) error {
	err := c.write(ctx, "remove module "+prefix, func() error {
		if users := c.moduleUsage(prefix); len(users) > 0 {
			return inUseError("module "+prefix, users)
		}
		if err := c.project.RemoveModule(prefix); err != nil {
			return err
		}
		if err := c.project.Save(); err != nil {
			return err
		}
		if err := c.fs.RemoveAll(c.layout.ModuleFolder(prefix)); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot remove module folder for "+prefix)
		}
		if err := c.resources.ChangedModules(prefix); err != nil {
			return err
		}
		return c.engine.Generate(ctx, c.resources, c.cards, nil)
	})
	if err != nil {
		return err
	}
	c.emit(Event{Kind: ModuleRemoved, Name: prefix})
	return nil
}

// moduleUsage returns the names of every local resource, card or folder
// resource content file referencing one of prefix's resources.
func (c *Commands) moduleUsage(prefix string) []string {
	var users []string
	for _, kind := range resource.Kinds {
		for _, obj := range c.resources.ResourceTypes(kind, resource.Modules) {
			if obj.Prefix != prefix {
				continue
			}
			users = append(users, c.resources.Usage(obj.Name())...)
			users = append(users, c.cardsReferencing(obj.Name())...)
			users = append(users, c.filesReferencing(obj.Name())...)
		}
	}
	sort.Strings(users)
	return users
}

// copyTree recursively copies every file and directory under src to dst on
// the same filesystem.
func copyTree(fsys afero.Fs, src, dst string) error {
	exists, err := afero.DirExists(fsys, src)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot stat "+src)
	}
	if !exists {
		return nil
	}
	return afero.Walk(fsys, src, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fsys.MkdirAll(target, 0o755)
		}
		b, err := afero.ReadFile(fsys, path)
		if err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read "+path)
		}
		if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create "+filepath.Dir(target))
		}
		if err := afero.WriteFile(fsys, target, b, info.Mode()); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write "+target)
		}
		return nil
	})
}
