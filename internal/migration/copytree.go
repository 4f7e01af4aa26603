package migration

import (
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// copyTree recursively copies every file and directory under src to dst on
// the same filesystem, used to snapshot a project before running a
// migration chain against it.
func copyTree(fsys afero.Fs, src, dst string) error {
	exists, err := afero.DirExists(fsys, src)
	if err != nil {
		return err
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
			return err
		}
		if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return afero.WriteFile(fsys, target, b, info.Mode())
	})
}
