// Package migration implements §4.L: an ordered chain of schema migration
// steps, run from a project's recorded schemaVersion up to a target version.
package migration

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/project"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

// Step is one schema migration, named by the schemaVersion it migrates a
// project TO. Before checks preconditions without mutating anything; a
// Before failure aborts the run before Migrate ever runs. Migrate performs
// the on-disk transformation.
type Step interface {
	Version() string
	Before(ctx context.Context, fs afero.Fs, layout respath.Layout) error
	Migrate(ctx context.Context, fs afero.Fs, layout respath.Layout) error
}

// Runner executes an ordered []Step chain against a project, advancing its
// recorded schemaVersion one step at a time (§4.L). Steps must be supplied
// in ascending version order; Runner does not sort them.
type Runner struct {
	fs        afero.Fs
	layout    respath.Layout
	project   *project.Store
	steps     []Step
	timeout   time.Duration
	backupDir string
}

// New builds a Runner over an ordered step chain.
func New(fs afero.Fs, layout respath.Layout, proj *project.Store, steps ...Step) *Runner {
	return &Runner{fs: fs, layout: layout, project: proj, steps: steps}
}

// SetTimeout bounds each Migrate call; a run that exceeds it aborts the
// in-progress step without advancing the version (§4.L cancellation).
func (r *Runner) SetTimeout(d time.Duration) { r.timeout = d }

// SetBackupDir, when non-empty, makes Migrate copy the project tree there
// before running any step.
func (r *Runner) SetBackupDir(dir string) { r.backupDir = dir }

// Migrate runs every pending step up to targetVersion (or the chain's last
// step, when targetVersion is empty) in order, persisting the project's
// schemaVersion after each step succeeds. Downgrading is rejected, as is
// requesting an explicit target that would skip pending steps -- only an
// empty targetVersion ("run to latest") is allowed to cross more than one
// step in a single call (§4.L).
func (r *Runner) Migrate(ctx context.Context, targetVersion string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	current := r.project.Config().SchemaVersion

	start := 0
	for start < len(r.steps) && r.steps[start].Version() <= current {
		start++
	}

	explicit := targetVersion != ""
	if !explicit {
		if len(r.steps) == 0 {
			return nil
		}
		targetVersion = r.steps[len(r.steps)-1].Version()
	}

	if targetVersion < current {
		return errkind.New(errkind.SchemaVersion, errkind.CodeDowngradeRefused,
			"cannot migrate schema "+current+" back to "+targetVersion)
	}
	if targetVersion == current {
		return nil
	}

	end := -1
	for i, s := range r.steps {
		if s.Version() == targetVersion {
			end = i
			break
		}
	}
	if end == -1 {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "unknown schema version "+targetVersion)
	}
	if explicit && end > start {
		return errkind.New(errkind.SchemaVersion, errkind.CodeVersionSkipped,
			"migrating directly to "+targetVersion+" would skip pending schema versions; "+
				"migrate one version at a time or omit the target to run the full chain")
	}

	if r.backupDir != "" {
		if err := copyTree(r.fs, r.layout.Root, r.backupDir); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create migration backup")
		}
	}

	for i := start; i <= end; i++ {
		step := r.steps[i]
		if err := step.Before(ctx, r.fs, r.layout); err != nil {
			return errkind.Wrap(errkind.Engine, errkind.CodeMigrationFailed, err,
				"migration to "+step.Version()+" failed its precondition check")
		}
		if err := step.Migrate(ctx, r.fs, r.layout); err != nil {
			return errkind.Wrap(errkind.Engine, errkind.CodeMigrationFailed, err,
				"migration to "+step.Version()+" failed")
		}
		if err := ctx.Err(); err != nil {
			return errkind.Wrap(errkind.Concurrency, errkind.CodeTimeout, err,
				"migration to "+step.Version()+" exceeded its timeout or was cancelled")
		}
		r.project.SetSchemaVersion(step.Version())
		if err := r.project.Save(); err != nil {
			return err
		}
	}
	return nil
}
