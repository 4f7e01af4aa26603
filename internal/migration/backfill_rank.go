package migration

import (
	"context"
	"encoding/json"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/project"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

// BackfillRankStep assigns a rank to every card that predates the rank
// convention cardBaseSchema.json now requires, so a project authored before
// sibling ordering existed can be brought up to the current schema. It
// targets project.CurrentSchemaVersion, since that's the first schema
// version to require "rank".
type BackfillRankStep struct{}

// Version implements Step.
func (BackfillRankStep) Version() string { return project.CurrentSchemaVersion }

// Before implements Step; backfilling a rank has no precondition beyond the
// project's card tree being readable, which Migrate already verifies.
func (BackfillRankStep) Before(_ context.Context, _ afero.Fs, _ respath.Layout) error {
	return nil
}

// Migrate implements Step.
func (BackfillRankStep) Migrate(_ context.Context, fs afero.Fs, layout respath.Layout) error {
	cards := card.New(fs, layout)
	if err := cards.Populate(); err != nil {
		return err
	}

	byParent := map[string][]*card.Record{}
	all, err := cards.Cards("")
	if err != nil {
		return err
	}
	for _, rec := range all {
		byParent[rec.ParentKey] = append(byParent[rec.ParentKey], rec)
	}

	for _, siblings := range byParent {
		rank := ""
		for _, rec := range siblings {
			if r, _ := rec.Metadata["rank"].(string); r != "" {
				rank = r
				continue
			}
			rank = card.Between(rank, "")
			rec.Metadata["rank"] = rank
			if err := writeCardMetadata(fs, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCardMetadata(fs afero.Fs, rec *card.Record) error {
	b, err := json.MarshalIndent(rec.Metadata, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.InvalidInput, errkind.CodeInvalidInput, err, "cannot marshal card metadata")
	}
	if err := afero.WriteFile(fs, respath.CardMetadataFile(rec.Path), b, 0o644); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write card metadata for "+rec.Key)
	}
	return nil
}
