package command

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

// MoveCard reparents cardKey under newParentKey ("root" or "" meaning the
// project root), moving its on-disk directory (and, with it, every
// descendant's) to the new location and assigning it a fresh trailing
// rank among its new siblings. Cycle and missing-card rejection is
// card.Cache.Reparent's job; template<->project crossings don't apply to
// this cache, which only ever holds project cards, and module cards don't
// exist as a concept (modules own resources, not cards), so neither edge
// case from §4.G's Move.card needs separate handling here.
func (c *Commands) MoveCard(ctx context.Context, cardKey, newParentKey string) error {
	if newParentKey == "root" {
		newParentKey = ""
	}

	var moved *card.Record
	var affected []*card.Record
	err := c.write(ctx, "move card "+cardKey, func() error {
		rec, err := c.cards.Find(cardKey)
		if err != nil {
			return err
		}
		oldParentKey := rec.ParentKey
		oldDir := rec.Path

		if err := c.cards.Reparent(cardKey, newParentKey); err != nil {
			return err
		}

		var newParentDir string
		if newParentKey == "" {
			newParentDir = c.layout.CardRoot()
		} else {
			parent, err := c.cards.Find(newParentKey)
			if err != nil {
				return err
			}
			newParentDir = respath.CardChildrenFolder(parent.Path)
		}
		newDir := respath.CardDirectory(newParentDir, cardKey)

		if oldDir != newDir {
			if err := moveTree(c.fs, oldDir, newDir); err != nil {
				return err
			}
			subtree, err := c.cards.Cards(cardKey)
			if err != nil {
				return err
			}
			for _, r := range subtree {
				r.Path = newDir + strings.TrimPrefix(r.Path, oldDir)
			}
		}

		lastRank, err := c.lastRank(newParentKey)
		if err != nil {
			return err
		}
		rec.Metadata["rank"] = card.Between(lastRank, "")
		if err := c.persistMetadata(rec); err != nil {
			return err
		}
		if err := c.cards.SetMetadata(cardKey, rec.Metadata); err != nil {
			return err
		}

		moved = rec
		affected, err = c.siblingRecords(oldParentKey, newParentKey, cardKey)
		if err != nil {
			return err
		}
		return c.engine.HandleCardMoved(ctx, moved, affected)
	})
	if err != nil {
		return err
	}
	c.emit(Event{Kind: CardMoved, Cards: []string{cardKey}})
	return nil
}

func moveTree(fs afero.Fs, oldDir, newDir string) error {
	if err := fs.MkdirAll(filepath.Dir(newDir), 0o755); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create "+filepath.Dir(newDir))
	}
	if err := fs.Rename(oldDir, newDir); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot move "+oldDir+" to "+newDir)
	}
	return nil
}

// siblingRecords returns the union of a card's former and new siblings
// (excluding the moved card itself), since both sides' facts denormalize
// parent/child relations that changed.
func (c *Commands) siblingRecords(oldParentKey, newParentKey, movedKey string) ([]*card.Record, error) {
	seen := map[string]*card.Record{}
	for _, parentKey := range []string{oldParentKey, newParentKey} {
		siblings, err := c.cards.Children(parentKey)
		if err != nil {
			return nil, err
		}
		for _, r := range siblings {
			if r.Key != movedKey {
				seen[r.Key] = r
			}
		}
	}
	out := make([]*card.Record, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	return out, nil
}

// MoveRankByIndex reorders cardKey among its current siblings to sit at
// index (0-based, siblings-excluding-self order), assigning a fresh rank
// string between its new neighbors (§4.G Move.rankByIndex).
func (c *Commands) MoveRankByIndex(ctx context.Context, cardKey string, index int) error {
	var rec *card.Record
	err := c.write(ctx, "rank "+cardKey+" to index "+strconv.Itoa(index), func() error {
		r, err := c.cards.Find(cardKey)
		if err != nil {
			return err
		}
		rec = r

		siblings, err := c.cards.Siblings(cardKey)
		if err != nil {
			return err
		}
		if index < 0 || index > len(siblings) {
			return errkind.New(errkind.InvalidInput, errkind.CodeInvalidTargetIndex, "target index out of range")
		}

		var lo, hi string
		if index > 0 {
			lo = siblings[index-1].Rank()
		}
		if index < len(siblings) {
			hi = siblings[index].Rank()
		}
		rec.Metadata["rank"] = card.Between(lo, hi)

		if err := c.persistMetadata(rec); err != nil {
			return err
		}
		if err := c.cards.SetMetadata(cardKey, rec.Metadata); err != nil {
			return err
		}
		return c.engine.HandleCardChanged(ctx, rec)
	})
	if err != nil {
		return err
	}
	c.emit(Event{Kind: CardMoved, Cards: []string{cardKey}})
	return nil
}
