package command

import (
	"context"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

// TransitionCard moves cardKey from its current workflow state to the
// named transition's toState, wildcard-matching a "*" fromState, and is a
// no-op success if the card is already in that transition's toState
// (§4.G Transition.card). On success it runs the onTransition named query
// and applies any reported field updates, mirroring Create.card's
// onCreation wiring.
func (c *Commands) TransitionCard(ctx context.Context, cardKey, transitionName string) error {
	var rec *card.Record
	err := c.write(ctx, "transition "+cardKey+" via "+transitionName, func() error {
		r, err := c.cards.Find(cardKey)
		if err != nil {
			return err
		}
		rec = r

		cardTypeName, _ := rec.Metadata["cardType"].(string)
		ct, err := c.resources.ByType(cardTypeName, resource.CardType)
		if err != nil {
			return err
		}
		workflowName, _ := ct.Doc["workflow"].(string)
		wf, err := c.resources.ByType(workflowName, resource.Workflow)
		if err != nil {
			return err
		}

		toState, alreadyThere, err := resolveTransition(wf, transitionName, currentState(rec))
		if err != nil {
			return err
		}
		if alreadyThere {
			rec = nil // signal no-op: skip onTransition and the engine refresh
			return nil
		}

		rec.Metadata["workflowState"] = toState
		if err := c.persistMetadata(rec); err != nil {
			return err
		}
		if err := c.cards.SetMetadata(cardKey, rec.Metadata); err != nil {
			return err
		}
		if err := c.engine.HandleCardChanged(ctx, rec); err != nil {
			return err
		}

		fields, err := c.engine.RunOnTransition(ctx, rec)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			for k, v := range fields {
				rec.Metadata[k] = v
			}
			if err := c.persistMetadata(rec); err != nil {
				return err
			}
			if err := c.cards.SetMetadata(cardKey, rec.Metadata); err != nil {
				return err
			}
			if err := c.engine.HandleCardChanged(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rec != nil {
		c.emit(Event{Kind: CardChanged, Cards: []string{cardKey}})
	}
	return nil
}

func currentState(rec *card.Record) string {
	s, _ := rec.Metadata["workflowState"].(string)
	return s
}

// resolveTransition looks up transitionName in wf's transitions array and
// checks that the card's current state matches one of its fromState
// entries ("*" meaning any state). It reports (toState, true, nil) without
// an error when the card is already in that transition's toState, per
// §4.G's "same-state transitions are a no-op-success."
func resolveTransition(wf *resource.Object, transitionName, current string) (toState string, noop bool, err error) {
	transitions, _ := wf.Doc["transitions"].([]any)
	for _, t := range transitions {
		entry, _ := t.(map[string]any)
		name, _ := entry["name"].(string)
		if name != transitionName {
			continue
		}
		to, _ := entry["toState"].(string)
		if current == to {
			return to, true, nil
		}
		froms, _ := entry["fromState"].([]any)
		for _, f := range froms {
			s, _ := f.(string)
			if s == "*" || s == current {
				return to, false, nil
			}
		}
		return "", false, errkind.New(errkind.Policy, errkind.CodeIllegalTransition,
			"transition "+transitionName+" cannot be applied from state "+current)
	}
	return "", false, errkind.New(errkind.NotFound, errkind.CodeIllegalTransition, "no such transition "+transitionName)
}
