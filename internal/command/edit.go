package command

import (
	"context"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
	"github.com/spf13/afero"
)

// EditCardContent overwrites a card's index.adoc body. Content is not part
// of the calculation engine's fact base (only path/parent/children/
// metadata are), so this does not touch the engine.
func (c *Commands) EditCardContent(ctx context.Context, cardKey, adoc string) error {
	err := c.write(ctx, "edit content of "+cardKey, func() error {
		rec, err := c.cards.Find(cardKey)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(c.fs, respath.CardContentFile(rec.Path), []byte(adoc), 0o644); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write card content for "+cardKey)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.emit(Event{Kind: CardChanged, Cards: []string{cardKey}})
	return nil
}

// EditCardMetadata sets (or, for a nil value, clears) one custom field on a
// card, validating it against the field type's dataType before writing
// (§4.G Edit.cardMetadata).
func (c *Commands) EditCardMetadata(ctx context.Context, cardKey, fieldKey string, value any) error {
	err := c.write(ctx, "edit metadata field "+fieldKey+" on "+cardKey, func() error {
		rec, err := c.cards.Find(cardKey)
		if err != nil {
			return err
		}

		cardTypeName, _ := rec.Metadata["cardType"].(string)
		ct, err := c.resources.ByType(cardTypeName, resource.CardType)
		if err != nil {
			return err
		}
		if !declaresField(ct, fieldKey) {
			return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "field "+fieldKey+" is not declared on card type "+cardTypeName)
		}

		if value != nil {
			ft, err := c.resources.ByType(fieldKey, resource.FieldType)
			if err != nil {
				return err
			}
			if err := validateFieldValue(ft, value); err != nil {
				return err
			}
		}

		custom, _ := rec.Metadata["customFields"].(map[string]any)
		if custom == nil {
			custom = map[string]any{}
		}
		if value == nil {
			delete(custom, fieldKey)
		} else {
			custom[fieldKey] = value
		}
		rec.Metadata["customFields"] = custom

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
	c.emit(Event{Kind: CardChanged, Cards: []string{cardKey}})
	return nil
}

func declaresField(cardType *resource.Object, fieldKey string) bool {
	fields, _ := cardType.Doc["customFields"].([]any)
	for _, f := range fields {
		if name, _ := f.(string); name == fieldKey {
			return true
		}
	}
	return false
}

// validateFieldValue checks value against fieldType's declared dataType
// (fieldTypeSchema.json's enum), per §4.F's "validate field against its
// field-type dataType."
func validateFieldValue(fieldType *resource.Object, value any) error {
	dataType, _ := fieldType.Doc["dataType"].(string)
	bad := func() error {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "value does not match dataType "+dataType+" for field "+fieldType.Name())
	}

	switch dataType {
	case "shortText", "longText", "date", "dateTime", "person":
		if _, ok := value.(string); !ok {
			return bad()
		}
	case "number", "integer":
		n, ok := value.(float64)
		if !ok {
			return bad()
		}
		if dataType == "integer" && n != float64(int64(n)) {
			return bad()
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return bad()
		}
	case "enum":
		s, ok := value.(string)
		if !ok || !isAllowedEnumValue(fieldType, s) {
			return bad()
		}
	case "list":
		items, ok := value.([]any)
		if !ok {
			return bad()
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok || !isAllowedEnumValue(fieldType, s) {
				return bad()
			}
		}
	default:
		return errkind.New(errkind.Engine, errkind.CodeSolverFailure, "field type "+fieldType.Name()+" declares unknown dataType "+dataType)
	}
	return nil
}

func isAllowedEnumValue(fieldType *resource.Object, value string) bool {
	values, _ := fieldType.Doc["enumValues"].([]any)
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		entry, _ := v.(map[string]any)
		if s, _ := entry["enumValue"].(string); s == value {
			return true
		}
	}
	return false
}
