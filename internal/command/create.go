package command

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

// CreateCard clones templateName's card subtree under parentKey (or
// cardRoot if parentKey is empty), minting fresh keys, assigning each new
// root card a rank after its target parent's last existing child, and
// setting the initial workflow state from the card type's workflow. Once
// the clone has been written and cached, handleNewCards runs the
// onCreation query and applies any reported field updates before the
// command returns (§4.G Create.card).
func (c *Commands) CreateCard(ctx context.Context, templateName, parentKey string) ([]string, error) {
	var created []*card.Record
	err := c.write(ctx, "create card from template "+templateName, func() error {
		tmpl, err := c.resources.ByType(templateName, resource.Template)
		if err != nil {
			return err
		}

		var parentDir string
		if parentKey != "" {
			parent, err := c.cards.Find(parentKey)
			if err != nil {
				return err
			}
			parentDir = respath.CardChildrenFolder(parent.Path)
		} else {
			parentDir = c.layout.CardRoot()
		}

		templateCards := c.cards.TemplateCards(tmpl.Name())
		if len(templateCards) == 0 {
			return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "template "+templateName+" has no cards")
		}

		keyMap := map[string]string{}
		for _, rec := range templateCards {
			newKey := card.MintKey(c.localPrefix(), func(k string) bool {
				return c.cards.Exists(k) || hasValue(keyMap, k)
			})
			keyMap[rec.Key] = newKey
		}

		rootRank, err := c.lastRank(parentKey)
		if err != nil {
			return err
		}

		newPaths := map[string]string{}
		for _, rec := range templateCards {
			newKey := keyMap[rec.Key]
			newParentKey := parentKey
			dir := respath.CardDirectory(parentDir, newKey)
			if rec.ParentKey != "" {
				newParentKey = keyMap[rec.ParentKey]
				dir = respath.CardDirectory(respath.CardChildrenFolder(newPaths[rec.ParentKey]), newKey)
			}
			newPaths[rec.Key] = dir

			meta := deepCopyMap(rec.Metadata)
			if rec.ParentKey == "" {
				rootRank = card.Between(rootRank, "")
				meta["rank"] = rootRank
			}
			if ctName, _ := meta["cardType"].(string); ctName != "" {
				if state, err := c.initialWorkflowState(ctName); err == nil && state != "" {
					meta["workflowState"] = state
				}
			}

			content, _ := afero.ReadFile(c.fs, respath.CardContentFile(rec.Path))
			attachments := map[string][]byte{}
			for _, name := range rec.Attachments {
				b, err := afero.ReadFile(c.fs, filepath.Join(respath.CardAttachmentsFolder(rec.Path), name))
				if err != nil {
					return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read template attachment "+name)
				}
				attachments[name] = b
			}

			if err := c.writeCardFiles(dir, meta, content, attachments); err != nil {
				return err
			}

			newRec := &card.Record{Key: newKey, Path: dir, ParentKey: newParentKey, Metadata: meta, Attachments: append([]string(nil), rec.Attachments...)}
			if err := c.cards.Add(newRec); err != nil {
				return err
			}
			created = append(created, newRec)
		}

		updates, err := c.engine.HandleNewCards(ctx, created)
		if err != nil {
			return err
		}
		for _, rec := range created {
			fields, ok := updates[rec.Key]
			if !ok || len(fields) == 0 {
				continue
			}
			for k, v := range fields {
				rec.Metadata[k] = v
			}
			if err := c.persistMetadata(rec); err != nil {
				return err
			}
			if err := c.cards.SetMetadata(rec.Key, rec.Metadata); err != nil {
				return err
			}
			if err := c.engine.HandleCardChanged(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(created))
	for i, rec := range created {
		keys[i] = rec.Key
	}
	c.emit(Event{Kind: CardsAdded, Cards: keys})
	return keys, nil
}

func hasValue(m map[string]string, v string) bool {
	for _, got := range m {
		if got == v {
			return true
		}
	}
	return false
}

func (c *Commands) lastRank(parentKey string) (string, error) {
	children, err := c.cards.Children(parentKey)
	if err != nil {
		return "", err
	}
	if len(children) == 0 {
		return "", nil
	}
	return children[len(children)-1].Rank(), nil
}

func (c *Commands) initialWorkflowState(cardTypeName string) (string, error) {
	ct, err := c.resources.ByType(cardTypeName, resource.CardType)
	if err != nil {
		return "", err
	}
	workflowName, _ := ct.Doc["workflow"].(string)
	wf, err := c.resources.ByType(workflowName, resource.Workflow)
	if err != nil {
		return "", err
	}
	states, _ := wf.Doc["states"].([]any)
	if len(states) == 0 {
		return "", nil
	}
	first, _ := states[0].(map[string]any)
	name, _ := first["name"].(string)
	return name, nil
}

func (c *Commands) writeCardFiles(dir string, meta map[string]any, content []byte, attachments map[string][]byte) error {
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create "+dir)
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.InvalidInput, errkind.CodeInvalidInput, err, "cannot marshal card metadata")
	}
	if err := afero.WriteFile(c.fs, respath.CardMetadataFile(dir), metaBytes, 0o644); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write card metadata")
	}
	if err := afero.WriteFile(c.fs, respath.CardContentFile(dir), content, 0o644); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write card content")
	}
	for name, data := range attachments {
		p := filepath.Join(respath.CardAttachmentsFolder(dir), name)
		if err := c.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create attachments folder")
		}
		if err := afero.WriteFile(c.fs, p, data, 0o644); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write attachment "+name)
		}
	}
	return nil
}

func (c *Commands) persistMetadata(rec *card.Record) error {
	b, err := json.MarshalIndent(rec.Metadata, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.InvalidInput, errkind.CodeInvalidInput, err, "cannot marshal card metadata")
	}
	if err := afero.WriteFile(c.fs, respath.CardMetadataFile(rec.Path), b, 0o644); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write card metadata for "+rec.Key)
	}
	return nil
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyJSON(v)
	}
	return out
}

func deepCopyJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyJSON(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopyJSON(vv)
		}
		return out
	default:
		return v
	}
}

// CreateAttachment writes a single new attachment file onto cardKey,
// failing if the card is missing or the file already exists (§4.G
// Create.attachment).
func (c *Commands) CreateAttachment(ctx context.Context, cardKey, filename string, data []byte) error {
	err := c.write(ctx, "create attachment "+filename+" on "+cardKey, func() error {
		rec, err := c.cards.Find(cardKey)
		if err != nil {
			return err
		}
		return c.addAttachmentFile(rec, filename, data)
	})
	if err != nil {
		return err
	}
	c.emit(Event{Kind: CardChanged, Cards: []string{cardKey}})
	return nil
}

// AttachmentResult reports, per file, whether an attachment batch upload
// persisted -- the 207 partial-success envelope SPEC_FULL.md's enrichment
// describes for Create.attachments.
type AttachmentResult struct {
	Succeeded []string
	Failed    map[string]string
}

// CreateAttachments uploads a batch of files onto cardKey, persisting every
// file that can be written and reporting the rest as failures rather than
// aborting the whole batch on the first error.
func (c *Commands) CreateAttachments(ctx context.Context, cardKey string, files map[string][]byte) (AttachmentResult, error) {
	result := AttachmentResult{Failed: map[string]string{}}
	err := c.write(ctx, "create attachments on "+cardKey, func() error {
		rec, err := c.cards.Find(cardKey)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := c.addAttachmentFile(rec, name, files[name]); err != nil {
				result.Failed[name] = err.Error()
				continue
			}
			result.Succeeded = append(result.Succeeded, name)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if len(result.Succeeded) > 0 {
		c.emit(Event{Kind: CardChanged, Cards: []string{cardKey}})
	}
	return result, nil
}

func (c *Commands) addAttachmentFile(rec *card.Record, name string, data []byte) error {
	path := filepath.Join(respath.CardAttachmentsFolder(rec.Path), name)
	exists, err := afero.Exists(c.fs, path)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot stat "+path)
	}
	if exists {
		return errkind.New(errkind.Conflict, errkind.CodeAttachmentExists, "attachment "+name+" already exists on "+rec.Key)
	}
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create attachments folder")
	}
	if err := afero.WriteFile(c.fs, path, data, 0o644); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write "+path)
	}
	rec.Attachments = append(rec.Attachments, name)
	sort.Strings(rec.Attachments)
	return nil
}

// CreateResource persists a brand-new local resource and tells the
// calculation engine about it (§4.G Create.resource).
func (c *Commands) CreateResource(ctx context.Context, kind resource.Kind, identifier string, doc map[string]any, files map[string][]byte) (*resource.Object, error) {
	var obj *resource.Object
	err := c.write(ctx, "create resource "+string(kind)+"/"+identifier, func() error {
		created, err := c.resources.Create(kind, identifier, doc, files)
		if err != nil {
			return err
		}
		obj = created
		return c.engine.HandleResourceChanged(ctx, obj)
	})
	if err != nil {
		return nil, err
	}
	c.emit(Event{Kind: ResourceChanged, Name: obj.Name()})
	return obj, nil
}
