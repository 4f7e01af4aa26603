package resource

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

// Create persists a brand-new local resource: its identifier is validated
// (§4.G Create.resource - no Windows reserved words, must match
// ^[A-Za-z][A-Za-z0-9-]*$, unique per type), its document is schema-checked,
// and - for folder resources - its content files are written alongside it.
func (h *Handler) Create(kind Kind, identifier string, doc map[string]any, files map[string][]byte) (*Object, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}

	h.mu.RLock()
	localPrefix := h.localPrefix
	_, exists := h.local[kind][identifier]
	h.mu.RUnlock()
	if exists {
		return nil, errkind.New(errkind.Conflict, errkind.CodeResourceExists, "resource "+string(kind)+"/"+identifier+" already exists")
	}

	if files == nil {
		files = map[string][]byte{}
	}
	obj := &Object{Prefix: localPrefix, Kind: kind, Identifier: identifier, Doc: doc, Files: files}
	if err := h.validateDoc(obj); err != nil {
		return nil, err
	}
	if err := h.persist(obj); err != nil {
		return nil, err
	}
	if err := h.Add(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Delete removes a resource's on-disk representation and cache entry.
func (h *Handler) Delete(name string) error {
	obj, err := h.ByName(name)
	if err != nil {
		return err
	}
	if obj.ReadOnly {
		return errkind.New(errkind.Policy, errkind.CodeReadOnlyModule, "module resources are read-only: "+name)
	}
	path := h.resourcePath(obj)
	if err := h.fs.RemoveAll(path); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot remove "+path)
	}
	return h.Remove(name)
}

// Show returns the resource (ByName's alias, named per §4.F's show()).
func (h *Handler) Show(name string) (*Object, error) { return h.ByName(name) }

// Rename renames a resource, rewriting its own document's name field,
// persisting it at the new path, removing the old path, and invoking the
// RenameHook so other components can fix up their own references
// (§4.F onNameChange).
func (h *Handler) Rename(oldName, newName string) error {
	obj, err := h.ByName(oldName)
	if err != nil {
		return err
	}
	if obj.ReadOnly {
		return errkind.New(errkind.Policy, errkind.CodeReadOnlyModule, "module resources are read-only: "+oldName)
	}
	newN, err := respath.Parse(newName)
	if err != nil {
		return err
	}
	if newN.Type != string(obj.Kind) {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "rename cannot change resource type")
	}

	h.mu.RLock()
	_, clash := h.local[obj.Kind][newN.Identifier]
	h.mu.RUnlock()
	if clash {
		return errkind.New(errkind.Conflict, errkind.CodeResourceExists, "resource "+newName+" already exists")
	}

	oldPath := h.resourcePath(obj)

	renamed := obj.Clone()
	renamed.Identifier = newN.Identifier
	renamed.Prefix = newN.Prefix
	renamed.Doc["name"] = newName

	if err := h.persist(renamed); err != nil {
		return err
	}
	if err := h.fs.RemoveAll(oldPath); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot remove "+oldPath)
	}

	h.mu.Lock()
	delete(h.local[obj.Kind], obj.Identifier)
	h.local[obj.Kind][newN.Identifier] = renamed
	h.mu.Unlock()

	if h.onRename != nil {
		return h.onRename(oldName, newName)
	}
	return nil
}

// Validate re-checks a resource's current (or supplied) document content
// against its bundled schema without persisting anything.
func (h *Handler) Validate(name string, content map[string]any) error {
	obj, err := h.ByName(name)
	if err != nil {
		return err
	}
	probe := obj.Clone()
	if content != nil {
		probe.Doc = content
	}
	return h.validateDoc(probe)
}

// Update applies a single Op to a resource's document, re-validates, and
// only persists on success (§4.F: "reject with SchemaViolation without
// persisting").
func (h *Handler) Update(name string, op Op) error {
	obj, err := h.ByName(name)
	if err != nil {
		return err
	}
	if obj.ReadOnly {
		return errkind.New(errkind.Policy, errkind.CodeReadOnlyModule, "module resources are read-only: "+name)
	}

	working := obj.Clone()
	if op.Kind == OpSet {
		working.Doc[op.Field] = op.Value
	} else if err := ApplyArrayOp(working.Doc, op); err != nil {
		return err
	}

	if err := h.validateDoc(working); err != nil {
		return err
	}
	if err := h.persist(working); err != nil {
		return err
	}

	h.mu.Lock()
	h.local[obj.Kind][obj.Identifier] = working
	h.mu.Unlock()
	return nil
}

// Usage returns the names of every other local resource whose document
// references name; module resources are not scanned. Card-level usage is the command layer's responsibility,
// since it requires the card cache (kept out of this package to avoid a
// dependency cycle, per §9).
func (h *Handler) Usage(name string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var users []string
	for _, byID := range h.local {
		for _, obj := range byID {
			if obj.Name() == name {
				continue
			}
			if referencesInDoc(obj.Doc, name) {
				users = append(users, obj.Name())
			}
		}
	}
	sort.Strings(users)
	return users
}

func referencesInDoc(doc map[string]any, name string) bool {
	for _, v := range doc {
		if referencesInValue(v, name) {
			return true
		}
	}
	return false
}

func referencesInValue(v any, name string) bool {
	switch t := v.(type) {
	case string:
		return t == name || strings.Contains(t, name)
	case []any:
		for _, e := range t {
			if referencesInValue(e, name) {
				return true
			}
		}
	case map[string]any:
		return referencesInDoc(t, name)
	}
	return false
}

// ShowFileNames lists a folder resource's content file paths.
func (h *Handler) ShowFileNames(name string) ([]string, error) {
	obj, err := h.ByName(name)
	if err != nil {
		return nil, err
	}
	if !obj.Kind.IsFolder() {
		return nil, errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, name+" is not a folder resource")
	}
	names := make([]string, 0, len(obj.Files))
	for f := range obj.Files {
		names = append(names, f)
	}
	sort.Strings(names)
	return names, nil
}

// ShowFile returns one content file's bytes.
func (h *Handler) ShowFile(name, file string) ([]byte, error) {
	obj, err := h.ByName(name)
	if err != nil {
		return nil, err
	}
	b, ok := obj.Files[file]
	if !ok {
		return nil, errkind.New(errkind.NotFound, errkind.CodeAttachmentNotFound, "content file "+file+" not found in "+name)
	}
	return b, nil
}

// UpdateFile overwrites (or creates) one content file inside a folder
// resource and persists it.
func (h *Handler) UpdateFile(name, file string, content []byte) error {
	obj, err := h.ByName(name)
	if err != nil {
		return err
	}
	if obj.ReadOnly {
		return errkind.New(errkind.Policy, errkind.CodeReadOnlyModule, "module resources are read-only: "+name)
	}
	if !obj.Kind.IsFolder() {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, name+" is not a folder resource")
	}

	working := obj.Clone()
	working.Files[file] = content
	if err := h.writeContentFile(working, file, content); err != nil {
		return err
	}

	h.mu.Lock()
	h.local[obj.Kind][obj.Identifier] = working
	h.mu.Unlock()
	return nil
}

func (h *Handler) validateDoc(obj *Object) error {
	if h.validator == nil {
		return nil
	}
	name := obj.Kind.schemaName()
	if name == "" {
		return nil
	}
	return h.validator.Validate(name, obj.Doc)
}

func (h *Handler) resourcePath(obj *Object) string {
	folder := h.typeFolder(obj.Prefix, obj.Kind)
	if obj.Kind.IsFolder() {
		return h.layout.FolderResourcePath(folder, obj.Identifier)
	}
	return h.layout.FileResourcePath(folder, obj.Identifier)
}

func (h *Handler) typeFolder(prefix string, kind Kind) string {
	if prefix == h.localPrefix {
		return h.layout.LocalResourceTypeFolder(string(kind))
	}
	return h.layout.ModuleResourceTypeFolder(prefix, string(kind))
}

func (h *Handler) persist(obj *Object) error {
	b, err := marshalDoc(obj.Doc)
	if err != nil {
		return errkind.Wrap(errkind.InvalidInput, errkind.CodeInvalidInput, err, "cannot marshal resource document")
	}

	if !obj.Kind.IsFolder() {
		path := h.resourcePath(obj)
		if err := h.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create "+filepath.Dir(path))
		}
		if err := afero.WriteFile(h.fs, path, b, 0o644); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write "+path)
		}
		return nil
	}

	dir := h.resourcePath(obj)
	if err := h.fs.MkdirAll(dir, 0o755); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create "+dir)
	}
	jsonPath := filepath.Join(dir, obj.Identifier+".json")
	if err := afero.WriteFile(h.fs, jsonPath, b, 0o644); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write "+jsonPath)
	}
	for rel, content := range obj.Files {
		if err := h.writeContentFile(obj, rel, content); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) writeContentFile(obj *Object, rel string, content []byte) error {
	dir := h.resourcePath(obj)
	path := filepath.Join(dir, rel)
	if err := h.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create "+filepath.Dir(path))
	}
	if err := afero.WriteFile(h.fs, path, content, 0o644); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write "+path)
	}
	return nil
}
