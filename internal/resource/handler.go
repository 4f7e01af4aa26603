package resource

import (
	"encoding/json"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

const (
	errNotFound  = "resource not found"
	errExists    = "resource already exists"
	errBadKind   = "unknown resource type"
	errWindows   = "resource identifier uses a reserved Windows device name"
	errIdent     = "resource identifier must match ^[A-Za-z][A-Za-z0-9-]*$"
)

var reservedWindowsNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// RenameHook is invoked after a resource has been persisted under its new
// name, so that cards, other resources and the calculation engine can
// rewrite their own references to the old name (§4.F onNameChange). It is
// supplied by the layer that owns the card cache and calculation engine, so
// this package stays free of a dependency cycle (§9 "Cyclic references").
type RenameHook func(oldName, newName string) error

// Handler is the type-indexed, module-aware resource cache (§4.D). Local
// resources and each imported module's resources are held in separate
// partitions; lookups prefer local over module.
type Handler struct {
	fs        afero.Fs
	layout    respath.Layout
	validator *schema.Validator

	localPrefix string
	onRename    RenameHook

	mu      sync.RWMutex
	local   map[Kind]map[string]*Object
	modules map[string]map[Kind]map[string]*Object
}

// New constructs an empty Handler. Call Populate to hydrate it from disk.
func New(fsys afero.Fs, layout respath.Layout, validator *schema.Validator, localPrefix string, onRename RenameHook) *Handler {
	return &Handler{
		fs:          fsys,
		layout:      layout,
		validator:   validator,
		localPrefix: localPrefix,
		onRename:    onRename,
		local:       emptyKindMap(),
		modules:     map[string]map[Kind]map[string]*Object{},
	}
}

func emptyKindMap() map[Kind]map[string]*Object {
	m := make(map[Kind]map[string]*Object, len(Kinds))
	for _, k := range Kinds {
		m[k] = map[string]*Object{}
	}
	return m
}

// SetLocalPrefix updates the prefix considered "local" (used by Rename.project).
func (h *Handler) SetLocalPrefix(prefix string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.localPrefix = prefix
}

// LocalPrefix reports the prefix currently considered "local".
func (h *Handler) LocalPrefix() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.localPrefix
}

// ModulePrefixes reports every imported module's prefix, sorted.
func (h *Handler) ModulePrefixes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	prefixes := make([]string, 0, len(h.modules))
	for p := range h.modules {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Populate walks the local and module resource folders once, replacing the
// entire cache.
func (h *Handler) Populate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	local, err := h.loadPartition(h.layout.LocalResourcesFolder(), h.localPrefix, false)
	if err != nil {
		return err
	}
	h.local = local

	modulesRoot := h.layout.ModulesFolder()
	entries, err := afero.ReadDir(h.fs, modulesRoot)
	if err != nil {
		// No modules imported yet is not an error.
		h.modules = map[string]map[Kind]map[string]*Object{}
		return nil
	}
	modules := map[string]map[Kind]map[string]*Object{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		part, err := h.loadPartition(filepath.Join(modulesRoot, e.Name()), e.Name(), true)
		if err != nil {
			return err
		}
		modules[e.Name()] = part
	}
	h.modules = modules
	return nil
}

func (h *Handler) loadPartition(root, prefix string, readOnly bool) (map[Kind]map[string]*Object, error) {
	part := emptyKindMap()
	for _, k := range Kinds {
		dir := filepath.Join(root, string(k))
		exists, err := afero.DirExists(h.fs, dir)
		if err != nil {
			return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot stat "+dir)
		}
		if !exists {
			continue
		}
		if k.IsFolder() {
			if err := h.loadFolderKind(part, dir, prefix, k, readOnly); err != nil {
				return nil, err
			}
		} else {
			if err := h.loadFileKind(part, dir, prefix, k, readOnly); err != nil {
				return nil, err
			}
		}
	}
	return part, nil
}

func (h *Handler) loadFileKind(part map[Kind]map[string]*Object, dir, prefix string, k Kind, readOnly bool) error {
	entries, err := afero.ReadDir(h.fs, dir)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read "+dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		doc, err := h.readJSONDoc(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		part[k][id] = &Object{Prefix: prefix, Kind: k, Identifier: id, ReadOnly: readOnly, Doc: doc, Files: map[string][]byte{}}
	}
	return nil
}

func (h *Handler) loadFolderKind(part map[Kind]map[string]*Object, dir, prefix string, k Kind, readOnly bool) error {
	entries, err := afero.ReadDir(h.fs, dir)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read "+dir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		resDir := filepath.Join(dir, id)
		jsonPath := filepath.Join(resDir, id+".json")
		doc, err := h.readJSONDoc(jsonPath)
		if err != nil {
			return err
		}
		files, err := h.readContentFiles(resDir, id+".json")
		if err != nil {
			return err
		}
		part[k][id] = &Object{Prefix: prefix, Kind: k, Identifier: id, ReadOnly: readOnly, Doc: doc, Files: files}
	}
	return nil
}

func (h *Handler) readJSONDoc(path string) (map[string]any, error) {
	raw, err := afero.ReadFile(h.fs, path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read "+path)
	}
	var doc map[string]any
	if err := schema.LoadJSON(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (h *Handler) readContentFiles(resDir, skip string) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := afero.Walk(h.fs, resDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(resDir, p)
		if err != nil {
			return err
		}
		if rel == skip {
			return nil
		}
		b, err := afero.ReadFile(h.fs, p)
		if err != nil {
			return err
		}
		files[rel] = b
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read content folder "+resDir)
	}
	return files, nil
}

// ByName looks up a resource by its fully-qualified "prefix/type/identifier"
// name. Local resources shadow module resources of the same name.
func (h *Handler) ByName(name string) (*Object, error) {
	n, err := respath.Parse(name)
	if err != nil {
		return nil, err
	}
	return h.ByType(name, Kind(n.Type))
}

// ByType looks up a resource given its fully-qualified name and an expected
// Kind, failing if the name's type segment does not match.
func (h *Handler) ByType(name string, kind Kind) (*Object, error) {
	n, err := respath.Parse(name)
	if err != nil {
		return nil, err
	}
	if Kind(n.Type) != kind {
		return nil, errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "resource "+name+" is not of type "+string(kind))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if n.Prefix == h.localPrefix {
		if obj, ok := h.local[kind][n.Identifier]; ok {
			return obj, nil
		}
		return nil, errkind.New(errkind.NotFound, errkind.CodeResourceNotFound, "resource "+name+" not found")
	}
	if part, ok := h.modules[n.Prefix]; ok {
		if obj, ok := part[kind][n.Identifier]; ok {
			return obj, nil
		}
	}
	return nil, errkind.New(errkind.NotFound, errkind.CodeResourceNotFound, "resource "+name+" not found")
}

// Exists reports whether name resolves to a cached resource.
func (h *Handler) Exists(name string) bool {
	_, err := h.ByName(name)
	return err == nil
}

// ResourceTypes iterates every resource of the given kind from the
// requested scope.
func (h *Handler) ResourceTypes(kind Kind, from Scope) []*Object {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Object
	if from == All || from == Local {
		for _, obj := range h.local[kind] {
			out = append(out, obj)
		}
	}
	if from == All || from == Modules {
		var prefixes []string
		for p := range h.modules {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)
		for _, p := range prefixes {
			for _, obj := range h.modules[p][kind] {
				out = append(out, obj)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Add inserts a fully-formed local resource into the cache (used after
// Create.resource persists it to disk).
func (h *Handler) Add(obj *Object) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.local[obj.Kind][obj.Identifier]; ok {
		return errkind.New(errkind.Conflict, errkind.CodeResourceExists, "resource "+obj.Name()+" already exists")
	}
	h.local[obj.Kind][obj.Identifier] = obj
	return nil
}

// Remove deletes a local resource from the cache (the caller is responsible
// for removing it from disk first).
func (h *Handler) Remove(name string) error {
	n, err := respath.Parse(name)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	kind := Kind(n.Type)
	if _, ok := h.local[kind][n.Identifier]; !ok {
		return errkind.New(errkind.NotFound, errkind.CodeResourceNotFound, "resource "+name+" not found")
	}
	delete(h.local[kind], n.Identifier)
	return nil
}

// Changed invalidates and reloads the local sub-index.
func (h *Handler) Changed() error {
	h.mu.Lock()
	local, err := h.loadPartition(h.layout.LocalResourcesFolder(), h.localPrefix, false)
	h.mu.Unlock()
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.local = local
	h.mu.Unlock()
	return nil
}

// ChangedModules invalidates one module's sub-index, or every module's if
// prefix is empty.
func (h *Handler) ChangedModules(prefix string) error {
	if prefix == "" {
		h.mu.Lock()
		root := h.layout.ModulesFolder()
		h.mu.Unlock()
		entries, err := afero.ReadDir(h.fs, root)
		if err != nil {
			h.mu.Lock()
			h.modules = map[string]map[Kind]map[string]*Object{}
			h.mu.Unlock()
			return nil
		}
		modules := map[string]map[Kind]map[string]*Object{}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			part, err := h.loadPartition(filepath.Join(root, e.Name()), e.Name(), true)
			if err != nil {
				return err
			}
			modules[e.Name()] = part
		}
		h.mu.Lock()
		h.modules = modules
		h.mu.Unlock()
		return nil
	}

	part, err := h.loadPartition(h.layout.ModuleFolder(prefix), prefix, true)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.modules[prefix] = part
	h.mu.Unlock()
	return nil
}

// HandleFileSystemChange derives the affected resource from a changed path
// under the project tree and invalidates the minimal cache partition.
func (h *Handler) HandleFileSystemChange(path string) error {
	h.mu.RLock()
	localRoot := h.layout.LocalResourcesFolder()
	modulesRoot := h.layout.ModulesFolder()
	h.mu.RUnlock()

	if strings.HasPrefix(path, localRoot) {
		return h.Changed()
	}
	if strings.HasPrefix(path, modulesRoot) {
		rest := strings.TrimPrefix(strings.TrimPrefix(path, modulesRoot), string(filepath.Separator))
		parts := strings.SplitN(rest, string(filepath.Separator), 2)
		if len(parts) == 0 || parts[0] == "" {
			return h.ChangedModules("")
		}
		return h.ChangedModules(parts[0])
	}
	return nil
}

// marshalDoc renders a resource document back to canonical indented JSON.
func marshalDoc(doc map[string]any) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func validateIdentifier(id string) error {
	if id == "" {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "identifier must not be empty")
	}
	if !('A' <= id[0] && id[0] <= 'Z' || 'a' <= id[0] && id[0] <= 'z') {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, errIdent)
	}
	for _, r := range id {
		if !(r == '-' || '0' <= r && r <= '9' || 'A' <= r && r <= 'Z' || 'a' <= r && r <= 'z') {
			return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, errIdent)
		}
	}
	if reservedWindowsNames[strings.ToLower(id)] {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, errWindows)
	}
	return nil
}
