// Package card implements §4.E: the in-memory card cache and tree model,
// keyed by card key, kept in sync with the on-disk card tree by the command
// layer and the content watcher.
package card

import (
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

// Record is one card's in-memory representation: its location, its parsed
// index.json, and its tree relations. Metadata retains unknown fields
// verbatim, per §4.E.
type Record struct {
	Key         string
	Path        string
	ParentKey   string
	ChildKeys   []string
	Metadata    map[string]any
	Attachments []string
}

// Rank returns the card's rank field, or "" if unset.
func (r *Record) Rank() string {
	if v, ok := r.Metadata["rank"].(string); ok {
		return v
	}
	return ""
}

// Cache holds the project's card partition plus one partition per template,
// each keyed independently so a template deletion drops only its own cards
// (§4.E deleteCardsFromTemplate).
type Cache struct {
	fs     afero.Fs
	layout respath.Layout

	mu        sync.RWMutex
	cards     map[string]*Record
	roots     []string // top-level card keys, in on-disk discovery order
	templates map[string]map[string]*Record
}

// New constructs an empty Cache. Call Populate to hydrate it from disk.
func New(fsys afero.Fs, layout respath.Layout) *Cache {
	return &Cache{
		fs:        fsys,
		layout:    layout,
		cards:     map[string]*Record{},
		templates: map[string]map[string]*Record{},
	}
}

// Populate walks the project's card root once, replacing the project
// partition. Template partitions are left untouched; call PopulateTemplate
// for each template resource separately, since this package does not know
// about the resource cache (§9 "no cycles at ownership level").
func (c *Cache) Populate() error {
	records, roots, err := c.walk(c.layout.CardRoot(), "")
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cards = records
	c.roots = roots
	c.mu.Unlock()
	return nil
}

// PopulateTemplate walks one template's content folder, replacing that
// template's partition.
func (c *Cache) PopulateTemplate(templateName, root string) error {
	records, _, err := c.walk(root, "")
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.templates[templateName] = records
	c.mu.Unlock()
	return nil
}

// DeleteCardsFromTemplate drops a template's card partition.
func (c *Cache) DeleteCardsFromTemplate(templateName string) {
	c.mu.Lock()
	delete(c.templates, templateName)
	c.mu.Unlock()
}

func (c *Cache) walk(root, parentKey string) (map[string]*Record, []string, error) {
	records := map[string]*Record{}
	exists, err := afero.DirExists(c.fs, root)
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot stat "+root)
	}
	if !exists {
		return records, nil, nil
	}
	roots, err := c.walkInto(root, parentKey, records)
	if err != nil {
		return nil, nil, err
	}
	return records, roots, nil
}

func (c *Cache) walkInto(dir, parentKey string, records map[string]*Record) ([]string, error) {
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read "+dir)
	}

	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		cardDir := filepath.Join(dir, e.Name())
		metaPath := respath.CardMetadataFile(cardDir)
		exists, err := afero.Exists(c.fs, metaPath)
		if err != nil {
			return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot stat "+metaPath)
		}
		if !exists {
			continue
		}
		key := e.Name()
		meta, err := readMetadata(c.fs, metaPath)
		if err != nil {
			return nil, err
		}
		attachments, err := listAttachments(c.fs, respath.CardAttachmentsFolder(cardDir))
		if err != nil {
			return nil, err
		}

		rec := &Record{Key: key, Path: cardDir, ParentKey: parentKey, Metadata: meta, Attachments: attachments}
		records[key] = rec
		keys = append(keys, key)

		childKeys, err := c.walkInto(respath.CardChildrenFolder(cardDir), key, records)
		if err != nil {
			return nil, err
		}
		rec.ChildKeys = childKeys
	}
	return keys, nil
}

func readMetadata(fsys afero.Fs, path string) (map[string]any, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read "+path)
	}
	var meta map[string]any
	if err := schema.LoadJSON(raw, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func listAttachments(fsys afero.Fs, dir string) ([]string, error) {
	exists, err := afero.DirExists(fsys, dir)
	if err != nil || !exists {
		return nil, nil
	}
	var names []string
	err = afero.Walk(fsys, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		names = append(names, rel)
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot list attachments in "+dir)
	}
	sort.Strings(names)
	return names, nil
}

// Find looks up a project card by key.
func (c *Cache) Find(key string) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.cards[key]
	if !ok {
		return nil, errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "card "+key+" not found")
	}
	return r, nil
}

// Exists reports whether key resolves to a project card.
func (c *Cache) Exists(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cards[key]
	return ok
}

// Cards returns a depth-first preorder listing of the project tree rooted
// at root (or the whole project if root is empty), siblings stably sorted
// by rank then cardKey.
func (c *Cache) Cards(root string) ([]*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Record
	if root == "" {
		c.preorder(c.cards, c.roots, &out)
		return out, nil
	}

	rec, ok := c.cards[root]
	if !ok {
		return nil, errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "card "+root+" not found")
	}
	out = append(out, rec)
	c.preorder(c.cards, rec.ChildKeys, &out)
	return out, nil
}

// TemplateCards returns a template's card subtree, depth-first preorder.
func (c *Cache) TemplateCards(templateName string) []*Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	part, ok := c.templates[templateName]
	if !ok {
		return nil
	}
	var roots []string
	for key, rec := range part {
		if rec.ParentKey == "" {
			roots = append(roots, key)
		}
	}

	var out []*Record
	c.preorder(part, roots, &out)
	return out
}

// preorder appends keys' subtree to out in rank-then-key order. keys is
// frequently a live Cache.roots or Record.ChildKeys slice shared with
// concurrent readers, so it sorts a local copy rather than keys itself --
// sort.SliceStable mutating a shared backing array in place is a data race
// under RLock (§5 "readers see a consistent snapshot").
func (c *Cache) preorder(part map[string]*Record, keys []string, out *[]*Record) {
	ordered := sortedKeys(part, keys)
	for _, k := range ordered {
		rec, ok := part[k]
		if !ok {
			continue
		}
		*out = append(*out, rec)
		c.preorder(part, rec.ChildKeys, out)
	}
}

// sortedKeys returns a new slice holding keys in rank-then-cardKey order,
// never touching keys' own backing array.
func sortedKeys(part map[string]*Record, keys []string) []string {
	ordered := append([]string(nil), keys...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := part[ordered[i]], part[ordered[j]]
		if ri == nil || rj == nil {
			return false
		}
		if ri.Rank() != rj.Rank() {
			return ri.Rank() < rj.Rank()
		}
		return ri.Key < rj.Key
	})
	return ordered
}

// sortRecords sorts recs in place by rank then cardKey. Unlike sortedKeys,
// callers use this when recs is already their own freshly built slice (not
// a shared cache field), so sorting it directly is both safe and the only
// way the caller's returned order is actually affected.
func sortRecords(recs []*Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Rank() != recs[j].Rank() {
			return recs[i].Rank() < recs[j].Rank()
		}
		return recs[i].Key < recs[j].Key
	})
}

// Add inserts a newly-created card into the project partition, appending it
// to its parent's child list (or the root list, if parentKey is empty).
func (c *Cache) Add(rec *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.cards[rec.Key]; exists {
		return errkind.New(errkind.Conflict, errkind.CodeCardExists, "card "+rec.Key+" already exists")
	}
	c.cards[rec.Key] = rec
	if rec.ParentKey == "" {
		c.roots = append(c.roots, rec.Key)
		return nil
	}
	parent, ok := c.cards[rec.ParentKey]
	if !ok {
		return errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "parent card "+rec.ParentKey+" not found")
	}
	parent.ChildKeys = append(parent.ChildKeys, rec.Key)
	return nil
}

// Remove deletes a card and its descendants from the project partition.
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.cards[key]
	if !ok {
		return errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "card "+key+" not found")
	}
	for _, child := range rec.ChildKeys {
		c.removeSubtree(child)
	}
	c.removeSubtree(key)

	if rec.ParentKey == "" {
		c.roots = removeString(c.roots, key)
	} else if parent, ok := c.cards[rec.ParentKey]; ok {
		parent.ChildKeys = removeString(parent.ChildKeys, key)
	}
	return nil
}

func (c *Cache) removeSubtree(key string) {
	rec, ok := c.cards[key]
	if !ok {
		return
	}
	for _, child := range rec.ChildKeys {
		c.removeSubtree(child)
	}
	delete(c.cards, key)
}

func removeString(ss []string, target string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// Reparent moves key under newParent ("" meaning project root), rejecting
// moves that would create a cycle (§4.G Move.card).
func (c *Cache) Reparent(key, newParent string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.cards[key]
	if !ok {
		return errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "card "+key+" not found")
	}
	if newParent == key {
		return errkind.New(errkind.Policy, errkind.CodeCycleForbidden, "cannot move a card under itself")
	}
	if newParent != "" {
		if _, ok := c.cards[newParent]; !ok {
			return errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "card "+newParent+" not found")
		}
		if c.isDescendant(key, newParent) {
			return errkind.New(errkind.Policy, errkind.CodeCycleForbidden, "cannot move a card under its own descendant")
		}
	}

	oldParent := rec.ParentKey
	if oldParent == "" {
		c.roots = removeString(c.roots, key)
	} else if p, ok := c.cards[oldParent]; ok {
		p.ChildKeys = removeString(p.ChildKeys, key)
	}

	rec.ParentKey = newParent
	if newParent == "" {
		c.roots = append(c.roots, key)
	} else {
		c.cards[newParent].ChildKeys = append(c.cards[newParent].ChildKeys, key)
	}
	return nil
}

func (c *Cache) isDescendant(ancestor, candidate string) bool {
	rec, ok := c.cards[ancestor]
	if !ok {
		return false
	}
	for _, child := range rec.ChildKeys {
		if child == candidate {
			return true
		}
		if c.isDescendant(child, candidate) {
			return true
		}
	}
	return false
}

// SetMetadata replaces a card's in-memory metadata (callers persist to disk
// separately, then call this to keep the cache consistent).
func (c *Cache) SetMetadata(key string, meta map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.cards[key]
	if !ok {
		return errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "card "+key+" not found")
	}
	rec.Metadata = meta
	return nil
}

// Siblings returns the records of key's current siblings (excluding key
// itself), sorted by rank then key, for rank computation by Move.rankByIndex.
func (c *Cache) Siblings(key string) ([]*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.cards[key]
	if !ok {
		return nil, errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "card "+key+" not found")
	}
	var keys []string
	if rec.ParentKey == "" {
		keys = c.roots
	} else {
		keys = c.cards[rec.ParentKey].ChildKeys
	}
	var siblings []*Record
	for _, k := range keys {
		if k == key {
			continue
		}
		if r, ok := c.cards[k]; ok {
			siblings = append(siblings, r)
		}
	}
	sortRecords(siblings)
	return siblings, nil
}

// Children returns the direct children of parentKey (or the project's
// top-level cards, if parentKey is empty) in tree order.
func (c *Cache) Children(parentKey string) ([]*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var keys []string
	if parentKey == "" {
		keys = c.roots
	} else {
		rec, ok := c.cards[parentKey]
		if !ok {
			return nil, errkind.New(errkind.NotFound, errkind.CodeCardNotFound, "card "+parentKey+" not found")
		}
		keys = rec.ChildKeys
	}

	var out []*Record
	for _, k := range keys {
		if r, ok := c.cards[k]; ok {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}
