// Package respath implements §4.A: parsing and formatting of resource
// references of the form "prefix/type/identifier", and the canonical
// on-disk layout of a Cyberismo project (§6).
package respath

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
)

const (
	cardsDir      = ".cards"
	localDir      = "local"
	modulesDir    = "modules"
	cardRootDir   = "cardRoot"
	configFile    = "cardsConfig.json"
	calculations  = "calculations"
	resourcesDir  = "resources"
	indexJSON     = "index.json"
	indexAdoc     = "index.adoc"
	attachmentDir = "a"
	childrenDir   = "c"
)

var resourceNamePattern = regexp.MustCompile(`^([a-z]{1,10})/([a-zA-Z]+)/([A-Za-z][A-Za-z0-9-]*)$`)

// Name is a parsed "prefix/type/identifier" resource reference.
type Name struct {
	Prefix     string
	Type       string
	Identifier string
}

// String re-formats the Name in "prefix/type/identifier" form.
func (n Name) String() string {
	return n.Prefix + "/" + n.Type + "/" + n.Identifier
}

// Parse validates and decomposes a resource reference. Any shape other than
// "prefix/type/identifier" is rejected with errkind.InvalidResourceName.
func Parse(ref string) (Name, error) {
	m := resourceNamePattern.FindStringSubmatch(ref)
	if m == nil {
		return Name{}, errkind.New(errkind.InvalidInput, errkind.CodeInvalidResourceName,
			"'"+ref+"' is not a valid resource name; expected prefix/type/identifier")
	}
	return Name{Prefix: m[1], Type: m[2], Identifier: m[3]}, nil
}

// Format is the inverse of Parse.
func Format(prefix, resourceType, identifier string) string {
	return Name{Prefix: prefix, Type: resourceType, Identifier: identifier}.String()
}

// ModuleNameFromCardKey returns the prefix portion of a card key, i.e. the
// text before the first underscore.
func ModuleNameFromCardKey(cardKey string) string {
	if i := strings.IndexByte(cardKey, '_'); i >= 0 {
		return cardKey[:i]
	}
	return cardKey
}

// Layout resolves the canonical paths rooted at a project directory.
type Layout struct {
	Root string
}

// NewLayout anchors a Layout at the given project root.
func NewLayout(root string) Layout { return Layout{Root: root} }

// CardRoot is the directory containing the project's card tree.
func (l Layout) CardRoot() string { return filepath.Join(l.Root, cardRootDir) }

// CardsDir is "<root>/.cards".
func (l Layout) CardsDir() string { return filepath.Join(l.Root, cardsDir) }

// LocalResourcesFolder is "<root>/.cards/local".
func (l Layout) LocalResourcesFolder() string { return filepath.Join(l.CardsDir(), localDir) }

// LocalResourceTypeFolder is "<root>/.cards/local/<resourceType>".
func (l Layout) LocalResourceTypeFolder(resourceType string) string {
	return filepath.Join(l.LocalResourcesFolder(), resourceType)
}

// ConfigFile is "<root>/.cards/local/cardsConfig.json".
func (l Layout) ConfigFile() string { return filepath.Join(l.LocalResourcesFolder(), configFile) }

// CalculationsFolder is "<root>/.cards/local/calculations".
func (l Layout) CalculationsFolder() string {
	return filepath.Join(l.LocalResourcesFolder(), calculations)
}

// ModulesFolder is "<root>/.cards/modules".
func (l Layout) ModulesFolder() string { return filepath.Join(l.CardsDir(), modulesDir) }

// ModuleFolder is "<root>/.cards/modules/<prefix>".
func (l Layout) ModuleFolder(prefix string) string {
	return filepath.Join(l.ModulesFolder(), prefix)
}

// ModuleResourceTypeFolder is "<root>/.cards/modules/<prefix>/<resourceType>".
func (l Layout) ModuleResourceTypeFolder(prefix, resourceType string) string {
	return filepath.Join(l.ModuleFolder(prefix), resourceType)
}

// VersionedResourcesFolder is "<root>/.cards/<schemaVersion>/resources", the
// snapshot consulted and produced by the migration runner.
func (l Layout) VersionedResourcesFolder(schemaVersion string) string {
	return filepath.Join(l.CardsDir(), schemaVersion, resourcesDir)
}

// FileResourcePath returns the single JSON document backing a file resource
// (cardType, fieldType, linkType, workflow): <folder>/<identifier>.json.
func (l Layout) FileResourcePath(folder, identifier string) string {
	return filepath.Join(folder, identifier+".json")
}

// FolderResourcePath returns the directory backing a folder resource
// (template, report, calculation, graphModel, graphView): <folder>/<identifier>/.
func (l Layout) FolderResourcePath(folder, identifier string) string {
	return filepath.Join(folder, identifier)
}

// FolderResourceJSON is the JSON document inside a folder resource's
// directory.
func (l Layout) FolderResourceJSON(folder, identifier string) string {
	return filepath.Join(l.FolderResourcePath(folder, identifier), identifier+".json")
}

// CardDirectory returns a card's own directory given its path relative to
// its containing root (cardRoot or a template's content folder).
func CardDirectory(parent, cardKey string) string { return filepath.Join(parent, cardKey) }

// CardMetadataFile is "<cardDir>/index.json".
func CardMetadataFile(cardDir string) string { return filepath.Join(cardDir, indexJSON) }

// CardContentFile is "<cardDir>/index.adoc".
func CardContentFile(cardDir string) string { return filepath.Join(cardDir, indexAdoc) }

// CardAttachmentsFolder is "<cardDir>/a".
func CardAttachmentsFolder(cardDir string) string { return filepath.Join(cardDir, attachmentDir) }

// CardChildrenFolder is "<cardDir>/c".
func CardChildrenFolder(cardDir string) string { return filepath.Join(cardDir, childrenDir) }
