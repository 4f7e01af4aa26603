// Package project implements §4.C (the cardsConfig.json configuration
// store) and the top-level Project lifecycle described in §3/§9: a project
// instance owns its Configuration, and is the handle every other component
// (ResourceHandler, CardCache, CalculationEngine, ContentWatcher, RW lock)
// is constructed against.
package project

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

const (
	// CurrentSchemaVersion is the schema version this build of the engine
	// writes when a project has none recorded yet.
	CurrentSchemaVersion = "1.0"

	errReadConfig    = "cannot read project configuration"
	errWriteConfig   = "cannot write project configuration"
	errEmptyPrefix   = "cannot save configuration: cardKeyPrefix is empty"
	errInvalidPrefix = "cardKeyPrefix must match ^[a-z]{1,10}$"
)

var prefixOK = func(p string) bool {
	if len(p) < 1 || len(p) > 10 {
		return false
	}
	for _, r := range p {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Module is an imported project's registration inside a host project's
// configuration.
type Module struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Config is the on-disk shape of cardsConfig.json.
type Config struct {
	SchemaVersion string   `json:"schemaVersion"`
	Version       int      `json:"version"`
	CardKeyPrefix string   `json:"cardKeyPrefix"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Modules       []Module `json:"modules,omitempty"`
	Hubs          []string `json:"hubs,omitempty"`
}

// Source abstracts where a Config is read from, mirroring the teacher's
// config.Source indirection so tests can supply an in-memory Config without
// touching a filesystem.
type Source interface {
	GetConfig() (*Config, error)
}

// Extract pulls the Config out of a Source.
func Extract(src Source) (*Config, error) {
	cfg, err := src.GetConfig()
	if err != nil {
		return nil, errors.Wrap(err, errReadConfig)
	}
	return cfg, nil
}

// FileSource reads cardsConfig.json off an afero filesystem.
type FileSource struct {
	FS   afero.Fs
	Path string
}

// GetConfig implements Source.
func (s FileSource) GetConfig() (*Config, error) {
	raw, err := afero.ReadFile(s.FS, s.Path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, errReadConfig)
	}
	cfg := &Config{}
	if err := schema.LoadJSON(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Store reads and writes a project's cardsConfig.json, and implements the
// project-configuration operations from §4.C.
type Store struct {
	fs        afero.Fs
	path      string
	validator *schema.Validator
	cfg       *Config
}

// NewStore loads (or lazily prepares to create) the configuration at the
// given layout's ConfigFile path.
func NewStore(fs afero.Fs, layout respath.Layout, validator *schema.Validator) (*Store, error) {
	s := &Store{fs: fs, path: layout.ConfigFile(), validator: validator}
	exists, err := afero.Exists(fs, s.path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, errReadConfig)
	}
	if !exists {
		s.cfg = &Config{SchemaVersion: CurrentSchemaVersion, Version: 1}
		return s, nil
	}
	cfg, err := Extract(FileSource{FS: fs, Path: s.path})
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return s, nil
}

// Config returns the current in-memory configuration. Callers must not
// mutate the returned value directly; use the Store's operations instead.
func (s *Store) Config() Config { return *s.cfg }

// Save persists the current configuration, refusing to write when
// CardKeyPrefix is empty.
func (s *Store) Save() error {
	if s.cfg.CardKeyPrefix == "" {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, errEmptyPrefix)
	}
	if s.validator != nil {
		if err := s.validator.Validate(schema.CardsConfig, s.cfg); err != nil {
			return err
		}
	}
	if err := afero.WriteFile(s.fs, s.path, mustMarshalIndent(s.cfg), 0o644); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, errWriteConfig)
	}
	return nil
}

// AddModule registers an imported module, normalizing file:// URLs to
// absolute paths before storage.
func (s *Store) AddModule(name, location string) error {
	for _, m := range s.cfg.Modules {
		if m.Name == name {
			return errkind.New(errkind.Conflict, errkind.CodeModuleAlreadyImported, "module '"+name+"' is already imported")
		}
	}
	loc, err := normalizeLocation(location)
	if err != nil {
		return err
	}
	s.cfg.Modules = append(s.cfg.Modules, Module{Name: name, Location: loc})
	return nil
}

// RemoveModule unregisters a previously imported module.
func (s *Store) RemoveModule(name string) error {
	for i, m := range s.cfg.Modules {
		if m.Name == name {
			s.cfg.Modules = append(s.cfg.Modules[:i], s.cfg.Modules[i+1:]...)
			return nil
		}
	}
	return errkind.New(errkind.NotFound, errkind.CodeModuleNotImported, "module '"+name+"' is not imported")
}

// ListHubs returns the configured hub registry URLs.
func (s *Store) ListHubs() []string {
	out := make([]string, len(s.cfg.Hubs))
	copy(out, s.cfg.Hubs)
	return out
}

// AddHub trims whitespace and rejects empty, non-HTTP(S), invalid, or
// duplicate URLs.
func (s *Store) AddHub(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "hub URL must not be empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "'"+raw+"' is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "hub URL must use http or https")
	}
	for _, h := range s.cfg.Hubs {
		if h == trimmed {
			return errkind.New(errkind.Conflict, errkind.CodeResourceExists, "hub '"+trimmed+"' is already registered")
		}
	}
	s.cfg.Hubs = append(s.cfg.Hubs, trimmed)
	return nil
}

// RemoveHub removes a previously registered hub URL.
func (s *Store) RemoveHub(raw string) error {
	trimmed := strings.TrimSpace(raw)
	for i, h := range s.cfg.Hubs {
		if h == trimmed {
			s.cfg.Hubs = append(s.cfg.Hubs[:i], s.cfg.Hubs[i+1:]...)
			return nil
		}
	}
	return errkind.New(errkind.NotFound, errkind.CodeInvalidInput, "hub '"+trimmed+"' is not registered")
}

// SetSchemaVersion records the project's schema version, called by the
// migration runner once a step completes successfully. It does not persist;
// callers must still call Save.
func (s *Store) SetSchemaVersion(v string) {
	s.cfg.SchemaVersion = v
}

// SetCardPrefix requires the new prefix to match ^[a-z]{1,10}$.
func (s *Store) SetCardPrefix(p string) error {
	if !prefixOK(p) {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, errInvalidPrefix)
	}
	s.cfg.CardKeyPrefix = p
	return nil
}

// SchemaCompatibility reports how the project's recorded schema version
// relates to CurrentSchemaVersion.
type SchemaCompatibility struct {
	Compatible bool
	Message    string
}

// CheckSchemaVersion compares the project's recorded schema version against
// CurrentSchemaVersion. An undefined version is treated as compatible and
// persisted as current.
func (s *Store) CheckSchemaVersion() (SchemaCompatibility, error) {
	if s.cfg.SchemaVersion == "" {
		s.cfg.SchemaVersion = CurrentSchemaVersion
		if err := s.Save(); err != nil {
			return SchemaCompatibility{}, err
		}
		return SchemaCompatibility{Compatible: true, Message: "schema version initialized to " + CurrentSchemaVersion}, nil
	}
	switch {
	case s.cfg.SchemaVersion == CurrentSchemaVersion:
		return SchemaCompatibility{Compatible: true}, nil
	case s.cfg.SchemaVersion < CurrentSchemaVersion:
		return SchemaCompatibility{
			Compatible: false,
			Message:    "project schema " + s.cfg.SchemaVersion + " is older than " + CurrentSchemaVersion + "; run a migration",
		}, nil
	default:
		return SchemaCompatibility{
			Compatible: false,
			Message:    "project schema " + s.cfg.SchemaVersion + " is newer than " + CurrentSchemaVersion + "; update the application",
		}, nil
	}
}

func normalizeLocation(location string) (string, error) {
	if strings.HasPrefix(location, "file://") {
		return filepath.Abs(strings.TrimPrefix(location, "file://"))
	}
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return location, nil
	}
	return filepath.Abs(location)
}

func mustMarshalIndent(cfg *Config) []byte {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		// Config is a plain, fully JSON-marshalable struct; a failure here
		// would mean a programming error, not a runtime condition to recover
		// from.
		panic(err)
	}
	return b
}
