// Package manifest handles typehints.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "typehints.toml"

// Output formats.
const (
	FormatText = "text"
	FormatCBOR = "cbor"
)

// Manifest represents a typehints.toml configuration.
type Manifest struct {
	Log        Log        `toml:"log"`
	Output     Output     `toml:"output"`
	Catalog    Catalog    `toml:"catalog"`
	Attributes Attributes `toml:"attributes"`

	// Dir is the directory containing the typehints.toml file (set at load time).
	Dir string `toml:"-"`
}

// Log configures diagnostics.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Output configures how decoded attributes are printed.
type Output struct {
	Format string `toml:"format"`
}

// Catalog configures the hint catalog. An empty path disables it.
type Catalog struct {
	Path string `toml:"path"`
}

// Attributes selects which attributes are decoded.
type Attributes struct {
	Ignore []string `toml:"ignore"`
}

// Default returns the configuration used when no file is found.
func Default() *Manifest {
	return &Manifest{Output: Output{Format: FormatText}}
}

// Load parses a typehints.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a typehints.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the values that have a fixed set of choices.
func (m *Manifest) Validate() error {
	switch m.Output.Format {
	case FormatText, FormatCBOR:
	default:
		return fmt.Errorf("unknown output format %q", m.Output.Format)
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("negative log verbosity %d", m.Log.Verbosity)
	}
	return nil
}

// CatalogPath returns the catalog database path, resolved against the
// manifest directory. It is empty when the catalog is disabled.
func (m *Manifest) CatalogPath() string {
	return m.resolve(m.Catalog.Path)
}

// LogPath returns the log file path, or empty for stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// Ignored reports whether the named attribute is excluded from decoding.
func (m *Manifest) Ignored(name string) bool {
	return slices.Contains(m.Attributes.Ignore, name)
}
