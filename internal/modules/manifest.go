// Package modules installs add-on modules from their manifests and keeps the enable state
// consistent with the declared parent and child modules.
package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/workdesk-hq/platform/internal/models"
)

// ManifestFile is the manifest file name inside each module directory.
const ManifestFile = "module.json"

var (
	ErrManifestNotFound = errors.New("modules: module.json not found")
	ErrInvalidModuleKey = errors.New("modules: invalid module key")
)

// Manifest is the static description shipped with a module.
type Manifest struct {
	Name          string          `json:"name"`
	Alias         string          `json:"alias"`
	MonthlyPrice  decimal.Decimal `json:"monthly_price"`
	YearlyPrice   decimal.Decimal `json:"yearly_price"`
	PackageName   string          `json:"package_name"`
	ForAdmin      flexBool        `json:"for_admin"`
	Priority      int             `json:"priority"`
	ParentModules flexKeys        `json:"parent_module"`
	ChildModules  flexKeys        `json:"child_module"`
	Dir           string          `json:"-"`
}

// Key returns the module key.
func (m *Manifest) Key() string {
	if m == nil {
		return ""
	}
	return m.Name
}

// Parents returns the declared parent module keys.
func (m *Manifest) Parents() models.ModuleKeys { return models.ModuleKeys(m.ParentModules).Clean() }

// Children returns the declared child module keys.
func (m *Manifest) Children() models.ModuleKeys { return models.ModuleKeys(m.ChildModules).Clean() }

// DisplayName returns the alias, falling back to the key.
func (m *Manifest) DisplayName() string {
	if alias := strings.TrimSpace(m.Alias); alias != "" {
		return alias
	}
	return m.Name
}

// flexBool accepts true/false, 0/1 and their string forms.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*b = false
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid boolean %s", string(data))
	}
	*b = flexBool(parsed)
	return nil
}

// flexKeys accepts a JSON list of keys or a single comma separated string.
type flexKeys []string

func (k *flexKeys) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*k = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = flexKeys(models.ModuleKeys(list).Clean())
		return nil
	}
	var csv string
	if err := json.Unmarshal(data, &csv); err != nil {
		return fmt.Errorf("invalid module list %s", string(data))
	}
	*k = flexKeys(models.ParseModuleKeys(csv))
	return nil
}

// ParseManifest decodes a module.json payload.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("parse manifest: empty payload")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.Name = strings.TrimSpace(m.Name)
	if err := validateKey(m.Name); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Registry reads manifests from <root>/<Module>/module.json.
type Registry struct {
	root string
}

// NewRegistry constructs a Registry rooted at dir.
func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// Root returns the modules directory.
func (r *Registry) Root() string { return r.root }

// Load reads the manifest of one module.
func (r *Registry) Load(key string) (*Manifest, error) {
	key = strings.TrimSpace(key)
	if err := validateKey(key); err != nil {
		return nil, err
	}
	dir := filepath.Join(r.root, key)
	data, errRead := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, key)
		}
		return nil, fmt.Errorf("modules: read %s manifest: %w", key, errRead)
	}
	m, errParse := ParseManifest(data)
	if errParse != nil {
		return nil, fmt.Errorf("modules: %s: %w", key, errParse)
	}
	if m.Name != key {
		return nil, fmt.Errorf("modules: manifest name %q does not match directory %q", m.Name, key)
	}
	m.Dir = dir
	return m, nil
}

// List loads every manifest under the root, ordered by priority then key. Directories without a
// manifest are skipped.
func (r *Registry) List() ([]*Manifest, error) {
	entries, errRead := os.ReadDir(r.root)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("modules: list %s: %w", r.root, errRead)
	}
	out := make([]*Manifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		m, errLoad := r.Load(entry.Name())
		if errLoad != nil {
			if errors.Is(errLoad, ErrManifestNotFound) {
				continue
			}
			return nil, errLoad
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidModuleKey, key)
	}
	return nil
}
