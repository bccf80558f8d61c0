package modules

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// ErrModuleNotInstalled is returned when disabling a module that has no add-on record.
var ErrModuleNotInstalled = errors.New("modules: module is not installed")

// DependencyError reports the inactive parent that blocks enabling Module.
type DependencyError struct {
	Module string
	Parent string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("please activate the %s module before enabling %s", e.Parent, e.Module)
}

// Status is a manifest joined with its add-on record.
type Status struct {
	Manifest  *Manifest
	Installed bool
	Enabled   bool
}

// Resolver enables and disables modules while keeping parents active before their children.
type Resolver struct {
	db        *gorm.DB
	registry  *Registry
	installer Installer
	now       func() time.Time
}

// NewResolver constructs a Resolver. A nil installer runs goose against db.
func NewResolver(db *gorm.DB, registry *Registry, installer Installer) *Resolver {
	if installer == nil {
		installer = NewGooseInstaller(db)
	}
	return &Resolver{db: db, registry: registry, installer: installer, now: time.Now}
}

// IsActive reports whether the module's add-on record is enabled.
func (r *Resolver) IsActive(ctx context.Context, key string) (bool, error) {
	var count int64
	if errCount := r.db.WithContext(ctx).Model(&models.AddOn{}).
		Where("module = ? AND is_enable = ?", key, true).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("modules: check %s: %w", key, errCount)
	}
	return count > 0, nil
}

// List returns every known manifest with its install state.
func (r *Resolver) List(ctx context.Context) ([]Status, error) {
	manifests, errList := r.registry.List()
	if errList != nil {
		return nil, errList
	}
	var addOns []models.AddOn
	if errFind := r.db.WithContext(ctx).Find(&addOns).Error; errFind != nil {
		return nil, fmt.Errorf("modules: load add-ons: %w", errFind)
	}
	byModule := make(map[string]models.AddOn, len(addOns))
	for _, addOn := range addOns {
		byModule[addOn.Module] = addOn
	}
	out := make([]Status, 0, len(manifests))
	for _, m := range manifests {
		addOn, ok := byModule[m.Name]
		out = append(out, Status{Manifest: m, Installed: ok, Enabled: ok && addOn.IsEnable})
	}
	return out, nil
}

// CheckParents walks the declared ancestors of key and returns a *DependencyError naming the
// first inactive one.
func (r *Resolver) CheckParents(ctx context.Context, key string) error {
	root, errLoad := r.registry.Load(key)
	if errLoad != nil {
		return errLoad
	}
	visited := map[string]bool{root.Name: true}
	queue := append([]string(nil), root.Parents()...)
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		if visited[parent] {
			continue
		}
		visited[parent] = true

		active, errActive := r.IsActive(ctx, parent)
		if errActive != nil {
			return errActive
		}
		if !active {
			return &DependencyError{Module: root.Name, Parent: parent}
		}
		m, errParent := r.registry.Load(parent)
		if errParent != nil {
			if errors.Is(errParent, ErrManifestNotFound) {
				continue
			}
			return errParent
		}
		queue = append(queue, m.Parents()...)
	}
	return nil
}

// Enable installs the module and marks it enabled. Enabling an enabled module is a no-op apart
// from pending migrations.
func (r *Resolver) Enable(ctx context.Context, key string) (*models.AddOn, error) {
	m, errLoad := r.registry.Load(key)
	if errLoad != nil {
		return nil, errLoad
	}
	if errParents := r.CheckParents(ctx, m.Name); errParents != nil {
		return nil, errParents
	}

	var existing models.AddOn
	errFind := r.db.WithContext(ctx).Where("module = ?", m.Name).First(&existing).Error
	firstInstall := errors.Is(errFind, gorm.ErrRecordNotFound)
	if errFind != nil && !firstInstall {
		return nil, fmt.Errorf("modules: load %s: %w", m.Name, errFind)
	}

	if errInstall := r.installer.Install(ctx, m, firstInstall); errInstall != nil {
		return nil, errInstall
	}

	var addOn models.AddOn
	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFindTx := tx.Where("module = ?", m.Name).First(&addOn).Error
		if errors.Is(errFindTx, gorm.ErrRecordNotFound) {
			addOn = models.AddOn{
				Module:       m.Name,
				Name:         m.DisplayName(),
				PackageName:  m.PackageName,
				MonthlyPrice: m.MonthlyPrice,
				YearlyPrice:  m.YearlyPrice,
				IsEnable:     true,
				ForAdmin:     bool(m.ForAdmin),
				Priority:     m.Priority,
			}
			if errCreate := tx.Create(&addOn).Error; errCreate != nil {
				return fmt.Errorf("modules: create add-on %s: %w", m.Name, errCreate)
			}
			return nil
		}
		if errFindTx != nil {
			return fmt.Errorf("modules: load %s: %w", m.Name, errFindTx)
		}
		updates := map[string]any{
			"is_enable":    true,
			"name":         m.DisplayName(),
			"package_name": m.PackageName,
			"for_admin":    bool(m.ForAdmin),
			"priority":     m.Priority,
			"updated_at":   r.clock().UTC(),
		}
		if errUpdate := tx.Model(&addOn).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("modules: enable %s: %w", m.Name, errUpdate)
		}
		addOn.IsEnable = true
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	log.WithFields(log.Fields{
		"module":        m.Name,
		"first_install": firstInstall,
	}).Info("module enabled")
	return &addOn, nil
}

// Disable turns the module off after its active descendants, deepest first. It returns the
// modules disabled, in order.
func (r *Resolver) Disable(ctx context.Context, key string) ([]string, error) {
	m, errLoad := r.registry.Load(key)
	if errLoad != nil {
		return nil, errLoad
	}
	var count int64
	if errCount := r.db.WithContext(ctx).Model(&models.AddOn{}).Where("module = ?", m.Name).Count(&count).Error; errCount != nil {
		return nil, fmt.Errorf("modules: load %s: %w", m.Name, errCount)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotInstalled, m.Name)
	}

	dependents, errDependents := r.dependents()
	if errDependents != nil {
		return nil, errDependents
	}

	order := make([]string, 0, 4)
	visited := make(map[string]bool)
	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var walk func(module string) error
		walk = func(module string) error {
			if visited[module] {
				return nil
			}
			visited[module] = true
			for _, child := range r.childrenOf(module, dependents) {
				if errWalk := walk(child); errWalk != nil {
					return errWalk
				}
			}
			res := tx.Model(&models.AddOn{}).
				Where("module = ? AND is_enable = ?", module, true).
				Updates(map[string]any{"is_enable": false, "updated_at": r.clock().UTC()})
			if res.Error != nil {
				return fmt.Errorf("modules: disable %s: %w", module, res.Error)
			}
			if res.RowsAffected > 0 {
				order = append(order, module)
			}
			return nil
		}
		return walk(m.Name)
	})
	if errTx != nil {
		return nil, errTx
	}

	log.WithFields(log.Fields{
		"module":   m.Name,
		"disabled": order,
	}).Info("module disabled")
	return order, nil
}

// dependents maps a module to the modules that declare it as a parent.
func (r *Resolver) dependents() (map[string][]string, error) {
	manifests, errList := r.registry.List()
	if errList != nil {
		return nil, errList
	}
	out := make(map[string][]string)
	for _, m := range manifests {
		for _, parent := range m.Parents() {
			out[parent] = append(out[parent], m.Name)
		}
	}
	return out, nil
}

// childrenOf merges the declared child_module list with modules naming this one as parent.
func (r *Resolver) childrenOf(module string, dependents map[string][]string) []string {
	var children models.ModuleKeys
	if m, errLoad := r.registry.Load(module); errLoad == nil {
		children = append(children, m.Children()...)
	}
	children = append(children, dependents[module]...)
	return children.Clean()
}

func (r *Resolver) clock() time.Time {
	if r == nil || r.now == nil {
		return time.Now()
	}
	return r.now()
}
