// Package entitlement resolves which modules and resource quotas a tenant currently holds.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// SuperadminActivatedModules are platform-side modules hidden from the superadmin module list.
var SuperadminActivatedModules = []string{"LandingPage", "Paypal", "Stripe"}

// ErrUserNotFound is returned when the requested user does not exist.
var ErrUserNotFound = errors.New("entitlement: user not found")

// Entitlement is the resolved capability set of a tenant.
type Entitlement struct {
	TenantID       uint64
	PlanID         *uint64
	ExpiresAt      *time.Time
	Modules        []string
	MaxUsers       int64
	StorageLimitKB int64
}

// Has reports whether module is part of the entitlement.
func (e Entitlement) Has(module string) bool {
	for _, m := range e.Modules {
		if m == module {
			return true
		}
	}
	return false
}

// Resolver computes entitlements from plans, add-ons and per-tenant module activations.
type Resolver struct {
	db *gorm.DB
}

// NewResolver constructs a Resolver.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// AvailableModules lists the module keys the user may use, ordered by add-on priority.
func (r *Resolver) AvailableModules(ctx context.Context, userID uint64) ([]string, error) {
	ent, err := r.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ent.Modules, nil
}

// HasModule reports whether the user may use module.
func (r *Resolver) HasModule(ctx context.Context, userID uint64, module string) (bool, error) {
	ent, err := r.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return ent.Has(module), nil
}

// Resolve computes the entitlement of the tenant the user belongs to.
func (r *Resolver) Resolve(ctx context.Context, userID uint64) (Entitlement, error) {
	if r == nil || r.db == nil {
		return Entitlement{}, fmt.Errorf("entitlement: nil db")
	}
	user, err := r.loadUser(ctx, userID)
	if err != nil {
		return Entitlement{}, err
	}
	tenant := user
	if tenantID := user.TenantID(); tenantID != user.ID {
		if tenant, err = r.loadUser(ctx, tenantID); err != nil {
			return Entitlement{}, err
		}
	}

	var enabled []models.AddOn
	if errFind := r.db.WithContext(ctx).
		Where("is_enable = ?", true).
		Order("priority ASC, module ASC").
		Find(&enabled).Error; errFind != nil {
		return Entitlement{}, fmt.Errorf("entitlement: load add-ons: %w", errFind)
	}

	ent := Entitlement{
		TenantID:       tenant.ID,
		PlanID:         tenant.ActivePlanID,
		ExpiresAt:      tenant.PlanExpireDate,
		MaxUsers:       tenant.MaxUsers,
		StorageLimitKB: tenant.StorageLimitKB,
		Modules:        []string{},
	}

	if tenant.IsSuperAdmin() {
		excluded := make(map[string]struct{}, len(SuperadminActivatedModules))
		for _, m := range SuperadminActivatedModules {
			excluded[m] = struct{}{}
		}
		for _, addOn := range enabled {
			if _, skip := excluded[addOn.Module]; skip {
				continue
			}
			ent.Modules = append(ent.Modules, addOn.Module)
		}
		ent.MaxUsers = models.Unlimited
		ent.StorageLimitKB = models.Unlimited
		return ent, nil
	}

	granted := make(map[string]struct{})
	if tenant.ActivePlanID != nil {
		var plan models.Plan
		errPlan := r.db.WithContext(ctx).First(&plan, *tenant.ActivePlanID).Error
		if errPlan == nil {
			for _, m := range plan.Modules.Clean() {
				granted[m] = struct{}{}
			}
		} else if !errors.Is(errPlan, gorm.ErrRecordNotFound) {
			return Entitlement{}, fmt.Errorf("entitlement: load plan: %w", errPlan)
		}
	}

	var active []models.UserActiveModule
	if errFind := r.db.WithContext(ctx).Where("user_id = ?", tenant.ID).Find(&active).Error; errFind != nil {
		return Entitlement{}, fmt.Errorf("entitlement: load active modules: %w", errFind)
	}
	for _, row := range active {
		granted[row.Module] = struct{}{}
	}

	for _, addOn := range enabled {
		if addOn.ForAdmin {
			continue
		}
		if _, ok := granted[addOn.Module]; ok {
			ent.Modules = append(ent.Modules, addOn.Module)
		}
	}
	return ent, nil
}

func (r *Resolver) loadUser(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if errFind := r.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("entitlement: load user: %w", errFind)
	}
	return &user, nil
}
