package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/settings"
	"gorm.io/gorm"
)

// ExpiredTenants returns the ids of tenants whose plan expired before now.
func (e *Engine) ExpiredTenants(ctx context.Context, now time.Time) ([]uint64, error) {
	var ids []uint64
	if errFind := e.db.WithContext(ctx).Model(&models.User{}).
		Where("type = ? AND active_plan_id IS NOT NULL AND plan_expire_date IS NOT NULL AND plan_expire_date < ?",
			models.UserTypeCompany, now.UTC()).
		Order("id ASC").
		Pluck("id", &ids).Error; errFind != nil {
		return nil, fmt.Errorf("assignment: list expired tenants: %w", errFind)
	}
	return ids, nil
}

// ExpirePlan ends the tenant's current plan. When a default plan is configured the tenant moves
// onto it without expiry; otherwise the plan and quotas are cleared. Module activations are kept.
func (e *Engine) ExpirePlan(ctx context.Context, userID uint64) (*models.User, error) {
	var tenant *models.User
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, errTenant := lockTenant(ctx, tx, userID)
		if errTenant != nil {
			return errTenant
		}
		if current.PlanExpireDate == nil || current.PlanExpireDate.After(e.clock()) {
			tenant = current
			return nil
		}

		if planID, ok := e.defaultPlanID(ctx, tx); ok {
			assigned, errAssign := e.AssignPlanTx(ctx, tx, AssignPlanRequest{
				PlanID:  planID,
				Period:  PeriodLifetime,
				Counter: PlanDefaults,
				UserID:  userID,
			})
			if errAssign != nil {
				return errAssign
			}
			tenant = assigned
			return nil
		}

		updates := map[string]any{
			"active_plan_id":   nil,
			"plan_expire_date": nil,
			"max_users":        0,
			"storage_limit":    0,
			"updated_at":       e.clock().UTC(),
		}
		if errUpdate := tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("assignment: clear plan: %w", errUpdate)
		}
		current.ActivePlanID = nil
		current.PlanExpireDate = nil
		current.MaxUsers = 0
		current.StorageLimitKB = 0
		tenant = current
		log.WithField("tenant_id", userID).Info("plan expired")
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return tenant, nil
}

// defaultPlanID reads DEFAULT_PLAN_ID and checks the plan is still usable.
func (e *Engine) defaultPlanID(ctx context.Context, tx *gorm.DB) (uint64, bool) {
	raw := settings.Int(ctx, e.settings, settings.DefaultPlanIDKey, 0)
	if raw <= 0 {
		return 0, false
	}
	planID := uint64(raw)
	if _, errPlan := loadEnabledPlan(ctx, tx, planID); errPlan != nil {
		if !errors.Is(errPlan, ErrPlanNotFound) && !errors.Is(errPlan, ErrPlanDisabled) {
			log.WithError(errPlan).Warn("expiry: load default plan")
		}
		return 0, false
	}
	return planID, true
}
