// Package assignment moves tenants between plans: quotas, module activations, expiry and orders
// are written in a single transaction.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/coupon"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/pricing"
	"github.com/workdesk-hq/platform/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsePlanDefault as a counter value takes the quota from the plan.
const UsePlanDefault int64 = -1

var (
	ErrPlanNotFound     = errors.New("assignment: plan not found")
	ErrPlanDisabled     = errors.New("assignment: plan is disabled")
	ErrUserNotFound     = errors.New("assignment: user not found")
	ErrNotTenant        = errors.New("assignment: user is not a tenant owner")
	ErrUnknownModule    = errors.New("assignment: module is not available for purchase")
	ErrTrialUnavailable = errors.New("assignment: plan does not offer a trial")
	ErrTrialUsed        = errors.New("assignment: trial already used")
	ErrNotFreePlan      = errors.New("assignment: plan is not free")
)

// Period is the length a plan assignment runs for.
type Period string

// Period constants.
const (
	PeriodMonth    Period = "Month"
	PeriodYear     Period = "Year"
	PeriodTrial    Period = "Trial"
	PeriodLifetime Period = "Lifetime"
)

// PeriodFor maps a billing duration to an assignment period.
func PeriodFor(d pricing.Duration) Period {
	if pricing.ParseDuration(string(d)) == pricing.Year {
		return PeriodYear
	}
	return PeriodMonth
}

// Counter carries the quotas to apply. UsePlanDefault takes the plan value.
type Counter struct {
	UserCounter    int64
	StorageCounter int64
}

// PlanDefaults is a Counter that takes both quotas from the plan.
var PlanDefaults = Counter{UserCounter: UsePlanDefault, StorageCounter: UsePlanDefault}

// AssignPlanRequest describes a plan transition.
type AssignPlanRequest struct {
	PlanID  uint64
	Period  Period
	Modules models.ModuleKeys
	Counter Counter
	UserID  uint64
}

// AssignPlanResult reports the outcome of AssignPlan.
type AssignPlanResult struct {
	IsSuccess bool
	Error     string
	Err       error
	ExpiresAt *time.Time
	Tenant    *models.User
}

// Engine performs plan assignments and the purchase flows built on them.
type Engine struct {
	db       *gorm.DB
	pricing  *pricing.Calculator
	coupons  *coupon.Engine
	settings settings.Provider
	now      func() time.Time
}

// NewEngine constructs an Engine. Nil collaborators are built from db.
func NewEngine(db *gorm.DB, calc *pricing.Calculator, coupons *coupon.Engine, provider settings.Provider) *Engine {
	if calc == nil {
		calc = pricing.NewCalculator(db)
	}
	if coupons == nil {
		coupons = coupon.NewEngine(db)
	}
	if provider == nil {
		provider = settings.NewGormProvider(db)
	}
	return &Engine{db: db, pricing: calc, coupons: coupons, settings: provider, now: time.Now}
}

// AssignPlan applies the request atomically; on failure nothing is written.
func (e *Engine) AssignPlan(ctx context.Context, req AssignPlanRequest) AssignPlanResult {
	var tenant *models.User
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var errAssign error
		tenant, errAssign = e.AssignPlanTx(ctx, tx, req)
		return errAssign
	})
	if errTx != nil {
		return AssignPlanResult{IsSuccess: false, Error: errTx.Error(), Err: errTx}
	}
	return AssignPlanResult{IsSuccess: true, ExpiresAt: tenant.PlanExpireDate, Tenant: tenant}
}

// AssignPlanTx applies the request inside tx.
func (e *Engine) AssignPlanTx(ctx context.Context, tx *gorm.DB, req AssignPlanRequest) (*models.User, error) {
	var plan models.Plan
	if errFind := tx.WithContext(ctx).First(&plan, req.PlanID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("assignment: load plan: %w", errFind)
	}

	tenant, errTenant := lockTenant(ctx, tx, req.UserID)
	if errTenant != nil {
		return nil, errTenant
	}

	modules := req.Modules.Clean()
	if errModules := activateModules(ctx, tx, tenant.ID, modules); errModules != nil {
		return nil, errModules
	}

	maxUsers := req.Counter.UserCounter
	if maxUsers == UsePlanDefault {
		maxUsers = plan.NumberOfUsers
	}
	storage := req.Counter.StorageCounter
	if storage == UsePlanDefault {
		storage = plan.StorageLimit
	}

	now := e.clock().UTC()
	samePlan := tenant.ActivePlanID != nil && *tenant.ActivePlanID == plan.ID
	expiry := NextExpiry(tenant.PlanExpireDate, samePlan, req.Period, plan.TrialDays, now)

	updates := map[string]any{
		"active_plan_id":   plan.ID,
		"plan_expire_date": expiry,
		"max_users":        maxUsers,
		"storage_limit":    storage,
		"updated_at":       now,
	}
	if errUpdate := tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", tenant.ID).Updates(updates).Error; errUpdate != nil {
		return nil, fmt.Errorf("assignment: update tenant: %w", errUpdate)
	}

	tenant.ActivePlanID = &plan.ID
	tenant.PlanExpireDate = expiry
	tenant.MaxUsers = maxUsers
	tenant.StorageLimitKB = storage

	log.WithFields(log.Fields{
		"tenant_id": tenant.ID,
		"plan_id":   plan.ID,
		"period":    req.Period,
		"modules":   modules.CSV(),
	}).Info("plan assigned")
	return tenant, nil
}

// NextExpiry computes the plan expiry after an assignment. Renewing the same plan before it
// lapses extends from the current expiry; everything else counts from now.
func NextExpiry(current *time.Time, samePlan bool, period Period, trialDays int, now time.Time) *time.Time {
	base := now
	if samePlan && current != nil && current.After(now) {
		base = *current
	}
	var next time.Time
	switch period {
	case PeriodLifetime:
		return nil
	case PeriodTrial:
		next = now.AddDate(0, 0, trialDays)
	case PeriodYear:
		next = base.AddDate(1, 0, 0)
	default:
		next = base.AddDate(0, 1, 0)
	}
	return &next
}

func lockTenant(ctx context.Context, tx *gorm.DB, userID uint64) (*models.User, error) {
	var tenant models.User
	if errFind := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tenant, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("assignment: load tenant: %w", errFind)
	}
	if tenant.Type != models.UserTypeCompany {
		return nil, ErrNotTenant
	}
	return &tenant, nil
}

// activateModules records à la carte modules for the tenant. Existing activations are kept.
func activateModules(ctx context.Context, tx *gorm.DB, tenantID uint64, modules models.ModuleKeys) error {
	if len(modules) == 0 {
		return nil
	}
	var addOns []models.AddOn
	if errFind := tx.WithContext(ctx).Where("module IN ?", []string(modules)).Find(&addOns).Error; errFind != nil {
		return fmt.Errorf("assignment: load add-ons: %w", errFind)
	}
	known := make(map[string]bool, len(addOns))
	for _, addOn := range addOns {
		known[addOn.Module] = !addOn.ForAdmin
	}
	for _, module := range modules {
		if !known[module] {
			return fmt.Errorf("%w: %s", ErrUnknownModule, module)
		}
	}
	for _, module := range modules {
		row := models.UserActiveModule{UserID: tenantID, Module: module}
		if errCreate := tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "module"}},
				DoNothing: true,
			}).
			Create(&row).Error; errCreate != nil {
			return fmt.Errorf("assignment: activate %s: %w", module, errCreate)
		}
	}
	return nil
}

func (e *Engine) clock() time.Time {
	if e == nil || e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) currency(ctx context.Context) string {
	return settings.String(ctx, e.settings, settings.CurrencyKey, settings.DefaultCurrency)
}
