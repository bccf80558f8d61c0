package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/coupon"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/pricing"
	"gorm.io/gorm"
)

// CouponError is returned when a purchase carries a coupon that does not apply.
type CouponError struct {
	Code    string
	Message string
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("assignment: coupon %q rejected: %s", e.Code, e.Message)
}

// PurchaseRequest is a paid plan purchase completed by a gateway or an operator.
type PurchaseRequest struct {
	UserID      uint64
	PlanID      uint64
	Duration    pricing.Duration
	Modules     models.ModuleKeys
	CouponCode  string
	PaymentType string
	TxnID       string
	Receipt     string
	// Counter overrides the plan quotas when set.
	Counter *Counter
}

// StartTrial puts the tenant on the plan's trial. No order is recorded.
func (e *Engine) StartTrial(ctx context.Context, userID, planID uint64) (*models.User, error) {
	var tenant *models.User
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, errPlan := loadEnabledPlan(ctx, tx, planID)
		if errPlan != nil {
			return errPlan
		}
		if !plan.Trial || plan.TrialDays <= 0 {
			return ErrTrialUnavailable
		}
		current, errTenant := lockTenant(ctx, tx, userID)
		if errTenant != nil {
			return errTenant
		}
		if current.IsTrialDone {
			return ErrTrialUsed
		}

		// Bundled modules come through the plan itself; only à la carte purchases are activated.
		assigned, errAssign := e.AssignPlanTx(ctx, tx, AssignPlanRequest{
			PlanID:  plan.ID,
			Period:  PeriodTrial,
			Counter: PlanDefaults,
			UserID:  userID,
		})
		if errAssign != nil {
			return errAssign
		}
		if errUpdate := tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"is_trial_done":     true,
			"trial_expire_date": assigned.PlanExpireDate,
		}).Error; errUpdate != nil {
			return fmt.Errorf("assignment: mark trial: %w", errUpdate)
		}
		assigned.IsTrialDone = true
		assigned.TrialExpireDate = assigned.PlanExpireDate
		tenant = assigned
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return tenant, nil
}

// AssignFreePlan moves the tenant onto a free plan and records a zero-priced order.
func (e *Engine) AssignFreePlan(ctx context.Context, userID, planID uint64) (*models.Order, error) {
	currency := e.currency(ctx)
	var order *models.Order
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, errPlan := loadEnabledPlan(ctx, tx, planID)
		if errPlan != nil {
			return errPlan
		}
		if !plan.FreePlan {
			return ErrNotFreePlan
		}
		tenant, errAssign := e.AssignPlanTx(ctx, tx, AssignPlanRequest{
			PlanID:  plan.ID,
			Period:  PeriodLifetime,
			Counter: PlanDefaults,
			UserID:  userID,
		})
		if errAssign != nil {
			return errAssign
		}
		created, errOrder := e.createOrder(ctx, tx, orderParams{
			Tenant:      tenant,
			Plan:        plan,
			Price:       decimal.Zero,
			Currency:    currency,
			TxnID:       "",
			PaymentType: models.PaymentTypeFree,
			Period:      PeriodLifetime,
		})
		if errOrder != nil {
			return errOrder
		}
		order = created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return order, nil
}

// Purchase prices the request, applies the coupon, assigns the plan, records the order and the
// coupon redemption in one transaction.
func (e *Engine) Purchase(ctx context.Context, req PurchaseRequest) (*models.Order, error) {
	currency := e.currency(ctx)
	var order *models.Order
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, errPurchase := e.purchaseTx(ctx, tx, req, currency)
		if errPurchase != nil {
			return errPurchase
		}
		order = created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return order, nil
}

func (e *Engine) purchaseTx(ctx context.Context, tx *gorm.DB, req PurchaseRequest, currency string) (*models.Order, error) {
	quote, errQuote := e.pricing.QuoteTx(ctx, tx, pricing.QuoteRequest{
		PlanID:   req.PlanID,
		Duration: req.Duration,
		Modules:  req.Modules,
	})
	if errQuote != nil {
		if errors.Is(errQuote, pricing.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, errQuote
	}

	price := quote.Total
	var applied *models.Coupon
	code := strings.TrimSpace(req.CouponCode)
	if code != "" {
		res, errApply := e.coupons.ApplyTx(ctx, tx, coupon.ApplyRequest{
			Code:    code,
			Amount:  quote.Total,
			UserID:  req.UserID,
			Modules: quote.Modules,
		})
		if errApply != nil {
			return nil, errApply
		}
		if !res.Valid {
			return nil, &CouponError{Code: code, Message: res.Message}
		}
		price = res.FinalAmount
		applied = res.Coupon
	}

	counter := PlanDefaults
	if req.Counter != nil {
		counter = *req.Counter
	}
	period := PeriodFor(quote.Duration)
	tenant, errAssign := e.AssignPlanTx(ctx, tx, AssignPlanRequest{
		PlanID:  quote.PlanID,
		Period:  period,
		Modules: quote.Modules,
		Counter: counter,
		UserID:  req.UserID,
	})
	if errAssign != nil {
		return nil, errAssign
	}

	var plan models.Plan
	if errFind := tx.WithContext(ctx).First(&plan, quote.PlanID).Error; errFind != nil {
		return nil, fmt.Errorf("assignment: reload plan: %w", errFind)
	}
	paymentType := strings.TrimSpace(req.PaymentType)
	if paymentType == "" {
		paymentType = models.PaymentTypeManual
	}
	order, errOrder := e.createOrder(ctx, tx, orderParams{
		Tenant:      tenant,
		Plan:        &plan,
		Price:       price,
		Currency:    currency,
		TxnID:       req.TxnID,
		PaymentType: paymentType,
		Period:      period,
		Modules:     quote.Modules,
		CouponCode:  code,
		Receipt:     req.Receipt,
	})
	if errOrder != nil {
		return nil, errOrder
	}
	if applied != nil {
		if errUsage := e.coupons.RecordUsage(ctx, tx, applied.ID, tenant.ID, order.OrderID); errUsage != nil {
			return nil, errUsage
		}
	}
	log.WithFields(log.Fields{
		"tenant_id": tenant.ID,
		"order_id":  order.OrderID,
		"price":     price.StringFixed(2),
	}).Info("plan purchased")
	return order, nil
}

func loadEnabledPlan(ctx context.Context, tx *gorm.DB, planID uint64) (*models.Plan, error) {
	var plan models.Plan
	if errFind := tx.WithContext(ctx).First(&plan, planID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("assignment: load plan: %w", errFind)
	}
	if !plan.IsEnabled {
		return nil, ErrPlanDisabled
	}
	return &plan, nil
}
