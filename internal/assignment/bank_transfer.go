package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/coupon"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/pricing"
	"github.com/workdesk-hq/platform/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBankTransferDisabled   = errors.New("assignment: bank transfer payments are disabled")
	ErrBankTransferNotFound   = errors.New("assignment: bank transfer not found")
	ErrBankTransferNotPending = errors.New("assignment: bank transfer is no longer pending")
	ErrForbidden              = errors.New("assignment: not allowed")
)

// BankTransferRequest is an offline payment submitted by a tenant.
type BankTransferRequest struct {
	UserID     uint64
	PlanID     uint64
	Duration   pricing.Duration
	Modules    models.ModuleKeys
	CouponCode string
	Attachment string
}

// BankTransferIntent is the purchase snapshot stored with a pending transfer.
type BankTransferIntent struct {
	PlanID     uint64   `json:"plan_id"`
	Duration   string   `json:"duration"`
	Modules    []string `json:"modules"`
	CouponCode string   `json:"coupon_code,omitempty"`
}

// DecodeIntent parses the stored purchase snapshot.
func DecodeIntent(raw datatypes.JSON) (BankTransferIntent, error) {
	var intent BankTransferIntent
	if errUnmarshal := json.Unmarshal(raw, &intent); errUnmarshal != nil {
		return BankTransferIntent{}, fmt.Errorf("assignment: decode bank transfer request: %w", errUnmarshal)
	}
	return intent, nil
}

// SubmitBankTransfer quotes the purchase and stores it as a pending transfer for review.
func (e *Engine) SubmitBankTransfer(ctx context.Context, req BankTransferRequest) (*models.BankTransferPayment, error) {
	if !settings.Bool(ctx, e.settings, settings.BankTransferEnabledKey, settings.DefaultBankTransferEnabled) {
		return nil, ErrBankTransferDisabled
	}
	currency := e.currency(ctx)

	var payment *models.BankTransferPayment
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, errPlan := loadEnabledPlan(ctx, tx, req.PlanID); errPlan != nil {
			return errPlan
		}
		if _, errTenant := lockTenant(ctx, tx, req.UserID); errTenant != nil {
			return errTenant
		}
		quote, errQuote := e.pricing.QuoteTx(ctx, tx, pricing.QuoteRequest{
			PlanID:   req.PlanID,
			Duration: req.Duration,
			Modules:  req.Modules,
		})
		if errQuote != nil {
			return errQuote
		}
		if len(quote.UnknownModules) > 0 {
			return fmt.Errorf("%w: %s", ErrUnknownModule, strings.Join(quote.UnknownModules, ","))
		}

		price := quote.Total
		code := strings.TrimSpace(req.CouponCode)
		if code != "" {
			res, errApply := e.coupons.ApplyTx(ctx, tx, coupon.ApplyRequest{
				Code:    code,
				Amount:  quote.Total,
				UserID:  req.UserID,
				Modules: quote.Modules,
			})
			if errApply != nil {
				return errApply
			}
			if !res.Valid {
				return &CouponError{Code: code, Message: res.Message}
			}
			price = res.FinalAmount
		}

		intent, errMarshal := json.Marshal(BankTransferIntent{
			PlanID:     quote.PlanID,
			Duration:   string(quote.Duration),
			Modules:    []string(quote.Modules),
			CouponCode: code,
		})
		if errMarshal != nil {
			return fmt.Errorf("assignment: encode bank transfer request: %w", errMarshal)
		}

		row := models.BankTransferPayment{
			OrderID:    NewOrderID(),
			UserID:     req.UserID,
			Request:    datatypes.JSON(intent),
			Status:     models.BankTransferPending,
			Price:      price,
			Currency:   currency,
			Attachment: strings.TrimSpace(req.Attachment),
		}
		if errCreate := tx.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return fmt.Errorf("assignment: create bank transfer: %w", errCreate)
		}
		payment = &row
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return payment, nil
}

// ApproveBankTransfer replays the stored purchase. The status guard makes a second approval fail
// instead of assigning the plan twice.
func (e *Engine) ApproveBankTransfer(ctx context.Context, id uint64) (*models.Order, error) {
	var order *models.Order
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.BankTransferPayment
		if errFind := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrBankTransferNotFound
			}
			return fmt.Errorf("assignment: load bank transfer: %w", errFind)
		}
		if payment.Status != models.BankTransferPending {
			return ErrBankTransferNotPending
		}

		res := tx.WithContext(ctx).Model(&models.BankTransferPayment{}).
			Where("id = ? AND status = ?", payment.ID, models.BankTransferPending).
			Updates(map[string]any{"status": models.BankTransferApproved, "updated_at": e.clock().UTC()})
		if res.Error != nil {
			return fmt.Errorf("assignment: approve bank transfer: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrBankTransferNotPending
		}

		intent, errDecode := DecodeIntent(payment.Request)
		if errDecode != nil {
			return errDecode
		}
		period := PeriodFor(pricing.Duration(intent.Duration))
		modules := models.ModuleKeys(intent.Modules).Clean()
		tenant, errAssign := e.AssignPlanTx(ctx, tx, AssignPlanRequest{
			PlanID:  intent.PlanID,
			Period:  period,
			Modules: modules,
			Counter: PlanDefaults,
			UserID:  payment.UserID,
		})
		if errAssign != nil {
			return errAssign
		}

		var plan models.Plan
		if errFind := tx.WithContext(ctx).First(&plan, intent.PlanID).Error; errFind != nil {
			return fmt.Errorf("assignment: reload plan: %w", errFind)
		}
		created, errOrder := e.createOrder(ctx, tx, orderParams{
			OrderID:     payment.OrderID,
			Tenant:      tenant,
			Plan:        &plan,
			Price:       payment.Price,
			Currency:    payment.Currency,
			PaymentType: models.PaymentTypeBankTransfer,
			Period:      period,
			Modules:     modules,
			CouponCode:  intent.CouponCode,
			Receipt:     payment.Attachment,
		})
		if errOrder != nil {
			return errOrder
		}

		if intent.CouponCode != "" {
			if errUsage := e.recordTransferCoupon(ctx, tx, intent, tenant.ID, created.OrderID); errUsage != nil {
				return errUsage
			}
		}

		log.WithFields(log.Fields{
			"bank_transfer_id": payment.ID,
			"tenant_id":        tenant.ID,
			"order_id":         created.OrderID,
		}).Info("bank transfer approved")
		order = created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return order, nil
}

// recordTransferCoupon re-validates the coupon captured at submission. Usage is only recorded while
// the coupon still applies; the reviewed price stands either way.
func (e *Engine) recordTransferCoupon(ctx context.Context, tx *gorm.DB, intent BankTransferIntent, tenantID uint64, orderID string) error {
	quote, errQuote := e.pricing.QuoteTx(ctx, tx, pricing.QuoteRequest{
		PlanID:   intent.PlanID,
		Duration: pricing.Duration(intent.Duration),
		Modules:  models.ModuleKeys(intent.Modules),
	})
	if errQuote != nil {
		return errQuote
	}
	res, errApply := e.coupons.ApplyTx(ctx, tx, coupon.ApplyRequest{
		Code:    intent.CouponCode,
		Amount:  quote.Total,
		UserID:  tenantID,
		Modules: quote.Modules,
	})
	if errApply != nil {
		return errApply
	}
	if !res.Valid || res.Coupon == nil {
		log.WithFields(log.Fields{
			"coupon":   intent.CouponCode,
			"order_id": orderID,
			"reason":   res.Message,
		}).Warn("bank transfer: coupon no longer applies, usage not recorded")
		return nil
	}
	return e.coupons.RecordUsage(ctx, tx, res.Coupon.ID, tenantID, orderID)
}

// RejectBankTransfer marks a pending transfer rejected.
func (e *Engine) RejectBankTransfer(ctx context.Context, id uint64) error {
	res := e.db.WithContext(ctx).Model(&models.BankTransferPayment{}).
		Where("id = ? AND status = ?", id, models.BankTransferPending).
		Updates(map[string]any{"status": models.BankTransferRejected, "updated_at": e.clock().UTC()})
	if res.Error != nil {
		return fmt.Errorf("assignment: reject bank transfer: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var count int64
	if errCount := e.db.WithContext(ctx).Model(&models.BankTransferPayment{}).Where("id = ?", id).Count(&count).Error; errCount != nil {
		return fmt.Errorf("assignment: load bank transfer: %w", errCount)
	}
	if count == 0 {
		return ErrBankTransferNotFound
	}
	return ErrBankTransferNotPending
}

// DeleteBankTransfer removes a pending transfer. Tenants may only delete their own.
func (e *Engine) DeleteBankTransfer(ctx context.Context, id uint64, actor *models.User) error {
	if actor == nil {
		return ErrForbidden
	}
	var payment models.BankTransferPayment
	if errFind := e.db.WithContext(ctx).First(&payment, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrBankTransferNotFound
		}
		return fmt.Errorf("assignment: load bank transfer: %w", errFind)
	}
	if !actor.IsSuperAdmin() && payment.UserID != actor.TenantID() {
		return ErrForbidden
	}
	res := e.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.BankTransferPending).
		Delete(&models.BankTransferPayment{})
	if res.Error != nil {
		return fmt.Errorf("assignment: delete bank transfer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBankTransferNotPending
	}
	return nil
}
