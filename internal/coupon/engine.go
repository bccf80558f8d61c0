// Package coupon validates discount codes and computes the discounted amount.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// Rejection messages returned in Result.Message.
const (
	MsgInvalid           = "This coupon code is invalid or has expired."
	MsgExpired           = "This coupon code has expired."
	MsgLimitReached      = "This coupon code has reached its usage limit."
	MsgUserLimit         = "You have already used this coupon the maximum number of times."
	MsgMinimumSpend      = "The minimum spend for this coupon is %s."
	MsgMaximumSpend      = "The maximum spend for this coupon is %s."
	MsgModuleExcluded    = "This coupon cannot be applied to the selected modules."
	MsgModuleNotIncluded = "This coupon is only valid for specific modules."
)

var hundred = decimal.NewFromInt(100)

// ApplyRequest is a coupon redemption attempt.
type ApplyRequest struct {
	Code    string
	Amount  decimal.Decimal
	UserID  uint64
	Modules models.ModuleKeys
}

// Result is the outcome of applying a coupon.
type Result struct {
	Valid          bool
	Message        string
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	Coupon         *models.Coupon
}

// Engine applies coupons against the coupons and user_coupons tables.
type Engine struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEngine constructs a coupon Engine.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db, now: time.Now}
}

// Apply validates the coupon for the request and computes the discount.
// Validation failures yield Valid=false with a message; only storage failures return an error.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (Result, error) {
	return e.ApplyTx(ctx, e.db, req)
}

// ApplyTx is Apply reading through the given handle, typically an open transaction.
func (e *Engine) ApplyTx(ctx context.Context, tx *gorm.DB, req ApplyRequest) (Result, error) {
	reject := func(msg string) (Result, error) {
		return Result{Valid: false, Message: msg, DiscountAmount: decimal.Zero, FinalAmount: req.Amount}, nil
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return reject(MsgInvalid)
	}

	var coupon models.Coupon
	if errFind := tx.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return reject(MsgInvalid)
		}
		return Result{}, fmt.Errorf("coupon: load %q: %w", code, errFind)
	}
	if !coupon.Status {
		return reject(MsgInvalid)
	}

	if coupon.ExpiryDate != nil && expired(*coupon.ExpiryDate, e.clock()) {
		return reject(MsgExpired)
	}

	if coupon.Limit != nil {
		used, errCount := e.countUsage(ctx, tx, coupon.ID, 0)
		if errCount != nil {
			return Result{}, errCount
		}
		if used >= *coupon.Limit {
			return reject(MsgLimitReached)
		}
	}

	if coupon.LimitPerUser != nil && req.UserID != 0 {
		used, errCount := e.countUsage(ctx, tx, coupon.ID, req.UserID)
		if errCount != nil {
			return Result{}, errCount
		}
		if used >= *coupon.LimitPerUser {
			return reject(MsgUserLimit)
		}
	}

	if coupon.MinimumSpend != nil && req.Amount.LessThan(*coupon.MinimumSpend) {
		return reject(fmt.Sprintf(MsgMinimumSpend, coupon.MinimumSpend.StringFixed(2)))
	}
	if coupon.MaximumSpend != nil && req.Amount.GreaterThan(*coupon.MaximumSpend) {
		return reject(fmt.Sprintf(MsgMaximumSpend, coupon.MaximumSpend.StringFixed(2)))
	}

	if modules := req.Modules.Clean(); len(modules) > 0 {
		for _, module := range modules {
			if coupon.ExcludedModules.Contains(module) {
				return reject(MsgModuleExcluded)
			}
		}
		if included := coupon.IncludedModules.Clean(); len(included) > 0 {
			matched := false
			for _, module := range modules {
				if included.Contains(module) {
					matched = true
					break
				}
			}
			if !matched {
				return reject(MsgModuleNotIncluded)
			}
		}
	}

	discount := Discount(&coupon, req.Amount)
	return Result{
		Valid:          true,
		DiscountAmount: discount,
		FinalAmount:    FinalAmount(req.Amount, discount),
		Coupon:         &coupon,
	}, nil
}

// RecordUsage appends a redemption row. Call it inside the transaction that creates the order.
func (e *Engine) RecordUsage(ctx context.Context, tx *gorm.DB, couponID, userID uint64, orderID string) error {
	if tx == nil {
		tx = e.db
	}
	usage := models.UserCoupon{
		CouponID:  couponID,
		UserID:    userID,
		OrderID:   orderID,
		CreatedAt: e.clock().UTC(),
	}
	if errCreate := tx.WithContext(ctx).Create(&usage).Error; errCreate != nil {
		return fmt.Errorf("coupon: record usage: %w", errCreate)
	}
	return nil
}

// Discount computes the coupon discount for amount, never exceeding it.
func Discount(coupon *models.Coupon, amount decimal.Decimal) decimal.Decimal {
	if coupon == nil || !amount.IsPositive() || !coupon.Discount.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch coupon.Type {
	case models.CouponTypeFixed:
		discount = coupon.Discount
	default:
		discount = amount.Mul(coupon.Discount).Div(hundred).Round(2)
	}
	if discount.GreaterThan(amount) {
		return amount
	}
	return discount
}

// FinalAmount subtracts discount from amount, floored at zero.
func FinalAmount(amount, discount decimal.Decimal) decimal.Decimal {
	final := amount.Sub(discount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}

func (e *Engine) countUsage(ctx context.Context, tx *gorm.DB, couponID, userID uint64) (int64, error) {
	q := tx.WithContext(ctx).Model(&models.UserCoupon{}).Where("coupon_id = ?", couponID)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var count int64
	if errCount := q.Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("coupon: count usage: %w", errCount)
	}
	return count, nil
}

func (e *Engine) clock() time.Time {
	if e == nil || e.now == nil {
		return time.Now()
	}
	return e.now()
}

// expired reports whether the expiry day lies before today. The expiry day itself is still valid.
func expired(expiry, now time.Time) bool {
	ey, em, ed := expiry.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	expiryDay := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return expiryDay.Before(today)
}
