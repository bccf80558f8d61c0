package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponType describes how a coupon discount is computed.
type CouponType string

// CouponType constants.
const (
	// CouponTypePercentage discounts a percentage of the amount.
	CouponTypePercentage CouponType = "percentage"
	// CouponTypeFixed discounts a flat amount.
	CouponTypeFixed CouponType = "fixed"
)

// Coupon is a discount code redeemable against plan purchases.
type Coupon struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string          `gorm:"type:varchar(255);not null"`             // Display name.
	Code     string          `gorm:"type:varchar(191);not null;uniqueIndex"` // Redeem code.
	Type     CouponType      `gorm:"type:varchar(32);not null"`              // percentage or fixed.
	Discount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`  // Percent or flat amount.

	Limit        *int64           `gorm:"column:usage_limit"`    // Global usage cap, nil to skip.
	LimitPerUser *int64           `gorm:"column:limit_per_user"` // Per-user usage cap, nil to skip.
	MinimumSpend *decimal.Decimal `gorm:"type:decimal(10,2)"`    // Minimum amount, nil to skip.
	MaximumSpend *decimal.Decimal `gorm:"type:decimal(10,2)"`    // Maximum amount, nil to skip.
	ExpiryDate   *time.Time       `gorm:"index"`                 // Last valid day, nil for no expiry.

	IncludedModules ModuleKeys `gorm:"type:jsonb;not null;default:'[]'"` // Restrict to these modules.
	ExcludedModules ModuleKeys `gorm:"type:jsonb;not null;default:'[]'"` // Refuse these modules.

	Status bool `gorm:"not null;default:true"` // Whether the coupon can be redeemed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// UserCoupon records one redemption of a coupon.
type UserCoupon struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CouponID uint64 `gorm:"not null;index"`                  // Redeemed coupon ID.
	UserID   uint64 `gorm:"not null;index"`                  // Redeeming tenant ID.
	OrderID  string `gorm:"type:varchar(32);not null;index"` // Order token the coupon was applied to.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Redemption timestamp.
}
