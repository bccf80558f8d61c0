package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment status values recorded on orders.
const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusPending   = "pending"
)

// Payment types recorded on orders.
const (
	PaymentTypeFree         = "-"
	PaymentTypeBankTransfer = "Bank Transfer"
	PaymentTypeManual       = "Manually"
)

// Order is the immutable record of a plan purchase.
type Order struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrderID  string `gorm:"type:varchar(32);not null;uniqueIndex"` // Public order token.
	Name     string `gorm:"type:varchar(255)"`                     // Buyer display name.
	Email    string `gorm:"type:varchar(255)"`                     // Buyer email.
	PlanID   uint64 `gorm:"not null;index"`                        // Purchased plan ID.
	PlanName string `gorm:"type:varchar(255)"`                     // Plan name snapshot.

	Price    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // Charged amount.
	Currency string          `gorm:"type:varchar(16)"`                      // Currency code.

	TxnID         string     `gorm:"type:varchar(255)"`                // Gateway transaction ID.
	PaymentType   string     `gorm:"type:varchar(64);not null"`        // Payment method label.
	PaymentStatus string     `gorm:"type:varchar(32);not null"`        // Payment status.
	Duration      string     `gorm:"type:varchar(16);not null"`        // Month, Year, Trial or Lifetime.
	Modules       ModuleKeys `gorm:"type:jsonb;not null;default:'[]'"` // Purchased à la carte modules.
	CouponCode    string     `gorm:"type:varchar(191)"`                // Applied coupon code.
	Receipt       string     `gorm:"type:text"`                        // Receipt URL.

	CreatedBy uint64 `gorm:"not null;index"` // Tenant owner ID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// BankTransferStatus is the lifecycle state of an offline payment request.
type BankTransferStatus string

// BankTransferStatus constants.
const (
	BankTransferPending  BankTransferStatus = "pending"
	BankTransferApproved BankTransferStatus = "approved"
	BankTransferRejected BankTransferStatus = "rejected"
)

// BankTransferPayment is a pending offline payment awaiting admin review.
type BankTransferPayment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrderID string `gorm:"type:varchar(32);not null;uniqueIndex"` // Order token reserved at submission.
	UserID  uint64 `gorm:"not null;index"`                        // Submitting tenant ID.

	Request datatypes.JSON     `gorm:"type:jsonb;not null"`                               // Purchase intent snapshot.
	Status  BankTransferStatus `gorm:"type:varchar(16);not null;default:'pending';index"` // Review state.

	Price      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // Quoted amount.
	Currency   string          `gorm:"type:varchar(16)"`                      // Currency code.
	Attachment string          `gorm:"type:text"`                             // Uploaded receipt URL.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
