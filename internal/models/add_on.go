package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddOn is the installed, priced record of a platform module.
type AddOn struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Module      string `gorm:"type:varchar(191);not null;uniqueIndex"` // Unique module key.
	Name        string `gorm:"type:varchar(255);not null"`             // Display name.
	PackageName string `gorm:"type:varchar(255)"`                      // Package identifier from the manifest.

	MonthlyPrice decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // À la carte monthly price.
	YearlyPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // À la carte yearly price.

	IsEnable bool `gorm:"not null;default:false"` // Globally enabled flag.
	ForAdmin bool `gorm:"not null;default:false"` // Platform-only module, never sold.
	Priority int  `gorm:"not null;default:0"`     // Display and resolution order.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// UserActiveModule records a module purchased à la carte by a tenant.
type UserActiveModule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_user_active_modules_pair"`                   // Tenant owner ID.
	Module string `gorm:"type:varchar(191);not null;uniqueIndex:idx_user_active_modules_pair"` // Module key.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
