package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unlimited marks a plan or tenant counter without an upper bound.
const Unlimited int64 = -1

// Plan represents a subscription plan a tenant can hold.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:varchar(255);not null"` // Plan name.
	Description string `gorm:"type:text"`                  // Plan description.

	NumberOfUsers int64      `gorm:"not null;default:0"`               // Max staff users, -1 for unlimited.
	StorageLimit  int64      `gorm:"not null;default:0"`               // Storage quota in KB, -1 for unlimited.
	Modules       ModuleKeys `gorm:"type:jsonb;not null;default:'[]'"` // Bundled module keys.

	PackagePriceMonthly decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // Base monthly price.
	PackagePriceYearly  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // Base yearly price.

	FreePlan  bool `gorm:"not null;default:false"` // Free plans never expire.
	Trial     bool `gorm:"not null;default:false"` // Whether a trial is offered.
	TrialDays int  `gorm:"not null;default:0"`     // Trial length in days.

	SortOrder int  `gorm:"not null;default:0"`    // Display ordering weight.
	IsEnabled bool `gorm:"not null;default:true"` // Whether the plan is offered.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// UnlimitedUsers reports whether the plan allows any number of staff users.
func (p *Plan) UnlimitedUsers() bool { return p != nil && p.NumberOfUsers == Unlimited }

// UnlimitedStorage reports whether the plan has no storage quota.
func (p *Plan) UnlimitedStorage() bool { return p != nil && p.StorageLimit == Unlimited }
