package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores a JSON value for the platform (TenantID nil) or a tenant.
type Setting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TenantID *uint64        `gorm:"index"`                            // Owning tenant, nil for platform scope.
	Key      string         `gorm:"type:varchar(191);not null;index"` // Setting key.
	Value    datatypes.JSON `gorm:"type:jsonb"`                       // JSON value.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
