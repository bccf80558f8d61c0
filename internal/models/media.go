package models

import "time"

// Media is an uploaded file counted against the tenant storage quota.
type Media struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:varchar(255);not null"` // Original file name.
	Path string `gorm:"type:text;not null"`         // Storage object key.
	URL  string `gorm:"type:text;not null"`         // Public URL.
	Size int64  `gorm:"not null;default:0"`         // Size in bytes.

	UserID    uint64 `gorm:"not null;index"` // Uploading user.
	CreatedBy uint64 `gorm:"not null;index"` // Tenant owner ID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
