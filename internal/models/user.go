package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserType distinguishes platform operators, tenant owners and tenant staff.
type UserType string

// UserType constants.
const (
	UserTypeSuperAdmin UserType = "super admin"
	UserTypeCompany    UserType = "company"
	UserTypeStaff      UserType = "staff"
)

// User is an account. Company users own a tenant; staff users belong to one.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string   `gorm:"type:text"`                              // Display name.
	Email    string   `gorm:"type:varchar(191);not null;uniqueIndex"` // Login email.
	Password string   `gorm:"type:text;not null"`                     // Hashed password.
	Type     UserType `gorm:"type:varchar(32);not null;index"`        // Account type.

	CreatedBy uint64 `gorm:"not null;default:0;index"` // Creator; for staff the tenant owner.

	ActivePlanID    *uint64    `gorm:"index"`                  // Current plan.
	PlanExpireDate  *time.Time `gorm:"index"`                  // Plan expiry, nil when the plan never expires.
	IsTrialDone     bool       `gorm:"not null;default:false"` // Whether the trial was consumed.
	TrialExpireDate *time.Time // Trial end date.

	MaxUsers       int64 `gorm:"not null;default:0"`                      // Staff user quota, -1 for unlimited.
	StorageLimitKB int64 `gorm:"column:storage_limit;not null;default:0"` // Storage quota in KB, -1 for unlimited.

	Permissions datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Granted permission names.

	IsActive bool `gorm:"not null;default:true"` // Whether the account can sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsSuperAdmin reports whether the user operates the platform.
func (u *User) IsSuperAdmin() bool { return u != nil && u.Type == UserTypeSuperAdmin }

// TenantID returns the ID of the tenant owner the user's data belongs to.
func (u *User) TenantID() uint64 {
	if u == nil {
		return 0
	}
	if u.Type == UserTypeCompany || u.Type == UserTypeSuperAdmin || u.CreatedBy == 0 {
		return u.ID
	}
	return u.CreatedBy
}
