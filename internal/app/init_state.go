package app

import (
	"fmt"

	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// HasSuperAdmin reports whether at least one platform operator account exists.
func HasSuperAdmin(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.User{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.User{}).Where("type = ?", models.UserTypeSuperAdmin).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}
