package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/workdesk-hq/platform/internal/models"
	internalsettings "github.com/workdesk-hq/platform/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Plan{},
		&models.AddOn{},
		&models.User{},
		&models.UserActiveModule{},
		&models.Coupon{},
		&models.UserCoupon{},
		&models.Order{},
		&models.BankTransferPayment{},
		&models.Media{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureStringSetting(conn, internalsettings.SiteNameKey, internalsettings.DefaultSiteName); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureStringSetting(conn, internalsettings.CurrencyKey, internalsettings.DefaultCurrency); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureBoolSetting(conn, internalsettings.BankTransferEnabledKey, internalsettings.DefaultBankTransferEnabled); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureIntSetting(conn, internalsettings.PlanExpirySweepSecondsKey, internalsettings.DefaultPlanExpirySweepSeconds); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureIntSetting(conn, internalsettings.CouponRateLimitKey, internalsettings.DefaultCouponRateLimit); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureIntSetting(conn, internalsettings.CouponRateWindowSecondsKey, internalsettings.DefaultCouponRateWindowSeconds); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureBoolSetting(conn, internalsettings.RateLimitRedisEnabledKey, false); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureStringSetting(conn, internalsettings.RateLimitRedisPrefixKey, internalsettings.DefaultRateLimitRedisPrefix); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureIntSetting ensures an integer setting exists and defaults when empty.
func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	return ensureSetting(conn, key, value)
}

// ensureBoolSetting ensures a boolean setting exists and defaults when empty.
func ensureBoolSetting(conn *gorm.DB, key string, value bool) error {
	return ensureSetting(conn, key, value)
}

// ensureStringSetting ensures a string setting exists and defaults when empty.
func ensureStringSetting(conn *gorm.DB, key string, value string) error {
	return ensureSetting(conn, key, value)
}

// ensureSetting creates a platform setting, or fills it when the stored value is empty.
func ensureSetting(conn *gorm.DB, key string, value any) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	rawValue := json.RawMessage(payload)

	var existing models.Setting
	if errFind := conn.Where("tenant_id IS NULL AND key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      rawValue,
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	setting := models.Setting{
		Key:       key,
		Value:     payload,
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
