package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/workdesk-hq/platform/internal/models"
	internalsettings "github.com/workdesk-hq/platform/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SettingHandler manages admin CRUD for platform settings values.
type SettingHandler struct {
	db *gorm.DB // Database handle for settings.
}

// NewSettingHandler constructs a settings handler.
func NewSettingHandler(db *gorm.DB) *SettingHandler {
	return &SettingHandler{db: db}
}

// createSettingRequest captures the payload for creating a setting.
type createSettingRequest struct {
	Key   string          `json:"key"`   // Setting key.
	Value json.RawMessage `json:"value"` // JSON value payload.
}

var positiveIntSettingKeys = map[string]struct{}{
	internalsettings.PlanExpirySweepSecondsKey:  {},
	internalsettings.CouponRateWindowSecondsKey: {},
}

var nonNegativeIntSettingKeys = map[string]struct{}{
	internalsettings.CouponRateLimitKey:  {},
	internalsettings.RateLimitRedisDBKey: {},
	internalsettings.DefaultPlanIDKey:    {},
}

var boolSettingKeys = map[string]struct{}{
	internalsettings.BankTransferEnabledKey:   {},
	internalsettings.RateLimitRedisEnabledKey: {},
}

var (
	errPositiveIntegerValue    = errors.New("value must be a positive integer")
	errNonNegativeIntegerValue = errors.New("value must be a non-negative integer")
	errBooleanValue            = errors.New("value must be a boolean")
)

// platformScope restricts queries to settings without a tenant.
func (h *SettingHandler) platformScope(c *gin.Context) *gorm.DB {
	return h.db.WithContext(c.Request.Context()).Model(&models.Setting{}).Where("tenant_id IS NULL")
}

// Create validates and inserts a platform setting.
func (h *SettingHandler) Create(c *gin.Context) {
	var body createSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	key := strings.TrimSpace(body.Key)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	var existing int64
	if errCount := h.platformScope(c).Where("key = ?", key).Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "key already exists"})
		return
	}

	setting := models.Setting{
		Key:   key,
		Value: datatypes.JSON(body.Value),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&setting).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create setting failed"})
		return
	}
	c.JSON(http.StatusCreated, formatSetting(&setting))
}

// List returns all platform settings sorted by key.
func (h *SettingHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.platformScope(c).Order("key ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list settings failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatSetting(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// Get returns a platform setting by key.
func (h *SettingHandler) Get(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var setting models.Setting
	if errFind := h.platformScope(c).Where("key = ?", key).First(&setting).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatSetting(&setting))
}

// updateSettingRequest captures the payload for updating a setting.
type updateSettingRequest struct {
	Value json.RawMessage `json:"value"` // New JSON value.
}

// Update replaces a platform setting value.
func (h *SettingHandler) Update(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var body updateSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	res := h.platformScope(c).Where("key = ?", key).Update("value", datatypes.JSON(body.Value))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a platform setting.
func (h *SettingHandler) Delete(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("tenant_id IS NULL AND key = ?", key).
		Delete(&models.Setting{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func validateSettingValue(key string, value json.RawMessage) error {
	if _, ok := positiveIntSettingKeys[key]; ok {
		if parsed, okParse := internalsettings.ParseNonNegativeInt(value); !okParse || parsed == 0 {
			return errPositiveIntegerValue
		}
		return nil
	}
	if _, ok := nonNegativeIntSettingKeys[key]; ok {
		if _, okParse := internalsettings.ParseNonNegativeInt(value); !okParse {
			return errNonNegativeIntegerValue
		}
		return nil
	}
	if _, ok := boolSettingKeys[key]; ok {
		if _, okParse := internalsettings.ParseBool(value); !okParse {
			return errBooleanValue
		}
	}
	return nil
}

// formatSetting formats a setting row into response JSON.
func formatSetting(s *models.Setting) gin.H {
	return gin.H{
		"key":        s.Key,
		"value":      json.RawMessage(s.Value),
		"updated_at": s.UpdatedAt,
	}
}
