package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	dbutil "github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// CouponHandler manages admin CRUD endpoints for coupons.
type CouponHandler struct {
	db *gorm.DB
}

// NewCouponHandler constructs a CouponHandler.
func NewCouponHandler(db *gorm.DB) *CouponHandler {
	return &CouponHandler{db: db}
}

var hundred = decimal.NewFromInt(100)

// couponRequest captures the payload for creating or replacing a coupon.
type couponRequest struct {
	Name            string           `json:"name"`
	Code            string           `json:"code"`
	Type            string           `json:"type"`
	Discount        decimal.Decimal  `json:"discount"`
	Limit           *int64           `json:"limit"`
	LimitPerUser    *int64           `json:"limit_per_user"`
	MinimumSpend    *decimal.Decimal `json:"minimum_spend"`
	MaximumSpend    *decimal.Decimal `json:"maximum_spend"`
	ExpiryDate      string           `json:"expiry_date"`
	IncludedModules []string         `json:"included_module"`
	ExcludedModules []string         `json:"excluded_module"`
	Status          *bool            `json:"status"`
}

// toModel validates the request and builds the coupon row.
func (r *couponRequest) toModel() (models.Coupon, string) {
	name := strings.TrimSpace(r.Name)
	code := strings.TrimSpace(r.Code)
	if name == "" || code == "" {
		return models.Coupon{}, "name and code are required"
	}
	couponType := models.CouponType(strings.ToLower(strings.TrimSpace(r.Type)))
	switch couponType {
	case models.CouponTypePercentage:
		if r.Discount.GreaterThan(hundred) {
			return models.Coupon{}, "percentage discount cannot exceed 100"
		}
	case models.CouponTypeFixed:
	default:
		return models.Coupon{}, "type must be percentage or fixed"
	}
	if !r.Discount.IsPositive() {
		return models.Coupon{}, "discount must be positive"
	}
	if (r.Limit != nil && *r.Limit < 0) || (r.LimitPerUser != nil && *r.LimitPerUser < 0) {
		return models.Coupon{}, "limits cannot be negative"
	}
	if r.MinimumSpend != nil && r.MinimumSpend.IsNegative() {
		return models.Coupon{}, "minimum_spend cannot be negative"
	}
	if r.MaximumSpend != nil && !r.MaximumSpend.IsPositive() {
		return models.Coupon{}, "maximum_spend must be positive; omit it for no maximum"
	}
	if r.MinimumSpend != nil && r.MaximumSpend != nil && r.MinimumSpend.GreaterThan(*r.MaximumSpend) {
		return models.Coupon{}, "minimum_spend cannot exceed maximum_spend"
	}

	var expiry *time.Time
	if raw := strings.TrimSpace(r.ExpiryDate); raw != "" {
		parsed, errParse := time.Parse("2006-01-02", raw)
		if errParse != nil {
			return models.Coupon{}, "expiry_date must be YYYY-MM-DD"
		}
		expiry = &parsed
	}

	status := true
	if r.Status != nil {
		status = *r.Status
	}
	return models.Coupon{
		Name:            name,
		Code:            code,
		Type:            couponType,
		Discount:        r.Discount,
		Limit:           r.Limit,
		LimitPerUser:    r.LimitPerUser,
		MinimumSpend:    r.MinimumSpend,
		MaximumSpend:    r.MaximumSpend,
		ExpiryDate:      expiry,
		IncludedModules: models.ModuleKeys(r.IncludedModules).Clean(),
		ExcludedModules: models.ModuleKeys(r.ExcludedModules).Clean(),
		Status:          status,
	}, ""
}

// Create validates input and inserts a coupon.
func (h *CouponHandler) Create(c *gin.Context) {
	var body couponRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	coupon, msg := body.toModel()
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	var existing int64
	if errCount := h.db.WithContext(ctx).Model(&models.Coupon{}).Where("code = ?", coupon.Code).Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "code already exists"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&coupon).Error; errCreate != nil {
			return errCreate
		}
		if body.Status != nil && !*body.Status {
			coupon.Status = false
			return tx.Model(&coupon).Update("status", false).Error
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create coupon failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatCoupon(&coupon, 0))
}

// List returns coupons with their redemption counts.
func (h *CouponHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	q := h.db.WithContext(ctx).Model(&models.Coupon{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "code")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern, pattern)
	}
	var rows []models.Coupon
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list coupons failed"})
		return
	}

	type usageRow struct {
		CouponID uint64
		Total    int64
	}
	var usage []usageRow
	if errUsage := h.db.WithContext(ctx).Model(&models.UserCoupon{}).
		Select("coupon_id, COUNT(*) AS total").
		Group("coupon_id").
		Scan(&usage).Error; errUsage != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list coupons failed"})
		return
	}
	used := make(map[uint64]int64, len(usage))
	for _, u := range usage {
		used[u.CouponID] = u.Total
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatCoupon(&row, used[row.ID]))
	}
	c.JSON(http.StatusOK, gin.H{"coupons": out})
}

// Get fetches a coupon by ID.
func (h *CouponHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var coupon models.Coupon
	if errFind := h.db.WithContext(c.Request.Context()).First(&coupon, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var used int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.UserCoupon{}).Where("coupon_id = ?", id).Count(&used).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatCoupon(&coupon, used))
}

// Update replaces the coupon definition. Redemptions already recorded are kept.
func (h *CouponHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body couponRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	coupon, msg := body.toModel()
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	var clash int64
	if errCount := h.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("code = ? AND id <> ?", coupon.Code, id).
		Count(&clash).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if clash > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "code already exists"})
		return
	}

	updates := map[string]any{
		"name":             coupon.Name,
		"code":             coupon.Code,
		"type":             coupon.Type,
		"discount":         coupon.Discount,
		"usage_limit":      coupon.Limit,
		"limit_per_user":   coupon.LimitPerUser,
		"minimum_spend":    coupon.MinimumSpend,
		"maximum_spend":    coupon.MaximumSpend,
		"expiry_date":      coupon.ExpiryDate,
		"included_modules": coupon.IncludedModules,
		"excluded_modules": coupon.ExcludedModules,
		"status":           coupon.Status,
		"updated_at":       time.Now().UTC(),
	}
	res := h.db.WithContext(ctx).Model(&models.Coupon{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a coupon. Redemption history stays for reporting.
func (h *CouponHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Coupon{}, id)
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

func (h *CouponHandler) formatCoupon(coupon *models.Coupon, used int64) gin.H {
	var expiry any
	if coupon.ExpiryDate != nil {
		expiry = coupon.ExpiryDate.Format("2006-01-02")
	}
	return gin.H{
		"id":              coupon.ID,
		"name":            coupon.Name,
		"code":            coupon.Code,
		"type":            coupon.Type,
		"discount":        coupon.Discount.StringFixed(2),
		"limit":           coupon.Limit,
		"limit_per_user":  coupon.LimitPerUser,
		"minimum_spend":   coupon.MinimumSpend,
		"maximum_spend":   coupon.MaximumSpend,
		"expiry_date":     expiry,
		"included_module": coupon.IncludedModules,
		"excluded_module": coupon.ExcludedModules,
		"status":          coupon.Status,
		"used":            used,
		"created_at":      coupon.CreatedAt,
	}
}
