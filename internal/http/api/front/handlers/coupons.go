package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/coupon"
	"github.com/workdesk-hq/platform/internal/http/api/admin/permissions"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/ratelimit"
)

// MsgTooManyAttempts is answered when the tenant exceeds the coupon attempt limit.
const MsgTooManyAttempts = "Too many coupon attempts, please try again later."

// CouponFrontHandler checks coupon codes for tenants.
type CouponFrontHandler struct {
	coupons *coupon.Engine
	limiter *ratelimit.Limiter
}

// NewCouponFrontHandler constructs a CouponFrontHandler. A nil limiter disables attempt limits.
func NewCouponFrontHandler(coupons *coupon.Engine, limiter *ratelimit.Limiter) *CouponFrontHandler {
	return &CouponFrontHandler{coupons: coupons, limiter: limiter}
}

// applyCouponRequest defines the request body for coupon checks.
type applyCouponRequest struct {
	CouponCode  string          `json:"coupon_code"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Modules     []string        `json:"modules"`
}

// Apply validates a coupon against an amount without redeeming it.
func (h *CouponFrontHandler) Apply(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !requirePermission(c, user, permissions.ApplyCoupon) {
		return
	}
	var body applyCouponRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	code := strings.TrimSpace(body.CouponCode)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coupon_code is required"})
		return
	}
	if body.TotalAmount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_amount must not be negative"})
		return
	}

	ctx := c.Request.Context()
	tenantID := user.TenantID()
	if h.limiter != nil {
		if decision := h.limiter.Allow(ctx, ratelimit.ScopeCoupon, tenantID); !decision.Allowed {
			c.Header("Retry-After", decision.RetryAt.UTC().Format(http.TimeFormat))
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": MsgTooManyAttempts})
			return
		}
	}

	res, errApply := h.coupons.Apply(ctx, coupon.ApplyRequest{
		Code:    code,
		Amount:  body.TotalAmount,
		UserID:  tenantID,
		Modules: models.ModuleKeys(body.Modules),
	})
	if errApply != nil {
		log.WithError(errApply).Error("coupon apply failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "coupon apply failed"})
		return
	}
	if !res.Valid {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": res.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"discount_amount": formatMoney(res.DiscountAmount),
		"final_amount":    formatMoney(res.FinalAmount),
		"coupon": gin.H{
			"code":     res.Coupon.Code,
			"name":     res.Coupon.Name,
			"type":     res.Coupon.Type,
			"discount": formatMoney(res.Coupon.Discount),
		},
	})
}
