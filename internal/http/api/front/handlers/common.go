package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/workdesk-hq/platform/internal/auth"
	"github.com/workdesk-hq/platform/internal/authz"
	"github.com/workdesk-hq/platform/internal/models"
)

// currentUser returns the signed-in tenant member, answering 401 when absent.
func currentUser(c *gin.Context) (*models.User, bool) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return user, true
}

// requirePermission answers 403 unless the user holds permission.
func requirePermission(c *gin.Context, user *models.User, permission string) bool {
	if authz.Can(user, permission) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	return false
}

// requireOwner answers 403 unless the user owns the tenant.
func requireOwner(c *gin.Context, user *models.User) bool {
	if user.Type == models.UserTypeCompany {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "only the account owner can do this"})
	return false
}

func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatOrder(o *models.Order) gin.H {
	modules := o.Modules
	if modules == nil {
		modules = models.ModuleKeys{}
	}
	return gin.H{
		"id":             o.ID,
		"order_id":       o.OrderID,
		"plan_id":        o.PlanID,
		"plan_name":      o.PlanName,
		"price":          formatMoney(o.Price),
		"currency":       o.Currency,
		"txn_id":         o.TxnID,
		"payment_type":   o.PaymentType,
		"payment_status": o.PaymentStatus,
		"duration":       o.Duration,
		"modules":        modules,
		"coupon_code":    o.CouponCode,
		"receipt":        o.Receipt,
		"created_at":     o.CreatedAt,
	}
}
