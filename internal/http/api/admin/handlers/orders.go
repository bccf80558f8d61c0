package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// OrderHandler lists plan purchases across tenants.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// List returns orders filtered by tenant, plan or payment type.
func (h *OrderHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Order{})
	if userID, ok := queryUint(c, "user_id"); ok {
		q = q.Where("created_by = ?", userID)
	}
	if planID, ok := queryUint(c, "plan_id"); ok {
		q = q.Where("plan_id = ?", planID)
	}
	if paymentType := strings.TrimSpace(c.Query("payment_type")); paymentType != "" {
		q = q.Where("payment_type = ?", paymentType)
	}
	var rows []models.Order
	if errFind := q.Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list orders failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, FormatOrder(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

// Get fetches an order by ID.
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var order models.Order
	if errFind := h.db.WithContext(c.Request.Context()).First(&order, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, FormatOrder(&order))
}

// FormatOrder converts an order into a response payload.
func FormatOrder(o *models.Order) gin.H {
	if o == nil {
		return nil
	}
	modules := o.Modules
	if modules == nil {
		modules = models.ModuleKeys{}
	}
	return gin.H{
		"id":             o.ID,
		"order_id":       o.OrderID,
		"name":           o.Name,
		"email":          o.Email,
		"plan_id":        o.PlanID,
		"plan_name":      o.PlanName,
		"price":          o.Price.StringFixed(2),
		"currency":       o.Currency,
		"txn_id":         o.TxnID,
		"payment_type":   o.PaymentType,
		"payment_status": o.PaymentStatus,
		"duration":       o.Duration,
		"modules":        modules,
		"coupon_code":    o.CouponCode,
		"receipt":        o.Receipt,
		"created_by":     o.CreatedBy,
		"created_at":     o.CreatedAt,
	}
}
