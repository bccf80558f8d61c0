package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// AddOnHandler lists installed modules and edits their à la carte prices.
type AddOnHandler struct {
	db *gorm.DB
}

// NewAddOnHandler constructs an AddOnHandler.
func NewAddOnHandler(db *gorm.DB) *AddOnHandler {
	return &AddOnHandler{db: db}
}

// List returns every add-on ordered by priority.
func (h *AddOnHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.AddOn{})
	switch strings.TrimSpace(c.Query("is_enable")) {
	case "true", "1":
		q = q.Where("is_enable = ?", true)
	case "false", "0":
		q = q.Where("is_enable = ?", false)
	}
	var rows []models.AddOn
	if errFind := q.Order("priority ASC, module ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list add-ons failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatAddOn(&row))
	}
	c.JSON(http.StatusOK, gin.H{"add_ons": out})
}

// updateAddOnRequest captures the editable add-on fields.
type updateAddOnRequest struct {
	Name         *string          `json:"name"`
	MonthlyPrice *decimal.Decimal `json:"monthly_price"`
	YearlyPrice  *decimal.Decimal `json:"yearly_price"`
	Priority     *int             `json:"priority"`
}

// Update edits the display name, prices or priority of an add-on.
func (h *AddOnHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateAddOnRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.MonthlyPrice != nil {
		if body.MonthlyPrice.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prices cannot be negative"})
			return
		}
		updates["monthly_price"] = *body.MonthlyPrice
	}
	if body.YearlyPrice != nil {
		if body.YearlyPrice.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prices cannot be negative"})
			return
		}
		updates["yearly_price"] = *body.YearlyPrice
	}
	if body.Priority != nil {
		updates["priority"] = *body.Priority
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.AddOn{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var addOn models.AddOn
	if errFind := h.db.WithContext(c.Request.Context()).First(&addOn, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatAddOn(&addOn))
}

func formatAddOn(a *models.AddOn) gin.H {
	return gin.H{
		"id":            a.ID,
		"module":        a.Module,
		"name":          a.Name,
		"package_name":  a.PackageName,
		"monthly_price": a.MonthlyPrice.StringFixed(2),
		"yearly_price":  a.YearlyPrice.StringFixed(2),
		"is_enable":     a.IsEnable,
		"for_admin":     a.ForAdmin,
		"priority":      a.Priority,
		"updated_at":    a.UpdatedAt,
	}
}
