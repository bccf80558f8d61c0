package handlers

import (
	"context"
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

// PlanHandler manages admin CRUD endpoints for plans.
type PlanHandler struct {
	db *gorm.DB // Database handle for plan records.
}

// NewPlanHandler constructs a plan handler.
func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

var errUnknownPlanModule = errors.New("unknown module")

// normalizePlanModules cleans the bundled module list and checks every key is a sellable add-on.
func normalizePlanModules(ctx context.Context, db *gorm.DB, raw []string) (models.ModuleKeys, error) {
	keys := models.ModuleKeys(raw).Clean()
	if len(keys) == 0 {
		return keys, nil
	}
	var count int64
	if errCount := db.WithContext(ctx).Model(&models.AddOn{}).
		Where("module IN ? AND for_admin = ?", []string(keys), false).
		Count(&count).Error; errCount != nil {
		return nil, errCount
	}
	if count != int64(len(keys)) {
		return nil, errUnknownPlanModule
	}
	return keys, nil
}

// createPlanRequest captures the payload for creating a plan.
type createPlanRequest struct {
	Name                string          `json:"name"`                  // Plan name.
	Description         string          `json:"description"`           // Plan description.
	NumberOfUsers       int64           `json:"number_of_users"`       // Staff user quota, -1 unlimited.
	StorageLimit        int64           `json:"storage_limit"`         // Storage quota in KB, -1 unlimited.
	Modules             []string        `json:"modules"`               // Bundled module keys.
	PackagePriceMonthly decimal.Decimal `json:"package_price_monthly"` // Monthly price.
	PackagePriceYearly  decimal.Decimal `json:"package_price_yearly"`  // Yearly price.
	FreePlan            bool            `json:"free_plan"`             // Free plan flag.
	Trial               bool            `json:"trial"`                 // Trial offered flag.
	TrialDays           int             `json:"trial_days"`            // Trial length in days.
	SortOrder           int             `json:"sort_order"`            // Display order.
	IsEnabled           *bool           `json:"is_enabled"`            // Optional active flag.
}

// Create validates input and inserts a new plan.
func (h *PlanHandler) Create(c *gin.Context) {
	var body createPlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.NumberOfUsers < models.Unlimited || body.StorageLimit < models.Unlimited {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quotas must be -1 or greater"})
		return
	}
	if body.PackagePriceMonthly.IsNegative() || body.PackagePriceYearly.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prices cannot be negative"})
		return
	}
	if body.Trial && body.TrialDays <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trial_days must be positive"})
		return
	}

	modules, errModules := normalizePlanModules(c.Request.Context(), h.db, body.Modules)
	if errModules != nil {
		if errors.Is(errModules, errUnknownPlanModule) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid modules"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	now := time.Now().UTC()
	plan := models.Plan{
		Name:                strings.TrimSpace(body.Name),
		Description:         body.Description,
		NumberOfUsers:       body.NumberOfUsers,
		StorageLimit:        body.StorageLimit,
		Modules:             modules,
		PackagePriceMonthly: body.PackagePriceMonthly,
		PackagePriceYearly:  body.PackagePriceYearly,
		FreePlan:            body.FreePlan,
		Trial:               body.Trial,
		TrialDays:           body.TrialDays,
		SortOrder:           body.SortOrder,
		IsEnabled:           true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&plan).Error; errCreate != nil {
			return errCreate
		}
		// is_enabled defaults to true in the schema, a false create value would be dropped.
		if body.IsEnabled != nil && !*body.IsEnabled {
			plan.IsEnabled = false
			return tx.Model(&plan).Update("is_enabled", false).Error
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create plan failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatPlan(&plan))
}

// List returns all plans, optionally filtered by enabled flag or bundled module.
func (h *PlanHandler) List(c *gin.Context) {
	enabledQ := strings.TrimSpace(c.Query("is_enabled"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Plan{})
	if enabledQ != "" {
		if enabledQ == "true" || enabledQ == "1" {
			q = q.Where("is_enabled = ?", true)
		} else if enabledQ == "false" || enabledQ == "0" {
			q = q.Where("is_enabled = ?", false)
		}
	}
	if module := strings.TrimSpace(c.Query("module")); module != "" {
		q = q.Where(dbutil.JSONArrayContainsExpr(h.db, "modules"), dbutil.JSONArrayContainsValue(h.db, module))
	}

	var rows []models.Plan
	if errFind := q.Order("sort_order ASC, created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatPlan(&row))
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// Get fetches a plan by ID.
func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var plan models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).First(&plan, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatPlan(&plan))
}

// updatePlanRequest captures optional fields for plan updates.
type updatePlanRequest struct {
	Name                *string          `json:"name"`                  // Optional name update.
	Description         *string          `json:"description"`           // Optional description.
	NumberOfUsers       *int64           `json:"number_of_users"`       // Optional staff user quota.
	StorageLimit        *int64           `json:"storage_limit"`         // Optional storage quota in KB.
	Modules             *[]string        `json:"modules"`               // Optional bundled module keys.
	PackagePriceMonthly *decimal.Decimal `json:"package_price_monthly"` // Optional monthly price.
	PackagePriceYearly  *decimal.Decimal `json:"package_price_yearly"`  // Optional yearly price.
	FreePlan            *bool            `json:"free_plan"`             // Optional free plan flag.
	Trial               *bool            `json:"trial"`                 // Optional trial flag.
	TrialDays           *int             `json:"trial_days"`            // Optional trial length.
	SortOrder           *int             `json:"sort_order"`            // Optional display order.
	IsEnabled           *bool            `json:"is_enabled"`            // Optional active flag.
}

// Update validates and applies plan field updates. Tenants already on the plan keep their
// quotas until the next assignment.
func (h *PlanHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updatePlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}

	if body.Name != nil {
		n := strings.TrimSpace(*body.Name)
		if n == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = n
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.NumberOfUsers != nil {
		if *body.NumberOfUsers < models.Unlimited {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quotas must be -1 or greater"})
			return
		}
		updates["number_of_users"] = *body.NumberOfUsers
	}
	if body.StorageLimit != nil {
		if *body.StorageLimit < models.Unlimited {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quotas must be -1 or greater"})
			return
		}
		updates["storage_limit"] = *body.StorageLimit
	}
	if body.Modules != nil {
		modules, errModules := normalizePlanModules(c.Request.Context(), h.db, *body.Modules)
		if errModules != nil {
			if errors.Is(errModules, errUnknownPlanModule) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid modules"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		updates["modules"] = modules
	}
	if body.PackagePriceMonthly != nil {
		if body.PackagePriceMonthly.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prices cannot be negative"})
			return
		}
		updates["package_price_monthly"] = *body.PackagePriceMonthly
	}
	if body.PackagePriceYearly != nil {
		if body.PackagePriceYearly.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prices cannot be negative"})
			return
		}
		updates["package_price_yearly"] = *body.PackagePriceYearly
	}
	if body.FreePlan != nil {
		updates["free_plan"] = *body.FreePlan
	}
	trial := existing.Trial
	if body.Trial != nil {
		trial = *body.Trial
		updates["trial"] = trial
	}
	trialDays := existing.TrialDays
	if body.TrialDays != nil {
		trialDays = *body.TrialDays
		updates["trial_days"] = trialDays
	}
	if trial && trialDays <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trial_days must be positive"})
		return
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Plan{}).Where("id = ?", id).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if errReload := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errReload != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatPlan(&existing))
}

// Delete removes a plan by ID. Plans held by a tenant cannot be deleted.
func (h *PlanHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var holders int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("active_plan_id = ?", id).
		Count(&holders).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if holders > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "plan is assigned to tenants"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Plan{}, id)
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

// Enable marks a plan as enabled.
func (h *PlanHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable marks a plan as disabled.
func (h *PlanHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

// setEnabled toggles the enabled state for a plan.
func (h *PlanHandler) setEnabled(c *gin.Context, enabled bool) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.Plan{}).Where("id = ?", id).
		Updates(map[string]any{"is_enabled": enabled, "updated_at": now})
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

// formatPlan converts a plan model into a response payload.
func (h *PlanHandler) formatPlan(p *models.Plan) gin.H {
	return FormatPlan(p)
}

// FormatPlan converts a plan model into a response payload.
func FormatPlan(p *models.Plan) gin.H {
	modules := p.Modules
	if modules == nil {
		modules = models.ModuleKeys{}
	}
	return gin.H{
		"id":                    p.ID,
		"name":                  p.Name,
		"description":           p.Description,
		"number_of_users":       p.NumberOfUsers,
		"storage_limit":         p.StorageLimit,
		"modules":               modules,
		"package_price_monthly": p.PackagePriceMonthly.StringFixed(2),
		"package_price_yearly":  p.PackagePriceYearly.StringFixed(2),
		"free_plan":             p.FreePlan,
		"trial":                 p.Trial,
		"trial_days":            p.TrialDays,
		"sort_order":            p.SortOrder,
		"is_enabled":            p.IsEnabled,
		"created_at":            p.CreatedAt,
		"updated_at":            p.UpdatedAt,
	}
}
