package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/pricing"
	"gorm.io/gorm"
)

// PlanFrontHandler serves plan catalogue and pricing endpoints.
type PlanFrontHandler struct {
	db         *gorm.DB
	calculator *pricing.Calculator
}

// NewPlanFrontHandler constructs a PlanFrontHandler.
func NewPlanFrontHandler(db *gorm.DB, calculator *pricing.Calculator) *PlanFrontHandler {
	if calculator == nil {
		calculator = pricing.NewCalculator(db)
	}
	return &PlanFrontHandler{db: db, calculator: calculator}
}

// List returns enabled plans.
func (h *PlanFrontHandler) List(c *gin.Context) {
	var plans []models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_enabled = ?", true).
		Order("sort_order ASC, created_at DESC").
		Find(&plans).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}

	out := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		modules := plan.Modules
		if modules == nil {
			modules = models.ModuleKeys{}
		}
		out = append(out, gin.H{
			"id":                    plan.ID,
			"name":                  plan.Name,
			"description":           plan.Description,
			"number_of_users":       plan.NumberOfUsers,
			"storage_limit":         plan.StorageLimit,
			"modules":               modules,
			"package_price_monthly": formatMoney(plan.PackagePriceMonthly),
			"package_price_yearly":  formatMoney(plan.PackagePriceYearly),
			"free_plan":             plan.FreePlan,
			"trial":                 plan.Trial,
			"trial_days":            plan.TrialDays,
			"sort_order":            plan.SortOrder,
		})
	}

	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// AddOns returns the modules that can be bought on top of a plan.
func (h *PlanFrontHandler) AddOns(c *gin.Context) {
	var rows []models.AddOn
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_enable = ? AND for_admin = ?", true, false).
		Order("priority ASC, module ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list add-ons failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"module":        row.Module,
			"name":          row.Name,
			"monthly_price": formatMoney(row.MonthlyPrice),
			"yearly_price":  formatMoney(row.YearlyPrice),
		})
	}
	c.JSON(http.StatusOK, gin.H{"add_ons": out})
}

// quoteRequest defines the request body for price quotes.
type quoteRequest struct {
	PlanID   uint64   `json:"plan_id"`
	Duration string   `json:"duration"`
	Modules  []string `json:"modules"`
}

// Quote prices a plan plus modules for a billing duration.
func (h *PlanFrontHandler) Quote(c *gin.Context) {
	var body quoteRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.PlanID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}
	quote, errQuote := h.calculator.Quote(c.Request.Context(), pricing.QuoteRequest{
		PlanID:   body.PlanID,
		Duration: pricing.ParseDuration(body.Duration),
		Modules:  models.ModuleKeys(body.Modules),
	})
	if errQuote != nil {
		if errors.Is(errQuote, pricing.ErrPlanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		log.WithError(errQuote).Error("quote failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote failed"})
		return
	}
	c.JSON(http.StatusOK, formatQuote(quote))
}

// Price quotes GET /plans/:id/price?duration=Year&modules=A,B.
func (h *PlanFrontHandler) Price(c *gin.Context) {
	planID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || planID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	quote, errQuote := h.calculator.Quote(c.Request.Context(), pricing.QuoteRequest{
		PlanID:   planID,
		Duration: pricing.ParseDuration(c.Query("duration")),
		Modules:  pricing.ParseModules(c.Query("modules")),
	})
	if errQuote != nil {
		if errors.Is(errQuote, pricing.ErrPlanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote failed"})
		return
	}
	c.JSON(http.StatusOK, formatQuote(quote))
}

func formatQuote(q pricing.Quote) gin.H {
	modulePrices := make(map[string]string, len(q.ModulePrices))
	for module, price := range q.ModulePrices {
		modulePrices[module] = formatMoney(price)
	}
	modules := q.Modules
	if modules == nil {
		modules = models.ModuleKeys{}
	}
	unknown := q.UnknownModules
	if unknown == nil {
		unknown = []string{}
	}
	return gin.H{
		"plan_id":         q.PlanID,
		"plan_name":       q.PlanName,
		"duration":        q.Duration,
		"plan_price":      formatMoney(q.PlanPrice),
		"module_prices":   modulePrices,
		"modules_total":   formatMoney(q.ModulesTotal),
		"total":           formatMoney(q.Total),
		"modules":         modules,
		"unknown_modules": unknown,
	}
}
