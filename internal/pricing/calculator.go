// Package pricing quotes the price of a plan plus à la carte modules for a billing duration.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// Duration is a billing period.
type Duration string

// Duration constants.
const (
	Month Duration = "Month"
	Year  Duration = "Year"
)

var (
	// ErrPlanNotFound is returned when the quoted plan does not exist.
	ErrPlanNotFound = errors.New("pricing: plan not found")
	// ErrUnknownModule is returned in strict mode when a selected module has no add-on record.
	ErrUnknownModule = errors.New("pricing: unknown module")
)

// ParseDuration maps user input to a Duration. Anything that is not a year is a month.
func ParseDuration(raw string) Duration {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "year", "yearly", "annual", "annually":
		return Year
	default:
		return Month
	}
}

// ParseModules splits a comma separated module selection, dropping blanks and repeats.
func ParseModules(csv string) models.ModuleKeys {
	return models.ParseModuleKeys(csv)
}

// QuoteRequest describes what is being priced.
type QuoteRequest struct {
	PlanID   uint64
	Duration Duration
	Modules  models.ModuleKeys
}

// Quote is the priced breakdown of a request.
type Quote struct {
	PlanID         uint64
	PlanName       string
	Duration       Duration
	PlanPrice      decimal.Decimal
	ModulePrices   map[string]decimal.Decimal
	ModulesTotal   decimal.Decimal
	Total          decimal.Decimal
	Modules        models.ModuleKeys
	UnknownModules []string
}

// Calculator prices plans and modules from the plans and add_ons tables.
type Calculator struct {
	db *gorm.DB
	// Strict rejects quotes containing modules without an add-on record.
	Strict bool
}

// NewCalculator constructs a Calculator.
func NewCalculator(db *gorm.DB) *Calculator {
	return &Calculator{db: db}
}

// Quote computes plan price + Σ module prices for the duration.
func (c *Calculator) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	return c.QuoteTx(ctx, c.db, req)
}

// QuoteTx is Quote reading through the given handle, typically an open transaction.
func (c *Calculator) QuoteTx(ctx context.Context, tx *gorm.DB, req QuoteRequest) (Quote, error) {
	if tx == nil {
		return Quote{}, fmt.Errorf("pricing: nil db")
	}
	duration := ParseDuration(string(req.Duration))

	var plan models.Plan
	if errFind := tx.WithContext(ctx).First(&plan, req.PlanID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Quote{}, ErrPlanNotFound
		}
		return Quote{}, fmt.Errorf("pricing: load plan: %w", errFind)
	}

	modules := req.Modules.Clean()
	quote := Quote{
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		Duration:     duration,
		PlanPrice:    PlanPrice(&plan, duration),
		ModulePrices: make(map[string]decimal.Decimal, len(modules)),
		ModulesTotal: decimal.Zero,
		Modules:      modules,
	}

	if len(modules) > 0 {
		var addOns []models.AddOn
		if errFind := tx.WithContext(ctx).Where("module IN ?", []string(modules)).Find(&addOns).Error; errFind != nil {
			return Quote{}, fmt.Errorf("pricing: load add-ons: %w", errFind)
		}
		byModule := make(map[string]*models.AddOn, len(addOns))
		for i := range addOns {
			byModule[addOns[i].Module] = &addOns[i]
		}
		for _, module := range modules {
			addOn, ok := byModule[module]
			if !ok {
				if c.Strict {
					return Quote{}, fmt.Errorf("%w: %s", ErrUnknownModule, module)
				}
				log.WithFields(log.Fields{"module": module, "plan_id": plan.ID}).Warn("pricing: module has no add-on record, priced at 0")
				quote.UnknownModules = append(quote.UnknownModules, module)
				quote.ModulePrices[module] = decimal.Zero
				continue
			}
			price := ModulePrice(addOn, duration)
			quote.ModulePrices[module] = price
			quote.ModulesTotal = quote.ModulesTotal.Add(price)
		}
	}

	quote.Total = quote.PlanPrice.Add(quote.ModulesTotal)
	return quote, nil
}

// PlanPrice returns the base plan price for a duration.
func PlanPrice(plan *models.Plan, duration Duration) decimal.Decimal {
	if plan == nil {
		return decimal.Zero
	}
	if duration == Year {
		return plan.PackagePriceYearly
	}
	return plan.PackagePriceMonthly
}

// ModulePrice returns the add-on price for a duration.
func ModulePrice(addOn *models.AddOn, duration Duration) decimal.Decimal {
	if addOn == nil {
		return decimal.Zero
	}
	if duration == Year {
		return addOn.YearlyPrice
	}
	return addOn.MonthlyPrice
}
