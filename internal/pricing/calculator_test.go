package pricing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

func setupPricingDB(t *testing.T) (*gorm.DB, models.Plan) {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "pricing.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	plan := models.Plan{
		Name:                "Business",
		PackagePriceMonthly: decimal.NewFromInt(100),
		PackagePriceYearly:  decimal.NewFromInt(1000),
	}
	require.NoError(t, conn.Create(&plan).Error)
	addOns := []models.AddOn{
		{Module: "Hrm", Name: "HRM", MonthlyPrice: decimal.NewFromInt(20), YearlyPrice: decimal.NewFromInt(200), IsEnable: true},
		{Module: "Account", Name: "Accounting", MonthlyPrice: decimal.RequireFromString("9.50"), YearlyPrice: decimal.NewFromInt(95), IsEnable: true},
	}
	for i := range addOns {
		require.NoError(t, conn.Create(&addOns[i]).Error)
	}
	return conn, plan
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, Year, ParseDuration("Year"))
	assert.Equal(t, Year, ParseDuration(" yearly "))
	assert.Equal(t, Month, ParseDuration("Month"))
	assert.Equal(t, Month, ParseDuration(""))
	assert.Equal(t, Month, ParseDuration("fortnight"))
}

func TestParseModules(t *testing.T) {
	assert.Equal(t, models.ModuleKeys{"Hrm", "Account"}, ParseModules(" Hrm, ,Account,Hrm "))
	assert.Empty(t, ParseModules(""))
	assert.Empty(t, ParseModules(" , "))
}

func TestQuote_MonthAndYear(t *testing.T) {
	conn, plan := setupPricingDB(t)
	calc := NewCalculator(conn)
	ctx := context.Background()

	monthly, err := calc.Quote(ctx, QuoteRequest{PlanID: plan.ID, Duration: Month, Modules: models.ModuleKeys{"Hrm"}})
	require.NoError(t, err)
	assert.True(t, monthly.Total.Equal(decimal.NewFromInt(120)), "monthly total %s", monthly.Total)

	yearly, err := calc.Quote(ctx, QuoteRequest{PlanID: plan.ID, Duration: Year, Modules: models.ModuleKeys{"Hrm"}})
	require.NoError(t, err)
	assert.True(t, yearly.Total.Equal(decimal.NewFromInt(1200)), "yearly total %s", yearly.Total)
}

func TestQuote_UnknownDurationIsMonth(t *testing.T) {
	conn, plan := setupPricingDB(t)
	quote, err := NewCalculator(conn).Quote(context.Background(), QuoteRequest{PlanID: plan.ID, Duration: "Weekly"})
	require.NoError(t, err)
	assert.Equal(t, Month, quote.Duration)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(100)))
}

func TestQuote_SumsModulesAndDeduplicates(t *testing.T) {
	conn, plan := setupPricingDB(t)
	quote, err := NewCalculator(conn).Quote(context.Background(), QuoteRequest{
		PlanID:   plan.ID,
		Duration: Month,
		Modules:  models.ParseModuleKeys("Hrm, Account,Hrm,"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ModuleKeys{"Hrm", "Account"}, quote.Modules)
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("129.5")), "total %s", quote.Total)
}

func TestQuote_UnknownModuleContributesZero(t *testing.T) {
	conn, plan := setupPricingDB(t)
	quote, err := NewCalculator(conn).Quote(context.Background(), QuoteRequest{
		PlanID:   plan.ID,
		Duration: Month,
		Modules:  models.ModuleKeys{"Hrm", "Ghost"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ghost"}, quote.UnknownModules)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(120)))
}

func TestQuote_StrictRejectsUnknownModule(t *testing.T) {
	conn, plan := setupPricingDB(t)
	calc := NewCalculator(conn)
	calc.Strict = true
	_, err := calc.Quote(context.Background(), QuoteRequest{PlanID: plan.ID, Modules: models.ModuleKeys{"Ghost"}})
	require.ErrorIs(t, err, ErrUnknownModule)
}

func TestQuote_PlanNotFound(t *testing.T) {
	conn, _ := setupPricingDB(t)
	_, err := NewCalculator(conn).Quote(context.Background(), QuoteRequest{PlanID: 999})
	require.ErrorIs(t, err, ErrPlanNotFound)
}
