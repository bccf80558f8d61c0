package assignment

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/settings"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func openAssignmentDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "assignment.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func newTestEngine(conn *gorm.DB, provider settings.Provider) *Engine {
	if provider == nil {
		provider = settings.NewStaticProvider(map[string]any{settings.CurrencyKey: "EUR"})
	}
	engine := NewEngine(conn, nil, nil, provider)
	engine.now = func() time.Time { return fixedNow }
	return engine
}

func createPlan(t *testing.T, conn *gorm.DB, plan models.Plan) models.Plan {
	t.Helper()
	if plan.Name == "" {
		plan.Name = "Plan"
	}
	require.NoError(t, conn.Create(&plan).Error)
	return plan
}

func createTenant(t *testing.T, conn *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Name: email, Email: email, Password: "x", Type: models.UserTypeCompany}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

func createAddOn(t *testing.T, conn *gorm.DB, addOn models.AddOn) models.AddOn {
	t.Helper()
	if addOn.Name == "" {
		addOn.Name = addOn.Module
	}
	require.NoError(t, conn.Create(&addOn).Error)
	return addOn
}

func reloadUser(t *testing.T, conn *gorm.DB, id uint64) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, conn.First(&user, id).Error)
	return user
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(model).Count(&count).Error)
	return count
}

func TestAssignPlan_CounterSentinelTakesPlanDefaults(t *testing.T) {
	conn := openAssignmentDB(t)
	plan := createPlan(t, conn, models.Plan{NumberOfUsers: 5, StorageLimit: 2048})
	tenant := createTenant(t, conn, "owner@acme.test")
	engine := newTestEngine(conn, nil)
	ctx := context.Background()

	res := engine.AssignPlan(ctx, AssignPlanRequest{PlanID: plan.ID, Period: PeriodMonth, Counter: PlanDefaults, UserID: tenant.ID})
	require.True(t, res.IsSuccess, res.Error)
	got := reloadUser(t, conn, tenant.ID)
	assert.Equal(t, int64(5), got.MaxUsers)
	assert.Equal(t, int64(2048), got.StorageLimitKB)
	require.NotNil(t, got.ActivePlanID)
	assert.Equal(t, plan.ID, *got.ActivePlanID)

	res = engine.AssignPlan(ctx, AssignPlanRequest{
		PlanID:  plan.ID,
		Period:  PeriodMonth,
		Counter: Counter{UserCounter: 12, StorageCounter: UsePlanDefault},
		UserID:  tenant.ID,
	})
	require.True(t, res.IsSuccess, res.Error)
	got = reloadUser(t, conn, tenant.ID)
	assert.Equal(t, int64(12), got.MaxUsers)
	assert.Equal(t, int64(2048), got.StorageLimitKB)
}

func TestAssignPlan_ModuleActivationIsIdempotent(t *testing.T) {
	conn := openAssignmentDB(t)
	plan := createPlan(t, conn, models.Plan{NumberOfUsers: 1})
	tenant := createTenant(t, conn, "owner@acme.test")
	createAddOn(t, conn, models.AddOn{Module: "Crm", IsEnable: true})
	engine := newTestEngine(conn, nil)

	for i := 0; i < 2; i++ {
		res := engine.AssignPlan(context.Background(), AssignPlanRequest{
			PlanID:  plan.ID,
			Period:  PeriodMonth,
			Modules: models.ModuleKeys{"Crm", "Crm"},
			Counter: PlanDefaults,
			UserID:  tenant.ID,
		})
		require.True(t, res.IsSuccess, res.Error)
	}
	assert.Equal(t, int64(1), countRows(t, conn, &models.UserActiveModule{}))
}

func TestAssignPlan_UnknownModuleRollsBack(t *testing.T) {
	conn := openAssignmentDB(t)
	plan := createPlan(t, conn, models.Plan{NumberOfUsers: 3})
	tenant := createTenant(t, conn, "owner@acme.test")
	createAddOn(t, conn, models.AddOn{Module: "Crm", IsEnable: true})
	createAddOn(t, conn, models.AddOn{Module: "LandingPage", IsEnable: true, ForAdmin: true})
	engine := newTestEngine(conn, nil)

	for _, modules := range []models.ModuleKeys{{"Crm", "Nope"}, {"LandingPage"}} {
		res := engine.AssignPlan(context.Background(), AssignPlanRequest{
			PlanID:  plan.ID,
			Period:  PeriodMonth,
			Modules: modules,
			Counter: PlanDefaults,
			UserID:  tenant.ID,
		})
		require.False(t, res.IsSuccess)
		assert.ErrorIs(t, res.Err, ErrUnknownModule)
	}
	got := reloadUser(t, conn, tenant.ID)
	assert.Nil(t, got.ActivePlanID)
	assert.Equal(t, int64(0), got.MaxUsers)
	assert.Equal(t, int64(0), countRows(t, conn, &models.UserActiveModule{}))
}

func TestAssignPlan_RejectsMissingPlanAndStaff(t *testing.T) {
	conn := openAssignmentDB(t)
	plan := createPlan(t, conn, models.Plan{})
	owner := createTenant(t, conn, "owner@acme.test")
	staff := models.User{Email: "staff@acme.test", Password: "x", Type: models.UserTypeStaff, CreatedBy: owner.ID}
	require.NoError(t, conn.Create(&staff).Error)
	engine := newTestEngine(conn, nil)

	res := engine.AssignPlan(context.Background(), AssignPlanRequest{PlanID: 999, Period: PeriodMonth, Counter: PlanDefaults, UserID: owner.ID})
	assert.ErrorIs(t, res.Err, ErrPlanNotFound)

	res = engine.AssignPlan(context.Background(), AssignPlanRequest{PlanID: plan.ID, Period: PeriodMonth, Counter: PlanDefaults, UserID: staff.ID})
	assert.ErrorIs(t, res.Err, ErrNotTenant)

	res = engine.AssignPlan(context.Background(), AssignPlanRequest{PlanID: plan.ID, Period: PeriodMonth, Counter: PlanDefaults, UserID: 424242})
	assert.ErrorIs(t, res.Err, ErrUserNotFound)
}

func TestAssignPlan_RenewalExtendsFromCurrentExpiry(t *testing.T) {
	conn := openAssignmentDB(t)
	plan := createPlan(t, conn, models.Plan{PackagePriceMonthly: decimal.NewFromInt(10)})
	other := createPlan(t, conn, models.Plan{Name: "Other"})
	tenant := createTenant(t, conn, "owner@acme.test")
	engine := newTestEngine(conn, nil)
	ctx := context.Background()

	first := engine.AssignPlan(ctx, AssignPlanRequest{PlanID: plan.ID, Period: PeriodMonth, Counter: PlanDefaults, UserID: tenant.ID})
	require.True(t, first.IsSuccess, first.Error)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, first.ExpiresAt.Equal(fixedNow.AddDate(0, 1, 0)))

	second := engine.AssignPlan(ctx, AssignPlanRequest{PlanID: plan.ID, Period: PeriodMonth, Counter: PlanDefaults, UserID: tenant.ID})
	require.True(t, second.IsSuccess, second.Error)
	assert.True(t, second.ExpiresAt.Equal(fixedNow.AddDate(0, 2, 0)))

	switched := engine.AssignPlan(ctx, AssignPlanRequest{PlanID: other.ID, Period: PeriodYear, Counter: PlanDefaults, UserID: tenant.ID})
	require.True(t, switched.IsSuccess, switched.Error)
	assert.True(t, switched.ExpiresAt.Equal(fixedNow.AddDate(1, 0, 0)))
}

func TestNextExpiry(t *testing.T) {
	past := fixedNow.AddDate(0, 0, -3)
	future := fixedNow.AddDate(0, 0, 10)

	cases := []struct {
		name     string
		current  *time.Time
		samePlan bool
		period   Period
		want     *time.Time
	}{
		{name: "month from now", period: PeriodMonth, want: ptrTime(fixedNow.AddDate(0, 1, 0))},
		{name: "year from now", period: PeriodYear, want: ptrTime(fixedNow.AddDate(1, 0, 0))},
		{name: "renew before lapse", current: &future, samePlan: true, period: PeriodMonth, want: ptrTime(future.AddDate(0, 1, 0))},
		{name: "renew after lapse", current: &past, samePlan: true, period: PeriodMonth, want: ptrTime(fixedNow.AddDate(0, 1, 0))},
		{name: "switch plan ignores expiry", current: &future, period: PeriodMonth, want: ptrTime(fixedNow.AddDate(0, 1, 0))},
		{name: "trial counts days", current: &future, samePlan: true, period: PeriodTrial, want: ptrTime(fixedNow.AddDate(0, 0, 14))},
		{name: "lifetime never expires", current: &future, period: PeriodLifetime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextExpiry(tc.current, tc.samePlan, tc.period, 14, fixedNow)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(*tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestPeriodFor(t *testing.T) {
	assert.Equal(t, PeriodYear, PeriodFor("Year"))
	assert.Equal(t, PeriodYear, PeriodFor("yearly"))
	assert.Equal(t, PeriodMonth, PeriodFor("Month"))
	assert.Equal(t, PeriodMonth, PeriodFor("weekly"))
}

func TestNewOrderID(t *testing.T) {
	first := NewOrderID()
	second := NewOrderID()
	assert.Len(t, first, 12)
	assert.Regexp(t, `^[0-9A-F]{12}$`, first)
	assert.NotEqual(t, first, second)
}

func ptrTime(v time.Time) *time.Time { return &v }
