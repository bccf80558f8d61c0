package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workdesk-hq/platform/internal/coupon"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/pricing"
	"github.com/workdesk-hq/platform/internal/settings"
)

func TestAssignFreePlan_RecordsZeroPricedOrder(t *testing.T) {
	conn := openAssignmentDB(t)
	plan := createPlan(t, conn, models.Plan{Name: "Free", FreePlan: true, NumberOfUsers: 2, StorageLimit: 512})
	tenant := createTenant(t, conn, "owner@acme.test")
	engine := newTestEngine(conn, nil)

	order, err := engine.AssignFreePlan(context.Background(), tenant.ID, plan.ID)
	require.NoError(t, err)
	assert.True(t, order.Price.IsZero())
	assert.Equal(t, "", order.TxnID)
	assert.Equal(t, models.PaymentTypeFree, order.PaymentType)
	assert.Equal(t, models.PaymentStatusSucceeded, order.PaymentStatus)
	assert.Equal(t, "EUR", order.Currency)
	assert.Equal(t, "Free", order.PlanName)
	assert.Equal(t, tenant.ID, order.CreatedBy)

	got := reloadUser(t, conn, tenant.ID)
	assert.Nil(t, got.PlanExpireDate)
	assert.Equal(t, int64(2), got.MaxUsers)
	assert.Equal(t, int64(1), countRows(t, conn, &models.Order{}))
}

func TestAssignFreePlan_RejectsPaidOrDisabledPlan(t *testing.T) {
	conn := openAssignmentDB(t)
	paid := createPlan(t, conn, models.Plan{PackagePriceMonthly: decimal.NewFromInt(9)})
	disabled := createPlan(t, conn, models.Plan{FreePlan: true})
	require.NoError(t, conn.Model(&disabled).Update("is_enabled", false).Error)
	tenant := createTenant(t, conn, "owner@acme.test")
	engine := newTestEngine(conn, nil)

	_, err := engine.AssignFreePlan(context.Background(), tenant.ID, paid.ID)
	assert.ErrorIs(t, err, ErrNotFreePlan)
	_, err = engine.AssignFreePlan(context.Background(), tenant.ID, disabled.ID)
	assert.ErrorIs(t, err, ErrPlanDisabled)
	assert.Equal(t, int64(0), countRows(t, conn, &models.Order{}))
}

func TestStartTrial_OnlyOnce(t *testing.T) {
	conn := openAssignmentDB(t)
	plan := createPlan(t, conn, models.Plan{Trial: true, TrialDays: 7, NumberOfUsers: 4})
	noTrial := createPlan(t, conn, models.Plan{Name: "No trial"})
	tenant := createTenant(t, conn, "owner@acme.test")
	engine := newTestEngine(conn, nil)
	ctx := context.Background()

	_, err := engine.StartTrial(ctx, tenant.ID, noTrial.ID)
	assert.ErrorIs(t, err, ErrTrialUnavailable)

	trial, err := engine.StartTrial(ctx, tenant.ID, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, trial.PlanExpireDate)
	assert.True(t, trial.PlanExpireDate.Equal(fixedNow.AddDate(0, 0, 7)))

	got := reloadUser(t, conn, tenant.ID)
	assert.True(t, got.IsTrialDone)
	require.NotNil(t, got.TrialExpireDate)
	assert.True(t, got.TrialExpireDate.Equal(fixedNow.AddDate(0, 0, 7)))

	_, err = engine.StartTrial(ctx, tenant.ID, plan.ID)
	assert.ErrorIs(t, err, ErrTrialUsed)
	assert.Equal(t, int64(0), countRows(t, conn, &models.Order{}))
}

func seedPurchaseCatalog(t *testing.T, engine *Engine) (models.Plan, models.User) {
	t.Helper()
	conn := engine.db
	plan := createPlan(t, conn, models.Plan{
		Name:                "Business",
		NumberOfUsers:       10,
		StorageLimit:        4096,
		PackagePriceMonthly: decimal.NewFromInt(100),
		PackagePriceYearly:  decimal.NewFromInt(1000),
	})
	createAddOn(t, conn, models.AddOn{Module: "Crm", IsEnable: true, MonthlyPrice: decimal.NewFromInt(20), YearlyPrice: decimal.NewFromInt(200)})
	require.NoError(t, conn.Create(&models.Coupon{
		Name:     "Ten",
		Code:     "TEN",
		Type:     models.CouponTypePercentage,
		Discount: decimal.NewFromInt(10),
	}).Error)
	return plan, createTenant(t, conn, "owner@acme.test")
}

func TestPurchase_AppliesCouponAndRecordsUsageWithOrder(t *testing.T) {
	conn := openAssignmentDB(t)
	engine := newTestEngine(conn, nil)
	plan, tenant := seedPurchaseCatalog(t, engine)

	order, err := engine.Purchase(context.Background(), PurchaseRequest{
		UserID:      tenant.ID,
		PlanID:      plan.ID,
		Duration:    pricing.Month,
		Modules:     models.ModuleKeys{"Crm"},
		CouponCode:  "TEN",
		PaymentType: "Stripe",
		TxnID:       "ch_123",
	})
	require.NoError(t, err)
	assert.True(t, order.Price.Equal(decimal.NewFromInt(108)), "price %s", order.Price)
	assert.Equal(t, "TEN", order.CouponCode)
	assert.Equal(t, "Stripe", order.PaymentType)
	assert.Equal(t, string(PeriodMonth), order.Duration)
	assert.Equal(t, models.ModuleKeys{"Crm"}, order.Modules)

	var usage []models.UserCoupon
	require.NoError(t, conn.Find(&usage).Error)
	require.Len(t, usage, 1)
	assert.Equal(t, order.OrderID, usage[0].OrderID)
	assert.Equal(t, tenant.ID, usage[0].UserID)
	assert.Equal(t, int64(1), countRows(t, conn, &models.UserActiveModule{}))

	got := reloadUser(t, conn, tenant.ID)
	assert.Equal(t, int64(10), got.MaxUsers)
}

func TestPurchase_InvalidCouponWritesNothing(t *testing.T) {
	conn := openAssignmentDB(t)
	engine := newTestEngine(conn, nil)
	plan, tenant := seedPurchaseCatalog(t, engine)

	_, err := engine.Purchase(context.Background(), PurchaseRequest{UserID: tenant.ID, PlanID: plan.ID, CouponCode: "BOGUS"})
	var couponErr *CouponError
	require.True(t, errors.As(err, &couponErr), "got %v", err)
	assert.Equal(t, coupon.MsgInvalid, couponErr.Message)

	assert.Nil(t, reloadUser(t, conn, tenant.ID).ActivePlanID)
	assert.Equal(t, int64(0), countRows(t, conn, &models.Order{}))
}

func TestPurchase_UnknownModuleRollsBackOrderAndCoupon(t *testing.T) {
	conn := openAssignmentDB(t)
	engine := newTestEngine(conn, nil)
	plan, tenant := seedPurchaseCatalog(t, engine)

	_, err := engine.Purchase(context.Background(), PurchaseRequest{
		UserID:     tenant.ID,
		PlanID:     plan.ID,
		Modules:    models.ModuleKeys{"Crm", "Ghost"},
		CouponCode: "TEN",
	})
	require.ErrorIs(t, err, ErrUnknownModule)
	assert.Equal(t, int64(0), countRows(t, conn, &models.Order{}))
	assert.Equal(t, int64(0), countRows(t, conn, &models.UserCoupon{}))
	assert.Equal(t, int64(0), countRows(t, conn, &models.UserActiveModule{}))
	assert.Nil(t, reloadUser(t, conn, tenant.ID).ActivePlanID)
}

func TestPurchase_MissingPlan(t *testing.T) {
	conn := openAssignmentDB(t)
	engine := newTestEngine(conn, nil)
	tenant := createTenant(t, conn, "owner@acme.test")

	_, err := engine.Purchase(context.Background(), PurchaseRequest{UserID: tenant.ID, PlanID: 77})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestBankTransfer_ApproveOnce(t *testing.T) {
	conn := openAssignmentDB(t)
	engine := newTestEngine(conn, nil)
	plan, tenant := seedPurchaseCatalog(t, engine)
	ctx := context.Background()

	payment, err := engine.SubmitBankTransfer(ctx, BankTransferRequest{
		UserID:     tenant.ID,
		PlanID:     plan.ID,
		Duration:   pricing.Year,
		Modules:    models.ModuleKeys{"Crm"},
		CouponCode: "TEN",
		Attachment: "https://files.test/receipt.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BankTransferPending, payment.Status)
	assert.True(t, payment.Price.Equal(decimal.NewFromInt(1080)), "price %s", payment.Price)

	intent, err := DecodeIntent(payment.Request)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, intent.PlanID)
	assert.Equal(t, []string{"Crm"}, intent.Modules)

	assert.Nil(t, reloadUser(t, conn, tenant.ID).ActivePlanID)

	order, err := engine.ApproveBankTransfer(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.OrderID, order.OrderID)
	assert.Equal(t, models.PaymentTypeBankTransfer, order.PaymentType)
	assert.Equal(t, string(PeriodYear), order.Duration)
	assert.True(t, order.Price.Equal(payment.Price))

	got := reloadUser(t, conn, tenant.ID)
	require.NotNil(t, got.ActivePlanID)
	assert.Equal(t, plan.ID, *got.ActivePlanID)
	assert.Equal(t, int64(10), got.MaxUsers)

	_, err = engine.ApproveBankTransfer(ctx, payment.ID)
	assert.ErrorIs(t, err, ErrBankTransferNotPending)
	assert.Equal(t, int64(1), countRows(t, conn, &models.Order{}))
	assert.Equal(t, int64(1), countRows(t, conn, &models.UserCoupon{}))

	var stored models.BankTransferPayment
	require.NoError(t, conn.First(&stored, payment.ID).Error)
	assert.Equal(t, models.BankTransferApproved, stored.Status)
}

func TestBankTransfer_RejectThenApproveFails(t *testing.T) {
	conn := openAssignmentDB(t)
	engine := newTestEngine(conn, nil)
	plan, tenant := seedPurchaseCatalog(t, engine)
	ctx := context.Background()

	payment, err := engine.SubmitBankTransfer(ctx, BankTransferRequest{UserID: tenant.ID, PlanID: plan.ID})
	require.NoError(t, err)
	require.NoError(t, engine.RejectBankTransfer(ctx, payment.ID))
	assert.ErrorIs(t, engine.RejectBankTransfer(ctx, payment.ID), ErrBankTransferNotPending)
	assert.ErrorIs(t, engine.RejectBankTransfer(ctx, 9999), ErrBankTransferNotFound)

	_, err = engine.ApproveBankTransfer(ctx, payment.ID)
	assert.ErrorIs(t, err, ErrBankTransferNotPending)
	_, err = engine.ApproveBankTransfer(ctx, 9999)
	assert.ErrorIs(t, err, ErrBankTransferNotFound)
	assert.Equal(t, int64(0), countRows(t, conn, &models.Order{}))
}

func TestBankTransfer_DeleteRules(t *testing.T) {
	conn := openAssignmentDB(t)
	engine := newTestEngine(conn, nil)
	plan, tenant := seedPurchaseCatalog(t, engine)
	stranger := createTenant(t, conn, "other@corp.test")
	admin := models.User{Email: "root@platform.test", Password: "x", Type: models.UserTypeSuperAdmin}
	require.NoError(t, conn.Create(&admin).Error)
	ctx := context.Background()

	first, err := engine.SubmitBankTransfer(ctx, BankTransferRequest{UserID: tenant.ID, PlanID: plan.ID})
	require.NoError(t, err)
	second, err := engine.SubmitBankTransfer(ctx, BankTransferRequest{UserID: tenant.ID, PlanID: plan.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, engine.DeleteBankTransfer(ctx, first.ID, &stranger), ErrForbidden)
	assert.ErrorIs(t, engine.DeleteBankTransfer(ctx, first.ID, nil), ErrForbidden)
	require.NoError(t, engine.DeleteBankTransfer(ctx, first.ID, &tenant))
	assert.ErrorIs(t, engine.DeleteBankTransfer(ctx, first.ID, &tenant), ErrBankTransferNotFound)

	_, err = engine.ApproveBankTransfer(ctx, second.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, engine.DeleteBankTransfer(ctx, second.ID, &admin), ErrBankTransferNotPending)
}

func TestSubmitBankTransfer_Disabled(t *testing.T) {
	conn := openAssignmentDB(t)
	provider := settings.NewStaticProvider(map[string]any{settings.BankTransferEnabledKey: false})
	engine := newTestEngine(conn, provider)
	plan, tenant := seedPurchaseCatalog(t, engine)

	_, err := engine.SubmitBankTransfer(context.Background(), BankTransferRequest{UserID: tenant.ID, PlanID: plan.ID})
	assert.ErrorIs(t, err, ErrBankTransferDisabled)
	assert.Equal(t, int64(0), countRows(t, conn, &models.BankTransferPayment{}))
}

func TestExpirePlan_FallsBackToDefaultPlan(t *testing.T) {
	conn := openAssignmentDB(t)
	free := createPlan(t, conn, models.Plan{Name: "Free", FreePlan: true, NumberOfUsers: 1, StorageLimit: 100})
	provider := settings.NewStaticProvider(map[string]any{settings.DefaultPlanIDKey: free.ID})
	engine := newTestEngine(conn, provider)
	plan, tenant := seedPurchaseCatalog(t, engine)
	ctx := context.Background()

	res := engine.AssignPlan(ctx, AssignPlanRequest{PlanID: plan.ID, Period: PeriodMonth, Counter: PlanDefaults, UserID: tenant.ID})
	require.True(t, res.IsSuccess, res.Error)

	expired, err := engine.ExpiredTenants(ctx, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, expired)

	engine.now = func() time.Time { return fixedNow.AddDate(0, 2, 0) }
	expired, err = engine.ExpiredTenants(ctx, engine.clock())
	require.NoError(t, err)
	assert.Equal(t, []uint64{tenant.ID}, expired)

	got, err := engine.ExpirePlan(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActivePlanID)
	assert.Equal(t, free.ID, *got.ActivePlanID)
	assert.Nil(t, got.PlanExpireDate)
	assert.Equal(t, int64(1), got.MaxUsers)
}

func TestExpirePlan_ClearsPlanWithoutDefault(t *testing.T) {
	conn := openAssignmentDB(t)
	engine := newTestEngine(conn, nil)
	plan, tenant := seedPurchaseCatalog(t, engine)
	ctx := context.Background()

	res := engine.AssignPlan(ctx, AssignPlanRequest{PlanID: plan.ID, Period: PeriodMonth, Counter: PlanDefaults, UserID: tenant.ID})
	require.True(t, res.IsSuccess, res.Error)

	notYet, err := engine.ExpirePlan(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, notYet.ActivePlanID)

	engine.now = func() time.Time { return fixedNow.AddDate(0, 1, 1) }
	_, err = engine.ExpirePlan(ctx, tenant.ID)
	require.NoError(t, err)
	got := reloadUser(t, conn, tenant.ID)
	assert.Nil(t, got.ActivePlanID)
	assert.Nil(t, got.PlanExpireDate)
	assert.Equal(t, int64(0), got.MaxUsers)
	assert.Equal(t, int64(0), got.StorageLimitKB)
}
