package front

import (
	"github.com/gin-gonic/gin"
	"github.com/workdesk-hq/platform/internal/assignment"
	"github.com/workdesk-hq/platform/internal/auth"
	"github.com/workdesk-hq/platform/internal/coupon"
	"github.com/workdesk-hq/platform/internal/entitlement"
	handlers "github.com/workdesk-hq/platform/internal/http/api/front/handlers"
	"github.com/workdesk-hq/platform/internal/pricing"
	"github.com/workdesk-hq/platform/internal/quota"
	"github.com/workdesk-hq/platform/internal/ratelimit"
	"github.com/workdesk-hq/platform/internal/storage"
	"gorm.io/gorm"
)

// Deps carries the engines the tenant routes act through. Nil engines are built from the db.
type Deps struct {
	Auth         *auth.Authenticator
	Calculator   *pricing.Calculator
	Coupons      *coupon.Engine
	Engine       *assignment.Engine
	Entitlements *entitlement.Resolver
	Guard        *quota.Guard
	Limiter      *ratelimit.Limiter
	Store        storage.Store
}

// RegisterFrontRoutes registers tenant routes, middleware, and handlers.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, deps Deps) {
	if r == nil || db == nil || deps.Auth == nil {
		return
	}
	if deps.Calculator == nil {
		deps.Calculator = pricing.NewCalculator(db)
	}
	if deps.Coupons == nil {
		deps.Coupons = coupon.NewEngine(db)
	}
	if deps.Engine == nil {
		deps.Engine = assignment.NewEngine(db, deps.Calculator, deps.Coupons, nil)
	}
	if deps.Entitlements == nil {
		deps.Entitlements = entitlement.NewResolver(db)
	}
	if deps.Guard == nil {
		deps.Guard = quota.NewGuard(db, deps.Entitlements)
	}

	r.POST("/v0/login", deps.Auth.LoginHandler(auth.TenantMembers))

	authed := r.Group("/v0/front")
	authed.Use(deps.Auth.Middleware(auth.TenantMembers, ""))

	planHandler := handlers.NewPlanFrontHandler(db, deps.Calculator)
	authed.GET("/plans", planHandler.List)
	authed.GET("/add-ons", planHandler.AddOns)
	authed.POST("/plans/quote", planHandler.Quote)
	authed.GET("/plans/:id/price", planHandler.Price)

	billingHandler := handlers.NewBillingFrontHandler(db, deps.Engine, deps.Store)
	authed.POST("/plans/:id/trial", billingHandler.StartTrial)
	authed.POST("/plans/:id/free", billingHandler.ChooseFree)
	authed.POST("/bank-transfers", billingHandler.SubmitBankTransfer)
	authed.GET("/bank-transfers", billingHandler.ListBankTransfers)
	authed.DELETE("/bank-transfers/:id", billingHandler.DeleteBankTransfer)
	authed.GET("/orders", billingHandler.ListOrders)

	couponHandler := handlers.NewCouponFrontHandler(deps.Coupons, deps.Limiter)
	authed.POST("/coupons/apply", couponHandler.Apply)

	entitlementHandler := handlers.NewEntitlementFrontHandler(deps.Entitlements, deps.Guard)
	authed.GET("/entitlement", entitlementHandler.Get)

	userHandler := handlers.NewUserFrontHandler(db, deps.Guard)
	authed.POST("/users", userHandler.Create)
	authed.GET("/users", userHandler.List)
	authed.DELETE("/users/:id", userHandler.Delete)
	authed.POST("/users/:id/disable", userHandler.SetActive(false))
	authed.POST("/users/:id/enable", userHandler.SetActive(true))

	mediaHandler := handlers.NewMediaFrontHandler(db, deps.Guard, deps.Store)
	authed.POST("/media", mediaHandler.Upload)
	authed.GET("/media", mediaHandler.List)
}
