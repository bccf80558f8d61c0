package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/workdesk-hq/platform/internal/assignment"
	"github.com/workdesk-hq/platform/internal/auth"
	"github.com/workdesk-hq/platform/internal/entitlement"
	handlers "github.com/workdesk-hq/platform/internal/http/api/admin/handlers"
	"github.com/workdesk-hq/platform/internal/modules"
	"gorm.io/gorm"
)

// LoginPath is where unauthenticated module toggles are sent.
const LoginPath = "/admin/login"

// Deps carries the engines the admin routes act through.
type Deps struct {
	Auth         *auth.Authenticator
	Engine       *assignment.Engine
	Entitlements *entitlement.Resolver
	Modules      *modules.Resolver
}

// RegisterAdminRoutes registers platform operator routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, deps Deps) {
	if r == nil || db == nil || deps.Auth == nil {
		return
	}
	if deps.Engine == nil {
		deps.Engine = assignment.NewEngine(db, nil, nil, nil)
	}
	if deps.Entitlements == nil {
		deps.Entitlements = entitlement.NewResolver(db)
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")
	adminGroup.POST("/login", deps.Auth.LoginHandler(auth.SuperAdminOnly))

	authed := adminGroup.Group("")
	authed.Use(deps.Auth.Middleware(auth.SuperAdminOnly, ""))

	planHandler := handlers.NewPlanHandler(db)
	authed.POST("/plans", planHandler.Create)
	authed.GET("/plans", planHandler.List)
	authed.GET("/plans/:id", planHandler.Get)
	authed.PUT("/plans/:id", planHandler.Update)
	authed.DELETE("/plans/:id", planHandler.Delete)
	authed.POST("/plans/:id/enable", planHandler.Enable)
	authed.POST("/plans/:id/disable", planHandler.Disable)

	addOnHandler := handlers.NewAddOnHandler(db)
	authed.GET("/add-ons", addOnHandler.List)
	authed.PUT("/add-ons/:id", addOnHandler.Update)

	couponHandler := handlers.NewCouponHandler(db)
	authed.POST("/coupons", couponHandler.Create)
	authed.GET("/coupons", couponHandler.List)
	authed.GET("/coupons/:id", couponHandler.Get)
	authed.PUT("/coupons/:id", couponHandler.Update)
	authed.DELETE("/coupons/:id", couponHandler.Delete)

	companyHandler := handlers.NewCompanyHandler(db, deps.Engine, deps.Entitlements)
	authed.POST("/companies", companyHandler.Create)
	authed.GET("/companies", companyHandler.List)
	authed.GET("/companies/:id", companyHandler.Get)
	authed.PUT("/companies/:id", companyHandler.Update)
	authed.PUT("/companies/:id/password", companyHandler.ChangePassword)
	authed.POST("/companies/:id/plan", companyHandler.AssignPlan)

	orderHandler := handlers.NewOrderHandler(db)
	authed.GET("/orders", orderHandler.List)
	authed.GET("/orders/:id", orderHandler.Get)

	bankTransferHandler := handlers.NewBankTransferHandler(db, deps.Engine)
	authed.GET("/bank-transfers", bankTransferHandler.List)
	authed.POST("/bank-transfers/:id/approve", bankTransferHandler.Approve)
	authed.POST("/bank-transfers/:id/reject", bankTransferHandler.Reject)
	authed.DELETE("/bank-transfers/:id", bankTransferHandler.Delete)

	settingHandler := handlers.NewSettingHandler(db)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)

	authed.GET("/permissions", handlers.ListPermissions)

	if deps.Modules != nil {
		moduleHandler := handlers.NewModuleHandler(deps.Modules)
		authed.GET("/modules", moduleHandler.List)

		toggles := adminGroup.Group("/modules")
		toggles.Use(deps.Auth.Middleware(auth.SuperAdminOnly, LoginPath))
		toggles.POST("/enable", moduleHandler.Enable)
		toggles.POST("/disable", moduleHandler.Disable)
	}
}
