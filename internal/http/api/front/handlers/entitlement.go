package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/workdesk-hq/platform/internal/entitlement"
	"github.com/workdesk-hq/platform/internal/http/api/admin/permissions"
	"github.com/workdesk-hq/platform/internal/quota"
)

// EntitlementFrontHandler reports what the tenant's plan currently grants.
type EntitlementFrontHandler struct {
	resolver *entitlement.Resolver
	guard    *quota.Guard
}

// NewEntitlementFrontHandler constructs an EntitlementFrontHandler.
func NewEntitlementFrontHandler(resolver *entitlement.Resolver, guard *quota.Guard) *EntitlementFrontHandler {
	return &EntitlementFrontHandler{resolver: resolver, guard: guard}
}

// Get returns modules, quotas and current usage.
func (h *EntitlementFrontHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !requirePermission(c, user, permissions.ViewEntitlement) {
		return
	}
	ctx := c.Request.Context()
	ent, errResolve := h.resolver.Resolve(ctx, user.TenantID())
	if errResolve != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve entitlement failed"})
		return
	}
	users, errUsers := h.guard.UserCount(ctx, ent.TenantID)
	if errUsers != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	storageUsed, errStorage := h.guard.StorageUsed(ctx, ent.TenantID)
	if errStorage != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	modules := ent.Modules
	if modules == nil {
		modules = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"tenant_id":          ent.TenantID,
		"plan_id":            ent.PlanID,
		"expires_at":         ent.ExpiresAt,
		"modules":            modules,
		"max_users":          ent.MaxUsers,
		"storage_limit":      ent.StorageLimitKB,
		"users_used":         users,
		"storage_used_bytes": storageUsed,
	})
}
