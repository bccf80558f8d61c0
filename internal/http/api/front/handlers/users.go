package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/authz"
	"github.com/workdesk-hq/platform/internal/http/api/admin/permissions"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/quota"
	"github.com/workdesk-hq/platform/internal/security"
	"gorm.io/gorm"
)

// UserFrontHandler manages the staff accounts of a tenant.
type UserFrontHandler struct {
	db    *gorm.DB
	guard *quota.Guard
}

// NewUserFrontHandler constructs a UserFrontHandler.
func NewUserFrontHandler(db *gorm.DB, guard *quota.Guard) *UserFrontHandler {
	if guard == nil {
		guard = quota.NewGuard(db, nil)
	}
	return &UserFrontHandler{db: db, guard: guard}
}

// createStaffRequest defines the request body for staff creation.
type createStaffRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Permissions []string `json:"permissions"`
}

// Create adds a staff user when the tenant's user quota allows it.
func (h *UserFrontHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !requirePermission(c, user, permissions.UserPolicy.ManageAny()) {
		return
	}
	var body createStaffRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}
	if errValidate := permissions.ValidatePermissions(body.Permissions); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	ctx := c.Request.Context()
	tenantID := user.TenantID()
	decision, errGuard := h.guard.CanCreateUser(ctx, tenantID)
	if errGuard != nil {
		log.WithError(errGuard).WithField("tenant_id", tenantID).Error("user quota check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !decision.CanCreate {
		c.JSON(http.StatusForbidden, gin.H{"error": decision.Message, "current": decision.Current, "limit": decision.Limit})
		return
	}

	var taken int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if taken > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	perms, errMarshal := authz.MarshalPermissions(body.Permissions)
	if errMarshal != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode permissions failed"})
		return
	}

	now := time.Now().UTC()
	staff := models.User{
		Name:        strings.TrimSpace(body.Name),
		Email:       email,
		Password:    hash,
		Type:        models.UserTypeStaff,
		CreatedBy:   tenantID,
		Permissions: perms,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&staff).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}
	c.JSON(http.StatusCreated, formatStaff(&staff))
}

// List returns the tenant's staff visible to the user.
func (h *UserFrontHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	scope, errScope := permissions.UserPolicy.Scope(user)
	if errScope != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	var rows []models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Scopes(scope).
		Where("type = ?", models.UserTypeStaff).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatStaff(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Delete removes a staff user of the tenant.
func (h *UserFrontHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !requirePermission(c, user, permissions.UserPolicy.ManageAny()) {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if id == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete yourself"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND created_by = ? AND type = ?", id, user.TenantID(), models.UserTypeStaff).
		Delete(&models.User{})
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

var errStaffNotFound = errors.New("staff user not found")

// SetActive toggles a staff account. Reactivation goes through the user quota again; setting the
// current state is a no-op.
func (h *UserFrontHandler) SetActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		if !requirePermission(c, user, permissions.UserPolicy.ManageAny()) {
			return
		}
		id, ok := parseIDParam(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		tenantID := user.TenantID()
		var staff models.User
		errFind := h.db.WithContext(ctx).
			Where("id = ? AND created_by = ? AND type = ?", id, tenantID, models.UserTypeStaff).
			First(&staff).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if staff.IsActive == active {
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		if active {
			decision, errGuard := h.guard.CanCreateUser(ctx, tenantID)
			if errGuard != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
				return
			}
			if !decision.CanCreate {
				c.JSON(http.StatusForbidden, gin.H{"error": decision.Message})
				return
			}
		}
		errUpdate := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.User{}).
				Where("id = ? AND created_by = ? AND type = ?", staff.ID, tenantID, models.UserTypeStaff).
				Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errStaffNotFound
			}
			return nil
		})
		if errUpdate != nil {
			if errors.Is(errUpdate, errStaffNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func formatStaff(u *models.User) gin.H {
	return gin.H{
		"id":          u.ID,
		"name":        u.Name,
		"email":       u.Email,
		"permissions": authz.Permissions(u),
		"is_active":   u.IsActive,
		"created_at":  u.CreatedAt,
	}
}
