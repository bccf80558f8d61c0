package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/assignment"
	dbutil "github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/entitlement"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/pricing"
	"github.com/workdesk-hq/platform/internal/security"
	"gorm.io/gorm"
)

// CompanyHandler manages tenant owner accounts and their plans.
type CompanyHandler struct {
	db           *gorm.DB
	engine       *assignment.Engine
	entitlements *entitlement.Resolver
}

// NewCompanyHandler constructs a CompanyHandler.
func NewCompanyHandler(db *gorm.DB, engine *assignment.Engine, resolver *entitlement.Resolver) *CompanyHandler {
	if resolver == nil {
		resolver = entitlement.NewResolver(db)
	}
	return &CompanyHandler{db: db, engine: engine, entitlements: resolver}
}

// createCompanyRequest defines the request body for tenant creation.
type createCompanyRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	PlanID   uint64 `json:"plan_id"`
}

// Create creates a tenant owner account, optionally on a free plan.
func (h *CompanyHandler) Create(c *gin.Context) {
	var body createCompanyRequest
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

	ctx := c.Request.Context()
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

	now := time.Now().UTC()
	user := models.User{
		Name:      strings.TrimSpace(body.Name),
		Email:     email,
		Password:  hash,
		Type:      models.UserTypeCompany,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create company failed"})
		return
	}

	if body.PlanID != 0 {
		if _, errAssign := h.engine.AssignFreePlan(ctx, user.ID, body.PlanID); errAssign != nil {
			log.WithError(errAssign).WithField("tenant_id", user.ID).Warn("company created without plan")
		} else if errReload := h.db.WithContext(ctx).First(&user, user.ID).Error; errReload != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
	}
	c.JSON(http.StatusCreated, formatCompany(&user))
}

// List returns tenant owners with optional filters.
func (h *CompanyHandler) List(c *gin.Context) {
	var (
		searchQ = strings.TrimSpace(c.Query("search"))
		planQ   = strings.TrimSpace(c.Query("plan_id"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("type = ?", models.UserTypeCompany)
	if searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "email"),
			pattern,
			pattern,
		)
	}
	if planQ != "" {
		if planID, ok := queryUint(c, "plan_id"); ok {
			q = q.Where("active_plan_id = ?", planID)
		}
	}

	var rows []models.User
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list companies failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatCompany(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"companies": out})
}

// Get returns a tenant owner with its resolved entitlement.
func (h *CompanyHandler) Get(c *gin.Context) {
	user, ok := h.loadCompany(c)
	if !ok {
		return
	}
	ent, errResolve := h.entitlements.Resolve(c.Request.Context(), user.ID)
	if errResolve != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve entitlement failed"})
		return
	}
	out := formatCompany(user)
	out["modules"] = ent.Modules
	c.JSON(http.StatusOK, out)
}

// updateCompanyRequest defines the request body for tenant updates.
type updateCompanyRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	IsActive *bool   `json:"is_active"`
}

// Update modifies a tenant owner account.
func (h *CompanyHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateCompanyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*body.Email))
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email cannot be empty"})
			return
		}
		updates["email"] = email
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ? AND type = ?", id, models.UserTypeCompany).
		Updates(updates)
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

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	Password string `json:"password"`
}

// ChangePassword updates a tenant owner's password.
func (h *CompanyHandler) ChangePassword(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ? AND type = ?", id, models.UserTypeCompany).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// assignPlanRequest is a manual plan upgrade by an operator.
type assignPlanRequest struct {
	PlanID         uint64   `json:"plan_id"`
	Duration       string   `json:"duration"`
	Modules        []string `json:"modules"`
	UserCounter    *int64   `json:"user_counter"`
	StorageCounter *int64   `json:"storage_counter"`
	TxnID          string   `json:"txn_id"`
}

// AssignPlan moves the tenant onto a plan and records a manual order.
func (h *CompanyHandler) AssignPlan(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body assignPlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.PlanID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	req := assignment.PurchaseRequest{
		UserID:      id,
		PlanID:      body.PlanID,
		Duration:    pricing.ParseDuration(body.Duration),
		Modules:     models.ModuleKeys(body.Modules),
		PaymentType: models.PaymentTypeManual,
		TxnID:       strings.TrimSpace(body.TxnID),
	}
	if body.UserCounter != nil || body.StorageCounter != nil {
		counter := assignment.PlanDefaults
		if body.UserCounter != nil {
			counter.UserCounter = *body.UserCounter
		}
		if body.StorageCounter != nil {
			counter.StorageCounter = *body.StorageCounter
		}
		if counter.UserCounter < models.Unlimited || counter.StorageCounter < models.Unlimited {
			c.JSON(http.StatusBadRequest, gin.H{"error": "counters must be -1 or greater"})
			return
		}
		req.Counter = &counter
	}

	order, errPurchase := h.engine.Purchase(c.Request.Context(), req)
	if errPurchase != nil {
		switch {
		case errors.Is(errPurchase, assignment.ErrPlanNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		case errors.Is(errPurchase, assignment.ErrUserNotFound), errors.Is(errPurchase, assignment.ErrNotTenant):
			c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
		case errors.Is(errPurchase, assignment.ErrUnknownModule):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid modules"})
		default:
			log.WithError(errPurchase).WithField("tenant_id", id).Error("manual plan assignment failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "assign plan failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": FormatOrder(order)})
}

func (h *CompanyHandler) loadCompany(c *gin.Context) (*models.User, bool) {
	id, ok := parseIDParam(c)
	if !ok {
		return nil, false
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("type = ?", models.UserTypeCompany).
		First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &user, true
}

func formatCompany(u *models.User) gin.H {
	return gin.H{
		"id":                u.ID,
		"name":              u.Name,
		"email":             u.Email,
		"active_plan_id":    u.ActivePlanID,
		"plan_expire_date":  u.PlanExpireDate,
		"is_trial_done":     u.IsTrialDone,
		"trial_expire_date": u.TrialExpireDate,
		"max_users":         u.MaxUsers,
		"storage_limit":     u.StorageLimitKB,
		"is_active":         u.IsActive,
		"created_at":        u.CreatedAt,
		"updated_at":        u.UpdatedAt,
	}
}
