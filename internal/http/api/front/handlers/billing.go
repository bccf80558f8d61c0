package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/assignment"
	"github.com/workdesk-hq/platform/internal/authz"
	"github.com/workdesk-hq/platform/internal/http/api/admin/permissions"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/pricing"
	"github.com/workdesk-hq/platform/internal/storage"
	"gorm.io/gorm"
)

// BillingFrontHandler runs the self-service plan flows of a tenant.
type BillingFrontHandler struct {
	db     *gorm.DB
	engine *assignment.Engine
	store  storage.Store
}

// NewBillingFrontHandler constructs a BillingFrontHandler. A nil store rejects receipt uploads.
func NewBillingFrontHandler(db *gorm.DB, engine *assignment.Engine, store storage.Store) *BillingFrontHandler {
	return &BillingFrontHandler{db: db, engine: engine, store: store}
}

// StartTrial puts the tenant on the plan's trial.
func (h *BillingFrontHandler) StartTrial(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok || !requireOwner(c, user) {
		return
	}
	planID, ok := parseIDParam(c)
	if !ok {
		return
	}
	tenant, errTrial := h.engine.StartTrial(c.Request.Context(), user.ID, planID)
	if errTrial != nil {
		writeAssignmentError(c, errTrial)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                true,
		"active_plan_id":    tenant.ActivePlanID,
		"trial_expire_date": tenant.TrialExpireDate,
	})
}

// ChooseFree moves the tenant onto a free plan.
func (h *BillingFrontHandler) ChooseFree(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok || !requireOwner(c, user) {
		return
	}
	planID, ok := parseIDParam(c)
	if !ok {
		return
	}
	order, errFree := h.engine.AssignFreePlan(c.Request.Context(), user.ID, planID)
	if errFree != nil {
		writeAssignmentError(c, errFree)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": formatOrder(order)})
}

// bankTransferRequest is accepted as JSON or multipart form data with a receipt file.
type bankTransferRequest struct {
	PlanID     uint64   `json:"plan_id" form:"plan_id"`
	Duration   string   `json:"duration" form:"duration"`
	Modules    []string `json:"modules" form:"modules"`
	CouponCode string   `json:"coupon_code" form:"coupon_code"`
}

// SubmitBankTransfer records an offline payment for admin review.
func (h *BillingFrontHandler) SubmitBankTransfer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !requirePermission(c, user, permissions.PurchasePlan) {
		return
	}
	var body bankTransferRequest
	if errBind := c.ShouldBind(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if body.PlanID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	ctx := c.Request.Context()
	attachment := ""
	if file, errFile := c.FormFile("attachment"); errFile == nil {
		if h.store == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "uploads are not configured"})
			return
		}
		src, errOpen := file.Open()
		if errOpen != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment"})
			return
		}
		obj, errPut := h.store.Put(ctx, file.Filename, file.Size, src)
		_ = src.Close()
		if errPut != nil {
			log.WithError(errPut).Error("store bank transfer receipt failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		attachment = obj.URL
	}

	payment, errSubmit := h.engine.SubmitBankTransfer(ctx, assignment.BankTransferRequest{
		UserID:     user.TenantID(),
		PlanID:     body.PlanID,
		Duration:   pricing.ParseDuration(body.Duration),
		Modules:    models.ModuleKeys(body.Modules),
		CouponCode: strings.TrimSpace(body.CouponCode),
		Attachment: attachment,
	})
	if errSubmit != nil {
		writeAssignmentError(c, errSubmit)
		return
	}
	c.JSON(http.StatusCreated, formatBankTransfer(payment))
}

// ListBankTransfers returns the tenant's offline payments.
func (h *BillingFrontHandler) ListBankTransfers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	scope, errScope := permissions.BankTransferPolicy.Scope(user)
	if errScope != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	var rows []models.BankTransferPayment
	if errFind := h.db.WithContext(c.Request.Context()).
		Scopes(scope).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list bank transfers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatBankTransfer(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bank_transfers": out})
}

// DeleteBankTransfer withdraws a pending offline payment of the tenant.
func (h *BillingFrontHandler) DeleteBankTransfer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !requirePermission(c, user, permissions.BankTransferPolicy.ManageAny()) {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errDelete := h.engine.DeleteBankTransfer(c.Request.Context(), id, user); errDelete != nil {
		writeAssignmentError(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOrders returns the orders visible to the user.
func (h *BillingFrontHandler) ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	scope, errScope := permissions.OrderPolicy.Scope(user)
	if errScope != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	q := h.db.WithContext(c.Request.Context()).Model(&models.Order{}).Scopes(scope)
	if raw := strings.TrimSpace(c.Query("plan_id")); raw != "" {
		if planID, errParse := strconv.ParseUint(raw, 10, 64); errParse == nil {
			q = q.Where("plan_id = ?", planID)
		}
	}
	var rows []models.Order
	if errFind := q.Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list orders failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatOrder(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

// writeAssignmentError maps plan flow failures to responses.
func writeAssignmentError(c *gin.Context, err error) {
	var couponErr *assignment.CouponError
	switch {
	case errors.As(err, &couponErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": couponErr.Message})
	case errors.Is(err, assignment.ErrPlanNotFound), errors.Is(err, pricing.ErrPlanNotFound),
		errors.Is(err, assignment.ErrPlanDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
	case errors.Is(err, assignment.ErrBankTransferNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, assignment.ErrTrialUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "plan does not offer a trial"})
	case errors.Is(err, assignment.ErrTrialUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "trial already used"})
	case errors.Is(err, assignment.ErrNotFreePlan):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "plan is not free"})
	case errors.Is(err, assignment.ErrUnknownModule):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid modules"})
	case errors.Is(err, assignment.ErrBankTransferDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "bank transfer payments are disabled"})
	case errors.Is(err, assignment.ErrBankTransferNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "bank transfer is no longer pending"})
	case errors.Is(err, assignment.ErrForbidden), errors.Is(err, authz.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, assignment.ErrNotTenant), errors.Is(err, assignment.ErrUserNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "only tenant accounts can hold plans"})
	default:
		log.WithError(err).Error("plan flow failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
	}
}

func formatBankTransfer(p *models.BankTransferPayment) gin.H {
	out := gin.H{
		"id":         p.ID,
		"order_id":   p.OrderID,
		"status":     p.Status,
		"price":      formatMoney(p.Price),
		"currency":   p.Currency,
		"attachment": p.Attachment,
		"created_at": p.CreatedAt,
	}
	if intent, errDecode := assignment.DecodeIntent(p.Request); errDecode == nil {
		out["request"] = intent
	}
	return out
}
