package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/assignment"
	dbutil "github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// BankTransferHandler reviews offline payments submitted by tenants.
type BankTransferHandler struct {
	db     *gorm.DB
	engine *assignment.Engine
}

// NewBankTransferHandler constructs a BankTransferHandler.
func NewBankTransferHandler(db *gorm.DB, engine *assignment.Engine) *BankTransferHandler {
	return &BankTransferHandler{db: db, engine: engine}
}

// List returns bank transfers, newest first, optionally filtered by status, tenant or requested plan.
func (h *BankTransferHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.BankTransferPayment{})
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if userID, ok := queryUint(c, "user_id"); ok {
		q = q.Where("user_id = ?", userID)
	}
	if planID, ok := queryUint(c, "plan_id"); ok {
		q = q.Where(dbutil.JSONExtractTextExpr(h.db, "request", "plan_id")+" = ?", strconv.FormatUint(planID, 10))
	}
	var rows []models.BankTransferPayment
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list bank transfers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, FormatBankTransfer(&row))
	}
	c.JSON(http.StatusOK, gin.H{"bank_transfers": out})
}

// Approve assigns the requested plan and records the order.
func (h *BankTransferHandler) Approve(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	order, errApprove := h.engine.ApproveBankTransfer(c.Request.Context(), id)
	if errApprove != nil {
		writeBankTransferError(c, errApprove)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": FormatOrder(order)})
}

// Reject closes a pending transfer without assigning anything.
func (h *BankTransferHandler) Reject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errReject := h.engine.RejectBankTransfer(c.Request.Context(), id); errReject != nil {
		writeBankTransferError(c, errReject)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a pending transfer.
func (h *BankTransferHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errDelete := h.engine.DeleteBankTransfer(c.Request.Context(), id, currentAdmin(c)); errDelete != nil {
		writeBankTransferError(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeBankTransferError(c *gin.Context, err error) {
	var couponErr *assignment.CouponError
	switch {
	case errors.Is(err, assignment.ErrBankTransferNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, assignment.ErrBankTransferNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "bank transfer is not pending"})
	case errors.Is(err, assignment.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, assignment.ErrPlanNotFound), errors.Is(err, assignment.ErrPlanDisabled):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "plan is no longer available"})
	case errors.Is(err, assignment.ErrUnknownModule):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "module is no longer available"})
	case errors.Is(err, assignment.ErrUserNotFound), errors.Is(err, assignment.ErrNotTenant):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "tenant not found"})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": couponErr.Message})
	default:
		log.WithError(err).Error("bank transfer action failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bank transfer action failed"})
	}
}

// FormatBankTransfer converts a bank transfer row into a response payload.
func FormatBankTransfer(p *models.BankTransferPayment) gin.H {
	out := gin.H{
		"id":         p.ID,
		"order_id":   p.OrderID,
		"user_id":    p.UserID,
		"status":     p.Status,
		"price":      p.Price.StringFixed(2),
		"currency":   p.Currency,
		"attachment": p.Attachment,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
	if intent, errDecode := assignment.DecodeIntent(p.Request); errDecode == nil {
		out["request"] = intent
	}
	return out
}
