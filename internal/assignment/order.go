package assignment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// orderIDLength is the length of public order tokens.
const orderIDLength = 12

// NewOrderID returns a random uppercase order token.
func NewOrderID() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return token[:orderIDLength]
}

// orderParams describes an order to insert.
type orderParams struct {
	OrderID     string
	Tenant      *models.User
	Plan        *models.Plan
	Price       decimal.Decimal
	Currency    string
	TxnID       string
	PaymentType string
	Period      Period
	Modules     models.ModuleKeys
	CouponCode  string
	Receipt     string
}

func (e *Engine) createOrder(ctx context.Context, tx *gorm.DB, p orderParams) (*models.Order, error) {
	orderID := p.OrderID
	if orderID == "" {
		orderID = NewOrderID()
	}
	order := models.Order{
		OrderID:       orderID,
		Name:          p.Tenant.Name,
		Email:         p.Tenant.Email,
		PlanID:        p.Plan.ID,
		PlanName:      p.Plan.Name,
		Price:         p.Price,
		Currency:      p.Currency,
		TxnID:         p.TxnID,
		PaymentType:   p.PaymentType,
		PaymentStatus: models.PaymentStatusSucceeded,
		Duration:      string(p.Period),
		Modules:       p.Modules.Clean(),
		CouponCode:    p.CouponCode,
		Receipt:       p.Receipt,
		CreatedBy:     p.Tenant.ID,
		CreatedAt:     e.clock().UTC(),
	}
	if errCreate := tx.WithContext(ctx).Create(&order).Error; errCreate != nil {
		return nil, fmt.Errorf("assignment: create order: %w", errCreate)
	}
	return &order, nil
}
