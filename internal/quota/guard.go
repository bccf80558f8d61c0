// Package quota enforces the user and storage allowances of a tenant at creation time.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/workdesk-hq/platform/internal/entitlement"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// Messages returned in UserDecision.
const (
	MsgUserLimitReached = "Your user limit is over, please upgrade your plan."
	MsgNoActivePlan     = "Please subscribe to a plan before adding users."
)

var ErrStorageLimitExceeded = errors.New("quota: storage limit exceeded")

// LimitError carries the numbers behind a rejected upload.
type LimitError struct {
	Err        error
	UsedBytes  int64
	BatchBytes int64
	LimitBytes int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: used %d + batch %d > limit %d bytes", e.Err, e.UsedBytes, e.BatchBytes, e.LimitBytes)
}

func (e *LimitError) Unwrap() error { return e.Err }

// UserDecision is the outcome of CanCreateUser.
type UserDecision struct {
	CanCreate bool
	Message   string
	Current   int64
	Limit     int64
}

// Guard compares current usage with the tenant entitlement. Checks are not locked against
// concurrent creations.
type Guard struct {
	db           *gorm.DB
	entitlements *entitlement.Resolver
}

// NewGuard constructs a Guard. A nil resolver is built from db.
func NewGuard(db *gorm.DB, resolver *entitlement.Resolver) *Guard {
	if resolver == nil {
		resolver = entitlement.NewResolver(db)
	}
	return &Guard{db: db, entitlements: resolver}
}

// CanCreateUser reports whether the tenant may add another staff user.
func (g *Guard) CanCreateUser(ctx context.Context, tenantID uint64) (UserDecision, error) {
	ent, errResolve := g.entitlements.Resolve(ctx, tenantID)
	if errResolve != nil {
		return UserDecision{}, errResolve
	}
	current, errCount := g.UserCount(ctx, ent.TenantID)
	if errCount != nil {
		return UserDecision{}, errCount
	}
	decision := UserDecision{Current: current, Limit: ent.MaxUsers}
	switch {
	case ent.MaxUsers == models.Unlimited:
		decision.CanCreate = true
	case current < ent.MaxUsers:
		decision.CanCreate = true
	case ent.PlanID == nil:
		decision.Message = MsgNoActivePlan
	default:
		decision.Message = MsgUserLimitReached
	}
	return decision, nil
}

// UserCount counts the active staff users of a tenant.
func (g *Guard) UserCount(ctx context.Context, tenantID uint64) (int64, error) {
	var count int64
	if errCount := g.db.WithContext(ctx).Model(&models.User{}).
		Where("created_by = ? AND type = ? AND is_active = ?", tenantID, models.UserTypeStaff, true).
		Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("quota: count users: %w", errCount)
	}
	return count, nil
}

// StorageUsed sums the media bytes stored by a tenant.
func (g *Guard) StorageUsed(ctx context.Context, tenantID uint64) (int64, error) {
	var used int64
	if errSum := g.db.WithContext(ctx).Model(&models.Media{}).
		Where("created_by = ?", tenantID).
		Select("COALESCE(SUM(size), 0)").
		Scan(&used).Error; errSum != nil {
		return 0, fmt.Errorf("quota: sum storage: %w", errSum)
	}
	return used, nil
}

// CheckStorageLimit rejects the whole batch when it would not fit. A batch that only partly fits
// is rejected too.
func (g *Guard) CheckStorageLimit(ctx context.Context, tenantID uint64, batchBytes int64) error {
	ent, errResolve := g.entitlements.Resolve(ctx, tenantID)
	if errResolve != nil {
		return errResolve
	}
	if ent.StorageLimitKB == models.Unlimited {
		return nil
	}
	used, errUsed := g.StorageUsed(ctx, ent.TenantID)
	if errUsed != nil {
		return errUsed
	}
	limit := ent.StorageLimitKB * 1024
	if used+batchBytes > limit {
		return &LimitError{Err: ErrStorageLimitExceeded, UsedBytes: used, BatchBytes: batchBytes, LimitBytes: limit}
	}
	return nil
}
