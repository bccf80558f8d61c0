// Package expiry moves tenants off paid plans once they lapse.
package expiry

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/settings"
)

const minSweepInterval = 10 * time.Second

// Expirer is the part of the assignment engine the sweeper drives.
type Expirer interface {
	ExpiredTenants(ctx context.Context, now time.Time) ([]uint64, error)
	ExpirePlan(ctx context.Context, userID uint64) (*models.User, error)
}

// Sweeper periodically expires lapsed plans.
type Sweeper struct {
	engine   Expirer
	settings settings.Provider
	now      func() time.Time
}

// NewSweeper constructs a sweeper. The interval is read from PLAN_EXPIRY_SWEEP_SECONDS.
func NewSweeper(engine Expirer, provider settings.Provider) *Sweeper {
	if engine == nil {
		return nil
	}
	return &Sweeper{engine: engine, settings: provider, now: time.Now}
}

// Start runs the sweep loop in the background until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	interval := s.interval(ctx)
	go s.run(ctx, interval)
	log.Infof("plan expiry sweeper started (interval=%s)", interval)
}

func (s *Sweeper) run(ctx context.Context, interval time.Duration) {
	if _, err := s.SweepOnce(ctx); err != nil {
		log.WithError(err).Warn("expiry sweeper: initial sweep failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.WithError(err).Warn("expiry sweeper: sweep failed")
			}
			if next := s.interval(ctx); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// SweepOnce expires every lapsed tenant and returns how many were processed.
// A failure on one tenant is logged and does not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s == nil || s.engine == nil {
		return 0, fmt.Errorf("expiry sweeper: not initialized")
	}
	clock := s.now
	if clock == nil {
		clock = time.Now
	}
	ids, errList := s.engine.ExpiredTenants(ctx, clock().UTC())
	if errList != nil {
		return 0, errList
	}
	processed := 0
	for _, id := range ids {
		if errCtx := ctx.Err(); errCtx != nil {
			return processed, errCtx
		}
		if _, errExpire := s.engine.ExpirePlan(ctx, id); errExpire != nil {
			log.WithError(errExpire).WithField("tenant_id", id).Warn("expiry sweeper: expire plan failed")
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Sweeper) interval(ctx context.Context) time.Duration {
	seconds := settings.Int(ctx, s.settings, settings.PlanExpirySweepSecondsKey, settings.DefaultPlanExpirySweepSeconds)
	interval := time.Duration(seconds) * time.Second
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	return interval
}
