package expiry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/workdesk-hq/platform/internal/assignment"
	"github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/settings"
)

type fakeExpirer struct {
	mu      sync.Mutex
	ids     []uint64
	failing map[uint64]bool
	expired []uint64
	calls   int
}

func (f *fakeExpirer) ExpiredTenants(context.Context, time.Time) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]uint64(nil), f.ids...), nil
}

func (f *fakeExpirer) ExpirePlan(_ context.Context, id uint64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[id] {
		return nil, errors.New("boom")
	}
	f.expired = append(f.expired, id)
	return &models.User{ID: id}, nil
}

func TestSweepOnce_ContinuesPastFailures(t *testing.T) {
	fake := &fakeExpirer{ids: []uint64{1, 2, 3}, failing: map[uint64]bool{2: true}}
	sweeper := NewSweeper(fake, nil)

	processed, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 processed, got %d", processed)
	}
	if len(fake.expired) != 2 || fake.expired[0] != 1 || fake.expired[1] != 3 {
		t.Fatalf("unexpected expired ids: %v", fake.expired)
	}
}

func TestSweepOnce_StopsOnCanceledContext(t *testing.T) {
	fake := &fakeExpirer{ids: []uint64{1, 2}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	processed, err := NewSweeper(fake, nil).SweepOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected nothing processed, got %d", processed)
	}
}

func TestInterval_ReadsSettingWithFloor(t *testing.T) {
	provider := settings.NewStaticProvider(map[string]any{settings.PlanExpirySweepSecondsKey: 120})
	sweeper := NewSweeper(&fakeExpirer{}, provider)
	if got := sweeper.interval(context.Background()); got != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", got)
	}
	provider.Set(settings.PlanExpirySweepSecondsKey, 1)
	if got := sweeper.interval(context.Background()); got != minSweepInterval {
		t.Fatalf("expected floor %s, got %s", minSweepInterval, got)
	}
	if got := NewSweeper(&fakeExpirer{}, nil).interval(context.Background()); got != time.Hour {
		t.Fatalf("expected default 1h, got %s", got)
	}
}

func TestStart_RunsInitialSweepAndStops(t *testing.T) {
	fake := &fakeExpirer{ids: []uint64{7}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewSweeper(fake, nil).Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fake.mu.Lock()
		done := len(fake.expired) == 1
		fake.mu.Unlock()
		if done {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("initial sweep did not run")
}

func TestSweepOnce_ClearsLapsedPlan(t *testing.T) {
	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "expiry.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	plan := models.Plan{Name: "Pro", NumberOfUsers: 5, StorageLimit: 1024}
	if errCreate := conn.Create(&plan).Error; errCreate != nil {
		t.Fatalf("create plan: %v", errCreate)
	}
	past := time.Now().UTC().AddDate(0, 0, -2)
	future := time.Now().UTC().AddDate(0, 1, 0)
	lapsed := models.User{Email: "lapsed@acme.test", Password: "x", Type: models.UserTypeCompany, ActivePlanID: &plan.ID, PlanExpireDate: &past, MaxUsers: 5}
	current := models.User{Email: "current@acme.test", Password: "x", Type: models.UserTypeCompany, ActivePlanID: &plan.ID, PlanExpireDate: &future, MaxUsers: 5}
	for _, user := range []*models.User{&lapsed, &current} {
		if errCreate := conn.Create(user).Error; errCreate != nil {
			t.Fatalf("create user: %v", errCreate)
		}
	}

	engine := assignment.NewEngine(conn, nil, nil, settings.NewStaticProvider(nil))
	processed, errSweep := NewSweeper(engine, nil).SweepOnce(context.Background())
	if errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}

	var reloaded models.User
	if errFind := conn.First(&reloaded, lapsed.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.ActivePlanID != nil || reloaded.MaxUsers != 0 {
		t.Fatalf("expected plan cleared, got plan=%v max_users=%d", reloaded.ActivePlanID, reloaded.MaxUsers)
	}
	if errFind := conn.First(&reloaded, current.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.ActivePlanID == nil {
		t.Fatalf("expected current plan kept")
	}
}
