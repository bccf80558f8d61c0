package settings

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+filepath.Join(t.TempDir(), "settings.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestGormProvider_CompanyFallsBackToPlatform(t *testing.T) {
	ctx := context.Background()
	provider := NewGormProvider(openTestDB(t))

	if errPut := provider.Put(ctx, nil, CurrencyKey, "EUR"); errPut != nil {
		t.Fatalf("put platform: %v", errPut)
	}
	if got := CompanyString(ctx, provider, 7, CurrencyKey, DefaultCurrency); got != "EUR" {
		t.Fatalf("expected inherited EUR, got %q", got)
	}

	tenantID := uint64(7)
	if errPut := provider.Put(ctx, &tenantID, CurrencyKey, "GBP"); errPut != nil {
		t.Fatalf("put tenant: %v", errPut)
	}
	if got := CompanyString(ctx, provider, 7, CurrencyKey, DefaultCurrency); got != "GBP" {
		t.Fatalf("expected tenant override GBP, got %q", got)
	}
	if got := String(ctx, provider, CurrencyKey, DefaultCurrency); got != "EUR" {
		t.Fatalf("expected platform EUR, got %q", got)
	}
}

func TestGormProvider_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	provider := NewGormProvider(conn)

	if errPut := provider.Put(ctx, nil, CouponRateLimitKey, 3); errPut != nil {
		t.Fatalf("put: %v", errPut)
	}
	if errPut := provider.Put(ctx, nil, CouponRateLimitKey, 9); errPut != nil {
		t.Fatalf("put again: %v", errPut)
	}
	var count int64
	if errCount := conn.Model(&models.Setting{}).Where("key = ?", CouponRateLimitKey).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
	if got := Int(ctx, provider, CouponRateLimitKey, 0); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

func TestParseHelpers(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
		ok   bool
	}{
		{`true`, true, true},
		{`"on"`, true, true},
		{`0`, false, true},
		{`"maybe"`, false, false},
	}
	for _, tc := range cases {
		got, ok := ParseBool(json.RawMessage(tc.raw))
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseBool(%s) = %v,%v want %v,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
	if n, ok := ParseNonNegativeInt(json.RawMessage(`"12"`)); !ok || n != 12 {
		t.Fatalf("expected 12, got %d ok=%v", n, ok)
	}
	if _, ok := ParseNonNegativeInt(json.RawMessage(`-1`)); ok {
		t.Fatalf("expected negative to be rejected")
	}
}
