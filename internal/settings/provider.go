package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// Provider resolves platform and tenant scoped settings.
type Provider interface {
	// AdminValue returns the raw platform-scoped value for key.
	AdminValue(ctx context.Context, key string) (json.RawMessage, bool)
	// CompanyValue returns the raw value for key scoped to tenantID.
	CompanyValue(ctx context.Context, tenantID uint64, key string) (json.RawMessage, bool)
}

// GormProvider reads settings from the settings table.
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider constructs a database-backed settings provider.
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

// AdminValue implements Provider.
func (p *GormProvider) AdminValue(ctx context.Context, key string) (json.RawMessage, bool) {
	if p == nil || p.db == nil {
		return nil, false
	}
	var row models.Setting
	errFind := p.db.WithContext(ctx).
		Where("tenant_id IS NULL AND key = ?", key).
		Order("id DESC").
		Take(&row).Error
	if errFind != nil {
		return nil, false
	}
	return nonEmpty(row.Value)
}

// CompanyValue implements Provider. Tenants without an override inherit the platform value.
func (p *GormProvider) CompanyValue(ctx context.Context, tenantID uint64, key string) (json.RawMessage, bool) {
	if p == nil || p.db == nil {
		return nil, false
	}
	if tenantID != 0 {
		var row models.Setting
		errFind := p.db.WithContext(ctx).
			Where("tenant_id = ? AND key = ?", tenantID, key).
			Order("id DESC").
			Take(&row).Error
		if errFind == nil {
			if raw, ok := nonEmpty(row.Value); ok {
				return raw, true
			}
		} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, false
		}
	}
	return p.AdminValue(ctx, key)
}

// Put upserts a setting value. A nil tenantID writes the platform scope.
func (p *GormProvider) Put(ctx context.Context, tenantID *uint64, key string, value any) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return errMarshal
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Setting{}).Where("key = ?", key)
		if tenantID == nil {
			q = q.Where("tenant_id IS NULL")
		} else {
			q = q.Where("tenant_id = ?", *tenantID)
		}
		res := q.Update("value", json.RawMessage(payload))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&models.Setting{TenantID: tenantID, Key: key, Value: payload}).Error
	})
}

func nonEmpty(raw []byte) (json.RawMessage, bool) {
	trimmed := string(raw)
	if len(raw) == 0 || trimmed == "null" {
		return nil, false
	}
	return json.RawMessage(raw), true
}

// StaticProvider is an in-memory Provider.
type StaticProvider struct {
	mu      sync.RWMutex
	admin   map[string]json.RawMessage
	company map[uint64]map[string]json.RawMessage
}

// NewStaticProvider constructs a StaticProvider seeded with platform values.
func NewStaticProvider(values map[string]any) *StaticProvider {
	p := &StaticProvider{
		admin:   make(map[string]json.RawMessage),
		company: make(map[uint64]map[string]json.RawMessage),
	}
	for key, value := range values {
		p.Set(key, value)
	}
	return p
}

// Set stores a platform value.
func (p *StaticProvider) Set(key string, value any) {
	payload, _ := json.Marshal(value)
	p.mu.Lock()
	p.admin[key] = payload
	p.mu.Unlock()
}

// SetCompany stores a tenant value.
func (p *StaticProvider) SetCompany(tenantID uint64, key string, value any) {
	payload, _ := json.Marshal(value)
	p.mu.Lock()
	if p.company[tenantID] == nil {
		p.company[tenantID] = make(map[string]json.RawMessage)
	}
	p.company[tenantID][key] = payload
	p.mu.Unlock()
}

// AdminValue implements Provider.
func (p *StaticProvider) AdminValue(_ context.Context, key string) (json.RawMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	raw, ok := p.admin[key]
	return raw, ok
}

// CompanyValue implements Provider.
func (p *StaticProvider) CompanyValue(ctx context.Context, tenantID uint64, key string) (json.RawMessage, bool) {
	p.mu.RLock()
	raw, ok := p.company[tenantID][key]
	p.mu.RUnlock()
	if ok {
		return raw, true
	}
	return p.AdminValue(ctx, key)
}
