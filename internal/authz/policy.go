// Package authz scopes queries to the rows an actor may see.
package authz

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

// ErrPermissionDenied is returned when the actor holds no permission for the resource.
var ErrPermissionDenied = errors.New("permission denied")

// Permission name prefixes.
const (
	ManageAnyPrefix = "manage-any-"
	ManageOwnPrefix = "manage-own-"
)

// Policy describes how a resource is owned.
type Policy struct {
	// Resource is the permission suffix, e.g. "orders" for manage-any-orders.
	Resource string
	// TenantColumn holds the tenant owner id.
	TenantColumn string
	// OwnerColumn holds the creating user id. Empty when rows have no individual owner.
	OwnerColumn string
}

// ManageAny returns the permission granting every row of the tenant.
func (p Policy) ManageAny() string { return ManageAnyPrefix + p.Resource }

// ManageOwn returns the permission granting rows created by the actor.
func (p Policy) ManageOwn() string { return ManageOwnPrefix + p.Resource }

// Scope returns a gorm scope restricting a query to the rows visible to actor.
func (p Policy) Scope(actor *models.User) (func(*gorm.DB) *gorm.DB, error) {
	if actor == nil {
		return nil, ErrPermissionDenied
	}
	if actor.IsSuperAdmin() {
		return func(db *gorm.DB) *gorm.DB { return db }, nil
	}

	tenantID := actor.TenantID()
	tenantScope := func(db *gorm.DB) *gorm.DB {
		return db.Where(columnName(p.TenantColumn)+" = ?", tenantID)
	}
	if actor.Type == models.UserTypeCompany {
		return tenantScope, nil
	}

	perms := Permissions(actor)
	if HasPermission(perms, p.ManageAny()) {
		return tenantScope, nil
	}
	if p.OwnerColumn != "" && HasPermission(perms, p.ManageOwn()) {
		actorID := actor.ID
		return func(db *gorm.DB) *gorm.DB {
			return tenantScope(db).Where(columnName(p.OwnerColumn)+" = ?", actorID)
		}, nil
	}
	return nil, ErrPermissionDenied
}

// Can reports whether actor holds permission. Superadmins and tenant owners hold every
// permission inside their scope.
func Can(actor *models.User, permission string) bool {
	if actor == nil {
		return false
	}
	if actor.IsSuperAdmin() || actor.Type == models.UserTypeCompany {
		return true
	}
	return HasPermission(Permissions(actor), permission)
}

// Permissions parses the actor's granted permission names.
func Permissions(user *models.User) []string {
	if user == nil {
		return []string{}
	}
	return ParsePermissions(user.Permissions)
}

// ParsePermissions parses and normalizes permissions from JSON.
func ParsePermissions(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return []string{}
	}
	return NormalizePermissions(perms)
}

// NormalizePermissions trims, de-duplicates, and sorts permissions.
func NormalizePermissions(perms []string) []string {
	if len(perms) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)
	return normalized
}

// MarshalPermissions serializes normalized permissions to JSON.
func MarshalPermissions(perms []string) ([]byte, error) {
	return json.Marshal(NormalizePermissions(perms))
}

// HasPermission checks whether the key exists in the permission list.
func HasPermission(perms []string, key string) bool {
	if key == "" {
		return false
	}
	for _, perm := range perms {
		if perm == key {
			return true
		}
	}
	return false
}

func columnName(column string) string {
	column = strings.TrimSpace(column)
	if column == "" {
		return "created_by"
	}
	return column
}
