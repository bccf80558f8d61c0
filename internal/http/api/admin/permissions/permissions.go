package permissions

import (
	"fmt"
	"strings"

	"github.com/workdesk-hq/platform/internal/authz"
)

// Definition describes a permission a tenant owner can grant to staff.
type Definition struct {
	Key      string `json:"key"`
	Resource string `json:"resource"`
	Scope    string `json:"scope"`
	Label    string `json:"label"`
	Module   string `json:"module"`
}

// Tenant resource policies. Column names refer to the table of each resource.
var (
	OrderPolicy        = authz.Policy{Resource: "orders", TenantColumn: "created_by"}
	UserPolicy         = authz.Policy{Resource: "users", TenantColumn: "created_by", OwnerColumn: "id"}
	MediaPolicy        = authz.Policy{Resource: "media", TenantColumn: "created_by", OwnerColumn: "user_id"}
	BankTransferPolicy = authz.Policy{Resource: "bank-transfers", TenantColumn: "user_id"}
)

// Plain permissions that are not row scoped.
const (
	PurchasePlan    = "purchase-plan"
	ApplyCoupon     = "apply-coupon"
	ViewEntitlement = "view-entitlement"
)

// ValidatePermissions validates that all permissions exist in the definition set.
func ValidatePermissions(perms []string) error {
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := definitionMap[trimmed]; !ok {
			return fmt.Errorf("invalid permission: %s", trimmed)
		}
	}
	return nil
}

// Definitions returns a copy of all permission definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap returns a copy of the permission definition map.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitionMap))
	for key, value := range definitionMap {
		out[key] = value
	}
	return out
}

func anyDefinition(p authz.Policy, label, module string) Definition {
	return Definition{Key: p.ManageAny(), Resource: p.Resource, Scope: "any", Label: label, Module: module}
}

func ownDefinition(p authz.Policy, label, module string) Definition {
	return Definition{Key: p.ManageOwn(), Resource: p.Resource, Scope: "own", Label: label, Module: module}
}

func plainDefinition(key, label, module string) Definition {
	return Definition{Key: key, Label: label, Module: module}
}

// definitions is the ordered list of permission definitions.
var definitions = []Definition{
	anyDefinition(OrderPolicy, "Manage All Orders", "Billing"),
	anyDefinition(BankTransferPolicy, "Manage Bank Transfers", "Billing"),
	plainDefinition(PurchasePlan, "Purchase Plans", "Billing"),
	plainDefinition(ApplyCoupon, "Apply Coupons", "Billing"),

	anyDefinition(UserPolicy, "Manage All Users", "Users"),
	ownDefinition(UserPolicy, "Manage Own Profile", "Users"),

	anyDefinition(MediaPolicy, "Manage All Media", "Media"),
	ownDefinition(MediaPolicy, "Manage Own Media", "Media"),

	plainDefinition(ViewEntitlement, "View Plan Entitlement", "Plan"),
}

// definitionMap indexes permission definitions by key.
var definitionMap = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}()
