package authz

import (
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ordersPolicy = Policy{Resource: "orders", TenantColumn: "created_by"}

var mediaPolicy = Policy{Resource: "media", TenantColumn: "created_by", OwnerColumn: "user_id"}

func openAuthzDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "authz.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, email string, typ models.UserType, createdBy uint64, perms ...string) *models.User {
	t.Helper()
	raw, errMarshal := MarshalPermissions(perms)
	if errMarshal != nil {
		t.Fatalf("marshal permissions: %v", errMarshal)
	}
	user := models.User{Email: email, Password: "x", Type: typ, CreatedBy: createdBy, Permissions: datatypes.JSON(raw)}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func createMedia(t *testing.T, conn *gorm.DB, name string, userID, tenantID uint64) {
	t.Helper()
	media := models.Media{Name: name, Path: name, URL: "/" + name, Size: 1, UserID: userID, CreatedBy: tenantID}
	if errCreate := conn.Create(&media).Error; errCreate != nil {
		t.Fatalf("create media: %v", errCreate)
	}
}

func visibleMedia(t *testing.T, conn *gorm.DB, actor *models.User) ([]string, error) {
	t.Helper()
	scope, err := mediaPolicy.Scope(actor)
	if err != nil {
		return nil, err
	}
	var names []string
	if errFind := conn.Model(&models.Media{}).Scopes(scope).Pluck("name", &names).Error; errFind != nil {
		t.Fatalf("list media: %v", errFind)
	}
	sort.Strings(names)
	return names, nil
}

func TestScope_Media(t *testing.T) {
	conn := openAuthzDB(t)
	acme := createUser(t, conn, "owner@acme.test", models.UserTypeCompany, 0)
	globex := createUser(t, conn, "owner@globex.test", models.UserTypeCompany, 0)
	manager := createUser(t, conn, "manager@acme.test", models.UserTypeStaff, acme.ID, "manage-any-media")
	clerk := createUser(t, conn, "clerk@acme.test", models.UserTypeStaff, acme.ID, "manage-own-media")
	guest := createUser(t, conn, "guest@acme.test", models.UserTypeStaff, acme.ID)
	root := createUser(t, conn, "root@platform.test", models.UserTypeSuperAdmin, 0)

	createMedia(t, conn, "acme-owner.png", acme.ID, acme.ID)
	createMedia(t, conn, "acme-clerk.png", clerk.ID, acme.ID)
	createMedia(t, conn, "globex.png", globex.ID, globex.ID)

	cases := []struct {
		actor *models.User
		want  string
	}{
		{actor: acme, want: "[acme-clerk.png acme-owner.png]"},
		{actor: manager, want: "[acme-clerk.png acme-owner.png]"},
		{actor: clerk, want: "[acme-clerk.png]"},
		{actor: globex, want: "[globex.png]"},
		{actor: root, want: "[acme-clerk.png acme-owner.png globex.png]"},
	}
	for _, tc := range cases {
		got, err := visibleMedia(t, conn, tc.actor)
		if err != nil {
			t.Fatalf("%s: scope: %v", tc.actor.Email, err)
		}
		if fmt.Sprint(got) != tc.want {
			t.Fatalf("%s: expected %s, got %v", tc.actor.Email, tc.want, got)
		}
	}

	if _, err := visibleMedia(t, conn, guest); err != ErrPermissionDenied {
		t.Fatalf("expected permission denied for guest, got %v", err)
	}
	if _, err := mediaPolicy.Scope(nil); err != ErrPermissionDenied {
		t.Fatalf("expected permission denied for nil actor, got %v", err)
	}
}

func TestScope_OwnPermissionNeedsOwnerColumn(t *testing.T) {
	clerk := &models.User{ID: 9, Type: models.UserTypeStaff, CreatedBy: 1, Permissions: datatypes.JSON(`["manage-own-orders"]`)}
	if _, err := ordersPolicy.Scope(clerk); err != ErrPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestCan(t *testing.T) {
	staff := &models.User{Type: models.UserTypeStaff, CreatedBy: 1, Permissions: datatypes.JSON(`[" create-users ", "create-users"]`)}
	if !Can(staff, "create-users") {
		t.Fatalf("expected staff to hold create-users")
	}
	if Can(staff, "delete-users") {
		t.Fatalf("unexpected delete-users")
	}
	if !Can(&models.User{Type: models.UserTypeCompany}, "delete-users") {
		t.Fatalf("tenant owner should hold every permission")
	}
	if Can(nil, "create-users") {
		t.Fatalf("nil actor should hold nothing")
	}
}

func TestParsePermissions_Invalid(t *testing.T) {
	if got := ParsePermissions([]byte(`{"bad":true}`)); len(got) != 0 {
		t.Fatalf("expected empty permissions, got %v", got)
	}
}
