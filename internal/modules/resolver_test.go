package modules

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/models"
	"gorm.io/gorm"
)

type recordingInstaller struct {
	calls []string
	seeds []string
	fail  error
}

func (r *recordingInstaller) Install(_ context.Context, m *Manifest, seed bool) error {
	if r.fail != nil {
		return r.fail
	}
	r.calls = append(r.calls, m.Name)
	if seed {
		r.seeds = append(r.seeds, m.Name)
	}
	return nil
}

func openModulesDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "modules.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func hrPayrollTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeModule(t, root, "Hrm", `{"name":"Hrm","alias":"HRM","monthly_price":10,"yearly_price":100,"priority":1,"child_module":["Payroll"]}`, nil)
	writeModule(t, root, "Payroll", `{"name":"Payroll","monthly_price":5,"priority":2,"parent_module":["Hrm"],"child_module":["Timesheet"]}`, nil)
	writeModule(t, root, "Timesheet", `{"name":"Timesheet","priority":3,"parent_module":["Payroll"]}`, nil)
	writeModule(t, root, "Crm", `{"name":"Crm","priority":4}`, nil)
	return root
}

func enabledModules(t *testing.T, conn *gorm.DB) []string {
	t.Helper()
	var keys []string
	require.NoError(t, conn.Model(&models.AddOn{}).Where("is_enable = ?", true).Order("module ASC").Pluck("module", &keys).Error)
	return keys
}

func TestEnable_RequiresActiveParent(t *testing.T) {
	conn := openModulesDB(t)
	installer := &recordingInstaller{}
	resolver := NewResolver(conn, NewRegistry(hrPayrollTree(t)), installer)
	ctx := context.Background()

	_, err := resolver.Enable(ctx, "Payroll")
	var depErr *DependencyError
	require.True(t, errors.As(err, &depErr), "got %v", err)
	assert.Equal(t, "Hrm", depErr.Parent)
	assert.Equal(t, "Payroll", depErr.Module)
	assert.Contains(t, depErr.Error(), "Hrm")
	assert.Empty(t, installer.calls)

	addOn, err := resolver.Enable(ctx, "Hrm")
	require.NoError(t, err)
	assert.Equal(t, "HRM", addOn.Name)
	assert.True(t, addOn.IsEnable)

	_, err = resolver.Enable(ctx, "Payroll")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hrm", "Payroll"}, enabledModules(t, conn))
}

func TestEnable_IsIdempotentAndSeedsOnce(t *testing.T) {
	conn := openModulesDB(t)
	installer := &recordingInstaller{}
	resolver := NewResolver(conn, NewRegistry(hrPayrollTree(t)), installer)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := resolver.Enable(ctx, "Crm")
		require.NoError(t, err)
	}
	var count int64
	require.NoError(t, conn.Model(&models.AddOn{}).Where("module = ?", "Crm").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []string{"Crm", "Crm", "Crm"}, installer.calls)
	assert.Equal(t, []string{"Crm"}, installer.seeds)
}

func TestEnable_KeepsEditedPrices(t *testing.T) {
	conn := openModulesDB(t)
	resolver := NewResolver(conn, NewRegistry(hrPayrollTree(t)), &recordingInstaller{})
	ctx := context.Background()

	addOn, err := resolver.Enable(ctx, "Hrm")
	require.NoError(t, err)
	require.NoError(t, conn.Model(addOn).Update("monthly_price", 42).Error)
	_, err = resolver.Disable(ctx, "Hrm")
	require.NoError(t, err)

	again, err := resolver.Enable(ctx, "Hrm")
	require.NoError(t, err)
	assert.Equal(t, "42", again.MonthlyPrice.String())
}

func TestEnable_InstallFailureLeavesModuleDisabled(t *testing.T) {
	conn := openModulesDB(t)
	resolver := NewResolver(conn, NewRegistry(hrPayrollTree(t)), &recordingInstaller{fail: errors.New("boom")})

	_, err := resolver.Enable(context.Background(), "Crm")
	require.Error(t, err)
	assert.Empty(t, enabledModules(t, conn))
}

func TestDisable_CascadesChildrenFirst(t *testing.T) {
	conn := openModulesDB(t)
	resolver := NewResolver(conn, NewRegistry(hrPayrollTree(t)), &recordingInstaller{})
	ctx := context.Background()

	for _, key := range []string{"Hrm", "Payroll", "Timesheet", "Crm"} {
		_, err := resolver.Enable(ctx, key)
		require.NoError(t, err, key)
	}

	order, err := resolver.Disable(ctx, "Hrm")
	require.NoError(t, err)
	assert.Equal(t, []string{"Timesheet", "Payroll", "Hrm"}, order)
	assert.Equal(t, []string{"Crm"}, enabledModules(t, conn))

	_, err = resolver.Disable(ctx, "Timesheet")
	require.NoError(t, err)
}

func TestDisable_UnknownOrUninstalled(t *testing.T) {
	conn := openModulesDB(t)
	resolver := NewResolver(conn, NewRegistry(hrPayrollTree(t)), &recordingInstaller{})

	_, err := resolver.Disable(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrManifestNotFound)

	_, err = resolver.Disable(context.Background(), "Crm")
	assert.ErrorIs(t, err, ErrModuleNotInstalled)
}

func TestCycleTerminates(t *testing.T) {
	conn := openModulesDB(t)
	root := t.TempDir()
	writeModule(t, root, "Alpha", `{"name":"Alpha","parent_module":["Beta"],"child_module":["Beta"]}`, nil)
	writeModule(t, root, "Beta", `{"name":"Beta","parent_module":["Alpha"],"child_module":["Alpha"]}`, nil)
	resolver := NewResolver(conn, NewRegistry(root), &recordingInstaller{})
	ctx := context.Background()

	_, err := resolver.Enable(ctx, "Alpha")
	var depErr *DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "Beta", depErr.Parent)

	require.NoError(t, conn.Create(&models.AddOn{Module: "Alpha", Name: "Alpha", IsEnable: true}).Error)
	require.NoError(t, conn.Create(&models.AddOn{Module: "Beta", Name: "Beta", IsEnable: true}).Error)
	order, err := resolver.Disable(ctx, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta", "Alpha"}, order)
}

func TestList_JoinsAddOnState(t *testing.T) {
	conn := openModulesDB(t)
	resolver := NewResolver(conn, NewRegistry(hrPayrollTree(t)), &recordingInstaller{})
	_, err := resolver.Enable(context.Background(), "Crm")
	require.NoError(t, err)

	statuses, err := resolver.List(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 4)
	for _, status := range statuses {
		if status.Manifest.Name == "Crm" {
			assert.True(t, status.Installed)
			assert.True(t, status.Enabled)
			continue
		}
		assert.False(t, status.Installed, status.Manifest.Name)
	}
}

func TestGooseInstaller_RunsMigrationsAndSeed(t *testing.T) {
	conn := openModulesDB(t)
	root := t.TempDir()
	writeModule(t, root, "Crm", `{"name":"Crm"}`, map[string]string{
		"migrations/00001_create_leads.sql": "-- +goose Up\nCREATE TABLE crm_leads (id INTEGER PRIMARY KEY, title TEXT NOT NULL);\n\n-- +goose Down\nDROP TABLE crm_leads;\n",
		"seed.sql":                          "INSERT INTO crm_leads (title) VALUES ('Welcome lead');",
	})
	resolver := NewResolver(conn, NewRegistry(root), nil)
	ctx := context.Background()

	_, err := resolver.Enable(ctx, "Crm")
	require.NoError(t, err)
	_, err = resolver.Disable(ctx, "Crm")
	require.NoError(t, err)
	_, err = resolver.Enable(ctx, "Crm")
	require.NoError(t, err)

	var leads int64
	require.NoError(t, conn.Table("crm_leads").Count(&leads).Error)
	assert.Equal(t, int64(1), leads)
	assert.True(t, conn.Migrator().HasTable(VersionTable("Crm")))
}
