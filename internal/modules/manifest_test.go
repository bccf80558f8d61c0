package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, root, key, manifest string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, key)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644))
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestParseManifest_TolerantFields(t *testing.T) {
	m, err := ParseManifest([]byte(`{
		"name": "Payroll",
		"alias": "Payroll Manager",
		"monthly_price": "12.50",
		"yearly_price": 120,
		"package_name": "workdesk/payroll",
		"for_admin": 0,
		"priority": 30,
		"parent_module": "Hrm, Account",
		"child_module": ["Timesheet", "Timesheet", " "]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Payroll", m.Key())
	assert.Equal(t, "Payroll Manager", m.DisplayName())
	assert.True(t, m.MonthlyPrice.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, m.YearlyPrice.Equal(decimal.NewFromInt(120)))
	assert.False(t, bool(m.ForAdmin))
	assert.Equal(t, []string{"Hrm", "Account"}, []string(m.Parents()))
	assert.Equal(t, []string{"Timesheet"}, []string(m.Children()))
}

func TestParseManifest_Rejects(t *testing.T) {
	_, err := ParseManifest(nil)
	assert.Error(t, err)

	_, err = ParseManifest([]byte(`{"name": "../etc"}`))
	assert.ErrorIs(t, err, ErrInvalidModuleKey)

	_, err = ParseManifest([]byte(`{"name": "Crm", "for_admin": "maybe"}`))
	assert.Error(t, err)
}

func TestRegistry_ListSortsAndSkipsIncomplete(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "Crm", `{"name":"Crm","priority":20}`, nil)
	writeModule(t, root, "Hrm", `{"name":"Hrm","priority":10,"for_admin":true}`, nil)
	writeModule(t, root, "Account", `{"name":"Account","priority":20}`, nil)
	writeModule(t, root, "Draft", "", nil)

	manifests, err := NewRegistry(root).List()
	require.NoError(t, err)
	keys := make([]string, 0, len(manifests))
	for _, m := range manifests {
		keys = append(keys, m.Name)
	}
	assert.Equal(t, []string{"Hrm", "Account", "Crm"}, keys)
	assert.True(t, bool(manifests[0].ForAdmin))
	assert.Equal(t, filepath.Join(root, "Hrm"), manifests[0].Dir)
}

func TestRegistry_LoadErrors(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "Crm", `{"name":"Sales"}`, nil)
	registry := NewRegistry(root)

	_, err := registry.Load("Missing")
	assert.ErrorIs(t, err, ErrManifestNotFound)

	_, err = registry.Load("Crm")
	assert.Error(t, err)

	_, err = registry.Load("a/b")
	assert.ErrorIs(t, err, ErrInvalidModuleKey)

	manifests, err := NewRegistry(filepath.Join(root, "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestVersionTable(t *testing.T) {
	assert.Equal(t, "goose_crm", VersionTable("Crm"))
	assert.Equal(t, "goose_landing_page", VersionTable("Landing-Page"))
}
