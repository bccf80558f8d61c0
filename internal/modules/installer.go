package modules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	migrationsDir = "migrations"
	seedFile      = "seed.sql"
)

// Installer prepares the schema and data a module needs before it is enabled.
type Installer interface {
	// Install applies pending migrations. seed is true on the first install only.
	Install(ctx context.Context, m *Manifest, seed bool) error
}

// GooseInstaller runs <module>/migrations with goose and executes <module>/seed.sql.
type GooseInstaller struct {
	db *gorm.DB
}

// NewGooseInstaller constructs a GooseInstaller.
func NewGooseInstaller(db *gorm.DB) *GooseInstaller {
	return &GooseInstaller{db: db}
}

// goose keeps its dialect, table name and logger in package state.
var gooseMu sync.Mutex

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// VersionTable returns the goose version table used for a module.
func VersionTable(key string) string {
	return "goose_" + strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(key), "_"), "_")
}

// Install implements Installer.
func (i *GooseInstaller) Install(ctx context.Context, m *Manifest, seed bool) error {
	if i == nil || i.db == nil {
		return fmt.Errorf("modules: install: nil db")
	}
	if m == nil {
		return fmt.Errorf("modules: install: nil manifest")
	}

	dir := filepath.Join(m.Dir, migrationsDir)
	if info, errStat := os.Stat(dir); errStat == nil && info.IsDir() {
		if errMigrate := i.migrate(ctx, m.Name, dir); errMigrate != nil {
			return errMigrate
		}
	} else if errStat != nil && !errors.Is(errStat, os.ErrNotExist) {
		return fmt.Errorf("modules: %s: stat migrations: %w", m.Name, errStat)
	}

	if !seed {
		return nil
	}
	data, errRead := os.ReadFile(filepath.Join(m.Dir, seedFile))
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("modules: %s: read seed: %w", m.Name, errRead)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	if errExec := i.db.WithContext(ctx).Exec(string(data)).Error; errExec != nil {
		return fmt.Errorf("modules: %s: seed: %w", m.Name, errExec)
	}
	log.WithField("module", m.Name).Info("module seed data applied")
	return nil
}

func (i *GooseInstaller) migrate(ctx context.Context, key, dir string) error {
	sqlDB, errDB := i.db.DB()
	if errDB != nil {
		return fmt.Errorf("modules: %s: sql db: %w", key, errDB)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(gooseLogger{entry: log.WithField("module", key)})
	goose.SetTableName(VersionTable(key))
	if errDialect := goose.SetDialect(gooseDialect(i.db)); errDialect != nil {
		return fmt.Errorf("modules: %s: goose dialect: %w", key, errDialect)
	}
	if errUp := goose.UpContext(ctx, sqlDB, dir); errUp != nil {
		return fmt.Errorf("modules: %s: migrate: %w", key, errUp)
	}
	return nil
}

func gooseDialect(db *gorm.DB) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return "sqlite3"
	}
	return "postgres"
}

// gooseLogger routes goose output through logrus. Fatalf must not exit the process.
type gooseLogger struct {
	entry *log.Entry
}

func (l gooseLogger) Fatalf(format string, v ...any) { l.entry.Errorf(format, v...) }

func (l gooseLogger) Printf(format string, v ...any) {
	l.entry.Debugf(strings.TrimSuffix(format, "\n"), v...)
}
