package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/config"
	"github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/security"
	internalsettings "github.com/workdesk-hq/platform/internal/settings"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InitRequest contains parameters for initial system setup.
type InitRequest struct {
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     int
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabasePath     string
	DatabaseSSLMode  string
	SiteName         string
	AdminEmail       string
	AdminPassword    string
}

// ErrAlreadyInitialized is returned when a config file already exists.
var ErrAlreadyInitialized = errors.New("config file already exists")

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "workdesk.db"

// minAdminPasswordLength is the shortest accepted operator password.
const minAdminPasswordLength = 6

// BuildDSN builds a database DSN from the init request.
func BuildDSN(req InitRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", "postgres":
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser,
			req.DatabasePassword,
			req.DatabaseHost,
			req.DatabasePort,
			req.DatabaseName,
			sslMode,
		), nil
	case "sqlite":
		path := strings.TrimSpace(req.DatabasePath)
		if path == "" {
			path = defaultSQLitePath
		}
		return buildSQLiteDSN(path), nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// buildSQLiteDSN constructs a SQLite DSN with default pragmas.
func buildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=synchronous(NORMAL)",
	}, "&")
}

// TestDatabaseConnection validates that the DSN can connect and ping.
func TestDatabaseConnection(dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	defer func() {
		if errClose := sqlDB.Close(); errClose != nil {
			log.Errorf("sql db close error: %v", errClose)
		}
	}()
	return sqlDB.Ping()
}

// validateInitRequest normalizes and validates init input data.
func validateInitRequest(req *InitRequest) error {
	dbType := strings.ToLower(strings.TrimSpace(req.DatabaseType))
	if dbType == "" {
		dbType = "sqlite"
	}
	req.DatabaseType = dbType

	switch dbType {
	case "postgres":
		if strings.TrimSpace(req.DatabaseHost) == "" {
			return fmt.Errorf("database host is required")
		}
		if req.DatabasePort <= 0 {
			return fmt.Errorf("invalid database port")
		}
		if strings.TrimSpace(req.DatabaseUser) == "" {
			return fmt.Errorf("database username is required")
		}
		if strings.TrimSpace(req.DatabaseName) == "" {
			return fmt.Errorf("database name is required")
		}
	case "sqlite":
		if strings.TrimSpace(req.DatabasePath) == "" {
			req.DatabasePath = defaultSQLitePath
		}
	default:
		return fmt.Errorf("unsupported database type")
	}
	req.AdminEmail = strings.ToLower(strings.TrimSpace(req.AdminEmail))
	if req.AdminEmail == "" {
		return fmt.Errorf("admin email is required")
	}
	if len(req.AdminPassword) < minAdminPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minAdminPasswordLength)
	}
	req.SiteName = strings.TrimSpace(req.SiteName)
	if req.SiteName == "" {
		req.SiteName = internalsettings.DefaultSiteName
	}
	return nil
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Port        int        `yaml:"port"`
	DatabaseDSN string     `yaml:"database-dsn"`
	JWT         jwtCfg     `yaml:"jwt"`
	Modules     modulesCfg `yaml:"modules"`
	Storage     storageCfg `yaml:"storage"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

type modulesCfg struct {
	Path string `yaml:"path"`
}

type storageCfg struct {
	Driver   string `yaml:"driver"`
	LocalDir string `yaml:"local-dir"`
}

// generateJWTSecret creates a random JWT secret string.
func generateJWTSecret() string {
	secret, err := security.GenerateRandomString(32)
	if err != nil {
		return "change-me-to-a-secure-random-string"
	}
	return secret
}

// WriteConfigFile writes the initial config file to disk.
func WriteConfigFile(configPath string, dsn string, port int) error {
	cfg := configFile{
		Port:        port,
		DatabaseDSN: dsn,
		JWT: jwtCfg{
			Secret: generateJWTSecret(),
			Expiry: "720h",
		},
		Modules: modulesCfg{Path: "./modules"},
		Storage: storageCfg{Driver: "local", LocalDir: "./uploads"},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// Initialize writes a config file, migrates the database and creates the first operator.
func Initialize(ctx context.Context, configPath string, req InitRequest, port int) error {
	if ConfigExists(configPath) {
		return ErrAlreadyInitialized
	}
	if errValidate := validateInitRequest(&req); errValidate != nil {
		return errValidate
	}
	dsn, errDSN := BuildDSN(req)
	if errDSN != nil {
		return errDSN
	}
	if errPing := TestDatabaseConnection(dsn); errPing != nil {
		return errPing
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return fmt.Errorf("open database: %w", errOpen)
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}
	if errAdmin := CreateSuperAdmin(conn.WithContext(ctx), req.AdminEmail, req.AdminPassword, req.SiteName); errAdmin != nil {
		return errAdmin
	}
	if errWrite := WriteConfigFile(configPath, dsn, port); errWrite != nil {
		return errWrite
	}
	log.WithFields(log.Fields{"config": configPath, "database": describeDSN(dsn)}).Info("platform initialized")
	return nil
}

// CreateSuperAdmin creates a platform operator and seeds the site name.
func CreateSuperAdmin(conn *gorm.DB, email, password, siteName string) error {
	if conn == nil {
		return fmt.Errorf("open database: nil connection")
	}

	hashedPassword, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}

	now := time.Now().UTC()
	admin := models.User{
		Name:      "Super Admin",
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Password:  hashedPassword,
		Type:      models.UserTypeSuperAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("create admin: %w", errCreate)
	}

	if strings.TrimSpace(siteName) != "" {
		if errSite := upsertSiteNameSetting(conn, siteName); errSite != nil {
			return errSite
		}
	}
	return nil
}

// EnsureSuperAdmin creates the configured operator when no operator exists yet.
func EnsureSuperAdmin(conn *gorm.DB, cfg config.SuperAdminConfig) error {
	initialized, errInit := HasSuperAdmin(conn)
	if errInit != nil {
		return errInit
	}
	if initialized {
		return nil
	}
	if cfg.Email == "" || cfg.Password == "" {
		log.Warn("no super admin exists; set superadmin.email and superadmin.password or run init")
		return nil
	}
	if errCreate := CreateSuperAdmin(conn, cfg.Email, cfg.Password, ""); errCreate != nil {
		return errCreate
	}
	log.WithField("email", cfg.Email).Info("super admin created")
	return nil
}

// upsertSiteNameSetting stores the platform SITE_NAME setting.
func upsertSiteNameSetting(conn *gorm.DB, siteName string) error {
	normalized := strings.TrimSpace(siteName)
	if normalized == "" {
		normalized = internalsettings.DefaultSiteName
	}
	payload, errMarshal := json.Marshal(normalized)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal SITE_NAME setting: %w", errMarshal)
	}
	value := datatypes.JSON(payload)

	now := time.Now().UTC()
	res := conn.Model(&models.Setting{}).
		Where("tenant_id IS NULL AND key = ?", internalsettings.SiteNameKey).
		Updates(map[string]any{
			"value":      value,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("db: update SITE_NAME setting: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	setting := models.Setting{
		Key:       internalsettings.SiteNameKey,
		Value:     value,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create SITE_NAME setting: %w", errCreate)
	}
	return nil
}
