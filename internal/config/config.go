package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvModulesPath  = "MODULES_PATH"
	EnvDotEnvFile   = "DOTENV_FILE"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath  string `env:"CONFIG_PATH"`
	DotEnvFile  string `env:"DOTENV_FILE" envDefault:".env"`
	ModulesPath string `env:"MODULES_PATH"`
}

// LoadFromEnv loads app config from environment variables, reading an optional .env file first.
func LoadFromEnv() (AppConfig, error) {
	dotEnv := strings.TrimSpace(os.Getenv(EnvDotEnvFile))
	if dotEnv == "" {
		dotEnv = ".env"
	}
	if errDotEnv := godotenv.Load(dotEnv); errDotEnv != nil && !errors.Is(errDotEnv, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load %s: %w", dotEnv, errDotEnv)
	}

	var cfg AppConfig
	if errParse := env.Parse(&cfg); errParse != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", errParse)
	}
	cfg.ConfigPath = ResolveConfigPath(cfg.ConfigPath)
	return cfg, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// ModulesConfig locates installable module manifests.
type ModulesConfig struct {
	Path string `yaml:"path"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access-key"`
	SecretKey string `yaml:"secret-key"`
	PublicURL string `yaml:"public-url"`
}

// StorageConfig selects where uploaded media is written.
type StorageConfig struct {
	Driver    string   `yaml:"driver"`
	LocalDir  string   `yaml:"local-dir"`
	PublicURL string   `yaml:"public-url"`
	S3        S3Config `yaml:"s3"`
}

// SuperAdminConfig seeds the platform operator account on first boot.
type SuperAdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// fileConfig maps the full YAML document.
type fileConfig struct {
	Port        int    `yaml:"port"`
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Modules    ModulesConfig    `yaml:"modules"`
	Storage    StorageConfig    `yaml:"storage"`
	SuperAdmin SuperAdminConfig `yaml:"superadmin"`
}

// readFileConfig parses the YAML config file. A missing file yields an empty config.
func readFileConfig(configPath string) (fileConfig, error) {
	var cfg fileConfig
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return cfg, nil
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	cfg, err := readFileConfig(configPath)
	if err != nil {
		return "", err
	}
	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	result := JWTConfig{Expiry: defaultJWTExpiry}

	if cfg, errRead := readFileConfig(configPath); errRead == nil {
		result = cfg.JWT
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// LoadModulesConfig resolves the module manifest directory.
func LoadModulesConfig(configPath string) (ModulesConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return ModulesConfig{}, err
	}
	result := cfg.Modules
	if p := strings.TrimSpace(os.Getenv(EnvModulesPath)); p != "" {
		result.Path = p
	}
	if strings.TrimSpace(result.Path) == "" {
		result.Path = "./modules"
	}
	if abs, errAbs := filepath.Abs(result.Path); errAbs == nil {
		result.Path = abs
	}
	return result, nil
}

// LoadStorageConfig loads the media storage backend settings.
func LoadStorageConfig(configPath string) (StorageConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return StorageConfig{}, err
	}
	result := cfg.Storage
	result.Driver = strings.ToLower(strings.TrimSpace(result.Driver))
	if result.Driver == "" {
		result.Driver = "local"
	}
	if result.Driver == "local" && strings.TrimSpace(result.LocalDir) == "" {
		result.LocalDir = "./uploads"
	}
	if result.Driver == "s3" && strings.TrimSpace(result.S3.Bucket) == "" {
		return StorageConfig{}, errors.New("storage: s3 driver requires `storage.s3.bucket`")
	}
	return result, nil
}

// LoadSuperAdminConfig loads the bootstrap platform operator credentials.
func LoadSuperAdminConfig(configPath string) (SuperAdminConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return SuperAdminConfig{}, err
	}
	result := cfg.SuperAdmin
	result.Email = strings.TrimSpace(result.Email)
	return result, nil
}

// LoadPort returns the configured HTTP port, or fallback when unset.
func LoadPort(configPath string, fallback int) int {
	cfg, err := readFileConfig(configPath)
	if err != nil || cfg.Port <= 0 {
		return fallback
	}
	return cfg.Port
}
