package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteBusyTimeoutPragma = "_pragma=busy_timeout(5000)"

// newLogger routes gorm warnings through logrus. Missing rows are an expected lookup outcome.
func newLogger() logger.Interface {
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Open connects to SQLite for `file:` DSNs and to PostgreSQL otherwise.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}
	cfg := &gorm.Config{Logger: newLogger()}

	if strings.HasPrefix(strings.ToLower(trimmed), "file:") {
		conn, errOpen := gorm.Open(sqlite.Open(withSQLitePragmas(trimmed)), cfg)
		if errOpen != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", errOpen)
		}
		return conn, nil
	}

	if _, errParse := pgx.ParseConfig(trimmed); errParse != nil {
		return nil, fmt.Errorf("db: parse postgres dsn: %w", errParse)
	}
	conn, errOpen := gorm.Open(postgres.Open(trimmed), cfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open postgres: %w", errOpen)
	}
	return conn, nil
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteBusyTimeoutPragma
	}
	return dsn + "?" + sqliteBusyTimeoutPragma
}
