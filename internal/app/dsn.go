package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// databaseTarget is a DSN stripped of credentials, safe to log.
type databaseTarget struct {
	Type        string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

func parseDatabaseTarget(dsn string) (databaseTarget, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return databaseTarget{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") {
		pathPart := trimmed[len("file:"):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return databaseTarget{Type: "sqlite", Path: strings.TrimSpace(pathPart)}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return databaseTarget{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return databaseTarget{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}

		username := ""
		passwordSet := false
		if u.User != nil {
			username = strings.TrimSpace(u.User.Username())
			_, passwordSet = u.User.Password()
		}

		sslMode := strings.TrimSpace(u.Query().Get("sslmode"))
		if sslMode == "" {
			sslMode = "disable"
		}

		return databaseTarget{
			Type:        "postgres",
			Host:        strings.TrimSpace(u.Hostname()),
			Port:        port,
			User:        username,
			Name:        strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
			SSLMode:     sslMode,
			PasswordSet: passwordSet,
		}, nil
	default:
		return databaseTarget{}, fmt.Errorf("unsupported dsn scheme")
	}
}

// describeDSN renders the database target for logs without credentials.
func describeDSN(dsn string) string {
	target, err := parseDatabaseTarget(dsn)
	if err != nil {
		return "unknown"
	}
	if target.Type == "sqlite" {
		return "sqlite:" + target.Path
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", target.User, target.Host, target.Port, target.Name)
}

func logDatabaseTarget(dsn string) {
	target, err := parseDatabaseTarget(dsn)
	if err != nil {
		log.WithError(err).Warn("database dsn not recognized")
		return
	}
	log.WithFields(log.Fields{
		"type":         target.Type,
		"host":         target.Host,
		"name":         target.Name,
		"path":         target.Path,
		"password_set": target.PasswordSet,
	}).Info("database configured")
}
