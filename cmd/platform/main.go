package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/app"
	"github.com/workdesk-hq/platform/internal/config"
)

const defaultPort = 8318

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := run(ctx, os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run dispatches the init and migrate subcommands; anything else starts the server.
func run(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "init":
			return runInit(ctx, args[1:])
		case "migrate":
			return runMigrate(ctx, args[1:])
		}
	}
	return runServe(ctx, args)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", defaultPort, "server port when the config file does not set one")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}
	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	if !app.ConfigExists(appCfg.ConfigPath) && strings.TrimSpace(os.Getenv(config.EnvDBConnection)) == "" {
		return fmt.Errorf("config file %s not found, run `platform init` first", appCfg.ConfigPath)
	}
	return app.RunServer(ctx, appCfg, *port)
}

func runMigrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", defaultPort, "server port written to the config file")
	var req app.InitRequest
	fs.StringVar(&req.DatabaseType, "db-type", "sqlite", "database type: sqlite or postgres")
	fs.StringVar(&req.DatabaseHost, "db-host", "localhost", "postgres host")
	fs.IntVar(&req.DatabasePort, "db-port", 5432, "postgres port")
	fs.StringVar(&req.DatabaseUser, "db-user", "", "postgres user")
	fs.StringVar(&req.DatabasePassword, "db-password", "", "postgres password")
	fs.StringVar(&req.DatabaseName, "db-name", "", "postgres database name")
	fs.StringVar(&req.DatabasePath, "db-path", "", "sqlite database file")
	fs.StringVar(&req.DatabaseSSLMode, "db-sslmode", "disable", "postgres sslmode")
	fs.StringVar(&req.SiteName, "site-name", "", "site name shown to tenants")
	fs.StringVar(&req.AdminEmail, "admin-email", "", "platform operator email")
	fs.StringVar(&req.AdminPassword, "admin-password", "", "platform operator password")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}
	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	errInit := app.Initialize(ctx, appCfg.ConfigPath, req, *port)
	if errors.Is(errInit, app.ErrAlreadyInitialized) {
		log.Warnf("config file %s already exists, nothing to do", appCfg.ConfigPath)
		return nil
	}
	return errInit
}

func loadAppConfig(cfgPath string) (config.AppConfig, error) {
	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return config.AppConfig{}, err
	}
	if strings.TrimSpace(cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(cfgPath)
	}
	appCfg.ConfigPath = config.ResolveConfigPath(appCfg.ConfigPath)
	return appCfg, nil
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
