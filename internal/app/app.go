// Package app wires configuration, storage, engines and HTTP routes into a running server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/assignment"
	"github.com/workdesk-hq/platform/internal/auth"
	"github.com/workdesk-hq/platform/internal/config"
	"github.com/workdesk-hq/platform/internal/coupon"
	"github.com/workdesk-hq/platform/internal/db"
	"github.com/workdesk-hq/platform/internal/entitlement"
	"github.com/workdesk-hq/platform/internal/expiry"
	"github.com/workdesk-hq/platform/internal/http/api/admin"
	"github.com/workdesk-hq/platform/internal/http/api/front"
	"github.com/workdesk-hq/platform/internal/modules"
	"github.com/workdesk-hq/platform/internal/pricing"
	"github.com/workdesk-hq/platform/internal/quota"
	"github.com/workdesk-hq/platform/internal/ratelimit"
	internalsettings "github.com/workdesk-hq/platform/internal/settings"
	"github.com/workdesk-hq/platform/internal/storage"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer boots the HTTP API and the plan expiry sweeper, and blocks until ctx is done.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	logDatabaseTarget(dsn)
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	superAdminCfg, err := config.LoadSuperAdminConfig(configPath)
	if err != nil {
		return err
	}
	if errAdmin := EnsureSuperAdmin(conn, superAdminCfg); errAdmin != nil {
		return errAdmin
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtConfig.Secret) == "" {
		return fmt.Errorf("jwt secret is not configured (set `jwt.secret` or %s)", config.EnvJWTSecret)
	}

	modulesCfg, err := config.LoadModulesConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.ModulesPath != "" {
		modulesCfg.Path = cfg.ModulesPath
	}
	storageCfg, err := config.LoadStorageConfig(configPath)
	if err != nil {
		return err
	}
	store, err := storage.New(ctx, storageCfg)
	if err != nil {
		return err
	}

	svc := newServices(conn, jwtConfig, modulesCfg, store)
	engine := buildRouter(conn, svc)
	expiry.NewSweeper(svc.assign, svc.provider).Start(ctx)

	port := config.LoadPort(configPath, defaultPort)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errServe := make(chan error, 1)
	go func() {
		log.Infof("starting platform server on %s with config=%s", srv.Addr, configPath)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errServe <- errListen
		}
		close(errServe)
	}()

	select {
	case errListen, ok := <-errServe:
		if ok {
			return errListen
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown server: %w", errShutdown)
	}
	log.Info("platform server stopped")
	return nil
}

// services holds the engines shared by the admin and front routes.
type services struct {
	provider     internalsettings.Provider
	calculator   *pricing.Calculator
	coupons      *coupon.Engine
	assign       *assignment.Engine
	entitlements *entitlement.Resolver
	guard        *quota.Guard
	limiter      *ratelimit.Limiter
	auth         *auth.Authenticator
	modules      *modules.Resolver
	store        storage.Store
}

func newServices(conn *gorm.DB, jwtConfig config.JWTConfig, modulesCfg config.ModulesConfig, store storage.Store) *services {
	provider := internalsettings.NewGormProvider(conn)
	calculator := pricing.NewCalculator(conn)
	coupons := coupon.NewEngine(conn)
	entitlements := entitlement.NewResolver(conn)
	return &services{
		provider:     provider,
		calculator:   calculator,
		coupons:      coupons,
		assign:       assignment.NewEngine(conn, calculator, coupons, provider),
		entitlements: entitlements,
		guard:        quota.NewGuard(conn, entitlements),
		limiter:      ratelimit.New(provider),
		auth:         auth.NewAuthenticator(conn, jwtConfig),
		modules:      modules.NewResolver(conn, modules.NewRegistry(modulesCfg.Path), modules.NewGooseInstaller(conn)),
		store:        store,
	}
}

// buildRouter registers every route on a new gin engine.
func buildRouter(conn *gorm.DB, svc *services) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	admin.RegisterAdminRoutes(engine, conn, admin.Deps{
		Auth:         svc.auth,
		Engine:       svc.assign,
		Entitlements: svc.entitlements,
		Modules:      svc.modules,
	})
	front.RegisterFrontRoutes(engine, conn, front.Deps{
		Auth:         svc.auth,
		Calculator:   svc.calculator,
		Coupons:      svc.coupons,
		Engine:       svc.assign,
		Entitlements: svc.entitlements,
		Guard:        svc.guard,
		Limiter:      svc.limiter,
		Store:        svc.store,
	})

	if local, ok := svc.store.(*storage.LocalStore); ok {
		engine.Static("/uploads", local.BaseDir())
	}
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}
