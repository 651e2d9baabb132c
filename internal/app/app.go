// Package app boots the HTTP server and its background workers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/authcode"
	"github.com/lumagen/lumagen/internal/config"
	"github.com/lumagen/lumagen/internal/credit"
	"github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/gallery"
	"github.com/lumagen/lumagen/internal/generation"
	"github.com/lumagen/lumagen/internal/history"
	adminapi "github.com/lumagen/lumagen/internal/http/api/admin"
	"github.com/lumagen/lumagen/internal/http/api/front"
	"github.com/lumagen/lumagen/internal/logging"
	"github.com/lumagen/lumagen/internal/modelcatalog"
	"github.com/lumagen/lumagen/internal/models"
	"github.com/lumagen/lumagen/internal/ratelimit"
	"github.com/lumagen/lumagen/internal/security"
	"github.com/lumagen/lumagen/internal/settings"
	"github.com/lumagen/lumagen/internal/storage"
)

const (
	shutdownTimeout         = 10 * time.Second
	settingsRefreshInterval = time.Minute
	defaultAdminUsername    = "admin"
)

// RunServer boots the generation platform server and blocks until the
// context is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	logCfg, errLog := config.LoadLogConfig(configPath)
	if errLog != nil {
		return errLog
	}
	logging.Setup(logCfg)

	dbCfg, errDB := config.LoadDatabaseConfig(configPath)
	if errDB != nil {
		return errDB
	}
	conn, errOpen := db.OpenWithPool(dbCfg.DSN, db.Pool{
		MaxOpen:     dbCfg.MaxOpenConns,
		MaxIdle:     dbCfg.MaxIdleConns,
		MaxLifetime: dbCfg.ConnMaxLifetime,
	})
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := modelcatalog.Seed(ctx, conn); errSeed != nil {
		return errSeed
	}
	if errSeed := gallery.Seed(ctx, conn); errSeed != nil {
		return errSeed
	}
	if errAdmin := ensureDefaultAdmin(conn); errAdmin != nil {
		return errAdmin
	}

	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}
	go refreshSettingsLoop(ctx, conn)

	jwtCfg, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}
	providerCfg, errProvider := config.LoadProviderConfig(configPath)
	if errProvider != nil {
		return errProvider
	}
	storageCfg, errStorage := config.LoadStorageConfig(configPath)
	if errStorage != nil {
		return errStorage
	}
	redisCfg, errRedis := config.LoadRedisConfig(configPath)
	if errRedis != nil {
		return errRedis
	}

	store, errStore := storage.NewLocalStore(storageCfg.UploadDir, storageCfg.OutputDir)
	if errStore != nil {
		return errStore
	}

	limiter := ratelimit.NewManager(ratelimit.NewSettingsProvider(redisCfg), nil, nil)
	history.NewRetentionCleaner(conn).Start(ctx)

	engine := newEngine()
	front.RegisterFrontRoutes(engine, front.Dependencies{
		DB:       conn,
		Registry: authcode.NewRegistry(conn),
		Catalog:  modelcatalog.NewCatalog(conn),
		Ledger:   credit.NewLedger(conn),
		Invoker:  generation.NewClient(providerCfg),
		Store:    store,
		Recorder: history.NewRecorder(conn),
		Limiter:  limiter,
	})
	adminapi.RegisterAdminRoutes(engine, conn, jwtCfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		log.Info("server stopped")
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// newEngine builds the gin engine with recovery and a health endpoint.
func newEngine() *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return engine
}

// ensureDefaultAdmin creates the bootstrap admin account on first run. The
// generated password is logged once; it cannot be recovered later.
func ensureDefaultAdmin(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("app: count admins: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	password, errGen := security.GenerateAuthCode()
	if errGen != nil {
		return fmt.Errorf("app: generate admin password: %w", errGen)
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("app: hash admin password: %w", errHash)
	}
	admin := models.Admin{Username: defaultAdminUsername, Password: hash, Active: true}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("app: create default admin: %w", errCreate)
	}
	log.Warnf("created default admin %q with password %s, change it after first login", defaultAdminUsername, password)
	return nil
}

// refreshSettingsLoop keeps the in-memory settings snapshot in sync with
// database edits made through other processes.
func refreshSettingsLoop(ctx context.Context, conn *gorm.DB) {
	ticker := time.NewTicker(settingsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
				log.WithError(errRefresh).Warn("failed to refresh settings snapshot")
			}
		}
	}
}
