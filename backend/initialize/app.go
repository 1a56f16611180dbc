package initialize

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shortsguard/backend/app/controllers"
	jwtutil "shortsguard/backend/app/jwt"
	"shortsguard/backend/app/models"
	"shortsguard/backend/app/repo"
	"shortsguard/backend/app/services"
	"shortsguard/backend/app/socket"
	"shortsguard/backend/app/watch"
	"shortsguard/backend/config"
	"shortsguard/backend/global"
)

// App bundles the wired authority.
type App struct {
	Cfg      *config.Config
	DB       *gorm.DB
	Hub      *socket.Hub
	Ctrl     *controllers.ProtocolController
	Settings *services.SettingsService
	Logs     *services.LogService
	Watcher  *watch.SettingsWatcher
	Signer   *jwtutil.Signer
}

// Build loads config, opens storage, migrates and wires services.
func Build(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	global.Config = cfg

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	gdb, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	global.Mdb = gdb

	if err := gdb.AutoMigrate(
		&models.SettingsDoc{},
		&models.WhitelistEntry{},
		&models.BlockEvent{},
		&models.FocusSession{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	settingsRepo := repo.NewSettingsRepository(gdb)
	whitelistRepo := repo.NewWhitelistRepository(gdb)
	blockLogRepo := repo.NewBlockLogRepository(gdb)
	focusRepo := repo.NewFocusRepository(gdb)

	settingsSvc := services.NewSettingsService(settingsRepo, whitelistRepo)
	whitelistSvc := services.NewWhitelistService(whitelistRepo)
	statsSvc := services.NewStatsService(settingsSvc, blockLogRepo)
	logSvc := services.NewLogService(blockLogRepo, settingsSvc)
	focusSvc := services.NewFocusService(focusRepo)

	signer := &jwtutil.Signer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, ExpMin: cfg.JWT.ExpMin}
	hub := socket.NewHub()
	ctrl := controllers.NewProtocolController(hub, settingsSvc, whitelistSvc, statsSvc, logSvc, focusSvc, signer)

	var watcher *watch.SettingsWatcher
	if cfg.SettingsFile != "" {
		watcher, err = watch.New(cfg.SettingsFile, settingsSvc, ctrl)
		if err != nil {
			global.Logger.Warn().Err(err).Str("path", cfg.SettingsFile).Msg("settings file watch unavailable")
		}
	}

	return &App{
		Cfg:      cfg,
		DB:       gdb,
		Hub:      hub,
		Ctrl:     ctrl,
		Settings: settingsSvc,
		Logs:     logSvc,
		Watcher:  watcher,
		Signer:   signer,
	}, nil
}
