package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ascentclub/server/internal/config"
	"github.com/ascentclub/server/internal/database"
	"github.com/ascentclub/server/internal/engine"
	"github.com/ascentclub/server/internal/handler"
	"github.com/ascentclub/server/internal/middleware"
	"github.com/ascentclub/server/internal/perm"
	"github.com/ascentclub/server/internal/queue"
	"github.com/ascentclub/server/internal/repository"
	"github.com/ascentclub/server/internal/router"
	"github.com/ascentclub/server/internal/service"
	"github.com/ascentclub/server/pkg/logger"
)

func main() {
	// .env is a convenience for local runs; deployed environments set
	// real variables and the file is absent.
	_ = godotenv.Load()
	cfg := config.Load()

	zl, err := logger.New(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, logger.DefaultServiceName)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		zl.Fatal("migrations failed", zap.Error(err))
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	tags := repository.NewTagRepo(db)
	attendance := repository.NewAttendanceRepo(db)
	ledger := repository.NewLedgerRepo(db)
	waitlist := repository.NewWaitlistRepo(db)
	perms := repository.NewPermissionRepo(db)
	settings := repository.NewSettingRepo(db)

	resolver := perm.NewResolver(perms, zl)
	publisher := service.NewAMQPPublisher(zl)
	eng := engine.New(db, events, users, tags, attendance, ledger, waitlist, settings, publisher, zl)

	// Consumer writes the attendance audit trail; it reconnects on broker
	// loss and never takes the server down.
	go func() {
		if err := queue.StartAttendanceConsumer(service.BrokerURL(), zl); err != nil {
			zl.Warn("attendance consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true

	// Redis-backed rate limiting and response caching degrade to no-ops
	// when Redis is unreachable.
	if rdb := config.NewRedisClient(); rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	} else {
		zl.Warn("redis unavailable, rate limiting and caching disabled")
	}

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	eventHandler := handler.NewEventHandler(events, tags, users, settings, zl)
	attendanceHandler := handler.NewAttendanceHandler(eng, attendance, waitlist, resolver, zl)
	ledgerHandler := handler.NewLedgerHandler(ledger)
	adminHandler := handler.NewAdminHandler(eng, events, perms, resolver, db, zl)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, ledgerHandler, adminHandler, cfg.JWTSecret)
	router.RegisterEvents(e, eventHandler, attendanceHandler, cfg.JWTSecret)
	router.RegisterAdmin(e, eventHandler, adminHandler, resolver, cfg.JWTSecret)

	addr := ":" + cfg.Port
	zl.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}
