package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service: "storefront",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	gormLevel := gormlogger.Warn
	if cfg.AppEnv == "dev" {
		gormLevel = gormlogger.Info
	}
	db, err := database.Connect(cfg.DatabaseURL, gormLevel)
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}

	if cfg.SeedDeliveryZones {
		if err := database.SeedDeliveryZones(db); err != nil {
			log.Error("seed delivery zones failed", "error", err)
			os.Exit(1)
		}
	}

	var shared cache.SharedStore
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := cache.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPassword)
		cancel()
		if err != nil {
			// The local tier still works on its own.
			log.Warn("redis unavailable, using local cache only", "error", err)
		} else {
			shared = store
		}
	}
	store := cache.New(cfg.CacheLocalTTL, cfg.CacheSweepTime, shared, log)

	var media services.MediaStore = services.NewLocalMediaStore(cfg.MediaDir, cfg.MediaBaseURL)
	if cfg.CloudinaryURL != "" {
		cld, err := services.NewCloudinaryMediaStore(cfg.CloudinaryURL)
		if err != nil {
			log.Error("cloudinary setup failed", "error", err)
			os.Exit(1)
		}
		media = cld
	}

	var notifier services.OrderNotifier
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChat != "" {
		notifier = services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Storefront Backend",
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    64 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Static(cfg.MediaBaseURL, cfg.MediaDir)

	if err := routes.Register(app, routes.Deps{
		DB:       db,
		Config:   cfg,
		Cache:    store,
		Tracker:  services.NewTrackingMoreClient(cfg.TrackingMoreBaseURL, cfg.TrackingMoreAPIKey, cfg.CourierCode),
		Notifier: notifier,
		Media:    media,
		Rates:    services.NewCurrencyRates(cfg.CurrencyRatesURL),
		Log:      log,
	}); err != nil {
		log.Error("route setup failed", "error", err)
		os.Exit(1)
	}

	go func() {
		log.Info("starting server", "port", cfg.AppPort)
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.Error("fiber listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Warn("cache close failed", "error", err)
	}
	if err := database.Close(db); err != nil {
		log.Warn("database close failed", "error", err)
	}
}
