package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/cache"
	"github.com/francopicc/ameba/internal/pkg/database"
	"github.com/francopicc/ameba/internal/pkg/env"
	"github.com/francopicc/ameba/internal/pkg/logger"
	"github.com/francopicc/ameba/internal/pkg/metrics"
	"github.com/francopicc/ameba/internal/pkg/oauth"
	"github.com/francopicc/ameba/internal/pkg/router"
	"github.com/francopicc/ameba/internal/pkg/session"
)

func main() {
	app := NewApplication()
	defer logger.Sync()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.L().Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.L().Error("shutdown failed", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	logger.L().Info("listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	logger.Setup(env.GetEnv("APP_ENV", "dev"), env.GetEnv("LOG_LEVEL", "info"))
	database.SetupDatabase()
	cache.SetupCache()
	oauth.Setup()

	cfg := router.ConfigFromEnv()
	if cfg.SessionSecret == "" {
		if !env.IsDev() {
			logger.L().Fatal("SESSION_SECRET is required outside dev")
		}
		cfg.SessionSecret = "dev-only-session-secret"
	}
	if cfg.PaymentSandbox {
		logger.L().Warn("PAYMENT_SANDBOX enabled: payments are approved on creation")
	}

	repository.InitializeFactory(database.GetDB())
	deps := router.NewDeps(cfg, repository.GetGlobalRepositories(), session.NewSessionStore(), metrics.Default())

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/ameba to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		logger.L().Fatal("could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:         html.New(basePath+"views", ".html"),
		BodyLimit:     1 * 1024 * 1024,
		CaseSensitive: true,
	})

	// ignore and cache favicon
	app.Use(favicon.New(favicon.Config{
		File:         basePath + "public/assets/icons/favicon.ico",
		URL:          "/favicon.ico",
		CacheControl: "public, max-age=604800",
	}))

	// recovery and logging
	app.Use(recover.New(), fiberlogger.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, deps)

	return app
}
