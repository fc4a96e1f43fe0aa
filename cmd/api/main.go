package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/aegis-sec/vaultguard/internal/config"
	delivery "github.com/aegis-sec/vaultguard/internal/delivery/http"
	"github.com/aegis-sec/vaultguard/internal/notify"
	"github.com/aegis-sec/vaultguard/internal/repository"
	"github.com/aegis-sec/vaultguard/internal/usecase"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	// 1. Load Configuration from Environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 2. Setup Framework
	e := echo.New()
	e.HideBanner = true

	// 3. Initialize Infrastructure (Persistence)
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	// 4. Initialize Repositories and Collaborators
	userRepo := repository.NewPostgresUserRepo(db)
	limiter := repository.NewRedisRateLimiter(rdb)

	var sender notify.Sender
	if cfg.SMTPConfigured() {
		sender, err = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			TLS:      cfg.SMTPTLS,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to initialize SMTP sender: %v", err)
		}
	} else {
		sender = notify.NewLogSender(logger)
	}

	// 5. Initialize Business Logic (Usecases)
	authUsecase := usecase.NewAuthUsecase(userRepo, sender, usecase.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		FrontendURL:   cfg.FrontendURL,
	}, logger)

	// 6. Global Middlewares
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())

	// 7. Register Delivery Handlers (Routes)
	cookies := delivery.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: !cfg.IsDevelopment(),
	}
	auth := e.Group("/api/auth")
	delivery.NewAuthHandler(auth, authUsecase, cookies, cfg.JWTSecret, limiter)
	delivery.NewMFAHandler(auth, authUsecase, cfg.JWTSecret)
	delivery.NewAccountHandler(auth, authUsecase, cfg.JWTSecret)

	// 8. Health Check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "healthy",
			"version": "1.0.0",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// 9. Start Server with Graceful Shutdown
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Shutting down the server due to error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exiting")
}
