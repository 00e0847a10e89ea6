package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memberhub-api/internal/audit"
	"memberhub-api/internal/cache"
	"memberhub-api/internal/config"
	"memberhub-api/internal/discord"
	"memberhub-api/internal/handler"
	"memberhub-api/internal/middleware"
	"memberhub-api/internal/notify"
	"memberhub-api/internal/repository"
	"memberhub-api/internal/router"
	"memberhub-api/internal/service"
	"memberhub-api/pkg/filelock"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting MemberHub API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize order repository based on config
	var orderRepo repository.OrderRepository
	switch cfg.OrderDB.Type {
	case "mysql":
		db, err := sql.Open("mysql", cfg.OrderDB.DSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			log.Fatalf("Failed to ping MySQL: %v", err)
		}
		orderRepo = repository.NewMySQLOrderRepository(db)
		log.Println("MySQL order repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteOrderRepository(cfg.OrderDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		orderRepo = sqliteRepo
		log.Println("SQLite order repository initialized")
	}
	defer orderRepo.Close()

	// Webinar ledger and its cross-process lock
	webinarLedger, err := repository.NewCSVWebinarLedger(cfg.Webinar.CSVPath)
	if err != nil {
		log.Fatalf("Failed to open webinar ledger: %v", err)
	}
	ledgerLock := filelock.New(cfg.Webinar.LockPath, cfg.Webinar.LockTimeout, cfg.Webinar.LockInterval)

	// Optional Redis claim guard: a missing Redis degrades to the
	// unguarded order path instead of refusing to start.
	var claimGuard service.ClaimGuard
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisAddress(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed, claim guard disabled: %v", err)
	} else {
		claimGuard = cache.NewRedisClaimGuard(redisClient)
		log.Println("Redis claim guard initialized")
	}
	cancelPing()

	// Discord client, alerter, and mail sender
	discordClient := discord.New(cfg.Discord.APIBase, cfg.Discord.BotToken, cfg.Discord.GuildID)
	alerter := discord.NewAlerter(discordClient, cfg.Discord.AlertChannelID)
	mailSender := notify.NewSMTPSender(cfg.SMTP)

	// Append-only audit log
	auditLog, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		log.Fatalf("Failed to open audit log: %v", err)
	}
	defer auditLog.Close()

	// Initialize services
	roles := service.RolesConfig{
		MemberRoleID:   cfg.Discord.MemberRoleID,
		LifetimeRoleID: cfg.Discord.LifetimeRoleID,
	}
	activationService := service.NewActivationService(
		orderRepo, webinarLedger, ledgerLock, discordClient, claimGuard, auditLog, alerter, roles)
	expiryService := service.NewExpiryService(
		orderRepo, discordClient, discordClient, mailSender, auditLog, alerter, service.ExpiryConfig{
			OffsetHours:     cfg.Scheduler.TimezoneOffsetHours,
			Roles:           roles,
			NoticeChannelID: cfg.Discord.NoticeChannelID,
		})

	// Daily reminder + expiry scan
	scheduler := service.NewDailyScheduler(expiryService, cfg.Scheduler.Hour, cfg.Scheduler.TimezoneOffsetHours)
	if cfg.Scheduler.Enabled {
		scheduler.Start()
		log.Printf("Daily scheduler started (hour=%d, offset=UTC+%d)",
			cfg.Scheduler.Hour, cfg.Scheduler.TimezoneOffsetHours)
	}

	// Initialize handlers
	healthHandler := handler.New()
	redeemHandler := handler.NewRedeemHandler(activationService)
	adminHandler := handler.NewAdminHandler(expiryService)

	// Create router
	r := router.New(router.Config{
		Handler:         healthHandler,
		RedeemHandler:   redeemHandler,
		AdminHandler:    adminHandler,
		BotMiddleware:   middleware.NewSharedSecret("X-Bot-Secret", cfg.Auth.BotSecret),
		AdminMiddleware: middleware.NewSharedSecret("X-Admin-Secret", cfg.Auth.AdminSecret),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
