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

	"mailshop-bot/internal/bot"
	"mailshop-bot/internal/cache"
	"mailshop-bot/internal/config"
	"mailshop-bot/internal/handler"
	"mailshop-bot/internal/middleware"
	"mailshop-bot/internal/repository"
	"mailshop-bot/internal/router"
	"mailshop-bot/internal/service"
	"mailshop-bot/internal/settings"
	"mailshop-bot/internal/sheets"
	"mailshop-bot/internal/telegram"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting mailshop bot...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	if cfg.Bot.Token == "" {
		log.Fatal("BOT_TOKEN is required")
	}
	if len(cfg.Bot.AdminIDs) == 0 {
		log.Println("Warning: BOT_ADMIN_IDS is empty, deposit reviews will go nowhere")
	}

	// Initialize ledger repository based on config
	var ledgerRepo repository.LedgerRepository
	switch cfg.Ledger.Type {
	case "mysql":
		mysqlDB, err := sql.Open("mysql", cfg.Ledger.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)
		if err := mysqlDB.Ping(); err != nil {
			log.Fatalf("Failed to ping MySQL: %v", err)
		}
		mysqlRepo, err := repository.NewMySQLLedgerRepository(mysqlDB)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL ledger: %v", err)
		}
		ledgerRepo = mysqlRepo
		log.Println("MySQL ledger repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteLedgerRepository(cfg.Ledger.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite ledger: %v", err)
		}
		ledgerRepo = sqliteRepo
		log.Println("SQLite ledger repository initialized")
	}
	defer ledgerRepo.Close()

	// Initialize session cache based on config
	var sessionCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory cache: %v", err)
			sessionCache = cache.NewMemoryCache()
		} else {
			sessionCache = redisCache
		}
	default: // memory
		sessionCache = cache.NewMemoryCache()
		log.Println("Memory session cache initialized")
	}
	defer sessionCache.Close()

	// Mutable storefront settings
	settingsStore, err := settings.NewStore(cfg.Bot.SettingsFile)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	// Remote inventory queue behind the write limiter
	sheetClient := sheets.NewHTTPClient(cfg.Sheet.BaseURL, cfg.Sheet.APIKey)
	limiter := sheets.NewLimiter(sheets.LimiterConfig{
		Window:      cfg.Sheet.Window,
		WindowLimit: cfg.Sheet.WindowLimit,
		WriteDelay:  cfg.Sheet.WriteDelay,
		MaxRetries:  cfg.Sheet.MaxRetries,
	})
	queue := sheets.NewQueue(sheetClient, limiter)

	// Services
	accountService := service.NewAccountService(ledgerRepo, cfg.Bot.MinDeposit, cfg.Bot.MaxDeposit)
	purchaseService := service.NewPurchaseService(ledgerRepo, queue, settingsStore)
	discountService := service.NewDiscountService(ledgerRepo, settingsStore)

	// Chat transport and dispatcher
	transport := telegram.New(cfg.Bot.Token, cfg.Bot.PollTimeout)
	storeBot := bot.New(bot.Deps{
		Transport:      transport,
		Sessions:       bot.NewSessionStore(sessionCache, cfg.Bot.SessionTTL),
		Account:        accountService,
		Purchase:       purchaseService,
		Discount:       discountService,
		Queue:          queue,
		Settings:       settingsStore,
		IsAdmin:        cfg.Bot.IsAdmin,
		AdminChatIDs:   cfg.Bot.AdminIDs,
		StockBatchSize: cfg.Sheet.BatchSize,
	})

	// Ops HTTP API
	healthHandler := handler.New()
	adminHandler := handler.NewAdminHandler(accountService, queue)
	authMiddleware := middleware.NewLoginKeyMiddleware(cfg.App.LoginKey)

	r := router.New(router.Config{
		Handler:        healthHandler,
		AdminHandler:   adminHandler,
		AuthMiddleware: authMiddleware,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Ops API listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Run the bot event loop until interrupted
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := storeBot.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("Bot error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Stopped")
}
