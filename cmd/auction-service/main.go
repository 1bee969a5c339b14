package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auctionhouse/internal/api/handlers"
	"auctionhouse/internal/config"
	"auctionhouse/internal/infrastructure/leader"
	"auctionhouse/internal/infrastructure/mysql"
	redisinfra "auctionhouse/internal/infrastructure/redis"
	ws "auctionhouse/internal/infrastructure/websocket"
	"auctionhouse/internal/services"
	"auctionhouse/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting auction service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	notificationRepo := mysql.NewMySQLNotificationRepository(db)
	participationRepo := mysql.NewMySQLParticipationRepository(db)
	accountRepo := mysql.NewMySQLAccountRepository(db)

	// Initialize Redis based components
	stateCache := redisinfra.NewStateCache(rdb)
	eventPublisher := redisinfra.NewEventPublisher(rdb)
	eventSubscriber := redisinfra.NewEventSubscriber(rdb, log)

	// Initialize leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize services
	locks := services.NewLockTable()
	fanout := services.NewFanout(eventPublisher, notificationRepo, accountRepo, bidRepo, log)
	lifecycle := services.NewLifecycleService(auctionRepo, bidRepo, accountRepo, stateCache, fanout, locks, log)

	policy := services.Policy{
		AntiSnipeWindow:    cfg.Engine.AntiSnipeWindow,
		AntiSnipeExtension: cfg.Engine.AntiSnipeExtension,
		CancelGate:         cfg.Engine.CancelGate,
		CancelExtension:    cfg.Engine.CancelExtension,
	}
	bidding := services.NewBidService(auctionRepo, bidRepo, participationRepo, accountRepo,
		lifecycle, fanout, policy, locks, log)

	sweeper := services.NewSweeper(auctionRepo, lifecycle, leaderElection,
		cfg.Instance.ID, cfg.Engine.SweepInterval, log)

	// Live delivery
	connManager := ws.NewConnectionManager(log)
	eventListener := services.NewEventListener(connManager, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
			"X-User-ID",
		},
		MaxAge: 86400,
	}))

	// Initialize handlers
	auctionHandler := handlers.NewAuctionHandler(lifecycle, log)
	bidHandler := handlers.NewBidHandler(bidding, log)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, log)
	sseHandler := handlers.NewSSEHandler(lifecycle, cfg.Engine.StreamPollInterval, cfg.Engine.StreamHeartbeat, log)
	wsHandler := ws.NewHandler(lifecycle, connManager, log)

	// API routes
	api := e.Group("/api/v1")
	api.POST("/auctions", auctionHandler.CreateAuction)
	api.GET("/auctions/:id", auctionHandler.GetAuction)
	api.GET("/auctions/:id/bids", auctionHandler.ListBids)
	api.GET("/auctions/:id/bids/highest", auctionHandler.GetHighestBid)
	api.POST("/auctions/:id/cancel", auctionHandler.CancelAuction)
	api.GET("/auctions/:id/stream", sseHandler.Stream)
	api.POST("/bids", bidHandler.PlaceBid)
	api.POST("/bids/:id/cancel", bidHandler.CancelBid)
	api.GET("/bids/mine", bidHandler.ListMyBids)
	api.GET("/notifications", notificationHandler.ListNotifications)
	api.POST("/notifications/:id/read", notificationHandler.MarkRead)

	e.GET("/ws/auctions/:id", wsHandler.Subscribe)
	e.GET("/ws/notifications", wsHandler.SubscribeNotifications)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"timestamp": time.Now().Format(time.RFC3339),
			"instance":  cfg.Instance.ID,
		})
	})

	// Start background services
	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()
	go func() {
		if err := eventListener.Start(listenerCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	go func() {
		if err := sweeper.Start(context.Background()); err != nil {
			log.Error("Failed to start sweeper", "error", err)
		}
	}()

	// Keep trying to pick up leadership so a crashed leader's sweep
	// resumes on another instance within one TTL.
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became sweep leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting auction server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopListener()
	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop sweeper", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}
