package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"taixiu-game-backend/internal/config"
	"taixiu-game-backend/internal/handlers"
	"taixiu-game-backend/internal/logger"
	"taixiu-game-backend/internal/middleware"
	"taixiu-game-backend/internal/services"
	"taixiu-game-backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog := logger.New(cfg.Env)
	defer zlog.Sync()

	st, err := store.NewRedisStore(cfg)
	if err != nil {
		zlog.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer st.Close()

	ledger, err := services.NewLedger(st, services.InitialBonus, zlog)
	if err != nil {
		zlog.Fatalf("Failed to restore ledger: %v", err)
	}

	pot, err := services.NewPotAccount(st)
	if err != nil {
		zlog.Fatalf("Failed to restore pot: %v", err)
	}

	engine, err := services.NewRoundEngine(st, ledger, pot, cfg.RoundInterval, zlog)
	if err != nil {
		zlog.Fatalf("Failed to restore round engine: %v", err)
	}

	bus := services.NewEventBus()
	approvals := services.NewApprovalService(st, ledger, bus, zlog)
	scheduler := services.NewScheduler(engine, bus, cfg.RoundCooldown, zlog)

	jwtService := services.NewJWTService(cfg)

	authHandler := handlers.NewAuthHandler(ledger, jwtService, cfg)
	userHandler := handlers.NewUserHandler(ledger)
	gameHandler := handlers.NewGameHandler(engine, ledger, pot, approvals)
	adminHandler := handlers.NewAdminHandler(engine, ledger, approvals)
	wsHandler := handlers.NewWebSocketHandler(engine, pot, bus, zlog)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/login", authHandler.Login)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.GET("/balance", userHandler.GetBalance)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		protected.POST("/bets", gameHandler.PlaceBet)
		protected.GET("/rounds/current", gameHandler.CurrentRound)
		protected.GET("/rounds/history", gameHandler.RoundHistory)
		protected.GET("/leaderboard", gameHandler.Leaderboard)
		protected.GET("/pot", gameHandler.Pot)

		protected.POST("/deposits", gameHandler.CreateDeposit)
		protected.POST("/withdrawals", gameHandler.CreateWithdraw)

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		{
			admin.POST("/rounds/open", adminHandler.OpenRound)
			admin.PUT("/outcome", adminHandler.SetOutcome)
			admin.PUT("/bias", adminHandler.SetBias)
			admin.DELETE("/bias", adminHandler.ClearBias)
			admin.POST("/credit", adminHandler.Credit)

			admin.GET("/requests", adminHandler.ListRequests)
			admin.POST("/requests/:id/approve", adminHandler.ApproveRequest)
			admin.POST("/requests/:id/deny", adminHandler.DenyRequest)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go scheduler.Run(ctx)
	go scheduler.Watchdog(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zlog.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Errorf("Server shutdown: %v", err)
	}
}
