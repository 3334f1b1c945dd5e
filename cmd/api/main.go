package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pupfi-arcade-backend/internal/config"
	"pupfi-arcade-backend/internal/handlers"
	"pupfi-arcade-backend/internal/middleware"
	"pupfi-arcade-backend/internal/services"
	"pupfi-arcade-backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.NewRedisStore(cfg.RedisURL, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer st.Close()

	ledger := services.NewLedger(st)
	leaderboard := services.NewLeaderboardService(st)
	accounts := services.NewAccountService(st, ledger)
	staking := services.NewStakingService(st, ledger)
	engine := services.NewMatchEngine(st, ledger, leaderboard)
	jwtService := services.NewJWTService(cfg)

	wsHandler := handlers.NewWebSocketHandler(accounts)
	engine.SetBroadcaster(wsHandler)

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			n, err := engine.CancelStale(context.Background(), cfg.MatchTTL)
			if err != nil {
				log.Printf("Stale match sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("Cancelled %d stale matches", n)
			}
		}),
	)
	if err != nil {
		log.Fatalf("Failed to schedule stale match sweep: %v", err)
	}
	sched.Start()
	defer sched.Shutdown()

	userHandler := handlers.NewUserHandler(accounts, ledger, jwtService)
	matchHandler := handlers.NewMatchHandler(engine)
	stakingHandler := handlers.NewStakingHandler(staking)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboard, accounts)
	catalogHandler := handlers.NewCatalogHandler()

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

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"service": "pupfi-arcade-backend", "status": "ok"})
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/users", userHandler.Register)
	router.POST("/auth/login", userHandler.Login)
	router.GET("/users/:id", userHandler.GetUser)
	router.GET("/users/:id/transactions", userHandler.GetTransactions)
	router.GET("/games", catalogHandler.ListGames)
	router.GET("/quests", catalogHandler.ListQuests)
	router.GET("/matches/:id", matchHandler.GetMatch)
	router.GET("/leaderboard/:game_key", leaderboardHandler.GetLeaderboard)
	router.GET("/staking", stakingHandler.ListPools)
	router.GET("/staking/:pool_key", stakingHandler.GetPool)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService, accounts))
	protected.Use(middleware.RateLimitMiddleware(st))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/me/wallet", userHandler.LinkWallet)
		protected.POST("/me/badges", userHandler.MintBadge)
		protected.POST("/me/transfer", userHandler.Transfer)

		protected.POST("/quests/:key/claim", userHandler.ClaimQuest)
		protected.POST("/users/:id/earn", userHandler.Earn)
		protected.POST("/users/:id/spend", userHandler.Spend)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		matches := protected.Group("/matches")
		{
			matches.POST("", matchHandler.CreateMatch)
			matches.POST("/:id/join", matchHandler.JoinMatch)
			matches.POST("/:id/start", matchHandler.StartMatch)
			matches.POST("/:id/score", matchHandler.SubmitScore)
			matches.POST("/:id/tip", matchHandler.TipMatch)
			matches.POST("/:id/finish", matchHandler.FinishMatch)
			matches.POST("/:id/cancel", matchHandler.CancelMatch)
		}

		protected.POST("/staking/:pool_key/stake", stakingHandler.Stake)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
