package app

import (
	"log"
	"time"

	"crolars/internal/config"
	"crolars/internal/gamification"
	"crolars/internal/middleware"
	"crolars/internal/model"
	"crolars/internal/realtime"
	"crolars/internal/repository"
	"crolars/internal/service"
	"crolars/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewRouter(cfg *config.Config) *gin.Engine {
	// Set Gin mode
	if cfg.ServerPort == "5000" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := gamification.ValidateTable(gamification.Levels()); err != nil {
		panic("Invalid level table: " + err.Error())
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&model.Notification{},
		&model.NotificationPreference{},
		&model.UserGamification{},
		&model.Badge{},
		&model.UserBadge{},
		&model.Achievement{},
		&model.UserAchievement{},
		&model.XPLog{},
		&model.UserStats{},
	); err != nil {
		panic("Failed to migrate database: " + err.Error())
	}

	// Initialize Redis with retry logic
	redisClient := initRedisWithRetry(cfg)

	// Initialize repositories
	notificationRepo := repository.NewNotificationRepository(db, redisClient)
	preferenceRepo := repository.NewPreferenceRepository(db)
	gamificationRepo := repository.NewGamificationRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	xpLogRepo := repository.NewXPLogRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(redisClient, gamificationRepo)

	if err := badgeRepo.SeedCatalog(gamification.Badges()); err != nil {
		log.Printf("Warning: Failed to seed badge catalog: %v", err)
	}
	if err := achievementRepo.SeedCatalog(gamification.Achievements()); err != nil {
		log.Printf("Warning: Failed to seed achievement catalog: %v", err)
	}
	if err := leaderboardRepo.Warm(); err != nil {
		log.Printf("Warning: Failed to warm leaderboard cache: %v", err)
	}

	// Initialize realtime hub
	hub := realtime.NewHub()
	go hub.Run()
	log.Println("Realtime hub started")

	// Initialize RabbitMQ with retry logic
	rabbitMQ := initRabbitMQWithRetry(cfg)

	notificationService := service.NewNotificationService(notificationRepo, preferenceRepo, rabbitMQ, hub)
	if rabbitMQ != nil {
		notificationWorker := service.NewNotificationWorker(rabbitMQ, hub)
		if err := notificationWorker.Start(); err != nil {
			log.Printf("Warning: Failed to start notification worker: %v", err)
		} else {
			log.Println("Notification worker started successfully")
		}
	} else {
		log.Println("Notification worker not started - notifications are pushed directly to the hub")
	}

	gamificationService := service.NewGamificationService(
		gamificationRepo,
		badgeRepo,
		achievementRepo,
		xpLogRepo,
		statsRepo,
		leaderboardRepo,
		notificationService,
		cfg.Location(),
	)

	// Initialize Cloudinary client
	var iconUploader util.IconUploader
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cloudinaryClient, err := util.NewCloudinaryClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v. Badge icon uploads will be disabled.", err)
		} else {
			iconUploader = cloudinaryClient
			log.Println("Cloudinary initialized successfully")
		}
	} else {
		log.Println("Cloudinary credentials not configured. Badge icon uploads will be disabled.")
	}

	// Initialize handlers
	authHandler := NewAuthHandler(cfg.JWTSecret)
	notificationHandler := NewNotificationHandler(notificationService)
	gamificationHandler := NewGamificationHandler(gamificationService, badgeRepo, iconUploader)

	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware(cfg.ClientURL))

	// Rate limiting middleware (if enabled)
	if cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	registerRoutes(r, hub, authHandler, notificationHandler, gamificationHandler)

	// WebSocket route
	r.GET("/ws", func(c *gin.Context) {
		onReadReceipt := func(userID, notificationID string) {
			if err := notificationService.MarkAsRead(notificationID, userID); err != nil {
				log.Printf("Failed to apply read receipt %s for user %s: %v", notificationID, userID, err)
			}
		}
		realtime.ServeWS(hub, cfg.JWTSecret, onReadReceipt).ServeHTTP(c.Writer, c.Request)
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":      "ok",
			"subscribers": hub.GetTotalClientCount(),
		})
	})

	return r
}

// registerRoutes mounts the /api/v1 surface
func registerRoutes(
	r *gin.Engine,
	hub *realtime.Hub,
	authHandler *AuthHandler,
	notificationHandler *NotificationHandler,
	gamificationHandler *GamificationHandler,
) {
	api := r.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.GET("/me", authHandler.AuthMiddleware(), authHandler.GetMe)
		}

		// Notification routes
		notifications := api.Group("/notifications")
		{
			notifications.Use(authHandler.AuthMiddleware())
			{
				notifications.GET("", notificationHandler.GetNotifications)
				notifications.POST("", notificationHandler.CreateNotification)
				notifications.GET("/stream", realtime.ServeSSE(hub))
				notifications.PATCH("/read-all", notificationHandler.MarkAllAsRead)
				notifications.GET("/preferences", notificationHandler.GetPreferences)
				notifications.PATCH("/preferences", notificationHandler.UpdatePreferences)
				notifications.PATCH("/:id/read", notificationHandler.MarkAsRead)
				notifications.DELETE("/:id", notificationHandler.DeleteNotification)
			}
		}

		// Gamification routes
		gamificationRoutes := api.Group("/gamification")
		{
			// Public catalog routes
			gamificationRoutes.GET("/levels", gamificationHandler.GetLevels)
			gamificationRoutes.GET("/badges", gamificationHandler.GetBadges)
			gamificationRoutes.GET("/leaderboard", gamificationHandler.GetLeaderboard)

			// Protected routes
			gamificationRoutes.Use(authHandler.AuthMiddleware())
			{
				gamificationRoutes.GET("/me", gamificationHandler.GetMe)
				gamificationRoutes.GET("/history", gamificationHandler.GetXPHistory)
				gamificationRoutes.POST("/activities", gamificationHandler.RecordActivity)
				gamificationRoutes.POST("/streak", gamificationHandler.UpdateStreak)
				gamificationRoutes.POST("/achievements/check", gamificationHandler.CheckAchievements)
			}
		}

		// Admin routes (owner only)
		admin := api.Group("/admin")
		{
			admin.Use(authHandler.AuthMiddleware())
			admin.Use(authHandler.AdminMiddleware())
			{
				admin.POST("/gamification/xp", gamificationHandler.GrantXP)
				admin.POST("/gamification/badges", gamificationHandler.GrantBadge)
				admin.PUT("/gamification/stats", gamificationHandler.SyncStats)
				admin.POST("/badges/:name/icon", gamificationHandler.UploadBadgeIcon)
				admin.POST("/announcements", notificationHandler.Announce)
				admin.POST("/feed-updates", notificationHandler.SignalFeedUpdate)
			}
		}
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = "host=" + cfg.PostgresHost +
			" port=" + cfg.PostgresPort +
			" user=" + cfg.PostgresUser +
			" password=" + cfg.PostgresPassword +
			" dbname=" + cfg.PostgresDB +
			" sslmode=" + cfg.PostgresSSLMode
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// initRabbitMQWithRetry attempts to connect to RabbitMQ with exponential backoff retry
func initRabbitMQWithRetry(cfg *config.Config) *util.RabbitMQClient {
	maxRetries := 10
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		rabbitMQ, err := util.NewRabbitMQClient(cfg)
		if err == nil {
			log.Printf("RabbitMQ connected successfully on attempt %d", attempt)
			return rabbitMQ
		}

		if attempt < maxRetries {
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}

			log.Printf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to RabbitMQ after %d attempts: %v. Notifications will bypass the queue.", maxRetries, err)
		}
	}

	return nil
}

// initRedisWithRetry attempts to connect to Redis with exponential backoff retry
func initRedisWithRetry(cfg *config.Config) *util.RedisClient {
	maxRetries := 10
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		redisClient, err := util.NewRedisClient(cfg)
		if err == nil {
			log.Printf("Redis connected successfully on attempt %d", attempt)
			return redisClient
		}

		if attempt < maxRetries {
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}

			log.Printf("Failed to connect to Redis (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to Redis after %d attempts: %v. Caching and the live leaderboard will be disabled.", maxRetries, err)
		}
	}

	return nil
}

func corsMiddleware(clientURL string) gin.HandlerFunc {
	allowedOrigins := []string{
		clientURL,
		"http://localhost:3000",
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", clientURL)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
