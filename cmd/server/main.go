package main // Entry point package

import (
	"log"  // Logging library
	"time" // Toggle budget construction

	"github.com/joho/godotenv"    // Load .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/kdelmo1/sano-server/internal/config"     // Internal config loader
	"github.com/kdelmo1/sano-server/internal/database"   // MySQL pool
	"github.com/kdelmo1/sano-server/internal/handler"    // HTTP handlers
	"github.com/kdelmo1/sano-server/internal/middleware" // Rate limiter and response cache
	"github.com/kdelmo1/sano-server/internal/queue"      // Broker consumer
	"github.com/kdelmo1/sano-server/internal/repository" // Data access
	"github.com/kdelmo1/sano-server/internal/reservation" // Slot toggle coordinator
	"github.com/kdelmo1/sano-server/internal/router"     // Route registration
	"github.com/kdelmo1/sano-server/internal/store"      // Coordinator's MySQL backing store
)

func main() {
	// Load .env when present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Redis backs the rate limiter and the response cache.  A nil client
	// degrades both to pass-through; the API stays up without Redis.
	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	posts := repository.NewPostRepo(db)
	messages := repository.NewMessageRepo(db)
	ratings := repository.NewRatingRepo(db)

	// The coordinator owns all occupant-list writes.
	coordinator := reservation.NewCoordinator(
		store.NewPostStore(db),
		time.Duration(cfg.ToggleBudgetSec)*time.Second,
	)

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	postHandler := handler.NewPostHandler(posts)
	reservationHandler := handler.NewReservationHandler(coordinator, posts)
	messageHandler := handler.NewMessageHandler(messages, users)
	ratingHandler := handler.NewRatingHandler(ratings, users)

	var limiter, cache echo.MiddlewareFunc
	if rdb != nil {
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	e := echo.New()
	router.RegisterRoutes(e) // Health check
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterFeed(e, cfg.JWTSecret, postHandler, reservationHandler, messageHandler, ratingHandler, limiter, cache)

	// Drain reservation.changed / message.sent into the activity log.
	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
