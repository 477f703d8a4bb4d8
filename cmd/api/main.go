package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Chain-Proof/chainproofserver/internal/api/handlers"
	"github.com/Chain-Proof/chainproofserver/internal/config"
	"github.com/Chain-Proof/chainproofserver/internal/database"
	"github.com/Chain-Proof/chainproofserver/internal/logger"
	"github.com/Chain-Proof/chainproofserver/internal/middleware"
	"github.com/Chain-Proof/chainproofserver/internal/repository"
	"github.com/Chain-Proof/chainproofserver/internal/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Logger.Warnf("Error loading .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal(err)
	}

	// Initialize database connection
	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database: ", err)
	}

	// Initialize the rate limit counter store
	cache, err := services.NewRedisCacheService(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Logger.Fatal("Failed to connect to Redis: ", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, cfg.JWTSecret)
	apiKeyService := services.NewAPIKeyService(apiKeyRepo)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeyService)
	userHandler := handlers.NewUserHandler(apiKeyService)

	rateLimiter := middleware.NewRateLimiter(cache)

	// Initialize router
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	// Public routes
	router.HandleFunc("/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/login", authHandler.Login).Methods("POST")
	router.HandleFunc("/health", handlers.HealthCheckHandler(db)).Methods("GET")

	// Bearer-token routes
	authRouter := router.NewRoute().Subrouter()
	authRouter.Use(middleware.AuthMiddleware(authService))
	authRouter.HandleFunc("/me", userHandler.Me).Methods("GET")
	authRouter.HandleFunc("/api-keys", apiKeyHandler.Create).Methods("POST")
	authRouter.HandleFunc("/api-keys", apiKeyHandler.List).Methods("GET")
	authRouter.HandleFunc("/api-keys/{id}", apiKeyHandler.Update).Methods("PATCH")
	authRouter.HandleFunc("/api-keys/{id}", apiKeyHandler.Revoke).Methods("DELETE")

	// API-key routes
	keyRouter := router.PathPrefix("/api/v1").Subrouter()
	keyRouter.Use(middleware.APIKeyMiddleware(apiKeyService, ""))
	keyRouter.Use(rateLimiter.RateLimit)
	keyRouter.HandleFunc("/verify", apiKeyHandler.Verify).Methods("GET")

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.CORSOrigin},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-API-Key",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Handler:      corsMiddleware.Handler(router),
		Addr:         ":" + cfg.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		logger.Logger.WithFields(logrus.Fields{"port": cfg.Port}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server error: ", err)
		}
	}()

	// Block until a shutdown signal arrives, then drain in-flight requests
	// and close the store connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server shutdown: ", err)
	}
	if err := cache.Close(); err != nil {
		logger.Logger.Error("Redis close: ", err)
	}
	if err := database.Close(db); err != nil {
		logger.Logger.Error("Database close: ", err)
	}
}
