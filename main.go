package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/auth"
	"github.com/otscribe/report-engine/pkg/config"
	"github.com/otscribe/report-engine/pkg/database"
	"github.com/otscribe/report-engine/pkg/handlers"
	"github.com/otscribe/report-engine/pkg/logging"
	"github.com/otscribe/report-engine/pkg/middleware"
	"github.com/otscribe/report-engine/pkg/repositories"
	"github.com/otscribe/report-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Local convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", cfg.Database.Database),
		zap.String("port", cfg.Port))

	ctx := context.Background()

	if err := migrateDatabase(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	suggestionRepo := repositories.NewSuggestionRepository(db)
	patternRepo := repositories.NewPatternRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)

	// Services
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	authService := services.NewAuthService(userRepo, refreshTokenRepo, tokenManager, cfg.Auth.RefreshTokenTTL, logger)
	learnerService := services.NewLearnerService(patternRepo, cfg.Suggestions.SecondOrderThreshold, logger)
	usageService := services.NewUsageService(suggestionRepo, learnerService, logger)
	scorerService := services.NewScorerService(suggestionRepo, patternRepo, cfg.Suggestions, logger)
	suggestionService := services.NewSuggestionService(suggestionRepo, logger)
	templateService := services.NewTemplateService(templateRepo, cfg.Uploads.TemplatesDir, logger)

	// HTTP
	authMiddleware := auth.NewMiddleware(tokenManager, logger)
	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(authService, logger).RegisterRoutes(mux)
	handlers.NewSuggestionHandler(scorerService, usageService, suggestionService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewTemplateHandler(templateService, cfg.Uploads.MaxUploadBytes, logger).RegisterRoutes(mux, authMiddleware)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := middleware.RequestLogger(logger)(corsMiddleware.Handler(mux))

	server := &http.Server{
		Addr:         cfg.BindAddr + ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go cleanupExpiredTokens(ctx, refreshTokenRepo, logger)

	go func() {
		logger.Info("Starting report-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}

// migrateDatabase applies pending migrations over a database/sql
// connection, which is what the migrate driver expects.
func migrateDatabase(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}

// cleanupExpiredTokens prunes stale refresh tokens once an hour.
func cleanupExpiredTokens(ctx context.Context, repo repositories.RefreshTokenRepository, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		removed, err := repo.DeleteExpired(ctx)
		if err != nil {
			logger.Warn("Failed to prune expired refresh tokens", zap.Error(err))
			continue
		}
		if removed > 0 {
			logger.Info("Pruned expired refresh tokens", zap.Int64("count", removed))
		}
	}
}
