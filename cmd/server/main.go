package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yamdb/yamdb-api/internal/config"
	"github.com/yamdb/yamdb-api/internal/database"
	"github.com/yamdb/yamdb-api/internal/handler"
	"github.com/yamdb/yamdb-api/internal/middleware"
	"github.com/yamdb/yamdb-api/internal/notify"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/internal/service"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	notifier, closeNotifier, err := newNotifier(cfg.Mail)
	if err != nil {
		logger.Log.Fatal("Failed to initialize notifier", zap.Error(err))
	}
	defer closeNotifier()

	// Rate limiting is optional; without Redis the auth routes are unthrottled.
	var limiter *middleware.RateLimiter
	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("Failed to connect Redis", zap.Error(err))
		}
		defer redisClient.Close()
		limiter = middleware.NewRateLimiter(redisClient, middleware.RateLimiterConfig{
			MaxRequests: cfg.RateLimitMaxRequests,
			Window:      cfg.RateLimitWindow,
			BlockTime:   cfg.RateLimitBlockTime,
		})
	} else {
		logger.Log.Warn("REDIS_URL not set, rate limiting disabled")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, notifier, cfg.Rules, service.AuthOptions{
		JWTSecret:     cfg.JWTSecret,
		MailFrom:      cfg.Mail.From,
		NotifyTimeout: cfg.Mail.NotifyTimeout,
	})
	userService := service.NewUserService(userRepo, cfg.Rules)
	catalogService := service.NewCatalogService(catalogRepo, reviewRepo, cfg.Rules)
	reviewService := service.NewReviewService(reviewRepo, catalogRepo, cfg.Rules)

	// Initialize handlers
	pager := handler.Paginator{PageSize: cfg.Rules.PageSize}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.HSTSMiddleware(cfg.IsProduction()))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.RegisterRoutes(router, handler.Deps{
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		UserRepo:  userRepo,
		Auth:      handler.NewAuthHandler(authService),
		Users:     handler.NewUserHandler(userService, pager),
		Catalog:   handler.NewCatalogHandler(catalogService, pager),
		Reviews:   handler.NewReviewHandler(reviewService, pager),
		Limiter:   limiter,
	})

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting",
			zap.String("addr", cfg.ServerPort),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// newNotifier picks SMTP when a relay is configured and the file mailbox otherwise.
func newNotifier(mail config.Mail) (notify.Notifier, func(), error) {
	if mail.SMTPHost != "" {
		logger.Log.Info("Using SMTP notifier", zap.String("host", mail.SMTPHost))
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     mail.SMTPHost,
			Port:     mail.SMTPPort,
			Username: mail.SMTPUser,
			Password: mail.SMTPPassword,
		}), func() {}, nil
	}

	box, err := notify.NewMailbox(mail.MailDir)
	if err != nil {
		return nil, nil, err
	}
	logger.Log.Info("Using file mailbox notifier", zap.String("dir", mail.MailDir))
	return box, func() { _ = box.Close() }, nil
}

func connectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Log.Info("Redis connected", zap.String("addr", opts.Addr))
	return client, nil
}
