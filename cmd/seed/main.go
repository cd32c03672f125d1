package main

import (
	"context"
	"log"
	"os"

	"github.com/yamdb/yamdb-api/internal/config"
	"github.com/yamdb/yamdb-api/internal/database"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

// seed creates the first superuser. It has no confirmation code; signing up
// with the same username and email mints one.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminUsername == "" || adminEmail == "" {
		logger.Log.Fatal("Missing environment variables: ADMIN_USERNAME, ADMIN_EMAIL")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	existing, err := users.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		logger.Log.Fatal("Failed to look up admin", zap.Error(err))
	}
	if existing != nil {
		logger.Log.Info("Admin user already exists",
			zap.String("username", existing.Username),
			zap.String("email", existing.Email),
		)
		return
	}

	admin := &models.User{
		Username:    adminUsername,
		Email:       adminEmail,
		Role:        models.RoleAdmin,
		IsSuperuser: true,
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		logger.Log.Fatal("Failed to create admin", zap.Error(err))
	}

	logger.Log.Info("Admin user created",
		zap.String("username", admin.Username),
		zap.String("email", admin.Email),
	)
}
