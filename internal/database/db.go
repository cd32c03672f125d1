package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteScheme = "sqlite://"

// Connect opens the store named by databaseURL. Postgres URLs go to the pgx
// driver; "sqlite://path" opens a SQLite file with foreign keys enforced.
func Connect(databaseURL string) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}

	var dialector gorm.Dialector
	if strings.HasPrefix(databaseURL, sqliteScheme) {
		path := strings.TrimPrefix(databaseURL, sqliteScheme)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(SQLiteDSN(path))
	} else {
		dialector = postgres.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	logger.Log.Info("Database connected", zap.String("dialect", db.Dialector.Name()))
	return db, nil
}

// SQLiteDSN appends the pragmas the schema relies on (FK cascades, busy wait).
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Migrate creates or updates every table of the schema.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Title{}, "Genres", &models.GenreTitle{}); err != nil {
		return fmt.Errorf("setup genre_titles: %w", err)
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Genre{},
		&models.Title{},
		&models.GenreTitle{},
		&models.Review{},
		&models.Comment{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Log.Info("Database migration completed")
	return nil
}
