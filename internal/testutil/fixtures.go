package testutil

import (
	"fmt"
	"testing"

	"github.com/yamdb/yamdb-api/internal/models"
	"gorm.io/gorm"
)

// CreateTestUser inserts a user. An empty code leaves the account unconfirmed.
func CreateTestUser(t testing.TB, db *gorm.DB, username string, role models.Role, code string) *models.User {
	user := &models.User{
		Username:         username,
		Email:            username + "@example.com",
		Role:             role,
		ConfirmationCode: code,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// CreateSuperuser inserts a superuser whose stored role is plain user.
func CreateSuperuser(t testing.TB, db *gorm.DB, username string) *models.User {
	user := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		Role:        models.RoleUser,
		IsSuperuser: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create superuser %s: %v", username, err)
	}
	return user
}

func CreateTestCategory(t testing.TB, db *gorm.DB, slug string) *models.Category {
	category := &models.Category{Name: "Category " + slug, Slug: slug}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("Failed to create category %s: %v", slug, err)
	}
	return category
}

func CreateTestGenre(t testing.TB, db *gorm.DB, slug string) *models.Genre {
	genre := &models.Genre{Name: "Genre " + slug, Slug: slug}
	if err := db.Create(genre).Error; err != nil {
		t.Fatalf("Failed to create genre %s: %v", slug, err)
	}
	return genre
}

// CreateTestTitle inserts a title with optional category and genre links.
func CreateTestTitle(t testing.TB, db *gorm.DB, name string, year int, category *models.Category, genres ...*models.Genre) *models.Title {
	title := &models.Title{Name: name, Year: year}
	if category != nil {
		title.CategoryID = &category.ID
	}
	if err := db.Omit("Genres", "Category").Create(title).Error; err != nil {
		t.Fatalf("Failed to create title %s: %v", name, err)
	}
	for _, g := range genres {
		link := &models.GenreTitle{TitleID: title.ID, GenreID: g.ID}
		if err := db.Create(link).Error; err != nil {
			t.Fatalf("Failed to link genre %s: %v", g.Slug, err)
		}
	}
	return title
}

func CreateTestReview(t testing.TB, db *gorm.DB, title *models.Title, author *models.User, score int) *models.Review {
	review := &models.Review{
		TitleID:  title.ID,
		AuthorID: author.ID,
		Text:     fmt.Sprintf("%s rates %s", author.Username, title.Name),
		Score:    score,
	}
	if err := db.Omit("Title", "Author").Create(review).Error; err != nil {
		t.Fatalf("Failed to create review: %v", err)
	}
	return review
}

func CreateTestComment(t testing.TB, db *gorm.DB, review *models.Review, author *models.User, text string) *models.Comment {
	comment := &models.Comment{ReviewID: review.ID, AuthorID: author.ID, Text: text}
	if err := db.Omit("Review", "Author").Create(comment).Error; err != nil {
		t.Fatalf("Failed to create comment: %v", err)
	}
	return comment
}

// Count returns the number of rows of model matching the optional condition.
func Count(t testing.TB, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return n
}
