package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/yamdb/yamdb-api/internal/config"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

var slugRegex = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

const (
	maxNameLength = 256
	maxSlugLength = 50
)

// CatalogService manages categories, genres and titles, and attaches
// ratings to titles on every read.
type CatalogService struct {
	catalog *repository.CatalogRepository
	reviews *repository.ReviewRepository
	rules   config.Rules
	now     func() time.Time
}

func NewCatalogService(catalog *repository.CatalogRepository, reviews *repository.ReviewRepository, rules config.Rules) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		reviews: reviews,
		rules:   rules,
		now:     time.Now,
	}
}

// SetClock replaces the source of the current year.
func (s *CatalogService) SetClock(now func() time.Time) {
	s.now = now
}

// NamedRequest creates a category or a genre.
type NamedRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TitleRequest creates a title. Category and Genre are slugs.
type TitleRequest struct {
	Name        string   `json:"name"`
	Year        *int     `json:"year"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Genre       []string `json:"genre"`
}

// TitlePatch is a partial title update; nil fields are left unchanged.
// An explicit empty category detaches the title from its category.
type TitlePatch struct {
	Name        *string   `json:"name"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Genre       *[]string `json:"genre"`
}

func (s *CatalogService) validateNamed(req NamedRequest) error {
	return fromValidation(validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&req.Slug,
			validation.Required,
			validation.RuneLength(1, maxSlugLength),
			validation.Match(slugRegex).Error("may contain only latin letters, digits, hyphens and underscores"),
		),
	))
}

func (s *CatalogService) ListCategories(ctx context.Context, search string, page repository.Page) ([]models.Category, int64, error) {
	return s.catalog.ListCategories(ctx, search, page)
}

func (s *CatalogService) CreateCategory(ctx context.Context, req NamedRequest) (*models.Category, error) {
	if err := s.validateNamed(req); err != nil {
		return nil, err
	}
	category := &models.Category{Name: req.Name, Slug: req.Slug}
	if err := s.catalog.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ConflictError("slug", fmt.Sprintf("category with slug %q already exists", req.Slug))
		}
		logger.Log.Error("Failed to create category", zap.String("slug", req.Slug), zap.Error(err))
		return nil, err
	}
	logger.Log.Info("Category created", zap.String("slug", category.Slug))
	return category, nil
}

// DeleteCategory removes the category; its titles keep existing without one.
func (s *CatalogService) DeleteCategory(ctx context.Context, slug string) error {
	category, err := s.catalog.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if category == nil {
		return NotFoundError("category %q not found", slug)
	}
	if err := s.catalog.DeleteCategory(ctx, category.ID); err != nil {
		logger.Log.Error("Failed to delete category", zap.String("slug", slug), zap.Error(err))
		return err
	}
	logger.Log.Info("Category deleted", zap.String("slug", slug))
	return nil
}

func (s *CatalogService) ListGenres(ctx context.Context, search string, page repository.Page) ([]models.Genre, int64, error) {
	return s.catalog.ListGenres(ctx, search, page)
}

func (s *CatalogService) CreateGenre(ctx context.Context, req NamedRequest) (*models.Genre, error) {
	if err := s.validateNamed(req); err != nil {
		return nil, err
	}
	genre := &models.Genre{Name: req.Name, Slug: req.Slug}
	if err := s.catalog.CreateGenre(ctx, genre); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ConflictError("slug", fmt.Sprintf("genre with slug %q already exists", req.Slug))
		}
		logger.Log.Error("Failed to create genre", zap.String("slug", req.Slug), zap.Error(err))
		return nil, err
	}
	logger.Log.Info("Genre created", zap.String("slug", genre.Slug))
	return genre, nil
}

func (s *CatalogService) DeleteGenre(ctx context.Context, slug string) error {
	genre, err := s.catalog.GetGenreBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if genre == nil {
		return NotFoundError("genre %q not found", slug)
	}
	if err := s.catalog.DeleteGenre(ctx, genre.ID); err != nil {
		logger.Log.Error("Failed to delete genre", zap.String("slug", slug), zap.Error(err))
		return err
	}
	logger.Log.Info("Genre deleted", zap.String("slug", slug))
	return nil
}

// yearRule enforces MinYear <= year <= current calendar year.
func (s *CatalogService) yearRule() validation.Rule {
	return validation.By(func(value interface{}) error {
		v, isNil := validation.Indirect(value)
		if isNil {
			return nil
		}
		year, _ := v.(int)
		if year < s.rules.MinYear {
			return fmt.Errorf("year cannot be less than %d, got %d", s.rules.MinYear, year)
		}
		if current := s.now().Year(); year > current {
			return fmt.Errorf("year cannot be greater than %d, got %d", current, year)
		}
		return nil
	})
}

func (s *CatalogService) ListTitles(ctx context.Context, filter repository.TitleFilter, page repository.Page) ([]models.Title, int64, error) {
	titles, total, err := s.catalog.ListTitles(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachRatings(ctx, titles); err != nil {
		return nil, 0, err
	}
	return titles, total, nil
}

func (s *CatalogService) GetTitle(ctx context.Context, id uint) (*models.Title, error) {
	title, err := s.catalog.GetTitle(ctx, id)
	if err != nil {
		return nil, err
	}
	if title == nil {
		return nil, NotFoundError("title %d not found", id)
	}
	titles := []models.Title{*title}
	if err := s.attachRatings(ctx, titles); err != nil {
		return nil, err
	}
	return &titles[0], nil
}

func (s *CatalogService) CreateTitle(ctx context.Context, req TitleRequest) (*models.Title, error) {
	start := time.Now()

	err := fromValidation(validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&req.Year, validation.NotNil.Error("cannot be blank"), s.yearRule()),
	))
	if err != nil {
		return nil, err
	}

	category, err := s.resolveCategory(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	genres, err := s.resolveGenres(ctx, req.Genre)
	if err != nil {
		return nil, err
	}

	title := &models.Title{
		Name:        req.Name,
		Year:        *req.Year,
		Description: req.Description,
	}
	if category != nil {
		title.CategoryID = &category.ID
	}

	if err := s.ensureTitleUnique(ctx, title); err != nil {
		return nil, err
	}

	if err := s.catalog.CreateTitle(ctx, title, genres); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ConflictError("", "title already exists")
		}
		logger.Log.Error("Failed to create title", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}

	logger.Log.Info("Title created",
		zap.Uint("title_id", title.ID),
		zap.Duration("duration", time.Since(start)),
	)
	return s.GetTitle(ctx, title.ID)
}

func (s *CatalogService) UpdateTitle(ctx context.Context, id uint, patch TitlePatch) (*models.Title, error) {
	title, err := s.catalog.GetTitle(ctx, id)
	if err != nil {
		return nil, err
	}
	if title == nil {
		return nil, NotFoundError("title %d not found", id)
	}

	err = fromValidation(validation.ValidateStruct(&patch,
		validation.Field(&patch.Name, validation.NilOrNotEmpty, validation.RuneLength(1, maxNameLength)),
		validation.Field(&patch.Year, s.yearRule()),
	))
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		title.Name = *patch.Name
	}
	if patch.Year != nil {
		title.Year = *patch.Year
	}
	if patch.Description != nil {
		title.Description = patch.Description
	}
	if patch.Category != nil {
		category, err := s.resolveCategory(ctx, patch.Category)
		if err != nil {
			return nil, err
		}
		title.CategoryID = nil
		if category != nil {
			title.CategoryID = &category.ID
		}
	}

	var genres []models.Genre
	if patch.Genre != nil {
		genres, err = s.resolveGenres(ctx, *patch.Genre)
		if err != nil {
			return nil, err
		}
		if genres == nil {
			genres = []models.Genre{}
		}
	}

	if err := s.ensureTitleUnique(ctx, title); err != nil {
		return nil, err
	}

	if err := s.catalog.UpdateTitle(ctx, title, genres); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ConflictError("", "title already exists")
		}
		logger.Log.Error("Failed to update title", zap.Uint("title_id", id), zap.Error(err))
		return nil, err
	}
	return s.GetTitle(ctx, id)
}

// DeleteTitle removes the title together with its reviews and their comments.
func (s *CatalogService) DeleteTitle(ctx context.Context, id uint) error {
	title, err := s.catalog.GetTitle(ctx, id)
	if err != nil {
		return err
	}
	if title == nil {
		return NotFoundError("title %d not found", id)
	}
	if err := s.catalog.DeleteTitle(ctx, id); err != nil {
		logger.Log.Error("Failed to delete title", zap.Uint("title_id", id), zap.Error(err))
		return err
	}
	logger.Log.Info("Title deleted", zap.Uint("title_id", id))
	return nil
}

func (s *CatalogService) ensureTitleUnique(ctx context.Context, title *models.Title) error {
	exists, err := s.catalog.TitleIdentityExists(ctx, title.Name, title.Year, title.CategoryID, title.ID)
	if err != nil {
		return err
	}
	if exists {
		logger.Log.Warn("Duplicate title rejected",
			zap.String("name", title.Name),
			zap.Int("year", title.Year),
		)
		return ConflictError("", "title already exists")
	}
	return nil
}

// resolveCategory maps a slug to a category; nil or "" means no category.
func (s *CatalogService) resolveCategory(ctx context.Context, slug *string) (*models.Category, error) {
	if slug == nil || *slug == "" {
		return nil, nil
	}
	category, err := s.catalog.GetCategoryBySlug(ctx, *slug)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ValidationError("category", fmt.Sprintf("category %q does not exist", *slug))
	}
	return category, nil
}

func (s *CatalogService) resolveGenres(ctx context.Context, slugs []string) ([]models.Genre, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	genres, err := s.catalog.GetGenresBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(genres))
	for _, g := range genres {
		found[g.Slug] = true
	}
	var missing []string
	for _, slug := range slugs {
		if !found[slug] {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, ValidationError("genre", fmt.Sprintf("genres %q do not exist", missing))
	}
	return genres, nil
}

// attachRatings sets Rating on each title from a fresh aggregate; titles
// without reviews keep a nil rating.
func (s *CatalogService) attachRatings(ctx context.Context, titles []models.Title) error {
	if len(titles) == 0 {
		return nil
	}
	ids := make([]uint, len(titles))
	for i := range titles {
		ids[i] = titles[i].ID
	}
	averages, err := s.reviews.AverageScores(ctx, ids)
	if err != nil {
		logger.Log.Error("Failed to aggregate ratings", zap.Error(err))
		return err
	}
	for i := range titles {
		if avg, ok := averages[titles[i].ID]; ok {
			rating := avg
			titles[i].Rating = &rating
		}
	}
	return nil
}
