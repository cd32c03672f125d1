package repository

import (
	"context"
	"errors"

	"github.com/yamdb/yamdb-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository stores categories, genres and titles.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// TitleFilter narrows ListTitles. Zero values mean "no filter".
type TitleFilter struct {
	CategorySlug string
	GenreSlug    string
	Name         string
	Year         int
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	return translate(r.db.WithContext(ctx).Create(category).Error)
}

func (r *CatalogRepository) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context, search string, page Page) ([]models.Category, int64, error) {
	var categories []models.Category
	total, err := r.listNamed(ctx, &models.Category{}, &categories, search, page)
	return categories, total, err
}

// DeleteCategory detaches the category from its titles before removing it.
func (r *CatalogRepository) DeleteCategory(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Title{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, id).Error
	})
}

func (r *CatalogRepository) CreateGenre(ctx context.Context, genre *models.Genre) error {
	return translate(r.db.WithContext(ctx).Create(genre).Error)
}

func (r *CatalogRepository) GetGenreBySlug(ctx context.Context, slug string) (*models.Genre, error) {
	var genre models.Genre
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&genre).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &genre, nil
}

// GetGenresBySlugs returns the genres found for slugs; missing slugs are simply absent.
func (r *CatalogRepository) GetGenresBySlugs(ctx context.Context, slugs []string) ([]models.Genre, error) {
	var genres []models.Genre
	if len(slugs) == 0 {
		return genres, nil
	}
	err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Order("slug ASC").Find(&genres).Error
	return genres, err
}

func (r *CatalogRepository) ListGenres(ctx context.Context, search string, page Page) ([]models.Genre, int64, error) {
	var genres []models.Genre
	total, err := r.listNamed(ctx, &models.Genre{}, &genres, search, page)
	return genres, total, err
}

func (r *CatalogRepository) DeleteGenre(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("genre_id = ?", id).Delete(&models.GenreTitle{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Genre{}, id).Error
	})
}

// listNamed serves the category and genre listings: search on name, order by slug.
func (r *CatalogRepository) listNamed(ctx context.Context, model, dest interface{}, search string, page Page) (int64, error) {
	q := r.db.WithContext(ctx).Model(model)
	if search != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", likePattern(search))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	if err := page.apply(q.Order("slug ASC")).Find(dest).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// TitleIdentityExists reports whether another title already has this
// (name, year, category). excludeID skips the title being updated.
func (r *CatalogRepository) TitleIdentityExists(ctx context.Context, name string, year int, categoryID *uint, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Title{}).Where("name = ? AND year = ?", name, year)
	if categoryID == nil {
		q = q.Where("category_id IS NULL")
	} else {
		q = q.Where("category_id = ?", *categoryID)
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateTitle inserts the title and its genre links atomically.
func (r *CatalogRepository) CreateTitle(ctx context.Context, title *models.Title, genres []models.Genre) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(title).Error; err != nil {
			return err
		}
		return linkGenres(tx, title.ID, genres)
	})
	return translate(err)
}

// UpdateTitle saves the scalar columns; when genres is non-nil the genre
// links are replaced by it.
func (r *CatalogRepository) UpdateTitle(ctx context.Context, title *models.Title, genres []models.Genre) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(title).
			Select("name", "year", "description", "category_id").
			Updates(map[string]interface{}{
				"name":        title.Name,
				"year":        title.Year,
				"description": title.Description,
				"category_id": title.CategoryID,
			}).Error; err != nil {
			return err
		}
		if genres == nil {
			return nil
		}
		if err := tx.Where("title_id = ?", title.ID).Delete(&models.GenreTitle{}).Error; err != nil {
			return err
		}
		return linkGenres(tx, title.ID, genres)
	})
	return translate(err)
}

func linkGenres(tx *gorm.DB, titleID uint, genres []models.Genre) error {
	if len(genres) == 0 {
		return nil
	}
	links := make([]models.GenreTitle, 0, len(genres))
	for _, g := range genres {
		links = append(links, models.GenreTitle{TitleID: titleID, GenreID: g.ID})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

func (r *CatalogRepository) GetTitle(ctx context.Context, id uint) (*models.Title, error) {
	var title models.Title
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Genres", func(db *gorm.DB) *gorm.DB { return db.Order("genres.slug ASC") }).
		First(&title, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &title, nil
}

// ListTitles returns titles ordered by name together with the unpaged total.
func (r *CatalogRepository) ListTitles(ctx context.Context, filter TitleFilter, page Page) ([]models.Title, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Title{})
	if filter.CategorySlug != "" {
		q = q.Where("titles.category_id IN (?)",
			r.db.Model(&models.Category{}).Select("id").Where("slug = ?", filter.CategorySlug))
	}
	if filter.GenreSlug != "" {
		q = q.Where("titles.id IN (?)",
			r.db.Table("genre_titles").
				Select("genre_titles.title_id").
				Joins("JOIN genres ON genres.id = genre_titles.genre_id").
				Where("genres.slug = ?", filter.GenreSlug))
	}
	if filter.Name != "" {
		q = q.Where("LOWER(titles.name) LIKE ? ESCAPE '\\'", likePattern(filter.Name))
	}
	if filter.Year != 0 {
		q = q.Where("titles.year = ?", filter.Year)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var titles []models.Title
	err := page.apply(q.Order("titles.name ASC").Order("titles.id ASC")).
		Preload("Category").
		Preload("Genres", func(db *gorm.DB) *gorm.DB { return db.Order("genres.slug ASC") }).
		Find(&titles).Error
	if err != nil {
		return nil, 0, err
	}
	return titles, total, nil
}

// DeleteTitle removes the title with its genre links, reviews and their comments.
func (r *CatalogRepository) DeleteTitle(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := tx.Model(&models.Review{}).Select("id").Where("title_id = ?", id)
		if err := tx.Where("review_id IN (?)", reviews).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("title_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("title_id = ?", id).Delete(&models.GenreTitle{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Title{}, id).Error
	})
}

func (r *CatalogRepository) TitleExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Title{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
