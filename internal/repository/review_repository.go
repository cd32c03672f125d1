package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/yamdb/yamdb-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewRepository stores reviews, their comments, and computes title ratings.
type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// CreateReview returns ErrDuplicate when the author already reviewed the title.
func (r *ReviewRepository) CreateReview(ctx context.Context, review *models.Review) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(review).Error)
}

func (r *ReviewRepository) ReviewExists(ctx context.Context, titleID uint, authorID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("title_id = ? AND author_id = ?", titleID, authorID).
		Count(&count).Error
	return count > 0, err
}

// GetReview loads a review only if it belongs to titleID.
func (r *ReviewRepository) GetReview(ctx context.Context, titleID, reviewID uint) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND title_id = ?", reviewID, titleID).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

// ListReviews returns the newest reviews of a title first.
func (r *ReviewRepository) ListReviews(ctx context.Context, titleID uint, page Page) ([]models.Review, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Review{}).Where("title_id = ?", titleID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.Review
	err := page.apply(q.Order("pub_date DESC").Order("id DESC")).
		Preload("Author").
		Find(&reviews).Error
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *ReviewRepository) UpdateReview(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", review.ID).
		Updates(map[string]interface{}{"text": review.Text, "score": review.Score}).Error
}

func (r *ReviewRepository) DeleteReview(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Review{}, id).Error
	})
}

func (r *ReviewRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

// GetComment loads a comment only if it belongs to reviewID.
func (r *ReviewRepository) GetComment(ctx context.Context, reviewID, commentID uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND review_id = ?", commentID, reviewID).
		First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

func (r *ReviewRepository) ListComments(ctx context.Context, reviewID uint, page Page) ([]models.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Comment{}).Where("review_id = ?", reviewID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := page.apply(q.Order("pub_date DESC").Order("id DESC")).
		Preload("Author").
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *ReviewRepository) UpdateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", comment.ID).
		Update("text", comment.Text).Error
}

func (r *ReviewRepository) DeleteComment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

// AverageScores returns the mean review score per title. Titles without
// reviews are absent from the map.
func (r *ReviewRepository) AverageScores(ctx context.Context, titleIDs []uint) (map[uint]float64, error) {
	result := make(map[uint]float64, len(titleIDs))
	if len(titleIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		TitleID uint
		Average float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("title_id, AVG(score) AS average").
		Where("title_id IN ?", titleIDs).
		Group("title_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.TitleID] = row.Average
	}
	return result, nil
}
