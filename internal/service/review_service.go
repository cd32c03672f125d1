package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/yamdb/yamdb-api/internal/config"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/policy"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

const msgOneReview = "only one review per title is allowed"

// ReviewService manages reviews of titles and comments on reviews.
type ReviewService struct {
	reviews *repository.ReviewRepository
	catalog *repository.CatalogRepository
	rules   config.Rules
}

func NewReviewService(reviews *repository.ReviewRepository, catalog *repository.CatalogRepository, rules config.Rules) *ReviewService {
	return &ReviewService{reviews: reviews, catalog: catalog, rules: rules}
}

type ReviewRequest struct {
	Text  string `json:"text"`
	Score *int   `json:"score"`
}

type ReviewPatch struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type CommentPatch struct {
	Text *string `json:"text"`
}

func (s *ReviewService) scoreRule() validation.Rule {
	return validation.By(func(value interface{}) error {
		v, isNil := validation.Indirect(value)
		if isNil {
			return nil
		}
		score, _ := v.(int)
		if score < s.rules.MinScore {
			return fmt.Errorf("score cannot be less than %d, got %d", s.rules.MinScore, score)
		}
		if score > s.rules.MaxScore {
			return fmt.Errorf("score cannot be greater than %d, got %d", s.rules.MaxScore, score)
		}
		return nil
	})
}

func (s *ReviewService) requireTitle(ctx context.Context, titleID uint) error {
	exists, err := s.catalog.TitleExists(ctx, titleID)
	if err != nil {
		return err
	}
	if !exists {
		return NotFoundError("title %d not found", titleID)
	}
	return nil
}

func (s *ReviewService) ListReviews(ctx context.Context, titleID uint, page repository.Page) ([]models.Review, int64, error) {
	if err := s.requireTitle(ctx, titleID); err != nil {
		return nil, 0, err
	}
	return s.reviews.ListReviews(ctx, titleID, page)
}

func (s *ReviewService) GetReview(ctx context.Context, titleID, reviewID uint) (*models.Review, error) {
	if err := s.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}
	review, err := s.reviews.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, NotFoundError("review %d not found", reviewID)
	}
	return review, nil
}

// CreateReview adds actor's review of a title. A second review by the same
// author is a conflict, whether caught by the pre-check or by the unique index.
func (s *ReviewService) CreateReview(ctx context.Context, actor *models.User, titleID uint, req ReviewRequest) (*models.Review, error) {
	start := time.Now()

	if !policy.Allows(roleOf(actor), policy.ContentCreate, false) {
		return nil, UnauthenticatedError("authentication required")
	}
	if err := s.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}

	req.Text = cleanText(req.Text)
	err := fromValidation(validation.ValidateStruct(&req,
		validation.Field(&req.Text, validation.Required),
		validation.Field(&req.Score, validation.NotNil.Error("cannot be blank"), s.scoreRule()),
	))
	if err != nil {
		return nil, err
	}

	exists, err := s.reviews.ReviewExists(ctx, titleID, actor.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Log.Warn("Duplicate review rejected",
			zap.Uint("title_id", titleID),
			zap.String("author_id", actor.ID.String()),
		)
		return nil, ConflictError("", msgOneReview)
	}

	review := &models.Review{
		TitleID:  titleID,
		AuthorID: actor.ID,
		Text:     req.Text,
		Score:    *req.Score,
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Log.Warn("Concurrent duplicate review rejected",
				zap.Uint("title_id", titleID),
				zap.String("author_id", actor.ID.String()),
			)
			return nil, ConflictError("", msgOneReview)
		}
		logger.Log.Error("Failed to create review", zap.Uint("title_id", titleID), zap.Error(err))
		return nil, err
	}
	review.Author = *actor

	logger.Log.Info("Review created",
		zap.Uint("review_id", review.ID),
		zap.Uint("title_id", titleID),
		zap.Duration("duration", time.Since(start)),
	)
	return review, nil
}

func (s *ReviewService) UpdateReview(ctx context.Context, actor *models.User, titleID, reviewID uint, patch ReviewPatch) (*models.Review, error) {
	review, err := s.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := checkModify(actor, review.AuthorID == idOf(actor)); err != nil {
		return nil, err
	}

	if patch.Text != nil {
		cleaned := cleanText(*patch.Text)
		patch.Text = &cleaned
	}
	err = fromValidation(validation.ValidateStruct(&patch,
		validation.Field(&patch.Text, validation.NilOrNotEmpty),
		validation.Field(&patch.Score, s.scoreRule()),
	))
	if err != nil {
		return nil, err
	}

	if patch.Text != nil {
		review.Text = *patch.Text
	}
	if patch.Score != nil {
		review.Score = *patch.Score
	}
	if err := s.reviews.UpdateReview(ctx, review); err != nil {
		logger.Log.Error("Failed to update review", zap.Uint("review_id", reviewID), zap.Error(err))
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, actor *models.User, titleID, reviewID uint) error {
	review, err := s.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return err
	}
	if err := checkModify(actor, review.AuthorID == idOf(actor)); err != nil {
		return err
	}
	if err := s.reviews.DeleteReview(ctx, review.ID); err != nil {
		logger.Log.Error("Failed to delete review", zap.Uint("review_id", reviewID), zap.Error(err))
		return err
	}
	logger.Log.Info("Review deleted",
		zap.Uint("review_id", reviewID),
		zap.String("actor_id", actor.ID.String()),
	)
	return nil
}

func (s *ReviewService) ListComments(ctx context.Context, titleID, reviewID uint, page repository.Page) ([]models.Comment, int64, error) {
	if _, err := s.GetReview(ctx, titleID, reviewID); err != nil {
		return nil, 0, err
	}
	return s.reviews.ListComments(ctx, reviewID, page)
}

func (s *ReviewService) GetComment(ctx context.Context, titleID, reviewID, commentID uint) (*models.Comment, error) {
	if _, err := s.GetReview(ctx, titleID, reviewID); err != nil {
		return nil, err
	}
	comment, err := s.reviews.GetComment(ctx, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, NotFoundError("comment %d not found", commentID)
	}
	return comment, nil
}

func (s *ReviewService) CreateComment(ctx context.Context, actor *models.User, titleID, reviewID uint, req CommentRequest) (*models.Comment, error) {
	if !policy.Allows(roleOf(actor), policy.ContentCreate, false) {
		return nil, UnauthenticatedError("authentication required")
	}
	if _, err := s.GetReview(ctx, titleID, reviewID); err != nil {
		return nil, err
	}

	req.Text = cleanText(req.Text)
	if err := fromValidation(validation.ValidateStruct(&req,
		validation.Field(&req.Text, validation.Required),
	)); err != nil {
		return nil, err
	}

	comment := &models.Comment{ReviewID: reviewID, AuthorID: actor.ID, Text: req.Text}
	if err := s.reviews.CreateComment(ctx, comment); err != nil {
		logger.Log.Error("Failed to create comment", zap.Uint("review_id", reviewID), zap.Error(err))
		return nil, err
	}
	comment.Author = *actor

	logger.Log.Info("Comment created",
		zap.Uint("comment_id", comment.ID),
		zap.Uint("review_id", reviewID),
	)
	return comment, nil
}

func (s *ReviewService) UpdateComment(ctx context.Context, actor *models.User, titleID, reviewID, commentID uint, patch CommentPatch) (*models.Comment, error) {
	comment, err := s.GetComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	if err := checkModify(actor, comment.AuthorID == idOf(actor)); err != nil {
		return nil, err
	}

	if patch.Text != nil {
		cleaned := cleanText(*patch.Text)
		patch.Text = &cleaned
	}
	if err := fromValidation(validation.ValidateStruct(&patch,
		validation.Field(&patch.Text, validation.NilOrNotEmpty),
	)); err != nil {
		return nil, err
	}
	if patch.Text == nil {
		return comment, nil
	}

	comment.Text = *patch.Text
	if err := s.reviews.UpdateComment(ctx, comment); err != nil {
		logger.Log.Error("Failed to update comment", zap.Uint("comment_id", commentID), zap.Error(err))
		return nil, err
	}
	return comment, nil
}

func (s *ReviewService) DeleteComment(ctx context.Context, actor *models.User, titleID, reviewID, commentID uint) error {
	comment, err := s.GetComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return err
	}
	if err := checkModify(actor, comment.AuthorID == idOf(actor)); err != nil {
		return err
	}
	if err := s.reviews.DeleteComment(ctx, comment.ID); err != nil {
		logger.Log.Error("Failed to delete comment", zap.Uint("comment_id", commentID), zap.Error(err))
		return err
	}
	return nil
}
