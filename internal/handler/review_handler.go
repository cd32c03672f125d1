package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yamdb/yamdb-api/internal/middleware"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/service"
)

type ReviewHandler struct {
	reviewService *service.ReviewService
	pager         Paginator
}

func NewReviewHandler(reviewService *service.ReviewService, pager Paginator) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, pager: pager}
}

type reviewResponse struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	Score   int       `json:"score"`
	PubDate time.Time `json:"pub_date"`
}

type commentResponse struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	PubDate time.Time `json:"pub_date"`
}

func toReview(r *models.Review) reviewResponse {
	return reviewResponse{ID: r.ID, Text: r.Text, Author: r.Author.Username, Score: r.Score, PubDate: r.PubDate}
}

func toComment(cm *models.Comment) commentResponse {
	return commentResponse{ID: cm.ID, Text: cm.Text, Author: cm.Author.Username, PubDate: cm.PubDate}
}

// ListReviews GET /api/v1/titles/:title_id/reviews
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	titleID, ok := pathID(c, "title_id")
	if !ok {
		return
	}
	req, ok := h.pager.parse(c)
	if !ok {
		return
	}
	reviews, total, err := h.reviewService.ListReviews(c.Request.Context(), titleID, req.page)
	if err != nil {
		respondError(c, err)
		return
	}
	results := make([]reviewResponse, len(reviews))
	for i := range reviews {
		results[i] = toReview(&reviews[i])
	}
	h.pager.respond(c, req, total, results)
}

// GetReview GET /api/v1/titles/:title_id/reviews/:review_id
func (h *ReviewHandler) GetReview(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	review, err := h.reviewService.GetReview(c.Request.Context(), titleID, reviewID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReview(review))
}

// CreateReview POST /api/v1/titles/:title_id/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	titleID, ok := pathID(c, "title_id")
	if !ok {
		return
	}
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	review, err := h.reviewService.CreateReview(c.Request.Context(), middleware.CurrentUser(c), titleID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReview(review))
}

// UpdateReview PATCH /api/v1/titles/:title_id/reviews/:review_id
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	var patch service.ReviewPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequestBody(c, err)
		return
	}
	review, err := h.reviewService.UpdateReview(c.Request.Context(), middleware.CurrentUser(c), titleID, reviewID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReview(review))
}

// DeleteReview DELETE /api/v1/titles/:title_id/reviews/:review_id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	if err := h.reviewService.DeleteReview(c.Request.Context(), middleware.CurrentUser(c), titleID, reviewID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListComments GET /api/v1/titles/:title_id/reviews/:review_id/comments
func (h *ReviewHandler) ListComments(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	req, ok := h.pager.parse(c)
	if !ok {
		return
	}
	comments, total, err := h.reviewService.ListComments(c.Request.Context(), titleID, reviewID, req.page)
	if err != nil {
		respondError(c, err)
		return
	}
	results := make([]commentResponse, len(comments))
	for i := range comments {
		results[i] = toComment(&comments[i])
	}
	h.pager.respond(c, req, total, results)
}

// GetComment GET .../comments/:comment_id
func (h *ReviewHandler) GetComment(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	commentID, ok := pathID(c, "comment_id")
	if !ok {
		return
	}
	comment, err := h.reviewService.GetComment(c.Request.Context(), titleID, reviewID, commentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toComment(comment))
}

// CreateComment POST .../comments
func (h *ReviewHandler) CreateComment(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	comment, err := h.reviewService.CreateComment(c.Request.Context(), middleware.CurrentUser(c), titleID, reviewID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toComment(comment))
}

// UpdateComment PATCH .../comments/:comment_id
func (h *ReviewHandler) UpdateComment(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	commentID, ok := pathID(c, "comment_id")
	if !ok {
		return
	}
	var patch service.CommentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequestBody(c, err)
		return
	}
	comment, err := h.reviewService.UpdateComment(c.Request.Context(), middleware.CurrentUser(c), titleID, reviewID, commentID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toComment(comment))
}

// DeleteComment DELETE .../comments/:comment_id
func (h *ReviewHandler) DeleteComment(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	commentID, ok := pathID(c, "comment_id")
	if !ok {
		return
	}
	if err := h.reviewService.DeleteComment(c.Request.Context(), middleware.CurrentUser(c), titleID, reviewID, commentID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func reviewPath(c *gin.Context) (uint, uint, bool) {
	titleID, ok := pathID(c, "title_id")
	if !ok {
		return 0, 0, false
	}
	reviewID, ok := pathID(c, "review_id")
	if !ok {
		return 0, 0, false
	}
	return titleID, reviewID, true
}
