package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/internal/service"
)

type CatalogHandler struct {
	catalogService *service.CatalogService
	pager          Paginator
}

func NewCatalogHandler(catalogService *service.CatalogService, pager Paginator) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, pager: pager}
}

// ListCategories GET /api/v1/categories?search=&page=
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	req, ok := h.pager.parse(c)
	if !ok {
		return
	}
	categories, total, err := h.catalogService.ListCategories(c.Request.Context(), c.Query("search"), req.page)
	if err != nil {
		respondError(c, err)
		return
	}
	h.pager.respond(c, req, total, categories)
}

// CreateCategory POST /api/v1/categories
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req service.NamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	category, err := h.catalogService.CreateCategory(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// DeleteCategory DELETE /api/v1/categories/:slug
func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	if err := h.catalogService.DeleteCategory(c.Request.Context(), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListGenres GET /api/v1/genres?search=&page=
func (h *CatalogHandler) ListGenres(c *gin.Context) {
	req, ok := h.pager.parse(c)
	if !ok {
		return
	}
	genres, total, err := h.catalogService.ListGenres(c.Request.Context(), c.Query("search"), req.page)
	if err != nil {
		respondError(c, err)
		return
	}
	h.pager.respond(c, req, total, genres)
}

// CreateGenre POST /api/v1/genres
func (h *CatalogHandler) CreateGenre(c *gin.Context) {
	var req service.NamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	genre, err := h.catalogService.CreateGenre(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, genre)
}

// DeleteGenre DELETE /api/v1/genres/:slug
func (h *CatalogHandler) DeleteGenre(c *gin.Context) {
	if err := h.catalogService.DeleteGenre(c.Request.Context(), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTitles GET /api/v1/titles?category=&genre=&name=&year=&page=
func (h *CatalogHandler) ListTitles(c *gin.Context) {
	req, ok := h.pager.parse(c)
	if !ok {
		return
	}

	filter := repository.TitleFilter{
		CategorySlug: c.Query("category"),
		GenreSlug:    c.Query("genre"),
		Name:         c.Query("name"),
	}
	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "validation failed",
				"fields": gin.H{"year": "must be a whole number"},
			})
			return
		}
		filter.Year = year
	}

	titles, total, err := h.catalogService.ListTitles(c.Request.Context(), filter, req.page)
	if err != nil {
		respondError(c, err)
		return
	}
	h.pager.respond(c, req, total, titles)
}

// GetTitle GET /api/v1/titles/:title_id
func (h *CatalogHandler) GetTitle(c *gin.Context) {
	id, ok := pathID(c, "title_id")
	if !ok {
		return
	}
	title, err := h.catalogService.GetTitle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, title)
}

// CreateTitle POST /api/v1/titles
func (h *CatalogHandler) CreateTitle(c *gin.Context) {
	var req service.TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	title, err := h.catalogService.CreateTitle(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, title)
}

// UpdateTitle PATCH /api/v1/titles/:title_id
func (h *CatalogHandler) UpdateTitle(c *gin.Context) {
	id, ok := pathID(c, "title_id")
	if !ok {
		return
	}
	var patch service.TitlePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequestBody(c, err)
		return
	}
	title, err := h.catalogService.UpdateTitle(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, title)
}

// DeleteTitle DELETE /api/v1/titles/:title_id
func (h *CatalogHandler) DeleteTitle(c *gin.Context) {
	id, ok := pathID(c, "title_id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteTitle(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
