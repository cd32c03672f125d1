package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yamdb/yamdb-api/internal/middleware"
	"github.com/yamdb/yamdb-api/internal/service"
)

type UserHandler struct {
	userService *service.UserService
	pager       Paginator
}

func NewUserHandler(userService *service.UserService, pager Paginator) *UserHandler {
	return &UserHandler{userService: userService, pager: pager}
}

// List GET /api/v1/users?search=&page=
func (h *UserHandler) List(c *gin.Context) {
	req, ok := h.pager.parse(c)
	if !ok {
		return
	}
	users, total, err := h.userService.List(c.Request.Context(), c.Query("search"), req.page)
	if err != nil {
		respondError(c, err)
		return
	}
	h.pager.respond(c, req, total, users)
}

// Create POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	user, err := h.userService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Get GET /api/v1/users/:username
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update PATCH /api/v1/users/:username
func (h *UserHandler) Update(c *gin.Context) {
	var patch service.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequestBody(c, err)
		return
	}
	user, err := h.userService.Update(c.Request.Context(), c.Param("username"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete DELETE /api/v1/users/:username
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), c.Param("username")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// UpdateMe PATCH /api/v1/users/me; role cannot be changed here.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var patch service.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequestBody(c, err)
		return
	}
	user, err := h.userService.UpdateMe(c.Request.Context(), middleware.CurrentUser(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
