package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yamdb/yamdb-api/internal/middleware"
	"github.com/yamdb/yamdb-api/internal/policy"
	"github.com/yamdb/yamdb-api/internal/repository"
	"gorm.io/gorm"
)

// Deps is everything RegisterRoutes needs. Limiter may be nil, which turns
// off rate limiting and the IP ban endpoints.
type Deps struct {
	DB        *gorm.DB
	JWTSecret string
	UserRepo  *repository.UserRepository
	Auth      *AuthHandler
	Users     *UserHandler
	Catalog   *CatalogHandler
	Reviews   *ReviewHandler
	Limiter   *middleware.RateLimiter
}

// RegisterRoutes mounts the API under /api/v1 and the health check.
func RegisterRoutes(router *gin.Engine, d Deps) {
	router.GET("/health", healthCheck(d.DB))

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	if d.Limiter != nil {
		auth.Use(d.Limiter.Middleware())
	}
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/token", d.Auth.Token)

	api.Use(middleware.AuthMiddleware(d.JWTSecret, d.UserRepo))

	catalogWrite := middleware.RequireAction(policy.CatalogWrite)
	contentCreate := middleware.RequireAction(policy.ContentCreate)
	usersManage := middleware.RequireAction(policy.UsersManage)

	api.GET("/categories", d.Catalog.ListCategories)
	api.POST("/categories", catalogWrite, d.Catalog.CreateCategory)
	api.DELETE("/categories/:slug", catalogWrite, d.Catalog.DeleteCategory)

	api.GET("/genres", d.Catalog.ListGenres)
	api.POST("/genres", catalogWrite, d.Catalog.CreateGenre)
	api.DELETE("/genres/:slug", catalogWrite, d.Catalog.DeleteGenre)

	titles := api.Group("/titles")
	titles.GET("", d.Catalog.ListTitles)
	titles.POST("", catalogWrite, d.Catalog.CreateTitle)
	titles.GET("/:title_id", d.Catalog.GetTitle)
	titles.PATCH("/:title_id", catalogWrite, d.Catalog.UpdateTitle)
	titles.DELETE("/:title_id", catalogWrite, d.Catalog.DeleteTitle)

	// Ownership of a review or comment is checked in the service.
	reviews := titles.Group("/:title_id/reviews")
	reviews.GET("", d.Reviews.ListReviews)
	reviews.POST("", contentCreate, d.Reviews.CreateReview)
	reviews.GET("/:review_id", d.Reviews.GetReview)
	reviews.PATCH("/:review_id", contentCreate, d.Reviews.UpdateReview)
	reviews.DELETE("/:review_id", contentCreate, d.Reviews.DeleteReview)

	comments := reviews.Group("/:review_id/comments")
	comments.GET("", d.Reviews.ListComments)
	comments.POST("", contentCreate, d.Reviews.CreateComment)
	comments.GET("/:comment_id", d.Reviews.GetComment)
	comments.PATCH("/:comment_id", contentCreate, d.Reviews.UpdateComment)
	comments.DELETE("/:comment_id", contentCreate, d.Reviews.DeleteComment)

	users := api.Group("/users")
	users.GET("/me", middleware.RequireAction(policy.ProfileRead), d.Users.Me)
	users.PATCH("/me", middleware.RequireAction(policy.ProfileUpdate), d.Users.UpdateMe)
	users.GET("", usersManage, d.Users.List)
	users.POST("", usersManage, d.Users.Create)
	users.GET("/:username", usersManage, d.Users.Get)
	users.PATCH("/:username", usersManage, d.Users.Update)
	users.DELETE("/:username", usersManage, d.Users.Delete)

	if d.Limiter != nil {
		admin := api.Group("/admin", usersManage)
		adminHandler := NewAdminHandler(d.Limiter)
		admin.GET("/banned-ips", adminHandler.ListBannedIPs)
		admin.POST("/banned-ips", adminHandler.BanIP)
		admin.DELETE("/banned-ips/:ip", adminHandler.UnbanIP)
	}
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "database unavailable"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status})
	}
}
