package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/policy"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/internal/utils"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

const (
	ctxUser     = "user"
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
)

// AuthMiddleware identifies the caller. Requests without an Authorization
// header continue as anonymous; a header that does not carry a valid token
// for an existing user is rejected with 401.
func AuthMiddleware(jwtSecret string, userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(ctxUserRole, policy.RoleAnonymous)
			c.Next()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization format. Use: Bearer <token>",
			})
			return
		}

		claims, err := utils.ValidateToken(tokenString, jwtSecret)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, utils.ErrExpiredToken) {
				msg = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		// The role is read from the store so changes apply to live tokens.
		user, err := userRepo.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			logger.Log.Error("Failed to load token owner",
				zap.String("user_id", claims.UserID.String()),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User no longer exists"})
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxUserID, user.ID)
		c.Set(ctxUserRole, user.EffectiveRole())
		c.Next()
	}
}

// RequireAction lets the request through when the caller's role allows
// action. Anonymous callers get 401, everyone else 403.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		if policy.Allows(role, action, false) {
			c.Next()
			return
		}
		if !policy.Authenticated(role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication credentials were not provided",
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "You do not have permission to perform this action",
		})
	}
}

// CurrentUser returns the authenticated caller, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func CurrentRole(c *gin.Context) models.Role {
	v, ok := c.Get(ctxUserRole)
	if !ok {
		return policy.RoleAnonymous
	}
	role, ok := v.(models.Role)
	if !ok {
		return policy.RoleAnonymous
	}
	return role
}
