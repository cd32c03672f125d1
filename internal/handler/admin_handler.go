package handler

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yamdb/yamdb-api/internal/middleware"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

// AdminHandler manages the IP ban list enforced by the rate limiter.
type AdminHandler struct {
	limiter *middleware.RateLimiter
}

func NewAdminHandler(limiter *middleware.RateLimiter) *AdminHandler {
	return &AdminHandler{
		limiter: limiter,
	}
}

type BanIPRequest struct {
	IP     string `json:"ip" binding:"required"`
	Reason string `json:"reason"`
}

// ListBannedIPs GET /api/v1/admin/banned-ips
func (h *AdminHandler) ListBannedIPs(c *gin.Context) {
	ips, err := h.limiter.BannedIPs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ips": ips})
}

// BanIP POST /api/v1/admin/banned-ips
func (h *AdminHandler) BanIP(c *gin.Context) {
	var req BanIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	if net.ParseIP(req.IP) == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": gin.H{"ip": "must be a valid IP address"},
		})
		return
	}

	admin := middleware.CurrentUser(c)
	logger.Log.Info("Admin banning IP",
		zap.String("admin_id", admin.ID.String()),
		zap.String("ip", req.IP),
		zap.String("reason", req.Reason),
	)

	if err := h.limiter.BanIP(c.Request.Context(), req.IP); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ip": req.IP})
}

// UnbanIP DELETE /api/v1/admin/banned-ips/:ip
func (h *AdminHandler) UnbanIP(c *gin.Context) {
	ip := c.Param("ip")
	if err := h.limiter.UnbanIP(c.Request.Context(), ip); err != nil {
		respondError(c, err)
		return
	}
	logger.Log.Info("Admin unbanned IP",
		zap.String("admin_id", middleware.CurrentUser(c).ID.String()),
		zap.String("ip", ip),
	)
	c.Status(http.StatusNoContent)
}
