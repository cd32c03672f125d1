package handler

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/internal/service"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

var errInvalidPage = errors.New("invalid page")

// respondError is where service errors become HTTP responses. Anything that
// is not a *service.Error is logged and reported as a bare 500.
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		body := gin.H{"error": svcErr.Message}
		if len(svcErr.Fields) > 0 {
			body["fields"] = svcErr.Fields
		}
		c.JSON(statusFor(svcErr.Kind), body)
		return
	}

	logger.Log.Error("Unhandled error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindConflict, service.KindDelivery:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindPermission:
		return http.StatusForbidden
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func badRequestBody(c *gin.Context, err error) {
	logger.Log.Warn("Request parsing failed",
		zap.String("path", c.FullPath()),
		zap.String("ip", c.ClientIP()),
		zap.Error(err),
	)
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

// pathID parses a numeric path parameter; a malformed id is reported as not found.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": name + " not found"})
		return 0, false
	}
	return uint(id), true
}

// Paginator turns ?page=N into offset windows of a fixed size.
type Paginator struct {
	PageSize int
}

type pageRequest struct {
	number int
	page   repository.Page
}

// parse reads ?page; a malformed or non-positive page answers 404.
func (p Paginator) parse(c *gin.Context) (pageRequest, bool) {
	number := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusNotFound, gin.H{"error": errInvalidPage.Error()})
			return pageRequest{}, false
		}
		number = n
	}
	return pageRequest{
		number: number,
		page:   repository.Page{Offset: (number - 1) * p.PageSize, Limit: p.PageSize},
	}, true
}

// respond writes {count, next, previous, results}. A page past the end of a
// non-empty listing answers 404.
func (p Paginator) respond(c *gin.Context, req pageRequest, total int64, results interface{}) {
	lastPage := int(math.Ceil(float64(total) / float64(p.PageSize)))
	if lastPage == 0 {
		lastPage = 1
	}
	if req.number > lastPage {
		c.JSON(http.StatusNotFound, gin.H{"error": errInvalidPage.Error()})
		return
	}

	var next, previous *string
	if req.number < lastPage {
		u := pageURL(c, req.number+1)
		next = &u
	}
	if req.number > 1 {
		u := pageURL(c, req.number-1)
		previous = &u
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    total,
		"next":     next,
		"previous": previous,
		"results":  results,
	})
}

func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	query := c.Request.URL.Query()
	if page == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: query.Encode(),
	}
	return u.String()
}
