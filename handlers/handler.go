package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"huntzen-care/middleware"
	"huntzen-care/services"
)

// Pinger is implemented by optional backends reported on /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc   *services.Services
	db    *gorm.DB
	cache Pinger
	log   *slog.Logger
}

// NewHandler builds the HTTP layer. cache may be nil.
func NewHandler(svc *services.Services, db *gorm.DB, cache Pinger, log *slog.Logger) *Handler {
	return &Handler{svc: svc, db: db, cache: cache, log: log}
}

// respondError maps service errors to HTTP statuses. Unexpected errors are
// attached to the context for the error handler and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func actor(c *gin.Context) services.Actor {
	a, _ := middleware.Actor(c)
	return a
}

func parseUint(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// pathID reads a numeric path parameter and writes a 400 when it is malformed.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := parseUint(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+" format")
		return 0, false
	}
	return id, true
}

func queryPage(c *gin.Context) services.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return services.Page{Page: page, Limit: limit}
}

// queryUint returns nil when the parameter is absent.
func queryUint(c *gin.Context, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := parseUint(raw)
	if err != nil {
		return nil, errors.New("invalid " + name)
	}
	return &id, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New("invalid " + name)
	}
	return &v, nil
}

// queryTime accepts RFC 3339 timestamps and plain dates.
func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid " + name + ": use RFC 3339 or YYYY-MM-DD")
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	details := gin.H{"database": "available"}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status = http.StatusServiceUnavailable
		details["database"] = "unavailable"
	}

	if h.cache != nil {
		details["redis"] = "available"
		if err := h.cache.Ping(ctx); err != nil {
			// the cache is optional so its loss only degrades the service
			details["redis"] = "unavailable"
		}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "down"
	} else if details["redis"] == "unavailable" {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "details": details})
}
