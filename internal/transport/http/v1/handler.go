// Package v1 provides the public HTTP handlers of the coach service.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coach/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	logger  zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Coach API
	e.POST("/v1/fitness-coach", h.Coach)

	// Meal generator API
	e.POST("/v1/meal-plans", h.GenerateMealPlan)
	e.POST("/v1/meals/optimize", h.OptimizeMeal)
	e.GET("/v1/recipes/suggestions", h.SuggestRecipes)

	// Optimizer cache maintenance
	e.GET("/v1/cache/stats", h.CacheStats)
	e.DELETE("/v1/cache", h.ClearCache)

	// Sessions
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.GET("/v1/users/:user_id/sessions", h.ListUserSessions)

	e.GET("/health", h.Health)
}

// Health reports dependency status. Degraded reports answer 503.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	report := h.service.Health(c.Request().Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}
