package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

// GetSession retrieves a stored coaching session.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return h.fail(c, domain.NewCodedError(domain.CodeNotFound, "Session not found", err))
		}
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, session)
}

// ListUserSessions lists a user's recent sessions with usage totals.
// GET /v1/users/:user_id/sessions?limit=
func (h *Handler) ListUserSessions(c echo.Context) error {
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	sessions, err := h.service.ListUserSessions(c.Request().Context(), c.Param("user_id"), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, sessions)
}
