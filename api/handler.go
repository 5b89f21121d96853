// Package api provides HTTP handlers for the arena.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mizuho42/agent-arena/arena"
)

// Handler handles HTTP requests.
type Handler struct {
	arena *arena.Arena
}

// NewHandler creates a new handler.
func NewHandler(a *arena.Arena) *Handler {
	return &Handler{arena: a}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/arena/join", h.Join)
	e.POST("/v1/arena/matches", h.StartQuickMatch)
	e.POST("/v1/arena/matches/:match_id/resolve", h.ResolveMatch)
	e.POST("/v1/arena/season/reset", h.ResetSeason)
	e.POST("/v1/arena/restart", h.RestartArena)

	e.GET("/v1/arena/snapshot", h.GetSnapshot)
	e.GET("/v1/arena/agents", h.ListAgents)
	e.GET("/v1/arena/matches", h.ListRecentMatches)
	e.GET("/v1/arena/matches/:match_id", h.GetMatch)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorResponse maps scheduler errors onto stable HTTP statuses: validation
// to 400, not-found to 404, conflicts to 409.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, arena.ErrNameRequired),
		errors.Is(err, arena.ErrNameTooLong),
		errors.Is(err, arena.ErrTagTooLong),
		errors.Is(err, arena.ErrSameAgent):
		status = http.StatusBadRequest
	case errors.Is(err, arena.ErrJoinBlocked):
		status = http.StatusForbidden
	case errors.Is(err, arena.ErrAgentNotFound),
		errors.Is(err, arena.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, arena.ErrMatchInProgress),
		errors.Is(err, arena.ErrNotEnoughAgents):
		status = http.StatusConflict
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
