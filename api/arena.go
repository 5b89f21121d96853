package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// JoinRequest is the request to join the arena.
type JoinRequest struct {
	Name string `json:"name"`
	Tag  string `json:"tag,omitempty"`
}

// Join creates or returns an agent and places it in the open lobby.
// POST /v1/arena/join
func (h *Handler) Join(c echo.Context) error {
	var req JoinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	agent, err := h.arena.Join(c.Request().Context(), req.Name, req.Tag)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, agent)
}

// QuickMatchRequest is the request to start a one-off match.
type QuickMatchRequest struct {
	AgentA string `json:"agent_a,omitempty"`
	AgentB string `json:"agent_b,omitempty"`
}

// StartQuickMatch starts a match outside any bracket.
// POST /v1/arena/matches
func (h *Handler) StartQuickMatch(c echo.Context) error {
	var req QuickMatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	match, err := h.arena.StartQuickMatch(c.Request().Context(), req.AgentA, req.AgentB)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, match)
}

// ResolveRequest is the request to resolve a match.
type ResolveRequest struct {
	WinnerID string `json:"winner_id,omitempty"`
}

// ResolveMatch settles a match, idempotently.
// POST /v1/arena/matches/:match_id/resolve
func (h *Handler) ResolveMatch(c echo.Context) error {
	matchID := c.Param("match_id")

	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	match, err := h.arena.ResolveMatch(c.Request().Context(), matchID, req.WinnerID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, match)
}

// ResetSeason zeroes the season counters and bumps the generation.
// POST /v1/arena/season/reset
func (h *Handler) ResetSeason(c echo.Context) error {
	season := h.arena.ResetSeason(c.Request().Context())
	return c.JSON(http.StatusOK, season)
}

// RestartRequest is the request to restart the arena.
type RestartRequest struct {
	WipeAllTime bool `json:"wipe_all_time,omitempty"`
}

// RestartArena force-clears roster, lobby, bracket and current match.
// POST /v1/arena/restart
func (h *Handler) RestartArena(c echo.Context) error {
	var req RestartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	h.arena.RestartArena(c.Request().Context(), req.WipeAllTime)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok": true,
	})
}

// GetSnapshot returns the full read-only arena projection.
// GET /v1/arena/snapshot
func (h *Handler) GetSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, h.arena.Snapshot())
}

// ListAgents returns the current roster.
// GET /v1/arena/agents
func (h *Handler) ListAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents": h.arena.Agents(),
	})
}

// ListRecentMatches returns the bounded recent-matches view.
// GET /v1/arena/matches
func (h *Handler) ListRecentMatches(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"matches": h.arena.RecentMatches(),
	})
}

// GetMatch returns a single match by id.
// GET /v1/arena/matches/:match_id
func (h *Handler) GetMatch(c echo.Context) error {
	match, err := h.arena.GetMatch(c.Param("match_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, match)
}
