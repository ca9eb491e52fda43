// Package handler provides HTTP handlers for the status API.
// Handlers only read from the status board; nothing here touches the
// monitor loop.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/shopwatch/internal/api/respond"
	"github.com/albapepper/shopwatch/internal/config"
	"github.com/albapepper/shopwatch/internal/status"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	board   *status.Board
	cfg     *config.Config
	started time.Time
}

// New creates a Handler with shared dependencies.
func New(board *status.Board, cfg *config.Config) *Handler {
	return &Handler{
		board:   board,
		cfg:     cfg,
		started: time.Now(),
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns service name, status, and the monitored categories.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":       "shopwatch",
		"status":     "running",
		"docs":       "/docs",
		"shop":       h.cfg.ShopURL,
		"categories": h.cfg.Categories,
		"watchlist":  h.cfg.Watchlist,
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns health status, uptime and monitor counters.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"monitor":   h.board.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetSessions returns the tracked session of every category.
// @Summary Current sessions
// @Description Returns per-category session marker, predicted end, last rotation and counters. Supports If-None-Match.
// @Tags sessions
// @Produce json
// @Success 200 {object} status.Sessions
// @Success 304
// @Router /sessions [get]
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	data, etag := h.board.Sessions()
	if status.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag)
}

// GetCategoryStock returns the last aggregated stock of one category.
// @Summary Category stock
// @Description Returns the aggregated items and watchlist matches from the category's latest session.
// @Tags sessions
// @Produce json
// @Param category path string true "Category name" example(seed_stock)
// @Success 200 {object} status.Category
// @Failure 404 {object} respond.ErrorResponse
// @Router /stock/{category} [get]
func (h *Handler) GetCategoryStock(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "category")
	c, ok := h.board.Category(name)
	if !ok {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Unknown category "+name)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, c)
}
