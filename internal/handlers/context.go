package handlers

import (
	"context"
	"net/http"

	"github.com/ieraasyl/ChatGateway/internal/database"
	"github.com/ieraasyl/ChatGateway/internal/middleware"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// ContextRegistry reads and drops whole browser contexts.
// Implemented by *database.RedisDB.
type ContextRegistry interface {
	GetContextInfo(ctx context.Context, contextID string) (*database.ContextInfo, error)
	DeleteContext(ctx context.Context, contextID string) error
}

// contextBound is a store that knows which browser context it belongs to.
type contextBound interface {
	ContextID() string
}

// ContextHandler exposes the visitor's own browser context: the device that
// opened it, and a way to wipe it completely (session and preferences).
type ContextHandler struct {
	registry   ContextRegistry
	cookieName string
}

// NewContextHandler creates a context handler.
//
// Example:
//
//	contextHandler := handlers.NewContextHandler(redisDB, cfg.Session.CookieName)
//	r.Get("/api/v1/context", contextHandler.Info)
func NewContextHandler(registry ContextRegistry, cookieName string) *ContextHandler {
	return &ContextHandler{registry: registry, cookieName: cookieName}
}

// ContextResponse describes the current browser context.
type ContextResponse struct {
	ContextID string `json:"context_id"`
	database.ContextInfo
}

// Info returns the device record of the caller's browser context.
//
// @Summary      Current browser context
// @Tags         context
// @Produce      json
// @Success      200  {object}  ContextResponse
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /api/v1/context [get]
func (h *ContextHandler) Info(w http.ResponseWriter, r *http.Request) {
	contextID, ok := h.contextID(r)
	if !ok {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Session storage unavailable")
		return
	}

	info, err := h.registry.GetContextInfo(r.Context(), contextID)
	if err != nil {
		log.Debug().Err(err).Str("context_id", contextID).Msg("Browser context info not found")
		utils.RespondWithError(w, r, http.StatusNotFound, "Browser context not found")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, ContextResponse{
		ContextID:   contextID,
		ContextInfo: *info,
	})
}

// Forget deletes the caller's browser context and its cookie. The next
// request starts a fresh context with the default theme and no session.
//
// @Summary      Forget this browser
// @Tags         context
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/context [delete]
func (h *ContextHandler) Forget(w http.ResponseWriter, r *http.Request) {
	contextID, ok := h.contextID(r)
	if !ok {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Session storage unavailable")
		return
	}

	if err := h.registry.DeleteContext(r.Context(), contextID); err != nil {
		log.Error().Err(err).Str("context_id", contextID).Msg("Failed to delete browser context")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to clear browser context")
		return
	}

	utils.ClearAuthCookie(w, h.cookieName)
	log.Info().Str("context_id", contextID).Msg("Browser context deleted")
	utils.RespondWithMessage(w, r, http.StatusOK, "Browser context cleared")
}

func (h *ContextHandler) contextID(r *http.Request) (string, bool) {
	store, ok := middleware.GetStore(r.Context())
	if !ok {
		return "", false
	}
	bound, ok := store.(contextBound)
	if !ok {
		return "", false
	}
	return bound.ContextID(), true
}
