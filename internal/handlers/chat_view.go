package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ieraasyl/ChatGateway/internal/middleware"
	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// ChatViewHandler serves the data the chat screen renders.
type ChatViewHandler struct{}

// NewChatViewHandler creates a chat view handler.
func NewChatViewHandler() *ChatViewHandler {
	return &ChatViewHandler{}
}

// ChatView is the protected chat screen's view model.
type ChatView struct {
	Profile      models.ProfileSummary `json:"profile"`
	QuickActions []models.QuickAction  `json:"quick_actions"`
	Theme        string                `json:"theme"`
}

// ThemeRequest is the body of a theme change.
type ThemeRequest struct {
	Theme string `json:"theme"`
}

// View returns the profile, the provider's quick actions and the theme.
// Must run behind middleware.RequireSession.
//
// @Summary      Chat view model
// @Tags         chat
// @Produce      json
// @Success      200  {object}  ChatView
// @Failure      303  "Redirect to /auth when not signed in"
// @Router       /api/v1/chat/view [get]
func (h *ChatViewHandler) View(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	store, _ := middleware.GetStore(r.Context())

	theme := session.ThemeLight
	if store != nil {
		t, err := session.Theme(r.Context(), store)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read theme, using default")
		} else {
			theme = t
		}
	}

	utils.RespondWithJSON(w, r, http.StatusOK, ChatView{
		Profile:      models.NewUserProfileView(sess.User, sess.Provider).Summary(),
		QuickActions: models.QuickActionsFor(sess.Provider),
		Theme:        theme,
	})
}

// SetTheme stores "light" or "dark" in the browser context. It works with
// or without a session.
//
// @Summary      Set theme preference
// @Tags         preferences
// @Accept       json
// @Produce      json
// @Param        request  body      ThemeRequest  true  "Theme"
// @Success      200      {object}  ThemeRequest
// @Failure      400      {object}  utils.ErrorResponse  "Invalid theme"
// @Router       /api/v1/preferences/theme [put]
func (h *ChatViewHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	store, ok := middleware.GetStore(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Session storage unavailable")
		return
	}

	var req ThemeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Theme != session.ThemeLight && req.Theme != session.ThemeDark {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Theme must be light or dark")
		return
	}

	if err := session.SetTheme(r.Context(), store, req.Theme); err != nil {
		log.Error().Err(err).Msg("Failed to save theme")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to save theme")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, req)
}

// QuickActions returns the catalog for ?provider= (default local).
//
// @Summary      Quick action catalog
// @Tags         chat
// @Produce      json
// @Param        provider  query     string  false  "local, google or facebook"
// @Success      200       {array}   models.QuickAction
// @Failure      400       {object}  utils.ErrorResponse  "Unknown provider"
// @Router       /api/v1/quick-actions [get]
func (h *ChatViewHandler) QuickActions(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("provider")
	provider := models.ProviderLocal
	if tag != "" {
		p, ok := models.LookupProvider(tag)
		if !ok {
			utils.RespondWithError(w, r, http.StatusBadRequest, "Unknown provider")
			return
		}
		provider = p
	}

	utils.RespondWithJSON(w, r, http.StatusOK, models.QuickActionsFor(provider))
}
