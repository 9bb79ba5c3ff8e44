package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/middleware"
	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// maxRequestBody bounds chat request bodies.
const maxRequestBody = 1 << 20

// Backend is the assistant API. Implemented by *services.BackendClient.
type Backend interface {
	Chat(ctx context.Context, authorization string, body []byte) ([]byte, error)
	History(ctx context.Context, authorization string) ([]byte, error)
	Demo(ctx context.Context, userID string, body []byte) ([]byte, error)
	APIURL() string
	DemoURL() string
}

// ProxyHandler forwards chat traffic from the client to the assistant
// backend. It keeps the caller's Authorization header, normalizes chat
// replies and maps every upstream failure to a JSON error the client can
// classify.
type ProxyHandler struct {
	backend Backend
	now     func() time.Time
}

// NewProxyHandler creates a proxy over backend.
//
// Example:
//
//	proxy := handlers.NewProxyHandler(services.NewBackendClient(&cfg.Backend))
//	r.With(middleware.RequireBearer()).Post("/api/chat/", proxy.Chat)
func NewProxyHandler(backend Backend) *ProxyHandler {
	return &ProxyHandler{backend: backend, now: time.Now}
}

// ProbeResponse answers the proxy self-checks.
type ProbeResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	APIURL    string    `json:"api_url"`
	DemoURL   string    `json:"demo_url,omitempty"`
}

// Chat forwards the request body to {backend}/chat/ as is, so fields such
// as "userId" reach the backend untouched. The body must be a JSON object
// of the {message, provider, chat_id} shape.
//
// The Authorization header is the caller's own or, for a signed-in browser,
// the token of its browser context (middleware.RequireBearer). A backend
// 401 or 403 to the context's token ends that browser session.
//
// The reply is normalized: "response" carries the backend's "respuesta"
// (or "response"), "error" and a non-empty "chat_id" are copied, and
// "metadata" holds the gateway timestamp and the user ID read from the
// bearer token.
//
// @Summary      Send a chat message
// @Description  Proxies a message to the assistant backend. chat_id is null for a new conversation.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        Authorization  header  string              false  "Bearer access token (optional with a signed-in browser context)"
// @Param        request        body    models.ChatRequest  true   "Message"
// @Success      200  {object}  models.ChatReply
// @Failure      400  {object}  utils.ProxyError  "Invalid request body"
// @Failure      401  {object}  utils.ProxyError  "Missing authorization header"
// @Failure      500  {object}  utils.ProxyError  "Proxy connection failed"
// @Failure      502  {object}  utils.ProxyError  "Invalid backend response"
// @Router       /api/chat/ [post]
func (h *ProxyHandler) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		utils.RespondWithProxyError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		utils.RespondWithProxyError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	authorization := r.Header.Get("Authorization")
	data, err := h.backend.Chat(r.Context(), authorization, body)
	if err != nil {
		h.respondUpstreamError(w, r, "chat", err)
		return
	}

	var reply models.ChatReply
	if err := json.Unmarshal(data, &reply); err != nil {
		log.Error().Err(err).Str("request_id", utils.GetRequestID(r.Context())).Msg("Backend returned invalid chat response")
		middleware.RecordUpstream("chat", "invalid_response")
		utils.RespondWithProxyError(w, r, http.StatusBadGateway, "Invalid backend response", "")
		return
	}

	middleware.RecordUpstream("chat", "success")
	utils.RespondWithJSON(w, r, http.StatusOK, models.ChatReply{
		Response: reply.Text(),
		Error:    reply.Error,
		ChatID:   chatID(reply.ChatID),
		Metadata: &models.ChatMetadata{
			Timestamp: h.now().UTC(),
			UserID:    session.TokenSubject(utils.BearerToken(authorization)),
		},
	})
}

// chatID drops an empty id so clients never pin "".
func chatID(id *models.ID) *models.ID {
	if id == nil {
		return nil
	}
	return models.IDPtr(id.String())
}

// History relays {backend}/chat/history/ unchanged.
//
// @Summary      List chat history
// @Description  Proxies the user's conversation list from the assistant backend
// @Tags         chat
// @Produce      json
// @Param        Authorization  header  string  false  "Bearer access token (optional with a signed-in browser context)"
// @Success      200  {array}   models.HistoryItem
// @Failure      401  {object}  utils.ProxyError  "Missing authorization header"
// @Failure      500  {object}  utils.ProxyError  "Proxy connection failed"
// @Router       /api/chat/history/ [get]
func (h *ProxyHandler) History(w http.ResponseWriter, r *http.Request) {
	data, err := h.backend.History(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.respondUpstreamError(w, r, "history", err)
		return
	}

	if !json.Valid(data) {
		middleware.RecordUpstream("history", "invalid_response")
		utils.RespondWithProxyError(w, r, http.StatusBadGateway, "Invalid backend response", "")
		return
	}

	middleware.RecordUpstream("history", "success")
	utils.RespondWithRawJSON(w, http.StatusOK, data)
}

// Demo forwards an anonymous message to {demo}/ventas/chat. Backend
// failures are reported as 500 "Railway error: <status>".
//
// @Summary      Anonymous demo chat
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        user_id  query  string  false  "Demo user (default luis)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  utils.ProxyError
// @Router       /api/chat/demo [post]
func (h *ProxyHandler) Demo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil || !json.Valid(body) {
		utils.RespondWithProxyError(w, r, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	data, err := h.backend.Demo(r.Context(), r.URL.Query().Get("user_id"), body)
	if err != nil {
		var backendErr *services.BackendError
		if errors.As(err, &backendErr) {
			log.Error().Int("status", backendErr.Status).Str("body", backendErr.Body).Msg("Railway error")
			middleware.RecordUpstream("demo", "backend_error")
			utils.RespondWithProxyError(w, r, http.StatusInternalServerError, fmt.Sprintf("Railway error: %d", backendErr.Status), "")
			return
		}
		log.Error().Err(err).Msg("Demo proxy failed")
		middleware.RecordUpstream("demo", "network_error")
		utils.RespondWithProxyError(w, r, http.StatusInternalServerError, "Proxy connection failed", "")
		return
	}

	if !json.Valid(data) {
		middleware.RecordUpstream("demo", "invalid_response")
		utils.RespondWithProxyError(w, r, http.StatusBadGateway, "Invalid backend response", "")
		return
	}

	middleware.RecordUpstream("demo", "success")
	utils.RespondWithRawJSON(w, http.StatusOK, data)
}

// ChatProbe reports that the chat proxy is up.
//
// @Summary      Chat proxy self-check
// @Tags         chat
// @Produce      json
// @Success      200  {object}  ProbeResponse
// @Router       /api/chat [get]
func (h *ProxyHandler) ChatProbe(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, ProbeResponse{
		Message:   "Chat proxy is working",
		Timestamp: h.now().UTC(),
		APIURL:    h.backend.APIURL(),
		DemoURL:   h.backend.DemoURL(),
	})
}

// HistoryProbe reports that the history proxy is up.
func (h *ProxyHandler) HistoryProbe(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, ProbeResponse{
		Message:   "Chat history proxy is working",
		Timestamp: h.now().UTC(),
		APIURL:    h.backend.APIURL(),
	})
}

// respondUpstreamError maps backend failures: a backend status is relayed
// with the raw body in "details", anything else is a 500.
func (h *ProxyHandler) respondUpstreamError(w http.ResponseWriter, r *http.Request, route string, err error) {
	requestID := utils.GetRequestID(r.Context())

	var backendErr *services.BackendError
	if errors.As(err, &backendErr) {
		log.Warn().
			Str("request_id", requestID).
			Str("route", route).
			Int("status", backendErr.Status).
			Msg("Relaying backend error")
		middleware.RecordUpstream(route, "backend_error")
		if middleware.EndRejectedSession(r, backendErr.Status, r.Header.Get("Authorization")) {
			log.Info().Str("request_id", requestID).Str("route", route).Msg("Browser session ended by backend")
		}
		utils.RespondWithProxyError(w, r, backendErr.Status, backendErr.Error(), backendErr.Body)
		return
	}

	log.Error().
		Err(err).
		Str("request_id", requestID).
		Str("route", route).
		Msg("Proxy connection failed")
	middleware.RecordUpstream(route, "network_error")
	utils.RespondWithProxyError(w, r, http.StatusInternalServerError, "Proxy connection failed", err.Error())
}
