// Package chat drives a chat conversation from a client: it keeps the
// message list and the pinned chat ID, sends messages through the gateway
// and turns every failure into a message the user can read.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/rs/zerolog/log"
)

// Messages shown to the user.
const (
	FallbackReply   = "Lo siento, no pude procesar tu mensaje."
	MsgNetworkError = "Error de conexión. Verifica tu conexión a internet."
	MsgCORSError    = "Error de CORS. El servidor necesita configuración adicional."
	MsgNotFound     = "Endpoint no encontrado. Verifica la URL de la API."
	MsgServerError  = "Error interno del servidor. Intenta más tarde."
	MsgGenericError = "Error al comunicarse con el servidor. Por favor, intenta nuevamente."
)

// State is the controller's position in its send cycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateError // the last send ended with an error message
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// ErrorKind classifies a failed send.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindCORS     ErrorKind = "cors"
	KindNotFound ErrorKind = "not_found"
	KindServer   ErrorKind = "server"
	KindGeneric  ErrorKind = "generic"
)

// Gateway is the chat proxy. Implemented by *GatewayClient.
type Gateway interface {
	Chat(ctx context.Context, accessToken string, req models.ChatRequest) (*models.ChatReply, error)
	History(ctx context.Context, accessToken string) ([]models.HistoryItem, error)
}

// Controller owns one conversation. All methods are safe for concurrent
// use; network calls run without the lock held.
//
// Each send belongs to a conversation generation. NewChat starts a new
// generation and cancels the pending send, whose result is then dropped.
type Controller struct {
	gateway Gateway
	guard   *session.Guard

	mu         sync.Mutex
	session    *models.Session
	conv       models.Conversation
	state      State
	generation uint64
	cancel     context.CancelFunc
}

// NewController creates a controller. Call Start before sending.
//
// Example:
//
//	guard := session.NewGuard(store, navigator, notifier, time.Second)
//	ctrl := chat.NewController(chat.NewGatewayClient(gatewayURL, 30*time.Second), guard)
//	if err := ctrl.Start(ctx); err != nil {
//	    return err // guard already navigated to /auth
//	}
//	ctrl.SendMessage(ctx, "¿Cuándo abren las matrículas?")
func NewController(gateway Gateway, guard *session.Guard) *Controller {
	return &Controller{gateway: gateway, guard: guard}
}

// Start loads the session through the guard.
func (c *Controller) Start(ctx context.Context) error {
	sess, err := c.guard.RequireSession(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return nil
}

// Profile returns the signed-in user's view, or false before Start.
func (c *Controller) Profile() (models.UserProfileView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.UserProfileView{}, false
	}
	return models.NewUserProfileView(c.session.User, c.session.Provider), true
}

// QuickActions returns the catalog for the session's provider.
func (c *Controller) QuickActions() []models.QuickAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.QuickActionsFor(models.ProviderLocal)
	}
	return models.QuickActionsFor(c.session.Provider)
}

// Messages returns a copy of the conversation in display order.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.conv.Messages))
	copy(out, c.conv.Messages)
	return out
}

// ChatID returns the pinned chat ID, or nil for a new conversation.
func (c *Controller) ChatID() *models.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv.ChatID == nil {
		return nil
	}
	id := *c.conv.ChatID
	return &id
}

// State returns the current send state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Sending reports whether a send is in flight.
func (c *Controller) Sending() bool {
	return c.State() == StateSending
}

// SendMessage appends text as a user message and sends it.
//
// The reply is appended as a bot message. Failures are appended as bot
// messages too and SendMessage returns nil, except:
//   - ErrEmptyMessage for blank text and ErrSendInFlight during another
//     send; nothing is appended or sent
//   - session.ErrNoSession before Start or after the session ended
//   - session.ErrSessionExpired when the gateway answers 401 or 403; the
//     guard has cleared the session and no bot message is appended
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	if c.session == nil {
		c.mu.Unlock()
		return session.ErrNoSession
	}

	view := models.NewUserProfileView(c.session.User, c.session.Provider)
	c.conv.Messages = append(c.conv.Messages, models.NewMessage(models.SenderUser, text, view.FullName()))

	req := models.ChatRequest{
		Message:  text,
		Provider: c.session.Provider.String(),
		ChatID:   c.conv.ChatID,
	}
	token := c.session.AccessToken

	reqCtx, cancel := context.WithCancel(ctx)
	generation := c.generation
	c.cancel = cancel
	c.state = StateSending
	c.mu.Unlock()

	defer cancel()

	reply, err := c.gateway.Chat(reqCtx, token, req)

	var httpErr *HTTPError
	if err != nil && errors.As(err, &httpErr) && c.isCurrent(generation) {
		if c.guard.OnResponse(ctx, httpErr.Status) {
			c.endSession(generation)
			return session.ErrSessionExpired
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		log.Debug().Uint64("generation", generation).Msg("Dropping reply for abandoned conversation")
		return nil
	}
	c.cancel = nil

	if err != nil {
		kind := ClassifyError(err)
		log.Warn().Err(err).Str("kind", string(kind)).Msg("Chat message failed")
		c.conv.Messages = append(c.conv.Messages, models.NewMessage(models.SenderBot, ErrorMessage(err), ""))
		c.state = StateError
		return nil
	}

	// An empty chat_id counts as absent.
	if c.conv.ChatID == nil && reply.ChatID != nil && *reply.ChatID != "" {
		id := *reply.ChatID
		c.conv.ChatID = &id
	}

	c.conv.Messages = append(c.conv.Messages, models.NewMessage(models.SenderBot, replyText(reply), ""))
	c.state = StateIdle
	return nil
}

// QuickAction sends a catalog prompt.
func (c *Controller) QuickAction(ctx context.Context, query string) error {
	return c.SendMessage(ctx, query)
}

// NewChat starts an empty conversation without calling the backend. A send
// in flight is cancelled and its result discarded.
func (c *Controller) NewChat() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.conv = models.Conversation{}
	c.state = StateIdle
}

// History lists the user's conversations. A 401 or 403 ends the session
// through the guard and yields an empty list.
func (c *Controller) History(ctx context.Context) ([]models.HistoryItem, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, session.ErrNoSession
	}
	token := c.session.AccessToken
	generation := c.generation
	c.mu.Unlock()

	items, err := c.gateway.History(ctx, token)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && c.guard.OnResponse(ctx, httpErr.Status) {
			c.endSession(generation)
			return []models.HistoryItem{}, nil
		}
		return []models.HistoryItem{}, fmt.Errorf("failed to load chat history: %w", err)
	}
	if items == nil {
		items = []models.HistoryItem{}
	}
	return items, nil
}

func (c *Controller) isCurrent(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == generation
}

// endSession forgets the session after the guard cleared it.
func (c *Controller) endSession(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	if c.generation == generation {
		c.cancel = nil
		c.state = StateIdle
	}
}

func replyText(reply *models.ChatReply) string {
	if text := reply.Text(); text != "" {
		return text
	}
	if reply.Error != "" {
		return reply.Error
	}
	return FallbackReply
}

// ClassifyError sorts a send failure by transport failure first, then by
// the markers "CORS", "404" and "500" in its message.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindGeneric
	}
	if services.IsNetworkError(err) {
		return KindNetwork
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "CORS"):
		return KindCORS
	case strings.Contains(msg, "404"):
		return KindNotFound
	case strings.Contains(msg, "500"):
		return KindServer
	default:
		return KindGeneric
	}
}

// ErrorMessage renders a send failure for the user.
func ErrorMessage(err error) string {
	switch ClassifyError(err) {
	case KindNetwork:
		return MsgNetworkError
	case KindCORS:
		return MsgCORSError
	case KindNotFound:
		return MsgNotFound
	case KindServer:
		return MsgServerError
	}
	if err == nil || err.Error() == "" {
		return MsgGenericError
	}
	return "Error: " + err.Error()
}
