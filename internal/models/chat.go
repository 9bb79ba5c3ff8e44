package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single chat turn. Messages are displayed in insertion order.
type Message struct {
	ID        string    `json:"id"`             // "<sender>-<uuid>"
	Text      string    `json:"text"`           // Raw text, markdown for bot replies
	Sender    Sender    `json:"sender"`         // user or bot
	Name      string    `json:"name,omitempty"` // Display name for user messages
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh unique ID.
func NewMessage(sender Sender, text, name string) Message {
	return Message{
		ID:        fmt.Sprintf("%s-%s", sender, uuid.NewString()),
		Text:      text,
		Sender:    sender,
		Name:      name,
		Timestamp: time.Now(),
	}
}

// Conversation is the client-side view of a chat thread. ChatID stays nil
// until the backend assigns one and is then pinned until a new chat starts.
type Conversation struct {
	ChatID   *ID       `json:"chat_id"`
	Messages []Message `json:"messages"`
}

// ChatRequest is the body accepted by POST /api/chat and forwarded to the
// backend. ChatID is always encoded, as null for a new conversation.
//
// JSON example:
//
//	{"message": "Hola", "provider": "local", "chat_id": null}
type ChatRequest struct {
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	ChatID   *ID    `json:"chat_id"`
}

// ChatMetadata is attached by the gateway to every successful chat reply.
type ChatMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
}

// ChatReply is both the backend's reply (which uses "respuesta") and the
// gateway's normalized reply (which uses "response").
//
// JSON example (gateway):
//
//	{
//	  "response": "Las matrículas abren en marzo.",
//	  "chat_id": "c-91",
//	  "metadata": {"timestamp": "2025-03-01T10:00:00Z", "user_id": "42"}
//	}
type ChatReply struct {
	Response  string        `json:"response,omitempty"`
	Respuesta string        `json:"respuesta,omitempty"`
	Error     string        `json:"error,omitempty"`
	ChatID    *ID           `json:"chat_id,omitempty"`
	Metadata  *ChatMetadata `json:"metadata,omitempty"`
}

// Text returns the reply text, preferring "response" over "respuesta".
func (r *ChatReply) Text() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Respuesta
}

// HistoryItem is one entry of the backend's chat history listing.
type HistoryItem struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}
