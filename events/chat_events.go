package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// Message origins carried by MessageCreatedEvent.
const (
	OriginWebSocket = "ws"
	OriginAPI       = "api"
)

// MessageCreatedEvent is emitted after a message has been persisted.
type MessageCreatedEvent struct {
	MessageID string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatCreatedEvent is emitted when a new chat is created.
type ChatCreatedEvent struct {
	ChatID    string    `json:"chat_id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessageCreatedV1 = helper.EventDefinition[MessageCreatedEvent](
		"chat",
		"MessageCreated",
		"v1",
	)

	ChatCreatedV1 = helper.EventDefinition[ChatCreatedEvent](
		"chat",
		"ChatCreated",
		"v1",
	)
)
