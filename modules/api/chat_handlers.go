package api

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/example/cropcare-gateway/events"
	"github.com/example/cropcare-gateway/modules/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// chatError maps persistence errors to HTTP responses.
func chatError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, chat.ErrUserNotFound), errors.Is(err, chat.ErrChatNotFound):
		return errorJSON(c, fiber.StatusNotFound, "not_found", unwrapMessage(err))
	case errors.Is(err, chat.ErrEmailTaken):
		return errorJSON(c, fiber.StatusConflict, "conflict", unwrapMessage(err))
	case errors.Is(err, chat.ErrNameEmpty), errors.Is(err, chat.ErrNameTooLong),
		errors.Is(err, chat.ErrEmailInvalid), errors.Is(err, chat.ErrRoleInvalid),
		errors.Is(err, chat.ErrTitleEmpty), errors.Is(err, chat.ErrTitleTooLong),
		errors.Is(err, chat.ErrCreatorEmpty), errors.Is(err, chat.ErrSenderEmpty),
		errors.Is(err, chat.ErrMessageEmpty), errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, chat.ErrMessageInvalid):
		return errorJSON(c, fiber.StatusBadRequest, "validation_error", unwrapMessage(err))
	default:
		log.Printf("[api] %s: %v", fallback, err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_error", fallback)
	}
}

// unwrapMessage returns the innermost error text.
func unwrapMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func queryLimit(c *fiber.Ctx) int {
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}

// handleWebSocket hands the connection to the relay for its lifetime.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	roomID := c.Params("roomId")
	if err := m.backends.Relay.Serve(context.Background(), roomID, c); err != nil {
		log.Printf("[api] WebSocket session for room %q ended: %v", roomID, err)
	}
}

// createUser handles POST /api/v1/users.
func (m *APIModule) createUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	user, err := m.chat.CreateUser(c.UserContext(), req.Name, req.Email, req.Role)
	if err != nil {
		return chatError(c, err, "Failed to create user")
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// listUsers handles GET /api/v1/users.
func (m *APIModule) listUsers(c *fiber.Ctx) error {
	users, err := m.chat.ListUsers(c.UserContext(), queryLimit(c))
	if err != nil {
		return chatError(c, err, "Failed to list users")
	}
	return c.JSON(UserListResponse{Users: users})
}

// getUser handles GET /api/v1/users/:id.
func (m *APIModule) getUser(c *fiber.Ctx) error {
	user, err := m.chat.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return chatError(c, err, "Failed to get user")
	}
	return c.JSON(user)
}

// createChat handles POST /api/v1/chats.
func (m *APIModule) createChat(c *fiber.Ctx) error {
	var req CreateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	created, err := m.chat.CreateChat(c.UserContext(), req.Title, req.CreatedBy)
	if err != nil {
		return chatError(c, err, "Failed to create chat")
	}
	return c.Status(fiber.StatusCreated).JSON(ChatResponse{Chat: created})
}

// listChats handles GET /api/v1/chats.
func (m *APIModule) listChats(c *fiber.Ctx) error {
	chats, err := m.chat.ListChats(c.UserContext(), c.Query("createdBy"), queryLimit(c))
	if err != nil {
		return chatError(c, err, "Failed to list chats")
	}

	response := ChatListResponse{
		Chats: make([]ChatResponse, 0, len(chats)),
	}
	for _, ch := range chats {
		response.Chats = append(response.Chats, ChatResponse{
			Chat:    ch,
			Members: m.backends.Relay.RoomSize(ch.ID),
		})
	}
	return c.JSON(response)
}

// getChat handles GET /api/v1/chats/:id.
func (m *APIModule) getChat(c *fiber.Ctx) error {
	found, err := m.chat.GetChat(c.UserContext(), c.Params("id"))
	if err != nil {
		return chatError(c, err, "Failed to get chat")
	}
	return c.JSON(ChatResponse{
		Chat:    found,
		Members: m.backends.Relay.RoomSize(found.ID),
	})
}

// getHistory handles GET /api/v1/chats/:id/messages.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	chatID := c.Params("id")
	limit := queryLimit(c)
	if limit == 0 {
		limit = chat.DefaultListLimit
	}

	messages, err := m.chat.ListMessages(c.UserContext(), chatID, limit)
	if err != nil {
		return chatError(c, err, "Failed to get message history")
	}
	return c.JSON(HistoryResponse{ChatID: chatID, Messages: messages})
}

// postMessage handles POST /api/v1/chats/:id/messages. The relay fans the
// message out to live connections through the MessageCreated event.
func (m *APIModule) postMessage(c *fiber.Ctx) error {
	var req PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	msg, err := m.chat.CreateMessage(c.UserContext(), c.Params("id"), req.SenderID, req.Content, events.OriginAPI)
	if err != nil {
		return chatError(c, err, "Failed to save message")
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// getMembers handles GET /api/v1/chats/:id/members.
func (m *APIModule) getMembers(c *fiber.Ctx) error {
	chatID := c.Params("id")
	clients := m.backends.Relay.Members(chatID)
	if clients == nil {
		clients = []string{}
	}
	return c.JSON(MembersResponse{
		ChatID:  chatID,
		Count:   len(clients),
		Clients: clients,
	})
}
