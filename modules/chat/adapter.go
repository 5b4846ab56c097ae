package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/example/cropcare-gateway/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the persistence operations other modules consume.
type ChatPort interface {
	CreateUser(ctx context.Context, name, email, role string) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, limit int) ([]*domain.User, error)
	CreateChat(ctx context.Context, title, createdBy string) (*domain.Chat, error)
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	ListChats(ctx context.Context, createdBy string, limit int) ([]*domain.Chat, error)
	CreateMessage(ctx context.Context, chatID, senderID, content, origin string) (*domain.Message, error)
	ListMessages(ctx context.Context, chatID string, limit int) ([]*domain.Message, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// CreateUser registers a user.
func (a *ChatAdapter) CreateUser(ctx context.Context, name, email, role string) (*domain.User, error) {
	req := CreateUserRequest{Name: name, Email: email, Role: role}
	var resp CreateUserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", mapServiceError(err))
	}
	return resp.User, nil
}

// GetUser retrieves a user by ID.
func (a *ChatAdapter) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", mapServiceError(err))
	}
	return resp.User, nil
}

// ListUsers returns registered users.
func (a *ChatAdapter) ListUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	req := ListUsersRequest{Limit: limit}
	var resp ListUsersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListUsers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", mapServiceError(err))
	}
	return resp.Users, nil
}

// CreateChat creates a chat.
func (a *ChatAdapter) CreateChat(ctx context.Context, title, createdBy string) (*domain.Chat, error) {
	req := CreateChatRequest{Title: title, CreatedBy: createdBy}
	var resp CreateChatResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateChat,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", mapServiceError(err))
	}
	return resp.Chat, nil
}

// GetChat retrieves a chat by ID.
func (a *ChatAdapter) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	req := GetChatRequest{ChatID: chatID}
	var resp GetChatResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetChat,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", mapServiceError(err))
	}
	return resp.Chat, nil
}

// ListChats lists chats, optionally filtered by creator.
func (a *ChatAdapter) ListChats(ctx context.Context, createdBy string, limit int) ([]*domain.Chat, error) {
	req := ListChatsRequest{CreatedBy: createdBy, Limit: limit}
	var resp ListChatsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListChats,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", mapServiceError(err))
	}
	return resp.Chats, nil
}

// CreateMessage persists a message.
func (a *ChatAdapter) CreateMessage(ctx context.Context, chatID, senderID, content, origin string) (*domain.Message, error) {
	req := CreateMessageRequest{ChatID: chatID, SenderID: senderID, Content: content, Origin: origin}
	var resp CreateMessageResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateMessage,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", mapServiceError(err))
	}
	if resp.Message == nil {
		return nil, fmt.Errorf("failed to create message: empty response")
	}
	return resp.Message, nil
}

// ListMessages returns the message history of a chat.
func (a *ChatAdapter) ListMessages(ctx context.Context, chatID string, limit int) ([]*domain.Message, error) {
	req := ListMessagesRequest{ChatID: chatID, Limit: limit}
	var resp ListMessagesResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListMessages,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", mapServiceError(err))
	}
	return resp.Messages, nil
}

// sentinelErrors lists the errors the adapter restores after a
// request-reply round trip, which carries only the error text.
var sentinelErrors = []error{
	ErrUserNotFound,
	ErrChatNotFound,
	ErrEmailTaken,
	ErrNameEmpty,
	ErrNameTooLong,
	ErrEmailInvalid,
	ErrRoleInvalid,
	ErrTitleEmpty,
	ErrTitleTooLong,
	ErrCreatorEmpty,
	ErrSenderEmpty,
	ErrMessageEmpty,
	ErrMessageTooLong,
	ErrMessageInvalid,
}

// mapServiceError converts service errors back to sentinel errors by
// matching the message text.
func mapServiceError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, sentinel := range sentinelErrors {
		if strings.Contains(msg, sentinel.Error()) {
			return sentinel
		}
	}
	return err
}
