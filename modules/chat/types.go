package chat

import (
	"errors"
	"strings"
	"unicode/utf8"

	domain "github.com/example/cropcare-gateway/domain/chat"
)

// Validation constants
const (
	MaxNameLength    = 100
	MaxTitleLength   = 100
	MaxMessageLength = 5000
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Service names registered in the chat module's container.
const (
	ServiceCreateUser    = "create-user"
	ServiceGetUser       = "get-user"
	ServiceListUsers     = "list-users"
	ServiceCreateChat    = "create-chat"
	ServiceGetChat       = "get-chat"
	ServiceListChats     = "list-chats"
	ServiceCreateMessage = "create-message"
	ServiceListMessages  = "list-messages"
)

// Lookup errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrChatNotFound = errors.New("chat not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Validation errors
var (
	ErrNameEmpty      = errors.New("name cannot be empty")
	ErrNameTooLong    = errors.New("name exceeds maximum length")
	ErrEmailInvalid   = errors.New("email is invalid")
	ErrRoleInvalid    = errors.New("role must be farmer, buyer or expert")
	ErrTitleEmpty     = errors.New("chat title cannot be empty")
	ErrTitleTooLong   = errors.New("chat title exceeds maximum length")
	ErrCreatorEmpty   = errors.New("chat creator cannot be empty")
	ErrSenderEmpty    = errors.New("sender id cannot be empty")
	ErrMessageEmpty   = errors.New("message content cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrMessageInvalid = errors.New("message contains invalid characters")
)

// CreateUserRequest is the request for the create-user service.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CreateUserResponse is the response of the create-user service.
type CreateUserResponse struct {
	User *domain.User `json:"user"`
}

// GetUserRequest is the request for the get-user service.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse is the response of the get-user service.
type GetUserResponse struct {
	User *domain.User `json:"user"`
}

// ListUsersRequest is the request for the list-users service.
type ListUsersRequest struct {
	Limit int `json:"limit"`
}

// ListUsersResponse is the response of the list-users service.
type ListUsersResponse struct {
	Users []*domain.User `json:"users"`
}

// CreateChatRequest is the request for the create-chat service.
type CreateChatRequest struct {
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
}

// CreateChatResponse is the response of the create-chat service.
type CreateChatResponse struct {
	Chat *domain.Chat `json:"chat"`
}

// GetChatRequest is the request for the get-chat service.
type GetChatRequest struct {
	ChatID string `json:"chat_id"`
}

// GetChatResponse is the response of the get-chat service.
type GetChatResponse struct {
	Chat *domain.Chat `json:"chat"`
}

// ListChatsRequest is the request for the list-chats service.
// An empty CreatedBy lists every chat.
type ListChatsRequest struct {
	CreatedBy string `json:"created_by,omitempty"`
	Limit     int    `json:"limit"`
}

// ListChatsResponse is the response of the list-chats service.
type ListChatsResponse struct {
	Chats []*domain.Chat `json:"chats"`
}

// CreateMessageRequest is the request for the create-message service.
type CreateMessageRequest struct {
	ChatID   string `json:"chat_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
	Origin   string `json:"origin"`
}

// CreateMessageResponse is the response of the create-message service.
type CreateMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesRequest is the request for the list-messages service.
type ListMessagesRequest struct {
	ChatID string `json:"chat_id"`
	Limit  int    `json:"limit"`
}

// ListMessagesResponse is the response of the list-messages service.
type ListMessagesResponse struct {
	Messages []*domain.Message `json:"messages"`
}

// ValidateName validates a user display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// ValidateEmail performs a shallow email check.
func ValidateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\n") {
		return ErrEmailInvalid
	}
	return nil
}

// ValidateRole validates a user role. Empty means the default role.
func ValidateRole(role string) error {
	switch role {
	case "", domain.RoleFarmer, domain.RoleBuyer, domain.RoleExpert:
		return nil
	default:
		return ErrRoleInvalid
	}
}

// ValidateTitle validates a chat title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleEmpty
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// ValidateMessage validates a message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// normalizeLimit clamps a list limit into [1, MaxListLimit].
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
