package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/cropcare-gateway/domain/chat"
	"github.com/google/uuid"
)

// Service provides user, chat and message operations on top of the repository.
type Service struct {
	repo *Repository
	now  func() time.Time
}

// NewService creates a new chat service.
func NewService(repo *Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// CreateUser registers a new user.
func (s *Service) CreateUser(ctx context.Context, name, email, role string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateRole(role); err != nil {
		return nil, err
	}
	if role == "" {
		role = domain.RoleFarmer
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

// ListUsers returns registered users.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	return s.repo.ListUsers(ctx, normalizeLimit(limit))
}

// CreateChat creates a new chat owned by createdBy.
func (s *Service) CreateChat(ctx context.Context, title, createdBy string) (*domain.Chat, error) {
	title = strings.TrimSpace(title)
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if createdBy == "" {
		return nil, ErrCreatorEmpty
	}

	chat := &domain.Chat{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedBy: createdBy,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// GetChat retrieves a chat by ID.
func (s *Service) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	return s.repo.FindChatByID(ctx, chatID)
}

// ListChats returns chats, optionally filtered by creator.
func (s *Service) ListChats(ctx context.Context, createdBy string, limit int) ([]*domain.Chat, error) {
	return s.repo.ListChats(ctx, createdBy, normalizeLimit(limit))
}

// CreateMessage persists a new message. It fails when the chat or the
// sender does not exist.
func (s *Service) CreateMessage(ctx context.Context, chatID, senderID, content string) (*domain.Message, error) {
	if chatID == "" {
		return nil, ErrChatNotFound
	}
	if senderID == "" {
		return nil, ErrSenderEmpty
	}
	if err := ValidateMessage(content); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message in chat %s: %w", chatID, err)
	}
	return msg, nil
}

// ListMessages returns the latest messages of a chat in chronological order.
func (s *Service) ListMessages(ctx context.Context, chatID string, limit int) ([]*domain.Message, error) {
	if _, err := s.repo.FindChatByID(ctx, chatID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, chatID, normalizeLimit(limit))
}
