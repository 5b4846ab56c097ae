package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/example/cropcare-gateway/domain/chat"
	"gorm.io/gorm"
)

// Repository provides access to users, chats and messages.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new chat repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the chat tables.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&domain.User{}, &domain.Chat{}, &domain.Message{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateUser saves a new user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByID retrieves a user by its ID.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// ListUsers retrieves users ordered by creation time.
func (r *Repository) ListUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	var users []*domain.User
	if err := r.db.WithContext(ctx).Order("created_at ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateChat saves a new chat. The creator must exist.
func (r *Repository) CreateChat(ctx context.Context, chat *domain.Chat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &domain.User{}, chat.CreatedBy, ErrUserNotFound); err != nil {
			return err
		}
		if err := tx.Create(chat).Error; err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		return nil
	})
}

// FindChatByID retrieves a chat by its ID.
func (r *Repository) FindChatByID(ctx context.Context, id string) (*domain.Chat, error) {
	var chat domain.Chat
	if err := r.db.WithContext(ctx).First(&chat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}
	return &chat, nil
}

// ListChats retrieves chats, optionally only those created by one user.
func (r *Repository) ListChats(ctx context.Context, createdBy string, limit int) ([]*domain.Chat, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if createdBy != "" {
		query = query.Where("created_by = ?", createdBy)
	}

	var chats []*domain.Chat
	if err := query.Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

// CreateMessage saves a new message after checking that both the chat
// and the sender exist.
func (r *Repository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &domain.Chat{}, msg.ChatID, ErrChatNotFound); err != nil {
			return err
		}
		if err := requireRow(tx, &domain.User{}, msg.SenderID, ErrUserNotFound); err != nil {
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	})
}

// ListMessages returns the most recent messages of a chat, oldest first.
func (r *Repository) ListMessages(ctx context.Context, chatID string, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// requireRow returns notFound unless a row of model with the given id exists.
func requireRow(tx *gorm.DB, model any, id string, notFound error) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if count == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
