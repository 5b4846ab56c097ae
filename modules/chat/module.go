package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/cropcare-gateway/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds database settings for the chat module.
type Config struct {
	Driver      string // "sqlite" or "postgres"
	Path        string
	DatabaseURL string
	Debug       bool
}

// Module is the persistence service for users, chats and messages.
type Module struct {
	cfg      Config
	db       *gorm.DB
	service  *Service
	eventBus mono.EventBus
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(cfg Config) *Module {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.Path == "" {
		cfg.Path = "cropcare.db"
	}
	return &Module{cfg: cfg}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageCreatedV1.ToBase(),
		events.ChatCreatedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	registrations := []struct {
		name     string
		register func() error
	}{
		{ServiceCreateUser, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceCreateUser, json.Unmarshal, json.Marshal, m.createUser)
		}},
		{ServiceGetUser, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceGetUser, json.Unmarshal, json.Marshal, m.getUser)
		}},
		{ServiceListUsers, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListUsers, json.Unmarshal, json.Marshal, m.listUsers)
		}},
		{ServiceCreateChat, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceCreateChat, json.Unmarshal, json.Marshal, m.createChat)
		}},
		{ServiceGetChat, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceGetChat, json.Unmarshal, json.Marshal, m.getChat)
		}},
		{ServiceListChats, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListChats, json.Unmarshal, json.Marshal, m.listChats)
		}},
		{ServiceCreateMessage, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceCreateMessage, json.Unmarshal, json.Marshal, m.createMessage)
		}},
		{ServiceListMessages, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListMessages, json.Unmarshal, json.Marshal, m.listMessages)
		}},
	}

	for _, r := range registrations {
		if err := r.register(); err != nil {
			return fmt.Errorf("failed to register %s service: %w", r.name, err)
		}
	}

	log.Printf("[chat] Registered services: services.chat.{create-user,get-user,list-users,create-chat,get-chat,list-chats,create-message,list-messages}")
	return nil
}

// Start opens the database connection and runs migrations.
func (m *Module) Start(_ context.Context) error {
	logLevel := logger.Silent
	if m.cfg.Debug {
		logLevel = logger.Info
	}

	dialector, err := m.dialector()
	if err != nil {
		return err
	}

	log.Printf("[chat] Connecting to %s database", m.cfg.Driver)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	repo := NewRepository(db)
	if err := repo.Migrate(); err != nil {
		return err
	}
	m.service = NewService(repo)

	log.Println("[chat] Module started successfully")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	log.Println("[chat] Database connection closed")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get sql.DB: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.cfg.Driver,
		},
	}
}

func (m *Module) dialector() (gorm.Dialector, error) {
	switch m.cfg.Driver {
	case "sqlite":
		return sqlite.Open(m.cfg.Path), nil
	case "postgres":
		if m.cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		return postgres.Open(m.cfg.DatabaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", m.cfg.Driver)
	}
}

// Service handlers

func (m *Module) createUser(ctx context.Context, req CreateUserRequest, _ *mono.Msg) (CreateUserResponse, error) {
	user, err := m.service.CreateUser(ctx, req.Name, req.Email, req.Role)
	if err != nil {
		return CreateUserResponse{}, err
	}
	return CreateUserResponse{User: user}, nil
}

func (m *Module) getUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return GetUserResponse{}, err
	}
	return GetUserResponse{User: user}, nil
}

func (m *Module) listUsers(ctx context.Context, req ListUsersRequest, _ *mono.Msg) (ListUsersResponse, error) {
	users, err := m.service.ListUsers(ctx, req.Limit)
	if err != nil {
		return ListUsersResponse{}, err
	}
	return ListUsersResponse{Users: users}, nil
}

func (m *Module) createChat(ctx context.Context, req CreateChatRequest, _ *mono.Msg) (CreateChatResponse, error) {
	chat, err := m.service.CreateChat(ctx, req.Title, req.CreatedBy)
	if err != nil {
		return CreateChatResponse{}, err
	}

	event := events.ChatCreatedEvent{
		ChatID:    chat.ID,
		Title:     chat.Title,
		CreatedBy: chat.CreatedBy,
		Timestamp: chat.CreatedAt,
	}
	if m.eventBus != nil {
		if err := events.ChatCreatedV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[chat] Warning: failed to publish ChatCreated event: %v", err)
		}
	}

	return CreateChatResponse{Chat: chat}, nil
}

func (m *Module) getChat(ctx context.Context, req GetChatRequest, _ *mono.Msg) (GetChatResponse, error) {
	chat, err := m.service.GetChat(ctx, req.ChatID)
	if err != nil {
		return GetChatResponse{}, err
	}
	return GetChatResponse{Chat: chat}, nil
}

func (m *Module) listChats(ctx context.Context, req ListChatsRequest, _ *mono.Msg) (ListChatsResponse, error) {
	chats, err := m.service.ListChats(ctx, req.CreatedBy, req.Limit)
	if err != nil {
		return ListChatsResponse{}, err
	}
	return ListChatsResponse{Chats: chats}, nil
}

func (m *Module) createMessage(ctx context.Context, req CreateMessageRequest, _ *mono.Msg) (CreateMessageResponse, error) {
	msg, err := m.service.CreateMessage(ctx, req.ChatID, req.SenderID, req.Content)
	if err != nil {
		return CreateMessageResponse{}, err
	}

	origin := req.Origin
	if origin == "" {
		origin = events.OriginAPI
	}
	event := events.MessageCreatedEvent{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Origin:    origin,
		CreatedAt: msg.CreatedAt,
	}
	if m.eventBus != nil {
		if err := events.MessageCreatedV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[chat] Warning: failed to publish MessageCreated event: %v", err)
		}
	}

	return CreateMessageResponse{Message: msg}, nil
}

func (m *Module) listMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	messages, err := m.service.ListMessages(ctx, req.ChatID, req.Limit)
	if err != nil {
		return ListMessagesResponse{}, err
	}
	return ListMessagesResponse{Messages: messages}, nil
}
