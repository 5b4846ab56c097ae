package relay

import (
	"context"
	"fmt"
	"log"

	domain "github.com/example/cropcare-gateway/domain/chat"
	"github.com/example/cropcare-gateway/events"
	"github.com/example/cropcare-gateway/modules/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/robfig/cron"
)

// Module owns the process-wide relay and keeps it wired to the chat
// persistence service and event bus.
type Module struct {
	relay         *Relay
	chat          chat.ChatPort
	pruneSchedule string
	scheduler     *cron.Cron
	logger        types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the relay module. An empty pruneSchedule disables
// empty-room pruning.
func NewModule(cfg Config, pruneSchedule string, logger types.Logger) *Module {
	m := &Module{
		pruneSchedule: pruneSchedule,
		logger:        logger,
	}
	m.relay = New(MessageStoreFunc(m.persist), cfg, logger)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "chat" {
		m.chat = chat.NewChatAdapter(container)
	}
}

// GetRelay returns the relay (wired into the API module from main.go).
func (m *Module) GetRelay() *Relay {
	return m.relay
}

// Start validates wiring and schedules room pruning.
func (m *Module) Start(_ context.Context) error {
	if m.chat == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}

	if m.pruneSchedule != "" {
		m.scheduler = cron.New()
		if err := m.scheduler.AddFunc(m.pruneSchedule, m.prune); err != nil {
			return fmt.Errorf("invalid prune schedule %q: %w", m.pruneSchedule, err)
		}
		m.scheduler.Start()
	}

	log.Printf("[relay] Module started (prune schedule: %q)", m.pruneSchedule)
	return nil
}

// Stop closes every connection.
func (m *Module) Stop(_ context.Context) error {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
	connections := m.relay.ConnectionCount()
	m.relay.Close()
	log.Printf("[relay] Module stopped - %d connections were open", connections)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":       len(m.relay.Rooms()),
			"connections": m.relay.ConnectionCount(),
		},
	}
}

// RegisterEventConsumers subscribes to messages persisted outside the relay.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageCreatedV1, m.handleMessageCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageCreated consumer: %w", err)
	}

	log.Println("[relay] Registered event consumers: MessageCreated")
	return nil
}

// handleMessageCreated fans out messages created through the REST API.
// WebSocket messages were already broadcast by Dispatch.
func (m *Module) handleMessageCreated(_ context.Context, event events.MessageCreatedEvent, _ *mono.Msg) error {
	if event.Origin == events.OriginWebSocket {
		return nil
	}

	delivery := m.relay.Broadcast(event.ChatID, NewOutboundMessage(&domain.Message{
		ID:        event.MessageID,
		ChatID:    event.ChatID,
		SenderID:  event.SenderID,
		Content:   event.Content,
		CreatedAt: event.CreatedAt,
	}))
	m.logger.Debug("Relayed API message",
		"roomID", event.ChatID,
		"delivered", delivery.Delivered,
		"dropped", len(delivery.Dropped))
	return nil
}

func (m *Module) persist(ctx context.Context, chatID, senderID, content string) (*domain.Message, error) {
	if m.chat == nil {
		return nil, fmt.Errorf("chat adapter dependency not set")
	}
	return m.chat.CreateMessage(ctx, chatID, senderID, content, events.OriginWebSocket)
}

func (m *Module) prune() {
	if n := m.relay.PruneEmptyRooms(); n > 0 {
		m.logger.Info("Pruned empty rooms", "count", n)
	}
}
