package weather

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
)

// Module exposes the weather Service.
type Module struct {
	service *Service
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new weather module.
func NewModule(cfg Config, stores StoreProvider) *Module {
	return &Module{service: NewService(cfg, stores)}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "weather"
}

// Start logs whether the provider is configured.
func (m *Module) Start(_ context.Context) error {
	if !m.service.Configured() {
		log.Println("[weather] Warning: WEATHER_API_KEY not set, weather lookups disabled")
	}
	log.Printf("[weather] Module started (cache TTL: %s)", m.service.cfg.CacheTTL)
	return nil
}

// Stop is a no-op.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[weather] Module stopped")
	return nil
}

// Service returns the weather service.
func (m *Module) Service() *Service {
	return m.service
}

// Health reports the provider configuration.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if !m.service.Configured() {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"provider": m.service.cfg.BaseURL,
		},
	}
}
