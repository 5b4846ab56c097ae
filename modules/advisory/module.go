package advisory

import (
	"context"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Config holds the advisory settings.
type Config struct {
	Gemini   GeminiConfig
	CacheTTL time.Duration
}

// Module exposes the advisory Service.
type Module struct {
	cfg     Config
	gemini  *GeminiClient
	service *Service
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the advisory module. stores may be nil to disable
// caching of generated advice.
func NewModule(cfg Config, stores StoreProvider, logger types.Logger) *Module {
	gemini := NewGeminiClient(cfg.Gemini)
	return &Module{
		cfg:     cfg,
		gemini:  gemini,
		service: NewService(gemini, stores, cfg.CacheTTL, logger),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "advisory"
}

// Start logs whether generated advice is available.
func (m *Module) Start(_ context.Context) error {
	if !m.gemini.Configured() {
		log.Println("[advisory] Warning: GEMINI_API_KEY not set, only static recommendations available")
	}
	log.Printf("[advisory] Module started (model: %s)", m.gemini.cfg.Model)
	return nil
}

// Stop is a no-op.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[advisory] Module stopped")
	return nil
}

// Service returns the advisory service.
func (m *Module) Service() *Service {
	return m.service
}

// Health is always healthy; a missing key only degrades the output.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"gemini_configured": m.gemini.Configured(),
			"model":             m.gemini.cfg.Model,
		},
	}
}
