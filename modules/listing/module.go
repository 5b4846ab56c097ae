package listing

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
)

// Module exposes the listing Store.
type Module struct {
	store *Store
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new listing module with an empty store.
func NewModule() (*Module, error) {
	store, err := NewStore()
	if err != nil {
		return nil, err
	}
	return &Module{store: store}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "listing"
}

// Start is a no-op; the store is ready on construction.
func (m *Module) Start(_ context.Context) error {
	log.Println("[listing] Module started (in-memory store)")
	return nil
}

// Stop logs how many listings are dropped with the process.
func (m *Module) Stop(_ context.Context) error {
	log.Printf("[listing] Module stopped - %d listings dropped", m.store.Count())
	return nil
}

// Store returns the listing store.
func (m *Module) Store() *Store {
	return m.store
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"listings": m.store.Count(),
		},
	}
}
