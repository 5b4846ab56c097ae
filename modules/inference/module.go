package inference

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
)

// Module loads the class lists and exposes the inference Service.
type Module struct {
	cfg     Config
	service *Service
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new inference module.
func NewModule(cfg Config) *Module {
	if cfg.NumClasses <= 0 {
		cfg.NumClasses = 38
	}
	if cfg.Architecture == "" {
		cfg.Architecture = "ResNet18"
	}
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	return &Module{cfg: cfg, service: NewService(cfg, nil, nil)}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "inference"
}

// Start loads the disease and crop class lists.
func (m *Module) Start(_ context.Context) error {
	classes, found, err := LoadClasses(m.cfg.ClassesPath, m.cfg.NumClasses)
	if err != nil {
		return err
	}
	if !found {
		log.Printf("[inference] Warning: %s not found, using %d placeholder classes", m.cfg.ClassesPath, len(classes))
	}

	// Crop ranking needs real names; placeholders are never served.
	var cropClasses []string
	if m.cfg.CropClassesPath != "" {
		crops, cropsFound, err := LoadClasses(m.cfg.CropClassesPath, 0)
		if err != nil {
			return err
		}
		if cropsFound {
			cropClasses = crops
		} else {
			log.Printf("[inference] Warning: %s not found, crop recommendation disabled", m.cfg.CropClassesPath)
		}
	}

	m.service.SetClasses(classes, cropClasses)
	if m.cfg.ServerURL == "" {
		log.Println("[inference] Warning: MODEL_SERVER_URL not set, predictions disabled")
	}

	log.Printf("[inference] Module started (%d disease classes, %d crops)", len(classes), len(cropClasses))
	return nil
}

// Stop is a no-op; the service holds no connections.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[inference] Module stopped")
	return nil
}

// Service returns the inference service. Class lists are loaded by Start.
func (m *Module) Service() *Service {
	return m.service
}

// Health reports whether the model can serve predictions.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if !m.service.Ready() {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("model not loaded (server configured: %t)", m.cfg.ServerURL != ""),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"architecture": m.cfg.Architecture,
			"num_classes":  len(m.service.classList()),
			"crops":        len(m.service.cropList()),
		},
	}
}
