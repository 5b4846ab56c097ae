package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/cropcare-gateway/modules/chat"
	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// bodyLimit leaves headroom over the 10MB image cap so oversized uploads
// reach the handler and get a descriptive error.
const bodyLimit = 12 * 1024 * 1024

// Config holds HTTP server settings.
type Config struct {
	Port            int
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	cfg      Config
	app      *fiber.App
	chat     chat.ChatPort
	backends Backends
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg Config) *APIModule {
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 30
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	return &APIModule{cfg: cfg}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		m.chat = chat.NewChatAdapter(container)
	}
}

// SetBackends sets the in-process services (called from main.go).
func (m *APIModule) SetBackends(b Backends) {
	m.backends = b
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.chat == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}
	if err := m.backends.validate(); err != nil {
		return err
	}

	m.app = m.buildApp()

	addr := fmt.Sprintf(":%d", m.cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	// Wait briefly to catch immediate startup errors
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on %s", addr)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{"port": m.cfg.Port}
	if m.backends.Relay != nil {
		details["connected_clients"] = m.backends.Relay.ConnectionCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

func (b Backends) validate() error {
	switch {
	case b.Relay == nil:
		return fmt.Errorf("relay dependency not set")
	case b.Predictor == nil:
		return fmt.Errorf("predictor dependency not set")
	case b.Advisor == nil:
		return fmt.Errorf("advisor dependency not set")
	case b.Weather == nil:
		return fmt.Errorf("weather dependency not set")
	case b.Listings == nil:
		return fmt.Errorf("listing store dependency not set")
	}
	return nil
}

// buildApp creates the Fiber app with middleware and routes.
func (m *APIModule) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		BodyLimit:             bodyLimit,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[api] ${status} ${method} ${path} ${latency}\n",
		Next:   websocket.IsWebSocketUpgrade,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.setupRoutes(app)
	return app
}

// rateLimiter guards the model-backed endpoints.
func (m *APIModule) rateLimiter() fiber.Handler {
	cfg := limiter.Config{
		Max:        m.cfg.RateLimitMax,
		Expiration: m.cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many requests, please retry later",
			})
		},
	}
	if m.backends.Limiter != nil {
		if storage := m.backends.Limiter.LimiterStorage(); storage != nil {
			cfg.Storage = storage
		}
	}
	return limiter.New(cfg)
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
