package main

import (
	"context"
	"log"
	"os"

	"github.com/example/cropcare-gateway/config"
	"github.com/example/cropcare-gateway/modules/advisory"
	"github.com/example/cropcare-gateway/modules/api"
	"github.com/example/cropcare-gateway/modules/cache"
	"github.com/example/cropcare-gateway/modules/chat"
	"github.com/example/cropcare-gateway/modules/inference"
	"github.com/example/cropcare-gateway/modules/listing"
	"github.com/example/cropcare-gateway/modules/relay"
	"github.com/example/cropcare-gateway/modules/weather"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== CropCare Gateway - Disease Detection + Farmer Chat ===")

	cfg := config.Load()

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	cacheModule := cache.NewModule(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.CachePrefix,
	})
	chatModule := chat.NewModule(chat.Config{
		Driver:      cfg.DBDriver,
		Path:        cfg.DBPath,
		DatabaseURL: cfg.DatabaseURL,
		Debug:       cfg.DBDebug,
	})
	relayModule := relay.NewModule(relay.Config{
		IdleTimeout:  cfg.RelayIdleTimeout,
		WriteTimeout: cfg.RelayWriteTimeout,
		RateLimit:    cfg.RelayRateLimit,
		RateBurst:    cfg.RelayRateBurst,
	}, cfg.RelayPruneSchedule, logger.WithModule("relay"))
	inferenceModule := inference.NewModule(inference.Config{
		ServerURL:       cfg.ModelServerURL,
		ClassesPath:     cfg.ModelClassesPath,
		CropClassesPath: cfg.CropClassesPath,
		NumClasses:      cfg.ModelNumClasses,
		Architecture:    cfg.ModelArchitecture,
		Device:          cfg.ModelDevice,
		MinConfidence:   cfg.ModelMinConfidence,
		Timeout:         cfg.ModelTimeout,
	})
	advisoryModule := advisory.NewModule(advisory.Config{
		Gemini: advisory.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiURL,
			Timeout: cfg.GeminiTimeout,
		},
		CacheTTL: cfg.AdvisoryCacheTTL,
	}, cacheModule, logger.WithModule("advisory"))
	weatherModule := weather.NewModule(weather.Config{
		BaseURL:  cfg.WeatherAPIURL,
		APIKey:   cfg.WeatherAPIKey,
		CacheTTL: cfg.WeatherCacheTTL,
		Timeout:  cfg.WeatherTimeout,
	}, cacheModule)
	listingModule, err := listing.NewModule()
	if err != nil {
		log.Fatalf("Failed to create listing module: %v", err)
	}
	apiModule := api.NewModule(api.Config{
		Port:            cfg.HTTPPort,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
	})

	// Inject in-process services into the API module
	// (These are not exposed via ServiceContainer: image payloads exceed
	// the bus message size and the relay owns live sockets.)
	apiModule.SetBackends(api.Backends{
		Relay:     relayModule.GetRelay(),
		Predictor: inferenceModule.Service(),
		Advisor:   advisoryModule.Service(),
		Weather:   weatherModule.Service(),
		Listings:  listingModule.Store(),
		Limiter:   cacheModule,
	})

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - cache: Redis connections (must start before advisory/weather/api use it)
	// - chat: Persistence (ServiceProviderModule + EventEmitterModule)
	// - relay: Room fan-out (depends on chat, consumes MessageCreated)
	// - inference, advisory, weather, listing: in-process services
	// - api: Driving adapter (Fiber HTTP/WebSocket server, depends on chat)
	app.Register(cacheModule)
	app.Register(chatModule)
	app.Register(relayModule)
	app.Register(inferenceModule)
	app.Register(advisoryModule)
	app.Register(weatherModule)
	app.Register(listingModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Printf("  - Database: %s", cfg.DBDriver)
	if cfg.CacheEnabled() {
		log.Printf("  - Cache: Redis at %s", cfg.RedisAddr)
	} else {
		log.Println("  - Cache: disabled (set REDIS_ADDR to enable)")
	}
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.HTTPPort)
	log.Println("  GET    /                              - Service banner")
	log.Println("  GET    /health                        - Health check")
	log.Println("  POST   /predict                       - Classify a leaf image (multipart 'file')")
	log.Println("  GET    /classes                       - Disease classes")
	log.Println("  POST   /api/v1/crops/recommend        - Crop recommendation")
	log.Println("  GET    /api/v1/weather?lat=&lon=      - Current weather")
	log.Println("  POST   /api/v1/users                  - Register a user")
	log.Println("  POST   /api/v1/chats                  - Create a chat")
	log.Println("  GET    /api/v1/chats/:id/messages     - Message history")
	log.Println("  POST   /api/v1/chats/:id/messages     - Post a message")
	log.Println("  GET    /api/v1/listings               - Marketplace listings")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/ws/chat/:roomId):", cfg.HTTPPort)
	log.Println(`  Send: {"senderId":"<user id>","content":"hello"}`)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
