package api

import (
	"context"

	"github.com/example/cropcare-gateway/modules/advisory"
	"github.com/example/cropcare-gateway/modules/inference"
	"github.com/example/cropcare-gateway/modules/listing"
	"github.com/example/cropcare-gateway/modules/relay"
	"github.com/example/cropcare-gateway/modules/weather"
	"github.com/gofiber/fiber/v2"
)

// RoomRelay is the part of the chat relay the API drives.
type RoomRelay interface {
	Serve(ctx context.Context, roomID string, conn relay.Conn) error
	RoomSize(roomID string) int
	Members(roomID string) []string
	Rooms() []string
	ConnectionCount() int
}

// Predictor classifies images and ranks crops.
type Predictor interface {
	Classify(ctx context.Context, contentType string, data []byte) (*inference.Prediction, error)
	RecommendCrops(ctx context.Context, f inference.Features, topK int) ([]inference.RankedCrop, error)
	Classes() ([]string, error)
	ModelInfo() inference.ModelInfo
	Ready() bool
}

// Advisor produces treatment advice for a prediction.
type Advisor interface {
	Recommend(ctx context.Context, disease string, confidence float64, lowConfidence bool) advisory.Recommendations
}

// WeatherSource returns current conditions for a location.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Observation, error)
}

// ListingStore manages produce listings.
type ListingStore interface {
	Create(req listing.CreateRequest) (*listing.Listing, error)
	Get(id string) (*listing.Listing, error)
	List(filter listing.Filter) []*listing.Listing
	Update(id string, patch listing.Patch) (*listing.Listing, error)
	Delete(id string) error
}

// LimiterStorageProvider supplies shared storage for the rate limiter.
// A nil storage keeps counters in memory.
type LimiterStorageProvider interface {
	LimiterStorage() fiber.Storage
}

// Backends are the in-process services the API fronts. They are not
// reachable through the service container and are injected from main.go.
type Backends struct {
	Relay     RoomRelay
	Predictor Predictor
	Advisor   Advisor
	Weather   WeatherSource
	Listings  ListingStore
	Limiter   LimiterStorageProvider
}
