// Package weather serves current conditions from an OpenWeather-compatible
// API behind a cache-aside layer.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/cropcare-gateway/modules/cache"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidCoordinates = errors.New("latitude must be within [-90, 90] and longitude within [-180, 180]")
	ErrNotConfigured      = errors.New("weather provider not configured")
	ErrUpstream           = errors.New("weather provider request failed")
)

// Observation is a point-in-time reading for a location.
type Observation struct {
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Location     string    `json:"location"`
	TemperatureC float64   `json:"temperature_c"`
	Humidity     float64   `json:"humidity"`
	PressureHPa  float64   `json:"pressure_hpa"`
	WindSpeed    float64   `json:"wind_speed"`
	Description  string    `json:"description"`
	RainfallMM   float64   `json:"rainfall_mm"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Config holds the provider settings.
type Config struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// StoreProvider hands out the cache store once it is connected.
type StoreProvider interface {
	Store() cache.Store
}

// Service fetches observations with cache-aside and collapses concurrent
// misses for the same location into one upstream call.
type Service struct {
	cfg    Config
	stores StoreProvider
	group  singleflight.Group
}

// owmResponse is the subset of the OpenWeather current weather payload
// the service reads.
type owmResponse struct {
	Name string `json:"name"`
	Dt   int64  `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}

// NewService creates a weather service. stores may be nil.
func NewService(cfg Config, stores StoreProvider) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{cfg: cfg, stores: stores}
}

// Configured reports whether an API key is present.
func (s *Service) Configured() bool {
	return s.cfg.APIKey != "" && s.cfg.BaseURL != ""
}

// ValidateCoordinates checks latitude and longitude ranges.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Current returns the latest observation near (lat, lon).
func (s *Service) Current(ctx context.Context, lat, lon float64) (*Observation, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	key := cacheKey(lat, lon)
	store := s.store()

	var cached Observation
	if hit, err := store.Get(ctx, key, &cached); err != nil {
		log.Printf("[weather] Warning: cache read failed for %s: %v", key, err)
	} else if hit {
		return &cached, nil
	}

	// The shared fetch outlives any single caller; a caller that gives up
	// only stops waiting.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		obs, err := s.fetch(fetchCtx, lat, lon)
		if err != nil {
			return nil, err
		}
		if err := store.SetWithTTL(fetchCtx, key, obs, s.cfg.CacheTTL); err != nil {
			log.Printf("[weather] Warning: cache write failed for %s: %v", key, err)
		}
		return obs, nil
	})

	var v any
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		v = res.Val
	}

	obs := *v.(*Observation)
	return &obs, nil
}

func (s *Service) fetch(ctx context.Context, lat, lon float64) (*Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("appid", s.cfg.APIKey)
	query.Set("units", "metric")

	agent := fiber.Get(s.cfg.BaseURL + "/data/2.5/weather")
	agent.QueryString(query.Encode())
	agent.Timeout(s.cfg.Timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, errs[0])
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, code)
	}

	var resp owmResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	obs := &Observation{
		Latitude:     lat,
		Longitude:    lon,
		Location:     resp.Name,
		TemperatureC: resp.Main.Temp,
		Humidity:     resp.Main.Humidity,
		PressureHPa:  resp.Main.Pressure,
		WindSpeed:    resp.Wind.Speed,
		RainfallMM:   resp.Rain.OneHour,
		ObservedAt:   time.Unix(resp.Dt, 0).UTC(),
	}
	if len(resp.Weather) > 0 {
		obs.Description = resp.Weather[0].Description
	}
	return obs, nil
}

func (s *Service) store() cache.Store {
	if s.stores == nil {
		return cache.Noop{}
	}
	return s.stores.Store()
}

// cacheKey rounds to two decimals (about 1 km).
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather:%.2f:%.2f", lat, lon)
}
