package advisory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/example/cropcare-gateway/modules/cache"
	"github.com/go-monolith/mono/pkg/types"
)

// Fallback texts returned in place of generated advice.
const (
	TextNoRecommendation = "No AI recommendation available currently."
	TextFetchFailed      = "Error while fetching AI-based recommendation."
	TextLowConfidence    = "Prediction confidence is low. Please upload a clearer image of the affected leaf."
)

// Generator produces free-text advice for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StoreProvider hands out the cache store once it is connected.
type StoreProvider interface {
	Store() cache.Store
}

// Recommendations pairs curated and generated advice.
type Recommendations struct {
	Static  StaticInfo `json:"static"`
	Dynamic string     `json:"dynamic"`
}

// Service combines the static table with generated advice.
type Service struct {
	generator Generator
	stores    StoreProvider
	ttl       time.Duration
	logger    types.Logger
}

// NewService creates an advisory service. stores may be nil.
func NewService(generator Generator, stores StoreProvider, ttl time.Duration, logger types.Logger) *Service {
	return &Service{
		generator: generator,
		stores:    stores,
		ttl:       ttl,
		logger:    logger,
	}
}

// BuildPrompt renders the advisor prompt for a prediction.
func BuildPrompt(disease string, confidence float64) string {
	return "You are an expert agricultural advisor for Indian farmers. " +
		fmt.Sprintf("A crop has been predicted to have **%s** with confidence %.1f%%. ", disease, confidence*100) +
		"Provide detailed treatment, prevention, and organic solutions in simple English language, " +
		"focusing on practical local steps farmers can take. Make the tips concise and properly formatted. " +
		"Very less text heavy and more spaces and to the point.Do not use many symbols and no paragraph " +
		"should be more than a couple of lines. "
}

// Recommend never fails: generation problems degrade to fallback texts.
func (s *Service) Recommend(ctx context.Context, disease string, confidence float64, lowConfidence bool) Recommendations {
	rec := Recommendations{Static: Lookup(disease)}
	if lowConfidence {
		rec.Dynamic = TextLowConfidence
		return rec
	}
	rec.Dynamic = s.dynamic(ctx, disease, confidence)
	return rec
}

func (s *Service) dynamic(ctx context.Context, disease string, confidence float64) string {
	key := cacheKey(disease, confidence)
	store := s.store()

	var cached string
	if hit, err := store.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("Advisory cache read failed", "key", key, "error", err)
	} else if hit {
		return cached
	}

	if s.generator == nil {
		return TextFetchFailed
	}
	text, err := s.generator.Generate(ctx, BuildPrompt(disease, confidence))
	if err != nil {
		s.logger.Error("Gemini request failed", "disease", disease, "error", err)
		return TextFetchFailed
	}
	if text == "" {
		s.logger.Warn("Gemini returned no text", "disease", disease)
		return TextNoRecommendation
	}

	if s.ttl > 0 {
		if err := store.SetWithTTL(ctx, key, text, s.ttl); err != nil {
			s.logger.Warn("Advisory cache write failed", "key", key, "error", err)
		}
	}
	return text
}

func (s *Service) store() cache.Store {
	if s.stores == nil {
		return cache.Noop{}
	}
	return s.stores.Store()
}

// cacheKey buckets confidence into deciles so near-identical predictions
// share generated advice.
func cacheKey(disease string, confidence float64) string {
	decile := int(math.Floor(confidence * 10))
	if decile > 9 {
		decile = 9
	}
	if decile < 0 {
		decile = 0
	}
	return fmt.Sprintf("advisory:%s:%d", strings.ToLower(disease), decile)
}
