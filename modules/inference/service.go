package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Config holds the model server settings.
type Config struct {
	ServerURL       string
	ClassesPath     string
	CropClassesPath string
	NumClasses      int
	Architecture    string
	Device          string
	MinConfidence   float64
	Timeout         time.Duration
}

// Service classifies leaf images and ranks crops by calling a model
// server over HTTP.
type Service struct {
	cfg Config

	mu          sync.RWMutex
	classes     []string
	cropClasses []string
}

// NewService creates a service over already loaded class lists.
func NewService(cfg Config, classes, cropClasses []string) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return &Service{cfg: cfg, classes: classes, cropClasses: cropClasses}
}

// SetClasses replaces the class lists.
func (s *Service) SetClasses(classes, cropClasses []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = classes
	s.cropClasses = cropClasses
}

func (s *Service) classList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classes
}

func (s *Service) cropList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cropClasses
}

// Classes returns the disease class names in model output order.
func (s *Service) Classes() ([]string, error) {
	classes := s.classList()
	if len(classes) == 0 {
		return nil, ErrClassesNotLoaded
	}
	return classes, nil
}

// Ready reports whether predictions can be served.
func (s *Service) Ready() bool {
	return s.cfg.ServerURL != "" && len(s.classList()) > 0
}

// ModelInfo describes the served image model.
func (s *Service) ModelInfo() ModelInfo {
	return ModelInfo{
		Architecture: s.cfg.Architecture,
		NumClasses:   len(s.classList()),
		Device:       s.cfg.Device,
	}
}

// ValidateImage checks the upload before it is sent to the model.
func ValidateImage(contentType string, data []byte) error {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return ErrInvalidContentType
	}
	if len(data) > MaxImageSize {
		return ErrImageTooLarge
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return nil
}

// Classify predicts the disease shown in an image.
func (s *Service) Classify(ctx context.Context, contentType string, data []byte) (*Prediction, error) {
	if err := ValidateImage(contentType, data); err != nil {
		return nil, err
	}
	classes := s.classList()
	if s.cfg.ServerURL == "" || len(classes) == 0 {
		return nil, ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agent := fiber.Post(s.cfg.ServerURL + "/v1/models/disease:predict")
	agent.ContentType(contentType)
	agent.Body(data)
	agent.Timeout(s.cfg.Timeout)

	out, err := predict(agent)
	if err != nil {
		return nil, err
	}

	probs := out.Probabilities
	if len(probs) == 0 {
		probs = softmax(out.Logits)
	}
	if len(probs) != len(classes) {
		return nil, fmt.Errorf("%w: got %d scores for %d classes", ErrModelResponse, len(probs), len(classes))
	}

	idx := argmax(probs)
	disease := classes[idx]
	confidence := round4(probs[idx])
	return &Prediction{
		Disease:       disease,
		Confidence:    confidence,
		IsHealthy:     strings.Contains(strings.ToLower(disease), "healthy"),
		LowConfidence: confidence < s.cfg.MinConfidence,
	}, nil
}

// ValidateFeatures checks the ranges the crop model was trained on.
func ValidateFeatures(f Features) error {
	for _, v := range f.vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: values must be finite", ErrInvalidFeatures)
		}
	}
	switch {
	case f.N < 0 || f.P < 0 || f.K < 0:
		return fmt.Errorf("%w: N, P and K must be non-negative", ErrInvalidFeatures)
	case f.Humidity < 0 || f.Humidity > 100:
		return fmt.Errorf("%w: humidity must be between 0 and 100", ErrInvalidFeatures)
	case f.PH < 0 || f.PH > 14:
		return fmt.Errorf("%w: ph must be between 0 and 14", ErrInvalidFeatures)
	case f.Rainfall < 0:
		return fmt.Errorf("%w: rainfall must be non-negative", ErrInvalidFeatures)
	}
	return nil
}

// RecommendCrops ranks crops for the given conditions and returns the
// topK best, or all of them when topK <= 0.
func (s *Service) RecommendCrops(ctx context.Context, f Features, topK int) ([]RankedCrop, error) {
	if err := ValidateFeatures(f); err != nil {
		return nil, err
	}
	crops := s.cropList()
	if s.cfg.ServerURL == "" || len(crops) == 0 {
		return nil, ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agent := fiber.Post(s.cfg.ServerURL + "/v1/models/crop:predict")
	agent.JSON(cropRequest{Features: f.vector()})
	agent.Timeout(s.cfg.Timeout)

	out, err := predict(agent)
	if err != nil {
		return nil, err
	}

	probs := out.Probabilities
	if len(probs) == 0 {
		probs = softmax(out.Logits)
	}
	if len(probs) != len(crops) {
		return nil, fmt.Errorf("%w: got %d scores for %d crops", ErrModelResponse, len(probs), len(crops))
	}
	return rank(crops, probs, topK), nil
}

func predict(agent *fiber.Agent) (*predictResponse, error) {
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("model server request failed: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrModelResponse, code)
	}

	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelResponse, err)
	}
	return &out, nil
}
