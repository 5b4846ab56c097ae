package inference

import "errors"

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 10 * 1024 * 1024

// Errors surfaced to HTTP callers.
var (
	ErrInvalidContentType = errors.New("Please upload a valid image (JPEG/PNG).")
	ErrImageTooLarge      = errors.New("Image too large. Max 10MB.")
	ErrInvalidImage       = errors.New("invalid image")
	ErrModelNotLoaded     = errors.New("Model not loaded.")
	ErrClassesNotLoaded   = errors.New("Model classes not loaded.")
	ErrInvalidFeatures    = errors.New("invalid crop features")
	ErrModelResponse      = errors.New("unexpected model server response")
)

// Prediction is the image classifier's verdict.
type Prediction struct {
	Disease       string  `json:"disease"`
	Confidence    float64 `json:"confidence"`
	IsHealthy     bool    `json:"is_healthy"`
	LowConfidence bool    `json:"low_confidence"`
}

// ModelInfo describes the served image model.
type ModelInfo struct {
	Architecture string `json:"architecture"`
	NumClasses   int    `json:"num_classes"`
	Device       string `json:"device"`
}

// Features are the soil and climate inputs of the crop recommender.
type Features struct {
	N           float64 `json:"N"`
	P           float64 `json:"P"`
	K           float64 `json:"K"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

// vector returns the features in model input order.
func (f Features) vector() []float64 {
	return []float64{f.N, f.P, f.K, f.Temperature, f.Humidity, f.PH, f.Rainfall}
}

// RankedCrop is one recommended crop with its probability.
type RankedCrop struct {
	Crop        string  `json:"crop"`
	Probability float64 `json:"probability"`
}

// predictResponse is the model server's reply.
type predictResponse struct {
	Logits        []float64 `json:"logits,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

type cropRequest struct {
	Features []float64 `json:"features"`
}
