package listing

import (
	"errors"
	"math"
	"strings"
	"time"
)

// DefaultUnit is applied when a listing names no unit.
const DefaultUnit = "kg"

// IDLength is the length of generated listing IDs.
const IDLength = 12

var (
	ErrNotFound        = errors.New("listing not found")
	ErrSellerRequired  = errors.New("sellerId is required")
	ErrCropRequired    = errors.New("crop is required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrInvalidPrice    = errors.New("pricePerUnit must be 0 or greater")
)

// Listing is produce offered for sale.
type Listing struct {
	ID           string    `json:"id"`
	SellerID     string    `json:"sellerId"`
	Crop         string    `json:"crop"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	PricePerUnit float64   `json:"pricePerUnit"`
	Location     string    `json:"location,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateRequest carries the fields of a new listing.
type CreateRequest struct {
	SellerID     string  `json:"sellerId"`
	Crop         string  `json:"crop"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"pricePerUnit"`
	Location     string  `json:"location"`
	Description  string  `json:"description"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Crop         *string  `json:"crop"`
	Quantity     *float64 `json:"quantity"`
	Unit         *string  `json:"unit"`
	PricePerUnit *float64 `json:"pricePerUnit"`
	Location     *string  `json:"location"`
	Description  *string  `json:"description"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Crop     string
	Location string
	SellerID string
	MinPrice *float64
	MaxPrice *float64
}

func (f Filter) matches(l *Listing) bool {
	if f.Crop != "" && !strings.EqualFold(l.Crop, f.Crop) {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(l.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.SellerID != "" && l.SellerID != f.SellerID {
		return false
	}
	if f.MinPrice != nil && l.PricePerUnit < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.PricePerUnit > *f.MaxPrice {
		return false
	}
	return true
}

func validate(l *Listing) error {
	switch {
	case strings.TrimSpace(l.SellerID) == "":
		return ErrSellerRequired
	case strings.TrimSpace(l.Crop) == "":
		return ErrCropRequired
	case !(l.Quantity > 0) || math.IsInf(l.Quantity, 0):
		return ErrInvalidQuantity
	case !(l.PricePerUnit >= 0) || math.IsInf(l.PricePerUnit, 0):
		return ErrInvalidPrice
	}
	return nil
}
