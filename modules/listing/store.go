// Package listing is an in-memory marketplace of produce listings.
package listing

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

// Store keeps listings in memory. Contents are lost on restart.
type Store struct {
	mu       sync.RWMutex
	listings map[string]*Listing
	newID    func() string
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() (*Store, error) {
	newID, err := nanoid.Standard(IDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &Store{
		listings: make(map[string]*Listing),
		newID:    newID,
		now:      time.Now,
	}, nil
}

// Create validates and stores a new listing.
func (s *Store) Create(req CreateRequest) (*Listing, error) {
	now := s.now().UTC()
	l := &Listing{
		SellerID:     strings.TrimSpace(req.SellerID),
		Crop:         strings.TrimSpace(req.Crop),
		Quantity:     req.Quantity,
		Unit:         strings.TrimSpace(req.Unit),
		PricePerUnit: req.PricePerUnit,
		Location:     strings.TrimSpace(req.Location),
		Description:  strings.TrimSpace(req.Description),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if l.Unit == "" {
		l.Unit = DefaultUnit
	}
	if err := validate(l); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		l.ID = s.newID()
		if _, taken := s.listings[l.ID]; !taken {
			break
		}
	}
	s.listings[l.ID] = l

	copied := *l
	return &copied, nil
}

// Get returns a listing by ID.
func (s *Store) Get(id string) (*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *l
	return &copied, nil
}

// List returns matching listings, newest first.
func (s *Store) List(filter Filter) []*Listing {
	s.mu.RLock()
	out := make([]*Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if filter.matches(l) {
			copied := *l
			out = append(out, &copied)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update applies patch to a listing. The patched listing is validated
// before it replaces the stored one.
func (s *Store) Update(id string, patch Patch) (*Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := *current
	if patch.Crop != nil {
		next.Crop = strings.TrimSpace(*patch.Crop)
	}
	if patch.Quantity != nil {
		next.Quantity = *patch.Quantity
	}
	if patch.Unit != nil {
		next.Unit = strings.TrimSpace(*patch.Unit)
		if next.Unit == "" {
			next.Unit = DefaultUnit
		}
	}
	if patch.PricePerUnit != nil {
		next.PricePerUnit = *patch.PricePerUnit
	}
	if patch.Location != nil {
		next.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if err := validate(&next); err != nil {
		return nil, err
	}

	next.UpdatedAt = s.now().UTC()
	s.listings[id] = &next

	copied := next
	return &copied, nil
}

// Delete removes a listing.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return ErrNotFound
	}
	delete(s.listings, id)
	return nil
}

// Count returns the number of stored listings.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}
