package listing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore()
	require.NoError(t, err)

	// Deterministic, strictly increasing clock.
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return s
}

func validRequest() CreateRequest {
	return CreateRequest{
		SellerID:     "farmer-1",
		Crop:         "Tomato",
		Quantity:     120,
		PricePerUnit: 18.5,
		Location:     "Nashik, Maharashtra",
	}
}

func ptr[T any](v T) *T { return &v }

func TestStore_Create(t *testing.T) {
	s := setupTestStore(t)

	l, err := s.Create(validRequest())
	require.NoError(t, err)
	assert.Len(t, l.ID, IDLength)
	assert.Equal(t, DefaultUnit, l.Unit)
	assert.Equal(t, l.CreatedAt, l.UpdatedAt)

	got, err := s.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)

	// Returned values are copies.
	got.Crop = "Onion"
	again, _ := s.Get(l.ID)
	assert.Equal(t, "Tomato", again.Crop)
}

func TestStore_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CreateRequest)
		wantErr error
	}{
		{"missing seller", func(r *CreateRequest) { r.SellerID = " " }, ErrSellerRequired},
		{"missing crop", func(r *CreateRequest) { r.Crop = "" }, ErrCropRequired},
		{"zero quantity", func(r *CreateRequest) { r.Quantity = 0 }, ErrInvalidQuantity},
		{"negative quantity", func(r *CreateRequest) { r.Quantity = -5 }, ErrInvalidQuantity},
		{"negative price", func(r *CreateRequest) { r.PricePerUnit = -0.01 }, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := s.Create(req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, s.Count())
		})
	}

	t.Run("free produce is allowed", func(t *testing.T) {
		s := setupTestStore(t)
		req := validRequest()
		req.PricePerUnit = 0
		_, err := s.Create(req)
		assert.NoError(t, err)
	})
}

func TestStore_GetMissing(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	s := setupTestStore(t)

	seed := []CreateRequest{
		{SellerID: "f1", Crop: "Tomato", Quantity: 10, PricePerUnit: 20, Location: "Nashik"},
		{SellerID: "f2", Crop: "tomato", Quantity: 5, PricePerUnit: 35, Location: "Pune"},
		{SellerID: "f1", Crop: "Onion", Quantity: 50, PricePerUnit: 12, Location: "Nashik Road"},
		{SellerID: "f3", Crop: "Wheat", Quantity: 500, PricePerUnit: 25, Location: "Indore"},
	}
	for _, r := range seed {
		_, err := s.Create(r)
		require.NoError(t, err)
	}

	crops := func(ls []*Listing) []string {
		out := make([]string, len(ls))
		for i, l := range ls {
			out[i] = l.Crop
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"Wheat", "Onion", "tomato", "Tomato"}},
		{"crop is case insensitive", Filter{Crop: "TOMATO"}, []string{"tomato", "Tomato"}},
		{"location substring", Filter{Location: "nashik"}, []string{"Onion", "Tomato"}},
		{"seller", Filter{SellerID: "f1"}, []string{"Onion", "Tomato"}},
		{"price range", Filter{MinPrice: ptr(15.0), MaxPrice: ptr(30.0)}, []string{"Wheat", "Tomato"}},
		{"no match", Filter{Crop: "Rice"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, crops(s.List(tt.filter)))
		})
	}
}

func TestStore_Update(t *testing.T) {
	s := setupTestStore(t)
	l, err := s.Create(validRequest())
	require.NoError(t, err)

	updated, err := s.Update(l.ID, Patch{Quantity: ptr(80.0), Unit: ptr("quintal")})
	require.NoError(t, err)
	assert.Equal(t, 80.0, updated.Quantity)
	assert.Equal(t, "quintal", updated.Unit)
	assert.Equal(t, "Tomato", updated.Crop)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	t.Run("invalid patch leaves listing unchanged", func(t *testing.T) {
		_, err := s.Update(l.ID, Patch{Quantity: ptr(0.0), Crop: ptr("Onion")})
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		got, _ := s.Get(l.ID)
		assert.Equal(t, 80.0, got.Quantity)
		assert.Equal(t, "Tomato", got.Crop)
	})

	t.Run("empty unit resets to default", func(t *testing.T) {
		got, err := s.Update(l.ID, Patch{Unit: ptr("")})
		require.NoError(t, err)
		assert.Equal(t, DefaultUnit, got.Unit)
	})

	t.Run("missing listing", func(t *testing.T) {
		_, err := s.Update("nope", Patch{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Delete(t *testing.T) {
	s := setupTestStore(t)
	l, err := s.Create(validRequest())
	require.NoError(t, err)

	require.NoError(t, s.Delete(l.ID))
	assert.ErrorIs(t, s.Delete(l.ID), ErrNotFound)
	_, err = s.Get(l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ConcurrentCreate(t *testing.T) {
	s := setupTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := validRequest()
			req.SellerID = fmt.Sprintf("farmer-%d", i)
			_, err := s.Create(req)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Count())
	assert.Len(t, s.List(Filter{}), 50)
}

func TestModule(t *testing.T) {
	m, err := NewModule()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	assert.True(t, m.Health(ctx).Healthy)
	assert.NotNil(t, m.Store())
	require.NoError(t, m.Stop(ctx))
}
