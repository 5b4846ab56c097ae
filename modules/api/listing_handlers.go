package api

import (
	"errors"
	"strconv"

	"github.com/example/cropcare-gateway/modules/listing"
	"github.com/gofiber/fiber/v2"
)

func listingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, listing.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, listing.ErrSellerRequired), errors.Is(err, listing.ErrCropRequired),
		errors.Is(err, listing.ErrInvalidQuantity), errors.Is(err, listing.ErrInvalidPrice):
		return errorJSON(c, fiber.StatusBadRequest, "validation_error", err.Error())
	default:
		return errorJSON(c, fiber.StatusInternalServerError, "internal_error", "Listing operation failed")
	}
}

// createListing handles POST /api/v1/listings.
func (m *APIModule) createListing(c *fiber.Ctx) error {
	var req listing.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	created, err := m.backends.Listings.Create(req)
	if err != nil {
		return listingError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// listListings handles GET /api/v1/listings.
func (m *APIModule) listListings(c *fiber.Ctx) error {
	filter := listing.Filter{
		Crop:     c.Query("crop"),
		Location: c.Query("location"),
		SellerID: c.Query("sellerId"),
	}

	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"minPrice", &filter.MinPrice},
		{"maxPrice", &filter.MaxPrice},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "validation_error", p.name+" must be a number")
		}
		*p.dst = &v
	}

	listings := m.backends.Listings.List(filter)
	return c.JSON(ListingListResponse{Listings: listings, Count: len(listings)})
}

// getListing handles GET /api/v1/listings/:id.
func (m *APIModule) getListing(c *fiber.Ctx) error {
	l, err := m.backends.Listings.Get(c.Params("id"))
	if err != nil {
		return listingError(c, err)
	}
	return c.JSON(l)
}

// updateListing handles PATCH /api/v1/listings/:id.
func (m *APIModule) updateListing(c *fiber.Ctx) error {
	var patch listing.Patch
	if err := c.BodyParser(&patch); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	updated, err := m.backends.Listings.Update(c.Params("id"), patch)
	if err != nil {
		return listingError(c, err)
	}
	return c.JSON(updated)
}

// deleteListing handles DELETE /api/v1/listings/:id.
func (m *APIModule) deleteListing(c *fiber.Ctx) error {
	if err := m.backends.Listings.Delete(c.Params("id")); err != nil {
		return listingError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
