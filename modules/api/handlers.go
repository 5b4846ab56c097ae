package api

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/example/cropcare-gateway/modules/inference"
	"github.com/example/cropcare-gateway/modules/weather"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const defaultTopK = 3

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	limit := m.rateLimiter()

	app.Get("/", m.rootHandler)
	app.Get("/health", m.healthHandler)

	// Disease detection
	app.Post("/predict", limit, m.predict)
	app.Get("/classes", m.listClasses)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat/:roomId", websocket.New(m.handleWebSocket))

	// REST API v1
	api := app.Group("/api/v1")

	api.Post("/crops/recommend", limit, m.recommendCrops)
	api.Get("/weather", m.getWeather)

	api.Post("/users", m.createUser)
	api.Get("/users", m.listUsers)
	api.Get("/users/:id", m.getUser)

	api.Post("/chats", m.createChat)
	api.Get("/chats", m.listChats)
	api.Get("/chats/:id", m.getChat)
	api.Get("/chats/:id/messages", m.getHistory)
	api.Post("/chats/:id/messages", m.postMessage)
	api.Get("/chats/:id/members", m.getMembers)

	api.Post("/listings", m.createListing)
	api.Get("/listings", m.listListings)
	api.Get("/listings/:id", m.getListing)
	api.Patch("/listings/:id", m.updateListing)
	api.Delete("/listings/:id", m.deleteListing)
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{Error: code, Message: message})
}

// detailJSON is errorJSON with the message also under "detail".
func detailJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{Error: code, Message: message, Detail: message})
}

// rootHandler handles GET /.
func (m *APIModule) rootHandler(c *fiber.Ctx) error {
	return c.JSON(RootResponse{
		Message: "Crop Disease Detection API",
		Status:  "running",
	})
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"model_loaded":      m.backends.Predictor.Ready(),
			"connected_clients": m.backends.Relay.ConnectionCount(),
			"active_rooms":      len(m.backends.Relay.Rooms()),
		},
	})
}

// predict handles POST /predict.
func (m *APIModule) predict(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return detailJSON(c, fiber.StatusBadRequest, "invalid_request", "An image file is required in the 'file' field")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return detailJSON(c, fiber.StatusBadRequest, "validation_error", inference.ErrInvalidContentType.Error())
	}
	if fileHeader.Size > inference.MaxImageSize {
		return detailJSON(c, fiber.StatusBadRequest, "validation_error", inference.ErrImageTooLarge.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return detailJSON(c, fiber.StatusBadRequest, "invalid_request", "Failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, inference.MaxImageSize+1))
	if err != nil {
		return detailJSON(c, fiber.StatusBadRequest, "invalid_request", "Failed to read uploaded file")
	}

	ctx := c.UserContext()
	prediction, err := m.backends.Predictor.Classify(ctx, contentType, data)
	if err != nil {
		switch {
		case errors.Is(err, inference.ErrInvalidContentType), errors.Is(err, inference.ErrImageTooLarge):
			return detailJSON(c, fiber.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, inference.ErrInvalidImage):
			return detailJSON(c, fiber.StatusBadRequest, "invalid_image", "Invalid image: "+err.Error())
		case errors.Is(err, inference.ErrModelNotLoaded):
			return detailJSON(c, fiber.StatusServiceUnavailable, "model_unavailable", err.Error())
		default:
			return detailJSON(c, fiber.StatusBadGateway, "prediction_failed", "Prediction failed")
		}
	}

	return c.JSON(PredictResponse{
		Success:         true,
		Prediction:      prediction,
		Recommendations: m.backends.Advisor.Recommend(ctx, prediction.Disease, prediction.Confidence, prediction.LowConfidence),
		ModelInfo:       m.backends.Predictor.ModelInfo(),
	})
}

// listClasses handles GET /classes.
func (m *APIModule) listClasses(c *fiber.Ctx) error {
	classes, err := m.backends.Predictor.Classes()
	if err != nil {
		return detailJSON(c, fiber.StatusServiceUnavailable, "model_unavailable", err.Error())
	}
	return c.JSON(ClassesResponse{Classes: classes, Count: len(classes)})
}

// recommendCrops handles POST /api/v1/crops/recommend.
func (m *APIModule) recommendCrops(c *fiber.Ctx) error {
	var req CropRecommendRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	features := inference.Features{N: req.N, P: req.P, K: req.K, PH: req.PH}

	var obs *weather.Observation
	if req.Temperature == nil || req.Humidity == nil || req.Rainfall == nil {
		if req.Lat == nil || req.Lon == nil {
			return errorJSON(c, fiber.StatusBadRequest, "validation_error",
				"temperature, humidity and rainfall are required unless lat and lon are given")
		}
		var err error
		obs, err = m.backends.Weather.Current(c.UserContext(), *req.Lat, *req.Lon)
		if err != nil {
			return weatherError(c, err)
		}
		features.Temperature = obs.TemperatureC
		features.Humidity = obs.Humidity
		features.Rainfall = obs.RainfallMM
	}
	if req.Temperature != nil {
		features.Temperature = *req.Temperature
	}
	if req.Humidity != nil {
		features.Humidity = *req.Humidity
	}
	if req.Rainfall != nil {
		features.Rainfall = *req.Rainfall
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	ranked, err := m.backends.Predictor.RecommendCrops(c.UserContext(), features, topK)
	if err != nil {
		switch {
		case errors.Is(err, inference.ErrInvalidFeatures):
			return errorJSON(c, fiber.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, inference.ErrModelNotLoaded):
			return errorJSON(c, fiber.StatusServiceUnavailable, "model_unavailable", err.Error())
		default:
			return errorJSON(c, fiber.StatusBadGateway, "recommendation_failed", "Crop recommendation failed")
		}
	}

	return c.JSON(CropRecommendResponse{
		Recommendations: ranked,
		Features:        features,
		Weather:         obs,
	})
}

// getWeather handles GET /api/v1/weather?lat=&lon=.
func (m *APIModule) getWeather(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		return errorJSON(c, fiber.StatusBadRequest, "validation_error", "lat and lon query parameters must be numbers")
	}

	obs, err := m.backends.Weather.Current(c.UserContext(), lat, lon)
	if err != nil {
		return weatherError(c, err)
	}
	return c.JSON(obs)
}

func weatherError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidCoordinates):
		return errorJSON(c, fiber.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, weather.ErrNotConfigured):
		return errorJSON(c, fiber.StatusServiceUnavailable, "weather_unavailable", err.Error())
	default:
		return errorJSON(c, fiber.StatusBadGateway, "weather_failed", "Failed to fetch weather data")
	}
}
