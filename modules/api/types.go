package api

import (
	domain "github.com/example/cropcare-gateway/domain/chat"
	"github.com/example/cropcare-gateway/modules/advisory"
	"github.com/example/cropcare-gateway/modules/inference"
	"github.com/example/cropcare-gateway/modules/listing"
	"github.com/example/cropcare-gateway/modules/weather"
)

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"` // set on /predict and /classes
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	Success         bool                     `json:"success"`
	Prediction      *inference.Prediction    `json:"prediction"`
	Recommendations advisory.Recommendations `json:"recommendations"`
	ModelInfo       inference.ModelInfo      `json:"model_info"`
}

// ClassesResponse is returned by GET /classes.
type ClassesResponse struct {
	Classes []string `json:"classes"`
	Count   int      `json:"count"`
}

// CropRecommendRequest holds soil and climate readings. Temperature,
// humidity and rainfall may be omitted when lat and lon are given.
type CropRecommendRequest struct {
	N           float64  `json:"N"`
	P           float64  `json:"P"`
	K           float64  `json:"K"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	PH          float64  `json:"ph"`
	Rainfall    *float64 `json:"rainfall"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	TopK        int      `json:"top_k"`
}

// CropRecommendResponse is returned by POST /api/v1/crops/recommend.
type CropRecommendResponse struct {
	Recommendations []inference.RankedCrop `json:"recommendations"`
	Features        inference.Features     `json:"features"`
	Weather         *weather.Observation   `json:"weather,omitempty"`
}

// CreateUserRequest is the API request to register a user.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserListResponse is the API response for listing users.
type UserListResponse struct {
	Users []*domain.User `json:"users"`
}

// CreateChatRequest is the API request to create a chat.
type CreateChatRequest struct {
	Title     string `json:"title"`
	CreatedBy string `json:"createdBy"`
}

// ChatResponse is a chat with its live member count.
type ChatResponse struct {
	*domain.Chat
	Members int `json:"members"`
}

// ChatListResponse is the API response for listing chats.
type ChatListResponse struct {
	Chats []ChatResponse `json:"chats"`
}

// PostMessageRequest is the API request to post a message over REST.
type PostMessageRequest struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	ChatID   string            `json:"chatId"`
	Messages []*domain.Message `json:"messages"`
}

// MembersResponse lists the live connections of a chat room.
type MembersResponse struct {
	ChatID  string   `json:"chatId"`
	Count   int      `json:"count"`
	Clients []string `json:"clients"`
}

// ListingListResponse is the API response for listing produce.
type ListingListResponse struct {
	Listings []*listing.Listing `json:"listings"`
	Count    int                `json:"count"`
}
