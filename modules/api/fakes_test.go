package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/example/cropcare-gateway/domain/chat"
	"github.com/example/cropcare-gateway/modules/advisory"
	"github.com/example/cropcare-gateway/modules/chat"
	"github.com/example/cropcare-gateway/modules/inference"
	"github.com/example/cropcare-gateway/modules/relay"
	"github.com/example/cropcare-gateway/modules/weather"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// fakeChat is an in-memory chat.ChatPort.
type fakeChat struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*domain.User
	chats    map[string]*domain.Chat
	messages map[string][]*domain.Message
	origins  []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		users:    make(map[string]*domain.User),
		chats:    make(map[string]*domain.Chat),
		messages: make(map[string][]*domain.Message),
	}
}

func (f *fakeChat) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeChat) CreateUser(_ context.Context, name, email, role string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "" {
		return nil, fmt.Errorf("failed to create user: %w", chat.ErrNameEmpty)
	}
	for _, u := range f.users {
		if u.Email == email {
			return nil, fmt.Errorf("failed to create user: %w", chat.ErrEmailTaken)
		}
	}
	if role == "" {
		role = domain.RoleFarmer
	}
	u := &domain.User{ID: f.nextID("user"), Name: name, Email: email, Role: role, CreatedAt: time.Now().UTC()}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeChat) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("failed to get user: %w", chat.ErrUserNotFound)
	}
	return u, nil
}

func (f *fakeChat) ListUsers(_ context.Context, _ int) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]*domain.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeChat) CreateChat(_ context.Context, title, createdBy string) (*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if title == "" {
		return nil, fmt.Errorf("failed to create chat: %w", chat.ErrTitleEmpty)
	}
	if _, ok := f.users[createdBy]; !ok {
		return nil, fmt.Errorf("failed to create chat: %w", chat.ErrUserNotFound)
	}
	ch := &domain.Chat{ID: f.nextID("chat"), Title: title, CreatedBy: createdBy, CreatedAt: time.Now().UTC()}
	f.chats[ch.ID] = ch
	return ch, nil
}

func (f *fakeChat) GetChat(_ context.Context, chatID string) (*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("failed to get chat: %w", chat.ErrChatNotFound)
	}
	return ch, nil
}

func (f *fakeChat) ListChats(_ context.Context, createdBy string, _ int) ([]*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chats := make([]*domain.Chat, 0, len(f.chats))
	for _, ch := range f.chats {
		if createdBy == "" || ch.CreatedBy == createdBy {
			chats = append(chats, ch)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	return chats, nil
}

func (f *fakeChat) CreateMessage(_ context.Context, chatID, senderID, content, origin string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[chatID]; !ok {
		return nil, fmt.Errorf("failed to create message: %w", chat.ErrChatNotFound)
	}
	if content == "" {
		return nil, fmt.Errorf("failed to create message: %w", chat.ErrMessageEmpty)
	}
	msg := &domain.Message{ID: f.nextID("msg"), ChatID: chatID, SenderID: senderID, Content: content, CreatedAt: time.Now().UTC()}
	f.messages[chatID] = append(f.messages[chatID], msg)
	f.origins = append(f.origins, origin)
	return msg, nil
}

func (f *fakeChat) ListMessages(_ context.Context, chatID string, limit int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[chatID]; !ok {
		return nil, fmt.Errorf("failed to list messages: %w", chat.ErrChatNotFound)
	}
	msgs := f.messages[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// fakeRelay reports fixed room membership.
type fakeRelay struct {
	members map[string][]string
}

func (r *fakeRelay) Serve(_ context.Context, _ string, conn relay.Conn) error {
	return conn.Close()
}

func (r *fakeRelay) RoomSize(roomID string) int { return len(r.members[roomID]) }

func (r *fakeRelay) Members(roomID string) []string { return r.members[roomID] }

func (r *fakeRelay) Rooms() []string {
	rooms := make([]string, 0, len(r.members))
	for id := range r.members {
		rooms = append(rooms, id)
	}
	return rooms
}

func (r *fakeRelay) ConnectionCount() int {
	n := 0
	for _, m := range r.members {
		n += len(m)
	}
	return n
}

// fakePredictor returns canned results.
type fakePredictor struct {
	prediction *inference.Prediction
	classifyFn func(contentType string, data []byte) error
	ranked     []inference.RankedCrop
	rankErr    error
	classes    []string
	features   inference.Features
	topK       int
}

func (p *fakePredictor) Classify(_ context.Context, contentType string, data []byte) (*inference.Prediction, error) {
	if p.classifyFn != nil {
		if err := p.classifyFn(contentType, data); err != nil {
			return nil, err
		}
	}
	return p.prediction, nil
}

func (p *fakePredictor) RecommendCrops(_ context.Context, f inference.Features, topK int) ([]inference.RankedCrop, error) {
	p.features = f
	p.topK = topK
	if p.rankErr != nil {
		return nil, p.rankErr
	}
	return p.ranked, nil
}

func (p *fakePredictor) Classes() ([]string, error) {
	if len(p.classes) == 0 {
		return nil, inference.ErrClassesNotLoaded
	}
	return p.classes, nil
}

func (p *fakePredictor) ModelInfo() inference.ModelInfo {
	return inference.ModelInfo{Architecture: "ResNet18", NumClasses: len(p.classes), Device: "cpu"}
}

func (p *fakePredictor) Ready() bool { return len(p.classes) > 0 }

// fakeAdvisor echoes its inputs.
type fakeAdvisor struct {
	lowConfidence bool
}

func (a *fakeAdvisor) Recommend(_ context.Context, disease string, _ float64, lowConfidence bool) advisory.Recommendations {
	a.lowConfidence = lowConfidence
	dynamic := "Advice for " + disease
	if lowConfidence {
		dynamic = advisory.TextLowConfidence
	}
	return advisory.Recommendations{Static: advisory.Lookup(disease), Dynamic: dynamic}
}

// fakeWeather returns a fixed observation.
type fakeWeather struct {
	obs   *weather.Observation
	err   error
	calls int
}

func (w *fakeWeather) Current(_ context.Context, lat, lon float64) (*weather.Observation, error) {
	w.calls++
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if w.err != nil {
		return nil, w.err
	}
	obs := *w.obs
	obs.Latitude, obs.Longitude = lat, lon
	return &obs, nil
}

// staticLimiter has no shared storage, so the limiter keeps counters in memory.
type staticLimiter struct{}

func (staticLimiter) LimiterStorage() fiber.Storage { return nil }
