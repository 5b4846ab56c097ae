package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	domain "github.com/example/cropcare-gateway/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

// fakeConn is an in-memory Conn.
type fakeConn struct {
	mu       sync.Mutex
	inbound  chan []byte
	written  [][]byte
	writeErr error
	onWrite  func()
	closed   bool
	deadline time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, data, nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeStore records persisted messages.
type fakeStore struct {
	mu    sync.Mutex
	saved []*domain.Message
	err   error
}

func (s *fakeStore) CreateMessage(_ context.Context, chatID, senderID, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	msg := &domain.Message{
		ID:        fmt.Sprintf("m%d", len(s.saved)+1),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	s.saved = append(s.saved, msg)
	return msg, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func newTestRelay(store MessageStore) *Relay {
	return New(store, Config{}, &mockLogger{})
}

func decodeOutbound(t *testing.T, data []byte) OutboundMessage {
	t.Helper()
	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func decodeError(t *testing.T, data []byte) string {
	t.Helper()
	var e ErrorMessage
	require.NoError(t, json.Unmarshal(data, &e))
	return e.Error
}

func TestRelay_JoinRequiresRoom(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	_, err := r.Join("", newFakeConn())
	assert.ErrorIs(t, err, ErrRoomRequired)
}

func TestRelay_JoinLeave(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	a, err := r.Join("r1", newFakeConn())
	require.NoError(t, err)
	b, err := r.Join("r1", newFakeConn())
	require.NoError(t, err)
	c, err := r.Join("r2", newFakeConn())
	require.NoError(t, err)

	assert.Equal(t, 2, r.RoomSize("r1"))
	assert.Equal(t, 1, r.RoomSize("r2"))
	assert.Equal(t, 3, r.ConnectionCount())
	assert.Equal(t, []string{"r1", "r2"}, r.Rooms())

	r.Leave(a)
	assert.Equal(t, 1, r.RoomSize("r1"))
	assert.Equal(t, "", a.RoomID())

	// Leave is idempotent.
	r.Leave(a)
	assert.Equal(t, 1, r.RoomSize("r1"))

	r.Leave(b)
	r.Leave(c)
	assert.Equal(t, 0, r.ConnectionCount())
	// Empty rooms may stay until pruned.
	assert.Equal(t, []string{"r1", "r2"}, r.Rooms())
}

func TestRelay_MoveKeepsClientInOneRoom(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	client, err := r.Join("r1", newFakeConn())
	require.NoError(t, err)

	require.NoError(t, r.Move(client, "r2"))
	assert.Equal(t, 0, r.RoomSize("r1"))
	assert.Equal(t, 1, r.RoomSize("r2"))
	assert.Equal(t, "r2", client.RoomID())

	// Moving into the current room is a no-op.
	require.NoError(t, r.Move(client, "r2"))
	assert.Equal(t, 1, r.RoomSize("r2"))
}

func TestRelay_ConcurrentJoinLeave(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	const n = 50
	clients := make([]*Client, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Join("r1", newFakeConn())
			if err == nil {
				clients[i] = c
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, r.RoomSize("r1"))

	// Leave the even ones concurrently, some of them twice.
	for i := 0; i < n; i += 2 {
		wg.Add(2)
		go func(c *Client) { defer wg.Done(); r.Leave(c) }(clients[i])
		go func(c *Client) { defer wg.Done(); r.Leave(c) }(clients[i])
	}
	wg.Wait()

	members := r.Members("r1")
	assert.Len(t, members, n/2)
	for i := 1; i < n; i += 2 {
		assert.Contains(t, members, clients[i].ID)
	}
}

func TestRelay_BroadcastReachesEveryMember(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for _, c := range conns {
		_, err := r.Join("r1", c)
		require.NoError(t, err)
	}
	other := newFakeConn()
	_, err := r.Join("r2", other)
	require.NoError(t, err)

	delivery := r.Broadcast("r1", OutboundMessage{ID: "1", Content: "hi", SenderID: "A", ChatID: "r1"})

	assert.Equal(t, 3, delivery.Attempted)
	assert.Equal(t, 3, delivery.Delivered)
	assert.Empty(t, delivery.Dropped)
	for _, c := range conns {
		require.Len(t, c.messages(), 1)
		assert.Equal(t, "hi", decodeOutbound(t, c.messages()[0]).Content)
	}
	assert.Empty(t, other.messages())
}

func TestRelay_BroadcastUnknownRoom(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	delivery := r.Broadcast("nowhere", OutboundMessage{ID: "1"})
	assert.Equal(t, 0, delivery.Attempted)
}

func TestRelay_BroadcastDropsFailedConnections(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	good := newFakeConn()
	bad := newFakeConn()
	bad.writeErr = errors.New("broken pipe")

	_, err := r.Join("r1", good)
	require.NoError(t, err)
	badClient, err := r.Join("r1", bad)
	require.NoError(t, err)

	delivery := r.Broadcast("r1", OutboundMessage{ID: "1", Content: "x"})

	assert.Equal(t, 2, delivery.Attempted)
	assert.Equal(t, 1, delivery.Delivered)
	assert.Equal(t, []string{badClient.ID}, delivery.Dropped)
	assert.Len(t, good.messages(), 1)
	assert.True(t, bad.isClosed())
	assert.Equal(t, "", badClient.RoomID())
	assert.Equal(t, 1, r.RoomSize("r1"))

	// The dropped client leaving again is harmless.
	r.Leave(badClient)
	assert.Equal(t, 1, r.RoomSize("r1"))
}

func TestRelay_LeaveDuringBroadcast(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	first := newFakeConn()
	second := newFakeConn()
	firstClient, err := r.Join("r1", first)
	require.NoError(t, err)
	secondClient, err := r.Join("r1", second)
	require.NoError(t, err)

	// Whichever member is written first triggers a Leave of the other one.
	var once sync.Once
	leaveDone := make(chan struct{})
	trigger := func(victim *Client) func() {
		return func() {
			once.Do(func() {
				go func() {
					r.Leave(victim)
					close(leaveDone)
				}()
			})
		}
	}
	first.onWrite = trigger(secondClient)
	second.onWrite = trigger(firstClient)

	delivery := r.Broadcast("r1", OutboundMessage{ID: "1", Content: "x"})
	<-leaveDone

	// The Leave waits for the broadcast pass, so both were attempted once.
	assert.Equal(t, 2, delivery.Attempted)
	assert.Equal(t, 1, r.RoomSize("r1"))

	// A second broadcast only reaches the remaining member.
	delivery = r.Broadcast("r1", OutboundMessage{ID: "2", Content: "y"})
	assert.Equal(t, 1, delivery.Attempted)
}

func TestRelay_SlowRoomDoesNotBlockOtherRooms(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	release := make(chan struct{})
	writing := make(chan struct{})
	slow := newFakeConn()
	var once sync.Once
	slow.onWrite = func() {
		once.Do(func() { close(writing) })
		<-release
	}
	_, err := r.Join("x", slow)
	require.NoError(t, err)
	neighbour, err := r.Join("x", newFakeConn())
	require.NoError(t, err)
	other := newFakeConn()
	_, err = r.Join("y", other)
	require.NoError(t, err)

	slowDone := make(chan struct{})
	go func() {
		r.Broadcast("x", OutboundMessage{ID: "1", Content: "slow"})
		close(slowDone)
	}()
	<-writing

	leaveDone := make(chan struct{})
	go func() {
		r.Leave(neighbour)
		close(leaveDone)
	}()
	joinDone := make(chan struct{})
	go func() {
		_, _ = r.Join("x", newFakeConn())
		close(joinDone)
	}()
	time.Sleep(50 * time.Millisecond)

	done := make(chan Delivery, 1)
	go func() {
		done <- r.Broadcast("y", OutboundMessage{ID: "2", Content: "fast"})
	}()
	select {
	case delivery := <-done:
		assert.Equal(t, 1, delivery.Delivered)
	case <-time.After(time.Second):
		t.Fatal("broadcast to y waited on the busy room x")
	}
	assert.Equal(t, 1, r.RoomSize("y"))
	assert.Equal(t, 0, r.PruneEmptyRooms(), "busy rooms are skipped")

	close(release)
	<-slowDone
	<-leaveDone
	<-joinDone
	assert.Equal(t, 2, r.RoomSize("x"))
	assert.Len(t, other.messages(), 1)
}

func TestRelay_JoinAfterPrune(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	a, err := r.Join("r1", newFakeConn())
	require.NoError(t, err)
	r.Leave(a)
	require.Equal(t, 1, r.PruneEmptyRooms())

	require.NoError(t, r.Move(a, "r1"))
	assert.Equal(t, 1, r.RoomSize("r1"))
	assert.Equal(t, "r1", a.RoomID())

	delivery := r.Broadcast("r1", OutboundMessage{ID: "1", Content: "back"})
	assert.Equal(t, 1, delivery.Delivered)
}

func TestRelay_Dispatch(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		storeErr   error
		wantError  string
		wantSaved  int
		wantOthers int
	}{
		{
			name:       "valid message",
			payload:    `{"senderId":"A","content":"hi"}`,
			wantSaved:  1,
			wantOthers: 1,
		},
		{
			name:      "missing content",
			payload:   `{"senderId":"A"}`,
			wantError: ErrTextMissingFields,
		},
		{
			name:      "missing sender",
			payload:   `{"content":"hi"}`,
			wantError: ErrTextMissingFields,
		},
		{
			name:      "empty content",
			payload:   `{"senderId":"A","content":""}`,
			wantError: ErrTextMissingFields,
		},
		{
			name:      "null payload",
			payload:   `null`,
			wantError: ErrTextMissingFields,
		},
		{
			name:      "not json",
			payload:   `hello there`,
			wantError: ErrTextInvalidJSON,
		},
		{
			name:      "array payload",
			payload:   `["A","hi"]`,
			wantError: ErrTextInvalidJSON,
		},
		{
			name:      "wrong field type",
			payload:   `{"senderId":5,"content":"hi"}`,
			wantError: ErrTextInvalidJSON,
		},
		{
			name:      "persistence failure",
			payload:   `{"senderId":"ghost","content":"hi"}`,
			storeErr:  errors.New("user not found"),
			wantError: ErrTextPersistFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{err: tt.storeErr}
			r := newTestRelay(store)

			a := newFakeConn()
			b := newFakeConn()
			clientA, err := r.Join("r1", a)
			require.NoError(t, err)
			_, err = r.Join("r1", b)
			require.NoError(t, err)

			r.Dispatch(context.Background(), clientA, []byte(tt.payload))

			assert.Equal(t, tt.wantSaved, store.count())
			assert.Len(t, b.messages(), tt.wantOthers)

			require.Len(t, a.messages(), 1, "sender gets exactly one reply")
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, a.messages()[0]))
				return
			}
			out := decodeOutbound(t, a.messages()[0])
			assert.Equal(t, "hi", out.Content)
			assert.Equal(t, "A", out.SenderID)
			assert.Equal(t, "r1", out.ChatID)
			assert.Equal(t, "m1", out.ID)
			_, err = time.Parse(time.RFC3339Nano, out.CreatedAt)
			assert.NoError(t, err)
			assert.Equal(t, a.messages()[0], b.messages()[0], "identical payload for every member")
		})
	}
}

func TestRelay_DispatchContentTooLong(t *testing.T) {
	store := &fakeStore{}
	r := newTestRelay(store)

	conn := newFakeConn()
	client, err := r.Join("r1", conn)
	require.NoError(t, err)

	long := make([]byte, MaxContentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	payload, _ := json.Marshal(map[string]string{"senderId": "A", "content": string(long)})
	r.Dispatch(context.Background(), client, payload)

	require.Len(t, conn.messages(), 1)
	assert.Equal(t, ErrTextContentTooLong, decodeError(t, conn.messages()[0]))
	assert.Equal(t, 0, store.count())
}

func TestRelay_DispatchRateLimited(t *testing.T) {
	store := &fakeStore{}
	r := New(store, Config{RateLimit: 0.001, RateBurst: 2}, &mockLogger{})

	conn := newFakeConn()
	client, err := r.Join("r1", conn)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		r.Dispatch(context.Background(), client, []byte(`{"senderId":"A","content":"hi"}`))
	}

	assert.Equal(t, 2, store.count())
	msgs := conn.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, ErrTextRateLimited, decodeError(t, msgs[2]))
}

func TestRelay_DispatchAfterDropIsIgnored(t *testing.T) {
	store := &fakeStore{}
	r := newTestRelay(store)

	conn := newFakeConn()
	client, err := r.Join("r1", conn)
	require.NoError(t, err)
	r.Leave(client)

	r.Dispatch(context.Background(), client, []byte(`{"senderId":"A","content":"hi"}`))
	assert.Equal(t, 0, store.count())
	assert.Empty(t, conn.messages())
}

func TestRelay_PerConnectionOrdering(t *testing.T) {
	store := &fakeStore{}
	r := newTestRelay(store)

	sender := newFakeConn()
	listener := newFakeConn()
	client, err := r.Join("r1", sender)
	require.NoError(t, err)
	_, err = r.Join("r1", listener)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		r.Dispatch(context.Background(), client, []byte(fmt.Sprintf(`{"senderId":"A","content":"%d"}`, i)))
	}

	msgs := listener.messages()
	require.Len(t, msgs, 5)
	for i, data := range msgs {
		assert.Equal(t, fmt.Sprint(i), decodeOutbound(t, data).Content)
	}
}

func TestRelay_Serve(t *testing.T) {
	store := &fakeStore{}
	r := New(store, Config{IdleTimeout: time.Minute}, &mockLogger{})

	a := newFakeConn()
	b := newFakeConn()

	done := make(chan error, 2)
	go func() { done <- r.Serve(context.Background(), "r1", a) }()
	go func() { done <- r.Serve(context.Background(), "r1", b) }()

	require.Eventually(t, func() bool { return r.RoomSize("r1") == 2 }, time.Second, 5*time.Millisecond)

	a.inbound <- []byte(`{"senderId":"A","content":"hi"}`)
	require.Eventually(t, func() bool { return len(b.messages()) == 1 }, time.Second, 5*time.Millisecond)

	out := decodeOutbound(t, b.messages()[0])
	assert.Equal(t, "hi", out.Content)
	assert.Equal(t, "A", out.SenderID)
	assert.Equal(t, "r1", out.ChatID)

	a.inbound <- []byte(`{"senderId":"A"}`)
	require.Eventually(t, func() bool { return len(a.messages()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ErrTextMissingFields, decodeError(t, a.messages()[1]))
	assert.Len(t, b.messages(), 1)

	close(a.inbound)
	require.NoError(t, <-done)
	assert.Equal(t, 1, r.RoomSize("r1"))
	assert.True(t, a.isClosed())

	a.mu.Lock()
	assert.False(t, a.deadline.IsZero(), "idle timeout arms a read deadline")
	a.mu.Unlock()

	close(b.inbound)
	require.NoError(t, <-done)
	assert.Equal(t, 0, r.ConnectionCount())
}

func TestRelay_ServeRejectsEmptyRoom(t *testing.T) {
	r := newTestRelay(&fakeStore{})
	conn := newFakeConn()

	err := r.Serve(context.Background(), "", conn)

	assert.ErrorIs(t, err, ErrRoomRequired)
	assert.True(t, conn.isClosed())
	require.Len(t, conn.messages(), 1)
	assert.Equal(t, ErrRoomRequired.Error(), decodeError(t, conn.messages()[0]))
}

func TestRelay_PruneEmptyRooms(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	a, err := r.Join("r1", newFakeConn())
	require.NoError(t, err)
	_, err = r.Join("r2", newFakeConn())
	require.NoError(t, err)
	r.Leave(a)

	assert.Equal(t, 1, r.PruneEmptyRooms())
	assert.Equal(t, []string{"r2"}, r.Rooms())
	assert.Equal(t, 0, r.PruneEmptyRooms())
}

func TestRelay_Close(t *testing.T) {
	r := newTestRelay(&fakeStore{})

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, c := range conns {
		_, err := r.Join("r1", c)
		require.NoError(t, err)
	}

	r.Close()

	assert.Equal(t, 0, r.ConnectionCount())
	for _, c := range conns {
		assert.True(t, c.isClosed())
	}
	_, err := r.Join("r1", newFakeConn())
	assert.ErrorIs(t, err, ErrRelayClosed)
}

func TestNewOutboundMessage(t *testing.T) {
	created := time.Date(2025, 6, 1, 8, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	out := NewOutboundMessage(&domain.Message{
		ID:        "id-1",
		ChatID:    "c1",
		SenderID:  "u1",
		Content:   "namaste",
		CreatedAt: created,
	})

	assert.Equal(t, "2025-06-01T03:00:00Z", out.CreatedAt)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"id-1","content":"namaste","senderId":"u1","chatId":"c1","createdAt":"2025-06-01T03:00:00Z"}`, string(data))
}
