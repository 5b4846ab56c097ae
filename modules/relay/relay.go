// Package relay fans chat messages out to the live WebSocket connections
// of a room.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	domain "github.com/example/cropcare-gateway/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// MaxContentLength bounds inbound message content, in characters.
const MaxContentLength = 5000

// Error payloads sent back to the originating connection.
const (
	ErrTextInvalidJSON    = "Invalid JSON format"
	ErrTextMissingFields  = "senderId and content are required"
	ErrTextContentTooLong = "content exceeds maximum length"
	ErrTextPersistFailed  = "Failed to save message"
	ErrTextRateLimited    = "Rate limit exceeded"
)

var (
	// ErrRoomRequired is returned by Join for an empty room key.
	ErrRoomRequired = errors.New("room id is required")
	// ErrRelayClosed is returned by Join after Close.
	ErrRelayClosed = errors.New("relay is closed")
)

// Conn is the duplex text channel the relay owns for one client.
// *websocket.Conn from gofiber/contrib/websocket satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// MessageStore persists chat messages. It must fail when the chat or the
// sender does not exist.
type MessageStore interface {
	CreateMessage(ctx context.Context, chatID, senderID, content string) (*domain.Message, error)
}

// MessageStoreFunc adapts a function to MessageStore.
type MessageStoreFunc func(ctx context.Context, chatID, senderID, content string) (*domain.Message, error)

// CreateMessage calls f.
func (f MessageStoreFunc) CreateMessage(ctx context.Context, chatID, senderID, content string) (*domain.Message, error) {
	return f(ctx, chatID, senderID, content)
}

// Config tunes connection handling.
type Config struct {
	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
	// WriteTimeout bounds each send. Zero disables it.
	WriteTimeout time.Duration
	// RateLimit is the sustained inbound messages per second per connection.
	// Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// InboundMessage is the payload a client sends.
type InboundMessage struct {
	SenderID *string `json:"senderId"`
	Content  *string `json:"content"`
}

// OutboundMessage is the payload broadcast to every member of a room.
type OutboundMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	SenderID  string `json:"senderId"`
	ChatID    string `json:"chatId"`
	CreatedAt string `json:"createdAt"`
}

// ErrorMessage is the payload reported to a single connection.
type ErrorMessage struct {
	Error string `json:"error"`
}

// NewOutboundMessage converts a persisted message to its wire form.
func NewOutboundMessage(msg *domain.Message) OutboundMessage {
	return OutboundMessage{
		ID:        msg.ID,
		Content:   msg.Content,
		SenderID:  msg.SenderID,
		ChatID:    msg.ChatID,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Delivery is the outcome of one Broadcast.
type Delivery struct {
	RoomID    string
	Attempted int
	Delivered int
	Dropped   []string // client IDs removed after a failed send
}

// Client is one connection registered with the relay.
type Client struct {
	ID   string
	conn Conn

	writeMu sync.Mutex
	limiter *rate.Limiter

	// room is guarded by mu. Lock order: room.mu, client.mu. relay.mu is
	// never held while waiting for a room.
	mu     sync.Mutex
	room   *room
	closed bool
}

// RoomID returns the room the client is in, or "" once it has left.
func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return ""
	}
	return c.room.id
}

func (c *Client) setRoom(r *room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

// clearRoom detaches the client if it is still in r.
func (c *Client) clearRoom(r *room) {
	c.mu.Lock()
	if c.room == r {
		c.room = nil
	}
	c.mu.Unlock()
}

func (c *Client) currentRoom() *room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) send(data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.conn.Close()
}

type room struct {
	id      string
	mu      sync.Mutex
	members map[*Client]struct{}
	// dead is set once the room is pruned or the relay closes; joiners
	// holding a stale pointer must look the room up again.
	dead bool
}

// Relay maintains room membership and delivers messages to room members.
type Relay struct {
	mu     sync.Mutex
	rooms  map[string]*room
	closed bool

	store  MessageStore
	cfg    Config
	logger types.Logger
}

// New creates a relay that persists messages through store.
func New(store MessageStore, cfg Config, logger types.Logger) *Relay {
	return &Relay{
		rooms:  make(map[string]*room),
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Join registers conn in roomID, creating the room if needed.
func (r *Relay) Join(roomID string, conn Conn) (*Client, error) {
	client := &Client{ID: uuid.New().String(), conn: conn}
	if r.cfg.RateLimit > 0 {
		burst := r.cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(r.cfg.RateLimit), burst)
	}

	if err := r.Move(client, roomID); err != nil {
		return nil, err
	}
	return client, nil
}

// Move places an existing client into roomID, leaving its previous room first.
func (r *Relay) Move(client *Client, roomID string) error {
	if roomID == "" {
		return ErrRoomRequired
	}

	for {
		rm, err := r.lookupOrCreate(roomID)
		if err != nil {
			return err
		}

		prev := client.currentRoom()
		if prev == rm {
			return nil
		}
		if prev != nil {
			prev.mu.Lock()
			delete(prev.members, client)
			client.clearRoom(prev)
			prev.mu.Unlock()
		}

		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}
		rm.members[client] = struct{}{}
		client.setRoom(rm)
		rm.mu.Unlock()

		r.logger.Debug("Client joined room", "clientID", client.ID, "roomID", roomID)
		return nil
	}
}

func (r *Relay) lookupOrCreate(roomID string) (*room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRelayClosed
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, members: make(map[*Client]struct{})}
		r.rooms[roomID] = rm
	}
	return rm, nil
}

func (r *Relay) lookup(roomID string) (*room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	return rm, ok
}

func (r *Relay) snapshot() []*room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	return rooms
}

// Leave removes the client from its room. Leaving twice is a no-op.
func (r *Relay) Leave(client *Client) {
	rm := client.currentRoom()
	if rm == nil {
		return
	}

	rm.mu.Lock()
	delete(rm.members, client)
	client.clearRoom(rm)
	rm.mu.Unlock()

	r.logger.Debug("Client left room", "clientID", client.ID, "roomID", rm.id)
}

// Receive blocks until the client sends its next text payload.
// Any error means the connection is gone.
func (r *Relay) Receive(client *Client) ([]byte, error) {
	for {
		if r.cfg.IdleTimeout > 0 {
			if err := client.conn.SetReadDeadline(time.Now().Add(r.cfg.IdleTimeout)); err != nil {
				return nil, err
			}
		}

		messageType, data, err := client.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

// Dispatch validates one inbound payload, persists it and broadcasts it to
// the client's room. Problems are reported to the client only.
func (r *Relay) Dispatch(ctx context.Context, client *Client, payload []byte) {
	roomID := client.RoomID()
	if roomID == "" {
		return
	}

	var in InboundMessage
	if err := json.Unmarshal(payload, &in); err != nil {
		r.reply(client, ErrTextInvalidJSON)
		return
	}
	if in.SenderID == nil || in.Content == nil || *in.SenderID == "" || *in.Content == "" {
		r.reply(client, ErrTextMissingFields)
		return
	}
	if utf8.RuneCountInString(*in.Content) > MaxContentLength {
		r.reply(client, ErrTextContentTooLong)
		return
	}
	if client.limiter != nil && !client.limiter.Allow() {
		r.reply(client, ErrTextRateLimited)
		return
	}

	msg, err := r.store.CreateMessage(ctx, roomID, *in.SenderID, *in.Content)
	if err != nil {
		r.logger.Error("Failed to persist message",
			"roomID", roomID,
			"senderID", *in.SenderID,
			"error", err)
		r.reply(client, ErrTextPersistFailed)
		return
	}

	r.Broadcast(roomID, NewOutboundMessage(msg))
}

// Broadcast sends msg to every member of roomID, the sender included.
// A failed send removes and closes that member; it never aborts the pass.
func (r *Relay) Broadcast(roomID string, msg OutboundMessage) Delivery {
	delivery := Delivery{RoomID: roomID}

	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("Failed to marshal broadcast", "roomID", roomID, "error", err)
		return delivery
	}

	rm, ok := r.lookup(roomID)
	if !ok {
		return delivery
	}

	var failed []*Client

	rm.mu.Lock()
	for client := range rm.members {
		delivery.Attempted++
		if err := client.send(data, r.cfg.WriteTimeout); err != nil {
			r.logger.Error("Failed to deliver message, dropping client",
				"roomID", roomID,
				"clientID", client.ID,
				"error", err)
			delete(rm.members, client)
			client.clearRoom(rm)
			failed = append(failed, client)
			delivery.Dropped = append(delivery.Dropped, client.ID)
			continue
		}
		delivery.Delivered++
	}
	rm.mu.Unlock()

	for _, client := range failed {
		client.close()
	}
	return delivery
}

// Serve runs the lifetime of one connection: join, receive and dispatch
// until the connection fails, then leave.
func (r *Relay) Serve(ctx context.Context, roomID string, conn Conn) error {
	client, err := r.Join(roomID, conn)
	if err != nil {
		r.writeError(conn, err.Error())
		_ = conn.Close()
		return err
	}
	defer func() {
		r.Leave(client)
		client.close()
	}()

	r.logger.Info("Connection opened", "clientID", client.ID, "roomID", roomID)

	for {
		payload, err := r.Receive(client)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				r.logger.Info("Connection closed unexpectedly", "clientID", client.ID, "roomID", roomID, "error", err)
			} else {
				r.logger.Info("Connection closed", "clientID", client.ID, "roomID", roomID)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.Dispatch(ctx, client, payload)
	}
}

// PruneEmptyRooms drops room entries without members and reports how many.
// Rooms busy with a broadcast are skipped until the next run.
func (r *Relay) PruneEmptyRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for id, rm := range r.rooms {
		if !rm.mu.TryLock() {
			continue
		}
		if len(rm.members) == 0 {
			rm.dead = true
			delete(r.rooms, id)
			pruned++
		}
		rm.mu.Unlock()
	}
	return pruned
}

// Rooms returns the known room IDs in sorted order.
func (r *Relay) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomSize returns the number of members in a room.
func (r *Relay) RoomSize(roomID string) int {
	rm, ok := r.lookup(roomID)
	if !ok {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Members returns the client IDs currently in a room.
func (r *Relay) Members(roomID string) []string {
	rm, ok := r.lookup(roomID)
	if !ok {
		return nil
	}

	rm.mu.Lock()
	ids := make([]string, 0, len(rm.members))
	for client := range rm.members {
		ids = append(ids, client.ID)
	}
	rm.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// ConnectionCount returns the number of connections across all rooms.
func (r *Relay) ConnectionCount() int {
	total := 0
	for _, rm := range r.snapshot() {
		rm.mu.Lock()
		total += len(rm.members)
		rm.mu.Unlock()
	}
	return total
}

// Close disconnects every client and rejects further joins.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	rooms := r.rooms
	r.rooms = make(map[string]*room)
	r.mu.Unlock()

	var clients []*Client
	for _, rm := range rooms {
		rm.mu.Lock()
		rm.dead = true
		for client := range rm.members {
			delete(rm.members, client)
			client.clearRoom(rm)
			clients = append(clients, client)
		}
		rm.mu.Unlock()
	}

	for _, client := range clients {
		client.close()
	}
}

func (r *Relay) reply(client *Client, text string) {
	data, _ := json.Marshal(ErrorMessage{Error: text})
	if err := client.send(data, r.cfg.WriteTimeout); err != nil {
		r.logger.Error("Failed to send error reply", "clientID", client.ID, "error", err)
	}
}

func (r *Relay) writeError(conn Conn, text string) {
	data, _ := json.Marshal(ErrorMessage{Error: text})
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
