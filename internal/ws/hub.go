package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messenger/internal/models"
	"messenger/internal/observability"
)

// ChannelKind distinguishes group rooms from per-user DM channels.
type ChannelKind string

const (
	ChannelGroup ChannelKind = "group"
	ChannelUser  ChannelKind = "user"
)

// Channel is a logical realtime destination: one per group, one per
// user for direct messages.
type Channel struct {
	Kind ChannelKind
	ID   int
}

// GroupChannel addresses all members of a group.
func GroupChannel(groupID int) Channel { return Channel{Kind: ChannelGroup, ID: groupID} }

// UserChannel addresses all sessions of one user.
func UserChannel(userID int) Channel { return Channel{Kind: ChannelUser, ID: userID} }

// Conn is the part of *websocket.Conn the hub needs; tests substitute
// a recording fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type session struct {
	conn    Conn
	info    ConnInfo
	writeMu sync.Mutex
}

func (s *session) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

type typingKey struct {
	channel Channel
	userID  int
}

type typingEntry struct {
	username string
	expires  time.Time
}

// TypingExpiry reports a typing entry that timed out without an
// explicit stop.
type TypingExpiry struct {
	Channel  Channel
	UserID   int
	Username string
}

// Hub is the fan-out router. It owns the subscription table and the
// ephemeral typing state; it performs no authorization — callers
// resolve channels and ACLs before publishing.
type Hub struct {
	mu        sync.RWMutex
	channels  map[Channel]map[*session]struct{}
	sessions  map[Conn]*session
	byUser    map[int]map[*session]struct{}
	typing    map[typingKey]typingEntry
	typingTTL time.Duration
}

// NewHub creates an empty hub.
func NewHub(typingTTL time.Duration) *Hub {
	if typingTTL <= 0 {
		typingTTL = 6 * time.Second
	}
	return &Hub{
		channels:  make(map[Channel]map[*session]struct{}),
		sessions:  make(map[Conn]*session),
		byUser:    make(map[int]map[*session]struct{}),
		typing:    make(map[typingKey]typingEntry),
		typingTTL: typingTTL,
	}
}

// Register adds an authenticated connection subscribed to the given
// channels in one step.
func (h *Hub) Register(conn Conn, info ConnInfo, channels []Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &session{conn: conn, info: info}
	h.sessions[conn] = s
	if _, ok := h.byUser[info.UserID]; !ok {
		h.byUser[info.UserID] = make(map[*session]struct{})
	}
	h.byUser[info.UserID][s] = struct{}{}
	for _, ch := range channels {
		h.subscribeLocked(s, ch)
	}
}

// Unregister removes a connection and all of its subscriptions
// atomically, so a dead session can never receive a publish.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(conn)
}

func (h *Hub) unregisterLocked(conn Conn) {
	s, ok := h.sessions[conn]
	if !ok {
		return
	}
	delete(h.sessions, conn)
	for ch, members := range h.channels {
		if _, ok := members[s]; ok {
			delete(members, s)
			if len(members) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	if peers, ok := h.byUser[s.info.UserID]; ok {
		delete(peers, s)
		if len(peers) == 0 {
			delete(h.byUser, s.info.UserID)
		}
	}
}

func (h *Hub) subscribeLocked(s *session, ch Channel) {
	if _, ok := h.channels[ch]; !ok {
		h.channels[ch] = make(map[*session]struct{})
	}
	h.channels[ch][s] = struct{}{}
}

// SubscribeUser attaches every live session of the user to the channel,
// e.g. after a group join, without requiring a reconnect.
func (h *Hub) SubscribeUser(userID int, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.byUser[userID] {
		h.subscribeLocked(s, ch)
	}
}

// UnsubscribeUser detaches every live session of the user from the
// channel, e.g. after leaving or being removed from a group.
func (h *Hub) UnsubscribeUser(userID int, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[ch]
	if !ok {
		return
	}
	for s := range h.byUser[userID] {
		delete(members, s)
	}
	if len(members) == 0 {
		delete(h.channels, ch)
	}
	for key := range h.typing {
		if key.channel == ch && key.userID == userID {
			delete(h.typing, key)
		}
	}
}

// IsSubscribed reports whether the connection currently holds a
// subscription to the channel.
func (h *Hub) IsSubscribed(conn Conn, ch Channel) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[conn]
	if !ok {
		return false
	}
	_, ok = h.channels[ch][s]
	return ok
}

// SessionCount returns the number of live sessions for a user.
func (h *Hub) SessionCount(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// Publish delivers the event to every session subscribed to the
// channel. Delivery is fire-and-forget: a failed write drops that
// session only and the remaining subscribers still receive the event.
func (h *Hub) Publish(ch Channel, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.channels[ch]))
	for s := range h.channels[ch] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.write(payload); err != nil {
			log.Printf("websocket write error: %v", err)
			s.conn.Close()
			h.Unregister(s.conn)
			observability.IncDeliveryError(string(ch.Kind))
			h.publishWSError(ch, s.info, err)
			continue
		}
		observability.IncDelivery(string(ch.Kind), event.Type)
	}
}

// StartTyping records a typing indicator deduplicated by
// (user, channel). It returns true when the entry is new; a repeat
// start only refreshes the timeout.
func (h *Hub) StartTyping(ch Channel, userID int, username string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := typingKey{channel: ch, userID: userID}
	_, active := h.typing[key]
	h.typing[key] = typingEntry{username: username, expires: time.Now().Add(h.typingTTL)}
	return !active
}

// StopTyping removes a typing indicator. It returns false when no
// entry was active.
func (h *Hub) StopTyping(ch Channel, userID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := typingKey{channel: ch, userID: userID}
	if _, ok := h.typing[key]; !ok {
		return false
	}
	delete(h.typing, key)
	return true
}

// SweepTyping drops entries whose timeout passed and returns them so
// the caller can broadcast the matching stop events.
func (h *Hub) SweepTyping(now time.Time) []TypingExpiry {
	h.mu.Lock()
	defer h.mu.Unlock()
	var expired []TypingExpiry
	for key, entry := range h.typing {
		if now.After(entry.expires) {
			expired = append(expired, TypingExpiry{Channel: key.channel, UserID: key.userID, Username: entry.username})
			delete(h.typing, key)
		}
	}
	return expired
}

// RunTypingSweeper broadcasts typing:stop for timed-out indicators
// until the context is cancelled.
func (h *Hub) RunTypingSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, exp := range h.SweepTyping(now) {
				event := models.Event{Type: models.EventTypingStop, UserID: exp.UserID, Username: exp.Username}
				if exp.Channel.Kind == ChannelGroup {
					event.GroupID = exp.Channel.ID
				}
				h.Publish(exp.Channel, event)
			}
		}
	}
}

func (h *Hub) publishWSError(ch Channel, info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        string(ch.Kind),
			"resource_id": ch.ID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(string(ch.Kind), "ws_error")
}
