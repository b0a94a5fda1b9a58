package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messenger/internal/auth"
	"messenger/internal/models"
	"messenger/internal/observability"
	"messenger/internal/presence"
	"messenger/internal/repositories"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SocketHandler upgrades client connections and drives the session
// lifecycle: authenticate, subscribe to all authorized channels, relay
// typing signals, clean up on disconnect.
type SocketHandler struct {
	hub       *Hub
	groupRepo repositories.GroupRepository
	userRepo  repositories.UserRepository
	tokens    *auth.TokenManager
	presence  presence.Registry
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, groupRepo repositories.GroupRepository, userRepo repositories.UserRepository, tokens *auth.TokenManager, registry presence.Registry) *SocketHandler {
	return &SocketHandler{hub: hub, groupRepo: groupRepo, userRepo: userRepo, tokens: tokens, presence: registry}
}

type clientEvent struct {
	Type        string `json:"type"`
	GroupID     int    `json:"group_id,omitempty"`
	RecipientID int    `json:"recipient_id,omitempty"`
}

// Handle upgrades and registers a websocket session.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.tokens.Validate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := h.userRepo.GetUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	groups, err := h.groupRepo.ListGroupsForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	channels := make([]Channel, 0, len(groups)+1)
	channels = append(channels, UserChannel(userID))
	groupIDs := make([]int, 0, len(groups))
	for _, g := range groups {
		channels = append(channels, GroupChannel(g.ID))
		groupIDs = append(groupIDs, g.ID)
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		Username:    user.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Register(conn, info, channels)

	observability.IncWSActive("session")
	observability.IncWSEvent("session", "ws_connect")
	h.publishLifecycleEvent(ctx, info, "ws_connect", "")

	if h.hub.SessionCount(userID) == 1 {
		h.setPresence(ctx, userID, user.Username, models.StatusOnline, groupIDs)
	}

	go h.readLoop(conn, info)
}

func (h *SocketHandler) readLoop(conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
		observability.DecWSActive("session")
		observability.IncWSEvent("session", "ws_disconnect")
		h.publishLifecycleEvent(context.Background(), info, "ws_disconnect", closeReason)

		if h.hub.SessionCount(info.UserID) == 0 {
			// membership may have changed since the handshake; the
			// offline broadcast targets the current group set
			h.setPresence(context.Background(), info.UserID, info.Username, models.StatusOffline, h.currentGroupIDs(context.Background(), info.UserID))
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("session", "ws_error")
			}
			return
		}

		if err := h.presence.Touch(context.Background(), info.UserID); err != nil {
			log.Printf("presence touch failed: %v", err)
		}

		var ev clientEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			continue
		}
		h.handleClientEvent(conn, info, ev)
	}
}

func (h *SocketHandler) handleClientEvent(conn Conn, info ConnInfo, ev clientEvent) {
	var ch Channel
	switch {
	case ev.GroupID != 0:
		ch = GroupChannel(ev.GroupID)
		// group typing is only relayed for channels this session is
		// actually subscribed to; non-members stop here
		if !h.hub.IsSubscribed(conn, ch) {
			return
		}
	case ev.RecipientID != 0:
		// DM typing goes to any existing user, matching the open DM
		// send policy, but never to self or to made-up ids
		if ev.RecipientID == info.UserID {
			return
		}
		if _, err := h.userRepo.GetUser(context.Background(), ev.RecipientID); err != nil {
			return
		}
		ch = UserChannel(ev.RecipientID)
	default:
		return
	}

	switch ev.Type {
	case models.EventTypingStart:
		if h.hub.StartTyping(ch, info.UserID, info.Username) {
			h.hub.Publish(ch, typingEvent(models.EventTypingStart, ch, info))
			observability.IncWSEvent(string(ch.Kind), "typing_start")
		}
	case models.EventTypingStop:
		if h.hub.StopTyping(ch, info.UserID) {
			h.hub.Publish(ch, typingEvent(models.EventTypingStop, ch, info))
			observability.IncWSEvent(string(ch.Kind), "typing_stop")
		}
	}
}

func typingEvent(eventType string, ch Channel, info ConnInfo) models.Event {
	event := models.Event{Type: eventType, UserID: info.UserID, Username: info.Username}
	if ch.Kind == ChannelGroup {
		event.GroupID = ch.ID
	}
	return event
}

// currentGroupIDs resolves the user's group memberships as of now.
func (h *SocketHandler) currentGroupIDs(ctx context.Context, userID int) []int {
	groups, err := h.groupRepo.ListGroupsForUser(ctx, userID)
	if err != nil {
		log.Printf("group list failed: %v", err)
		return nil
	}
	ids := make([]int, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids
}

func (h *SocketHandler) setPresence(ctx context.Context, userID int, username string, status models.PresenceStatus, groupIDs []int) {
	if err := h.presence.Set(ctx, userID, status); err != nil {
		log.Printf("presence update failed: %v", err)
	}
	if err := h.userRepo.UpdateStatus(ctx, userID, status); err != nil {
		log.Printf("status update failed: %v", err)
	}
	event := models.Event{Type: models.EventPresenceChanged, UserID: userID, Username: username, Status: status}
	for _, groupID := range groupIDs {
		h.hub.Publish(GroupChannel(groupID), event)
	}
}

func (h *SocketHandler) publishLifecycleEvent(ctx context.Context, info ConnInfo, name, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "session",
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}
