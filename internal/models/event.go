package models

// Event names pushed over websocket connections.
const (
	EventMessageNew      = "message:new"
	EventMessageUpdated  = "message:updated"
	EventMessageDeleted  = "message:deleted"
	EventMessageReaction = "message:reaction"
	EventMessageRead     = "message:read"
	EventTypingStart     = "typing:start"
	EventTypingStop      = "typing:stop"
	EventGroupUpdated    = "group:updated"
	EventPresenceChanged = "presence:changed"
)

// Event is the envelope broadcast through the fan-out router.
type Event struct {
	Type      string         `json:"type"`
	Message   *Message       `json:"message,omitempty"`
	MessageID int            `json:"message_id,omitempty"`
	Group     *Group         `json:"group,omitempty"`
	GroupID   int            `json:"group_id,omitempty"`
	UserID    int            `json:"user_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	Emoji     string         `json:"emoji,omitempty"`
	Status    PresenceStatus `json:"status,omitempty"`
}
