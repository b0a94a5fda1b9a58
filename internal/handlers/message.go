package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger/internal/models"
	"messenger/internal/repositories"
	"messenger/internal/telemetry"
	"messenger/internal/ws"
)

// MessageHandler manages group and direct message endpoints. Each
// mutation authorizes against the group aggregate, applies through the
// message aggregate, then broadcasts — strictly in that order.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	groupRepo   repositories.GroupRepository
	userRepo    repositories.UserRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, groupRepo repositories.GroupRepository, userRepo repositories.UserRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messageRepo: messageRepo, groupRepo: groupRepo, userRepo: userRepo, hub: hub, audit: audit}
}

type attachmentRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

func buildAttachments(reqs []attachmentRequest) []models.Attachment {
	attachments := make([]models.Attachment, 0, len(reqs))
	for _, a := range reqs {
		attachments = append(attachments, models.Attachment{
			ID:       uuid.NewString(),
			Name:     a.Name,
			URL:      a.URL,
			Type:     models.AttachmentType(a.Type),
			Size:     a.Size,
			MimeType: a.MimeType,
		})
	}
	return attachments
}

// ListGroupMessages handles GET /groups/:group_id/messages. Deleted
// messages are excluded unless a group admin asks for them.
func (h *MessageHandler) ListGroupMessages(c *gin.Context) {
	groupID, ok := paramInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		writeError(c, err, "failed to load group")
		return
	}
	if !group.IsMember(userID) {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	includeDeleted := c.Query("include_deleted") == "true" && group.IsAdmin(userID)

	msgs, err := h.messageRepo.ListGroupMessages(c.Request.Context(), groupID, includeDeleted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	resp, err := h.hydrateSenders(c.Request.Context(), msgs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostGroupMessage handles POST /groups/:group_id/messages.
func (h *MessageHandler) PostGroupMessage(c *gin.Context) {
	groupID, ok := paramInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	var req struct {
		Content     string              `json:"content"`
		ReplyTo     *int                `json:"reply_to"`
		Attachments []attachmentRequest `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := models.NewMessage(req.Content, userID, &groupID, nil, req.ReplyTo, buildAttachments(req.Attachments))
	if err != nil {
		writeError(c, err, "could not create message")
		return
	}

	created, err := h.messageRepo.CreateMessage(c.Request.Context(), msg)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.hub.Publish(ws.GroupChannel(groupID), models.Event{Type: models.EventMessageNew, Message: &created})
	h.emitAudit(c, "INFO", "Group message sent")
	c.JSON(http.StatusCreated, created)
}

// ListDirectMessages handles GET /dms/:user_id/messages.
func (h *MessageHandler) ListDirectMessages(c *gin.Context) {
	otherID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	includeDeleted := c.Query("include_deleted") == "true"

	msgs, err := h.messageRepo.ListDirectMessages(c.Request.Context(), userID, otherID, includeDeleted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	resp, err := h.hydrateSenders(c.Request.Context(), msgs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostDirectMessage handles POST /dms/:user_id/messages.
func (h *MessageHandler) PostDirectMessage(c *gin.Context) {
	recipientID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")
	if recipientID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}

	if _, err := h.userRepo.GetUser(c.Request.Context(), recipientID); err != nil {
		writeError(c, err, "failed to load recipient")
		return
	}

	var req struct {
		Content     string              `json:"content"`
		ReplyTo     *int                `json:"reply_to"`
		Attachments []attachmentRequest `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := models.NewMessage(req.Content, userID, nil, &recipientID, req.ReplyTo, buildAttachments(req.Attachments))
	if err != nil {
		writeError(c, err, "could not create message")
		return
	}

	created, err := h.messageRepo.CreateMessage(c.Request.Context(), msg)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	for _, ch := range messageChannels(created) {
		h.hub.Publish(ch, models.Event{Type: models.EventMessageNew, Message: &created})
	}
	h.emitAudit(c, "INFO", "Direct message sent")
	c.JSON(http.StatusCreated, created)
}

// EditMessage handles PUT /messages/:message_id. The sender may edit;
// for group messages a group admin may as well.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.mutateAuthorized(c, messageID, userID, true, func(m *models.Message) error {
		return m.Edit(req.Content)
	})
	if err != nil {
		return
	}

	for _, ch := range messageChannels(updated) {
		h.hub.Publish(ch, models.Event{Type: models.EventMessageUpdated, Message: &updated})
	}
	h.emitAudit(c, "INFO", "Message edited")
	c.JSON(http.StatusOK, updated)
}

// DeleteMessage handles DELETE /messages/:message_id as a soft delete.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	updated, err := h.mutateAuthorized(c, messageID, userID, true, func(m *models.Message) error {
		m.SoftDelete(userID)
		return nil
	})
	if err != nil {
		return
	}

	for _, ch := range messageChannels(updated) {
		h.hub.Publish(ch, models.Event{Type: models.EventMessageDeleted, MessageID: messageID})
	}
	h.emitAudit(c, "INFO", "Message deleted")
	c.Status(http.StatusNoContent)
}

// AddReaction handles POST /messages/:message_id/reactions.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "failed to load user")
		return
	}

	updated, err := h.mutateAuthorized(c, messageID, userID, false, func(m *models.Message) error {
		return m.AddReaction(req.Emoji, userID, user.Username)
	})
	if err != nil {
		return
	}

	for _, ch := range messageChannels(updated) {
		h.hub.Publish(ch, models.Event{Type: models.EventMessageReaction, Message: &updated, Emoji: req.Emoji, UserID: userID})
	}
	h.emitAudit(c, "INFO", "Reaction added")
	c.JSON(http.StatusOK, updated)
}

// RemoveReaction handles DELETE /messages/:message_id/reactions/:emoji.
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	emoji := c.Param("emoji")
	userID := c.GetInt("userID")

	updated, err := h.mutateAuthorized(c, messageID, userID, false, func(m *models.Message) error {
		return m.RemoveReaction(emoji, userID)
	})
	if err != nil {
		return
	}

	for _, ch := range messageChannels(updated) {
		h.hub.Publish(ch, models.Event{Type: models.EventMessageReaction, Message: &updated, Emoji: emoji, UserID: userID})
	}
	h.emitAudit(c, "INFO", "Reaction removed")
	c.JSON(http.StatusOK, updated)
}

// MarkRead handles POST /messages/:message_id/read. Re-reading is a
// no-op and broadcasts nothing.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	changed := false
	updated, err := h.mutateAuthorized(c, messageID, userID, false, func(m *models.Message) error {
		changed = m.MarkAsRead(userID)
		return nil
	})
	if err != nil {
		return
	}

	if changed {
		for _, ch := range messageChannels(updated) {
			h.hub.Publish(ch, models.Event{Type: models.EventMessageRead, MessageID: messageID, UserID: userID})
		}
	}
	h.emitAudit(c, "INFO", "Message read")
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// mutateAuthorized loads the message, checks conversation access and
// applies mutate through the serialized update path. With senderOnly
// set, only the sender — or a group admin for group messages — passes.
// On failure it writes the response and returns a non-nil error.
func (h *MessageHandler) mutateAuthorized(c *gin.Context, messageID, userID int, senderOnly bool, mutate func(*models.Message) error) (models.Message, error) {
	ctx := c.Request.Context()

	msg, err := h.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		writeError(c, err, "failed to load message")
		return models.Message{}, err
	}

	var group *models.Group
	if msg.GroupID != nil {
		g, err := h.groupRepo.GetGroup(ctx, *msg.GroupID)
		if err != nil {
			writeError(c, err, "failed to load group")
			return models.Message{}, err
		}
		if !g.IsMember(userID) {
			h.emitAudit(c, "ERROR", "not allowed")
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
			return models.Message{}, models.ErrNotMember
		}
		group = &g
	} else if msg.SenderID != userID && (msg.RecipientID == nil || *msg.RecipientID != userID) {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return models.Message{}, models.ErrNotMember
	}

	if senderOnly && msg.SenderID != userID {
		if group == nil || !group.IsAdmin(userID) {
			h.emitAudit(c, "ERROR", "not allowed")
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may do this"})
			return models.Message{}, models.ErrNotMember
		}
	}

	updated, err := h.messageRepo.UpdateMessage(ctx, messageID, mutate)
	if err != nil {
		h.emitAudit(c, "ERROR", "message update failed")
		writeError(c, err, "could not update message")
		return models.Message{}, err
	}
	return updated, nil
}

type messageResponse struct {
	models.Message
	SenderUsername string `json:"sender_username,omitempty"`
}

func (h *MessageHandler) hydrateSenders(ctx context.Context, msgs []models.Message) ([]messageResponse, error) {
	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	usernameByID := map[int]string{}
	if len(senderIDs) > 0 {
		users, err := h.userRepo.BulkUsers(ctx, senderIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			usernameByID[u.ID] = u.Username
		}
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{Message: m, SenderUsername: usernameByID[m.SenderID]})
	}
	return resp, nil
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
