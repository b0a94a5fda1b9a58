package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger/internal/models"
	"messenger/internal/presence"
	"messenger/internal/repositories"
	"messenger/internal/telemetry"
	"messenger/internal/ws"
)

// UserHandler serves account and presence endpoints.
type UserHandler struct {
	userRepo  repositories.UserRepository
	groupRepo repositories.GroupRepository
	presence  presence.Registry
	hub       *ws.Hub
	audit     *telemetry.AuditEmitter
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(userRepo repositories.UserRepository, groupRepo repositories.GroupRepository, registry presence.Registry, hub *ws.Hub, audit *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{userRepo: userRepo, groupRepo: groupRepo, presence: registry, hub: hub, audit: audit}
}

// Me returns the authenticated account with its live presence status.
func (h *UserHandler) Me(c *gin.Context) {
	userID := c.GetInt("userID")

	user, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "failed to load user")
		return
	}

	status, err := h.presence.Get(c.Request.Context(), userID)
	if err == nil {
		user.Status = status
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateStatus handles PUT /users/me/status and broadcasts the change
// to every group the user belongs to.
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := models.ParsePresenceStatus(req.Status)
	if err != nil {
		writeError(c, err, "invalid status")
		return
	}

	user, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "failed to load user")
		return
	}

	if err := h.presence.Set(c.Request.Context(), userID, status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update presence"})
		return
	}
	if err := h.userRepo.UpdateStatus(c.Request.Context(), userID, status); err != nil {
		writeError(c, err, "failed to update status")
		return
	}

	groups, err := h.groupRepo.ListGroupsForUser(c.Request.Context(), userID)
	if err == nil {
		event := models.Event{Type: models.EventPresenceChanged, UserID: userID, Username: user.Username, Status: status}
		for _, g := range groups {
			h.hub.Publish(ws.GroupChannel(g.ID), event)
		}
	}

	h.emitAudit(c, "INFO", "Status updated")
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *UserHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
