package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger/internal/models"
	"messenger/internal/repositories"
	"messenger/internal/telemetry"
	"messenger/internal/ws"
)

// GroupHandler manages group and membership endpoints. Authorization
// decisions come from the group aggregate; the hub only reflects them.
type GroupHandler struct {
	groupRepo repositories.GroupRepository
	userRepo  repositories.UserRepository
	hub       *ws.Hub
	audit     *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, userRepo repositories.UserRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groupRepo: groupRepo, userRepo: userRepo, hub: hub, audit: audit}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name      string `json:"name" binding:"required"`
		IsPrivate bool   `json:"is_private"`
		MemberIDs []int  `json:"member_ids"`
		Settings  struct {
			AllowInvites    *bool `json:"allow_invites"`
			RequireApproval bool  `json:"require_approval"`
			MaxMembers      int   `json:"max_members"`
		} `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creator, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "failed to load user")
		return
	}

	settings := models.DefaultGroupSettings()
	if req.Settings.AllowInvites != nil {
		settings.AllowInvites = *req.Settings.AllowInvites
	}
	settings.RequireApproval = req.Settings.RequireApproval
	if req.Settings.MaxMembers != 0 {
		settings.MaxMembers = req.Settings.MaxMembers
	}

	group, err := models.NewGroup(req.Name, userID, creator.Username, creator.Avatar, req.IsPrivate, settings)
	if err != nil {
		writeError(c, err, "could not create group")
		return
	}

	// seed initial members before the first insert
	if len(req.MemberIDs) > 0 {
		users, err := h.userRepo.BulkUsers(c.Request.Context(), req.MemberIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate members"})
			return
		}
		byID := make(map[int]models.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}
		for _, id := range req.MemberIDs {
			u, ok := byID[id]
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown member id"})
				return
			}
			if err := group.AddMember(u.ID, u.Username, u.Avatar); err != nil && err != models.ErrAlreadyMember {
				writeError(c, err, "could not create group")
				return
			}
		}
	}

	created, err := h.groupRepo.CreateGroup(c.Request.Context(), group)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	for _, memberID := range created.MemberIDs() {
		h.hub.SubscribeUser(memberID, ws.GroupChannel(created.ID))
	}
	h.hub.Publish(ws.GroupChannel(created.ID), models.Event{Type: models.EventGroupUpdated, Group: &created, GroupID: created.ID})

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, gin.H{"group": created})
}

// ListGroups returns groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetInt("userID")
	groups, err := h.groupRepo.ListGroupsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup returns one group to a current member.
func (h *GroupHandler) GetGroup(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// JoinByInviteCode handles POST /groups/join for private groups.
func (h *GroupHandler) JoinByInviteCode(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
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

	group, err := h.groupRepo.GetGroupByInviteCode(c.Request.Context(), req.InviteCode)
	if err != nil {
		writeError(c, err, "failed to join group")
		return
	}

	updated, err := h.groupRepo.UpdateGroup(c.Request.Context(), group.ID, func(g *models.Group) error {
		return g.AddMember(user.ID, user.Username, user.Avatar)
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "join failed")
		writeError(c, err, "failed to join group")
		return
	}

	h.hub.SubscribeUser(userID, ws.GroupChannel(updated.ID))
	h.hub.Publish(ws.GroupChannel(updated.ID), models.Event{Type: models.EventGroupUpdated, Group: &updated, GroupID: updated.ID})

	h.emitAudit(c, "INFO", "Group joined via invite")
	c.JSON(http.StatusOK, gin.H{"group": updated})
}

// AddMember handles POST /groups/:group_id/members.
func (h *GroupHandler) AddMember(c *gin.Context) {
	groupID, ok := paramInt(c, "group_id")
	if !ok {
		return
	}
	actorID := c.GetInt("userID")

	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := h.userRepo.GetUser(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err, "failed to load user")
		return
	}

	updated, err := h.groupRepo.UpdateGroup(c.Request.Context(), groupID, func(g *models.Group) error {
		if !g.IsMember(actorID) {
			return models.ErrNotMember
		}
		if !g.Settings.AllowInvites && !g.IsAdmin(actorID) {
			return &models.DomainError{Kind: models.KindAuthorization, Msg: "only admins may add members"}
		}
		return g.AddMember(target.ID, target.Username, target.Avatar)
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "add member failed")
		writeError(c, err, "could not add member")
		return
	}

	h.hub.SubscribeUser(target.ID, ws.GroupChannel(groupID))
	h.hub.Publish(ws.GroupChannel(groupID), models.Event{Type: models.EventGroupUpdated, Group: &updated, GroupID: groupID})

	h.emitAudit(c, "INFO", "Member added")
	c.JSON(http.StatusOK, gin.H{"group": updated})
}

// RemoveMember handles DELETE /groups/:group_id/members/:user_id.
// Members may remove themselves; removing someone else takes admin.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := paramInt(c, "group_id")
	if !ok {
		return
	}
	targetID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	actorID := c.GetInt("userID")

	updated, err := h.groupRepo.UpdateGroup(c.Request.Context(), groupID, func(g *models.Group) error {
		if !g.IsMember(actorID) {
			return models.ErrNotMember
		}
		if actorID != targetID && !g.IsAdmin(actorID) {
			return &models.DomainError{Kind: models.KindAuthorization, Msg: "only admins may remove members"}
		}
		return g.RemoveMember(targetID)
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "remove member failed")
		writeError(c, err, "could not remove member")
		return
	}

	h.hub.UnsubscribeUser(targetID, ws.GroupChannel(groupID))
	h.hub.Publish(ws.GroupChannel(groupID), models.Event{Type: models.EventGroupUpdated, Group: &updated, GroupID: groupID})

	h.emitAudit(c, "INFO", "Member removed")
	c.JSON(http.StatusOK, gin.H{"group": updated})
}

// PromoteAdmin handles POST /groups/:group_id/admins/:user_id.
func (h *GroupHandler) PromoteAdmin(c *gin.Context) {
	h.changeAdmin(c, true)
}

// DemoteAdmin handles DELETE /groups/:group_id/admins/:user_id.
func (h *GroupHandler) DemoteAdmin(c *gin.Context) {
	h.changeAdmin(c, false)
}

func (h *GroupHandler) changeAdmin(c *gin.Context, promote bool) {
	groupID, ok := paramInt(c, "group_id")
	if !ok {
		return
	}
	targetID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	actorID := c.GetInt("userID")

	updated, err := h.groupRepo.UpdateGroup(c.Request.Context(), groupID, func(g *models.Group) error {
		if !g.IsAdmin(actorID) {
			return &models.DomainError{Kind: models.KindAuthorization, Msg: "only admins may manage admins"}
		}
		if promote {
			return g.PromoteToAdmin(targetID)
		}
		return g.DemoteFromAdmin(targetID)
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "admin change failed")
		writeError(c, err, "could not update admins")
		return
	}

	h.hub.Publish(ws.GroupChannel(groupID), models.Event{Type: models.EventGroupUpdated, Group: &updated, GroupID: groupID})

	h.emitAudit(c, "INFO", "Admins updated")
	c.JSON(http.StatusOK, gin.H{"group": updated})
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
