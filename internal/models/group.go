package models

import (
	"crypto/rand"
	"database/sql/driver"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"
)

// GroupRole is the role of a user inside one group.
type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

const (
	MinGroupMembers = 2
	MaxGroupMembers = 1000

	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GroupMember is one entry in a group's member list. The member's Role
// is the single source of truth for admin status; the admin set is
// derived from it so the two views cannot diverge.
type GroupMember struct {
	UserID   int            `json:"user_id"`
	Username string         `json:"username"`
	Avatar   string         `json:"avatar,omitempty"`
	Role     GroupRole      `json:"role"`
	JoinedAt time.Time      `json:"joined_at"`
	Status   PresenceStatus `json:"status"`
}

// GroupMemberList is stored as a single JSONB document so the whole
// list is replaced atomically on every write.
type GroupMemberList []GroupMember

func (l GroupMemberList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *GroupMemberList) Scan(src any) error          { return jsonbScan(src, l) }

// GroupSettings holds per-group policy.
type GroupSettings struct {
	AllowInvites    bool `json:"allow_invites"`
	RequireApproval bool `json:"require_approval"`
	MaxMembers      int  `json:"max_members"`
}

func (s GroupSettings) Value() (driver.Value, error) { return jsonbValue(s) }
func (s *GroupSettings) Scan(src any) error          { return jsonbScan(src, s) }

// DefaultGroupSettings matches a freshly created group.
func DefaultGroupSettings() GroupSettings {
	return GroupSettings{AllowInvites: true, RequireApproval: false, MaxMembers: 100}
}

// Group is a chat group aggregate. All mutations go through its methods
// and fail fast without partial writes.
type Group struct {
	ID         int             `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	IsPrivate  bool            `db:"is_private" json:"is_private"`
	InviteCode string          `db:"invite_code" json:"invite_code,omitempty"`
	CreatedBy  int             `db:"created_by" json:"created_by"`
	Settings   GroupSettings   `db:"settings" json:"settings"`
	Members    GroupMemberList `db:"members" json:"members"`
	Version    int             `db:"version" json:"-"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// NewGroup validates input and constructs a group with the creator
// already present as an admin member. Derivation (invite code, creator
// admin) happens here in one step, not in persistence hooks.
func NewGroup(name string, createdBy int, creatorName, creatorAvatar string, isPrivate bool, settings GroupSettings) (Group, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 50 {
		return Group{}, validationError("group name must be between 1 and 50 characters")
	}
	if settings.MaxMembers == 0 {
		settings.MaxMembers = DefaultGroupSettings().MaxMembers
	}
	if settings.MaxMembers < MinGroupMembers || settings.MaxMembers > MaxGroupMembers {
		return Group{}, validationError("max members must be between 2 and 1000")
	}

	g := Group{
		Name:      name,
		IsPrivate: isPrivate,
		CreatedBy: createdBy,
		Settings:  settings,
		Members: GroupMemberList{{
			UserID:   createdBy,
			Username: creatorName,
			Avatar:   creatorAvatar,
			Role:     GroupRoleAdmin,
			JoinedAt: time.Now().UTC(),
			Status:   StatusOnline,
		}},
	}
	if isPrivate {
		code, err := GenerateInviteCode()
		if err != nil {
			return Group{}, err
		}
		g.InviteCode = code
	}
	return g, nil
}

// GenerateInviteCode returns an 8-character code drawn uniformly from
// the alphanumeric alphabet.
func GenerateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

func (g *Group) member(userID int) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// IsMember reports whether the user is currently in the group.
func (g *Group) IsMember(userID int) bool { return g.member(userID) != nil }

// IsAdmin reports whether the user is currently a group admin.
func (g *Group) IsAdmin(userID int) bool {
	m := g.member(userID)
	return m != nil && m.Role == GroupRoleAdmin
}

// Admins returns the ids of all admin members.
func (g *Group) Admins() []int {
	var ids []int
	for _, m := range g.Members {
		if m.Role == GroupRoleAdmin {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// MemberIDs returns the ids of all members in join order.
func (g *Group) MemberIDs() []int {
	ids := make([]int, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// AddMember appends a regular member.
func (g *Group) AddMember(userID int, username, avatar string) error {
	if g.IsMember(userID) {
		return ErrAlreadyMember
	}
	if len(g.Members) >= g.Settings.MaxMembers {
		return ErrGroupFull
	}
	g.Members = append(g.Members, GroupMember{
		UserID:   userID,
		Username: username,
		Avatar:   avatar,
		Role:     GroupRoleMember,
		JoinedAt: time.Now().UTC(),
		Status:   StatusOnline,
	})
	return nil
}

// RemoveMember drops a member. An admin leaving is demoted implicitly
// since admin status lives on the removed entry.
func (g *Group) RemoveMember(userID int) error {
	if userID == g.CreatedBy {
		return ErrCreatorProtected
	}
	for i, m := range g.Members {
		if m.UserID == userID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return nil
		}
	}
	return ErrNotMember
}

// PromoteToAdmin grants the group admin role.
func (g *Group) PromoteToAdmin(userID int) error {
	m := g.member(userID)
	if m == nil {
		return ErrNotMember
	}
	if m.Role == GroupRoleAdmin {
		return ErrAlreadyAdmin
	}
	m.Role = GroupRoleAdmin
	return nil
}

// DemoteFromAdmin revokes the group admin role.
func (g *Group) DemoteFromAdmin(userID int) error {
	if userID == g.CreatedBy {
		return ErrCreatorProtected
	}
	m := g.member(userID)
	if m == nil {
		return ErrNotMember
	}
	if m.Role != GroupRoleAdmin {
		return ErrNotAdmin
	}
	m.Role = GroupRoleMember
	return nil
}
