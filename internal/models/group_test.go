package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroup(t *testing.T) Group {
	t.Helper()
	group, err := NewGroup("backend crew", 1, "carol", "", false, DefaultGroupSettings())
	require.NoError(t, err)
	return group
}

func TestNewGroupCreatorIsAdminMember(t *testing.T) {
	group := newTestGroup(t)

	assert.True(t, group.IsMember(1))
	assert.True(t, group.IsAdmin(1))
	assert.Equal(t, []int{1}, group.Admins())
	require.Len(t, group.Members, 1)
	assert.Equal(t, GroupRoleAdmin, group.Members[0].Role)
}

func TestNewGroupValidation(t *testing.T) {
	_, err := NewGroup("", 1, "carol", "", false, DefaultGroupSettings())
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, kind)

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'x'
	}
	_, err = NewGroup(string(long), 1, "carol", "", false, DefaultGroupSettings())
	require.Error(t, err)

	// the 50-character cap counts runes, so a multibyte name of 50
	// characters (150 bytes) is valid and 51 is not
	_, err = NewGroup(strings.Repeat("グ", 50), 1, "carol", "", false, DefaultGroupSettings())
	require.NoError(t, err)
	_, err = NewGroup(strings.Repeat("グ", 51), 1, "carol", "", false, DefaultGroupSettings())
	require.Error(t, err)

	_, err = NewGroup("ok", 1, "carol", "", false, GroupSettings{MaxMembers: 1})
	require.Error(t, err)
	_, err = NewGroup("ok", 1, "carol", "", false, GroupSettings{MaxMembers: 1001})
	require.Error(t, err)
}

func TestNewGroupPrivateGetsInviteCode(t *testing.T) {
	group, err := NewGroup("secret", 1, "carol", "", true, DefaultGroupSettings())
	require.NoError(t, err)
	assert.Len(t, group.InviteCode, 8)

	public, err := NewGroup("open", 1, "carol", "", false, DefaultGroupSettings())
	require.NoError(t, err)
	assert.Empty(t, public.InviteCode)
}

func TestGenerateInviteCodeAlphabet(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GenerateInviteCode()
		require.NoError(t, err)
		require.Len(t, code, 8)
		for _, r := range code {
			assert.Contains(t, inviteCodeAlphabet, string(r))
		}
		seen[code] = true
	}
	// 20 collisions over a 62^8 space would mean a broken generator
	assert.Greater(t, len(seen), 1)
}

func TestAddMember(t *testing.T) {
	group := newTestGroup(t)

	require.NoError(t, group.AddMember(2, "dave", ""))
	assert.True(t, group.IsMember(2))
	assert.False(t, group.IsAdmin(2))

	err := group.AddMember(2, "dave", "")
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.Len(t, group.Members, 2)
}

func TestAddMemberGroupFull(t *testing.T) {
	group, err := NewGroup("duo", 1, "carol", "", false, GroupSettings{MaxMembers: 2})
	require.NoError(t, err)

	require.NoError(t, group.AddMember(2, "dave", ""))
	err = group.AddMember(3, "erin", "")
	assert.ErrorIs(t, err, ErrGroupFull)
	assert.Len(t, group.Members, 2)
}

func TestRemoveMember(t *testing.T) {
	group := newTestGroup(t)
	require.NoError(t, group.AddMember(2, "dave", ""))

	require.NoError(t, group.RemoveMember(2))
	assert.False(t, group.IsMember(2))

	assert.ErrorIs(t, group.RemoveMember(2), ErrNotMember)
}

func TestRemoveMemberDropsAdminRoleAtomically(t *testing.T) {
	group := newTestGroup(t)
	require.NoError(t, group.AddMember(2, "dave", ""))
	require.NoError(t, group.PromoteToAdmin(2))
	require.Contains(t, group.Admins(), 2)

	require.NoError(t, group.RemoveMember(2))
	assert.False(t, group.IsMember(2))
	assert.NotContains(t, group.Admins(), 2)
}

func TestRemoveCreatorAlwaysFails(t *testing.T) {
	group := newTestGroup(t)
	assert.ErrorIs(t, group.RemoveMember(1), ErrCreatorProtected)
	assert.True(t, group.IsMember(1))

	// still protected after losing admin would-be edge: creator is
	// protected by identity, not by role
	require.NoError(t, group.AddMember(2, "dave", ""))
	require.NoError(t, group.PromoteToAdmin(2))
	assert.ErrorIs(t, group.RemoveMember(1), ErrCreatorProtected)
}

func TestPromoteAndDemote(t *testing.T) {
	group := newTestGroup(t)
	require.NoError(t, group.AddMember(2, "dave", ""))

	assert.ErrorIs(t, group.PromoteToAdmin(3), ErrNotMember)
	assert.ErrorIs(t, group.DemoteFromAdmin(2), ErrNotAdmin)

	require.NoError(t, group.PromoteToAdmin(2))
	assert.ErrorIs(t, group.PromoteToAdmin(2), ErrAlreadyAdmin)
	assert.True(t, group.IsAdmin(2))

	// role field and derived admin set stay in lockstep
	for _, m := range group.Members {
		if m.UserID == 2 {
			assert.Equal(t, GroupRoleAdmin, m.Role)
		}
	}

	require.NoError(t, group.DemoteFromAdmin(2))
	assert.False(t, group.IsAdmin(2))
	assert.NotContains(t, group.Admins(), 2)
}

func TestDemoteCreatorFails(t *testing.T) {
	group := newTestGroup(t)
	assert.ErrorIs(t, group.DemoteFromAdmin(1), ErrCreatorProtected)
	assert.True(t, group.IsAdmin(1))
}

func TestMembershipRoundTrip(t *testing.T) {
	group, err := NewGroup("duo", 1, "carol", "", false, GroupSettings{MaxMembers: 2})
	require.NoError(t, err)

	require.NoError(t, group.AddMember(2, "alice", ""))
	assert.ErrorIs(t, group.AddMember(3, "bob", ""), ErrGroupFull)

	require.NoError(t, group.RemoveMember(2))
	assert.NotContains(t, group.Admins(), 2)

	require.NoError(t, group.AddMember(3, "bob", ""))
	assert.True(t, group.IsMember(3))
}
