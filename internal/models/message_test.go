package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNewMessageRequiresExactlyOneTarget(t *testing.T) {
	_, err := NewMessage("hi", 1, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrMissingTarget)

	_, err = NewMessage("hi", 1, intPtr(10), intPtr(2), nil, nil)
	assert.ErrorIs(t, err, ErrAmbiguousTarget)
}

func TestNewMessagePrivacyDerivedFromTarget(t *testing.T) {
	group, err := NewMessage("hi", 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, group.IsPrivate)

	dm, err := NewMessage("hi", 1, nil, intPtr(2), nil, nil)
	require.NoError(t, err)
	assert.True(t, dm.IsPrivate)
}

func TestNewMessageContentRules(t *testing.T) {
	_, err := NewMessage("   ", 1, intPtr(10), nil, nil, nil)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, kind)

	// empty content is fine when attachments carry the payload
	msg, err := NewMessage("", 1, intPtr(10), nil, nil, []Attachment{
		{ID: "a1", Name: "pic.png", URL: "/files/a1", Type: AttachmentImage},
	})
	require.NoError(t, err)
	assert.Empty(t, msg.Content)

	_, err = NewMessage(strings.Repeat("x", maxMessageContentLength+1), 1, intPtr(10), nil, nil, nil)
	require.Error(t, err)

	_, err = NewMessage("hi", 1, intPtr(10), nil, nil, []Attachment{{Type: "exe"}})
	require.Error(t, err)
}

func TestNewMessageContentLimitCountsCharacters(t *testing.T) {
	// 1000 CJK characters are 3000 bytes but well under the 2000-character cap
	msg, err := NewMessage(strings.Repeat("あ", 1000), 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, len([]rune(msg.Content)))

	atCap, err := NewMessage(strings.Repeat("😀", maxMessageContentLength), 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, maxMessageContentLength, len([]rune(atCap.Content)))

	_, err = NewMessage(strings.Repeat("あ", maxMessageContentLength+1), 1, intPtr(10), nil, nil, nil)
	require.Error(t, err)
}

func TestNewMessageSeedsSenderReadReceipt(t *testing.T) {
	msg, err := NewMessage("hi", 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, msg.IsReadBy(1))
	require.Len(t, msg.ReadBy, 1)
}

func TestAddReaction(t *testing.T) {
	msg, err := NewMessage("hi", 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, msg.AddReaction("👍", 2, "dave"))
	require.Len(t, msg.Reactions, 1)

	// same user, different emoji is a distinct reaction
	require.NoError(t, msg.AddReaction("🎉", 2, "dave"))
	// same emoji, different user too
	require.NoError(t, msg.AddReaction("👍", 3, "erin"))
	assert.Len(t, msg.Reactions, 3)
}

func TestAddReactionDuplicateLeavesListUnchanged(t *testing.T) {
	msg, err := NewMessage("hi", 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, msg.AddReaction("👍", 2, "dave"))

	err = msg.AddReaction("👍", 2, "dave")
	assert.ErrorIs(t, err, ErrDuplicateReaction)
	assert.Len(t, msg.Reactions, 1)
}

func TestRemoveReaction(t *testing.T) {
	msg, err := NewMessage("hi", 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, msg.AddReaction("👍", 2, "dave"))

	assert.ErrorIs(t, msg.RemoveReaction("👍", 3), ErrReactionNotFound)
	require.NoError(t, msg.RemoveReaction("👍", 2))
	assert.Empty(t, msg.Reactions)
	assert.ErrorIs(t, msg.RemoveReaction("👍", 2), ErrReactionNotFound)
}

func TestMarkAsReadIdempotent(t *testing.T) {
	msg, err := NewMessage("hi", 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)

	assert.True(t, msg.MarkAsRead(2))
	assert.False(t, msg.MarkAsRead(2))
	assert.Len(t, msg.ReadBy, 2)

	// sender was seeded at construction
	assert.False(t, msg.MarkAsRead(1))
}

func TestEdit(t *testing.T) {
	msg, err := NewMessage("hi", 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)
	require.False(t, msg.IsEdited)

	require.NoError(t, msg.Edit("hello there"))
	assert.Equal(t, "hello there", msg.Content)
	assert.True(t, msg.IsEdited)
	require.NotNil(t, msg.EditedAt)

	assert.Error(t, msg.Edit(" "))
	assert.Error(t, msg.Edit(strings.Repeat("x", maxMessageContentLength+1)))

	// character-counted, same as creation
	require.NoError(t, msg.Edit(strings.Repeat("あ", maxMessageContentLength)))
	assert.Error(t, msg.Edit(strings.Repeat("あ", maxMessageContentLength+1)))
}

func TestSoftDelete(t *testing.T) {
	msg, err := NewMessage("hi", 1, intPtr(10), nil, nil, nil)
	require.NoError(t, err)

	msg.SoftDelete(5)
	assert.True(t, msg.IsDeleted)
	require.NotNil(t, msg.DeletedBy)
	assert.Equal(t, 5, *msg.DeletedBy)
	require.NotNil(t, msg.DeletedAt)
	// content survives; deletion is a flag, not an erasure
	assert.Equal(t, "hi", msg.Content)
}
