package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger/internal/mocks"
	"messenger/internal/models"
)

func TestOfflineBroadcastUsesCurrentGroupSet(t *testing.T) {
	hub := NewHub(0)
	groupRepo := new(mocks.GroupRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	registry := new(mocks.PresenceRegistryMock)
	handler := NewSocketHandler(hub, groupRepo, userRepo, nil, registry)

	// observers in the group the user left (1) and the group joined
	// mid-session (2)
	oldGroupObserver := &fakeConn{}
	newGroupObserver := &fakeConn{}
	hub.Register(oldGroupObserver, ConnInfo{ConnID: "o1", UserID: 8}, []Channel{GroupChannel(1)})
	hub.Register(newGroupObserver, ConnInfo{ConnID: "o2", UserID: 9}, []Channel{GroupChannel(2)})

	// membership as of disconnect time: group 2 only
	groupRepo.On("ListGroupsForUser", mock.Anything, 5).Return([]models.Group{{ID: 2}}, nil).Once()
	registry.On("Set", mock.Anything, 5, models.StatusOffline).Return(nil).Once()
	userRepo.On("UpdateStatus", mock.Anything, 5, models.StatusOffline).Return(nil).Once()

	ctx := context.Background()
	handler.setPresence(ctx, 5, "carol", models.StatusOffline, handler.currentGroupIDs(ctx, 5))

	assert.Empty(t, oldGroupObserver.events(t))
	events := newGroupObserver.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPresenceChanged, events[0].Type)
	assert.Equal(t, models.StatusOffline, events[0].Status)
	groupRepo.AssertExpectations(t)
}

func TestDirectTypingRequiresExistingRecipient(t *testing.T) {
	hub := NewHub(0)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSocketHandler(hub, new(mocks.GroupRepositoryMock), userRepo, nil, new(mocks.PresenceRegistryMock))

	sender := &fakeConn{}
	recipient := &fakeConn{}
	hub.Register(sender, ConnInfo{ConnID: "s", UserID: 1, Username: "ann"}, []Channel{UserChannel(1)})
	hub.Register(recipient, ConnInfo{ConnID: "r", UserID: 2}, []Channel{UserChannel(2)})

	info := ConnInfo{ConnID: "s", UserID: 1, Username: "ann"}

	// unknown recipient: nothing is relayed anywhere
	userRepo.On("GetUser", mock.Anything, 99).Return(nil, assert.AnError).Once()
	handler.handleClientEvent(sender, info, clientEvent{Type: models.EventTypingStart, RecipientID: 99})
	assert.Empty(t, recipient.events(t))

	// self-typing is dropped without a lookup
	handler.handleClientEvent(sender, info, clientEvent{Type: models.EventTypingStart, RecipientID: 1})
	assert.Empty(t, sender.events(t))

	// real recipient receives the indicator
	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, Username: "bob"}, nil).Once()
	handler.handleClientEvent(sender, info, clientEvent{Type: models.EventTypingStart, RecipientID: 2})
	events := recipient.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTypingStart, events[0].Type)
	assert.Equal(t, 1, events[0].UserID)
	userRepo.AssertExpectations(t)
}

func TestGroupTypingRequiresSubscription(t *testing.T) {
	hub := NewHub(0)
	handler := NewSocketHandler(hub, new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock), nil, new(mocks.PresenceRegistryMock))

	outsider := &fakeConn{}
	member := &fakeConn{}
	hub.Register(outsider, ConnInfo{ConnID: "x", UserID: 1, Username: "ann"}, []Channel{UserChannel(1)})
	hub.Register(member, ConnInfo{ConnID: "m", UserID: 2}, []Channel{GroupChannel(5)})

	handler.handleClientEvent(outsider, ConnInfo{UserID: 1, Username: "ann"}, clientEvent{Type: models.EventTypingStart, GroupID: 5})
	assert.Empty(t, member.events(t))

	handler.handleClientEvent(member, ConnInfo{UserID: 2, Username: "bob"}, clientEvent{Type: models.EventTypingStart, GroupID: 5})
	require.Len(t, member.events(t), 1)
}
