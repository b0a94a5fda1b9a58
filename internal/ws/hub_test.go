package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger/internal/models"
)

type fakeConn struct {
	mu       sync.Mutex
	payloads [][]byte
	failWith error
	closed   bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []models.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Event, 0, len(c.payloads))
	for _, p := range c.payloads {
		var ev models.Event
		require.NoError(t, json.Unmarshal(p, &ev))
		out = append(out, ev)
	}
	return out
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := NewHub(0)
	conn := &fakeConn{}

	hub.Register(conn, ConnInfo{ConnID: "c1", UserID: 1}, []Channel{GroupChannel(1), UserChannel(1)})
	require.True(t, hub.IsSubscribed(conn, GroupChannel(1)))
	require.True(t, hub.IsSubscribed(conn, UserChannel(1)))
	require.Equal(t, 1, hub.SessionCount(1))

	hub.Unregister(conn)
	require.False(t, hub.IsSubscribed(conn, GroupChannel(1)))
	require.Equal(t, 0, hub.SessionCount(1))
}

func TestPublishReachesOnlySubscribedChannel(t *testing.T) {
	hub := NewHub(0)
	subscribed := &fakeConn{}
	other := &fakeConn{}

	hub.Register(subscribed, ConnInfo{UserID: 1}, []Channel{GroupChannel(1)})
	hub.Register(other, ConnInfo{UserID: 2}, []Channel{GroupChannel(2)})

	hub.Publish(GroupChannel(2), models.Event{Type: models.EventMessageNew, GroupID: 2})

	assert.Empty(t, subscribed.events(t))
	events := other.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMessageNew, events[0].Type)
}

func TestSubscribeUserAttachesLiveSessionsWithoutReconnect(t *testing.T) {
	hub := NewHub(0)
	first := &fakeConn{}
	second := &fakeConn{}

	hub.Register(first, ConnInfo{ConnID: "a", UserID: 5}, []Channel{UserChannel(5)})
	hub.Register(second, ConnInfo{ConnID: "b", UserID: 5}, []Channel{UserChannel(5)})

	hub.SubscribeUser(5, GroupChannel(9))
	hub.Publish(GroupChannel(9), models.Event{Type: models.EventMessageNew, GroupID: 9})

	require.Len(t, first.events(t), 1)
	require.Len(t, second.events(t), 1)

	hub.UnsubscribeUser(5, GroupChannel(9))
	hub.Publish(GroupChannel(9), models.Event{Type: models.EventMessageNew, GroupID: 9})

	require.Len(t, first.events(t), 1)
	require.Len(t, second.events(t), 1)
}

func TestPublishDropsFailingSessionOnly(t *testing.T) {
	hub := NewHub(0)
	healthy := &fakeConn{}
	broken := &fakeConn{failWith: errors.New("write: broken pipe")}

	hub.Register(healthy, ConnInfo{ConnID: "h", UserID: 1}, []Channel{GroupChannel(3)})
	hub.Register(broken, ConnInfo{ConnID: "b", UserID: 2}, []Channel{GroupChannel(3)})

	hub.Publish(GroupChannel(3), models.Event{Type: models.EventMessageNew, GroupID: 3})

	require.Len(t, healthy.events(t), 1)
	assert.True(t, broken.closed)
	assert.False(t, hub.IsSubscribed(broken, GroupChannel(3)))

	// the dropped session receives nothing further
	hub.Publish(GroupChannel(3), models.Event{Type: models.EventMessageNew, GroupID: 3})
	require.Len(t, healthy.events(t), 2)
}

func TestStartTypingDeduplicates(t *testing.T) {
	hub := NewHub(time.Minute)

	require.True(t, hub.StartTyping(GroupChannel(1), 7, "ann"))
	require.False(t, hub.StartTyping(GroupChannel(1), 7, "ann"))
	// same user, different channel is an independent indicator
	require.True(t, hub.StartTyping(GroupChannel(2), 7, "ann"))

	require.True(t, hub.StopTyping(GroupChannel(1), 7))
	require.False(t, hub.StopTyping(GroupChannel(1), 7))
}

func TestSweepTypingExpiresEntries(t *testing.T) {
	hub := NewHub(time.Second)

	hub.StartTyping(GroupChannel(1), 7, "ann")
	hub.StartTyping(UserChannel(8), 7, "ann")

	require.Empty(t, hub.SweepTyping(time.Now()))

	expired := hub.SweepTyping(time.Now().Add(2 * time.Second))
	require.Len(t, expired, 2)
	require.False(t, hub.StopTyping(GroupChannel(1), 7))
}

func TestUnregisterRemovesAllSubscriptionsAtomically(t *testing.T) {
	hub := NewHub(0)
	conn := &fakeConn{}

	hub.Register(conn, ConnInfo{UserID: 4}, []Channel{GroupChannel(1), GroupChannel(2), UserChannel(4)})
	hub.Unregister(conn)

	hub.Publish(GroupChannel(1), models.Event{Type: models.EventMessageNew})
	hub.Publish(GroupChannel(2), models.Event{Type: models.EventMessageNew})
	hub.Publish(UserChannel(4), models.Event{Type: models.EventMessageNew})

	assert.Empty(t, conn.events(t))
}
