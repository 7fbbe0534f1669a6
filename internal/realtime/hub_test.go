package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMembers map[string]bool

func (f fakeMembers) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	if groupID == "broken" {
		return false, errors.New("db down")
	}
	return f[groupID+"/"+userID], nil
}

func startHub(t *testing.T, members MembershipChecker) *Hub {
	t.Helper()
	hub := NewHub(members)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func subscribe(t *testing.T, c *Client, ref string, scope models.Scope) WSMessage {
	t.Helper()
	c.handleIncomingMessage(context.Background(), IncomingMessage{Type: EventSubscribe, Ref: ref, Scope: scope})
	return next(t, c)
}

func next(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return WSMessage{}
	}
}

func nothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDeliversOnlyMatchingChanges(t *testing.T) {
	hub := startHub(t, fakeMembers{"g1/u1": true})

	alice := NewClient("u1", nil, hub)
	hub.Register <- alice

	assert.Equal(t, EventSubscribed, subscribe(t, alice, "dm", models.DirectScope("u1", "u2")).Type)
	assert.Equal(t, EventSubscribed, subscribe(t, alice, "grp", models.GroupScope("g1")).Type)

	hub.Publish(models.ChangeEvent{Table: models.TableGroupMessages, Type: models.ChangeInsert, GroupID: "g2"})
	hub.Publish(models.ChangeEvent{Table: models.TableDirectMessages, Type: models.ChangeInsert, SenderID: "u2", ReceiverID: "u1"})

	msg := next(t, alice)
	assert.Equal(t, EventChange, msg.Type)
	assert.Equal(t, "dm", msg.Ref)
	nothing(t, alice)

	hub.Publish(models.ChangeEvent{Table: models.TableGroupMessages, Type: models.ChangeInsert, GroupID: "g1"})
	msg = next(t, alice)
	assert.Equal(t, "grp", msg.Ref)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := startHub(t, nil)

	c := NewClient("u1", nil, hub)
	hub.Register <- c
	subscribe(t, c, "dm", models.DirectScope("u1", "u2"))

	c.handleIncomingMessage(context.Background(), IncomingMessage{Type: EventUnsubscribe, Ref: "dm"})
	assert.Equal(t, EventUnsubscribed, next(t, c).Type)
	assert.Equal(t, 0, c.Subscriptions())

	hub.Publish(models.ChangeEvent{Table: models.TableDirectMessages, SenderID: "u1", ReceiverID: "u2"})
	nothing(t, c)
}

func TestSubscribeAuthorization(t *testing.T) {
	hub := startHub(t, fakeMembers{"g1/u1": true})
	c := NewClient("u1", nil, hub)

	tests := []struct {
		name  string
		scope models.Scope
		code  string
	}{
		{"foreign pair", models.DirectScope("u2", "u3"), CodeForbidden},
		{"not a member", models.GroupScope("g9"), CodeForbidden},
		{"membership lookup fails", models.GroupScope("broken"), CodeInternal},
		{"bad scope", models.Scope{Table: "users"}, CodeInvalidScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := subscribe(t, c, "r", tt.scope)
			require.Equal(t, EventError, msg.Type)
			payload, ok := msg.Payload.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, tt.code, payload["code"])
		})
	}
	assert.Equal(t, 0, c.Subscriptions())
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := startHub(t, nil)
	c := NewClient("u1", nil, hub)
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.GetOnlineCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Unregister <- c
	require.Eventually(t, func() bool { return hub.GetOnlineCount() == 0 }, time.Second, 10*time.Millisecond)

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.False(t, c.SendMessage(WSMessage{Type: EventChange}))
}

func TestLeaveAfterHubStops(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient("u1", nil, hub)
	require.True(t, hub.Join(c))
	require.Eventually(t, func() bool { return hub.GetOnlineCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-stopped

	left := make(chan struct{})
	go func() {
		hub.Leave(c)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("Leave blocked after the hub stopped")
	}
	assert.False(t, hub.Join(NewClient("u2", nil, hub)))
}

func TestParseNotification(t *testing.T) {
	ev, err := ParseNotification(`{"table":"group_chats","type":"INSERT","groupId":"g1","senderId":"u1","at":"2025-01-22T10:00:00.5+00:00"}`)
	require.NoError(t, err)
	assert.Equal(t, models.TableGroupMessages, ev.Table)
	assert.Equal(t, models.ChangeInsert, ev.Type)
	assert.Equal(t, "g1", ev.GroupID)
	assert.False(t, ev.At.IsZero())

	_, err = ParseNotification(`{"table":"group_users","type":"INSERT","groupId":"g1","userId":"u1"}`)
	require.Error(t, err)

	_, err = ParseNotification(`{"table":"users","type":"INSERT"}`)
	assert.Error(t, err)

	_, err = ParseNotification(`{"table":"chats","type":"TRUNCATE"}`)
	assert.Error(t, err)

	_, err = ParseNotification(`not json`)
	assert.Error(t, err)
}
