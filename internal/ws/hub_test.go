package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.Send:
		var m Message
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	default:
		t.Fatalf("no message queued for %s", c.UserID)
		return Message{}
	}
}

func TestHub_RoutesByUserAndRole(t *testing.T) {
	hub := NewHub()
	alice := NewClient("alice", "USER")
	aliceTab := NewClient("alice", "USER")
	bob := NewClient("bob", "USER")
	admin := NewClient("ops", "ADMIN")
	for _, c := range []*Client{alice, aliceTab, bob, admin} {
		hub.Register(c)
	}
	assert.Equal(t, 4, hub.ClientCount())

	hub.BroadcastToUser("alice", Message{Type: "reward.granted"})
	assert.Equal(t, "reward.granted", receive(t, alice).Type)
	assert.Equal(t, "reward.granted", receive(t, aliceTab).Type)
	assert.Empty(t, bob.Send)

	hub.BroadcastToRole("ADMIN", Message{Type: "withdrawal.requested"})
	assert.Equal(t, "withdrawal.requested", receive(t, admin).Type)
	assert.Empty(t, alice.Send)

	hub.BroadcastAll(Message{Type: "price"})
	for _, c := range []*Client{alice, aliceTab, bob, admin} {
		assert.Equal(t, "price", receive(t, c).Type)
	}
}

func TestHub_CloseUnregisters(t *testing.T) {
	hub := NewHub()
	c := NewClient("alice", "USER")
	hub.Register(c)
	c.Close()
	c.Close()
	assert.Equal(t, 0, hub.ClientCount())

	// Broadcasting to a closed client must not panic on the closed channel.
	hub.BroadcastToUser("alice", Message{Type: "x"})
	deliver([]*Client{c}, Message{Type: "x"})
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := &Client{UserID: "slow", Send: make(chan []byte, 1)}
	hub.Register(c)
	hub.BroadcastToUser("slow", Message{Type: "one"})
	hub.BroadcastToUser("slow", Message{Type: "two"})
	assert.Len(t, c.Send, 1)
	assert.Equal(t, "one", receive(t, c).Type)
}
