package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	h := NewHub()
	c := NewClient(alice, nil, nil, testutil.TestLogger(t))

	h.Subscribe(c, "conversation:k")
	h.Subscribe(c, "user:u-alice")
	h.Subscribe(c, "conversation:k")
	assert.Equal(t, []string{"conversation:k", "user:u-alice"}, h.Channels(c))
	assert.True(t, h.Subscribed(c, "conversation:k"))

	assert.True(t, h.Unsubscribe(c, "conversation:k"))
	assert.False(t, h.Unsubscribe(c, "conversation:k"), "expected second unsubscribe to report no subscription")
	assert.False(t, h.Subscribed(c, "conversation:k"))
	assert.Equal(t, []string{"user:u-alice"}, h.Channels(c))
	_, ok := h.channels["conversation:k"]
	assert.False(t, ok, "expected empty channel to be dropped")

	assert.True(t, h.RemoveClient(c))
	assert.False(t, h.RemoveClient(c), "expected second removal to report unknown client")
	assert.Empty(t, h.Channels(c))
	assert.Empty(t, h.channels)
	assert.Empty(t, h.clients)
}

func TestHub_Publish(t *testing.T) {
	h := NewHub()
	a := NewClient(alice, nil, nil, testutil.TestLogger(t))
	b := NewClient(bob, nil, nil, testutil.TestLogger(t))
	outsider := NewClient(carol, nil, nil, testutil.TestLogger(t))

	h.Subscribe(a, "conversation:k")
	h.Subscribe(b, "conversation:k")
	h.Subscribe(outsider, "conversation:other")

	n := h.Publish("conversation:k", NoErrOK(0, nil), a)
	assert.Equal(t, 1, n)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(a), "expected skip client to be excluded")
	assert.Empty(t, drain(outsider))

	assert.Equal(t, 0, h.Publish("conversation:nobody", NoErrOK(0, nil), nil))
}

func TestHub_PublishFullQueue(t *testing.T) {
	h := NewHub()
	slow := NewClient(alice, nil, nil, testutil.TestLogger(t))
	fast := NewClient(bob, nil, nil, testutil.TestLogger(t))
	h.Subscribe(slow, "conversation:k")
	h.Subscribe(fast, "conversation:k")

	for i := 0; i < sendQueueSize; i++ {
		slow.send <- &ServerMessage{}
	}

	n := h.Publish("conversation:k", NoErrOK(0, nil), nil)
	assert.Equal(t, 1, n, "expected a full queue not to block other subscribers")
	assert.Len(t, drain(fast), 1)
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub()
	a1 := NewClient(alice, nil, nil, testutil.TestLogger(t))
	a2 := NewClient(alice, nil, nil, testutil.TestLogger(t))
	b := NewClient(bob, nil, nil, testutil.TestLogger(t))
	for _, c := range []*Client{a1, a2, b} {
		h.Subscribe(c, UserChannel(c.user.Id))
	}

	n := h.Broadcast(NoErrOK(0, nil), alice.Id)
	assert.Equal(t, 1, n)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(a1))
	assert.Empty(t, drain(a2))

	assert.ElementsMatch(t, []*Client{a1, a2}, h.clientsForUser(alice.Id))
	assert.Len(t, h.Clients(), 3)
}

func TestHub_Concurrent(t *testing.T) {
	h := NewHub()
	clients := make([]*Client, 50)
	for i := range clients {
		clients[i] = NewClient(alice, nil, nil, testutil.TestLogger(t))
	}

	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *Client) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				ch := fmt.Sprintf("conversation:%d", j%5)
				h.Subscribe(c, ch)
				h.Subscribed(c, ch)
				h.Channels(c)
				if i%2 == 0 {
					h.Unsubscribe(c, ch)
				}
			}
		}(i, c)
	}
	wg.Wait()

	for i, c := range clients {
		if i%2 == 0 {
			assert.Empty(t, h.Channels(c))
		} else {
			assert.Len(t, h.Channels(c), 5)
		}
	}
	for j := 0; j < 5; j++ {
		ch := fmt.Sprintf("conversation:%d", j)
		assert.Len(t, h.channels[ch], 25, "expected no lost subscriptions on %s", ch)
	}
}
