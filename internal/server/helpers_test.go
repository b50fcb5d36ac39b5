package server

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/objectstore"
	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/npezzotti/go-dm/internal/types"
	"github.com/stretchr/testify/mock"
)

var (
	alice = types.User{Id: "u-alice", Username: "alice"}
	bob   = types.User{Id: "u-bob", Username: "bob"}
	carol = types.User{Id: "u-carol", Username: "carol"}
)

func newTestChatServer(t *testing.T, db *database.MockRepository, objects *objectstore.MockStore) (*ChatServer, *stats.MockStatsUpdater) {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return().Times(4)
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	cs := NewChatServer(testutil.TestLogger(t), db, objects, su)
	var ids atomic.Int64
	cs.newId = func() string {
		return "id-" + strconv.FormatInt(ids.Add(1), 10)
	}
	return cs, su
}

// newTestClient builds a client without a websocket; tests read the send
// queue directly.
func newTestClient(t *testing.T, cs *ChatServer, user types.User) *Client {
	t.Helper()
	return NewClient(user, nil, cs, testutil.TestLogger(t))
}

// registerClient registers a client whose user participates in convs.
func registerClient(t *testing.T, cs *ChatServer, db *database.MockRepository, user types.User, convs ...database.Conversation) *Client {
	t.Helper()

	c := newTestClient(t, cs, user)
	db.On("ListConversationsByParticipant", mock.Anything, user.Id).Return(convs, nil).Once()
	if err := cs.Register(context.Background(), c); err != nil {
		t.Fatalf("register %s: %v", user.Username, err)
	}
	return c
}

// drain returns every message queued for c so far.
func drain(c *Client) []*ServerMessage {
	var msgs []*ServerMessage
	for {
		select {
		case m := <-c.send:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func eventsOf(msgs []*ServerMessage, event Event) []*ServerMessage {
	var out []*ServerMessage
	for _, m := range msgs {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func directConversation(id string, users ...types.User) database.Conversation {
	participants := make([]string, 0, len(users))
	for _, u := range users {
		participants = append(participants, u.Id)
	}
	return database.Conversation{
		Id:           id,
		Kind:         database.ConversationDirect,
		Participants: participants,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
