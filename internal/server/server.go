package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/objectstore"
	"github.com/npezzotti/go-dm/internal/stats"
	"go.uber.org/zap"
)

// opTimeout bounds the store work triggered by one inbound event. It is
// not tied to the connection, so work started before a disconnect still
// completes and broadcasts.
const opTimeout = 10 * time.Second

var ErrShuttingDown = errors.New("chat server shutting down")

type ChatServer struct {
	log      *zap.Logger
	db       database.Repository
	objects  objectstore.Store
	hub      *Hub
	presence *PresenceRegistry
	stats    stats.StatsProvider
	newId    func() string
	now      func() time.Time

	mu           sync.Mutex
	shuttingDown bool
	live         sync.WaitGroup
}

func NewChatServer(logger *zap.Logger, db database.Repository, objects objectstore.Store, su stats.StatsProvider) *ChatServer {
	for _, name := range []string{
		stats.NumActiveClients,
		stats.NumOnlineUsers,
		stats.NumMessagesRelayed,
		stats.NumReadReceipts,
	} {
		su.RegisterMetric(name)
	}

	hub := NewHub()
	return &ChatServer{
		log:      logger,
		db:       db,
		objects:  objects,
		hub:      hub,
		presence: NewPresenceRegistry(db, hub, su, logger),
		stats:    su,
		newId:    func() string { return uuid.Must(uuid.NewV4()).String() },
		now:      Now,
	}
}

func (cs *ChatServer) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// Register subscribes c to its personal channel and to every conversation
// its user participates in right now, then counts it towards presence.
// Nothing is subscribed when membership cannot be read.
func (cs *ChatServer) Register(ctx context.Context, c *Client) error {
	cs.mu.Lock()
	if cs.shuttingDown {
		cs.mu.Unlock()
		return ErrShuttingDown
	}
	cs.live.Add(1)
	cs.mu.Unlock()

	convs, err := cs.db.ListConversationsByParticipant(ctx, c.user.Id)
	if err != nil {
		cs.live.Done()
		return fmt.Errorf("load membership: %w", err)
	}

	cs.hub.Subscribe(c, UserChannel(c.user.Id))
	for _, conv := range convs {
		cs.hub.Subscribe(c, ConversationChannel(conv.Id))
	}
	cs.stats.Incr(stats.NumActiveClients)

	if _, err := cs.presence.Connect(ctx, c.user); err != nil {
		c.log.Error("mark user online", zap.Error(err))
	}

	// Shutdown may have snapshotted the hub before c was added.
	cs.mu.Lock()
	if cs.shuttingDown {
		c.stopClient()
	}
	cs.mu.Unlock()

	c.log.Info("client registered", zap.Int("conversations", len(convs)))
	return nil
}

// DeRegister removes c from every channel and releases its presence count.
// It is safe to call more than once.
func (cs *ChatServer) DeRegister(c *Client) {
	if !cs.hub.RemoveClient(c) {
		return
	}
	defer cs.live.Done()

	cs.stats.Decr(stats.NumActiveClients)

	ctx, cancel := cs.opContext()
	defer cancel()
	if _, err := cs.presence.Disconnect(ctx, c.user); err != nil {
		c.log.Error("mark user offline", zap.Error(err))
	}

	c.log.Info("client deregistered")
}

// Dispatch handles one inbound event of c. It runs on the reading
// goroutine of c. A panicking handler fails only its own event.
func (cs *ChatServer) Dispatch(c *Client, msg *ClientMessage) {
	ctx, cancel := cs.opContext()
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("event handler panic",
				zap.Int("msg_id", msg.Id),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			c.queueMessage(ErrInternalError(msg.Id))
		}
	}()

	switch {
	case msg.Send != nil:
		cs.handleSend(ctx, c, msg)
	case msg.TypingStart != nil:
		cs.handleTyping(c, msg.Id, EventTypingStart, msg.TypingStart.ConversationId)
	case msg.TypingStop != nil:
		cs.handleTyping(c, msg.Id, EventTypingStop, msg.TypingStop.ConversationId)
	case msg.Read != nil:
		cs.handleRead(ctx, c, msg)
	case msg.Subscribe != nil:
		cs.handleSubscribe(ctx, c, msg)
	case msg.Unsubscribe != nil:
		cs.handleUnsubscribe(c, msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// Shutdown refuses new registrations, stops every client and waits until
// each has been deregistered or ctx is done.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.mu.Lock()
	cs.shuttingDown = true
	cs.mu.Unlock()

	clients := cs.hub.Clients()
	cs.log.Info("stopping clients", zap.Int("count", len(clients)))
	for _, c := range clients {
		c.stopClient()
	}

	done := make(chan struct{})
	go func() {
		cs.live.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
