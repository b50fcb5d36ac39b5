package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/types"
	"go.uber.org/zap"
)

// PresenceStore persists the online flag and last-seen time of a user.
type PresenceStore interface {
	SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
}

type presenceEntry struct {
	mu    sync.Mutex
	count int
	refs  int
}

// PresenceRegistry counts live connections per identity. The entry mutex
// is held across count change, persistence and broadcast so transitions
// for one identity are persisted and announced in the order they counted.
type PresenceRegistry struct {
	mu      sync.Mutex
	entries map[string]*presenceEntry
	online  atomic.Int64

	store PresenceStore
	hub   *Hub
	stats stats.StatsProvider
	log   *zap.Logger
	now   func() time.Time
}

func NewPresenceRegistry(store PresenceStore, hub *Hub, su stats.StatsProvider, logger *zap.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		entries: make(map[string]*presenceEntry),
		store:   store,
		hub:     hub,
		stats:   su,
		log:     logger,
		now:     Now,
	}
}

func (p *PresenceRegistry) acquire(id string) *presenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		e = &presenceEntry{}
		p.entries[id] = e
	}
	e.refs++
	return e
}

func (p *PresenceRegistry) release(id string, e *presenceEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e.refs--
	if e.refs == 0 && e.count == 0 {
		delete(p.entries, id)
	}
}

// Connect counts a new live connection for user. On the first one the user
// is persisted online and announced to everyone else. A persistence error
// is returned after the transition has been counted and announced.
func (p *PresenceRegistry) Connect(ctx context.Context, user types.User) (bool, error) {
	e := p.acquire(user.Id)
	defer p.release(user.Id, e)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.count++
	if e.count > 1 {
		return false, nil
	}

	return true, p.transition(ctx, user, true)
}

// Disconnect is the inverse of Connect. It reports whether the last live
// connection of user went away.
func (p *PresenceRegistry) Disconnect(ctx context.Context, user types.User) (bool, error) {
	e := p.acquire(user.Id)
	defer p.release(user.Id, e)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.count == 0 {
		p.log.Warn("disconnect without live connection", zap.String("user_id", user.Id))
		return false, nil
	}

	e.count--
	if e.count > 0 {
		return false, nil
	}

	return true, p.transition(ctx, user, false)
}

func (p *PresenceRegistry) transition(ctx context.Context, user types.User, online bool) error {
	if online {
		p.online.Add(1)
		p.stats.Incr(stats.NumOnlineUsers)
	} else {
		p.online.Add(-1)
		p.stats.Decr(stats.NumOnlineUsers)
	}

	now := p.now()
	err := p.store.SetUserPresence(ctx, user.Id, online, now)
	if err != nil {
		p.log.Error("persist presence",
			zap.String("user_id", user.Id),
			zap.Bool("online", online),
			zap.Error(err),
		)
	}

	n := p.hub.Broadcast(PresenceEvent(online, user, now), user.Id)
	p.log.Debug("presence changed",
		zap.String("user_id", user.Id),
		zap.Bool("online", online),
		zap.Int("notified", n),
	)

	return err
}

func (p *PresenceRegistry) IsOnline(id string) bool {
	p.mu.Lock()
	e, ok := p.entries[id]
	if ok {
		e.refs++
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	defer p.release(id, e)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count > 0
}

func (p *PresenceRegistry) OnlineCount() int {
	return int(p.online.Load())
}
