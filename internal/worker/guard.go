package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"reportchat/internal/redis"
)

// ErrTurnInFlight signals that another turn is still streaming for the same
// session. Ordinal assignment assumes at most one concurrent turn per
// session, so a second sender must wait for the first stream to terminate.
var ErrTurnInFlight = errors.New("another turn is in flight for this session")

const turnLockPrefix = "chat:turnlock:"

// releaseLockScript deletes the lock only if this holder still owns it, so a
// slow turn that outlived its TTL cannot release a successor's lock.
const releaseLockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// TurnGuard serializes turns per session. With redis available the lock is
// shared across processes; without it a local map covers the single-process
// case.
type TurnGuard struct {
	rdb *redis.Client
	ttl time.Duration

	mu    sync.Mutex
	local map[string]struct{}
}

func NewTurnGuard(rdb *redis.Client, ttl time.Duration) *TurnGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TurnGuard{
		rdb:   rdb,
		ttl:   ttl,
		local: make(map[string]struct{}),
	}
}

// Acquire claims the session's turn lock, returning a release func. The TTL
// backstops releases lost to a crashed process.
func (g *TurnGuard) Acquire(ctx context.Context, sessionID string) (func(), error) {
	if g.rdb == nil {
		return g.acquireLocal(sessionID)
	}
	key := turnLockPrefix + sessionID
	holder := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, key, holder, g.ttl)
	if err != nil {
		// Redis being down should not take chat down with it.
		log.Printf("turn lock via redis failed, using local guard: %v", err)
		return g.acquireLocal(sessionID)
	}
	if !ok {
		return nil, ErrTurnInFlight
	}
	return func() {
		if err := g.rdb.Eval(context.Background(), releaseLockScript, []string{key}, holder); err != nil {
			log.Printf("release turn lock for session %s failed: %v", sessionID, err)
		}
	}, nil
}

func (g *TurnGuard) acquireLocal(sessionID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.local[sessionID]; held {
		return nil, ErrTurnInFlight
	}
	g.local[sessionID] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.local, sessionID)
		g.mu.Unlock()
	}, nil
}
