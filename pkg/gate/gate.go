// Package gate provides per-endpoint concurrency limiting for outbound
// model requests. Each endpoint key owns a weighted semaphore sized to the
// endpoint's parallelism; callers acquire a permit before sending and
// release it once the endpoint slot can be reused.
package gate

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

var ErrUnknownEndpoint = errors.New("unknown endpoint")

type Gate struct {
	mu   sync.RWMutex
	sems map[string]*semaphore.Weighted
}

func New() *Gate {
	return &Gate{
		sems: make(map[string]*semaphore.Weighted),
	}
}

// Register creates the semaphore for key with the given capacity. The first
// registration wins; re-registering an endpoint does not resize its
// semaphore, since permits may already be outstanding.
func (g *Gate) Register(key string, capacity int64) {
	if capacity < 1 {
		capacity = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sems[key]; ok {
		log.Warn().Str("endpoint", key).Msg("endpoint already registered, keeping existing capacity")
		return
	}
	g.sems[key] = semaphore.NewWeighted(capacity)
	log.Debug().Str("endpoint", key).Int64("capacity", capacity).Msg("registered endpoint gate")
}

// Acquire blocks until a slot for key is available or ctx is done.
func (g *Gate) Acquire(ctx context.Context, key string) (*Permit, error) {
	g.mu.RLock()
	sem, ok := g.sems[key]
	g.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEndpoint, "%s", key)
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrapf(err, "acquiring permit for %s", key)
	}
	return &Permit{sem: sem}, nil
}

// Permit is a held endpoint slot. Release is idempotent, so it is safe to
// both defer it and call it early on the fast path.
type Permit struct {
	sem  *semaphore.Weighted
	once sync.Once
}

func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.sem.Release(1)
	})
}
