package actorutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roasbeef/troupe/actor"
)

// Pool distributes messages across multiple actor instances using
// round-robin scheduling. This enables horizontal scaling of actor workloads
// by spreading requests across a set of worker actors.
type Pool struct {
	// tag is the label prefix of the pooled actors.
	tag string

	// actors holds the pooled handles.
	actors []*actor.LocalRef

	// next is the atomic counter for round-robin selection.
	next atomic.Uint64
}

// PoolConfig holds configuration for creating a new actor pool.
type PoolConfig struct {
	// Tag is the label prefix for pool members; member i is tagged
	// "<tag>-<i>".
	Tag string

	// Size is the number of actor instances to create.
	Size int

	// Factory creates a new receiver for each pool member.
	Factory func(idx int) actor.Receiver

	// Options are applied to every spawned member.
	Options []actor.SpawnOption
}

// NewPool creates a pool with the specified number of actor instances. Each
// actor is spawned through the given system and started immediately. On a
// member spawn failure the already started members are stopped again.
func NewPool(sys *actor.System, cfg PoolConfig) (*Pool, error) {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}

	p := &Pool{
		tag:    cfg.Tag,
		actors: make([]*actor.LocalRef, 0, cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		idx := i
		opts := append([]actor.SpawnOption{
			actor.WithTag(fmt.Sprintf("%s-%d", cfg.Tag, idx)),
		}, cfg.Options...)

		member, err := sys.Spawn(func() actor.Receiver {
			return cfg.Factory(idx)
		}, opts...)
		if err != nil {
			p.Stop()
			return nil, fmt.Errorf("spawn pool member %d: %w",
				idx, err)
		}

		p.actors = append(p.actors, member)
	}

	return p, nil
}

// Tag returns the label prefix of this pool.
func (p *Pool) Tag() string {
	return p.tag
}

// Ask sends a message to the next actor in round-robin order and blocks for
// the reply.
func (p *Pool) Ask(ctx context.Context, msg actor.Message) (any, error) {
	return p.pick().Ask(ctx, msg)
}

// AskFuture sends a message to the next actor in round-robin order and
// returns a Future for the response.
func (p *Pool) AskFuture(ctx context.Context,
	msg actor.Message) actor.Future[any] {

	return p.pick().AskFuture(ctx, msg)
}

// Tell sends a fire-and-forget message to the next actor in round-robin
// order.
func (p *Pool) Tell(ctx context.Context, msg actor.Message) error {
	return p.pick().Tell(ctx, msg)
}

// Broadcast sends a message to ALL actors in the pool. This is useful for
// cache invalidation, configuration updates, or graceful drain signals.
func (p *Pool) Broadcast(ctx context.Context, msg actor.Message) error {
	var firstErr error
	for _, member := range p.actors {
		if err := member.Tell(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// BroadcastAsk sends a message to all actors and returns a slice of Futures.
// This is useful when you need responses from all actors in the pool.
func (p *Pool) BroadcastAsk(ctx context.Context,
	msg actor.Message) []actor.Future[any] {

	futures := make([]actor.Future[any], len(p.actors))
	for i, member := range p.actors {
		futures[i] = member.AskFuture(ctx, msg)
	}

	return futures
}

// Size returns the number of actors in the pool.
func (p *Pool) Size() int {
	return len(p.actors)
}

// Members returns a copy of the handles in the pool.
func (p *Pool) Members() []*actor.LocalRef {
	members := make([]*actor.LocalRef, len(p.actors))
	copy(members, p.actors)

	return members
}

// Stop stops all actors in the pool.
func (p *Pool) Stop() {
	for _, member := range p.actors {
		_ = member.Stop()
	}
}

// pick selects the next member in round-robin order.
func (p *Pool) pick() *actor.LocalRef {
	idx := p.next.Add(1) % uint64(len(p.actors))

	return p.actors[idx]
}
