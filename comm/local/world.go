// Package local implements comm.Communicator for a world of ranks running as goroutines of the
// same process. It is used for tests, the demo, and single-host experiments.
//
// Collectives are rendezvous based: each group has a hub, and a collective completes when every
// member of the group has contributed to the current round. Ranks entering different collectives
// (or the same one with different parameters) in the same round fail with an error, and a canceled
// context aborts the round for every participant.
package local

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// World of Size() ranks, numbered 0 to Size()-1, that can communicate over any group of them.
type World struct {
	size int

	mu   sync.Mutex
	hubs map[string]*hub

	numAllReduce, numAllGather atomic.Int64
}

// NewWorld creates a world with the given number of ranks.
func NewWorld(size int) (*World, error) {
	if size <= 0 {
		return nil, errors.Errorf("local.NewWorld: size must be positive, got %d", size)
	}
	return &World{size: size, hubs: make(map[string]*hub)}, nil
}

// Size of the world: number of ranks.
func (w *World) Size() int { return w.size }

// WorldGroup returns the group with all ranks of the world, in order, with the given name.
func (w *World) WorldGroup(name string) (*topology.Group, error) {
	ranks := make([]int, w.size)
	for i := range ranks {
		ranks[i] = i
	}
	return topology.NewGroup(name, ranks...)
}

// Communicator returns the communicator of the given rank over group g.
//
// Every group is identified by its name: two different groups with the same name cannot be used on
// the same world.
func (w *World) Communicator(g *topology.Group, rank int) (*Communicator, error) {
	if rank < 0 || rank >= w.size {
		return nil, errors.Errorf("rank %d out-of-bounds for world of size %d", rank, w.size)
	}
	pos, err := g.IndexOf(rank)
	if err != nil {
		return nil, err
	}
	for _, r := range g.Ranks() {
		if r >= w.size {
			return nil, errors.Errorf("%s has rank %d, out-of-bounds for world of size %d", g, r, w.size)
		}
	}
	h, err := w.hubFor(g)
	if err != nil {
		return nil, err
	}
	return &Communicator{world: w, hub: h, group: g, rank: rank, pos: pos}, nil
}

func (w *World) hubFor(g *topology.Group) (*hub, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, found := w.hubs[g.Name()]
	if !found {
		h = &hub{world: w, group: g}
		w.hubs[g.Name()] = h
		return h, nil
	}
	if !h.group.Equal(g) {
		return nil, errors.Errorf("%s conflicts with %s already used in this world", g, h.group)
	}
	return h, nil
}

// NumCollectives returns the number of collectives completed in this world (counted once per
// group round, not once per participant).
func (w *World) NumCollectives() int64 {
	return w.numAllReduce.Load() + w.numAllGather.Load()
}

// NumAllReduce returns the number of completed all-reduce collectives.
func (w *World) NumAllReduce() int64 { return w.numAllReduce.Load() }

// NumAllGather returns the number of completed all-gather collectives.
func (w *World) NumAllGather() int64 { return w.numAllGather.Load() }

// Run calls fn once per rank of the world, each in its own goroutine, and waits for all to finish.
//
// If any rank returns an error, the context passed to the others is canceled, which aborts any
// collective they are blocked on. It returns the first error.
func (w *World) Run(ctx context.Context, fn func(ctx context.Context, rank int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for rank := range w.size {
		g.Go(func() error {
			if err := fn(ctx, rank); err != nil {
				return errors.WithMessagef(err, "rank #%d", rank)
			}
			return nil
		})
	}
	return g.Wait()
}

// Run creates a new world of the given size and calls World.Run.
func Run(ctx context.Context, size int, fn func(ctx context.Context, w *World, rank int) error) error {
	w, err := NewWorld(size)
	if err != nil {
		return err
	}
	return w.Run(ctx, func(ctx context.Context, rank int) error {
		return fn(ctx, w, rank)
	})
}
