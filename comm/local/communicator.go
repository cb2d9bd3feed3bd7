package local

import (
	"context"

	"github.com/gomlx/tensorparallel/comm"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/distspec"
	"github.com/gomlx/tensorparallel/types/topology"
	"k8s.io/klog/v2"
)

// Communicator implements comm.Communicator for one rank of a World.
type Communicator struct {
	world *World
	hub   *hub
	group *topology.Group
	rank  int // Global rank in the world.
	pos   int // Position in the group.
}

// Compile-time check that local.Communicator implements comm.Communicator.
var _ comm.Communicator = &Communicator{}

// Group implements comm.Communicator.
func (c *Communicator) Group() *topology.Group { return c.group }

// Rank implements comm.Communicator: the position of this process in the group.
func (c *Communicator) Rank() int { return c.pos }

// GlobalRank returns the rank of this process in the world.
func (c *Communicator) GlobalRank() int { return c.rank }

// Size implements comm.Communicator.
func (c *Communicator) Size() int { return c.group.Size() }

// World returns the world of the communicator.
func (c *Communicator) World() *World { return c.world }

// AllReduceSum implements comm.Communicator.
func (c *Communicator) AllReduceSum(ctx context.Context, local *tensor.Tensor) (*tensor.Tensor, error) {
	klog.V(2).Infof("rank #%d: AllReduceSum%s on %s", c.rank, local.Shape(), c.group.Name())
	return c.hub.join(ctx, c.pos, request{kind: allReduceSum, local: local})
}

// AllGather implements comm.Communicator.
func (c *Communicator) AllGather(ctx context.Context, local *tensor.Tensor, axis int) (*tensor.Tensor, error) {
	klog.V(2).Infof("rank #%d: AllGather%s(axis=%d) on %s", c.rank, local.Shape(), axis, c.group.Name())
	return c.hub.join(ctx, c.pos, request{kind: allGather, axis: axis, local: local})
}

// Resplit implements comm.Communicator.
func (c *Communicator) Resplit(ctx context.Context, local *tensor.Tensor, from, to distspec.Spec) (*tensor.Tensor, error) {
	return comm.Redistribute(ctx, c, local, from, to)
}
