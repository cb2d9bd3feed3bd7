// Package comm defines Communicator, the blocking collective operations over a process group, and
// Redistribute, which converts the local data of a tensor between distributions.
//
// Collectives are blocking: every member of the group must call the same collective, in the same
// order, or the program deadlocks. Implementations should detect mismatches where they can and fail
// every participant, but they never retry: a failed collective fails the whole group.
package comm

import (
	"context"

	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/distspec"
	"github.com/gomlx/tensorparallel/types/topology"
)

// Communicator is one process' handle to the collectives of a group.
type Communicator interface {
	// Group the communicator operates on.
	Group() *topology.Group

	// Rank is the position of this process within Group(), from 0 to Size()-1.
	Rank() int

	// Size of the group.
	Size() int

	// AllReduceSum returns, on every process, the elementwise sum of the tensors contributed by all
	// members of the group. All contributions must have the same shape.
	AllReduceSum(ctx context.Context, local *tensor.Tensor) (*tensor.Tensor, error)

	// AllGather returns, on every process, the concatenation along axis of the tensors contributed by
	// all members of the group, in group order.
	AllGather(ctx context.Context, local *tensor.Tensor, axis int) (*tensor.Tensor, error)

	// Resplit converts local data distributed with spec from into the local data for spec to.
	// See Redistribute for the generic implementation on top of AllReduceSum and AllGather.
	Resplit(ctx context.Context, local *tensor.Tensor, from, to distspec.Spec) (*tensor.Tensor, error)
}

// selfCommunicator is the trivial Communicator of topology.Self().
type selfCommunicator struct{}

var selfComm Communicator = selfCommunicator{}

// Self returns the communicator of the trivial group topology.Self(): collectives are no-ops.
func Self() Communicator {
	return selfComm
}

// Group implements Communicator.
func (selfCommunicator) Group() *topology.Group { return topology.Self() }

// Rank implements Communicator.
func (selfCommunicator) Rank() int { return 0 }

// Size implements Communicator.
func (selfCommunicator) Size() int { return 1 }

// AllReduceSum implements Communicator.
func (selfCommunicator) AllReduceSum(ctx context.Context, local *tensor.Tensor) (*tensor.Tensor, error) {
	return local, ctx.Err()
}

// AllGather implements Communicator.
func (selfCommunicator) AllGather(ctx context.Context, local *tensor.Tensor, axis int) (*tensor.Tensor, error) {
	return tensor.Concatenate(axis, local)
}

// Resplit implements Communicator.
func (s selfCommunicator) Resplit(ctx context.Context, local *tensor.Tensor, from, to distspec.Spec) (*tensor.Tensor, error) {
	return Redistribute(ctx, s, local, from, to)
}
