package comm

import (
	"context"

	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/distspec"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Redistribute converts local, the data this process holds of a tensor distributed with spec from,
// into the data it should hold for spec to. It uses only the AllReduceSum and AllGather collectives of c.
//
// Conversions:
//
//   - Replicated to Replicated: relabel only, no communication.
//   - Replicated to Sharded: each process keeps its own block, no communication.
//   - Replicated to Partial: the process at position 0 keeps the data, the others contribute zeros.
//   - Sharded to Replicated: all-gather.
//   - Sharded to Sharded: all-gather, then keep the new block.
//   - Sharded to Partial: all-gather, then as Replicated to Partial.
//   - Partial to Replicated: all-reduce-sum.
//   - Partial to Sharded: all-reduce-sum, then keep the block.
//   - Partial to Partial: identity.
//
// Unless from is Replicated, both specs must be over the same group. Whenever the conversion needs
// the process position or a collective, c must be a communicator of that group.
func Redistribute(ctx context.Context, c Communicator, local *tensor.Tensor, from, to distspec.Spec) (*tensor.Tensor, error) {
	if err := from.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "Redistribute source %s", from)
	}
	if err := to.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "Redistribute target %s", to)
	}
	if from.Equal(to) {
		return local, nil
	}
	if from.Kind() != distspec.KindReplicated && !from.Group().Equal(to.Group()) {
		return nil, errors.Errorf("Redistribute from %s to %s: cannot change the group of a non-replicated tensor", from, to)
	}
	klog.V(1).Infof("Redistribute %s -> %s (local shape %s)", from, to, local.Shape())

	var output *tensor.Tensor
	err := distspec.Match(from,
		func(distspec.Replicated) (err error) {
			output, err = fromFull(c, local, to)
			return
		},
		func(sharded distspec.Sharded) (err error) {
			if err = checkGroup(c, sharded.Group()); err != nil {
				return
			}
			var full *tensor.Tensor
			full, err = Gather(ctx, c, local, sharded)
			if err != nil {
				return
			}
			output, err = fromFull(c, full, to)
			return
		},
		func(partial distspec.Partial) (err error) {
			if err = checkGroup(c, partial.Group()); err != nil {
				return
			}
			var full *tensor.Tensor
			full, err = c.AllReduceSum(ctx, local)
			if err != nil {
				return
			}
			output, err = fromFull(c, full, to)
			return
		})
	if err != nil {
		return nil, errors.WithMessagef(err, "Redistribute from %s to %s", from, to)
	}
	return output, nil
}

func checkGroup(c Communicator, g *topology.Group) error {
	if !c.Group().Equal(g) {
		return errors.Errorf("communicator of %s cannot be used for a tensor distributed over %s", c.Group(), g)
	}
	return nil
}

// fromFull returns the local data for spec to, given the full value on this process.
func fromFull(c Communicator, full *tensor.Tensor, to distspec.Spec) (output *tensor.Tensor, err error) {
	err = distspec.Match(to,
		func(distspec.Replicated) error {
			output = full
			return nil
		},
		func(sharded distspec.Sharded) (err error) {
			if err = checkGroup(c, sharded.Group()); err != nil {
				return
			}
			output, err = Block(full, sharded, c.Rank())
			return
		},
		func(partial distspec.Partial) (err error) {
			if err = checkGroup(c, partial.Group()); err != nil {
				return
			}
			if c.Rank() == 0 {
				output = full
				return
			}
			output, err = tensor.Zeros(full.Shape())
			return
		})
	return
}

// Block returns the block of full held by the process at position pos of the group of sharded.
func Block(full *tensor.Tensor, sharded distspec.Sharded, pos int) (*tensor.Tensor, error) {
	block := full
	numPartitions := sharded.NumPartitions()
	for i, idx := range sharded.BlockIndex(pos) {
		var err error
		block, err = block.Chunk(sharded.Dims()[i], numPartitions[i], idx)
		if err != nil {
			return nil, err
		}
	}
	return block, nil
}

// Gather returns the full value of a tensor distributed with sharded, given this process' block.
//
// A 1-D sharding with one block per process is a single AllGather along the sharded axis. Other
// shardings gather all blocks stacked along a new leading axis and reassemble them.
func Gather(ctx context.Context, c Communicator, local *tensor.Tensor, sharded distspec.Sharded) (*tensor.Tensor, error) {
	dims := sharded.Dims()
	numPartitions := sharded.NumPartitions()
	if len(dims) == 1 && numPartitions[0] == c.Size() {
		return c.AllGather(ctx, local, dims[0])
	}

	stackedDims := append([]int{1}, local.Shape().Dimensions...)
	single, err := local.Reshape(stackedDims...)
	if err != nil {
		return nil, err
	}
	stacked, err := c.AllGather(ctx, single, 0)
	if err != nil {
		return nil, err
	}

	// Positions [0, NumShards) hold each block once, in row-major order of their block index.
	blocks := make([]*tensor.Tensor, sharded.NumShards())
	for pos := range blocks {
		blocks[pos], err = stacked.Index(pos)
		if err != nil {
			return nil, err
		}
	}
	for i := len(dims) - 1; i >= 0; i-- {
		n := numPartitions[i]
		merged := make([]*tensor.Tensor, 0, len(blocks)/n)
		for start := 0; start < len(blocks); start += n {
			joined, err := tensor.Concatenate(dims[i], blocks[start:start+n]...)
			if err != nil {
				return nil, err
			}
			merged = append(merged, joined)
		}
		blocks = merged
	}
	return blocks[0], nil
}
