package distspec

import (
	"fmt"
	"slices"

	"github.com/gomlx/tensorparallel/internal/utils"
	"github.com/gomlx/tensorparallel/types/shapes"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/pkg/errors"
)

// Sharded distribution: the tensor is split along Dims()[i] into NumPartitions()[i] even blocks.
//
// The process at position p of the group holds the block whose coordinates are the row-major
// decomposition of `p % NumShards()` over NumPartitions(). NumShards() must divide the group size;
// if it is smaller, each block is held by `groupSize / NumShards()` processes.
//
// Dims may be negative, counting from the last axis. See Canonical for the normalized form.
type Sharded struct {
	group         *topology.Group
	dims          []int
	numPartitions []int
}

var _ Spec = Sharded{}

// Shard returns the Sharded distribution over g, splitting each of dims into the corresponding
// number of partitions.
func Shard(g *topology.Group, dims []int, numPartitions []int) (Sharded, error) {
	s := Sharded{group: orSelf(g), dims: slices.Clone(dims), numPartitions: slices.Clone(numPartitions)}
	if err := s.Validate(); err != nil {
		return Sharded{}, err
	}
	return s, nil
}

// ShardAlong returns the 1-D Sharded distribution that splits dim into one block per process of g.
func ShardAlong(g *topology.Group, dim int) Sharded {
	g = orSelf(g)
	return Sharded{group: g, dims: []int{dim}, numPartitions: []int{g.Size()}}
}

func (Sharded) isSpec() {}

// Kind implements Spec.
func (Sharded) Kind() Kind { return KindSharded }

// Group implements Spec.
func (s Sharded) Group() *topology.Group { return orSelf(s.group) }

// Dims returns a copy of the sharded axes.
func (s Sharded) Dims() []int { return slices.Clone(s.dims) }

// NumPartitions returns a copy of the number of blocks along each sharded axis.
func (s Sharded) NumPartitions() []int { return slices.Clone(s.numPartitions) }

// NumShards returns the total number of distinct blocks: the product of NumPartitions.
func (s Sharded) NumShards() int {
	n := 1
	for _, p := range s.numPartitions {
		n *= p
	}
	return n
}

// IsAlong returns whether s is a 1-D sharding along dim (compared literally, see Canonical).
func (s Sharded) IsAlong(dim int) bool {
	return len(s.dims) == 1 && s.dims[0] == dim
}

// Validate implements Spec.
func (s Sharded) Validate() error {
	if len(s.dims) == 0 {
		return errors.New("Sharded distribution requires at least one dim")
	}
	if len(s.dims) != len(s.numPartitions) {
		return errors.Errorf("Sharded distribution dims and numPartitions must have the same length, got %d and %d",
			len(s.dims), len(s.numPartitions))
	}
	seen := utils.MakeSet[int](len(s.dims))
	for i, dim := range s.dims {
		if seen.Has(dim) {
			return errors.Errorf("Sharded distribution dim %d is duplicated", dim)
		}
		seen.Insert(dim)
		if s.numPartitions[i] <= 0 {
			return errors.Errorf("Sharded distribution dim %d must have a positive number of partitions, got %d",
				dim, s.numPartitions[i])
		}
	}
	groupSize := s.Group().Size()
	if numShards := s.NumShards(); groupSize%numShards != 0 {
		return errors.Errorf("Sharded distribution with %d shards %v does not divide the size %d of %s",
			numShards, s.numPartitions, groupSize, s.Group())
	}
	return nil
}

// Canonical returns s with its dims normalized for a tensor of the given rank: the last axis is
// always -1 and every other axis is non-negative. This makes "column sharded" (-1) and "row sharded"
// (0) checks independent of how the dims were written.
func (s Sharded) Canonical(rank int) (Sharded, error) {
	c := Sharded{group: s.group, dims: make([]int, len(s.dims)), numPartitions: slices.Clone(s.numPartitions)}
	seen := utils.MakeSet[int](len(s.dims))
	for i, dim := range s.dims {
		adjusted := dim
		if adjusted < 0 {
			adjusted += rank
		}
		if adjusted < 0 || adjusted >= rank {
			return Sharded{}, errors.Errorf("Sharded distribution dim %d out-of-bounds for rank %d", dim, rank)
		}
		if seen.Has(adjusted) {
			return Sharded{}, errors.Errorf("Sharded distribution dims %v refer to axis %d more than once", s.dims, adjusted)
		}
		seen.Insert(adjusted)
		if adjusted == rank-1 {
			adjusted = -1
		}
		c.dims[i] = adjusted
	}
	return c, nil
}

// BlockIndex returns, for the process at position pos of the group, the index of its block along
// each of the sharded dims.
func (s Sharded) BlockIndex(pos int) []int {
	p := pos % s.NumShards()
	idx := make([]int, len(s.numPartitions))
	for i := len(s.numPartitions) - 1; i >= 0; i-- {
		idx[i] = p % s.numPartitions[i]
		p /= s.numPartitions[i]
	}
	return idx
}

// ShardShape returns the shape of one block, given the global (logical) shape.
// Sharded dimensions must be divisible by their number of partitions.
func (s Sharded) ShardShape(global shapes.Shape) (shapes.Shape, error) {
	shard := global.Clone()
	for i, dim := range s.dims {
		axis, err := global.AdjustAxis(dim)
		if err != nil {
			return shapes.Invalid(), errors.WithMessagef(err, "ShardShape(%s)", s)
		}
		n := s.numPartitions[i]
		if global.Dimensions[axis]%n != 0 {
			return shapes.Invalid(), errors.Errorf("%s: dimension %d of axis %d of %s is not divisible into %d partitions",
				s, global.Dimensions[axis], axis, global, n)
		}
		shard.Dimensions[axis] /= n
	}
	return shard, nil
}

// GlobalShape returns the logical shape of the tensor, given the shape of one block.
func (s Sharded) GlobalShape(local shapes.Shape) (shapes.Shape, error) {
	global := local.Clone()
	for i, dim := range s.dims {
		axis, err := local.AdjustAxis(dim)
		if err != nil {
			return shapes.Invalid(), errors.WithMessagef(err, "GlobalShape(%s)", s)
		}
		global.Dimensions[axis] *= s.numPartitions[i]
	}
	return global, nil
}

// Equal implements Spec.
func (s Sharded) Equal(other Spec) bool {
	o, ok := other.(Sharded)
	return ok && s.Group().Equal(o.Group()) &&
		slices.Equal(s.dims, o.dims) && slices.Equal(s.numPartitions, o.numPartitions)
}

// String implements fmt.Stringer.
func (s Sharded) String() string {
	return fmt.Sprintf("Sharded(%s, dims=%v, partitions=%v)", s.Group().Name(), s.dims, s.numPartitions)
}
