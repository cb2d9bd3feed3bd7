package comm_test

import (
	"context"
	"testing"

	"github.com/gomlx/tensorparallel/comm"
	"github.com/gomlx/tensorparallel/comm/local"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/distspec"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var full = tensor.MustFromValue([][]float64{
	{1, 2, 3, 4},
	{5, 6, 7, 8},
	{9, 10, 11, 12},
	{13, 14, 15, 16},
})

// runRanks runs fn on every rank of a new world, with a communicator over the whole world named "tp".
func runRanks(t *testing.T, size int, fn func(ctx context.Context, c *local.Communicator) error) *local.World {
	w := must.M1(local.NewWorld(size))
	tp := must.M1(w.WorldGroup("tp"))
	require.NoError(t, w.Run(context.Background(), func(ctx context.Context, rank int) error {
		c, err := w.Communicator(tp, rank)
		if err != nil {
			return err
		}
		return fn(ctx, c)
	}))
	return w
}

func TestSelf(t *testing.T) {
	ctx := context.Background()
	self := comm.Self()
	assert.True(t, self.Group().IsSelf())
	assert.Equal(t, 1, self.Size())
	assert.True(t, tensor.Equal(full, must.M1(self.AllReduceSum(ctx, full))))
	assert.True(t, tensor.Equal(full, must.M1(self.AllGather(ctx, full, -1))))
	got := must.M1(self.Resplit(ctx, full, distspec.Default(), distspec.PartialSum(nil)))
	assert.True(t, tensor.Equal(full, got))
}

func TestShardGatherRoundTrip(t *testing.T) {
	for _, dim := range []int{0, -1} {
		w := runRanks(t, 2, func(ctx context.Context, c *local.Communicator) error {
			replicated := distspec.Replicate(c.Group())
			sharded := distspec.ShardAlong(c.Group(), dim)
			block, err := comm.Redistribute(ctx, c, full, replicated, sharded)
			if err != nil {
				return err
			}
			want := must.M1(full.Chunk(dim, 2, c.Rank()))
			if !assert.True(t, tensor.Equal(want, block)) {
				return nil
			}
			gathered, err := c.Resplit(ctx, block, sharded, replicated)
			if err != nil {
				return err
			}
			assert.True(t, tensor.Equal(full, gathered))
			again, err := comm.Redistribute(ctx, c, gathered, replicated, sharded)
			if err != nil {
				return err
			}
			assert.True(t, tensor.Equal(block, again))
			return nil
		})
		assert.Equal(t, int64(1), w.NumAllGather(), "only the gather communicates")
		assert.Equal(t, int64(0), w.NumAllReduce())
	}
}

func TestMultiDimSharding(t *testing.T) {
	runRanks(t, 4, func(ctx context.Context, c *local.Communicator) error {
		replicated := distspec.Replicate(c.Group())
		grid, err := distspec.Shard(c.Group(), []int{0, -1}, []int{2, 2})
		if err != nil {
			return err
		}
		block, err := comm.Redistribute(ctx, c, full, replicated, grid)
		if err != nil {
			return err
		}
		idx := grid.BlockIndex(c.Rank())
		want := must.M1(must.M1(full.Chunk(0, 2, idx[0])).Chunk(-1, 2, idx[1]))
		assert.True(t, tensor.Equal(want, block))

		// Grid to rows.
		rows := distspec.ShardAlong(c.Group(), 0)
		rowBlock, err := comm.Redistribute(ctx, c, block, grid, rows)
		if err != nil {
			return err
		}
		assert.True(t, tensor.Equal(must.M1(full.Chunk(0, 4, c.Rank())), rowBlock))

		// Fewer shards than processes: blocks repeat.
		halves, err := distspec.Shard(c.Group(), []int{0}, []int{2})
		if err != nil {
			return err
		}
		half, err := comm.Redistribute(ctx, c, full, replicated, halves)
		if err != nil {
			return err
		}
		assert.True(t, tensor.Equal(must.M1(full.Chunk(0, 2, c.Rank()%2)), half))
		gathered, err := comm.Redistribute(ctx, c, half, halves, replicated)
		if err != nil {
			return err
		}
		assert.True(t, tensor.Equal(full, gathered))
		return nil
	})
}

func TestPartial(t *testing.T) {
	w := runRanks(t, 2, func(ctx context.Context, c *local.Communicator) error {
		replicated := distspec.Replicate(c.Group())
		partial := distspec.PartialSum(c.Group())
		contribution, err := comm.Redistribute(ctx, c, full, replicated, partial)
		if err != nil {
			return err
		}
		if c.Rank() != 0 {
			assert.Equal(t, make([]float64, 16), contribution.Flat())
		}
		reduced, err := comm.Redistribute(ctx, c, contribution, partial, replicated)
		if err != nil {
			return err
		}
		assert.True(t, tensor.Equal(full, reduced))

		// Partial to Sharded: reduce then keep the block.
		cols := distspec.ShardAlong(c.Group(), -1)
		block, err := comm.Redistribute(ctx, c, full, partial, cols)
		if err != nil {
			return err
		}
		doubled := full.Map(func(v float64) float64 { return 2 * v })
		assert.True(t, tensor.Equal(must.M1(doubled.Chunk(-1, 2, c.Rank())), block))
		return nil
	})
	assert.Equal(t, int64(2), w.NumAllReduce())
	assert.Equal(t, int64(0), w.NumAllGather())
}

func TestRedistributeErrors(t *testing.T) {
	ctx := context.Background()
	tp := must.M1(topology.NewGroup("tp", 0, 1))
	dp := must.M1(topology.NewGroup("dp", 0, 1))

	// Non-replicated tensors cannot change group.
	_, err := comm.Redistribute(ctx, comm.Self(), full, distspec.PartialSum(tp), distspec.Replicate(dp))
	require.Error(t, err)

	// The communicator must match the group.
	_, err = comm.Redistribute(ctx, comm.Self(), full, distspec.Replicate(tp), distspec.ShardAlong(tp, 0))
	require.Error(t, err)

	// Relabeling a replicated tensor needs no communication.
	got := must.M1(comm.Redistribute(ctx, comm.Self(), full, distspec.Replicate(tp), distspec.Replicate(dp)))
	assert.True(t, tensor.Equal(full, got))
}
