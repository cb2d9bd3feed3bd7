package local

import (
	"context"
	"testing"
	"time"

	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllReduceAndAllGather(t *testing.T) {
	w := must.M1(NewWorld(3))
	tp := must.M1(w.WorldGroup("tp"))
	results := make([][2]*tensor.Tensor, 3)
	require.NoError(t, w.Run(context.Background(), func(ctx context.Context, rank int) error {
		c, err := w.Communicator(tp, rank)
		if err != nil {
			return err
		}
		x := tensor.MustFromValue([][]float64{{float64(rank), 1}})
		sum, err := c.AllReduceSum(ctx, x)
		if err != nil {
			return err
		}
		gathered, err := c.AllGather(ctx, x, 0)
		if err != nil {
			return err
		}
		results[rank] = [2]*tensor.Tensor{sum, gathered}
		return nil
	}))
	for rank, r := range results {
		assert.Equalf(t, [][]float64{{3, 3}}, r[0].Value(), "rank #%d", rank)
		assert.Equalf(t, [][]float64{{0, 1}, {1, 1}, {2, 1}}, r[1].Value(), "rank #%d", rank)
	}
	assert.Equal(t, int64(2), w.NumCollectives())
}

func TestSubGroups(t *testing.T) {
	mesh := must.M1(topology.NewMesh("mesh", []int{2, 2}, []string{"data", "model"}))
	w := must.M1(NewWorld(mesh.NumProcesses()))
	sums := make([]float64, 4)
	require.NoError(t, w.Run(context.Background(), func(ctx context.Context, rank int) error {
		g, err := mesh.GroupFor(rank, "model")
		if err != nil {
			return err
		}
		c, err := w.Communicator(g, rank)
		if err != nil {
			return err
		}
		assert.Equal(t, rank, c.GlobalRank())
		assert.Equal(t, rank%2, c.Rank())
		sum, err := c.AllReduceSum(ctx, tensor.MustFromValue([]float64{float64(rank)}))
		if err != nil {
			return err
		}
		sums[rank] = sum.Flat()[0]
		return nil
	}))
	assert.Equal(t, []float64{1, 1, 5, 5}, sums)
	assert.Equal(t, int64(2), w.NumAllReduce(), "one round per group")
}

func TestCommunicatorErrors(t *testing.T) {
	w := must.M1(NewWorld(2))
	tp := must.M1(topology.NewGroup("tp", 0, 1))
	_, err := w.Communicator(tp, 2)
	require.Error(t, err)
	big := must.M1(topology.NewGroup("big", 0, 1, 2))
	_, err = w.Communicator(big, 0)
	require.Error(t, err)
	other := must.M1(topology.NewGroup("tp", 1, 0))
	must.M1(w.Communicator(tp, 0))
	_, err = w.Communicator(other, 0)
	require.Error(t, err, "a different group with the same name")
	_, err = NewWorld(0)
	require.Error(t, err)
}

func TestMismatchedCollectives(t *testing.T) {
	err := Run(context.Background(), 2, func(ctx context.Context, w *World, rank int) error {
		tp, err := w.WorldGroup("tp")
		if err != nil {
			return err
		}
		c, err := w.Communicator(tp, rank)
		if err != nil {
			return err
		}
		x := tensor.MustFromValue([]float64{1, 2})
		if rank == 0 {
			_, err = c.AllReduceSum(ctx, x)
		} else {
			_, err = c.AllGather(ctx, x, 0)
		}
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collective mismatch")

	err = Run(context.Background(), 2, func(ctx context.Context, w *World, rank int) error {
		tp, err := w.WorldGroup("tp")
		if err != nil {
			return err
		}
		c, err := w.Communicator(tp, rank)
		if err != nil {
			return err
		}
		_, err = c.AllReduceSum(ctx, tensor.MustFromValue(make([]float64, rank+1)))
		return err
	})
	require.Error(t, err, "contributions of different shapes")
}

func TestAbort(t *testing.T) {
	errFailed := errors.New("rank failed")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := Run(ctx, 2, func(ctx context.Context, w *World, rank int) error {
		tp, err := w.WorldGroup("tp")
		if err != nil {
			return err
		}
		c, err := w.Communicator(tp, rank)
		if err != nil {
			return err
		}
		if rank == 1 {
			return errFailed
		}
		_, err = c.AllReduceSum(ctx, tensor.MustFromValue([]float64{1}))
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errFailed)
	assert.NoError(t, ctx.Err(), "rank 0 must be released by the cancellation, not the timeout")
}
