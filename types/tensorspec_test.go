package types

import (
	"testing"

	"github.com/gomlx/tensorparallel/types/distspec"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
)

func TestComputePattern(t *testing.T) {
	assert.Equal(t, "TP1D", TP1D.String())
	assert.Equal(t, TP2P5D, must.M1(ComputePatternString("tp2p5d")))
	assert.False(t, ComputePattern(17).IsAComputePattern())
}

func TestTensorSpecPredicates(t *testing.T) {
	tp := must.M1(topology.NewGroup("tp", 0, 1))

	def := DefaultTensorSpec()
	assert.True(t, def.IsGathered())
	assert.False(t, def.HasParallelSpec())
	assert.False(t, def.IsRowSharded())
	assert.False(t, def.IsColSharded())
	var zero TensorSpec
	assert.True(t, zero.Equal(def))

	replicated := NewTensorSpec(distspec.Replicate(tp))
	assert.True(t, replicated.IsGathered())
	assert.True(t, replicated.HasParallelSpec())

	partial := NewTensorSpec(distspec.PartialSum(tp))
	assert.False(t, partial.IsGathered())

	rows := NewTensorSpec(distspec.ShardAlong(tp, 0), ParallelAction{Priority: 1, Pattern: TP1D, Group: tp})
	assert.False(t, rows.IsGathered())
	assert.True(t, rows.IsRowSharded())
	assert.False(t, rows.IsColSharded())
	assert.True(t, rows.HasComputePattern(TP1D))
	assert.False(t, rows.HasComputePattern(TP2D))

	cols := NewTensorSpec(distspec.ShardAlong(tp, -1))
	assert.True(t, cols.IsColSharded())
	assert.False(t, cols.IsRowSharded())
	assert.True(t, cols.HasParallelSpec())

	both := NewTensorSpec(must.M1(distspec.Shard(tp, []int{0, -1}, []int{1, 2})))
	assert.False(t, both.IsRowSharded())
	assert.False(t, both.IsColSharded())
}

func TestTensorSpecActions(t *testing.T) {
	tp := must.M1(topology.NewGroup("tp", 0, 1))
	low := ParallelAction{Priority: 0, Pattern: TP1D, Group: tp}
	high := ParallelAction{Priority: 2, Pattern: TP1D, Group: tp, GatherOutput: true}
	other := ParallelAction{Priority: 1, Pattern: TP2D, Group: tp}
	spec := NewTensorSpec(distspec.ShardAlong(tp, -1), low, other, high)

	actions := spec.Actions()
	assert.Equal(t, []int{2, 1, 0}, []int{actions[0].Priority, actions[1].Priority, actions[2].Priority})
	action, found := spec.ActionFor(TP1D)
	assert.True(t, found)
	assert.True(t, action.Equal(high))
	_, found = spec.ActionFor(TP3D)
	assert.False(t, found)

	// Copies are independent.
	actions[0].Priority = 100
	assert.Equal(t, 2, spec.Actions()[0].Priority)

	gathered := spec.WithDistribution(distspec.Replicate(tp))
	assert.True(t, gathered.IsGathered())
	assert.True(t, gathered.HasComputePattern(TP1D))
	assert.True(t, spec.IsColSharded(), "original spec must not change")
	assert.False(t, gathered.Equal(spec))
	assert.True(t, spec.Equal(NewTensorSpec(distspec.ShardAlong(tp, -1), high, other, low)))
	assert.True(t, spec.WithActions().HasParallelSpec(), "a sharded distribution alone is parallel")

	assert.Equal(t, "TensorSpec(Sharded(tp, dims=[-1], partitions=[2]), TP1D(priority=2, group=tp, gather_output), "+
		"TP2D(priority=1, group=tp), TP1D(priority=0, group=tp))", spec.String())
}
