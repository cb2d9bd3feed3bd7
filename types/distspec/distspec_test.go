package distspec

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorparallel/types/shapes"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kindOf(s Spec) string {
	return Match(s,
		func(Replicated) string { return "replicated" },
		func(Sharded) string { return "sharded" },
		func(Partial) string { return "partial" })
}

func TestKinds(t *testing.T) {
	tp := must.M1(topology.NewGroup("tp", 0, 1))
	assert.Equal(t, "replicated", kindOf(Replicate(tp)))
	assert.Equal(t, "sharded", kindOf(ShardAlong(tp, -1)))
	assert.Equal(t, "partial", kindOf(PartialSum(tp)))

	assert.Equal(t, KindReplicated, Replicate(tp).Kind())
	assert.Equal(t, KindSharded, ShardAlong(tp, 0).Kind())
	assert.Equal(t, KindPartial, PartialSum(tp).Kind())
	assert.Equal(t, "Sharded", KindSharded.String())

	assert.Equal(t, "Replicated(tp)", Replicate(tp).String())
	assert.Equal(t, "Partial(tp)", PartialSum(tp).String())
	assert.Equal(t, "Sharded(tp, dims=[-1], partitions=[2])", ShardAlong(tp, -1).String())

	// Nil group means Self.
	assert.True(t, Replicate(nil).Group().IsSelf())
	assert.True(t, Default().Equal(Replicate(topology.Self())))
	var zero Replicated
	assert.True(t, zero.Group().IsSelf())
}

func TestEqual(t *testing.T) {
	tp := must.M1(topology.NewGroup("tp", 0, 1))
	dp := must.M1(topology.NewGroup("dp", 0, 1))
	assert.True(t, Replicate(tp).Equal(Replicate(tp)))
	assert.False(t, Replicate(tp).Equal(Replicate(dp)))
	assert.False(t, Replicate(tp).Equal(PartialSum(tp)))
	assert.True(t, PartialSum(tp).Equal(PartialSum(tp)))
	assert.True(t, ShardAlong(tp, 0).Equal(must.M1(Shard(tp, []int{0}, []int{2}))))
	assert.False(t, ShardAlong(tp, 0).Equal(ShardAlong(tp, -1)))
	assert.False(t, ShardAlong(tp, 0).Equal(ShardAlong(dp, 0)))
	assert.False(t, ShardAlong(tp, 0).Equal(must.M1(Shard(tp, []int{0}, []int{1}))))
}

func TestShardValidation(t *testing.T) {
	g4 := must.M1(topology.NewGroup("tp", 0, 1, 2, 3))
	_, err := Shard(g4, []int{0, 1}, []int{2})
	require.Error(t, err)
	_, err = Shard(g4, nil, nil)
	require.Error(t, err)
	_, err = Shard(g4, []int{0}, []int{0})
	require.Error(t, err)
	_, err = Shard(g4, []int{0}, []int{3})
	require.Error(t, err, "3 shards do not divide a group of 4")
	_, err = Shard(g4, []int{1, 1}, []int{2, 2})
	require.Error(t, err)

	s := must.M1(Shard(g4, []int{0, 1}, []int{2, 2}))
	assert.Equal(t, 4, s.NumShards())
	s = must.M1(Shard(g4, []int{0}, []int{2}))
	assert.Equal(t, 2, s.NumShards())

	// Accessors return copies.
	dims := s.Dims()
	dims[0] = 7
	assert.Equal(t, []int{0}, s.Dims())
}

func TestCanonical(t *testing.T) {
	tp := must.M1(topology.NewGroup("tp", 0, 1))
	c := must.M1(ShardAlong(tp, 1).Canonical(2))
	assert.True(t, c.IsAlong(-1))
	c = must.M1(ShardAlong(tp, -2).Canonical(2))
	assert.True(t, c.IsAlong(0))
	c = must.M1(ShardAlong(tp, -1).Canonical(3))
	assert.Equal(t, []int{-1}, c.Dims())
	c = must.M1(ShardAlong(tp, 0).Canonical(1))
	assert.True(t, c.IsAlong(-1), "for rank 1 the only axis is also the last one")

	_, err := ShardAlong(tp, 2).Canonical(2)
	require.Error(t, err)
	_, err = must.M1(Shard(tp, []int{1, -1}, []int{1, 2})).Canonical(2)
	require.Error(t, err, "1 and -1 are the same axis for rank 2")
}

func TestBlockIndex(t *testing.T) {
	g4 := must.M1(topology.NewGroup("tp", 0, 1, 2, 3))
	s := must.M1(Shard(g4, []int{0, -1}, []int{2, 2}))
	assert.Equal(t, []int{0, 0}, s.BlockIndex(0))
	assert.Equal(t, []int{0, 1}, s.BlockIndex(1))
	assert.Equal(t, []int{1, 0}, s.BlockIndex(2))
	assert.Equal(t, []int{1, 1}, s.BlockIndex(3))

	// Fewer shards than processes: blocks repeat.
	s = must.M1(Shard(g4, []int{0}, []int{2}))
	assert.Equal(t, []int{0}, s.BlockIndex(0))
	assert.Equal(t, []int{1}, s.BlockIndex(1))
	assert.Equal(t, []int{0}, s.BlockIndex(2))
	assert.Equal(t, []int{1}, s.BlockIndex(3))
}

func TestShardShape(t *testing.T) {
	tp := must.M1(topology.NewGroup("tp", 0, 1))
	global := shapes.Make(dtypes.Float32, 4, 6)
	local := must.M1(ShardAlong(tp, -1).ShardShape(global))
	assert.Equal(t, []int{4, 3}, local.Dimensions)
	assert.Equal(t, []int{4, 6}, global.Dimensions, "input shape must not be changed")
	assert.True(t, global.Equal(must.M1(ShardAlong(tp, -1).GlobalShape(local))))

	local = must.M1(ShardAlong(tp, 0).ShardShape(global))
	assert.Equal(t, []int{2, 6}, local.Dimensions)

	_, err := ShardAlong(tp, 0).ShardShape(shapes.Make(dtypes.Float32, 3, 6))
	require.Error(t, err)
	_, err = ShardAlong(tp, 2).ShardShape(global)
	require.Error(t, err)
}
