package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup(t *testing.T) {
	g, err := NewGroup("tp", 0, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Size())
	assert.Equal(t, "tp", g.Name())
	assert.False(t, g.IsSelf())
	idx, err := g.IndexOf(2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	_, err = g.IndexOf(7)
	require.Error(t, err)
	assert.Equal(t, "Group(tp: [0 1 2 3])", g.String())

	ranks := g.Ranks()
	ranks[0] = 99
	assert.Equal(t, []int{0, 1, 2, 3}, g.Ranks())

	same, err := NewGroup("tp", 0, 1, 2, 3)
	require.NoError(t, err)
	assert.True(t, g.Equal(same))
	reordered, err := NewGroup("tp", 1, 0, 2, 3)
	require.NoError(t, err)
	assert.False(t, g.Equal(reordered))
	renamed, err := NewGroup("dp", 0, 1, 2, 3)
	require.NoError(t, err)
	assert.False(t, g.Equal(renamed))
	assert.False(t, g.Equal(Self()))
}

func TestGroupErrors(t *testing.T) {
	_, err := NewGroup("", 0)
	require.Error(t, err)
	_, err = NewGroup("a-b", 0)
	require.Error(t, err)
	_, err = NewGroup("self", 0)
	require.ErrorContains(t, err, "reserved")
	_, err = NewGroup("tp")
	require.ErrorContains(t, err, "at least one process")
	_, err = NewGroup("tp", 0, 0)
	require.ErrorContains(t, err, "duplicated")
	_, err = NewGroup("tp", -1)
	require.ErrorContains(t, err, "non-negative")
}

func TestSelf(t *testing.T) {
	s := Self()
	assert.True(t, s.IsSelf())
	assert.Equal(t, 1, s.Size())
	assert.Nil(t, s.Ranks())
	idx, err := s.IndexOf(42)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.True(t, s.Equal(Self()))
	assert.Equal(t, "Group(self)", s.String())
}
