package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	ranks := MakeSet[int](4)
	assert.Len(t, ranks, 0)
	ranks.Insert(0, 2, 2)
	assert.Len(t, ranks, 2)
	assert.True(t, ranks.Has(2))
	assert.False(t, ranks.Has(1))

	group := SetWith(1, 2)
	remaining := ranks.Sub(group)
	assert.True(t, remaining.Equal(SetWith(0)))
	assert.False(t, remaining.Equal(group))
	assert.False(t, SetWith(0, 1).Equal(SetWith(0, 2)), "same size, different elements")

	delete(ranks, 2)
	assert.True(t, ranks.Equal(remaining))
}
