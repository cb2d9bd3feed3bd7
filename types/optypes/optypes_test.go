package optypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpTypeNames(t *testing.T) {
	assert.Equal(t, "AddMM", AddMM.String())
	assert.Equal(t, "addmm", AddMM.Name())
	assert.Equal(t, "mm", MatMul.Name())
	assert.Equal(t, "gelu", Gelu.Name())
	assert.Equal(t, "detach", Detach.Name())

	op, err := OpTypeString("relu")
	require.NoError(t, err)
	assert.Equal(t, Relu, op)
	_, err = OpTypeString("softmax")
	require.Error(t, err)
}

func TestIsElementwise(t *testing.T) {
	for _, op := range []OpType{Gelu, Relu, Clone, Detach} {
		assert.True(t, op.IsElementwise(), "op=%s", op)
	}
	assert.False(t, AddMM.IsElementwise())
	assert.False(t, MatMul.IsElementwise())
}
