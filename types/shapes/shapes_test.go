package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())
	require.False(t, Make(dtypes.F32, 2, 0).Ok())

	shape0 := Make(dtypes.F64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Equal(t, 1, shape0.Size())

	shape1 := Make(dtypes.F32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, []int{6, 2, 1}, shape1.Strides())
	require.True(t, shape1.Equal(shape1.Clone()))
	require.False(t, shape1.Equal(Make(dtypes.F64, 4, 3, 2)))
	require.True(t, shape1.EqualDimensions(Make(dtypes.F64, 4, 3, 2)))
}

func TestDim(t *testing.T) {
	shape := Make(dtypes.F32, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })

	axis, err := shape.AdjustAxis(-2)
	require.NoError(t, err)
	assert.Equal(t, 1, axis)
	assert.Equal(t, []int{4, 7, 2}, shape.WithDim(1, 7).Dimensions)
	assert.Equal(t, []int{4, 3, 2}, shape.Dimensions, "WithDim must not change the original")
}

func TestFromAnyValue(t *testing.T) {
	shape, err := FromAnyValue([]float32{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, shape.Equal(Make(dtypes.F32, 3)))

	shape, err = FromAnyValue([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.True(t, shape.Equal(Make(dtypes.F64, 2, 3)))

	// Irregular shape is not accepted:
	shape, err = FromAnyValue([][]float32{{1, 2, 3}, {4, 5}})
	require.Errorf(t, err, "irregular shape should have returned an error, instead got shape %s", shape)

	_, err = FromAnyValue([]float64{})
	require.Error(t, err)
	_, err = FromAnyValue(nil)
	require.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "(invalid)", Invalid().String())
	assert.Contains(t, Make(dtypes.F32, 2, 3).String(), "[2 3]")
}
