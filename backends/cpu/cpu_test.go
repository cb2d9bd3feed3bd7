package cpu

import (
	"math"
	"testing"

	"github.com/gomlx/tensorparallel/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *Backend {
	return must.M1(New("")).(*Backend)
}

func TestMatMul(t *testing.T) {
	b := newBackend(t)
	lhs := tensor.MustFromValue([][]float64{{1, 2, 3}, {4, 5, 6}})
	rhs := tensor.MustFromValue([][]float64{{1, 0}, {0, 1}, {1, 1}})
	product := must.M1(b.MatMul(lhs, rhs))
	assert.Equal(t, [][]float64{{4, 5}, {10, 11}}, product.Value())

	_, err := b.MatMul(lhs, lhs)
	require.Error(t, err)
}

func TestAddMM(t *testing.T) {
	b := newBackend(t)
	mat1 := tensor.MustFromValue([][]float32{{1, 2}, {3, 4}})
	mat2 := tensor.MustFromValue([][]float32{{1, 0, 1}, {0, 1, 1}})

	input := tensor.MustFromValue([][]float32{{1, 1, 1}, {2, 2, 2}})
	got := must.M1(b.AddMM(input, mat1, mat2, 2, 0.5))
	assert.Equal(t, [][]float64{{2.5, 3, 3.5}, {5.5, 6, 7.5}}, got.Value())

	// Broadcasting of a bias vector.
	bias := tensor.MustFromValue([]float32{10, 20, 30})
	got = must.M1(b.AddMM(bias, mat1, mat2, 1, 1))
	assert.Equal(t, [][]float64{{11, 22, 33}, {13, 24, 37}}, got.Value())

	// beta == 0 ignores input, even NaNs.
	nan := tensor.MustFromValue([]float32{float32(math.NaN()), 0, 0})
	got = must.M1(b.AddMM(nan, mat1, mat2, 0, 1))
	assert.Equal(t, [][]float64{{1, 2, 3}, {3, 4, 7}}, got.Value())

	_, err := b.AddMM(tensor.MustFromValue([]float32{1, 2}), mat1, mat2, 1, 1)
	require.Error(t, err)
}

func TestElementwise(t *testing.T) {
	b := newBackend(t)
	x := tensor.MustFromValue([]float64{-1, 0, 2})
	relu := must.M1(b.Relu(x))
	assert.Equal(t, []float64{0, 0, 2}, relu.Flat())

	gelu := must.M1(b.Gelu(x, false))
	assert.InDeltaSlice(t, []float64{-0.15865525, 0, 1.95449974}, gelu.Flat(), 1e-6)
	approx := must.M1(b.Gelu(x, true))
	assert.InDeltaSlice(t, []float64{-0.15880801, 0, 1.95459769}, approx.Flat(), 1e-6)

	tanhBackend := must.M1(New("gelu=tanh")).(*Backend)
	assert.True(t, tensor.Equal(approx, must.M1(tanhBackend.Gelu(x, false))))

	clone := must.M1(b.Clone(x))
	assert.True(t, tensor.Equal(x, clone))
}
