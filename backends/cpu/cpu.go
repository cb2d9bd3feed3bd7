// Package cpu implements a portable backend that runs the local kernels on the CPU, using gonum.
//
// Importing it registers the backend as "cpu". It accepts an empty configuration or
// "gelu=tanh", which makes Gelu always use the tanh approximation.
package cpu

import (
	"math"
	"strings"

	"github.com/gomlx/tensorparallel/backends"
	"github.com/gomlx/tensorparallel/shapeinference"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/optypes"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BackendName to be used in TENSORPARALLEL_BACKEND to specify this backend.
const BackendName = "cpu"

// Registers New() as the constructor for the "cpu" backend.
func init() {
	backends.Register(BackendName, New)
}

// Backend implements backends.Backend.
type Backend struct {
	alwaysApproximateGelu bool
}

// Compile-time check that cpu.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// New constructs a new cpu Backend.
func New(config string) (backends.Backend, error) {
	b := &Backend{}
	for _, option := range strings.Split(config, ",") {
		switch strings.TrimSpace(option) {
		case "":
		case "gelu=tanh":
			b.alwaysApproximateGelu = true
		default:
			return nil, errors.Errorf("cpu backend: unknown configuration option %q", option)
		}
	}
	return b, nil
}

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements backends.Backend.
func (b *Backend) Description() string {
	return "Portable CPU backend (gonum)"
}

// String implements fmt.Stringer.
func (b *Backend) String() string { return BackendName }

func toDense(t *tensor.Tensor) *mat.Dense {
	dims := t.Shape().Dimensions
	return mat.NewDense(dims[0], dims[1], t.Flat())
}

// MatMul implements backends.Backend.
func (b *Backend) MatMul(lhs, rhs *tensor.Tensor) (*tensor.Tensor, error) {
	output, err := shapeinference.MatMul(lhs.Shape(), rhs.Shape())
	if err != nil {
		return nil, err
	}
	var product mat.Dense
	product.Mul(toDense(lhs), toDense(rhs))
	return tensor.FromShapeAndFlat(output, product.RawMatrix().Data)
}

// AddMM implements backends.Backend.
func (b *Backend) AddMM(input, mat1, mat2 *tensor.Tensor, beta, alpha float64) (*tensor.Tensor, error) {
	if _, err := shapeinference.AddMM(input.Shape(), mat1.Shape(), mat2.Shape()); err != nil {
		return nil, err
	}
	product, err := b.MatMul(mat1, mat2)
	if err != nil {
		return nil, err
	}
	return b.ScaledAdd(input, product, beta, alpha)
}

// ScaledAdd implements backends.Backend.
func (b *Backend) ScaledAdd(input, x *tensor.Tensor, beta, alpha float64) (*tensor.Tensor, error) {
	output := x.Shape()
	if input.DType() != output.DType {
		return nil, errors.Errorf("ScaledAdd: input dtype %s doesn't match %s", input.DType(), output.DType)
	}
	if !shapeinference.BroadcastsTo(input.Shape(), output) {
		return nil, errors.Errorf("ScaledAdd: input %s cannot be broadcast to %s", input.Shape(), output)
	}
	flat := make([]float64, output.Size())
	floats.ScaleTo(flat, alpha, x.Flat())
	if beta != 0 {
		floats.AddScaled(flat, beta, broadcastFlat(input, output.Dimensions))
	}
	return tensor.FromShapeAndFlat(output, flat)
}

// broadcastFlat returns the values of t broadcast to dims, aligning trailing axes.
func broadcastFlat(t *tensor.Tensor, dims []int) []float64 {
	src := t.Flat()
	size := 1
	for _, d := range dims {
		size *= d
	}
	if len(src) == size {
		return src
	}
	srcDims := t.Shape().Dimensions
	offset := len(dims) - len(srcDims)
	srcStrides := t.Shape().Strides()
	flat := make([]float64, size)
	indices := make([]int, len(dims))
	for i := range flat {
		pos := 0
		for axis, srcDim := range srcDims {
			if srcDim != 1 {
				pos += indices[axis+offset] * srcStrides[axis]
			}
		}
		flat[i] = src[pos]
		for axis := len(dims) - 1; axis >= 0; axis-- {
			indices[axis]++
			if indices[axis] < dims[axis] {
				break
			}
			indices[axis] = 0
		}
	}
	return flat
}

// Gelu implements backends.Backend.
func (b *Backend) Gelu(x *tensor.Tensor, approximate bool) (*tensor.Tensor, error) {
	if _, err := shapeinference.UnaryOp(optypes.Gelu, x.Shape()); err != nil {
		return nil, err
	}
	if approximate || b.alwaysApproximateGelu {
		return x.Map(geluTanh), nil
	}
	return x.Map(geluExact), nil
}

func geluExact(v float64) float64 {
	return 0.5 * v * (1 + math.Erf(v/math.Sqrt2))
}

var sqrt2OverPi = math.Sqrt(2 / math.Pi)

func geluTanh(v float64) float64 {
	return 0.5 * v * (1 + math.Tanh(sqrt2OverPi*(v+0.044715*v*v*v)))
}

// Relu implements backends.Backend.
func (b *Backend) Relu(x *tensor.Tensor) (*tensor.Tensor, error) {
	if _, err := shapeinference.UnaryOp(optypes.Relu, x.Shape()); err != nil {
		return nil, err
	}
	return x.Map(func(v float64) float64 { return max(v, 0) }), nil
}

// Clone implements backends.Backend.
func (b *Backend) Clone(x *tensor.Tensor) (*tensor.Tensor, error) {
	return x.Clone(), nil
}
