// Package tensor implements Tensor, the dense local storage held by one process.
//
// Values are stored as float64 and rounded to the precision of the tensor's DType (Float64, Float32
// or Float16) on creation, so results computed at different precisions can be compared.
//
// Tensors are treated as immutable: operations return new tensors and never modify their inputs.
package tensor

import (
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorparallel/internal/utils"
	"github.com/gomlx/tensorparallel/shapeinference"
	"github.com/gomlx/tensorparallel/types/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Tensor is a dense row-major local tensor.
type Tensor struct {
	shape shapes.Shape
	flat  []float64
}

// Round returns v rounded to the precision of dtype.
func Round(dtype dtypes.DType, v float64) float64 {
	switch dtype {
	case dtypes.F32:
		return float64(float32(v))
	case dtypes.F16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	default:
		return v
	}
}

func newTensor(shape shapes.Shape, flat []float64) *Tensor {
	if shape.DType != dtypes.F64 {
		for i, v := range flat {
			flat[i] = Round(shape.DType, v)
		}
	}
	return &Tensor{shape: shape, flat: flat}
}

// FromFlat creates a tensor of the given dtype and dimensions from its row-major flat values.
// The values are copied.
func FromFlat(dtype dtypes.DType, flat []float64, dimensions ...int) (*Tensor, error) {
	if !utils.IsSupportedFloat(dtype) {
		return nil, errors.Errorf("tensor.FromFlat: unsupported dtype %s", dtype)
	}
	shape := shapes.Make(dtype, dimensions...)
	if !shape.Ok() {
		return nil, errors.Errorf("tensor.FromFlat: invalid dimensions %v", dimensions)
	}
	if shape.Size() != len(flat) {
		return nil, errors.Errorf("tensor.FromFlat: %d values given for shape %s of size %d", len(flat), shape, shape.Size())
	}
	return newTensor(shape, slices.Clone(flat)), nil
}

// FromShapeAndFlat is like FromFlat, but takes the shape.
func FromShapeAndFlat(shape shapes.Shape, flat []float64) (*Tensor, error) {
	return FromFlat(shape.DType, flat, shape.Dimensions...)
}

// Zeros returns a tensor of the given shape filled with zeros.
func Zeros(shape shapes.Shape) (*Tensor, error) {
	return FromShapeAndFlat(shape, make([]float64, shape.Size()))
}

// FromValue creates a tensor from a scalar or a (possibly nested) slice of float64, float32 or
// float16.Float16. The dtype is taken from the Go type.
//
// Example:
//
//	t, err := tensor.FromValue([][]float32{{1, 2}, {3, 4}}) // Shape (Float32)[2 2]
func FromValue(v any) (*Tensor, error) {
	shape, err := shapes.FromAnyValue(v)
	if err != nil {
		return nil, errors.WithMessage(err, "tensor.FromValue")
	}
	if !utils.IsSupportedFloat(shape.DType) {
		return nil, errors.Errorf("tensor.FromValue: unsupported dtype %s for value of type %T", shape.DType, v)
	}
	flat := make([]float64, 0, shape.Size())
	flat = appendFlat(flat, reflect.ValueOf(v))
	return newTensor(shape, flat), nil
}

func appendFlat(flat []float64, v reflect.Value) []float64 {
	if v.Kind() == reflect.Slice {
		for ii := range v.Len() {
			flat = appendFlat(flat, v.Index(ii))
		}
		return flat
	}
	switch x := v.Interface().(type) {
	case float64:
		return append(flat, x)
	case float32:
		return append(flat, float64(x))
	case float16.Float16:
		return append(flat, float64(x.Float32()))
	}
	panic(errors.Errorf("tensor: unexpected value type %s", v.Type()))
}

// MustFromValue is like FromValue, but panics on error. Useful for tests and constants.
func MustFromValue(v any) *Tensor {
	t, err := FromValue(v)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape.Clone() }

// DType of the tensor.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements.
func (t *Tensor) Size() int { return len(t.flat) }

// Flat returns a copy of the row-major values.
func (t *Tensor) Flat() []float64 { return slices.Clone(t.flat) }

// At returns the value at the given indices, one per axis.
func (t *Tensor) At(indices ...int) float64 {
	if len(indices) != t.Rank() {
		panic(errors.Errorf("tensor.At: %d indices given for tensor of rank %d", len(indices), t.Rank()))
	}
	strides := t.shape.Strides()
	pos := 0
	for axis, idx := range indices {
		if idx < 0 || idx >= t.shape.Dimensions[axis] {
			panic(errors.Errorf("tensor.At: index %d out-of-bounds for axis %d of %s", idx, axis, t.shape))
		}
		pos += idx * strides[axis]
	}
	return t.flat[pos]
}

// Value returns the values as a float64 for scalars, or a nested slice ([]float64, [][]float64, ...).
func (t *Tensor) Value() any {
	if t.Rank() == 0 {
		return t.flat[0]
	}
	valueType := reflect.TypeOf(float64(0))
	for range t.Rank() {
		valueType = reflect.SliceOf(valueType)
	}
	v, _ := nestedValue(valueType, t.shape.Dimensions, t.flat)
	return v.Interface()
}

func nestedValue(valueType reflect.Type, dims []int, flat []float64) (reflect.Value, []float64) {
	v := reflect.MakeSlice(valueType, dims[0], dims[0])
	if len(dims) == 1 {
		reflect.Copy(v, reflect.ValueOf(flat[:dims[0]]))
		return v, flat[dims[0]:]
	}
	for ii := range dims[0] {
		var sub reflect.Value
		sub, flat = nestedValue(valueType.Elem(), dims[1:], flat)
		v.Index(ii).Set(sub)
	}
	return v, flat
}

// Clone returns a copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: t.shape.Clone(), flat: slices.Clone(t.flat)}
}

// Map returns a new tensor with fn applied to every element, rounded to the tensor's dtype.
func (t *Tensor) Map(fn func(float64) float64) *Tensor {
	flat := make([]float64, len(t.flat))
	for i, v := range t.flat {
		flat[i] = fn(v)
	}
	return newTensor(t.shape.Clone(), flat)
}

// Reshape returns a tensor with the same values and new dimensions of the same total size.
func (t *Tensor) Reshape(dimensions ...int) (*Tensor, error) {
	shape := shapes.Make(t.DType(), dimensions...)
	if !shape.Ok() || shape.Size() != t.Size() {
		return nil, errors.Errorf("tensor.Reshape: cannot reshape %s to dimensions %v", t.shape, dimensions)
	}
	return &Tensor{shape: shape, flat: slices.Clone(t.flat)}, nil
}

// blockLayout returns, for an axis, the number of outer blocks, the axis dimension and the inner block size.
func blockLayout(shape shapes.Shape, axis int) (outer, dim, inner int) {
	outer, inner = 1, 1
	for a, d := range shape.Dimensions {
		switch {
		case a < axis:
			outer *= d
		case a > axis:
			inner *= d
		}
	}
	return outer, shape.Dimensions[axis], inner
}

// Chunk splits the tensor into numChunks even pieces along axis and returns piece idx.
func (t *Tensor) Chunk(axis, numChunks, idx int) (*Tensor, error) {
	output, err := shapeinference.Chunk(t.shape, axis, numChunks)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= numChunks {
		return nil, errors.Errorf("tensor.Chunk: chunk index %d out-of-bounds for %d chunks", idx, numChunks)
	}
	axis, _ = shapeinference.AdjustAxisToRank(axis, t.Rank())
	outer, dim, inner := blockLayout(t.shape, axis)
	chunkDim := dim / numChunks
	blockSize := chunkDim * inner
	flat := make([]float64, 0, output.Size())
	for o := range outer {
		start := o*dim*inner + idx*blockSize
		flat = append(flat, t.flat[start:start+blockSize]...)
	}
	return &Tensor{shape: output, flat: flat}, nil
}

// Concatenate joins tensors of the same dtype and rank along axis.
func Concatenate(axis int, tensors ...*Tensor) (*Tensor, error) {
	inputs := make([]shapes.Shape, len(tensors))
	for i, t := range tensors {
		inputs[i] = t.shape
	}
	output, err := shapeinference.Concatenate(inputs, axis)
	if err != nil {
		return nil, err
	}
	axis, _ = shapeinference.AdjustAxisToRank(axis, output.Rank())
	outer, _, _ := blockLayout(output, axis)
	flat := make([]float64, 0, output.Size())
	for o := range outer {
		for _, t := range tensors {
			_, dim, inner := blockLayout(t.shape, axis)
			blockSize := dim * inner
			flat = append(flat, t.flat[o*blockSize:(o+1)*blockSize]...)
		}
	}
	return &Tensor{shape: output, flat: flat}, nil
}

// Stack joins tensors of the same shape along a new leading axis.
func Stack(tensors ...*Tensor) (*Tensor, error) {
	inputs := make([]shapes.Shape, len(tensors))
	for i, t := range tensors {
		inputs[i] = t.shape
	}
	output, err := shapeinference.Stack(inputs)
	if err != nil {
		return nil, err
	}
	flat := make([]float64, 0, output.Size())
	for _, t := range tensors {
		flat = append(flat, t.flat...)
	}
	return &Tensor{shape: output, flat: flat}, nil
}

// Index returns the sub-tensor at position idx of the leading axis, dropping that axis.
func (t *Tensor) Index(idx int) (*Tensor, error) {
	if t.Rank() == 0 {
		return nil, errors.New("tensor.Index: cannot index a scalar")
	}
	if idx < 0 || idx >= t.shape.Dimensions[0] {
		return nil, errors.Errorf("tensor.Index: index %d out-of-bounds for %s", idx, t.shape)
	}
	shape := shapes.Make(t.DType(), t.shape.Dimensions[1:]...)
	blockSize := shape.Size()
	return &Tensor{shape: shape, flat: slices.Clone(t.flat[idx*blockSize : (idx+1)*blockSize])}, nil
}

// InDelta returns whether both tensors have the same dimensions and every pair of values differs by
// at most delta. DTypes may differ.
func InDelta(a, b *Tensor, delta float64) bool {
	if !a.shape.EqualDimensions(b.shape) {
		return false
	}
	for i, v := range a.flat {
		if math.Abs(v-b.flat[i]) > delta {
			return false
		}
	}
	return true
}

// Equal returns whether both tensors have the same shape and values.
func Equal(a, b *Tensor) bool {
	return a.shape.Equal(b.shape) && slices.Equal(a.flat, b.flat)
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v", t.shape, t.Value())
}
