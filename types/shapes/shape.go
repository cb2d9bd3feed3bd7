// Package shapes defines Shape, the dtype and dimensions of a local or a logical (global) tensor.
//
// Glossary:
//
//   - Rank: number of axes of a tensor.
//   - Axis: the index of a dimension. Negative axes count from the end, so -1 is the last axis.
//   - Dimension: the size of a tensor along one axis.
//   - DType: the type of the unit element, from github.com/gomlx/gopjrt/dtypes.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape of a tensor: its DType and dimensions.
//
// Use Make to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape with the given dtype and dimensions.
// Dimensions must be > 0; otherwise the returned shape is invalid (see Shape.Ok).
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	for _, dim := range dimensions {
		if dim <= 0 {
			return Invalid()
		}
	}
	return Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" Shape{} is invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// AdjustAxis converts a possibly negative axis to its non-negative value.
// It returns an error if the axis is out-of-bounds for the shape's rank.
func (s Shape) AdjustAxis(axis int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += s.Rank()
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		return 0, errors.Errorf("axis %d out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return adjusted, nil
}

// Dim returns the dimension of the given axis. Negative axes count from the end.
// Like with slice indexing, it panics for an out-of-bounds axis.
func (s Shape) Dim(axis int) int {
	adjusted, err := s.AdjustAxis(axis)
	if err != nil {
		panic(err)
	}
	return s.Dimensions[adjusted]
}

// Size returns the number of elements for this shape: the product of all dimensions.
func (s Shape) Size() int {
	size := 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return size
}

// Equal compares dtype and dimensions.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares only the dimensions, the dtypes may differ.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// WithDim returns a copy of the shape with the given axis set to dim.
// The axis must already be adjusted (non-negative).
func (s Shape) WithDim(axis, dim int) Shape {
	s2 := s.Clone()
	s2.Dimensions[axis] = dim
	return s2
}

// Strides returns the row-major strides of each axis, in number of elements.
func (s Shape) Strides() []int {
	strides := make([]int, s.Rank())
	stride := 1
	for axis := s.Rank() - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= s.Dimensions[axis]
	}
	return strides
}

// String implements fmt.Stringer. E.g.: "(Float32)[4 3]".
func (s Shape) String() string {
	if !s.Ok() {
		return "(invalid)"
	}
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}
