// Package shapeinference calculates the shape resulting from operations and validates its inputs.
//
// Shapes here are always local shapes: the shape of the data one process holds. The global (logical)
// shape of a distributed tensor is derived from them by its distribution (see distspec).
//
// Elementwise operations don't change the shape. MatMul and AddMM get their own shape inference
// functions, and so do the data movement operations used by the collectives: Chunk, Concatenate,
// AllGather, AllReduce and Stack.
package shapeinference

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorparallel/internal/utils"
	"github.com/gomlx/tensorparallel/types/optypes"
	"github.com/gomlx/tensorparallel/types/shapes"
	"github.com/pkg/errors"
)

var (
	// FloatOperations operates only on float numbers.
	FloatOperations = utils.SetWith(
		optypes.Gelu,
		optypes.Relu,
	)

	// StandardUnaryOperations take one operand and return a value of the same shape.
	StandardUnaryOperations = utils.SetWith(
		optypes.Gelu,
		optypes.Relu,
		optypes.Clone,
		optypes.Detach,
	)
)

// UnaryOp checks the validity of the data type for StandardUnaryOperations and returns either an error or
// the output shape, which is the same as the operand.
func UnaryOp(opType optypes.OpType, operand shapes.Shape) (output shapes.Shape, err error) {
	if !StandardUnaryOperations.Has(opType) {
		err = errors.Errorf("operation %s is not in the StandardUnaryOperations set, cannot process it with UnaryOp", opType)
		return
	}
	if operand.DType == dtypes.InvalidDType {
		err = errors.Errorf("invalid shape %s for UnaryOp %s", operand, opType)
		return
	}
	if FloatOperations.Has(opType) && !operand.DType.IsFloat() {
		err = errors.Errorf("float UnaryOp %s must have a float (Float32, Float64, ...) data type as input, got %s", opType, operand)
		return
	}
	output = operand.Clone()
	return
}

// MatMul returns the shape of `lhs @ rhs`, for two matrices of shapes [m, k] and [k, n].
func MatMul(lhs, rhs shapes.Shape) (output shapes.Shape, err error) {
	if !lhs.Ok() || !rhs.Ok() {
		return shapes.Invalid(), errors.Errorf("MatMul: invalid operand shapes %s and %s", lhs, rhs)
	}
	if lhs.DType != rhs.DType {
		return shapes.Invalid(), errors.Errorf("MatMul lhs (left-hand-side) and rhs operands don't match data types: %s and %s",
			lhs.DType, rhs.DType)
	}
	if lhs.Rank() != 2 || rhs.Rank() != 2 {
		return shapes.Invalid(), errors.Errorf("MatMul requires matrices (rank-2) operands, got %s and %s", lhs, rhs)
	}
	if lhs.Dimensions[1] != rhs.Dimensions[0] {
		return shapes.Invalid(), errors.Errorf("MatMul contracting dimensions don't match: lhs %s and rhs %s", lhs, rhs)
	}
	return shapes.Make(lhs.DType, lhs.Dimensions[0], rhs.Dimensions[1]), nil
}

// AddMM returns the shape of `beta*input + alpha*(mat1 @ mat2)`.
//
// The input is broadcast to the shape [m, n] of the product: it can be a scalar, a vector of shape [n],
// a row [1, n] or the full [m, n] matrix.
func AddMM(input, mat1, mat2 shapes.Shape) (output shapes.Shape, err error) {
	output, err = MatMul(mat1, mat2)
	if err != nil {
		return shapes.Invalid(), errors.WithMessage(err, "AddMM")
	}
	if !input.Ok() {
		return shapes.Invalid(), errors.Errorf("AddMM: invalid input shape %s", input)
	}
	if input.DType != output.DType {
		return shapes.Invalid(), errors.Errorf("AddMM input dtype %s doesn't match matrices dtype %s", input.DType, output.DType)
	}
	if !BroadcastsTo(input, output) {
		return shapes.Invalid(), errors.Errorf("AddMM input %s cannot be broadcast to the product shape %s", input, output)
	}
	return output, nil
}

// BroadcastsTo returns whether operand can be broadcast to the matrix shape target, aligning the
// trailing axes: every operand dimension must either match the target or be 1.
func BroadcastsTo(operand, target shapes.Shape) bool {
	if operand.Rank() > target.Rank() {
		return false
	}
	offset := target.Rank() - operand.Rank()
	for axis, dim := range operand.Dimensions {
		if dim != 1 && dim != target.Dimensions[axis+offset] {
			return false
		}
	}
	return true
}

// AdjustAxisToRank returns a positive axis, adjusting negative numbers to the correct rank.
func AdjustAxisToRank(axis, rank int) (int, error) {
	if axis < -rank || axis >= rank {
		return -1, errors.Errorf("axis %d is out of range for the rank %d", axis, rank)
	}
	if axis < 0 {
		axis += rank
	}
	return axis, nil
}

// Chunk returns the shape of each of the numChunks even pieces of operand along axis.
func Chunk(operand shapes.Shape, axis, numChunks int) (output shapes.Shape, err error) {
	if !operand.Ok() {
		return shapes.Invalid(), errors.Errorf("Chunk: invalid operand shape %s", operand)
	}
	adjustedAxis, err := AdjustAxisToRank(axis, operand.Rank())
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "Chunk(%s, axis=%d)", operand, axis)
	}
	if numChunks <= 0 {
		return shapes.Invalid(), errors.Errorf("Chunk: number of chunks %d must be positive", numChunks)
	}
	if operand.Dimensions[adjustedAxis]%numChunks != 0 {
		return shapes.Invalid(), errors.Errorf("Chunk: dimension %d of axis %d of %s is not divisible by %d",
			operand.Dimensions[adjustedAxis], adjustedAxis, operand, numChunks)
	}
	output = operand.Clone()
	output.Dimensions[adjustedAxis] /= numChunks
	return output, nil
}

// Concatenate calculates the output shape of a Concatenate operation.
// It takes a slice of input shapes and the dimension along which to concatenate.
func Concatenate(inputs []shapes.Shape, axis int) (output shapes.Shape, err error) {
	if len(inputs) == 0 {
		return shapes.Invalid(), errors.Errorf("Concatenate requires at least one input shape")
	}

	// Initialize output dimensions with the first shape.
	firstShape := inputs[0]
	dtype := firstShape.DType
	rank := firstShape.Rank()
	output = firstShape.Clone()
	if dtype == dtypes.InvalidDType {
		return shapes.Invalid(), errors.Errorf("invalid shape %s for first input of Concatenate", firstShape)
	}
	axis, err = AdjustAxisToRank(axis, rank)
	if err != nil {
		return shapes.Invalid(), errors.WithMessage(err, "invalid concatenation axis")
	}

	// Validate further inputs and accumulate the concatenation axis size.
	for i := 1; i < len(inputs); i++ {
		currentShape := inputs[i]
		if currentShape.DType == dtypes.InvalidDType {
			return shapes.Invalid(), errors.Errorf("invalid shape %s for input #%d of Concatenate", currentShape, i)
		}
		if currentShape.DType != dtype {
			return shapes.Invalid(), errors.Errorf("mismatched DTypes for Concatenate: input #0 has %s, input #%d has %s",
				dtype, i, currentShape.DType)
		}
		if currentShape.Rank() != rank {
			return shapes.Invalid(), errors.Errorf("mismatched ranks for Concatenate: input #0 has rank %d, input #%d has rank %d",
				rank, i, currentShape.Rank())
		}

		for d := 0; d < rank; d++ {
			if d == axis {
				output.Dimensions[d] += currentShape.Dimensions[d]
			} else {
				if currentShape.Dimensions[d] != output.Dimensions[d] {
					return shapes.Invalid(), errors.Errorf("mismatched dimensions for Concatenate at axis %d (non-concatenation axis): input #0 has %d, input #%d has %d",
						d, output.Dimensions[d], i, currentShape.Dimensions[d])
				}
			}
		}
	}
	return output, nil
}

// Stack returns the shape of stacking inputs of equal shapes along a new leading axis.
func Stack(inputs []shapes.Shape) (output shapes.Shape, err error) {
	if len(inputs) == 0 {
		return shapes.Invalid(), errors.New("Stack requires at least one input shape")
	}
	first := inputs[0]
	if !first.Ok() {
		return shapes.Invalid(), errors.Errorf("invalid shape %s for first input of Stack", first)
	}
	for i, s := range inputs[1:] {
		if !s.Equal(first) {
			return shapes.Invalid(), errors.Errorf("Stack requires all inputs to have the same shape: input #0 has %s, input #%d has %s",
				first, i+1, s)
		}
	}
	dims := make([]int, 0, first.Rank()+1)
	dims = append(dims, len(inputs))
	dims = append(dims, first.Dimensions...)
	return shapes.Make(first.DType, dims...), nil
}

// AllGather returns the output shape for an all-gather over groupSize processes along axis.
func AllGather(operand shapes.Shape, groupSize, axis int) (output shapes.Shape, err error) {
	if !operand.Ok() {
		return shapes.Invalid(), errors.Errorf("AllGather: invalid operand shape %s", operand)
	}
	if groupSize <= 0 {
		return shapes.Invalid(), errors.Errorf("AllGather: group size %d must be positive", groupSize)
	}
	adjustedAxis, err := AdjustAxisToRank(axis, operand.Rank())
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "AllGather: gather axis %d is out of bounds for operand rank %d",
			axis, operand.Rank())
	}
	output = operand.Clone()
	output.Dimensions[adjustedAxis] *= groupSize
	return output, nil
}

// AllReduce returns the output shape for a sum-reduction of operands, one contributed by each process.
// The output shape is identical to the operands shape, which must all be the same.
func AllReduce(operands []shapes.Shape) (output shapes.Shape, err error) {
	if len(operands) == 0 {
		return shapes.Invalid(), errors.New("AllReduce requires at least one operand")
	}
	first := operands[0]
	for i, operand := range operands {
		if !operand.Ok() {
			return shapes.Invalid(), errors.Errorf("AllReduce: invalid operand[%d] shape %s", i, operand)
		}
		if !operand.Equal(first) {
			return shapes.Invalid(), errors.Errorf("AllReduce: operand[%d] shape %s does not match operand[0] shape %s",
				i, operand, first)
		}
	}
	return first.Clone(), nil
}
