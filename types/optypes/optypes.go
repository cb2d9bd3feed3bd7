// Package optypes defines OpType, the identity of the logical operators that can be dispatched
// over distributed tensors.
package optypes

import (
	"github.com/gomlx/tensorparallel/internal/utils"
)

// OpType is an enum of the logical operators known to the dispatch registry.
type OpType int

//go:generate go tool enumer -type=OpType -output=gen_optype_enumer.go optypes.go

const (
	Invalid OpType = iota

	// AddMM computes `beta*input + alpha*(mat1 @ mat2)`.
	AddMM

	// MatMul computes `lhs @ rhs`.
	MatMul

	// Elementwise operators.
	Gelu
	Relu
	Clone
	Detach

	// Last should always be kept the last, it is used as a counter/marker.
	Last
)

// nameMappings maps OpType to its operator name, when the default "snake case" doesn't work.
var nameMappings = map[OpType]string{
	AddMM:  "addmm",
	MatMul: "mm",
}

// Name returns the operator name, e.g. "addmm" or "gelu".
func (op OpType) Name() string {
	name, ok := nameMappings[op]
	if !ok {
		name = utils.ToSnakeCase(op.String())
	}
	return name
}

// IsElementwise returns whether the operator applies independently to each element of its primary
// argument, so it never changes the distribution of its input.
func (op OpType) IsElementwise() bool {
	switch op {
	case Gelu, Relu, Clone, Detach:
		return true
	default:
		return false
	}
}
