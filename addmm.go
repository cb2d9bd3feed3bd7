package tensorparallel

import (
	"context"
	"slices"

	"github.com/gomlx/tensorparallel/backends"
	"github.com/gomlx/tensorparallel/dtensor"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types"
	"github.com/gomlx/tensorparallel/types/distspec"
	"github.com/gomlx/tensorparallel/types/optypes"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// AddMMMode is the strategy used to compute AddMM over distributed tensors.
type AddMMMode int

//go:generate go tool enumer -type=AddMMMode -trimprefix=AddMM -transform=lower -output=gen_addmmmode_enumer.go addmm.go

const (
	// AddMMDirect computes locally, without communication: mat2 has no parallel action.
	AddMMDirect AddMMMode = iota

	// AddMMRow is the row-parallel strategy: mat2 is split along its rows (axis 0).
	AddMMRow

	// AddMMCol is the column-parallel strategy: mat2 is split along its columns (last axis).
	AddMMCol
)

// SelectAddMMMode returns the strategy for `beta*input + alpha*(mat1 @ mat2)` given the operands' specs.
//
//	mat2                               input              mode
//	no action                          any                AddMMDirect
//	TP1D, row-sharded                  gathered           AddMMRow
//	TP1D, column-sharded               column-sharded     AddMMCol
//	anything else                                         ErrUnsupportedOperatorCombination
//
// mat1 doesn't take part in the selection: every strategy redistributes it as needed. A mat2 without
// actions always selects AddMMDirect, which then requires all operands to be gathered.
// A row-sharded input with a column-sharded mat2 is not supported.
func SelectAddMMMode(input, mat1, mat2 types.TensorSpec) (AddMMMode, error) {
	if len(mat2.Actions()) == 0 {
		return AddMMDirect, nil
	}
	if !mat2.HasComputePattern(types.TP1D) {
		return 0, errors.Wrapf(ErrUnsupportedOperatorCombination, "mat2 %s has no %s action", mat2, types.TP1D)
	}
	switch {
	case mat2.IsRowSharded():
		if input.IsGathered() {
			return AddMMRow, nil
		}
		return 0, errors.Wrapf(ErrUnsupportedOperatorCombination,
			"row-sharded mat2 requires a gathered input, got input %s", input)
	case mat2.IsColSharded():
		if input.IsColSharded() {
			return AddMMCol, nil
		}
		return 0, errors.Wrapf(ErrUnsupportedOperatorCombination,
			"column-sharded mat2 requires a column-sharded input, got input %s", input)
	}
	return 0, errors.Wrapf(ErrUnsupportedOperatorCombination,
		"mat2 %s must be sharded along its rows or its columns", mat2)
}

// AddMM returns `beta*input + alpha*(mat1 @ mat2)`, dispatched with the Default registry.
//
// Operands can be *tensor.Tensor or *dtensor.Tensor. If all are plain, the result is computed
// locally and wrapped with dtensor.FromPlain.
func AddMM(ctx context.Context, env *Env, input, mat1, mat2 any, beta, alpha float64) (*dtensor.Tensor, error) {
	result, err := Dispatch(ctx, env, optypes.AddMM, []any{input, mat1, mat2}, map[string]any{"beta": beta, "alpha": alpha})
	if err != nil {
		return nil, err
	}
	return toDTensor(optypes.AddMM, result)
}

// MatMul returns `lhs @ rhs`, dispatched with the Default registry.
//
// It has only a local implementation: distributed operands return ErrUnsupportedOperator.
func MatMul(ctx context.Context, env *Env, lhs, rhs any) (*dtensor.Tensor, error) {
	result, err := Dispatch(ctx, env, optypes.MatMul, []any{lhs, rhs}, nil)
	if err != nil {
		return nil, err
	}
	return toDTensor(optypes.MatMul, result)
}

// addMMArguments parses `addmm(input, mat1, mat2, *, beta=1, alpha=1)`.
func addMMArguments[T any](args []any, kwargs map[string]any) (input, mat1, mat2 T, beta, alpha float64, err error) {
	op := optypes.AddMM
	if input, err = typedArgument[T](op, args, kwargs, 0, "input"); err != nil {
		return
	}
	if mat1, err = typedArgument[T](op, args, kwargs, 1, "mat1"); err != nil {
		return
	}
	if mat2, err = typedArgument[T](op, args, kwargs, 2, "mat2"); err != nil {
		return
	}
	if beta, err = floatArgument(op, args, kwargs, -1, "beta", 1); err != nil {
		return
	}
	alpha, err = floatArgument(op, args, kwargs, -1, "alpha", 1)
	return
}

func addMMLocal(backend backends.Backend, args []any, kwargs map[string]any) (*tensor.Tensor, error) {
	input, mat1, mat2, beta, alpha, err := addMMArguments[*tensor.Tensor](args, kwargs)
	if err != nil {
		return nil, err
	}
	return backend.AddMM(input, mat1, mat2, beta, alpha)
}

func matMulLocal(backend backends.Backend, args []any, kwargs map[string]any) (*tensor.Tensor, error) {
	lhs, err := typedArgument[*tensor.Tensor](optypes.MatMul, args, kwargs, 0, "input")
	if err != nil {
		return nil, err
	}
	rhs, err := typedArgument[*tensor.Tensor](optypes.MatMul, args, kwargs, 1, "mat2")
	if err != nil {
		return nil, err
	}
	return backend.MatMul(lhs, rhs)
}

func addMMHandler(ctx context.Context, env *Env, args []any, kwargs map[string]any) (any, error) {
	input, mat1, mat2, beta, alpha, err := addMMArguments[*dtensor.Tensor](args, kwargs)
	if err != nil {
		return nil, err
	}
	mode, err := SelectAddMMMode(input.Spec(), mat1.Spec(), mat2.Spec())
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("addmm: mode=%s input=%s mat1=%s mat2=%s", mode, input.Spec(), mat1.Spec(), mat2.Spec())
	switch mode {
	case AddMMDirect:
		return AddMMDirectLocal(env, input, mat1, mat2, beta, alpha)
	case AddMMRow:
		return AddMMRowParallel(ctx, env, input, mat1, mat2, beta, alpha)
	case AddMMCol:
		return AddMMColParallel(ctx, env, input, mat1, mat2, beta, alpha)
	}
	return nil, errors.Errorf("unknown mode %s", mode)
}

// AddMMDirectLocal computes AddMM locally, without communication. All operands must be gathered,
// possibly over a group other than topology.Self().
// The result has the default spec.
func AddMMDirectLocal(env *Env, input, mat1, mat2 *dtensor.Tensor, beta, alpha float64) (*dtensor.Tensor, error) {
	for _, operand := range []struct {
		name string
		x    *dtensor.Tensor
	}{{"mat2", mat2}, {"mat1", mat1}, {"input", input}} {
		if !operand.x.Spec().IsGathered() {
			return nil, errors.Wrapf(ErrInvalidSpecPrecondition, "addmm with a mat2 without actions requires a gathered %s, got %s",
				operand.name, operand.x.Spec())
		}
	}
	local, err := env.Backend.AddMM(input.Local(), mat1.Local(), mat2.Local(), beta, alpha)
	if err != nil {
		return nil, err
	}
	return dtensor.FromPlain(local), nil
}

// weightSplit checks that mat2 is split along axis (0 or -1) in one block per process of its group,
// and returns the group and the number of blocks.
func weightSplit(mat2 *dtensor.Tensor, axis int) (group *topology.Group, numPartitions int, err error) {
	sharded, ok := mat2.Distribution().(distspec.Sharded)
	if !ok || !sharded.IsAlong(axis) {
		return nil, 0, errors.Wrapf(ErrInvalidSpecPrecondition, "mat2 must be sharded along axis %d, got %s", axis, mat2.Spec())
	}
	group = sharded.Group()
	numPartitions = sharded.NumPartitions()[0]
	if numPartitions != group.Size() {
		return nil, 0, errors.Wrapf(ErrInvalidSpecPrecondition, "mat2 must be split in one block per process of %s, got %s",
			group, mat2.Spec())
	}
	return group, numPartitions, nil
}

// checkRedistributable verifies x can be redistributed over group: only replicated tensors can move
// to another group.
func checkRedistributable(name string, x *dtensor.Tensor, group *topology.Group) error {
	dist := x.Distribution()
	if dist.Kind() != distspec.KindReplicated && !dist.Group().Equal(group) {
		return errors.Wrapf(ErrInvalidSpecPrecondition, "%s distributed as %s cannot be redistributed over %s", name, dist, group)
	}
	return nil
}

// AddMMRowParallel computes AddMM with mat2 split along its rows over a group:
//
//  1. mat1 is split along its last axis to match the rows of mat2.
//  2. Each process multiplies its blocks, getting a partial sum of the product.
//  3. The partial sums are all-reduced.
//  4. `beta*input + alpha*product` is computed locally.
//
// The input must be gathered. The result is replicated over the group.
func AddMMRowParallel(ctx context.Context, env *Env, input, mat1, mat2 *dtensor.Tensor, beta, alpha float64) (*dtensor.Tensor, error) {
	if !mat2.Spec().HasComputePattern(types.TP1D) {
		return nil, errors.Wrapf(ErrInvalidSpecPrecondition, "row-parallel addmm requires a %s action on mat2, got %s",
			types.TP1D, mat2.Spec())
	}
	if !input.Spec().IsGathered() {
		return nil, errors.Wrapf(ErrInvalidSpecPrecondition, "row-parallel addmm requires a gathered input, got %s", input.Spec())
	}
	group, _, err := weightSplit(mat2, 0)
	if err != nil {
		return nil, errors.WithMessage(err, "row-parallel addmm")
	}
	if err = checkRedistributable("mat1", mat1, group); err != nil {
		return nil, errors.WithMessage(err, "row-parallel addmm")
	}
	c, err := env.Communicator(group)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSpecPrecondition, err.Error())
	}

	mat1, err = mat1.WithDistribution(ctx, c, distspec.ShardAlong(group, -1))
	if err != nil {
		return nil, err
	}
	product, err := env.Backend.MatMul(mat1.Local(), mat2.Local())
	if err != nil {
		return nil, err
	}
	partial, err := dtensor.FromLocal(product, types.NewTensorSpec(distspec.PartialSum(group)))
	if err != nil {
		return nil, err
	}
	reduced, err := partial.WithDistribution(ctx, c, distspec.Replicate(group))
	if err != nil {
		return nil, err
	}
	local, err := env.Backend.ScaledAdd(input.Local(), reduced.Local(), beta, alpha)
	if err != nil {
		return nil, err
	}
	return dtensor.FromLocal(local, types.NewTensorSpec(distspec.Replicate(group)))
}

// AddMMColParallel computes AddMM with mat2 split along its columns over a group:
//
//  1. mat1 is replicated over the group, with a gradient hook that all-reduces its gradient.
//  2. Each process computes `beta*input + alpha*(mat1 @ mat2)` on its blocks, without communication.
//  3. The result is column-sharded like mat2, with a TP1D action of priority 1.
//  4. If the TP1D action of mat2 requests it, the result is all-gathered to Replicated.
//
// The input must be column-sharded like mat2.
func AddMMColParallel(ctx context.Context, env *Env, input, mat1, mat2 *dtensor.Tensor, beta, alpha float64) (*dtensor.Tensor, error) {
	action, found := mat2.Spec().ActionFor(types.TP1D)
	if !found {
		return nil, errors.Wrapf(ErrInvalidSpecPrecondition, "column-parallel addmm requires a %s action on mat2, got %s",
			types.TP1D, mat2.Spec())
	}
	group, numPartitions, err := weightSplit(mat2, -1)
	if err != nil {
		return nil, errors.WithMessage(err, "column-parallel addmm")
	}
	inputDist, ok := input.Distribution().(distspec.Sharded)
	if !ok || !inputDist.IsAlong(-1) || !inputDist.Group().Equal(group) ||
		!slices.Equal(inputDist.NumPartitions(), []int{numPartitions}) {
		return nil, errors.Wrapf(ErrInvalidSpecPrecondition, "column-parallel addmm requires an input column-sharded like mat2 %s, got %s",
			mat2.Distribution(), input.Spec())
	}
	if err = checkRedistributable("mat1", mat1, group); err != nil {
		return nil, errors.WithMessage(err, "column-parallel addmm")
	}

	mat1, err = ReplicateWithGradientReduce(ctx, env, mat1, group)
	if err != nil {
		return nil, err
	}
	local, err := env.Backend.AddMM(input.Local(), mat1.Local(), mat2.Local(), beta, alpha)
	if err != nil {
		return nil, err
	}
	output, err := dtensor.FromLocal(local, types.NewTensorSpec(distspec.ShardAlong(group, -1),
		types.ParallelAction{Priority: 1, Pattern: action.Pattern, Group: group}))
	if err != nil {
		return nil, err
	}
	if action.GatherOutput {
		c, err := env.Communicator(group)
		if err != nil {
			return nil, err
		}
		return output.WithDistribution(ctx, c, distspec.Replicate(group))
	}
	return output, nil
}

// ReplicateWithGradientReduce redistributes x to Replicated over group and attaches a gradient hook
// that all-reduce-sums its gradients over the group. The forward value is unchanged.
//
// It is used for the input of a column-parallel operation: each process only computes the gradient
// contribution of its columns, and the full gradient is their sum.
func ReplicateWithGradientReduce(ctx context.Context, env *Env, x *dtensor.Tensor, group *topology.Group) (*dtensor.Tensor, error) {
	c, err := env.Communicator(group)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSpecPrecondition, err.Error())
	}
	replicated, err := x.WithDistribution(ctx, c, distspec.Replicate(group))
	if err != nil {
		return nil, err
	}
	return replicated.WithGradientHook(func(ctx context.Context, grad *tensor.Tensor) (*tensor.Tensor, error) {
		return c.AllReduceSum(ctx, grad)
	}), nil
}
