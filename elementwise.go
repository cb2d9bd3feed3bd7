package tensorparallel

import (
	"context"

	"github.com/gomlx/tensorparallel/backends"
	"github.com/gomlx/tensorparallel/dtensor"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/optypes"
	"github.com/pkg/errors"
)

// elementwiseKernel runs an elementwise operator on local data. kwargs are the side-channel
// arguments of the operator, passed through untouched.
type elementwiseKernel func(backend backends.Backend, x *tensor.Tensor, args []any, kwargs map[string]any) (*tensor.Tensor, error)

var elementwiseKernels = map[optypes.OpType]elementwiseKernel{
	optypes.Gelu:   geluKernel,
	optypes.Relu:   reluKernel,
	optypes.Clone:  cloneKernel,
	optypes.Detach: cloneKernel,
}

// Values of the "approximate" argument of Gelu.
const (
	GeluApproximateNone = "none"
	GeluApproximateTanh = "tanh"
)

func geluKernel(backend backends.Backend, x *tensor.Tensor, args []any, kwargs map[string]any) (*tensor.Tensor, error) {
	approximate, err := stringArgument(optypes.Gelu, args, kwargs, 1, "approximate", GeluApproximateNone)
	if err != nil {
		return nil, err
	}
	switch approximate {
	case GeluApproximateNone:
		return backend.Gelu(x, false)
	case GeluApproximateTanh:
		return backend.Gelu(x, true)
	}
	return nil, errors.Errorf("gelu: approximate must be %q or %q, got %q", GeluApproximateNone, GeluApproximateTanh, approximate)
}

func reluKernel(backend backends.Backend, x *tensor.Tensor, _ []any, _ map[string]any) (*tensor.Tensor, error) {
	return backend.Relu(x)
}

func cloneKernel(backend backends.Backend, x *tensor.Tensor, _ []any, _ map[string]any) (*tensor.Tensor, error) {
	return backend.Clone(x)
}

// elementwiseHandler runs the kernel on the local data of the first argument and copies its spec
// verbatim to the output: elementwise operators never change the distribution, nor communicate.
func elementwiseHandler(op optypes.OpType, kernel elementwiseKernel) Handler {
	return func(ctx context.Context, env *Env, args []any, kwargs map[string]any) (any, error) {
		x, err := typedArgument[*dtensor.Tensor](op, args, kwargs, 0, "input")
		if err != nil {
			return nil, err
		}
		local, err := kernel(env.Backend, x.Local(), args, kwargs)
		if err != nil {
			return nil, err
		}
		return dtensor.FromLocal(local, x.Spec())
	}
}

func elementwiseLocal(op optypes.OpType, kernel elementwiseKernel) LocalFunc {
	return func(backend backends.Backend, args []any, kwargs map[string]any) (*tensor.Tensor, error) {
		x, err := typedArgument[*tensor.Tensor](op, args, kwargs, 0, "input")
		if err != nil {
			return nil, err
		}
		return kernel(backend, x, args, kwargs)
	}
}

func dispatchElementwise(ctx context.Context, env *Env, op optypes.OpType, x any, kwargs map[string]any) (*dtensor.Tensor, error) {
	result, err := Dispatch(ctx, env, op, []any{x}, kwargs)
	if err != nil {
		return nil, err
	}
	return toDTensor(op, result)
}

// Gelu applies the Gaussian error linear unit to x, a *tensor.Tensor or *dtensor.Tensor.
// If approximate is true, the tanh approximation is used.
func Gelu(ctx context.Context, env *Env, x any, approximate bool) (*dtensor.Tensor, error) {
	mode := GeluApproximateNone
	if approximate {
		mode = GeluApproximateTanh
	}
	return dispatchElementwise(ctx, env, optypes.Gelu, x, map[string]any{"approximate": mode})
}

// Relu returns max(x, 0) elementwise.
func Relu(ctx context.Context, env *Env, x any) (*dtensor.Tensor, error) {
	return dispatchElementwise(ctx, env, optypes.Relu, x, nil)
}

// Clone returns a copy of x with the same spec.
func Clone(ctx context.Context, env *Env, x any) (*dtensor.Tensor, error) {
	return dispatchElementwise(ctx, env, optypes.Clone, x, nil)
}

// Detach returns a copy of x with the same spec and no gradient hook.
func Detach(ctx context.Context, env *Env, x any) (*dtensor.Tensor, error) {
	return dispatchElementwise(ctx, env, optypes.Detach, x, nil)
}
