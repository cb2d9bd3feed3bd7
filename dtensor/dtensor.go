// Package dtensor implements Tensor, a logical (global) tensor distributed over a process group:
// the local data held by this process plus the TensorSpec describing how it relates to the whole.
//
// A Tensor is a value: changing its distribution with WithDistribution communicates and returns a
// new Tensor, the original is left unchanged.
package dtensor

import (
	"context"
	"fmt"

	"github.com/gomlx/tensorparallel/comm"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types"
	"github.com/gomlx/tensorparallel/types/distspec"
	"github.com/gomlx/tensorparallel/types/shapes"
	"github.com/pkg/errors"
)

// GradientHook transforms the gradient flowing back through a tensor in the backward direction.
type GradientHook func(ctx context.Context, grad *tensor.Tensor) (*tensor.Tensor, error)

// Tensor is a distributed tensor.
type Tensor struct {
	local    *tensor.Tensor
	spec     types.TensorSpec
	gradHook GradientHook
}

// FromLocal wraps the local data of this process with its spec.
//
// Sharded dims are canonicalized for the tensor rank (see distspec.Sharded.Canonical), and the local
// shape must be a valid block of the distribution.
func FromLocal(local *tensor.Tensor, spec types.TensorSpec) (*Tensor, error) {
	if local == nil {
		return nil, errors.New("dtensor.FromLocal: nil local tensor")
	}
	dist, err := canonical(spec.Distribution(), local.Rank())
	if err != nil {
		return nil, errors.WithMessagef(err, "dtensor.FromLocal(%s, %s)", local.Shape(), spec)
	}
	if sharded, ok := dist.(distspec.Sharded); ok {
		if _, err := sharded.GlobalShape(local.Shape()); err != nil {
			return nil, errors.WithMessagef(err, "dtensor.FromLocal(%s, %s)", local.Shape(), spec)
		}
	}
	return &Tensor{local: local, spec: spec.WithDistribution(dist)}, nil
}

// FromPlain wraps a plain tensor: replicated over topology.Self(), without parallel actions.
func FromPlain(local *tensor.Tensor) *Tensor {
	return &Tensor{local: local, spec: types.DefaultTensorSpec()}
}

// canonical validates dist and normalizes its dims for the given rank.
func canonical(dist distspec.Spec, rank int) (distspec.Spec, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	if sharded, ok := dist.(distspec.Sharded); ok {
		return sharded.Canonical(rank)
	}
	return dist, nil
}

// Local returns the data held by this process.
func (t *Tensor) Local() *tensor.Tensor { return t.local }

// Spec returns the tensor spec.
func (t *Tensor) Spec() types.TensorSpec { return t.spec }

// Distribution is a shortcut to Spec().Distribution().
func (t *Tensor) Distribution() distspec.Spec { return t.spec.Distribution() }

// LocalShape returns the shape of the data held by this process.
func (t *Tensor) LocalShape() shapes.Shape { return t.local.Shape() }

// Shape returns the global (logical) shape of the tensor.
func (t *Tensor) Shape() shapes.Shape {
	if sharded, ok := t.Distribution().(distspec.Sharded); ok {
		global, err := sharded.GlobalShape(t.local.Shape())
		if err != nil {
			// FromLocal validated it.
			panic(err)
		}
		return global
	}
	return t.local.Shape()
}

// WithDistribution redistributes the tensor to the distribution to, using the collectives of c,
// and returns the new Tensor. Parallel actions are kept, the gradient hook is not.
//
// Every member of the group must call it with the same distributions.
func (t *Tensor) WithDistribution(ctx context.Context, c comm.Communicator, to distspec.Spec) (*Tensor, error) {
	canonicalTo, err := canonical(to, t.local.Rank())
	if err != nil {
		return nil, errors.WithMessagef(err, "WithDistribution(%s)", to)
	}
	to = canonicalTo
	from := t.Distribution()
	if from.Equal(to) {
		return &Tensor{local: t.local, spec: t.spec}, nil
	}
	local, err := c.Resplit(ctx, t.local, from, to)
	if err != nil {
		return nil, err
	}
	return &Tensor{local: local, spec: t.spec.WithDistribution(to)}, nil
}

// WithSpec returns a copy of the tensor with the spec replaced, without any communication.
// The distribution must describe the same local data, for instance to attach parallel actions.
func (t *Tensor) WithSpec(spec types.TensorSpec) (*Tensor, error) {
	return FromLocal(t.local, spec)
}

// WithGradientHook returns a copy of the tensor whose gradients are routed through hook.
func (t *Tensor) WithGradientHook(hook GradientHook) *Tensor {
	return &Tensor{local: t.local, spec: t.spec, gradHook: hook}
}

// HasGradientHook returns whether a gradient hook is attached.
func (t *Tensor) HasGradientHook() bool { return t.gradHook != nil }

// RouteGradient applies the gradient hook to grad, the gradient of the loss with respect to this
// tensor. Without a hook, grad is returned unchanged.
func (t *Tensor) RouteGradient(ctx context.Context, grad *tensor.Tensor) (*tensor.Tensor, error) {
	if t.gradHook == nil {
		return grad, nil
	}
	return t.gradHook(ctx, grad)
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("DTensor(global=%s, local=%s, %s)", t.Shape(), t.local.Shape(), t.spec)
}
