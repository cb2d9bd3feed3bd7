package tensorparallel

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/gomlx/tensorparallel/backends"
	"github.com/gomlx/tensorparallel/dtensor"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/optypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Handler implements an operator over distributed tensors.
//
// When it is called every *tensor.Tensor argument has already been wrapped as a *dtensor.Tensor,
// other arguments are passed through untouched. It returns the result of the operator, usually a
// *dtensor.Tensor.
type Handler func(ctx context.Context, env *Env, args []any, kwargs map[string]any) (any, error)

// LocalFunc implements an operator on plain local tensors, without any communication.
type LocalFunc func(backend backends.Backend, args []any, kwargs map[string]any) (*tensor.Tensor, error)

// Registry maps operators to their distributed Handler and their plain LocalFunc.
//
// Registration is expected at process start (see Default), dispatching can happen concurrently.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[optypes.OpType]Handler
	locals    map[optypes.OpType]LocalFunc
	observers []Observer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[optypes.OpType]Handler),
		locals:   make(map[optypes.OpType]LocalFunc),
	}
}

// Default registry, with the handlers of this package registered at initialization.
var Default = NewRegistry()

func init() {
	RegisterDefaults(Default)
}

// RegisterDefaults registers the handlers and local functions of AddMM, MatMul and the elementwise
// operators into r.
//
// MatMul only has a local function: calling it on distributed tensors returns ErrUnsupportedOperator.
func RegisterDefaults(r *Registry) {
	r.Register(optypes.AddMM, addMMHandler)
	r.RegisterLocal(optypes.AddMM, addMMLocal)
	r.RegisterLocal(optypes.MatMul, matMulLocal)
	for op, kernel := range elementwiseKernels {
		r.Register(op, elementwiseHandler(op, kernel))
		r.RegisterLocal(op, elementwiseLocal(op, kernel))
	}
}

// Register the distributed handler of op, replacing any previous one.
func (r *Registry) Register(op optypes.OpType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[op] = handler
}

// RegisterLocal registers the plain local implementation of op, replacing any previous one.
func (r *Registry) RegisterLocal(op optypes.OpType, fn LocalFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locals[op] = fn
}

// Has returns whether op has a distributed handler.
func (r *Registry) Has(op optypes.OpType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.handlers[op]
	return found
}

// Ops returns the operators with a distributed handler, sorted.
func (r *Registry) Ops() []optypes.OpType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// AddObserver adds an observer notified of every call that reaches a distributed handler.
func (r *Registry) AddObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Dispatch calls op with the given arguments.
//
// If no argument (positional or keyword) is a *dtensor.Tensor, the plain local function of op runs
// unchanged on the local data, without any communication, and a *tensor.Tensor is returned.
//
// Otherwise every *tensor.Tensor argument is wrapped with dtensor.FromPlain (replicated over
// topology.Self()) and the registered handler of op is called. It returns an error wrapping
// ErrUnsupportedOperator if op has no handler.
func (r *Registry) Dispatch(ctx context.Context, env *Env, op optypes.OpType, args []any, kwargs map[string]any) (any, error) {
	if env == nil {
		return nil, errors.Errorf("%s: Dispatch requires an Env", op.Name())
	}
	r.mu.RLock()
	handler, hasHandler := r.handlers[op]
	local, hasLocal := r.locals[op]
	observers := slices.Clone(r.observers)
	r.mu.RUnlock()

	if !hasDistributed(args, kwargs) {
		if !hasLocal {
			return nil, errors.Wrapf(ErrUnsupportedOperator, "%s has no local implementation", op.Name())
		}
		klog.V(2).Infof("%s: no distributed arguments, running locally", op.Name())
		return local(env.Backend, args, kwargs)
	}
	if !hasHandler {
		return nil, errors.Wrapf(ErrUnsupportedOperator, "%s has no handler for distributed tensors", op.Name())
	}

	dArgs := make([]any, len(args))
	for i, arg := range args {
		dArgs[i] = coerce(arg)
	}
	dKwargs := make(map[string]any, len(kwargs))
	for key, arg := range kwargs {
		dKwargs[key] = coerce(arg)
	}
	output, err := handler(ctx, env, dArgs, dKwargs)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s", op.Name())
	}
	if len(observers) > 0 {
		call := newCall(op, dArgs, dKwargs, output)
		for _, o := range observers {
			o.Observe(call)
		}
	}
	return output, nil
}

// Dispatch calls op using the Default registry. See Registry.Dispatch.
func Dispatch(ctx context.Context, env *Env, op optypes.OpType, args []any, kwargs map[string]any) (any, error) {
	return Default.Dispatch(ctx, env, op, args, kwargs)
}

func hasDistributed(args []any, kwargs map[string]any) bool {
	for _, arg := range args {
		if _, ok := arg.(*dtensor.Tensor); ok {
			return true
		}
	}
	for _, arg := range kwargs {
		if _, ok := arg.(*dtensor.Tensor); ok {
			return true
		}
	}
	return false
}

// coerce wraps plain tensors as distributed ones, other values are returned unchanged.
func coerce(arg any) any {
	if t, ok := arg.(*tensor.Tensor); ok {
		return dtensor.FromPlain(t)
	}
	return arg
}

// toDTensor converts the result of Dispatch to a distributed tensor.
func toDTensor(op optypes.OpType, result any) (*dtensor.Tensor, error) {
	switch v := result.(type) {
	case *dtensor.Tensor:
		return v, nil
	case *tensor.Tensor:
		return dtensor.FromPlain(v), nil
	}
	return nil, errors.Errorf("%s returned %T, expected a tensor", op.Name(), result)
}
