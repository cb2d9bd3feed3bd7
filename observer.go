package tensorparallel

import (
	"github.com/gomlx/tensorparallel/dtensor"
	"github.com/gomlx/tensorparallel/types/optypes"
)

// Observer is notified by a Registry of every successful call to a distributed handler.
//
// Observers are called synchronously, after the handler returns, from the goroutine that
// dispatched the call: they must be safe for concurrent use if several processes of a world
// share the registry.
type Observer interface {
	Observe(call *Call)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(call *Call)

// Observe implements Observer.
func (fn ObserverFunc) Observe(call *Call) { fn(call) }

// Call describes one dispatched call.
type Call struct {
	// Op called.
	Op optypes.OpType

	// Inputs are the tensor arguments: positional ones in order, then keyword ones sorted by name.
	Inputs []*dtensor.Tensor

	// Attributes are the non-tensor keyword arguments, e.g. "alpha" or "approximate".
	Attributes map[string]any

	// Output of the call, nil if the handler returned something other than a *dtensor.Tensor.
	Output *dtensor.Tensor
}

func newCall(op optypes.OpType, args []any, kwargs map[string]any, output any) *Call {
	call := &Call{Op: op, Attributes: make(map[string]any)}
	for _, arg := range args {
		if t, ok := arg.(*dtensor.Tensor); ok {
			call.Inputs = append(call.Inputs, t)
		}
	}
	for _, key := range sortedKeys(kwargs) {
		if t, ok := kwargs[key].(*dtensor.Tensor); ok {
			call.Inputs = append(call.Inputs, t)
		} else {
			call.Attributes[key] = kwargs[key]
		}
	}
	call.Output, _ = output.(*dtensor.Tensor)
	return call
}
