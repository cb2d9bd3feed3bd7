package tensorparallel

import (
	"context"
	"testing"

	"github.com/gomlx/tensorparallel/dtensor"
	"github.com/gomlx/tensorparallel/types/optypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	ctx := context.Background()
	env := must.M1(NewEnv(backend))
	r := NewRegistry()
	RegisterDefaults(r)
	trace := NewTrace()
	r.AddObserver(trace)

	x := dtensor.FromPlain(iotaTensor(1, 2, 2))
	activation := must.M1(r.Dispatch(ctx, env, optypes.Gelu, []any{x}, map[string]any{"approximate": GeluApproximateTanh}))
	input, mat2 := dtensor.FromPlain(iotaTensor(2, 2, 2)), dtensor.FromPlain(iotaTensor(3, 2, 2))
	_ = must.M1(r.Dispatch(ctx, env, optypes.AddMM, []any{input, activation, mat2}, map[string]any{"beta": 0.5, "alpha": 2.0}))

	// Plain tensors don't reach the handlers, so they are not traced.
	_ = must.M1(r.Dispatch(ctx, env, optypes.Relu, []any{iotaTensor(4, 2)}, nil))

	statements := trace.Statements()
	require.Len(t, statements, 2)
	assert.Equal(t, optypes.Gelu, statements[0].OpType)
	assert.Same(t, x, statements[0].Inputs[0].Tensor())
	assert.Equal(t, 1, statements[0].Output.ID())
	assert.Equal(t,
		`%1 = "gelu"(%0){approximate = "tanh"} : (Replicated(self)[2 2]) -> Replicated(self)[2 2]`+"\n"+
			`%4 = "addmm"(%2, %1, %3){alpha = 2.0, beta = 0.5} : (Replicated(self)[2 2], Replicated(self)[2 2], Replicated(self)[2 2]) -> Replicated(self)[2 2]`+"\n",
		trace.String())
}
