package tensorparallel

import (
	"context"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorparallel/backends"
	"github.com/gomlx/tensorparallel/backends/cpu"
	"github.com/gomlx/tensorparallel/comm/local"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

var backend = must.M1(cpu.New(""))

// iotaTensor returns a float64 tensor with deterministic, non-trivial values.
func iotaTensor(seed int, dims ...int) *tensor.Tensor {
	size := 1
	for _, d := range dims {
		size *= d
	}
	flat := make([]float64, size)
	for i := range flat {
		flat[i] = float64((i*seed+3)%11-5) * 0.25
	}
	return must.M1(tensor.FromFlat(dtypes.F64, flat, dims...))
}

// runWorld runs fn on every rank of a new world of the given size, each with an Env holding the
// communicator of the group "tp" with all ranks.
func runWorld(t *testing.T, size int, fn func(ctx context.Context, env *Env, tp *topology.Group, rank int) error) *local.World {
	w := must.M1(local.NewWorld(size))
	tp := must.M1(w.WorldGroup("tp"))
	require.NoError(t, w.Run(context.Background(), func(ctx context.Context, rank int) error {
		c, err := w.Communicator(tp, rank)
		if err != nil {
			return err
		}
		env, err := NewEnv(backend, c)
		if err != nil {
			return err
		}
		return fn(ctx, env, tp, rank)
	}))
	return w
}

func TestEnv(t *testing.T) {
	w := must.M1(local.NewWorld(2))
	tp := must.M1(w.WorldGroup("tp"))
	c := must.M1(w.Communicator(tp, 1))
	env := must.M1(NewEnv(backend, c))
	assert.Same(t, c, must.M1(env.Communicator(tp)))
	assert.True(t, must.M1(env.Communicator(nil)).Group().IsSelf())
	assert.True(t, must.M1(env.Communicator(topology.Self())).Group().IsSelf())

	dp := must.M1(topology.NewGroup("dp", 0, 1))
	_, err := env.Communicator(dp)
	require.Error(t, err)
	renamed := must.M1(topology.NewGroup("tp", 1, 0))
	_, err = env.Communicator(renamed)
	require.Error(t, err)

	_, err = NewEnv(backend, c, c)
	require.Error(t, err)
	var noBackend backends.Backend
	_, err = NewEnv(noBackend)
	require.Error(t, err)
	assert.Equal(t, "tp_0", NormalizeIdentifier("tp-0"))
}
