package backends_test

import (
	"testing"

	"github.com/gomlx/tensorparallel/backends"
	_ "github.com/gomlx/tensorparallel/backends/cpu"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.True(t, backends.Registered("cpu"))
	assert.False(t, backends.Registered("tpu"))

	backend := must.M1(backends.New())
	assert.Equal(t, "cpu", backend.Name())

	t.Setenv(backends.EnvBackend, "cpu:gelu=tanh")
	backend = must.M1(backends.New())
	assert.Equal(t, "cpu", backend.Name())

	t.Setenv(backends.EnvBackend, "cpu:unknown")
	_, err := backends.New()
	require.Error(t, err)

	t.Setenv(backends.EnvBackend, "tpu")
	_, err = backends.New()
	require.Error(t, err)
}
