package utils

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "", NormalizeIdentifier(""))
	assert.Equal(t, "tp_group", NormalizeIdentifier("tp-group"))
	assert.Equal(t, "_1d", NormalizeIdentifier("1d"))
	assert.Equal(t, "model", NormalizeIdentifier("model"))
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "add_mm", ToSnakeCase("AddMM"))
	assert.Equal(t, "gelu", ToSnakeCase("Gelu"))
	assert.Equal(t, "mat_mul", ToSnakeCase("MatMul"))
}

func TestParseFloatDType(t *testing.T) {
	for name, want := range map[string]dtypes.DType{
		"float64": dtypes.F64, "F32": dtypes.F32, " half ": dtypes.F16,
	} {
		got, err := ParseFloatDType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, "name=%q", name)
		assert.True(t, IsSupportedFloat(got))
	}
	_, err := ParseFloatDType("int8")
	require.Error(t, err)
	assert.False(t, IsSupportedFloat(dtypes.S32))
}

func TestToSnakeCaseAcronyms(t *testing.T) {
	assert.Equal(t, "all_gather", ToSnakeCase("AllGather"))
	assert.Equal(t, "tp1d", ToSnakeCase("TP1D"))
	assert.Equal(t, "http_server", ToSnakeCase("HTTPServer"))
	assert.Equal(t, "already_snake", ToSnakeCase("already_snake"))
}
