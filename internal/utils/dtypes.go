package utils

import (
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// IsSupportedFloat returns whether dtype is one of the floating point dtypes local tensors can hold.
func IsSupportedFloat(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.F64, dtypes.F32, dtypes.F16:
		return true
	default:
		return false
	}
}

// ParseFloatDType converts a user given name ("float32", "f32", "float16", ...) to a supported DType.
func ParseFloatDType(name string) (dtypes.DType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "float64", "f64", "double":
		return dtypes.F64, nil
	case "float32", "f32", "float":
		return dtypes.F32, nil
	case "float16", "f16", "half":
		return dtypes.F16, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported dtype %q: only float64, float32 and float16 are accepted", name)
}
