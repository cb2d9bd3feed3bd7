package tensorparallel

import (
	"github.com/gomlx/tensorparallel/types/optypes"
	"github.com/pkg/errors"
)

// argument returns the keyword argument name if given, otherwise the positional argument pos.
// A negative pos means keyword only.
func argument(args []any, kwargs map[string]any, pos int, name string) (value any, found bool) {
	if value, found = kwargs[name]; found {
		return
	}
	if pos >= 0 && pos < len(args) {
		return args[pos], true
	}
	return nil, false
}

// typedArgument returns a required argument of type T.
func typedArgument[T any](op optypes.OpType, args []any, kwargs map[string]any, pos int, name string) (T, error) {
	var zero T
	value, found := argument(args, kwargs, pos, name)
	if !found {
		return zero, errors.Errorf("%s: missing argument %q", op.Name(), name)
	}
	typed, ok := value.(T)
	if !ok {
		return zero, errors.Errorf("%s: argument %q must be a %T, got %T", op.Name(), name, zero, value)
	}
	return typed, nil
}

// floatArgument returns an optional numeric argument as a float64.
func floatArgument(op optypes.OpType, args []any, kwargs map[string]any, pos int, name string, defaultValue float64) (float64, error) {
	value, found := argument(args, kwargs, pos, name)
	if !found {
		return defaultValue, nil
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, errors.Errorf("%s: argument %q must be a number, got %T", op.Name(), name, value)
}

// stringArgument returns an optional string argument.
func stringArgument(op optypes.OpType, args []any, kwargs map[string]any, pos int, name, defaultValue string) (string, error) {
	value, found := argument(args, kwargs, pos, name)
	if !found {
		return defaultValue, nil
	}
	s, ok := value.(string)
	if !ok {
		return "", errors.Errorf("%s: argument %q must be a string, got %T", op.Name(), name, value)
	}
	return s, nil
}
