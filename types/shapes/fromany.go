package shapes

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// FromAnyValue attempts to convert a Go "any" value to its expected shape.
// Accepted values are scalar numbers or (possibly nested) slices of them.
//
// Example:
//
//	shape, err := shapes.FromAnyValue([][]float64{{0, 0}}) // Returns shape (Float64)[1 2]
func FromAnyValue(v any) (shape Shape, err error) {
	if v == nil {
		return Invalid(), errors.New("cannot take the shape of a nil value")
	}
	err = shapeForAnyValueRecursive(&shape, reflect.ValueOf(v), reflect.TypeOf(v))
	if err != nil {
		shape = Invalid()
	}
	return
}

func shapeForAnyValueRecursive(shape *Shape, v reflect.Value, t reflect.Type) error {
	if t.Kind() != reflect.Slice {
		shape.DType = dtypes.FromGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %q to a valid shape", t)
		}
		return nil
	}

	// Slice: recurse into its element type.
	t = t.Elem()
	shape.Dimensions = append(shape.Dimensions, v.Len())
	shapePrefix := shape.Clone()

	// The first element is the reference.
	if v.Len() == 0 {
		return errors.Errorf("value with empty slice not valid for shape conversion: %T -- "+
			"it wouldn't be possible to figure out the inner dimensions", v.Interface())
	}
	err := shapeForAnyValueRecursive(shape, v.Index(0), t)
	if err != nil {
		return err
	}

	// All other elements must have the same shape as the first one.
	for ii := 1; ii < v.Len(); ii++ {
		shapeTest := shapePrefix.Clone()
		err = shapeForAnyValueRecursive(&shapeTest, v.Index(ii), t)
		if err != nil {
			return err
		}
		if !shape.Equal(shapeTest) {
			return errors.Errorf("sub-slices have irregular shapes, found shapes %q, and %q", shape, shapeTest)
		}
	}
	return nil
}
