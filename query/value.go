package query

import (
	"database/sql/driver"
	"reflect"
)

// Shape classifies a predicate value.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeNull
	ShapeList
	ShapeObject
)

func (s Shape) String() string {
	switch s {
	case ShapeNull:
		return "null"
	case ShapeList:
		return "list"
	case ShapeObject:
		return "object"
	default:
		return "scalar"
	}
}

// Classify reports the shape of v. For lists it also returns the elements.
// driver.Valuer implementations and []byte are scalars; any other slice or
// array is a list; maps with string keys are objects.
func Classify(v any) (Shape, []any) {
	if v == nil {
		return ShapeNull, nil
	}
	if _, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return ShapeNull, nil
		}
		return ShapeScalar, nil
	}
	switch v.(type) {
	case []byte, string:
		return ShapeScalar, nil
	case []any:
		return ShapeList, v.([]any)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ShapeNull, nil
		}
		return Classify(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return ShapeList, []any{}
		}
		fallthrough
	case reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return ShapeList, items
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return ShapeObject, nil
		}
	}
	return ShapeScalar, nil
}
