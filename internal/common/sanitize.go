package common

import (
	"math"
	"reflect"
)

// MaxJSONFloat is the largest magnitude kept by SanitizeFloat.
const MaxJSONFloat = 1e308

// SanitizeFloat coerces a value into a JSON-safe number.
// NaN, ±Inf and magnitudes beyond MaxJSONFloat become 0.
func SanitizeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxJSONFloat {
		return 0
	}
	return v
}

// SanitizeSlice sanitizes every element in place and returns the slice.
func SanitizeSlice(values []float64) []float64 {
	for i, v := range values {
		values[i] = SanitizeFloat(v)
	}
	return values
}

// Round rounds v to the given number of decimal places after sanitizing it.
func Round(v float64, places int) float64 {
	v = SanitizeFloat(v)
	p := math.Pow(10, float64(places))
	return SanitizeFloat(math.Round(v*p) / p)
}

// SanitizeValue walks v (a pointer, struct, slice or map) and replaces every
// non JSON-safe float it can reach with 0. Unaddressable values are skipped.
func SanitizeValue(v any) {
	if v == nil {
		return
	}
	sanitizeReflect(reflect.ValueOf(v), 0)
}

const maxSanitizeDepth = 32

func sanitizeReflect(v reflect.Value, depth int) {
	if depth > maxSanitizeDepth || !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}
		elem := v.Elem()
		if v.Kind() == reflect.Interface && (elem.Kind() == reflect.Float64 || elem.Kind() == reflect.Float32) {
			if v.CanSet() {
				v.Set(reflect.ValueOf(SanitizeFloat(elem.Float())).Convert(elem.Type()))
			}
			return
		}
		sanitizeReflect(elem, depth+1)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			sanitizeReflect(v.Field(i), depth+1)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			sanitizeReflect(v.Index(i), depth+1)
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			val := iter.Value()
			switch val.Kind() {
			case reflect.Float64, reflect.Float32:
				v.SetMapIndex(iter.Key(), reflect.ValueOf(SanitizeFloat(val.Float())).Convert(val.Type()))
			case reflect.Interface:
				if inner := val.Elem(); inner.IsValid() && (inner.Kind() == reflect.Float64 || inner.Kind() == reflect.Float32) {
					v.SetMapIndex(iter.Key(), reflect.ValueOf(SanitizeFloat(inner.Float())))
				} else if inner.IsValid() {
					sanitizeReflect(inner, depth+1)
				}
			default:
				sanitizeReflect(val, depth+1)
			}
		}
	case reflect.Float64, reflect.Float32:
		if v.CanSet() {
			v.SetFloat(SanitizeFloat(v.Float()))
		}
	}
}
