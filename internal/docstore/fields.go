package docstore

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
)

// Fields holds document fields. Values survive a JSON round trip, so numbers may come
// back as float64 and string lists as []any; the accessors normalise both.
type Fields map[string]any

func (f Fields) String(name string) string {
	value, _ := f[name].(string)
	return value
}

func (f Fields) Int(name string) int64 {
	value, _ := ToInt64(f[name])
	return value
}

func (f Fields) Strings(name string) []string {
	switch value := f[name].(type) {
	case []string:
		result := make([]string, len(value))
		copy(result, value)
		return result
	case []any:
		result := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// Clone copies the map and any list values so callers never share state with the store.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	result := make(Fields, len(f))
	for key, value := range f {
		result[key] = cloneValue(value)
	}
	return result
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case []string:
		result := make([]string, len(v))
		copy(result, v)
		return result
	case []any:
		result := make([]any, len(v))
		for i := range v {
			result[i] = cloneValue(v[i])
		}
		return result
	case map[string]any:
		return Fields(v).Clone()
	case Fields:
		return v.Clone()
	}
	return value
}

// ToInt64 converts any numeric representation a store may hand back.
func ToInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float32:
		return int64(math.Round(float64(v))), true
	case float64:
		return int64(math.Round(v)), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, err := v.Float64()
			if err != nil {
				return 0, false
			}
			return int64(math.Round(f)), true
		}
		return n, true
	}
	return 0, false
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case int, int32, int64, json.Number:
		n, ok := ToInt64(v)
		return float64(n), ok
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// EqualValues compares field values the way stores compare them: numbers by value,
// everything else structurally.
func EqualValues(a any, b any) bool {
	if fa, ok := toFloat64(a); ok {
		fb, ok := toFloat64(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// CompareValues orders two field values; numbers numerically, strings lexically,
// missing values first.
func CompareValues(a any, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb)
	}
	return 0
}
