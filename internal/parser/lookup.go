package parser

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup walks a decoded JSON tree. Path elements are map keys (string) or
// slice indices (int). It reports false on any shape mismatch or a nil
// leaf, never panicking.
func Lookup(v any, path ...any) (any, bool) {
	cur := v
	for _, p := range path {
		switch key := p.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[key]
			if !ok {
				return nil, false
			}
		case int:
			arr, ok := cur.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return nil, false
			}
			cur = arr[key]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// String returns the value at path as text. Numbers are formatted without
// a trailing ".0"; empty strings report false.
func String(v any, path ...any) (string, bool) {
	raw, ok := Lookup(v, path...)
	if !ok {
		return "", false
	}
	switch t := raw.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Float returns the value at path as a number. Numeric strings are parsed.
func Float(v any, path ...any) (float64, bool) {
	raw, ok := Lookup(v, path...)
	if !ok {
		return 0, false
	}
	switch t := raw.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Int returns the value at path truncated to an int.
func Int(v any, path ...any) (int, bool) {
	f, ok := Float(v, path...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool returns the value at path as a flag. "Y", "true" and non-zero
// numbers count as true.
func Bool(v any, path ...any) (bool, bool) {
	raw, ok := Lookup(v, path...)
	if !ok {
		return false, false
	}
	switch t := raw.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "y", "yes", "true", "1":
			return true, true
		case "n", "no", "false", "0", "":
			return false, true
		}
		return false, false
	case float64:
		return t != 0, true
	default:
		return false, false
	}
}

// Map returns the object at path.
func Map(v any, path ...any) (map[string]any, bool) {
	raw, ok := Lookup(v, path...)
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	return m, ok
}

// List returns the array at path.
func List(v any, path ...any) ([]any, bool) {
	raw, ok := Lookup(v, path...)
	if !ok {
		return nil, false
	}
	l, ok := raw.([]any)
	return l, ok
}

// FirstString returns the first key of m holding non-empty text.
func FirstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := String(m, k); ok {
			return s, true
		}
	}
	return "", false
}

// FirstFloat returns the first key of m holding a non-zero number.
func FirstFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := Float(m, k); ok && f != 0 {
			return f, true
		}
	}
	return 0, false
}

// FirstValue returns the first key of m holding a non-nil value.
func FirstValue(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := Lookup(m, k); ok {
			return v, true
		}
	}
	return nil, false
}

// FirstList returns the first key of m holding a non-empty array.
func FirstList(m map[string]any, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if l, ok := List(m, k); ok && len(l) > 0 {
			return l, true
		}
	}
	return nil, false
}
