package manifest

import "sort"

// DeepCopy copies the container shapes a manifest value may be built from:
// *Object, map[string]any, []any and []string. Other values are returned
// as is.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = DeepCopy(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = DeepCopy(x)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Plain converts nested *Object values to map[string]any, for encoders
// and comparisons that do not know about Object.
func Plain(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Map()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = Plain(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = Plain(x)
		}
		return out
	default:
		return v
	}
}

// IsObjectShaped reports whether v is a keyed accumulator.
func IsObjectShaped(v any) bool {
	switch v.(type) {
	case *Object, map[string]any:
		return true
	}
	return false
}

// ToObject returns v as an *Object. A map[string]any is converted with its
// keys in sorted order. The second result is false for non-keyed values.
func ToObject(v any) (*Object, bool) {
	switch t := v.(type) {
	case *Object:
		return t, t != nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		o := NewObject()
		for _, k := range keys {
			o.Set(k, t[k])
		}
		return o, true
	}
	return nil, false
}
