package model

// RawProfile is the loosely-typed attribute bag returned by the identity
// provider. Accessors tolerate missing keys and wrong-typed values; callers
// never assume key presence.
type RawProfile map[string]any

// IsEmpty reports whether the provider returned no usable payload.
func (r RawProfile) IsEmpty() bool {
	return len(r) == 0
}

// Str returns the string at key, or "" when absent or not a string.
func (r RawProfile) Str(key string) string {
	s, _ := r[key].(string)
	return s
}

// Strings returns the value at key coerced to a string slice. JSON decoding
// yields []any, so both []string and []any-of-string are accepted;
// non-string elements are dropped.
func (r RawProfile) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Maps returns the value at key as a slice of attribute bags, the shape of
// the provider's repeated structural fields (education, experience, ...).
func (r RawProfile) Maps(key string) []map[string]any {
	switch v := r[key].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, e := range v {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// Bool returns the boolean at key, or false when absent or not a bool.
func (r RawProfile) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}
