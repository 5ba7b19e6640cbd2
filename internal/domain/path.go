package domain

import (
	"strings"
)

// GetValueAtPath resolves a dot-separated path such as
// "teleop_performance.coral_scored_L1" against nested maps. It returns
// false when any segment is missing or an intermediate value is not a map.
func GetValueAtPath(doc map[string]any, path string) (any, bool) {
	if doc == nil || path == "" {
		return nil, false
	}

	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// JoinPath builds a dot-qualified field path.
func JoinPath(segments ...string) string { return strings.Join(segments, ".") }

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Payload:
		return m, true
	default:
		return nil, false
	}
}

// IsTruthy reports whether a breakdown or payload value reads as "yes".
// The official record encodes robot flags as "Yes"/"No" strings, while
// payloads use booleans or counts.
func IsTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "true", "y", "1":
			return true
		}
		return false
	}
	if f, ok := ToFloat(v); ok {
		return f != 0
	}
	return false
}
