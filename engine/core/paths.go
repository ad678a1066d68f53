package core

import (
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// Field paths
// -----------------------------------------------------------------------------

// GetPath resolves a dot path ("subject.address.street") against a canonical
// payload tree. A missing segment or a non-map intermediate yields (nil, false)
// rather than an error so rule predicates stay null-safe.
func GetPath(payload map[string]any, path string) (any, bool) {
	if payload == nil || path == "" {
		return nil, false
	}
	var current any = payload
	for part := range strings.SplitSeq(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// IsEmpty reports whether a leaf value counts as missing: nil, blank string,
// the "(none selected)" sentinel, or an empty collection. Containers are empty
// when every element is.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed == "" || strings.EqualFold(trimmed, NoneSelected)
	case []any:
		if len(v) == 0 {
			return true
		}
		for _, item := range v {
			if !IsEmpty(item) {
				return false
			}
		}
		return true
	case map[string]any:
		if len(v) == 0 {
			return true
		}
		for _, item := range v {
			if !IsEmpty(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Leaves walks the payload depth-first and returns every leaf path with its
// value. Paths come back sorted so output order never depends on map order.
func Leaves(payload map[string]any) []Leaf {
	var out []Leaf
	walkLeaves("", payload, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Leaf pairs a canonical field path with its value.
type Leaf struct {
	Path  string
	Value any
}

func walkLeaves(prefix string, value any, out *[]Leaf) {
	m, ok := value.(map[string]any)
	if !ok || len(m) == 0 {
		if prefix != "" {
			*out = append(*out, Leaf{Path: prefix, Value: value})
		}
		return
	}
	for key, child := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		walkLeaves(path, child, out)
	}
}
