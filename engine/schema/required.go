package schema

import "sort"

// RequiredPaths returns the dot paths the schema declares required, at every
// nesting level. The completeness scanner uses this set to avoid re-reporting
// absences the structural validator owns.
func (s *Schema) RequiredPaths() map[string]struct{} {
	out := map[string]struct{}{}
	if s == nil {
		return out
	}
	collectRequired("", map[string]any(*s), out)
	return out
}

// RequiredPathList is RequiredPaths in sorted slice form, for logging.
func (s *Schema) RequiredPathList() []string {
	set := s.RequiredPaths()
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func collectRequired(prefix string, node map[string]any, out map[string]struct{}) {
	required, _ := node["required"].([]any)
	for _, entry := range required {
		name, ok := entry.(string)
		if !ok {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		out[path] = struct{}{}
	}
	properties, _ := node["properties"].(map[string]any)
	for name, child := range properties {
		childNode, ok := child.(map[string]any)
		if !ok {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		collectRequired(path, childNode, out)
	}
}
