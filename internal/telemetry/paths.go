package telemetry

import (
	"sort"
	"strings"
)

// DiscoverFields returns every dot-joined path reachable through mappings,
// intermediate paths included. A sequence whose first element is a mapping or
// sequence is assumed homogeneous: only that element is inspected, under the
// sequence's own prefix. The result is sorted.
func DiscoverFields(root *Node) []string {
	seen := make(map[string]struct{})
	discover(root, "", seen)

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func discover(n *Node, prefix string, seen map[string]struct{}) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindMapping:
		for key, child := range n.Map {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			seen[path] = struct{}{}
			discover(child, path, seen)
		}
	case KindSequence:
		if len(n.Seq) == 0 {
			return
		}
		if first := n.Seq[0]; first != nil && (first.Kind == KindMapping || first.Kind == KindSequence) {
			discover(first, prefix, seen)
		}
	}
}

// Lookup resolves path by descending mappings only. Paths that cross a
// sequence or scalar, name a missing key, or end on null resolve to nothing.
func Lookup(root *Node, path string) (*Node, bool) {
	if path == "" {
		return nil, false
	}
	current := root
	for _, key := range strings.Split(path, ".") {
		child, ok := current.Child(key)
		if !ok {
			return nil, false
		}
		current = child
	}
	if current.IsNull() {
		return nil, false
	}
	return current, true
}

// Reconstruct builds a nested mapping holding only the given paths and their
// values, creating intermediate mappings as needed. Unresolvable paths are
// skipped, as are paths whose prefix was already filled by a non-mapping value.
// Values are copies, so callers may mutate the result freely.
func Reconstruct(root *Node, paths []string) map[string]any {
	selected := make(map[string]any)
	for _, path := range paths {
		node, ok := Lookup(root, path)
		if !ok {
			continue
		}
		setNested(selected, strings.Split(path, "."), node.Raw())
	}
	return selected
}

func setNested(dst map[string]any, parts []string, value any) {
	current := dst
	for _, part := range parts[:len(parts)-1] {
		next, exists := current[part]
		if !exists {
			m := make(map[string]any)
			current[part] = m
			current = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return
		}
		current = m
	}
	current[parts[len(parts)-1]] = value
}
