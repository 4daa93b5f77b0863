// Package telemetry models a parsed flight log as a tree of mappings, sequences
// and scalar leaves, and provides path discovery and lookup over it.
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind distinguishes the three shapes a telemetry node can take.
type Kind int

const (
	// KindUnknown covers scalars: numbers, strings, booleans and null.
	KindUnknown Kind = iota
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Node is a single element of the telemetry tree.
type Node struct {
	Kind  Kind
	Map   map[string]*Node
	Seq   []*Node
	Value any
}

// Parse converts a value produced by encoding/json (or an equivalent decoder)
// into a Node tree.
func Parse(v any) *Node {
	switch typed := v.(type) {
	case map[string]any:
		n := &Node{Kind: KindMapping, Map: make(map[string]*Node, len(typed))}
		for k, child := range typed {
			n.Map[k] = Parse(child)
		}
		return n
	case []any:
		n := &Node{Kind: KindSequence, Seq: make([]*Node, len(typed))}
		for i, child := range typed {
			n.Seq[i] = Parse(child)
		}
		return n
	case []float64:
		n := &Node{Kind: KindSequence, Seq: make([]*Node, len(typed))}
		for i, child := range typed {
			n.Seq[i] = &Node{Value: child}
		}
		return n
	default:
		return &Node{Value: v}
	}
}

// Decode parses a JSON document into a Node tree.
func Decode(data []byte) (*Node, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode telemetry: %w", err)
	}
	return Parse(raw), nil
}

// IsNull reports whether n is absent or a null leaf.
func (n *Node) IsNull() bool {
	return n == nil || (n.Kind == KindUnknown && n.Value == nil)
}

// Len returns the number of children of a mapping or sequence.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case KindMapping:
		return len(n.Map)
	case KindSequence:
		return len(n.Seq)
	default:
		return 0
	}
}

// Child returns the named member of a mapping node.
func (n *Node) Child(key string) (*Node, bool) {
	if n == nil || n.Kind != KindMapping {
		return nil, false
	}
	child, ok := n.Map[key]
	return child, ok
}

// Keys returns the sorted member names of a mapping node.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(n.Map))
	for k := range n.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns the numeric value of a scalar leaf. Null, strings, booleans and
// containers are not numbers.
func (n *Node) Float() (float64, bool) {
	if n == nil || n.Kind != KindUnknown {
		return 0, false
	}
	switch v := n.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// FloatOrNaN is Float with NaN standing in for non-numeric leaves.
func (n *Node) FloatOrNaN() float64 {
	if f, ok := n.Float(); ok {
		return f
	}
	return math.NaN()
}

// Raw rebuilds a fresh JSON-compatible value from n. Mutating the result never
// affects the tree.
func (n *Node) Raw() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindMapping:
		out := make(map[string]any, len(n.Map))
		for k, child := range n.Map {
			out[k] = child.Raw()
		}
		return out
	case KindSequence:
		out := make([]any, len(n.Seq))
		for i, child := range n.Seq {
			out[i] = child.Raw()
		}
		return out
	default:
		return n.Value
	}
}
