package telemetry

import "math"

// Recognized top-level sections of a parsed flight log.
const (
	SectionAttitude    = "attitude"
	SectionTrajectory  = "trajectory"
	SectionFlightModes = "flightModes"
	SectionMessages    = "messages"
)

// Tree gives typed access to the per-message channels under "messages".
// Other top-level sections are preserved in Root and remain discoverable.
type Tree struct {
	root *Node
}

// NewTree wraps root. A nil root behaves like an empty log.
func NewTree(root *Node) *Tree {
	if root == nil {
		root = &Node{Kind: KindMapping, Map: map[string]*Node{}}
	}
	return &Tree{root: root}
}

// FromValue wraps a JSON-decoded value.
func FromValue(v any) *Tree {
	return NewTree(Parse(v))
}

// Root returns the underlying node.
func (t *Tree) Root() *Node {
	return t.root
}

// Empty reports whether the log has no top-level content.
func (t *Tree) Empty() bool {
	return t.root.Len() == 0
}

// Message returns the mapping for one message type, e.g. "ATTITUDE".
func (t *Tree) Message(name string) (*Node, bool) {
	msgs, ok := t.root.Child(SectionMessages)
	if !ok {
		return nil, false
	}
	msg, ok := msgs.Child(name)
	if !ok || msg.Kind != KindMapping {
		return nil, false
	}
	return msg, true
}

// Field returns a single channel of a message type.
func (t *Tree) Field(msg, field string) (*Node, bool) {
	m, ok := t.Message(msg)
	if !ok {
		return nil, false
	}
	return m.Child(field)
}

// HasField reports whether msg.field exists.
func (t *Tree) HasField(msg, field string) bool {
	_, ok := t.Field(msg, field)
	return ok
}

// Series returns msg.field as floats. Null or non-numeric samples become NaN.
// ok is false when the channel is missing or not a sequence.
func (t *Tree) Series(msg, field string) ([]float64, bool) {
	n, ok := t.Field(msg, field)
	if !ok || n.Kind != KindSequence {
		return nil, false
	}
	out := make([]float64, len(n.Seq))
	for i, sample := range n.Seq {
		out[i] = sample.FloatOrNaN()
	}
	return out, true
}

// Matrix returns msg.field as rows of floats, for channels such as
// BATTERY_STATUS.voltages that carry one array per sample. Scalar samples
// become one-element rows and null samples become nil rows.
func (t *Tree) Matrix(msg, field string) ([][]float64, bool) {
	n, ok := t.Field(msg, field)
	if !ok || n.Kind != KindSequence {
		return nil, false
	}
	rows := make([][]float64, len(n.Seq))
	for i, sample := range n.Seq {
		switch {
		case sample.IsNull():
			rows[i] = nil
		case sample.Kind == KindSequence:
			row := make([]float64, len(sample.Seq))
			for j, cell := range sample.Seq {
				row[j] = cell.FloatOrNaN()
			}
			rows[i] = row
		default:
			rows[i] = []float64{sample.FloatOrNaN()}
		}
	}
	return rows, true
}

// Flatten concatenates rows, dropping nil rows.
func Flatten(rows [][]float64) []float64 {
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
