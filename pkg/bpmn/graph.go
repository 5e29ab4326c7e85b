// Package bpmn parses BPMN 2.0 diagrams into the immutable process graph
// the execution engine runs against. Only the execution-relevant subset is
// modelled: element ids, kinds, display names, sequence flows, and the
// per-element metadata blob. Shape geometry stays opaque, but a diagram
// without a layout section is rejected outright since every graph is
// assumed renderable downstream.
package bpmn

// ElementKind classifies a node in the process graph.
type ElementKind string

const (
	KindStartEvent ElementKind = "start_event"
	KindEndEvent   ElementKind = "end_event"
	KindTask       ElementKind = "task"
	KindGateway    ElementKind = "gateway"
	KindDataRef    ElementKind = "data_ref"
	KindAnnotation ElementKind = "annotation"
)

// Executable reports whether elements of this kind participate in
// execution. Data references and annotations are display-only.
func (k ElementKind) Executable() bool {
	switch k {
	case KindStartEvent, KindEndEvent, KindTask, KindGateway:
		return true
	default:
		return false
	}
}

// Flow is a directed edge between two elements.
type Flow struct {
	ID       string
	SourceID string
	TargetID string
}

// Element is a node in the process graph. Incoming and Outgoing preserve
// document order; the engine's tie-break rules depend on it.
type Element struct {
	ID       string
	Kind     ElementKind
	Name     string
	Incoming []Flow
	Outgoing []Flow
	Meta     Metadata
}

// Graph is the parsed, read-only representation of one process diagram.
type Graph struct {
	elements map[string]*Element
	order    []string
	starts   []*Element
	finalEnd *Element
}

// ElementByID returns the element with the given id, or nil.
func (g *Graph) ElementByID(id string) *Element {
	return g.elements[id]
}

// Elements returns all elements in document order.
func (g *Graph) Elements() []*Element {
	out := make([]*Element, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.elements[id])
	}

	return out
}

// StartEvents returns the graph's start events in document order.
func (g *Graph) StartEvents() []*Element {
	return g.starts
}

// OutgoingOf returns the outgoing flows of an element, or nil if the
// element does not exist.
func (g *Graph) OutgoingOf(id string) []Flow {
	el := g.elements[id]
	if el == nil {
		return nil
	}

	return el.Outgoing
}

// MetadataOf returns the metadata of an element. Unknown ids yield the
// zero metadata, which behaves like an element with no configuration.
func (g *Graph) MetadataOf(id string) Metadata {
	el := g.elements[id]
	if el == nil {
		return Metadata{}
	}

	return el.Meta
}

// FinalEnd returns the end event flagged isFinalEnd, or nil when the graph
// declares none. At most one element may carry the flag; Parse enforces it.
func (g *Graph) FinalEnd() *Element {
	return g.finalEnd
}
