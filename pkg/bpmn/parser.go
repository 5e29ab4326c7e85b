package bpmn

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Parse errors. A malformed diagram is rejected as a whole; no partial
// graph is ever returned.
var (
	// ErrMissingLayout indicates the diagram has no BPMNDiagram/BPMNPlane
	// section, so it cannot be rendered by any viewer.
	ErrMissingLayout = errors.New("diagram has no layout information")

	// ErrNoProcess indicates the definitions contain no process element.
	ErrNoProcess = errors.New("diagram has no process definition")

	// ErrDuplicateFinalEnd indicates more than one end event is flagged
	// as the final end of the run.
	ErrDuplicateFinalEnd = errors.New("more than one end event is flagged isFinalEnd")
)

// GraphError wraps a diagram parse failure with positional context.
type GraphError struct {
	ElementID string
	Err       error
}

func (e *GraphError) Error() string {
	if e.ElementID != "" {
		return fmt.Sprintf("invalid diagram at element %s: %v", e.ElementID, e.Err)
	}

	return fmt.Sprintf("invalid diagram: %v", e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// IsGraphError reports whether err originates from diagram parsing.
func IsGraphError(err error) bool {
	var graphErr *GraphError

	return errors.As(err, &graphErr) ||
		errors.Is(err, ErrMissingLayout) ||
		errors.Is(err, ErrNoProcess) ||
		errors.Is(err, ErrDuplicateFinalEnd)
}

// kindByLocalName maps BPMN element tags to graph kinds. Tags not listed
// here (lanes, data associations, di geometry) are skipped.
var kindByLocalName = map[string]ElementKind{
	"startEvent":          KindStartEvent,
	"endEvent":            KindEndEvent,
	"task":                KindTask,
	"userTask":            KindTask,
	"serviceTask":         KindTask,
	"sendTask":            KindTask,
	"receiveTask":         KindTask,
	"manualTask":          KindTask,
	"businessRuleTask":    KindTask,
	"scriptTask":          KindTask,
	"callActivity":        KindTask,
	"exclusiveGateway":    KindGateway,
	"parallelGateway":     KindGateway,
	"inclusiveGateway":    KindGateway,
	"eventBasedGateway":   KindGateway,
	"complexGateway":      KindGateway,
	"dataObjectReference": KindDataRef,
	"dataStoreReference":  KindDataRef,
	"textAnnotation":      KindAnnotation,
	"group":               KindAnnotation,
}

// Parse reads BPMN 2.0 XML and builds the process graph. It fails on
// malformed XML, a missing process, a missing layout section, or more than
// one final end event. Metadata blobs that are not valid JSON degrade to
// empty metadata rather than failing the whole diagram.
func Parse(raw []byte) (*Graph, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(raw)))

	g := &Graph{elements: make(map[string]*Element)}

	var (
		flows      []Flow
		sawProcess bool
		sawLayout  bool
		current    *Element
		currentDoc *string
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, &GraphError{Err: fmt.Errorf("malformed XML: %w", err)}
		}

		switch t := token.(type) {
		case xml.StartElement:
			local := t.Name.Local

			switch {
			case local == "process":
				sawProcess = true
			case local == "BPMNDiagram" || local == "BPMNPlane":
				sawLayout = true
			case local == "sequenceFlow":
				flows = append(flows, Flow{
					ID:       attr(t, "id"),
					SourceID: attr(t, "sourceRef"),
					TargetID: attr(t, "targetRef"),
				})
			case local == "documentation" && current != nil && currentDoc == nil:
				var text string
				if err := decoder.DecodeElement(&text, &t); err == nil {
					currentDoc = &text
				}
			default:
				kind, ok := kindByLocalName[local]
				if !ok || current != nil {
					continue
				}

				id := attr(t, "id")
				if id == "" {
					continue
				}

				current = &Element{
					ID:   id,
					Kind: kind,
					Name: attr(t, "name"),
				}
			}

		case xml.EndElement:
			if current != nil && kindByLocalName[t.Name.Local] == current.Kind && isElementTag(t.Name.Local) {
				if currentDoc != nil {
					current.Meta = parseMetadata(*currentDoc)
				}

				if _, dup := g.elements[current.ID]; !dup {
					g.elements[current.ID] = current
					g.order = append(g.order, current.ID)
				}

				current = nil
				currentDoc = nil
			}
		}
	}

	if !sawProcess {
		return nil, &GraphError{Err: ErrNoProcess}
	}

	if !sawLayout {
		return nil, &GraphError{Err: ErrMissingLayout}
	}

	// Wire flows in document order; dangling refs are dropped the way a
	// viewer would silently not draw them.
	for _, f := range flows {
		source := g.elements[f.SourceID]
		target := g.elements[f.TargetID]

		if source == nil || target == nil {
			continue
		}

		source.Outgoing = append(source.Outgoing, f)
		target.Incoming = append(target.Incoming, f)
	}

	for _, id := range g.order {
		el := g.elements[id]

		if el.Kind == KindStartEvent {
			g.starts = append(g.starts, el)
		}

		if el.Kind == KindEndEvent && el.Meta.IsFinalEnd {
			if g.finalEnd != nil {
				return nil, &GraphError{ElementID: el.ID, Err: ErrDuplicateFinalEnd}
			}

			g.finalEnd = el
		}
	}

	return g, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}

	return ""
}

func isElementTag(local string) bool {
	_, ok := kindByLocalName[local]

	return ok
}
