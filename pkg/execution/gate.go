package execution

import (
	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/models"
)

// CanEnter is the predecessor-completion gate. An element may be started
// when every incoming flow's source is either a start event or already has
// a completion entry in the log. The check is an AND over incoming flows:
// joins wait for all predecessors. Elements with no incoming flows, and
// start events themselves, are never gated.
//
// Start-event predecessors satisfy the gate without a completion entry of
// their own; a start event counts as done once the session exists.
func CanEnter(graph *bpmn.Graph, element *bpmn.Element, log []models.LogEntry) bool {
	if element == nil {
		return false
	}

	if element.Kind == bpmn.KindStartEvent || len(element.Incoming) == 0 {
		return true
	}

	for _, flow := range element.Incoming {
		source := graph.ElementByID(flow.SourceID)
		if source == nil {
			return false
		}

		if source.Kind == bpmn.KindStartEvent {
			continue
		}

		if !hasCompletion(log, source.Name) {
			return false
		}
	}

	return true
}

func hasCompletion(log []models.LogEntry, name string) bool {
	for _, entry := range log {
		if IsCompletionOf(entry, name) {
			return true
		}
	}

	return false
}
