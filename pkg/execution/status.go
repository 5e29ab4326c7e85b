package execution

import (
	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/models"
)

// ElementState is the derived execution state of one element. It is never
// stored; it is always recomputed from the log.
type ElementState string

const (
	StateNotStarted ElementState = "not_started"
	StateRunning    ElementState = "running"
	StateCompleted  ElementState = "completed"
)

// DeriveStatus walks a log once and returns each named element's derived
// state. A start entry marks the element running; a matching complete
// entry overwrites it to completed. Elements without entries are absent
// from the map. The live view and the offline review replay both go
// through this exact function.
func DeriveStatus(log []models.LogEntry) map[string]ElementState {
	status := make(map[string]ElementState)

	for _, entry := range log {
		name, started, ok := ParseTaskName(entry.Message)
		if !ok || name == "" {
			continue
		}

		if started {
			status[name] = StateRunning
		} else {
			status[name] = StateCompleted
		}
	}

	return status
}

// DeriveStatusWithGraph is DeriveStatus adjusted for element kinds the log
// alone cannot distinguish. Start events are one-shot: their single start
// entry both enters and completes them, so a started start event reads as
// completed, never running. Views that hold the graph use this; a nil
// graph degrades to the plain derivation.
func DeriveStatusWithGraph(graph *bpmn.Graph, log []models.LogEntry) map[string]ElementState {
	status := DeriveStatus(log)

	if graph == nil {
		return status
	}

	for _, element := range graph.Elements() {
		if element.Kind != bpmn.KindStartEvent {
			continue
		}

		if status[element.Name] == StateRunning {
			status[element.Name] = StateCompleted
		}
	}

	return status
}

// DeriveStatusByID mirrors DeriveStatus keyed on element id, for entries
// recorded by builds that carry the id alongside the message. Entries
// without an id are skipped; name-based derivation remains authoritative.
func DeriveStatusByID(log []models.LogEntry) map[string]ElementState {
	status := make(map[string]ElementState)

	for _, entry := range log {
		if entry.TaskID == "" {
			continue
		}

		_, started, ok := ParseTaskName(entry.Message)
		if !ok {
			continue
		}

		if started {
			status[entry.TaskID] = StateRunning
		} else {
			status[entry.TaskID] = StateCompleted
		}
	}

	return status
}
