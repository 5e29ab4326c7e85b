package review

import (
	"fmt"

	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/execution"
	"github.com/sopflow/sopflow/pkg/models"
)

// Replay derives each element's visual status from an exported log. It is
// the same derivation the live view uses, so a reviewed run colors
// identically to how it looked while running.
func Replay(entries []models.LogEntry) map[string]execution.ElementState {
	return execution.DeriveStatus(entries)
}

// ReplayWithGraph replays against the loaded diagram, so one-shot start
// events color completed rather than running, exactly as the live view
// shows them.
func ReplayWithGraph(graph *bpmn.Graph, entries []models.LogEntry) map[string]execution.ElementState {
	return execution.DeriveStatusWithGraph(graph, entries)
}

// CheckIdentity compares a file's embedded identity line against the
// process being reviewed. Mismatches come back as human-readable warnings;
// reviewing a since-edited process is legitimate, so nothing here blocks
// the replay. A file without a metadata line yields no warnings.
func CheckIdentity(meta *FileMetadata, process *models.Process) []string {
	if meta == nil || process == nil {
		return nil
	}

	var warnings []string

	if meta.ProcessID != 0 && meta.ProcessID != process.ID {
		warnings = append(warnings,
			fmt.Sprintf("log was exported from process %d, but process %d is loaded", meta.ProcessID, process.ID))
	}

	if meta.Version != "" && meta.Version != process.Version() {
		warnings = append(warnings,
			fmt.Sprintf("log was exported from version %s, but the loaded process is version %s; the diagram may have changed", meta.Version, process.Version()))
	}

	return warnings
}
