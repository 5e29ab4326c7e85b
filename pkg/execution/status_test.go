package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/testutil"
)

func entry(message string) models.LogEntry {
	return models.LogEntry{
		Time:    "2024/05/06 07:08:09",
		Source:  models.SourceUser,
		Message: message,
		Value:   models.NoValue,
	}
}

func TestDeriveStatus_StartThenComplete(t *testing.T) {
	log := []models.LogEntry{
		entry(StartMessage("Heat Reactor")),
		entry(CompleteMessage("Heat Reactor")),
		entry(StartMessage("Open Valve")),
	}

	status := DeriveStatus(log)

	assert.Equal(t, StateCompleted, status["Heat Reactor"])
	assert.Equal(t, StateRunning, status["Open Valve"])
	assert.NotContains(t, status, "Close Valve")
}

func TestDeriveStatus_CompletionOverwritesRunning(t *testing.T) {
	log := []models.LogEntry{
		entry(StartMessage("Step")),
		entry(CompleteMessage("Step")),
		entry(StartMessage("Step")),
	}

	// A restartable step that was started again reads as running.
	status := DeriveStatus(log)
	assert.Equal(t, StateRunning, status["Step"])
}

func TestDeriveStatus_IgnoresSystemMessages(t *testing.T) {
	log := []models.LogEntry{
		entry(StartMessage("Step")),
		{Time: "2024/05/06 07:08:09", Source: models.SourceSystem, Message: ProcessFinishedMessage, Value: models.NoValue},
	}

	status := DeriveStatus(log)
	assert.Len(t, status, 1)
}

func TestDeriveStatus_EmptyLog(t *testing.T) {
	assert.Empty(t, DeriveStatus(nil))
	assert.Empty(t, DeriveStatus([]models.LogEntry{}))
}

func TestDeriveStatusWithGraph_StartEventIsNeverRunning(t *testing.T) {
	graph := mustParse(t, testutil.LinearDiagram("Step-A"))

	// A start event is one-shot: its lone start entry completes it.
	log := []models.LogEntry{entry(StartMessage("Start"))}

	status := DeriveStatusWithGraph(graph, log)
	assert.Equal(t, StateCompleted, status["Start"])

	// Tasks keep the plain derivation.
	log = append(log, entry(StartMessage("Step-A")))

	status = DeriveStatusWithGraph(graph, log)
	assert.Equal(t, StateCompleted, status["Start"])
	assert.Equal(t, StateRunning, status["Step-A"])
}

func TestDeriveStatusWithGraph_NilGraph(t *testing.T) {
	log := []models.LogEntry{entry(StartMessage("Start"))}

	status := DeriveStatusWithGraph(nil, log)
	assert.Equal(t, StateRunning, status["Start"], "without a graph no kind promotion happens")
}

func TestDeriveStatusWithGraph_UntouchedStartStaysAbsent(t *testing.T) {
	graph := mustParse(t, testutil.LinearDiagram("Step-A"))

	status := DeriveStatusWithGraph(graph, nil)
	assert.NotContains(t, status, "Start")
}

func TestDeriveStatusByID(t *testing.T) {
	log := []models.LogEntry{
		{Message: StartMessage("A"), TaskID: "task_a"},
		{Message: CompleteMessage("A"), TaskID: "task_a"},
		{Message: StartMessage("B")},
	}

	status := DeriveStatusByID(log)

	assert.Equal(t, StateCompleted, status["task_a"])
	assert.Len(t, status, 1, "entries without an id are skipped")
}

func TestParseTaskName(t *testing.T) {
	name, started, ok := ParseTaskName(StartMessage("蒸氣閥開啟"))
	assert.True(t, ok)
	assert.True(t, started)
	assert.Equal(t, "蒸氣閥開啟", name)

	name, started, ok = ParseTaskName(CompleteMessage("Cool Down"))
	assert.True(t, ok)
	assert.False(t, started)
	assert.Equal(t, "Cool Down", name)

	_, _, ok = ParseTaskName(ProcessFinishedMessage)
	assert.False(t, ok)
}

func TestAbortMessage(t *testing.T) {
	assert.Equal(t, "流程中止", AbortMessage(""))
	assert.Equal(t, "流程中止: operator called it off", AbortMessage("operator called it off"))
}
