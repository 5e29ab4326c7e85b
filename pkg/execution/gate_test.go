package execution

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/testutil"
)

func mustParse(t *testing.T, raw []byte) *bpmn.Graph {
	t.Helper()

	graph, err := bpmn.Parse(raw)
	require.NoError(t, err)

	return graph
}

func TestCanEnter_StartEventAlwaysEnterable(t *testing.T) {
	graph := mustParse(t, testutil.LinearDiagram("Step-01"))

	assert.True(t, CanEnter(graph, graph.ElementByID("start"), nil))
}

func TestCanEnter_NoIncomingAlwaysEnterable(t *testing.T) {
	raw := testutil.NewDiagram().
		Task("orphan", "Isolated Step").
		Build()
	graph := mustParse(t, raw)

	assert.True(t, CanEnter(graph, graph.ElementByID("orphan"), nil))
}

func TestCanEnter_StartEventPredecessorSatisfiesGate(t *testing.T) {
	graph := mustParse(t, testutil.LinearDiagram("Step-01"))

	// No completion entry for the start event exists, yet the first task
	// is enterable: starts count as done once the session exists.
	assert.True(t, CanEnter(graph, graph.ElementByID("Step-01"), nil))
}

func TestCanEnter_BlockedJoin(t *testing.T) {
	raw := testutil.NewDiagram().
		Start("start", "Start").
		Task("task_a", "Step-A").
		Task("task_b", "Step-B").
		Gateway("join", "Join").
		Flow("start", "task_a").
		Flow("start", "task_b").
		Flow("task_a", "join").
		Flow("task_b", "join").
		Build()
	graph := mustParse(t, raw)

	log := []models.LogEntry{
		entry(StartMessage("Step-A")),
		entry(CompleteMessage("Step-A")),
	}

	join := graph.ElementByID("join")
	assert.False(t, CanEnter(graph, join, log), "join must wait for both predecessors")

	log = append(log, entry(CompleteMessage("Step-B")))
	assert.True(t, CanEnter(graph, join, log))
}

// TestCanEnter_RandomDAGs checks the gate definition on randomly generated
// DAGs with random completion subsets: an element is enterable iff every
// non-start predecessor has a completion entry.
func TestCanEnter_RandomDAGs(t *testing.T) {
	rng := rand.New(rand.NewSource(20240517))

	for trial := range 50 {
		const n = 12

		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("Step-%02d", i)
		}

		b := testutil.NewDiagram().Start("start", "Begin")

		// Element i draws edges only from earlier elements, keeping the
		// graph acyclic. Elements with no predecessor hang off the start.
		preds := make([][]int, n)

		for i := range n {
			b.Task(fmt.Sprintf("el_%02d", i), names[i])
		}

		for i := range n {
			for j := range i {
				if rng.Float64() < 0.25 {
					preds[i] = append(preds[i], j)
					b.Flow(fmt.Sprintf("el_%02d", j), fmt.Sprintf("el_%02d", i))
				}
			}

			if len(preds[i]) == 0 {
				b.Flow("start", fmt.Sprintf("el_%02d", i))
			}
		}

		graph := mustParse(t, b.Build())

		completed := make(map[int]bool)

		var log []models.LogEntry

		for i := range n {
			if rng.Float64() < 0.5 {
				completed[i] = true

				log = append(log, entry(StartMessage(names[i])), entry(CompleteMessage(names[i])))
			}
		}

		for i := range n {
			want := true

			for _, j := range preds[i] {
				if !completed[j] {
					want = false

					break
				}
			}

			got := CanEnter(graph, graph.ElementByID(fmt.Sprintf("el_%02d", i)), log)
			assert.Equal(t, want, got, "trial %d element %d preds %v", trial, i, preds[i])
		}
	}
}

func TestCanEnter_NilElement(t *testing.T) {
	graph := mustParse(t, testutil.LinearDiagram("Step-01"))
	assert.False(t, CanEnter(graph, nil, nil))
}
