package bpmn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linearDiagram = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI">
  <process id="process_1" isExecutable="false">
    <startEvent id="start" name="Start" />
    <task id="task_a" name="Heat Reactor">
      <documentation>{"piTag": "TI-101;PI-102", "piUnit": "degC", "piPrecision": 1, "alwaysOn": true}</documentation>
    </task>
    <endEvent id="end" name="End">
      <documentation>{"isFinalEnd": true}</documentation>
    </endEvent>
    <sequenceFlow id="flow_1" sourceRef="start" targetRef="task_a" />
    <sequenceFlow id="flow_2" sourceRef="task_a" targetRef="end" />
  </process>
  <bpmndi:BPMNDiagram id="diagram_1">
    <bpmndi:BPMNPlane id="plane_1" bpmnElement="process_1" />
  </bpmndi:BPMNDiagram>
</definitions>`

func TestParse_LinearDiagram(t *testing.T) {
	graph, err := Parse([]byte(linearDiagram))
	require.NoError(t, err)

	assert.Len(t, graph.Elements(), 3)

	start := graph.ElementByID("start")
	require.NotNil(t, start)
	assert.Equal(t, KindStartEvent, start.Kind)
	assert.Equal(t, "Start", start.Name)
	assert.Empty(t, start.Incoming)
	require.Len(t, start.Outgoing, 1)
	assert.Equal(t, "task_a", start.Outgoing[0].TargetID)

	task := graph.ElementByID("task_a")
	require.NotNil(t, task)
	assert.Equal(t, KindTask, task.Kind)
	assert.Equal(t, "TI-101;PI-102", task.Meta.Tag)
	assert.Equal(t, "degC", task.Meta.Unit)
	assert.Equal(t, 1, task.Meta.Precision)
	assert.True(t, task.Meta.AlwaysOn)
	assert.Equal(t, []string{"TI-101", "PI-102"}, task.Meta.Tags())

	end := graph.ElementByID("end")
	require.NotNil(t, end)
	assert.True(t, end.Meta.IsFinalEnd)
	assert.Equal(t, end, graph.FinalEnd())

	require.Len(t, graph.StartEvents(), 1)
	assert.Equal(t, "start", graph.StartEvents()[0].ID)
}

func TestParse_MissingLayoutRejected(t *testing.T) {
	raw := `<?xml version="1.0"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <process id="p">
    <startEvent id="start" name="Start" />
  </process>
</definitions>`

	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingLayout)
	assert.True(t, IsGraphError(err))
}

func TestParse_MissingProcessRejected(t *testing.T) {
	raw := `<?xml version="1.0"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI">
  <bpmndi:BPMNDiagram id="d"><bpmndi:BPMNPlane id="pl" /></bpmndi:BPMNDiagram>
</definitions>`

	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProcess)
}

func TestParse_MalformedXMLRejected(t *testing.T) {
	_, err := Parse([]byte(`<definitions><process><startEvent id="s"`))
	require.Error(t, err)
	assert.True(t, IsGraphError(err))
}

func TestParse_DuplicateFinalEndRejected(t *testing.T) {
	raw := `<?xml version="1.0"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI">
  <process id="p">
    <endEvent id="end_a" name="A"><documentation>{"isFinalEnd": true}</documentation></endEvent>
    <endEvent id="end_b" name="B"><documentation>{"isFinalEnd": true}</documentation></endEvent>
  </process>
  <bpmndi:BPMNDiagram id="d"><bpmndi:BPMNPlane id="pl" /></bpmndi:BPMNDiagram>
</definitions>`

	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateFinalEnd)
}

func TestParse_BadMetadataDegradesToEmpty(t *testing.T) {
	raw := `<?xml version="1.0"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI">
  <process id="p">
    <task id="task_a" name="A"><documentation>free text notes, not JSON</documentation></task>
    <task id="task_b" name="B"><documentation>{"piTag": 42}</documentation></task>
  </process>
  <bpmndi:BPMNDiagram id="d"><bpmndi:BPMNPlane id="pl" /></bpmndi:BPMNDiagram>
</definitions>`

	graph, err := Parse([]byte(raw))
	require.NoError(t, err)

	for _, id := range []string{"task_a", "task_b"} {
		meta := graph.MetadataOf(id)
		assert.Empty(t, meta.Tag)
		assert.Equal(t, 2, meta.Precision, "default precision survives bad blobs")
	}
}

func TestParse_FlowOrderPreserved(t *testing.T) {
	raw := `<?xml version="1.0"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI">
  <process id="p">
    <exclusiveGateway id="gw" name="Branch" />
    <task id="task_a" name="A" />
    <task id="task_b" name="B" />
    <sequenceFlow id="f1" sourceRef="gw" targetRef="task_b" />
    <sequenceFlow id="f2" sourceRef="gw" targetRef="task_a" />
  </process>
  <bpmndi:BPMNDiagram id="d"><bpmndi:BPMNPlane id="pl" /></bpmndi:BPMNDiagram>
</definitions>`

	graph, err := Parse([]byte(raw))
	require.NoError(t, err)

	outgoing := graph.OutgoingOf("gw")
	require.Len(t, outgoing, 2)
	assert.Equal(t, "task_b", outgoing[0].TargetID, "declaration order drives the first-flow tie break")
}

func TestParse_AnnotationsNotExecutable(t *testing.T) {
	raw := `<?xml version="1.0"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI">
  <process id="p">
    <textAnnotation id="note_1" />
    <dataObjectReference id="doc_1" name="Manual"><documentation>{"targetUrl": "https://example.com/manual"}</documentation></dataObjectReference>
  </process>
  <bpmndi:BPMNDiagram id="d"><bpmndi:BPMNPlane id="pl" /></bpmndi:BPMNDiagram>
</definitions>`

	graph, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.False(t, graph.ElementByID("note_1").Kind.Executable())
	assert.False(t, graph.ElementByID("doc_1").Kind.Executable())
	assert.Equal(t, "https://example.com/manual", graph.MetadataOf("doc_1").TargetURL)
}

func TestParseMetadata_ClampsTagList(t *testing.T) {
	meta := parseMetadata(`{"piTag": "T1;T2;T3;T4;T5;T6"}`)

	assert.Equal(t, "T1;T2;T3;T4", meta.Tag)
	assert.Equal(t, []string{"T1", "T2", "T3", "T4"}, meta.Tags())

	meta = parseMetadata(`{"piTag": "T1;T2"}`)
	assert.Equal(t, "T1;T2", meta.Tag)
}

func TestParsePrecision_Clamping(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want int
	}{
		{"string precision", `{"piPrecision": "3"}`, 3},
		{"float precision", `{"piPrecision": 1.7}`, 1},
		{"negative clamps to zero", `{"piPrecision": -2}`, 0},
		{"above max clamps", `{"piPrecision": 9}`, 5},
		{"absent defaults", `{}`, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := parseMetadata(tc.doc)
			assert.Equal(t, tc.want, meta.Precision)
		})
	}
}
