// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"fmt"
	"strings"

	"github.com/sopflow/sopflow/pkg/models"
)

// DiagramBuilder assembles minimal but well-formed BPMN XML for tests,
// including the layout section parsers require.
type DiagramBuilder struct {
	elements []string
	flows    []string
	flowSeq  int
}

// NewDiagram creates an empty diagram builder.
func NewDiagram() *DiagramBuilder {
	return &DiagramBuilder{}
}

// Start adds a start event.
func (b *DiagramBuilder) Start(id, name string) *DiagramBuilder {
	return b.element("startEvent", id, name, "")
}

// Task adds a plain task.
func (b *DiagramBuilder) Task(id, name string) *DiagramBuilder {
	return b.element("task", id, name, "")
}

// TaskWithMeta adds a task carrying a documentation metadata blob.
func (b *DiagramBuilder) TaskWithMeta(id, name, meta string) *DiagramBuilder {
	return b.element("task", id, name, meta)
}

// Gateway adds an exclusive gateway.
func (b *DiagramBuilder) Gateway(id, name string) *DiagramBuilder {
	return b.element("exclusiveGateway", id, name, "")
}

// End adds a non-final end event.
func (b *DiagramBuilder) End(id, name string) *DiagramBuilder {
	return b.element("endEvent", id, name, "")
}

// FinalEnd adds the end event that finishes the run.
func (b *DiagramBuilder) FinalEnd(id, name string) *DiagramBuilder {
	return b.element("endEvent", id, name, `{"isFinalEnd": true}`)
}

// EndWithMeta adds an end event with an arbitrary metadata blob.
func (b *DiagramBuilder) EndWithMeta(id, name, meta string) *DiagramBuilder {
	return b.element("endEvent", id, name, meta)
}

// Flow connects two elements in declaration order.
func (b *DiagramBuilder) Flow(sourceID, targetID string) *DiagramBuilder {
	b.flowSeq++
	b.flows = append(b.flows, fmt.Sprintf(
		`    <sequenceFlow id="flow_%d" sourceRef="%s" targetRef="%s" />`,
		b.flowSeq, sourceID, targetID))

	return b
}

// Build renders the diagram XML.
func (b *DiagramBuilder) Build() []byte {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI">` + "\n")
	sb.WriteString(`  <process id="process_1" isExecutable="false">` + "\n")

	for _, el := range b.elements {
		sb.WriteString(el + "\n")
	}

	for _, f := range b.flows {
		sb.WriteString(f + "\n")
	}

	sb.WriteString("  </process>\n")
	sb.WriteString(`  <bpmndi:BPMNDiagram id="diagram_1">` + "\n")
	sb.WriteString(`    <bpmndi:BPMNPlane id="plane_1" bpmnElement="process_1" />` + "\n")
	sb.WriteString("  </bpmndi:BPMNDiagram>\n")
	sb.WriteString("</definitions>\n")

	return []byte(sb.String())
}

// BuildWithoutLayout renders the diagram XML with no layout section, which
// parsers must reject.
func (b *DiagramBuilder) BuildWithoutLayout() []byte {
	full := string(b.Build())
	start := strings.Index(full, "  <bpmndi:BPMNDiagram")
	end := strings.Index(full, "</bpmndi:BPMNDiagram>\n")

	return []byte(full[:start] + full[end+len("</bpmndi:BPMNDiagram>\n"):])
}

func (b *DiagramBuilder) element(tag, id, name, meta string) *DiagramBuilder {
	if meta == "" {
		b.elements = append(b.elements, fmt.Sprintf(
			`    <%s id="%s" name="%s" />`, tag, id, name))

		return b
	}

	b.elements = append(b.elements, fmt.Sprintf(
		"    <%s id=%q name=%q>\n      <documentation>%s</documentation>\n    </%s>",
		tag, id, name, meta, tag))

	return b
}

// LinearDiagram builds Start -> Task... -> FinalEnd with ids equal to
// names, the shape most engine tests need.
func LinearDiagram(taskNames ...string) []byte {
	b := NewDiagram().Start("start", "Start")

	prev := "start"
	for _, name := range taskNames {
		b.Task(name, name).Flow(prev, name)
		prev = name
	}

	b.FinalEnd("end", "End").Flow(prev, "end")

	return b.Build()
}

// StartEntry builds a task-start log entry with the given message text.
func StartEntry(message string) models.LogEntry {
	return models.LogEntry{
		Time:    "2024/01/02 03:04:05",
		Source:  models.SourceUser,
		Message: message,
		Value:   models.NoValue,
	}
}
