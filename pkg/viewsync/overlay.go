package viewsync

import (
	"context"
	"time"

	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/tags"
)

// OverlayReadings fetches the current tag readout for every always-on
// element. Overlays activate as soon as the session has any log entries,
// not when an element is running, and vanish again after a restart clears
// the log. Returns element id to formatted readout.
func (c *Coordinator) OverlayReadings(ctx context.Context, graph *bpmn.Graph, log []models.LogEntry) map[string]string {
	if len(log) == 0 {
		return nil
	}

	var readouts map[string]string

	for _, element := range graph.Elements() {
		if !element.Meta.AlwaysOn || element.Meta.Tag == "" {
			continue
		}

		readings := tags.FetchOrSentinel(ctx, c.oracle, element.Meta.Tag)

		units := make(map[string]string, len(readings))

		for i, reading := range readings {
			readings[i].Value = tags.FormatValue(reading.Value, element.Meta.Precision)
			units[reading.Tag] = element.Meta.Unit
		}

		if readouts == nil {
			readouts = make(map[string]string)
		}

		readouts[element.ID] = tags.FormatReadings(readings, units)
	}

	return readouts
}

// RunOverlays refreshes always-on readouts on a timer independent of the
// session poll, delivering each batch to onReadings. The session getter is
// consulted every tick so overlays follow restarts.
func (c *Coordinator) RunOverlays(ctx context.Context, graph *bpmn.Graph, currentLog func() []models.LogEntry, onReadings func(map[string]string)) {
	ticker := time.NewTicker(c.intervals.Overlay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			readouts := c.OverlayReadings(ctx, graph, currentLog())
			if len(readouts) > 0 {
				onReadings(readouts)
			}
		}
	}
}
