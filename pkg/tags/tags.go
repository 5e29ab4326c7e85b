// Package tags reads live instrument values from an external tag oracle
// and formats them for the execution log.
package tags

import (
	"context"
	"strconv"
	"strings"

	"github.com/sopflow/sopflow/pkg/models"
)

// Connection states reported by Status.
const (
	StatusConnected     = "Connected"
	StatusNotConfigured = "Not Configured"
	StatusOffline       = "Offline"
)

// Oracle answers point-in-time value queries for named tags.
type Oracle interface {
	// FetchValues resolves every tag in the semicolon-separated
	// expression. One reading per tag, in expression order. Unresolvable
	// tags come back with a sentinel value rather than an error; an error
	// means the oracle itself was unreachable.
	FetchValues(ctx context.Context, tagExpr string) ([]models.TagReading, error)
	// Status reports the oracle connection state.
	Status(ctx context.Context) string
}

// FormatReadings renders readings as "TAG=value unit" fragments joined
// with ", ". The unit follows a single space even when it is empty, and
// sentinel values carry it too; stored logs and exports were written that
// way, so the rendering must stay byte-identical. An empty reading list
// renders as the no-value marker.
func FormatReadings(readings []models.TagReading, units map[string]string) string {
	if len(readings) == 0 {
		return models.NoValue
	}

	parts := make([]string, 0, len(readings))

	for _, reading := range readings {
		parts = append(parts, reading.Tag+"="+reading.Value+" "+units[reading.Tag])
	}

	return strings.Join(parts, ", ")
}

// FormatValue rounds a numeric reading to the given number of decimal
// places. Sentinel and otherwise non-numeric values pass through verbatim.
func FormatValue(value string, precision int) string {
	if models.IsSentinelValue(value) {
		return value
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}

	return strconv.FormatFloat(parsed, 'f', precision, 64)
}

// FetchOrSentinel queries the oracle and degrades to sentinel readings
// instead of failing: a nil oracle yields "Not Found" per tag, an
// unreachable one "Connection Error". Task execution never blocks on
// instrumentation.
func FetchOrSentinel(ctx context.Context, oracle Oracle, tagExpr string) []models.TagReading {
	tagNames := SplitTags(tagExpr)
	if len(tagNames) == 0 {
		return nil
	}

	if oracle == nil {
		return sentinelReadings(tagNames, models.TagValueNotFound)
	}

	readings, err := oracle.FetchValues(ctx, tagExpr)
	if err != nil {
		return sentinelReadings(tagNames, models.TagValueConnectionError)
	}

	return readings
}

// SplitTags splits a semicolon-separated tag expression into trimmed,
// non-empty tag names.
func SplitTags(tagExpr string) []string {
	var names []string

	for _, part := range strings.Split(tagExpr, ";") {
		name := strings.TrimSpace(part)
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}

func sentinelReadings(tagNames []string, value string) []models.TagReading {
	readings := make([]models.TagReading, 0, len(tagNames))

	for _, name := range tagNames {
		readings = append(readings, models.TagReading{Tag: name, Value: value})
	}

	return readings
}
