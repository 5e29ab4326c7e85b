package models

import "time"

// Sentinel readings a tag oracle may return in place of a numeric value.
// These are rendered verbatim, never coerced.
const (
	TagValueError           = "Error"
	TagValueOffline         = "Offline"
	TagValueNotFound        = "Not Found"
	TagValueConnectionError = "Connection Error"
)

// IsSentinelValue reports whether value is one of the sentinel readings.
func IsSentinelValue(value string) bool {
	switch value {
	case TagValueError, TagValueOffline, TagValueNotFound, TagValueConnectionError:
		return true
	}

	return false
}

// TagReading is one sensor-tag sample. Value is kept as a string so the
// sentinel readings survive untouched; numeric values are formatted at
// display time with the element's configured precision.
type TagReading struct {
	Tag       string    `json:"tag"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}
