package bpmn

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Bounds for tag readouts: decimal places and how many tags one element
// may declare. The editor refuses a fifth tag at input time; the parser
// enforces the same cap on blobs edited by hand.
const (
	defaultPrecision = 2
	maxPrecision     = 5
	maxTags          = 4
)

// Metadata is the execution-relevant part of an element's documentation
// blob. Editors attach further styling keys (noteColor, htmlContent, ...)
// to the same blob; those are validated but ignored here.
type Metadata struct {
	// Tag is a semicolon-delimited list of up to 4 sensor tag names.
	Tag string
	// Unit is the display unit appended to formatted readouts.
	Unit string
	// Precision is the number of decimals for numeric readouts (0..5).
	Precision int
	// TargetURL is a hyperlink target, meaningful on data references only.
	TargetURL string
	// IsFinalEnd marks the one end event whose completion finishes the run.
	IsFinalEnd bool
	// AlwaysOn keeps the element's tag readout displayed continuously once
	// the session has any activity, independent of current position.
	AlwaysOn bool
}

// Tags splits the semicolon-delimited tag expression into trimmed names.
func (m Metadata) Tags() []string {
	if m.Tag == "" {
		return nil
	}

	parts := strings.Split(m.Tag, ";")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}

	return out
}

// metadataSchema accepts the documented keys with loose numeric typing
// (precision historically arrives as either a number or a string) and
// tolerates unknown styling keys.
const metadataSchema = `{
	"type": "object",
	"properties": {
		"piTag":       {"type": "string"},
		"piUnit":      {"type": "string"},
		"piPrecision": {"type": ["integer", "string", "number"]},
		"targetUrl":   {"type": "string"},
		"isFinalEnd":  {"type": "boolean"},
		"alwaysOn":    {"type": "boolean"}
	},
	"additionalProperties": true
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
)

func metadataValidator() *gojsonschema.Schema {
	schemaOnce.Do(func() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(metadataSchema))
		if err != nil {
			panic("bpmn: invalid embedded metadata schema: " + err.Error())
		}

		compiledSchema = schema
	})

	return compiledSchema
}

// parseMetadata decodes a documentation blob. Blobs that are not JSON, or
// that fail schema validation, degrade to empty metadata: the element then
// simply has no tags, no link, and default precision. Precision is clamped
// into the supported range.
func parseMetadata(doc string) Metadata {
	meta := Metadata{Precision: defaultPrecision}

	trimmed := strings.TrimSpace(doc)
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return meta
	}

	result, err := metadataValidator().Validate(gojsonschema.NewStringLoader(trimmed))
	if err != nil || !result.Valid() {
		return meta
	}

	var raw struct {
		Tag        string          `json:"piTag"`
		Unit       string          `json:"piUnit"`
		Precision  json.RawMessage `json:"piPrecision"`
		TargetURL  string          `json:"targetUrl"`
		IsFinalEnd bool            `json:"isFinalEnd"`
		AlwaysOn   bool            `json:"alwaysOn"`
	}

	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return meta
	}

	meta.Tag = clampTags(raw.Tag)
	meta.Unit = raw.Unit
	meta.TargetURL = raw.TargetURL
	meta.IsFinalEnd = raw.IsFinalEnd
	meta.AlwaysOn = raw.AlwaysOn
	meta.Precision = parsePrecision(raw.Precision)

	return meta
}

func clampTags(expr string) string {
	parts := strings.Split(expr, ";")
	if len(parts) <= maxTags {
		return expr
	}

	return strings.Join(parts[:maxTags], ";")
}

func parsePrecision(raw json.RawMessage) int {
	if len(raw) == 0 {
		return defaultPrecision
	}

	text := strings.Trim(string(raw), `"`)

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return defaultPrecision
	}

	precision := int(value)
	if precision < 0 {
		return 0
	}

	if precision > maxPrecision {
		return maxPrecision
	}

	return precision
}
