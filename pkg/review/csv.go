// Package review reconstructs execution state from exported logs. The CSV
// file is the sole interchange format between a live run and offline
// review, so export and parse must round-trip exactly.
package review

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sopflow/sopflow/pkg/models"
)

// csvHeader is the fixed column row. Time, source and message are written
// bare; value and note are always double-quoted so embedded commas and
// quotes survive.
const csvHeader = "Time,Source,Message,Value,Note"

// utf8BOM keeps spreadsheet tools from misreading the CJK message text.
const utf8BOM = "\xEF\xBB\xBF"

const metadataLinePrefix = "# Metadata: "

var (
	// ErrBadHeader indicates the file does not carry the expected columns.
	ErrBadHeader = errors.New("unrecognized CSV header")
	// ErrMalformedRow indicates a data row that cannot be parsed back.
	ErrMalformedRow = errors.New("malformed CSV row")
)

// FileMetadata is the optional identity line embedded in an export, used
// for the soft version check before replay.
type FileMetadata struct {
	ProcessID int64
	Version   string
}

// ExportedLog is a parsed review file.
type ExportedLog struct {
	Metadata *FileMetadata
	Entries  []models.LogEntry
}

// Export renders a session log as a review CSV, prefixed with the UTF-8
// BOM and the process identity line.
func Export(process *models.Process, log []models.LogEntry) []byte {
	var b strings.Builder

	b.WriteString(utf8BOM)
	fmt.Fprintf(&b, "%sid=%d, version=%s\n", metadataLinePrefix, process.ID, process.Version())
	b.WriteString(csvHeader)
	b.WriteString("\n")

	for _, entry := range log {
		b.WriteString(entry.Time)
		b.WriteString(",")
		b.WriteString(entry.Source)
		b.WriteString(",")
		b.WriteString(entry.Message)
		b.WriteString(",")
		b.WriteString(quote(entry.Value))
		b.WriteString(",")
		b.WriteString(quote(entry.Note))
		b.WriteString("\n")
	}

	return []byte(b.String())
}

// Filename is the export naming convention: process name plus a
// minute-resolution timestamp.
func Filename(processName string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", processName, now.Format("200601021504"))
}

// Parse reads a review CSV back into log entries. The metadata line and
// BOM are optional; files written by Export always carry both.
func Parse(data []byte) (*ExportedLog, error) {
	text := strings.TrimPrefix(string(data), utf8BOM)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	out := &ExportedLog{Entries: []models.LogEntry{}}

	i := 0
	if i < len(lines) && strings.HasPrefix(lines[i], metadataLinePrefix) {
		out.Metadata = parseMetadataLine(lines[i])
		i++
	}

	if i >= len(lines) || strings.TrimRight(lines[i], "\r") != csvHeader {
		return nil, ErrBadHeader
	}

	i++

	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if line == "" {
			continue
		}

		entry, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		out.Entries = append(out.Entries, entry)
	}

	return out, nil
}

func parseMetadataLine(line string) *FileMetadata {
	meta := &FileMetadata{}
	rest := strings.TrimPrefix(line, metadataLinePrefix)

	for _, field := range strings.Split(rest, ", ") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "id":
			fmt.Sscanf(value, "%d", &meta.ProcessID)
		case "version":
			meta.Version = value
		}
	}

	return meta
}

// parseRow splits "Time,Source,Message,"Value","Note"". The first two
// fields cannot contain commas; the message runs up to the quoted value.
func parseRow(line string) (models.LogEntry, error) {
	var entry models.LogEntry

	var ok bool

	entry.Time, line, ok = strings.Cut(line, ",")
	if !ok {
		return entry, ErrMalformedRow
	}

	entry.Source, line, ok = strings.Cut(line, ",")
	if !ok {
		return entry, ErrMalformedRow
	}

	quoteStart := strings.Index(line, `,"`)
	if quoteStart < 0 {
		return entry, ErrMalformedRow
	}

	entry.Message = line[:quoteStart]
	line = line[quoteStart+1:]

	var err error

	entry.Value, line, err = parseQuoted(line)
	if err != nil {
		return entry, err
	}

	if !strings.HasPrefix(line, ",") {
		return entry, ErrMalformedRow
	}

	entry.Note, line, err = parseQuoted(line[1:])
	if err != nil {
		return entry, err
	}

	if line != "" {
		return entry, ErrMalformedRow
	}

	return entry, nil
}

// quote always double-quotes, doubling embedded quotes.
func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// parseQuoted consumes one quoted field from the front of s, undoing the
// doubled-quote escaping, and returns the remainder.
func parseQuoted(s string) (string, string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", "", ErrMalformedRow
	}

	var b strings.Builder

	i := 1
	for i < len(s) {
		if s[i] != '"' {
			b.WriteByte(s[i])
			i++

			continue
		}

		if i+1 < len(s) && s[i+1] == '"' {
			b.WriteByte('"')
			i += 2

			continue
		}

		return b.String(), s[i+1:], nil
	}

	return "", "", ErrMalformedRow
}
