package models

import "time"

// LogTimeFormat is the human-readable timestamp written into log entries.
// Entry order, not this string, defines chronology.
const LogTimeFormat = "2006/01/02 15:04:05"

// NoValue is the sentinel recorded when a log entry carries no tag readout.
const NoValue = "-"

// Log entry sources.
const (
	SourceUser   = "User"
	SourceSystem = "System"
)

// LogEntry is one timestamped record of an operator or system action.
// Entries are append-only; Note is the only field that may be edited
// after the fact.
type LogEntry struct {
	Time    string `json:"time"`
	Source  string `json:"source"`
	Message string `json:"message"`
	Value   string `json:"value"`
	Note    string `json:"note"`
	// TaskID carries the element id alongside the display-name-based
	// message so lookups stay unambiguous when names collide. Absent in
	// logs recorded by older builds; the message text remains the
	// persisted contract.
	TaskID string `json:"task_id,omitempty"`
}

// Session is the mutable run-state of one execution of a process. A process
// has at most one current session; restarting wipes it in place.
type Session struct {
	ProcessID     int64      `json:"process_id"`
	CurrentTaskID string     `json:"current_task_id,omitempty"`
	Log           []LogEntry `json:"logs"`
	IsFinished    bool       `json:"is_finished"`
	// Revision is the optimistic-concurrency token maintained by the
	// session store. It never appears in exported logs.
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns a clean session for the given process.
func NewSession(processID int64) *Session {
	return &Session{
		ProcessID: processID,
		Log:       []LogEntry{},
	}
}

// Append adds an entry to the log.
func (s *Session) Append(entry LogEntry) {
	s.Log = append(s.Log, entry)
}

// LogEqual reports whether two logs are structurally identical. The sync
// layer uses this to decide whether a fetched session replaces local state.
func LogEqual(a, b []LogEntry) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
