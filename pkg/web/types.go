// Package web provides the HTTP surface for process management, session
// execution and review.
package web

// SaveProcessRequest is the body for creating or updating a process.
type SaveProcessRequest struct {
	Name       string `json:"name"        validate:"required,min=1"`
	XMLContent string `json:"xml_content" validate:"required"`
}

// StartElementRequest names the element the operator is entering.
type StartElementRequest struct {
	ElementID string `json:"element_id" validate:"required"`
}

// CompleteElementRequest names the element being completed, with the
// operator's note for the completion entry.
type CompleteElementRequest struct {
	ElementID string `json:"element_id" validate:"required"`
	Note      string `json:"note"`
}

// AbortRequest carries the manual-abort reason.
type AbortRequest struct {
	Reason string `json:"reason"`
}

// EditNoteRequest amends the note of one log entry by position.
type EditNoteRequest struct {
	LogIndex int    `json:"log_index" validate:"min=0"`
	Note     string `json:"note"`
}

// HeartbeatRequest registers viewer liveness for a process.
type HeartbeatRequest struct {
	ProcessID int64  `json:"process_id" validate:"required"`
	ViewerID  string `json:"viewer_id"  validate:"required"`
}

// HeartbeatResponse reports how many viewers are currently online.
type HeartbeatResponse struct {
	OnlineCount int `json:"online_count"`
}

// ReviewRequest carries an uploaded review CSV as text.
type ReviewRequest struct {
	Content string `json:"content" validate:"required"`
}
