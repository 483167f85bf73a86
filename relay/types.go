package relay

import (
	"encoding/json"
	"fmt"
)

// chatRequest is the inbound POST /api/chat body.
type chatRequest struct {
	Text    string          `json:"text"`
	History json.RawMessage `json:"history"`
}

// errorResponse is returned for requests rejected before streaming starts.
type errorResponse struct {
	Error string `json:"error"`
}

// errorFrame is the in-band error event written once streaming has started.
type errorFrame struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Status  int    `json:"status,omitempty"`
	Body    string `json:"body,omitempty"`
	Message string `json:"message,omitempty"`
}

// UpstreamError is returned by Stream when the upstream provider answers
// with a non-2xx status.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}
