package models

import "encoding/json"

// ScreenCheckRequest is the body sent to the screen existence endpoint.
type ScreenCheckRequest struct {
	ScreenCode string `json:"screen_code"`
}

// RawResponse is the loosely-typed JSON object returned by the content source.
// A nil or empty map means the remote had nothing to report.
type RawResponse map[string]json.RawMessage

// Message returns the "message" field when it is a JSON string.
func (r RawResponse) Message() (string, bool) {
	raw, ok := r["message"]
	if !ok {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", false
	}
	return msg, true
}

// ErrorDetail is the optional error body of a non-2xx response.
type ErrorDetail struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}
