package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// NetworkError means no response was received. It is never retried by the
// client; callers decide whether to try again.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// BackendError is a non-2xx response with its parsed error message.
type BackendError struct {
	Status  int
	Code    string // structured error code, when the backend sends one
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// errorBody covers both the legacy {"error": "..."} shape and the
// structured {"code": "...", "message": "..."} shape.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

// parseBackendError never fails: unreadable bodies fall back to the raw
// text and then to the status text.
func parseBackendError(status int, body []byte) *BackendError {
	e := &BackendError{Status: status}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.Code = parsed.Code
		var errString string
		switch {
		case parsed.Message != "" && parsed.Code != "":
			e.Message = parsed.Message
		case len(parsed.Error) > 0 && json.Unmarshal(parsed.Error, &errString) == nil && errString != "":
			e.Message = errString
		case len(parsed.Error) > 0 && string(parsed.Error) != "null":
			// {"error": {...}} from some middleware
			e.Message = string(parsed.Error)
		case parsed.Message != "":
			e.Message = parsed.Message
		}
	}

	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	if e.Message == "" {
		e.Message = "request failed"
	}
	return e
}
