package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// GenericMessage is shown when the server gave no usable message.
const GenericMessage = "Something went wrong. Please try again."

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// UserMessage returns the server-provided message for err, or the generic
// fallback when there is none.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericMessage
}

// errorFromBody builds an Error from a response body. The backend reports
// errors as {"error": ...}, {"detail": ...}, {"message": ...} or as a map of
// field errors.
func errorFromBody(status int, body []byte) *Error {
	e := &Error{StatusCode: status}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return e
	}
	for _, key := range []string{"error", "detail", "message"} {
		if msg := messageFrom(raw[key]); msg != "" {
			e.Message = msg
			return e
		}
	}

	fields := make([]string, 0, len(raw))
	for k := range raw {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if msg := messageFrom(raw[f]); msg != "" {
			e.Message = f + ": " + msg
			return e
		}
	}
	return e
}

func messageFrom(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(v, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	return ""
}
