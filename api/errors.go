package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/pcexpress-session/internal/errors"
)

// StatusError is a non-2xx response with its original metadata.
type StatusError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	if msg := messageFromBody(e.Body); msg != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// Is lets callers match on the error taxonomy rather than raw codes.
func (e *StatusError) Is(target error) bool {
	switch target {
	case apperrors.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case apperrors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case apperrors.ErrRequestFailed:
		return true
	}
	return false
}

// Message extracts a server supplied message from err, falling back to
// fallback when there is none.
func Message(err error, fallback string) string {
	var se *StatusError
	if apperrors.As(err, &se) {
		if msg := messageFromBody(se.Body); msg != "" {
			return msg
		}
	}
	return fallback
}

// MessageFromBody pulls a human readable message out of an error payload.
// Understands {"detail": "..."}, {"detail": [{"msg": "..."}]},
// {"message": "..."}, {"error_description": "..."} and {"error": "..."}.
func MessageFromBody(body []byte) string {
	return messageFromBody(body)
}

func messageFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "message", "error_description", "error"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}
