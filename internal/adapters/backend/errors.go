package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNotAuthenticated is returned when the request context carries no bearer token.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrResponseTooLarge is returned when a response body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response too large")

// Translation keys for user-facing error messages.
const (
	MsgNotAuthenticated = "errors.not_authenticated"
	MsgRequestFailed    = "errors.request_failed"
	MsgGeneric          = "errors.generic"
)

// RequestError is a non-2xx response from a backend service.
type RequestError struct {
	Service    string
	Method     string
	URL        string
	StatusCode int
	Message    string
}

// Error implements error.
func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s %s: status %d", e.Service, e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s %s: status %d: %s", e.Service, e.Method, e.URL, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from a backend service.
func IsNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == 404
}

// IsUnauthorized reports whether err means the caller must sign in again.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == 401
}

// MessageKey maps err onto the translation key shown to users.
func MessageKey(err error) string {
	if err == nil {
		return ""
	}
	if IsUnauthorized(err) {
		return MsgNotAuthenticated
	}
	var re *RequestError
	if errors.As(err, &re) {
		return MsgRequestFailed
	}
	return MsgGeneric
}

// Detail returns the server-provided message of a RequestError, if any.
func Detail(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Message
	}
	return ""
}

const maxMessageLen = 200

// extractMessage pulls a readable message out of an error response body.
func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		for _, s := range []string{payload.Message, payload.Error, payload.Detail} {
			if s != "" {
				return truncate(s)
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

// truncate cuts s to at most maxMessageLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
