package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vaultrest/core"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(core.DefaultServiceTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(core.DefaultServiceTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// statusError maps a non-2xx vault response onto an error envelope whose
// Code is the upstream status.
func statusError(method string, path string, status int, body []byte) error {
	category := statusCategory(status)
	message := fmt.Sprintf("vault returned %d %s", status, http.StatusText(status))
	if detail := responseDetail(body); detail != "" {
		message += ": " + detail
	}
	return transportError(message, category, status, map[string]any{
		"adapter":     KindREST,
		"method":      method,
		"path":        path,
		"status_code": status,
	})
}

func statusCategory(status int) goerrors.Category {
	switch status {
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		return goerrors.CategoryBadInput
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	default:
		return goerrors.CategoryExternal
	}
}

// responseDetail prefers the plugin's {"message": ...} error body and falls
// back to a trimmed excerpt of the raw text.
func responseDetail(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	var payload struct {
		Message   string `json:"message"`
		ErrorCode int    `json:"errorCode"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		return strings.TrimSpace(payload.Message)
	}
	if len(text) <= errorBodyExcerptLimit {
		return text
	}
	cut := errorBodyExcerptLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
