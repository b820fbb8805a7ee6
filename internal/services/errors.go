package services

import (
	"errors"
	"strings"
)

// Marker is a sentinel error that carries a stable machine-readable kind.
type Marker struct {
	kind string
	text string
}

func newMarker(kind, text string) *Marker {
	return &Marker{kind: kind, text: text}
}

func (m *Marker) Error() string { return m.text }

// Kind returns the stable identifier reported to API clients.
func (m *Marker) Kind() string { return m.kind }

var (
	ErrUnreachable       = newMarker("Unreachable", "site unreachable")
	ErrTimeout           = newMarker("Timeout", "timeout")
	ErrBlocked           = newMarker("Blocked", "blocked by site")
	ErrPartialAnalysis   = newMarker("PartialAnalysisFailure", "partial analysis failure")
	ErrMissingLogo       = newMarker("MissingLogo", "missing logo")
	ErrProvider          = newMarker("ProviderError", "provider error")
	ErrValidation        = newMarker("ValidationError", "validation error")
	ErrUnsupportedFormat = newMarker("UnsupportedFormat", "unsupported format")
	ErrAlreadyInProgress = newMarker("AlreadyInProgress", "already in progress")
	ErrNotFound          = newMarker("NotFound", "not found")
	ErrCanceled          = newMarker("Canceled", "canceled")
	ErrConfiguration     = newMarker("Configuration", "configuration error")
	ErrExternalTool      = newMarker("ExternalTool", "external tool error")
)

// KindInternal is reported for errors that carry no marker.
const KindInternal = "Internal"

var markers = []*Marker{
	ErrMissingLogo,
	ErrAlreadyInProgress,
	ErrUnsupportedFormat,
	ErrValidation,
	ErrNotFound,
	ErrCanceled,
	ErrTimeout,
	ErrBlocked,
	ErrUnreachable,
	ErrProvider,
	ErrPartialAnalysis,
	ErrConfiguration,
	ErrExternalTool,
}

// Error is a marker-tagged failure annotated with the stage and operation that
// produced it.
type Error struct {
	Marker    *Marker
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return e.Marker.Error() + ": " + detail + ": " + e.Err.Error()
	}
	return e.Marker.Error() + ": " + detail
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. A nil marker falls back to
// ErrExternalTool.
func Wrap(marker *Marker, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrExternalTool
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// Kind returns the stable kind of err. The outermost *Error wins; otherwise the
// first matching marker in precedence order is used.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Marker != nil {
		return svcErr.Marker.Kind()
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker.Kind()
		}
	}
	return KindInternal
}

// Message returns the human-readable part of err without the kind prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		if svcErr.Message != "" {
			return svcErr.Message
		}
		if svcErr.Err != nil {
			return svcErr.Err.Error()
		}
		return svcErr.Marker.Error()
	}
	return err.Error()
}

// IsKind reports whether err carries the given marker.
func IsKind(err error, marker *Marker) bool {
	return err != nil && marker != nil && errors.Is(err, marker)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
