package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrRateLimited            = errors.New("rate limited")
	ErrRemoteServer           = errors.New("remote server error")
	ErrRemoteClient           = errors.New("remote client error")
	ErrManualDecisionRequired = errors.New("manual decision required")
	ErrValidation             = errors.New("validation error")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrNotFound               = errors.New("not found")
	ErrTransient              = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err carries a marker that the store client is
// allowed to retry. Authentication, permission and client errors fail fast.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAuthenticationRequired),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrRemoteClient),
		errors.Is(err, ErrValidation):
		return false
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrRemoteServer),
		errors.Is(err, ErrTransient):
		return true
	default:
		return false
	}
}

// Kind returns a short classification label for err, used in logs and CLI output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthenticationRequired):
		return "authentication_required"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrRemoteServer):
		return "remote_server_error"
	case errors.Is(err, ErrRemoteClient):
		return "remote_client_error"
	case errors.Is(err, ErrManualDecisionRequired):
		return "manual_decision_required"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
