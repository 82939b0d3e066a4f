package sheets

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scrutin/internal/services"
)

// StatusError is returned, wrapped in a services marker, when the store
// answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func statusMarker(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return services.ErrAuthenticationRequired
	case code == http.StatusForbidden:
		return services.ErrPermissionDenied
	case code == http.StatusTooManyRequests:
		return services.ErrRateLimited
	case code == http.StatusRequestTimeout, code >= http.StatusInternalServerError:
		return services.ErrRemoteServer
	default:
		return services.ErrRemoteClient
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
