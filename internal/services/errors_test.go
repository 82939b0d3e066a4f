package services_test

import (
	"errors"
	"strings"
	"testing"

	"scrutin/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRemoteServer, "sheets", "read", "Results", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRemoteServer) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"sheets", "read", "Results"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
	}{
		{name: "nil", err: nil, retry: false},
		{name: "rate limited", err: services.Wrap(services.ErrRateLimited, "sheets", "read", "", nil), retry: true},
		{name: "server", err: services.Wrap(services.ErrRemoteServer, "sheets", "read", "", nil), retry: true},
		{name: "transient", err: services.Wrap(services.ErrTransient, "sheets", "read", "", nil), retry: true},
		{name: "client", err: services.Wrap(services.ErrRemoteClient, "sheets", "read", "", nil), retry: false},
		{name: "auth", err: services.Wrap(services.ErrAuthenticationRequired, "sheets", "read", "", nil), retry: false},
		{name: "permission", err: services.Wrap(services.ErrPermissionDenied, "access", "write", "", nil), retry: false},
		{name: "unclassified", err: errors.New("plain"), retry: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.retry {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.retry)
			}
		})
	}
}

func TestKindLabels(t *testing.T) {
	err := services.Wrap(services.ErrManualDecisionRequired, "runoff", "qualify", "tie", nil)
	if got := services.Kind(err); got != "manual_decision_required" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
