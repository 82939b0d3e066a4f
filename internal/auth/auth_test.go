package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scrutin/internal/services"
)

func TestStaticTokenTrims(t *testing.T) {
	token, err := StaticToken("  abc \n").AccessToken(context.Background())
	if err != nil || token != "abc" {
		t.Fatalf("got %q err=%v", token, err)
	}
}

func TestFileSourceMissingFileYieldsEmptyToken(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.json"))
	token, err := src.AccessToken(context.Background())
	if err != nil || token != "" {
		t.Fatalf("got %q err=%v", token, err)
	}
}

func TestFileSourceSaveAndExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	src := NewFileSource(path)
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	if err := src.Save("tok-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected permissions %v", info.Mode().Perm())
	}
	token, err := src.AccessToken(context.Background())
	if err != nil || token != "tok-1" {
		t.Fatalf("got %q err=%v", token, err)
	}

	now = now.Add(2 * time.Hour)
	token, err = src.AccessToken(context.Background())
	if err != nil || token != "" {
		t.Fatalf("expired token should be empty, got %q err=%v", token, err)
	}
}

func TestFileSourceRefreshPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(`{"token":"first"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	src := NewFileSource(path)
	if token, _ := src.AccessToken(context.Background()); token != "first" {
		t.Fatalf("got %q", token)
	}

	if err := os.WriteFile(path, []byte(`{"token":"second"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if err := src.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if token, _ := src.AccessToken(context.Background()); token != "second" {
		t.Fatalf("got %q after refresh", token)
	}
}

func TestFileSourceRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSource(path).AccessToken(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestIssueAndVerify(t *testing.T) {
	secret := "0123456789abcdef"
	token, err := Issue(secret, "alice", "precinct_operator", "7", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := Verify(secret, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != "precinct_operator" || claims.Precinct != "7" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	secret := "0123456789abcdef"
	expired, err := Issue(secret, "bob", "supervisor", "", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	valid, err := Issue(secret, "bob", "supervisor", "", 0, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"empty", secret, ""},
		{"garbage", secret, "not-a-token"},
		{"expired", secret, expired},
		{"wrong secret", "fedcba9876543210", valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(tt.secret, tt.token)
			if !errors.Is(err, services.ErrAuthenticationRequired) {
				t.Fatalf("expected authentication error, got %v", err)
			}
		})
	}
}
