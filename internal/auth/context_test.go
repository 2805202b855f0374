package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOwnerIDRoundTrip(t *testing.T) {
	ctx := ContextWithOwnerID(context.Background(), "device-1")
	id, ok := OwnerIDFromContext(ctx)
	if !ok || id != "device-1" {
		t.Fatalf("expected device-1, got %q (%v)", id, ok)
	}
	if _, ok := OwnerIDFromContext(ContextWithOwnerID(context.Background(), "")); ok {
		t.Fatalf("empty owner must not count as a scope")
	}
	if _, err := RequireOwnerID(context.Background()); !errors.Is(err, ErrMissingOwner) {
		t.Fatalf("expected ErrMissingOwner, got %v", err)
	}
}

func TestEnforceOwnerScope(t *testing.T) {
	if err := EnforceOwnerScope(context.Background(), "anyone"); err != nil {
		t.Fatalf("unscoped context must allow access: %v", err)
	}
	ctx := ContextWithOwnerID(context.Background(), "device-1")
	if err := EnforceOwnerScope(ctx, "device-1"); err != nil {
		t.Fatalf("matching owner rejected: %v", err)
	}
	if err := EnforceOwnerScope(ctx, "device-2"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestOwnerMiddleware(t *testing.T) {
	var seen string
	h := OwnerMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = OwnerIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/bugs?deviceId=from-query", nil)
	req.Header.Set(OwnerHeader, " from-header ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "from-header" {
		t.Fatalf("expected header to win, got %q", seen)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bugs?deviceId=from-query", nil))
	if seen != "from-query" {
		t.Fatalf("expected query fallback, got %q", seen)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bugs", nil))
	if seen != "" {
		t.Fatalf("expected no owner, got %q", seen)
	}
}
