package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const ownerIDKey contextKey = "ownerID"

// Owner identification on the wire.
const (
	OwnerHeader     = "X-Device-ID"
	OwnerQueryParam = "deviceId"
)

// ErrMissingOwner is returned when a request carries no owner scope.
var ErrMissingOwner = errors.New("owner scope is required")

// ContextWithOwnerID returns a new context that carries the owner (device) scope.
func ContextWithOwnerID(ctx context.Context, ownerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// OwnerIDFromContext retrieves the owner scope from the context, if any.
func OwnerIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ownerIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// RequireOwnerID is OwnerIDFromContext returning ErrMissingOwner when absent.
func RequireOwnerID(ctx context.Context) (string, error) {
	id, ok := OwnerIDFromContext(ctx)
	if !ok {
		return "", ErrMissingOwner
	}
	return id, nil
}

// EnforceOwnerScope ensures a record owner matches the scope when one is present.
func EnforceOwnerScope(ctx context.Context, ownerID string) error {
	scoped, ok := OwnerIDFromContext(ctx)
	if !ok {
		return nil
	}
	if scoped != ownerID {
		return fmt.Errorf("owner %q does not match request scope", ownerID)
	}
	return nil
}

// OwnerMiddleware reads the owner from the X-Device-ID header, falling back to
// the deviceId query parameter, and stores it on the request context.
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			owner = strings.TrimSpace(r.URL.Query().Get(OwnerQueryParam))
		}
		if owner != "" {
			r = r.WithContext(ContextWithOwnerID(r.Context(), owner))
		}
		next.ServeHTTP(w, r)
	})
}
