package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/bugboard/internal/bugloader"
	"github.com/rpattn/bugboard/internal/repository"
)

type ctxKey string

const bugLoaderKey ctxKey = "bugLoader"

// DataLoaderMiddleware attaches a fresh bug loader to the request context
func DataLoaderMiddleware(repo repository.BugRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := bugloader.NewBugLoader(repo)
			ctx := context.WithValue(r.Context(), bugLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BugLoaderFromContext retrieves the request's bug loader, or nil when the
// middleware did not run.
func BugLoaderFromContext(ctx context.Context) *bugloader.BugLoader {
	if l, ok := ctx.Value(bugLoaderKey).(*bugloader.BugLoader); ok {
		return l
	}
	return nil
}
