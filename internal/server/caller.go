// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sigil-dev/cardhost/internal/plugin"
)

// CallerHeader names the request header carrying the caller identity.
const CallerHeader = "X-Caller-ID"

type callerKey struct{}

// callerMiddleware records the X-Caller-ID header on the request context.
// It carries identity only; nothing is authenticated here.
func callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CallerHeader))
		if id != "" {
			r = r.WithContext(context.WithValue(r.Context(), callerKey{}, id))
		}
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"caller", id,
			"remote", r.RemoteAddr,
		)
		next.ServeHTTP(w, r)
	})
}

// resolveCaller picks the body identity, then the header, then anonymous.
func resolveCaller(ctx context.Context, bodyIdentity string) plugin.Caller {
	if id := strings.TrimSpace(bodyIdentity); id != "" {
		return plugin.Caller{Identity: id}
	}
	if id, ok := ctx.Value(callerKey{}).(string); ok && id != "" {
		return plugin.Caller{Identity: id}
	}
	return plugin.AnonymousCaller
}
