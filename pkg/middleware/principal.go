package middleware

import (
	"net/http"
	"strconv"

	"github.com/permitdesk/permitdesk/pkg/contextkeys"
	"github.com/permitdesk/permitdesk/pkg/httputil"
	"github.com/permitdesk/permitdesk/pkg/observability"
)

const (
	// PrincipalHeader carries the authenticated user id, injected by the
	// upstream authenticator. The service trusts it as-is.
	PrincipalHeader = "X-User-ID"

	// PrincipalNameHeader optionally carries the user's display name
	PrincipalNameHeader = "X-User-Name"
)

// PrincipalMiddleware extracts the principal from identity headers and puts
// it on the request context. Requests without a parseable principal get 401.
func PrincipalMiddleware(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(PrincipalHeader)
			if raw == "" {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				if logger != nil {
					logger.WithField("header", raw).Warn("rejected malformed principal header")
				}
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			ctx := contextkeys.WithPrincipal(r.Context(), userID)
			if name := r.Header.Get(PrincipalNameHeader); name != "" {
				ctx = contextkeys.WithPrincipalName(ctx, name)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
