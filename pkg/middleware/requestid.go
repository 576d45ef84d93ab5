package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/permitdesk/permitdesk/pkg/contextkeys"
)

// RequestIDHeader is echoed back so callers can correlate logs with
// responses. Incoming values are honored to preserve gateway-assigned ids.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with a UUID
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, requestID)
			ctx := contextkeys.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
