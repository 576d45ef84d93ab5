// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the already-authenticated principal user ID.
	// Set by: middleware.PrincipalMiddleware (pkg/middleware/principal.go)
	// Required by: every protected endpoint and the mutation facade
	// Type: int64
	PrincipalKey Key = "principal_user_id"

	// PrincipalNameKey contains the display name of the principal, when the
	// upstream authenticator supplied one. Used in notification payloads.
	// Type: string
	PrincipalNameKey Key = "principal_name"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestIDMiddleware
	// Used by: logger, activity trail, tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithPrincipal adds the authenticated principal user ID to the context
func WithPrincipal(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, PrincipalKey, userID)
}

// Principal extracts the authenticated principal user ID from the context.
// The second return value is false when no principal was authenticated.
func Principal(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(PrincipalKey).(int64)
	return userID, ok
}

// WithPrincipalName adds the principal display name to the context
func WithPrincipalName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, PrincipalNameKey, name)
}

// PrincipalName extracts the principal display name, if any
func PrincipalName(ctx context.Context) string {
	name, _ := ctx.Value(PrincipalNameKey).(string)
	return name
}

// WithRequestID adds the request ID to the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID extracts the request ID from the context
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
