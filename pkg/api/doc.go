// Package api provides the HTTP boundary for the permit service.
//
// # Overview
//
// Handlers are thin: they parse the request, pull the principal off the
// context, and delegate to the mutation facade. All permission decisions
// happen inside the facade; handlers only translate its errors onto HTTP
// status codes via httputil.WriteAppError.
//
// # Routes
//
// Permits:       POST/GET /api/v1/permits, GET/PATCH/DELETE /api/v1/permits/{id}
// Access:        GET /api/v1/permits/{id}/access
// Activity:      GET /api/v1/permits/{id}/activity
// Parties:       POST/GET /api/v1/permits/{id}/parties, PUT/DELETE .../parties/{userId}
// Milestones:    POST/GET /api/v1/permits/{id}/milestones, POST .../milestones/{milestoneId}/complete
// Templates:     POST/GET /api/v1/templates, POST /api/v1/permits/{id}/apply-template
// Documents:     POST/GET /api/v1/permits/{id}/documents, GET/DELETE .../documents/{documentId}
// Messages:      POST/GET /api/v1/permits/{id}/messages
// Inspections:   POST/GET /api/v1/permits/{id}/inspections, PATCH .../inspections/{inspectionId}
//
// # Related Packages
//
//   - pkg/permits: the facade all handlers delegate to
//   - pkg/middleware: principal extraction and rate limiting
package api
