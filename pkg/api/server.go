package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/permitdesk/permitdesk/pkg/contextkeys"
	"github.com/permitdesk/permitdesk/pkg/httputil"
	"github.com/permitdesk/permitdesk/pkg/observability"
	"github.com/permitdesk/permitdesk/pkg/permits"
)

// Server represents the API server
type Server struct {
	facade *permits.Facade
	router *mux.Router
	logger *observability.Logger
}

// NewServer creates a new API server around the mutation facade
func NewServer(facade *permits.Facade, logger *observability.Logger) *Server {
	s := &Server{
		facade: facade,
		router: mux.NewRouter(),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Permit routes
	v1.HandleFunc("/permits", s.createPermit).Methods("POST")
	v1.HandleFunc("/permits", s.listPermits).Methods("GET")
	v1.HandleFunc("/permits/{id}", s.getPermit).Methods("GET")
	v1.HandleFunc("/permits/{id}", s.updatePermit).Methods("PATCH")
	v1.HandleFunc("/permits/{id}", s.deletePermit).Methods("DELETE")
	v1.HandleFunc("/permits/{id}/access", s.getAccess).Methods("GET")
	v1.HandleFunc("/permits/{id}/activity", s.getActivityFeed).Methods("GET")

	// Party routes
	v1.HandleFunc("/permits/{id}/parties", s.addParty).Methods("POST")
	v1.HandleFunc("/permits/{id}/parties", s.listParties).Methods("GET")
	v1.HandleFunc("/permits/{id}/parties/{userId}", s.changePartyRole).Methods("PUT")
	v1.HandleFunc("/permits/{id}/parties/{userId}", s.removeParty).Methods("DELETE")

	// Milestone routes
	v1.HandleFunc("/permits/{id}/milestones", s.createMilestone).Methods("POST")
	v1.HandleFunc("/permits/{id}/milestones", s.listMilestones).Methods("GET")
	v1.HandleFunc("/permits/{id}/milestones/{milestoneId}/complete", s.completeMilestone).Methods("POST")
	v1.HandleFunc("/permits/{id}/milestones/{milestoneId}", s.deleteMilestone).Methods("DELETE")

	// Workflow template routes
	v1.HandleFunc("/templates", s.createTemplate).Methods("POST")
	v1.HandleFunc("/templates", s.listTemplates).Methods("GET")
	v1.HandleFunc("/permits/{id}/apply-template", s.applyTemplate).Methods("POST")

	// Document routes
	v1.HandleFunc("/permits/{id}/documents", s.uploadDocument).Methods("POST")
	v1.HandleFunc("/permits/{id}/documents", s.listDocuments).Methods("GET")
	v1.HandleFunc("/permits/{id}/documents/{documentId}", s.downloadDocument).Methods("GET")
	v1.HandleFunc("/permits/{id}/documents/{documentId}", s.deleteDocument).Methods("DELETE")
	v1.HandleFunc("/permits/{id}/documents/{documentId}/share", s.sharePhoto).Methods("POST")

	// Message routes
	v1.HandleFunc("/permits/{id}/messages", s.sendMessage).Methods("POST")
	v1.HandleFunc("/permits/{id}/messages", s.listMessages).Methods("GET")

	// Inspection routes
	v1.HandleFunc("/permits/{id}/inspections", s.scheduleInspection).Methods("POST")
	v1.HandleFunc("/permits/{id}/inspections", s.listInspections).Methods("GET")
	v1.HandleFunc("/permits/{id}/inspections/{inspectionId}", s.updateInspection).Methods("PATCH")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router so callers can attach middleware
func (s *Server) Router() *mux.Router {
	return s.router
}

// principal pulls the authenticated user id off the context. The principal
// middleware guarantees it for wired routes; a missing principal means the
// route was mounted without it.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return 0, false
	}
	return userID, true
}
