package api

import (
	"net/http"

	"github.com/permitdesk/permitdesk/pkg/audit"
	"github.com/permitdesk/permitdesk/pkg/httputil"
	"github.com/permitdesk/permitdesk/pkg/permits"
)

// createPermit handles POST /api/v1/permits
func (s *Server) createPermit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}

	var input permits.CreatePermitInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	permit, err := s.facade.CreatePermit(r.Context(), actorID, input)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, permit)
}

// listPermits handles GET /api/v1/permits
func (s *Server) listPermits(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}

	list, err := s.facade.ListPermits(r.Context(), actorID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// getPermit handles GET /api/v1/permits/{id}
func (s *Server) getPermit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	permit, err := s.facade.GetPermit(r.Context(), actorID, permitID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, permit)
}

// updatePermit handles PATCH /api/v1/permits/{id}
func (s *Server) updatePermit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var input permits.UpdatePermitInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	permit, err := s.facade.UpdatePermit(r.Context(), actorID, permitID, input)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, permit)
}

// deletePermit handles DELETE /api/v1/permits/{id}
func (s *Server) deletePermit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.facade.DeletePermit(r.Context(), actorID, permitID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// accessResponse is the wire shape for the access resolution endpoint
type accessResponse struct {
	HasAccess   bool     `json:"has_access"`
	Role        string   `json:"role,omitempty"`
	IsCreator   bool     `json:"is_creator"`
	Permissions []string `json:"permissions"`
}

// getAccess handles GET /api/v1/permits/{id}/access. It reports the
// caller's own resolved role and capability tokens for the permit.
func (s *Server) getAccess(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	decision, err := s.facade.ResolveAccess(r.Context(), actorID, permitID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	resp := accessResponse{
		HasAccess:   decision.HasAccess,
		IsCreator:   decision.IsCreator,
		Permissions: []string{},
	}
	if decision.HasAccess {
		resp.Role = string(decision.Role)
		resp.Permissions = decision.Permissions.Tokens()
	}

	httputil.WriteSuccess(w, resp)
}

// getActivityFeed handles GET /api/v1/permits/{id}/activity
func (s *Server) getActivityFeed(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	params := httputil.ParsePageParams(r, audit.DefaultPageSize, audit.MaxPageSize)
	page, err := s.facade.ActivityFeed(r.Context(), actorID, permitID, params.Page, params.PageSize)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, page)
}
