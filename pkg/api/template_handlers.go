package api

import (
	"net/http"

	"github.com/permitdesk/permitdesk/pkg/httputil"
	"github.com/permitdesk/permitdesk/pkg/workflow"
)

type createTemplateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	PermitType  *string         `json:"permit_type,omitempty"`
	Steps       []workflow.Step `json:"steps"`
}

type applyTemplateRequest struct {
	TemplateID int64 `json:"template_id"`
}

// createTemplate handles POST /api/v1/templates. Templates created through
// the API are never default; defaults are provisioned by the seeder.
func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req createTemplateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	template, err := s.facade.CreateTemplate(r.Context(), actorID, req.Name, req.Description, req.PermitType, req.Steps)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, template)
}

// listTemplates handles GET /api/v1/templates. An optional permit_type
// query narrows the list to matching and untyped templates.
func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r); !ok {
		return
	}

	var permitType *string
	if raw := r.URL.Query().Get("permit_type"); raw != "" {
		permitType = &raw
	}

	templates, err := s.facade.ListTemplates(r.Context(), permitType)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, templates)
}

// applyTemplate handles POST /api/v1/permits/{id}/apply-template
func (s *Server) applyTemplate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req applyTemplateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TemplateID <= 0 {
		httputil.WriteBadRequest(w, "template_id is required")
		return
	}

	milestones, err := s.facade.ApplyTemplate(r.Context(), actorID, permitID, req.TemplateID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, milestones)
}
