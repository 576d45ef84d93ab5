package api

import (
	"net/http"

	"github.com/permitdesk/permitdesk/pkg/contextkeys"
	"github.com/permitdesk/permitdesk/pkg/httputil"
	"github.com/permitdesk/permitdesk/pkg/workflow"
)

// createMilestone handles POST /api/v1/permits/{id}/milestones
func (s *Server) createMilestone(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var input workflow.CreateMilestoneInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	milestone, err := s.facade.CreateMilestone(r.Context(), actorID, permitID, input)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, milestone)
}

// listMilestones handles GET /api/v1/permits/{id}/milestones
func (s *Server) listMilestones(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	milestones, err := s.facade.ListMilestones(r.Context(), actorID, permitID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, milestones)
}

// completeMilestone handles POST /api/v1/permits/{id}/milestones/{milestoneId}/complete
func (s *Server) completeMilestone(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	milestoneID, ok := httputil.ParsePathInt64OrError(w, r, "milestoneId")
	if !ok {
		return
	}

	actorName := contextkeys.PrincipalName(r.Context())
	milestone, err := s.facade.CompleteMilestone(r.Context(), actorID, actorName, permitID, milestoneID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, milestone)
}

// deleteMilestone handles DELETE /api/v1/permits/{id}/milestones/{milestoneId}
func (s *Server) deleteMilestone(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	milestoneID, ok := httputil.ParsePathInt64OrError(w, r, "milestoneId")
	if !ok {
		return
	}

	if err := s.facade.DeleteMilestone(r.Context(), actorID, permitID, milestoneID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
