package api

import (
	"net/http"

	"github.com/permitdesk/permitdesk/pkg/httputil"
	"github.com/permitdesk/permitdesk/pkg/inspections"
)

// scheduleInspection handles POST /api/v1/permits/{id}/inspections
func (s *Server) scheduleInspection(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var input inspections.ScheduleInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	inspection, err := s.facade.ScheduleInspection(r.Context(), actorID, permitID, input)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, inspection)
}

// listInspections handles GET /api/v1/permits/{id}/inspections
func (s *Server) listInspections(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	list, err := s.facade.ListInspections(r.Context(), actorID, permitID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// updateInspection handles PATCH /api/v1/permits/{id}/inspections/{inspectionId}
func (s *Server) updateInspection(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	inspectionID, ok := httputil.ParsePathInt64OrError(w, r, "inspectionId")
	if !ok {
		return
	}

	var input inspections.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	inspection, err := s.facade.UpdateInspection(r.Context(), actorID, permitID, inspectionID, input)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, inspection)
}
