package api

import (
	"net/http"

	"github.com/permitdesk/permitdesk/pkg/access"
	"github.com/permitdesk/permitdesk/pkg/httputil"
)

type addPartyRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// addParty handles POST /api/v1/permits/{id}/parties
func (s *Server) addParty(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req addPartyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	party, err := s.facade.AddParty(r.Context(), actorID, permitID, req.UserID, access.Role(req.Role))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, party)
}

// listParties handles GET /api/v1/permits/{id}/parties
func (s *Server) listParties(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	parties, err := s.facade.ListParties(r.Context(), actorID, permitID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, parties)
}

// changePartyRole handles PUT /api/v1/permits/{id}/parties/{userId}
func (s *Server) changePartyRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	var req changeRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	party, err := s.facade.ChangePartyRole(r.Context(), actorID, permitID, userID, access.Role(req.Role))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, party)
}

// removeParty handles DELETE /api/v1/permits/{id}/parties/{userId}
func (s *Server) removeParty(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	if err := s.facade.RemoveParty(r.Context(), actorID, permitID, userID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
