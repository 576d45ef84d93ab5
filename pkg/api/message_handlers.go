package api

import (
	"net/http"
	"strconv"

	"github.com/permitdesk/permitdesk/pkg/contextkeys"
	"github.com/permitdesk/permitdesk/pkg/httputil"
)

type sendMessageRequest struct {
	Body string `json:"body"`
}

// sendMessage handles POST /api/v1/permits/{id}/messages
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req sendMessageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	actorName := contextkeys.PrincipalName(r.Context())
	message, err := s.facade.SendMessage(r.Context(), actorID, actorName, permitID, req.Body)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, message)
}

// listMessages handles GET /api/v1/permits/{id}/messages
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	limit, offset := 50, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	list, err := s.facade.ListMessages(r.Context(), actorID, permitID, limit, offset)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}
