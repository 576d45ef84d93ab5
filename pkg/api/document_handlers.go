package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/permitdesk/permitdesk/pkg/contextkeys"
	"github.com/permitdesk/permitdesk/pkg/httputil"
)

// maxUploadBytes bounds the multipart form parse; S3 holds the content, so
// this only protects the request path.
const maxUploadBytes = 64 << 20

type sharePhotoRequest struct {
	Recipients []int64 `json:"recipients"`
	Message    string  `json:"message,omitempty"`
}

// uploadDocument handles POST /api/v1/permits/{id}/documents. Multipart
// form with a `file` part; `is_photo=true` marks the document shareable as
// a photo.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteBadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "missing file part")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	isPhoto := strings.EqualFold(r.FormValue("is_photo"), "true")

	doc, err := s.facade.UploadDocument(r.Context(), actorID, permitID, header.Filename, contentType, isPhoto, file)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, doc)
}

// listDocuments handles GET /api/v1/permits/{id}/documents
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	docs, err := s.facade.ListDocuments(r.Context(), actorID, permitID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, docs)
}

// downloadDocument handles GET /api/v1/permits/{id}/documents/{documentId}
func (s *Server) downloadDocument(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := httputil.ParsePathInt64OrError(w, r, "documentId")
	if !ok {
		return
	}

	doc, content, err := s.facade.OpenDocument(r.Context(), actorID, permitID, documentID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	defer content.Close()

	if doc.ContentType != "" {
		w.Header().Set("Content-Type", doc.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))

	if _, err := io.Copy(w, content); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("document_id", doc.ID).Warn("document stream interrupted")
	}
}

// deleteDocument handles DELETE /api/v1/permits/{id}/documents/{documentId}
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := httputil.ParsePathInt64OrError(w, r, "documentId")
	if !ok {
		return
	}

	if err := s.facade.DeleteDocument(r.Context(), actorID, permitID, documentID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// sharePhoto handles POST /api/v1/permits/{id}/documents/{documentId}/share
func (s *Server) sharePhoto(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.principal(w, r)
	if !ok {
		return
	}
	permitID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := httputil.ParsePathInt64OrError(w, r, "documentId")
	if !ok {
		return
	}

	var req sharePhotoRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	actorName := contextkeys.PrincipalName(r.Context())
	err := s.facade.SharePhoto(r.Context(), actorID, actorName, permitID, documentID, req.Recipients, req.Message)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
