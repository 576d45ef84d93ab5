package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// WriteAppError maps a service error onto the transport:
// NotFound -> 404, Forbidden -> 403, Validation -> 400, Conflict -> 409,
// anything else -> 500. Denials deliberately carry a generic message with no
// role-structure detail; validation errors surface only the failing field.
func WriteAppError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsNotFound(err):
		WriteErrorMessage(w, http.StatusNotFound, "not found")
	case apperrors.IsForbidden(err):
		WriteErrorMessage(w, http.StatusForbidden, "you do not have permission to perform this action")
	case apperrors.IsValidation(err):
		ve, _ := apperrors.AsValidation(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: ve.Message, Field: ve.Field})
	case apperrors.IsConflict(err):
		WriteErrorMessage(w, http.StatusConflict, err.Error())
	default:
		WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// WriteBadRequest writes a 400 response with the given message
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes a 401 response
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
