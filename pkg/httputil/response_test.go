package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, http.StatusOK, map[string]string{"status": "ok"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "not found",
			err:        apperrors.NotFound("permit"),
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
		{
			name:       "forbidden hides detail",
			err:        apperrors.Forbidden("delete permit"),
			wantStatus: http.StatusForbidden,
			wantError:  "you do not have permission to perform this action",
		},
		{
			name:       "validation surfaces field",
			err:        apperrors.Validation("title", "must not be empty"),
			wantStatus: http.StatusBadRequest,
			wantError:  "must not be empty",
		},
		{
			name:       "conflict",
			err:        apperrors.Conflict("party membership"),
			wantStatus: http.StatusConflict,
			wantError:  "party membership already exists",
		},
		{
			name:       "unknown error masks internals",
			err:        fmt.Errorf("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteAppError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}

func TestWriteAppErrorWrapped(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, fmt.Errorf("facade: %w", apperrors.ErrForbidden))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantPage int
		wantSize int
	}{
		{"defaults", "", 1, 25},
		{"explicit", "page=3&page_size=50", 3, 50},
		{"clamped to max", "page_size=500", 1, 100},
		{"ignores garbage", "page=abc&page_size=-2", 1, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/feed?"+tt.query, nil)
			params := ParsePageParams(r, 25, 100)
			assert.Equal(t, tt.wantPage, params.Page)
			assert.Equal(t, tt.wantSize, params.PageSize)
		})
	}
}

func TestPageParamsOffset(t *testing.T) {
	assert.Equal(t, 0, PageParams{Page: 1, PageSize: 25}.Offset())
	assert.Equal(t, 50, PageParams{Page: 3, PageSize: 25}.Offset())
}
