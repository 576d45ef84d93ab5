package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/permitdesk/permitdesk/pkg/contextkeys"
	"github.com/permitdesk/permitdesk/pkg/observability"
)

func TestPrincipalMiddleware(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	var gotUserID int64
	var gotName string
	handler := PrincipalMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = contextkeys.Principal(r.Context())
		gotName = contextkeys.PrincipalName(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		userID     string
		userName   string
		wantStatus int
	}{
		{"valid principal", "42", "Dana", http.StatusOK},
		{"missing header", "", "", http.StatusUnauthorized},
		{"non-numeric", "abc", "", http.StatusUnauthorized},
		{"zero id", "0", "", http.StatusUnauthorized},
		{"negative id", "-3", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/permits", nil)
			if tt.userID != "" {
				req.Header.Set(PrincipalHeader, tt.userID)
			}
			if tt.userName != "" {
				req.Header.Set(PrincipalNameHeader, tt.userName)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, int64(42), gotUserID)
				assert.Equal(t, "Dana", gotName)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var gotID string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = contextkeys.RequestID(r.Context())
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, gotID)
		assert.Equal(t, gotID, rec.Header().Get(RequestIDHeader))
	})

	t.Run("honors incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "gateway-assigned")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "gateway-assigned", gotID)
	})
}
