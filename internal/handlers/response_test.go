package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
)

func TestWriteErrorStatusAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.New(apperr.KindValidation, "name is required"), http.StatusBadRequest, "name is required"},
		{"invalid state", apperr.New(apperr.KindInvalidState, "session is completed"), http.StatusBadRequest, "session is completed"},
		{"conflict", apperr.New(apperr.KindConflict, "email is already registered"), http.StatusConflict, "email is already registered"},
		{"not found", apperr.New(apperr.KindNotFound, "session not found"), http.StatusNotFound, "session not found"},
		{"unauthorized", apperr.New(apperr.KindUnauthorized, "invalid email or password"), http.StatusUnauthorized, "invalid email or password"},
		{"storage", apperr.Wrap(apperr.KindStorageUnavailable, "database unavailable", errors.New("dial tcp: refused")), http.StatusInternalServerError, "database connection error"},
		{"plain error hides detail", errors.New("pq: syntax error at or near"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestWriteErrorIncludesData(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apperr.New(apperr.KindConflict, "an active session of this type already exists").
		WithData("active_session_id", int64(12))

	writeError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	assert.JSONEq(t,
		`{"success":false,"message":"an active session of this type already exists","data":{"active_session_id":12}}`,
		rec.Body.String())
}
