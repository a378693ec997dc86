package json

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		wantCode string
	}{
		{name: "explicit code", status: http.StatusUnauthorized, code: "unauthorized", wantCode: "unauthorized"},
		{name: "derived code", status: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "derived multi word code", status: http.StatusInternalServerError, wantCode: "internal_server_error"},
		{name: "unknown status", status: 599, wantCode: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.status, tt.code, "something happened")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error)
			assert.Equal(t, tt.status, body.StatusCode)
			assert.Equal(t, "something happened", body.Message)
		})
	}
}

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, Write(w, map[string]string{"status": "ok"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCommonErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteUnauthorized(w, "no session")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	WriteMethodNotAllowed(w)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	WriteNotFound(w, "missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
