package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendJSON(t *testing.T) {
	w := httptest.NewRecorder()
	SendJSON(w, http.StatusCreated, map[string]string{"id": "c1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"c1"}`, w.Body.String())
}

func TestSendError(t *testing.T) {
	w := httptest.NewRecorder()
	SendError(w, http.StatusNotFound, ErrCodeNotFound, "Model not found")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Model not found", resp.Error.Message)
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ Name string }
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "x", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.ErrorContains(t, DecodeJSON(req, &v), "empty")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.ErrorContains(t, DecodeJSON(req, &v), "invalid JSON")
}
