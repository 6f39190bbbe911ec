package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoggingAttachesRequestLogger(t *testing.T) {
	var hasLogger bool
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasLogger = zerolog.Ctx(r.Context()).GetLevel() != zerolog.Disabled
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, hasLogger)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestLoggingKeepsIncomingRequestID(t *testing.T) {
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remoteIP string
		want     string
	}{
		{"X-Forwarded-For first hop", map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.2"}, "127.0.0.1:12345", "192.168.1.1"},
		{"X-Real-IP", map[string]string{"X-Real-IP": "10.0.0.1"}, "127.0.0.1:12345", "10.0.0.1"},
		{"RemoteAddr host", nil, "127.0.0.1:12345", "127.0.0.1"},
		{"RemoteAddr without port", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteIP
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestResponseWriterFlushes(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
	rw.WriteHeader(http.StatusNotFound)
	rw.Flush()
	assert.Equal(t, http.StatusNotFound, rw.status)
	assert.True(t, w.Flushed)
}
