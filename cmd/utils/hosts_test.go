package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runHostCheck(t *testing.T, allowed []string, host string) int {
	t.Helper()
	handler := TrustedHostMiddleware(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = host
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestTrustedHostMiddleware(t *testing.T) {
	allowed := []string{"snapnet.example.com"}

	assert.Equal(t, http.StatusOK, runHostCheck(t, allowed, "snapnet.example.com"))
	assert.Equal(t, http.StatusOK, runHostCheck(t, allowed, "snapnet.example.com:8080"))
	assert.Equal(t, http.StatusOK, runHostCheck(t, allowed, "www.snapnet.example.com"))
	assert.Equal(t, http.StatusBadRequest, runHostCheck(t, allowed, "evil.example.com"))

	// empty allow-list lets everything through
	assert.Equal(t, http.StatusOK, runHostCheck(t, nil, "anything.example.com"))
}
