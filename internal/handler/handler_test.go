package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/afterword/backend/internal/repository/memstore"
	"github.com/stretchr/testify/assert"
)

func TestCORS_AdvertisesContactEditMethods(t *testing.T) {
	h := New(memstore.New(), "https://app.afterword.test")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/me/contacts", nil)
	rec := httptest.NewRecorder()
	h.CORS(inner).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.afterword.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	methods := rec.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{"GET", "POST", "PATCH", "DELETE"} {
		assert.Contains(t, methods, m)
	}
}

// PATCH /api/me/contacts/{id} のプリフライトは mux まで届かない
func TestCORS_PreflightThroughRouter(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/me/contacts/0b7f0c55-8f0e-4a57-9a51-0d4f4ab0f6a1", nil)
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.Equal(t, "http://localhost:4321", rec.Header().Get("Access-Control-Allow-Origin"))
}
