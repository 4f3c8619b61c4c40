package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/afterword/backend/internal/repository"
	"github.com/afterword/backend/internal/repository/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDB struct {
	pingFunc func(ctx context.Context) error
}

var _ repository.DB = (*mockDB)(nil)

func (m *mockDB) Ping(ctx context.Context) error {
	return m.pingFunc(ctx)
}

func TestHealth(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name       string
		db         repository.DB
		ctx        context.Context
		wantCode   int
		wantStatus string
	}{
		{"memory store", memstore.New(), context.Background(), http.StatusOK, "ok"},
		{"memory store, client gone", memstore.New(), cancelled, http.StatusServiceUnavailable, "unhealthy"},
		{"database down", &mockDB{pingFunc: func(context.Context) error {
			return errors.New("dial tcp: connection refused")
		}}, context.Background(), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(tc.db, "http://localhost:4321")
			req := httptest.NewRequest(http.MethodGet, "/api/health", nil).WithContext(tc.ctx)
			rec := httptest.NewRecorder()

			h.Health(rec, req)

			require.Equal(t, tc.wantCode, rec.Code)
			resp := decode[healthResponse](t, rec)
			assert.Equal(t, tc.wantStatus, resp.Status)
			if tc.wantCode == http.StatusOK {
				assert.Equal(t, "Afterword API", resp.Message)
			}
		})
	}
}

func TestHealth_PingSeesRequestContext(t *testing.T) {
	type key struct{}
	var seen any
	h := New(&mockDB{pingFunc: func(ctx context.Context) error {
		seen = ctx.Value(key{})
		return nil
	}}, "")

	ctx := context.WithValue(context.Background(), key{}, "req-1")
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil).WithContext(ctx)
	h.Health(httptest.NewRecorder(), req)

	assert.Equal(t, "req-1", seen)
}
