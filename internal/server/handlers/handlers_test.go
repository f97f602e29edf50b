package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/server/requestlog"
)

type pingStore struct {
	credentials.StaticStore
	err error
}

func (p *pingStore) Ping(context.Context) error { return p.err }

func TestLiveness(t *testing.T) {
	h := NewHealthHandlers(nil, credentials.NewStaticStore(nil), "test")

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		store  credentials.Store
		status int
		want   HealthStatus
	}{
		{"store without ping", credentials.NewStaticStore(nil), http.StatusOK, HealthStatusHealthy},
		{"healthy pinger", &pingStore{}, http.StatusOK, HealthStatusHealthy},
		{"failing pinger", &pingStore{err: errors.New("connection refused")}, http.StatusServiceUnavailable, HealthStatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandlers(nil, tt.store, "1.2.3")

			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			require.Equal(t, tt.status, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tt.want, resp.Status)
			require.Equal(t, "1.2.3", resp.Version)

			if _, ok := tt.store.(Pinger); ok {
				require.Equal(t, tt.want, resp.Components["credentials"].Status)
			} else {
				require.NotContains(t, resp.Components, "credentials")
			}
		})
	}
}

func TestDeliveriesList(t *testing.T) {
	store := requestlog.NewStore(10)
	base := time.Now().Add(-time.Minute)
	store.Add(requestlog.Entry{Timestamp: base, Path: "/a", Domain: "one.example.com", Event: "PRODUCT_UPDATED", Status: 200})
	store.Add(requestlog.Entry{Timestamp: base.Add(time.Second), Path: "/a", Domain: "two.example.com", Event: "PRODUCT_UPDATED", Status: 401})
	store.Add(requestlog.Entry{Timestamp: base.Add(2 * time.Second), Path: "/b", Domain: "one.example.com", Event: "ORDER_CREATED", Status: 500})

	h := NewDeliveryHandlers(store)

	list := func(query string) []requestlog.Entry {
		t.Helper()
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/deliveries"+query, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var result requestlog.ListResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		return result.Entries
	}

	require.Len(t, list(""), 3)
	require.Len(t, list("?domain=one.example.com"), 2)
	require.Len(t, list("?min_status=400"), 2)
	require.Len(t, list("?status=401"), 1)
	require.Len(t, list("?path=/b"), 1)
	require.Len(t, list("?limit=1"), 1)

	entries := list("?event=PRODUCT_UPDATED&limit=1&offset=1")
	require.Len(t, entries, 1)
	require.Equal(t, "one.example.com", entries[0].Domain)
}

func TestDeliveriesList_BadParams(t *testing.T) {
	h := NewDeliveryHandlers(requestlog.NewStore(10))

	for _, query := range []string{"?limit=x", "?offset=-", "?status=ok", "?min_status=4xx", "?since=yesterday"} {
		t.Run(query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.List(rec, httptest.NewRequest(http.MethodGet, "/api/deliveries"+query, nil))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
