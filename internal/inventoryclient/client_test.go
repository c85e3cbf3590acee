package inventoryclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_Reserve_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/inventory/reserve", r.URL.Path)
		require.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		_ = json.NewEncoder(w).Encode(ReserveResponse{Status: StatusReserved, OrderID: "order-1"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	resp, err := c.Reserve(context.Background(), ReserveRequest{
		OrderID: "order-1", Items: []ReserveItem{{ProductID: "p1", Qty: 2}}, IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusReserved, resp.Status)
}

func TestClient_Reserve_DuplicateKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Reserve(context.Background(), ReserveRequest{OrderID: "o1", Items: []ReserveItem{{ProductID: "p1", Qty: 1}}})
	require.ErrorIs(t, err, ErrDuplicateIdempotencyKey)
}

func TestClient_Release(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/inventory/release", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	require.NoError(t, c.Release(context.Background(), "order-1"))
}
