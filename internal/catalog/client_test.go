package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestClient_Prices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/products/prices", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"p1": "9.99", "p2": "4.50"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	prices, err := c.Prices(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	require.True(t, prices["p1"].Equal(decimal.RequireFromString("9.99")))
	require.True(t, prices["p2"].Equal(decimal.RequireFromString("4.50")))
}

func TestClient_Prices_MissingEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"p1": "9.99"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Prices(context.Background(), []string{"p1", "ghost"})
	require.ErrorIs(t, err, ErrMissingProduct)
}

func TestClient_Details_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Details(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrMissingProduct)
}
