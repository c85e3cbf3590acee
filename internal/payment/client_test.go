package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestClient_Charge_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "order-key", r.Header.Get("Idempotency-Key"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"payment_id": "pay-1", "status": "SUCCESS", "reference": "ref-1",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	result, err := c.Charge(context.Background(), ChargeRequest{
		OrderID: "order-1", Amount: decimal.RequireFromString("47.50"),
		Method: "card", IdempotencyKey: "order-key",
	})
	require.NoError(t, err)
	require.Equal(t, "pay-1", result.PaymentID)
	require.Equal(t, StatusSuccess, result.Status)
}

func TestClient_Charge_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"payment_id": "pay-2", "status": "FAILED"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Charge(context.Background(), ChargeRequest{OrderID: "order-2", Amount: decimal.NewFromInt(10), IdempotencyKey: "k"})
	require.Error(t, err)
}

func TestClient_Charge_MissingPaymentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESS"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Charge(context.Background(), ChargeRequest{OrderID: "order-3", Amount: decimal.NewFromInt(10), IdempotencyKey: "k"})
	require.Error(t, err)
}
