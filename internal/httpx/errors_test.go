package httpx

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/ordercore/order-platform/internal/orders"
	"github.com/stretchr/testify/require"
)

func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, orders.ErrInventoryFailed, "insufficient stock", "order-123")

	require.Equal(t, 500, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INVENTORY_FAILED", body["error"])
	require.Equal(t, "insufficient stock", body["message"])
	require.Equal(t, "order-123", body["orderId"])
}

func TestWriteError_OmitsOrderIDWhenEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, orders.ErrValidation, "bad request", "")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	_, has := body["orderId"]
	require.False(t, has)
}
