// Package payment implements the Payment Adapter (spec §4.6): a thin HTTP
// client that wraps the payment gateway's charge call with an idempotency
// key header. Grounded on the external payments-service retained under
// original_source/, whose /v1/payments/charge endpoint accepts both an
// Idempotency-Key header and an orderId body field — this client always
// sends both, per SPEC_FULL.md's SUPPLEMENTED FEATURES note.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

type ChargeRequest struct {
	OrderID        string
	Amount         decimal.Decimal
	Method         string
	IdempotencyKey string
}

type ChargeResult struct {
	PaymentID string
	Status    Status
	Reference string
}

// Client talks to the payment gateway over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: httpClient}
}

// Charge implements spec §4.6: a non-SUCCESS status, or a missing payment
// identifier, is itself a failure the caller must treat as a saga failure.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	body, err := json.Marshal(map[string]any{
		"orderId": req.OrderID,
		"amount":  req.Amount.String(),
		"method":  req.Method,
	})
	if err != nil {
		return ChargeResult{}, errors.Wrap(err, "payment: encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, errors.Wrap(err, "payment: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return ChargeResult{}, errors.Wrap(err, "payment: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return ChargeResult{}, errors.Errorf("payment: gateway returned status %d", resp.StatusCode)
	}

	var out struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
		Status    string `json:"status"`
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChargeResult{}, errors.Wrap(err, "payment: decode response")
	}

	result := ChargeResult{PaymentID: out.PaymentID, Status: Status(out.Status), Reference: out.Reference}
	if result.Status != StatusSuccess {
		return result, errors.Errorf("payment: status %s", result.Status)
	}
	if result.PaymentID == "" {
		return result, errors.New("payment: success response missing payment id")
	}
	return result, nil
}
