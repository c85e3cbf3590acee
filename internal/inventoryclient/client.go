// Package inventoryclient is the Order Orchestrator's HTTP client for the
// Inventory Engine's reserve/release surface (spec §4.1 phase 4, §6).
package inventoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type ReserveItem struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
	SKU       string `json:"sku,omitempty"`
}

type ReserveRequest struct {
	OrderID        string        `json:"orderId"`
	Items          []ReserveItem `json:"items"`
	IdempotencyKey string        `json:"-"`
}

type ReservedItem struct {
	SKU             string `json:"sku"`
	ProductID       string `json:"productId"`
	Warehouse       string `json:"warehouse"`
	QuantityReserved int   `json:"quantityReserved"`
	ReservationID   string `json:"reservationId"`
}

type ReserveResponse struct {
	Status             string         `json:"status"` // RESERVED | PARTIAL
	OrderID            string         `json:"orderId"`
	Items              []ReservedItem `json:"items"`
	ExpiresAt          time.Time      `json:"expiresAt"`
	Idempotent         bool           `json:"idempotent,omitempty"`
	AllocationStrategy string         `json:"allocationStrategy,omitempty"`
	ActionRequired     string         `json:"actionRequired,omitempty"`
}

const (
	StatusReserved = "RESERVED"
	StatusPartial  = "PARTIAL"
)

var ErrDuplicateIdempotencyKey = errors.New("inventory: duplicate idempotency key")

// Client is the orchestrator-side HTTP client for the inventory engine.
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

func (c *Client) Reserve(ctx context.Context, req ReserveRequest) (ReserveResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ReserveResponse{}, errors.Wrap(err, "inventoryclient: encode reserve request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/inventory/reserve", bytes.NewReader(body))
	if err != nil {
		return ReserveResponse{}, errors.Wrap(err, "inventoryclient: build reserve request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return ReserveResponse{}, errors.Wrap(err, "inventoryclient: reserve request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return ReserveResponse{}, ErrDuplicateIdempotencyKey
	}
	if resp.StatusCode != http.StatusOK {
		return ReserveResponse{}, errors.Errorf("inventoryclient: reserve returned status %d", resp.StatusCode)
	}

	var out ReserveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ReserveResponse{}, errors.Wrap(err, "inventoryclient: decode reserve response")
	}
	return out, nil
}

// Confirm converts an order's ACTIVE reservations to CONFIRMED once payment
// has succeeded, so they survive the TTL reaper (spec §4.1 phase 6).
func (c *Client) Confirm(ctx context.Context, orderID string) error {
	body, _ := json.Marshal(map[string]string{"orderId": orderID})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/inventory/reserve/confirm", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "inventoryclient: build confirm request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "inventoryclient: confirm request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("inventoryclient: confirm returned status %d", resp.StatusCode)
	}
	return nil
}

// Release implements compensation step (b) in spec §4.1.
func (c *Client) Release(ctx context.Context, orderID string) error {
	body, _ := json.Marshal(map[string]string{"orderId": orderID})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/inventory/release", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "inventoryclient: build release request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "inventoryclient: release request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("inventoryclient: release returned status %d", resp.StatusCode)
	}
	return nil
}
