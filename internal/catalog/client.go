// Package catalog implements the Catalog Adapter (spec §4.4): a read-only
// HTTP client over the product catalog's price and detail endpoints.
// Grounded on the external catalog-service-master Spring controller
// retained under original_source/ — this package ports its two read
// endpoints to a Go client, it does not reimplement the service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrMissingProduct is returned when the catalog's response omits a
// requested product id, per spec §4.4: "may fail with ... missing entries".
var ErrMissingProduct = errors.New("catalog: missing product")

type Details struct {
	SKU  string
	Name string
}

// Client talks to the catalog service over HTTP. It does not retry
// (spec §4.4: "it does not retry").
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

// Prices maps GET /v1/products/prices?productIds=...&productIds=... to a
// product-id -> price map. A missing id in the response is a missing
// entry (spec §4.4), surfaced by the caller checking for absence.
func (c *Client) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("productIds", id)
	}
	endpoint := fmt.Sprintf("%s/v1/products/prices?%s", c.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: build prices request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: prices request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("catalog: prices returned status %d", resp.StatusCode)
	}

	var raw map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "catalog: decode prices")
	}

	for _, id := range ids {
		if _, ok := raw[id]; !ok {
			return nil, errors.Wrapf(ErrMissingProduct, "product %s", id)
		}
	}
	return raw, nil
}

// Details maps GET /v1/products/{id} to {sku, name}.
func (c *Client) Details(ctx context.Context, id string) (Details, error) {
	endpoint := fmt.Sprintf("%s/v1/products/%s", c.BaseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Details{}, errors.Wrap(err, "catalog: build details request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Details{}, errors.Wrap(err, "catalog: details request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Details{}, errors.Wrapf(ErrMissingProduct, "product %s", id)
	}
	if resp.StatusCode != http.StatusOK {
		return Details{}, errors.Errorf("catalog: details returned status %d", resp.StatusCode)
	}

	var body struct {
		SKU  string `json:"sku"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Details{}, errors.Wrap(err, "catalog: decode details")
	}
	if body.SKU == "" || body.Name == "" {
		return Details{}, errors.Wrapf(ErrMissingProduct, "product %s has no sku/name", id)
	}
	return Details{SKU: body.SKU, Name: body.Name}, nil
}

// Price maps GET /v1/products/{id}/price, a single-product lookup the
// catalog service exposes (ProductController#getProductPrice) that the
// orchestrator does not use directly — it always batches through Prices —
// but which is available to callers that need one price without a batch.
func (c *Client) Price(ctx context.Context, id string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/v1/products/%s/price", c.BaseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "catalog: build price request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "catalog: price request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Decimal{}, errors.Wrapf(ErrMissingProduct, "product %s", id)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, errors.Errorf("catalog: price returned status %d", resp.StatusCode)
	}

	var price decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&price); err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "catalog: decode price")
	}
	return price, nil
}
