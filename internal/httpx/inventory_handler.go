package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ordercore/order-platform/internal/inventory"
	"github.com/pkg/errors"
)

// InventoryHandler exposes the Inventory Engine's HTTP surface (spec §6):
// reserve, confirm, release, ship, and a manually triggerable reaper pass
// alongside the ticker-driven one in cmd/inventory.
type InventoryHandler struct {
	Engine *inventory.Engine
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Post("/v1/inventory/reserve", h.reserve)
	r.Post("/v1/inventory/reserve/confirm", h.confirm)
	r.Post("/v1/inventory/release", h.release)
	r.Post("/v1/inventory/ship", h.ship)
	r.Post("/v1/inventory/reaper/expired", h.runReaper)
}

type reserveItemReq struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
	SKU       string `json:"sku,omitempty"`
}

type reserveReq struct {
	OrderID string            `json:"orderId"`
	Items   []reserveItemReq  `json:"items"`
}

type reservedItemResp struct {
	SKU              string `json:"sku"`
	ProductID        string `json:"productId"`
	Warehouse        string `json:"warehouse"`
	QuantityReserved int    `json:"quantityReserved"`
	ReservationID    string `json:"reservationId"`
}

type reserveResp struct {
	Status             string              `json:"status"`
	OrderID            string              `json:"orderId"`
	Items              []reservedItemResp  `json:"items"`
	Partial            []inventory.PartialItem `json:"partial,omitempty"`
	ExpiresAt          time.Time           `json:"expiresAt"`
	Idempotent         bool                `json:"idempotent,omitempty"`
	AllocationStrategy string              `json:"allocationStrategy,omitempty"`
	ActionRequired     string              `json:"actionRequired,omitempty"`
}

func (h *InventoryHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	idemKey := r.Header.Get("Idempotency-Key")
	if req.OrderID == "" || idemKey == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "orderId, Idempotency-Key, and items are required"})
		return
	}

	items := make([]inventory.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = inventory.ItemRequest{ProductID: it.ProductID, Quantity: it.Qty, SKU: it.SKU}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := h.Engine.Reserve(ctx, req.OrderID, idemKey, items)
	if err != nil {
		if errors.Is(err, inventory.ErrDuplicateIdempotencyKey) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate idempotency key"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := reserveResp{
		Status: result.Status, OrderID: req.OrderID, ExpiresAt: result.ExpiresAt,
		Idempotent: result.Idempotent, AllocationStrategy: result.AllocationStrategy, Partial: result.Partial,
	}
	for _, it := range result.Items {
		resp.Items = append(resp.Items, reservedItemResp{
			SKU: it.SKU, ProductID: it.ProductID, Warehouse: it.Warehouse,
			QuantityReserved: it.QuantityReserved, ReservationID: it.ReservationID,
		})
	}
	if result.Status == inventory.ResultPartial {
		resp.ActionRequired = inventory.ActionRequiredBackorderOrReduce
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *InventoryHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID        string   `json:"orderId"`
		ReservationIDs []string `json:"reservationIds,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "orderId is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.Confirm(ctx, req.OrderID, req.ReservationIDs); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *InventoryHandler) release(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "orderId is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.Release(ctx, req.OrderID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *InventoryHandler) ship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId"`
		Items   []struct {
			ProductID string `json:"productId"`
			SKU       string `json:"sku"`
			Warehouse string `json:"warehouse"`
			Qty       int    `json:"qty"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "orderId and items are required"})
		return
	}

	items := make([]inventory.ShipItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = inventory.ShipItem{ProductID: it.ProductID, SKU: it.SKU, Warehouse: it.Warehouse, Quantity: it.Qty}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.Ship(ctx, req.OrderID, items); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

type releasedReservation struct {
	ReservationID string `json:"reservationId"`
	OrderID       string `json:"orderId"`
	ProductID     string `json:"productId"`
	SKU           string `json:"sku"`
	Warehouse     string `json:"warehouse"`
	Quantity      int    `json:"quantity"`
}

type runReaperResp struct {
	Status               string                `json:"status"`
	ExpiredCount         int                   `json:"expiredCount"`
	ReleasedReservations []releasedReservation `json:"releasedReservations"`
}

// runReaper triggers one reaper pass on demand, alongside the ticker in
// cmd/inventory that runs it automatically.
func (h *InventoryHandler) runReaper(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	expired, err := h.Engine.RunReaper(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	released := make([]releasedReservation, len(expired))
	for i, res := range expired {
		released[i] = releasedReservation{
			ReservationID: res.ID, OrderID: res.OrderID, ProductID: res.ProductID,
			SKU: res.SKU, Warehouse: res.Warehouse, Quantity: res.Quantity,
		}
	}
	writeJSON(w, http.StatusOK, runReaperResp{
		Status: "PROCESSED", ExpiredCount: len(expired), ReleasedReservations: released,
	})
}
