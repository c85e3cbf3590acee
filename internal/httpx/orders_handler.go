package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ordercore/order-platform/internal/orders"
	"github.com/ordercore/order-platform/internal/redisx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrdersHandler exposes the Order Orchestrator's HTTP surface (spec §6),
// generalized from the teacher's OrdersHandler to delegate the actual
// work to an orders.Orchestrator instead of a bare Repo. Redis is an
// optional read-through cache in front of getOrder, matching the teacher's
// own cache-then-fallback GetOrder.
type OrdersHandler struct {
	Orchestrator *orders.Orchestrator
	Repo         *orders.Repo
	Redis        *redis.Client
	Log          *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/v1/orders", h.createOrder)
	r.Get("/v1/orders/{id}", h.getOrder)
	r.Get("/v1/orders", h.listOrders)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID    string            `json:"customerId"`
		Items         []orders.ItemInput `json:"items"`
		PaymentMethod string            `json:"paymentMethod,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, orders.ErrValidation, "invalid json body", "")
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, sagaErr := h.Orchestrator.CreateOrder(ctx, orders.CreateRequest{
		CustomerID: body.CustomerID, Items: body.Items, PaymentMethod: body.PaymentMethod, IdempotencyKey: idemKey,
	})
	if sagaErr != nil {
		writeError(w, sagaErr.Kind, sagaErr.Message, sagaErr.OrderID)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, orders.ErrValidation, "missing id", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if cached, err := h.Redis.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cached))
			return
		}
	}

	order, err := h.Repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			writeError(w, orders.ErrNotFound, "order not found", orderID)
			return
		}
		writeError(w, orders.ErrInternal, "failed to load order", orderID)
		return
	}

	if h.Redis != nil {
		if body, err := json.Marshal(order); err == nil {
			if err := h.Redis.Set(ctx, cacheKey, body, redisx.TTLStatusCache).Err(); err != nil && h.Log != nil {
				h.Log.Warn("orders: cache write failed", zap.Error(err), zap.String("orderId", orderID))
			}
		}
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Repo.ListRecent(ctx, 50)
	if err != nil {
		writeError(w, orders.ErrInternal, "failed to list orders", "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// writeError writes the stable error envelope from spec §7.
func writeError(w http.ResponseWriter, kind orders.ErrorKind, message, orderID string) {
	body := map[string]any{"error": kind, "message": message}
	if orderID != "" {
		body["orderId"] = orderID
	}
	writeJSON(w, kind.HTTPStatus(), body)
}
