package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/draftea/order-saga/order-service/application"
	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/models"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// OrderHandlers contains order HTTP handlers
type OrderHandlers struct {
	manager *application.OrderManager
	logger  zerolog.Logger
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(manager *application.OrderManager, logger zerolog.Logger) *OrderHandlers {
	return &OrderHandlers{
		manager: manager,
		logger:  logger.With().Str("component", "order_http").Logger(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateOrder handles order submission
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.NewOrderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.manager.NewOrder(r.Context(), &cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, order.Snapshot())
}

// GetOrder handles order retrieval
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.manager.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order.Snapshot())
}

// ListOrders handles listing the orders of a customer
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.manager.ListOrders(r.Context(), r.URL.Query().Get("customer_ref"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	snapshots := make([]domain.OrderSnapshot, len(orders))
	for i, order := range orders {
		snapshots[i] = order.Snapshot()
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

// CancelOrder handles cancellation. The current state is returned whether
// or not the cancel edge existed.
func (h *OrderHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.manager.CancelOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order.Snapshot())
}

// PickUpOrder marks an allocated order as picked up
func (h *OrderHandlers) PickUpOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	if err := h.manager.PickUp(r.Context(), orderID); err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.manager.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order.Snapshot())
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Post("/{id}/pickup", h.PickUpOrder)
	})
}

func (h *OrderHandlers) orderID(w http.ResponseWriter, r *http.Request) (models.ID, bool) {
	orderID, err := models.NewID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return "", false
	}
	return orderID, true
}

func (h *OrderHandlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrency):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidOrder):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *OrderHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
