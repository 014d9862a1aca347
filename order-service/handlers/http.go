package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/orderhub/order-system/order-service/application"
	"github.com/orderhub/order-system/order-service/domain"
	"github.com/pkg/errors"
)

const unexpectedErrorMessage = "An unexpected error occurred"

// ErrorResponse is the structured error body returned by the API
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details"`
}

// OrderHandlers contains order HTTP handlers
type OrderHandlers struct {
	createOrder        *application.CreateOrder
	getOrderStatus     *application.GetOrderStatus
	listOrdersByStatus *application.ListOrdersByStatus
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(
	createOrder *application.CreateOrder,
	getOrderStatus *application.GetOrderStatus,
	listOrdersByStatus *application.ListOrdersByStatus,
) *OrderHandlers {
	return &OrderHandlers{
		createOrder:        createOrder,
		getOrderStatus:     getOrderStatus,
		listOrdersByStatus: listOrdersByStatus,
	}
}

// CreateOrder handles order creation requests
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.CreateOrderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	response, err := h.createOrder.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, unexpectedErrorMessage, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// GetOrderStatus handles single order status requests
func (h *OrderHandlers) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	query := &application.GetOrderStatusQuery{
		OrderID: chi.URLParam(r, "orderID"),
	}

	projection, err := h.getOrderStatus.Execute(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error(), err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, unexpectedErrorMessage, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, projection)
}

// ListOrdersByStatus handles status-filtered order list requests
func (h *OrderHandlers) ListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	query := &application.ListOrdersByStatusQuery{
		Status: chi.URLParam(r, "status"),
	}

	projections, err := h.listOrdersByStatus.Execute(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, unexpectedErrorMessage, err.Error())
		return
	}

	if projections == nil {
		projections = []*domain.OrderProjection{}
	}

	writeJSON(w, http.StatusOK, projections)
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/status/{status}", h.ListOrdersByStatus)
		r.Get("/{orderID}/status", h.GetOrderStatus)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{Message: message, Details: details})
}
