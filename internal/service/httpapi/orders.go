package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.CreateOrder(r.Context(), req.CustomerID, req.lines())
	if err != nil {
		h.failCreate(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// deleteOrder отвечает удалённым заказом, чтобы клиент видел, какие остатки вернулись.
func (h *handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) orderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	status, err := h.orders.GetOrderStatus(r.Context(), orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: orderID, PaymentStatus: string(status)})
}

func (h *handler) orderTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.orders.OrderTimeline(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponses(events))
}

func (h *handler) customerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrdersForCustomer(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}
