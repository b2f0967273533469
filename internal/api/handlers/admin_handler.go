package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"lpg-service/internal/models"
	"lpg-service/internal/service"
)

type AdminHandler struct {
	orders  *service.OrderCoordinator
	catalog *service.CatalogService
	logger  *zap.Logger
}

func NewAdminHandler(orders *service.OrderCoordinator, catalog *service.CatalogService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, catalog: catalog, logger: logger}
}

type StatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (h *AdminHandler) Orders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(r.URL.Query().Get("status"))

	orders, err := h.orders.ListAll(r.Context(), actor(r), status, queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, h.logger, err, "load orders")
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req StatusRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	order, err := h.orders.AdvanceStatus(r.Context(), actor(r), id, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, err, "update order status")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.catalog.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "load dashboard")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) StockAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.catalog.OpenAlerts(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "load stock alerts")
		return
	}

	writeJSON(w, http.StatusOK, alerts)
}

func (h *AdminHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalog.ResolveAlert(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, h.logger, err, "resolve stock alert")
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}
