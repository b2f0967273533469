package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lpg-service/internal/models"
	"lpg-service/internal/service"
)

type OrderHandler struct {
	orders    *service.OrderCoordinator
	locations *service.LocationService
	logger    *zap.Logger
}

func NewOrderHandler(orders *service.OrderCoordinator, locations *service.LocationService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, locations: locations, logger: logger}
}

type DeleteHistoryRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids"`
}

type LocationRequest struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Accuracy  float64    `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	order, err := h.orders.SubmitOrder(r.Context(), actor(r).UserID, req)
	if err != nil {
		writeServiceError(w, h.logger, err, "place order")
		return
	}

	w.Header().Set("Location", "/api/orders/"+order.ID.String())
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), actor(r).UserID)
	if err != nil {
		writeServiceError(w, h.logger, err, "load orders")
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), actor(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "load order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.Cancel(r.Context(), actor(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "cancel order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	var req DeleteHistoryRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	n, err := h.orders.DeleteHistory(r.Context(), actor(r).UserID, req.OrderIDs)
	if err != nil {
		writeServiceError(w, h.logger, err, "delete order history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

// Locations returns the delivery trail, or only the newest sample with
// ?latest=true.
func (h *OrderHandler) Locations(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if latest, _ := strconv.ParseBool(r.URL.Query().Get("latest")); latest {
		sample, err := h.locations.Latest(r.Context(), actor(r), id)
		if err != nil {
			writeServiceError(w, h.logger, err, "load location")
			return
		}
		writeJSON(w, http.StatusOK, sample)
		return
	}

	trail, err := h.locations.History(r.Context(), actor(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "load locations")
		return
	}

	writeJSON(w, http.StatusOK, trail)
}

func (h *OrderHandler) RecordLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req LocationRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	sample := &models.LocationSample{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
	}
	if req.Timestamp != nil {
		sample.RecordedAt = req.Timestamp.UTC()
	}

	if err := h.locations.Record(r.Context(), id, sample); err != nil {
		writeServiceError(w, h.logger, err, "record location")
		return
	}

	writeJSON(w, http.StatusCreated, sample)
}
