package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpg-service/internal/models"
	"lpg-service/internal/service"
)

type CartHandler struct {
	ledger *service.CartLedger
	logger *zap.Logger
}

func NewCartHandler(ledger *service.CartLedger, logger *zap.Logger) *CartHandler {
	return &CartHandler{ledger: ledger, logger: logger}
}

type AddLineRequest struct {
	ProductID uuid.UUID                `json:"product_id"`
	Quantity  int                      `json:"quantity"`
	Option    models.FulfillmentOption `json:"option"`
}

type EditLineRequest struct {
	Quantity int                      `json:"quantity"`
	Option   models.FulfillmentOption `json:"option"`
}

type SelectionRequest struct {
	LineIDs []uuid.UUID `json:"line_ids"`
}

type SelectionTotalResponse struct {
	Total decimal.Decimal `json:"total"`
	Lines int             `json:"lines"`
}

func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	lines, err := h.ledger.ListLines(r.Context(), actor(r).UserID)
	if err != nil {
		writeServiceError(w, h.logger, err, "load cart")
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	line, err := h.ledger.AddLine(r.Context(), actor(r).UserID, req.ProductID, req.Quantity, req.Option)
	if err != nil {
		writeServiceError(w, h.logger, err, "add to cart")
		return
	}

	writeJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) EditLine(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req EditLineRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	line, err := h.ledger.EditLine(r.Context(), actor(r).UserID, id, req.Quantity, req.Option)
	if err != nil {
		writeServiceError(w, h.logger, err, "update cart item")
		return
	}

	writeJSON(w, http.StatusOK, line)
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.ledger.RemoveLine(r.Context(), actor(r).UserID, id); err != nil {
		writeServiceError(w, h.logger, err, "remove cart item")
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (h *CartHandler) SelectionTotal(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	total, n, err := h.ledger.SelectionTotal(r.Context(), actor(r).UserID, req.LineIDs)
	if err != nil {
		writeServiceError(w, h.logger, err, "calculate total")
		return
	}

	writeJSON(w, http.StatusOK, SelectionTotalResponse{Total: total, Lines: n})
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.ledger.Clear(r.Context(), actor(r).UserID)
	if err != nil {
		writeServiceError(w, h.logger, err, "clear cart")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}
