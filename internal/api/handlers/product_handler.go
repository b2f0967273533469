package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"lpg-service/internal/models"
	"lpg-service/internal/service"
)

type ProductHandler struct {
	catalog       *service.CatalogService
	maxImageBytes int64
	logger        *zap.Logger
}

func NewProductHandler(catalog *service.CatalogService, maxImageBytes int64, logger *zap.Logger) *ProductHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = 5 << 20
	}
	return &ProductHandler{catalog: catalog, maxImageBytes: maxImageBytes, logger: logger}
}

type StockAdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func isAdmin(r *http.Request) bool {
	p, ok := PrincipalFrom(r.Context())
	return ok && p.IsAdmin()
}

// List serves the catalog. Inactive products are only listed for admins
// asking for them.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeInactive, _ := strconv.ParseBool(q.Get("include_inactive"))

	page, err := h.catalog.List(r.Context(), service.ProductQuery{
		Search:          q.Get("search"),
		Option:          models.FulfillmentOption(q.Get("option")),
		IncludeInactive: includeInactive && isAdmin(r),
		SortBy:          q.Get("sort_by"),
		SortOrder:       q.Get("sort_order"),
		Page:            queryInt(r, "page"),
		Limit:           queryInt(r, "limit"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "load products")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.catalog.Get(r.Context(), id, isAdmin(r))
	if err != nil {
		writeServiceError(w, h.logger, err, "load product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	p, err := h.catalog.Create(r.Context(), actor(r), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "create product")
		return
	}

	w.Header().Set("Location", "/api/products/"+p.ID.String())
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req service.ProductInput
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	p, err := h.catalog.Update(r.Context(), actor(r), id, req)
	if err != nil {
		writeServiceError(w, h.logger, err, "update product")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalog.SoftDelete(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, h.logger, err, "delete product")
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req StockAdjustRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	p, err := h.catalog.AdjustStock(r.Context(), actor(r), id, req.Delta, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err, "update stock")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) StockLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	ops, err := h.catalog.StockLedger(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "load stock history")
		return
	}

	writeJSON(w, http.StatusOK, ops)
}

// UploadImage takes a multipart form with the picture in the "image" field.
// The content type is sniffed from the bytes, not trusted from the client.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+1<<20)
	file, _, err := r.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "image is too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "image file is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read image", nil)
		return
	}

	p, err := h.catalog.UploadImage(r.Context(), actor(r), id, http.DetectContentType(data), data)
	if err != nil {
		writeServiceError(w, h.logger, err, "upload image")
		return
	}

	writeJSON(w, http.StatusOK, p)
}
