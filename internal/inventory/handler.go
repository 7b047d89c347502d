package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/low", h.lowStock)
		r.Get("/{productID}/transactions", h.history)
		r.Post("/receive", h.receive)
		r.Post("/adjust", h.adjust)
		r.Post("/transfer", h.transfer)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	locationID, _ := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stocks, total, err := h.service.ListStock(r.Context(), locationID, page, limit)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"data":       stocks,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": stocks})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := h.service.History(r.Context(), productID, limit)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": txs})
}

type receiveRequest struct {
	LocationID  int64         `json:"location_id"`
	Lines       []ReceiptLine `json:"lines"`
	Reference   string        `json:"reference"`
	PerformedBy int64         `json:"performed_by"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	txs, err := h.service.Receive(r.Context(), req.LocationID, req.Lines, TransactionStockIn,
		Reference{Type: "manual", Number: req.Reference}, req.PerformedBy)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]interface{}{"transactions": txs})
}

type adjustRequest struct {
	ProductID   int64   `json:"product_id"`
	LocationID  int64   `json:"location_id"`
	Delta       float64 `json:"delta"`
	Type        string  `json:"type"`
	Reason      string  `json:"reason"`
	PerformedBy int64   `json:"performed_by"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	txType := TransactionType(req.Type)
	if req.Type == "" {
		txType = TransactionAdjustment
	}
	tx, err := h.service.Adjust(r.Context(), req.ProductID, req.LocationID, req.Delta, txType, req.Reason, req.PerformedBy)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

type transferRequest struct {
	ProductID      int64   `json:"product_id"`
	FromLocationID int64   `json:"from_location_id"`
	ToLocationID   int64   `json:"to_location_id"`
	Quantity       float64 `json:"quantity"`
	PerformedBy    int64   `json:"performed_by"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.Transfer(r.Context(), req.ProductID, req.FromLocationID, req.ToLocationID, req.Quantity, req.PerformedBy); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}
