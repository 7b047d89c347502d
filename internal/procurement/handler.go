package procurement

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Get("/", h.listPOs)
		r.Post("/", h.createPO)
		r.Get("/{id}", h.getPO)
		r.Delete("/{id}", h.deletePO)
		r.Post("/{id}/approve", h.approvePO)
		r.Post("/{id}/send", h.sendPO)
		r.Post("/{id}/complete", h.completePO)
		r.Post("/{id}/cancel", h.cancelPO)
		r.Post("/{id}/convert", h.convertPO)
	})
	r.Route("/grns", func(r chi.Router) {
		r.Get("/", h.listGRNs)
		r.Get("/{id}", h.getGRN)
		r.Delete("/{id}", h.deleteGRN)
		r.Post("/{id}/inspect", h.inspectGRN)
		r.Post("/{id}/approve", h.approveGRN)
		r.Post("/{id}/complete", h.completeGRN)
		r.Post("/{id}/reject", h.rejectGRN)
		r.Get("/{id}/payments", h.listPayments)
		r.Post("/{id}/payments", h.createPayment)
	})
	r.Route("/supplier-payments", func(r chi.Router) {
		r.Get("/{id}", h.getPayment)
		r.Put("/{id}", h.updatePayment)
		r.Delete("/{id}", h.deletePayment)
		r.Post("/{id}/approve", h.approvePayment)
		r.Post("/{id}/pay", h.payPayment)
	})
}

func (h *Handler) listPOs(w http.ResponseWriter, r *http.Request) {
	filter := POListFilter{}
	filter.SupplierID, _ = strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := POStatus(raw)
		filter.Status = &status
	}

	items, total, err := h.service.ListPOs(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"data":       items,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) getPO(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.GetPO(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var req CreatePORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	po, err := h.service.CreatePO(r.Context(), req, actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) deletePO(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePO(r.Context(), urlID(r), actorID(r)); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approvePO(w http.ResponseWriter, r *http.Request) {
	h.respondPOTransition(w, r, h.service.ApprovePO)
}

func (h *Handler) sendPO(w http.ResponseWriter, r *http.Request) {
	h.respondPOTransition(w, r, h.service.MarkPOSent)
}

func (h *Handler) completePO(w http.ResponseWriter, r *http.Request) {
	h.respondPOTransition(w, r, h.service.CompletePO)
}

func (h *Handler) cancelPO(w http.ResponseWriter, r *http.Request) {
	h.respondPOTransition(w, r, h.service.CancelPO)
}

func (h *Handler) convertPO(w http.ResponseWriter, r *http.Request) {
	var req ConvertPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	grn, err := h.service.ConvertPOToGRN(r.Context(), urlID(r), req, actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grn)
}

func (h *Handler) respondPOTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, userID int64) (*PurchaseOrder, error)) {
	po, err := fn(r.Context(), urlID(r), actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) listGRNs(w http.ResponseWriter, r *http.Request) {
	filter := GRNListFilter{}
	filter.SupplierID, _ = strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := GRNStatus(raw)
		filter.Status = &status
	}

	items, total, err := h.service.ListGRNs(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"data":       items,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) getGRN(w http.ResponseWriter, r *http.Request) {
	grn, err := h.service.GetGRN(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) deleteGRN(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteGRN(r.Context(), urlID(r), actorID(r)); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) inspectGRN(w http.ResponseWriter, r *http.Request) {
	var req InspectGRNRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	grn, err := h.service.InspectGRN(r.Context(), urlID(r), req, actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) approveGRN(w http.ResponseWriter, r *http.Request) {
	h.respondGRNTransition(w, r, h.service.ApproveGRN)
}

func (h *Handler) completeGRN(w http.ResponseWriter, r *http.Request) {
	h.respondGRNTransition(w, r, h.service.CompleteGRN)
}

func (h *Handler) rejectGRN(w http.ResponseWriter, r *http.Request) {
	h.respondGRNTransition(w, r, h.service.RejectGRN)
}

func (h *Handler) respondGRNTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, userID int64) (*GRN, error)) {
	grn, err := fn(r.Context(), urlID(r), actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListSupplierPayments(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": payments})
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req CreateSupplierPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.CreateSupplierPayment(r.Context(), urlID(r), req, actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetSupplierPayment(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	var req UpdateSupplierPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.UpdateSupplierPayment(r.Context(), urlID(r), req, actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSupplierPayment(r.Context(), urlID(r), actorID(r)); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approvePayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.ApproveSupplierPayment(r.Context(), urlID(r), actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) payPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.MarkSupplierPaymentPaid(r.Context(), urlID(r), actorID(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func urlID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

// actorID reads the acting user from the X-User-ID header. Access
// control is handled upstream of this service.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id
}
