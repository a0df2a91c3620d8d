package ar

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/academix-erp/academix/internal/observability"
	"github.com/academix-erp/academix/internal/platform/httpx"
	"github.com/academix-erp/academix/internal/pricing"
	"github.com/academix-erp/academix/internal/settings"
	"github.com/academix-erp/academix/internal/shared"
)

// Handler exposes invoice and payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers receivables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.createInvoice)
	r.Get("/invoices/{id}", h.getInvoice)
	r.Post("/invoices/{id}/schedule", h.regenerateSchedule)
	r.Post("/invoices/{id}/payments", h.recordPayment)
	r.Post("/payments/{id}/voucher", h.reissueVoucher)
}

type invoiceRequest struct {
	StudentID        int64   `json:"student_id" validate:"required"`
	CourseID         int64   `json:"course_id" validate:"required"`
	BranchID         *int64  `json:"branch_id"`
	DeliveryType     string  `json:"delivery_type"`
	ManualDiscount   float64 `json:"manual_discount" validate:"gte=0"`
	PromoDiscount    float64 `json:"promo_discount" validate:"gte=0"`
	TaxRate          float64 `json:"tax_rate" validate:"gte=0"`
	DownPayment      float64 `json:"down_payment" validate:"gte=0"`
	InstallmentCount int     `json:"installment_count" validate:"gte=0"`
	Interval         string  `json:"interval" validate:"omitempty,oneof=WEEKLY BIWEEKLY MONTHLY QUARTERLY"`
	StartDate        string  `json:"start_date"`
}

type scheduleRequest struct {
	InstallmentCount int    `json:"installment_count" validate:"required,gte=1"`
	Interval         string `json:"interval" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY QUARTERLY"`
	StartDate        string `json:"start_date" validate:"required"`
}

type paymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required"`
	PaidAt string  `json:"paid_at"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, ok := parseDate(w, req.StartDate, req.InstallmentCount > 0)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	detail, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		StudentID:        req.StudentID,
		CourseID:         req.CourseID,
		BranchID:         req.BranchID,
		DeliveryType:     req.DeliveryType,
		ManualDiscount:   req.ManualDiscount,
		PromoDiscount:    req.PromoDiscount,
		TaxRate:          req.TaxRate,
		DownPayment:      req.DownPayment,
		InstallmentCount: req.InstallmentCount,
		Interval:         Interval(req.Interval),
		StartDate:        start,
		CreatedBy:        actor.ID,
	})
	if err != nil {
		h.respondDomainError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) regenerateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, ok := parseDate(w, req.StartDate, true)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	installments, err := h.service.RegenerateSchedule(r.Context(), id, req.InstallmentCount, Interval(req.Interval), start, actor.ID)
	if err != nil {
		h.respondDomainError(w, "regenerate schedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"installments": installments})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var paidAt time.Time
	if req.PaidAt != "" {
		parsed, err := time.Parse("2006-01-02", req.PaidAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "paid_at must be YYYY-MM-DD")
			return
		}
		paidAt = parsed
	}
	actor := shared.ActorFromContext(r.Context())
	receipt, err := h.service.RecordPayment(r.Context(), PaymentInput{
		InvoiceID:  id,
		Amount:     req.Amount,
		Method:     req.Method,
		ReceivedBy: actor.ID,
		PaidAt:     paidAt,
	})
	if err != nil {
		h.respondDomainError(w, "record payment", err)
		return
	}
	h.metrics.CountPayment()
	if receipt.VoucherNumber != "" {
		h.metrics.CountPosting("voucher")
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) reissueVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	number, err := h.service.ReissueReceiptVoucher(r.Context(), id, actor.ID)
	if err != nil {
		h.respondDomainError(w, "reissue voucher", err)
		return
	}
	h.metrics.CountPosting("voucher")
	httpx.JSON(w, http.StatusOK, map[string]string{"voucher_number": number})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrPaymentNotFound), errors.Is(err, pricing.ErrPriceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrExcessPayment):
		httpx.Problem(w, http.StatusConflict, "Excess Payment", err.Error())
	case errors.Is(err, ErrVoucherAlreadyIssued):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidScheduleParams), errors.Is(err, ErrInstallmentsNotAllowed):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Schedule", err.Error())
	case errors.Is(err, settings.ErrConfigurationMissing):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Configuration Missing", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseDate(w http.ResponseWriter, raw string, required bool) (time.Time, bool) {
	if raw == "" {
		if required {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "start_date is required")
			return time.Time{}, false
		}
		return time.Time{}, true
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "start_date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return parsed, true
}
