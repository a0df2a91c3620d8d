package vouchers

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
	"github.com/academix-erp/academix/internal/shared"
)

// Handler exposes voucher endpoints.
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

// MountRoutes registers voucher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/vouchers", h.createDraft)
	r.Get("/vouchers/{id}", h.getVoucher)
	r.Post("/vouchers/{id}/post", h.postVoucher)
	r.Post("/vouchers/{id}/cancel", h.cancelVoucher)
	r.Get("/vouchers/next-number", h.nextNumber)
}

type voucherLineRequest struct {
	AccountID    int64   `json:"account_id" validate:"required"`
	CostCenterID *int64  `json:"cost_center_id"`
	Debit        float64 `json:"debit" validate:"gte=0"`
	Credit       float64 `json:"credit" validate:"gte=0"`
	LineType     string  `json:"line_type" validate:"omitempty,oneof=CASH BANK RECEIVABLE OTHER"`
}

type voucherRequest struct {
	Type     string               `json:"type" validate:"required,oneof=RECEIPT PAYMENT"`
	Date     time.Time            `json:"date" validate:"required"`
	Payee    string               `json:"payee" validate:"required"`
	BranchID *int64               `json:"branch_id"`
	Lines    []voucherLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req voucherRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	lines := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lineType := LineType(l.LineType)
		if lineType == "" {
			lineType = LineTypeOther
		}
		lines = append(lines, LineInput{
			AccountID:    l.AccountID,
			CostCenterID: l.CostCenterID,
			Debit:        l.Debit,
			Credit:       l.Credit,
			LineType:     lineType,
		})
	}
	voucher, err := h.service.CreateDraft(r.Context(), DraftInput{
		Type:      VoucherType(req.Type),
		Date:      req.Date,
		Payee:     req.Payee,
		BranchID:  req.BranchID,
		CreatedBy: actor.ID,
		Lines:     lines,
	})
	if err != nil {
		h.respondDomainError(w, "create voucher", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, voucher)
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	voucher, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, "get voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) postVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	voucher, err := h.service.Post(r.Context(), id, actor.ID)
	if err != nil {
		h.respondDomainError(w, "post voucher", err)
		return
	}
	h.metrics.CountPosting("voucher")
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) cancelVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	voucher, err := h.service.Cancel(r.Context(), id, actor.ID)
	if err != nil {
		h.respondDomainError(w, "cancel voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	t := VoucherType(r.URL.Query().Get("type"))
	number, err := h.service.NextNumber(r.Context(), t)
	if err != nil {
		h.respondDomainError(w, "next number", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"number": number})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrVoucherNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotDraft), errors.Is(err, ErrNotPosted), errors.Is(err, ErrNumberConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrInvalidType):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Voucher", err.Error())
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
