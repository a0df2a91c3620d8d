package accounting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/academix-erp/academix/internal/observability"
	"github.com/academix-erp/academix/internal/platform/httpx"
	"github.com/academix-erp/academix/internal/shared"
)

// Handler exposes ledger endpoints. Journals can be drafted, edited, and
// posted here; voiding has no route because it is only reachable through
// voucher cancellation.
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

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.listAccounts)
	r.Get("/accounts/{id}/statement", h.accountStatement)
	r.Get("/cost-centers", h.listCostCenters)
	r.Post("/journals", h.createDraft)
	r.Get("/journals/{id}", h.getJournal)
	r.Put("/journals/{id}", h.updateDraft)
	r.Delete("/journals/{id}", h.deleteDraft)
	r.Post("/journals/{id}/post", h.postJournal)
}

type journalLineRequest struct {
	AccountID    int64   `json:"account_id" validate:"required"`
	CostCenterID *int64  `json:"cost_center_id"`
	Debit        float64 `json:"debit" validate:"gte=0"`
	Credit       float64 `json:"credit" validate:"gte=0"`
}

type journalRequest struct {
	Reference     string               `json:"reference"`
	ReferenceType string               `json:"reference_type"`
	ReferenceID   int64                `json:"reference_id"`
	Date          time.Time            `json:"date" validate:"required"`
	BranchID      *int64               `json:"branch_id"`
	Lines         []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.AccountTree(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": tree})
}

func (h *Handler) listCostCenters(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.CostCenterTree(r.Context())
	if err != nil {
		h.logger.Error("list cost centers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cost_centers": tree})
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	journal, err := h.service.CreateDraft(r.Context(), input)
	if err != nil {
		h.respondDomainError(w, "create draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, journal)
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	journal, err := h.service.GetJournal(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	journal, err := h.service.UpdateDraft(r.Context(), id, input)
	if err != nil {
		h.respondDomainError(w, "update draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(r.Context(), id); err != nil {
		h.respondDomainError(w, "delete draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	journal, err := h.service.Post(r.Context(), PostInput{JournalID: id, ActorID: actor.ID})
	if err != nil {
		h.respondDomainError(w, "post journal", err)
		return
	}
	h.metrics.CountPosting("journal")
	httpx.JSON(w, http.StatusOK, journal)
}

func (h *Handler) accountStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	from, to := statementRange(r)
	rows, err := h.service.AccountStatement(r.Context(), id, from, to)
	if err != nil {
		h.respondDomainError(w, "account statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (DraftInput, bool) {
	var req journalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return DraftInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return DraftInput{}, false
	}
	if req.Reference == "" {
		req.Reference = "JRN-" + uuid.NewString()
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, LineInput{
			AccountID:    l.AccountID,
			CostCenterID: l.CostCenterID,
			Debit:        l.Debit,
			Credit:       l.Credit,
		})
	}
	return DraftInput{
		Reference:     req.Reference,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Date:          req.Date,
		BranchID:      req.BranchID,
		Lines:         lines,
	}, true
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrJournalNotFound), errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrImmutablePosted), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines), errors.Is(err, ErrAccountInactive):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Journal", err.Error())
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

func statementRange(r *http.Request) (time.Time, time.Time) {
	from := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Now().AddDate(1, 0, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			to = parsed
		}
	}
	return from, to
}
