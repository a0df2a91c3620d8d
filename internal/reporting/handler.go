package reporting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"golang.org/x/text/language"

	"github.com/academix-erp/academix/internal/platform/httpx"
)

// Handler exposes reporting endpoints. Statement queries fan out to the
// ledger, so they carry their own per-IP rate limit on top of the global one.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/reports/accounts/{accountID}/statement", h.statement)
		r.Get("/reports/accounts/{accountID}/statement.csv", h.statementCSV)
	})
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	accountID, from, to, ok := h.statementParams(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Statement(r.Context(), accountID, from, to)
	if err != nil {
		h.logger.Error("statement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) statementCSV(w http.ResponseWriter, r *http.Request) {
	accountID, from, to, ok := h.statementParams(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Statement(r.Context(), accountID, from, to)
	if err != nil {
		h.logger.Error("statement csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	tag := language.English
	if raw := r.URL.Query().Get("locale"); raw != "" {
		if parsed, err := language.Parse(raw); err == nil {
			tag = parsed
		}
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=statement.csv")
	if err := WriteStatementCSV(w, rows, tag); err != nil {
		h.logger.Error("statement csv write", slog.Any("error", err))
	}
}

func (h *Handler) statementParams(w http.ResponseWriter, r *http.Request) (int64, time.Time, time.Time, bool) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || accountID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "accountID must be a positive integer")
		return 0, time.Time{}, time.Time{}, false
	}
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
	return accountID, from, to, true
}
