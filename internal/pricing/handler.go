package pricing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/academix-erp/academix/internal/platform/httpx"
)

// Handler exposes price book endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/courses/{courseID}/prices", h.listPrices)
	r.Post("/courses/{courseID}/prices", h.createPrice)
	r.Get("/courses/{courseID}/prices/resolve", h.resolvePrice)
}

type priceRequest struct {
	BranchID          *int64  `json:"branch_id"`
	DeliveryType      *string `json:"delivery_type"`
	Mode              string  `json:"pricing_mode" validate:"required,oneof=COURSE_TOTAL PER_SESSION BOTH"`
	Price             float64 `json:"price" validate:"gte=0"`
	SessionPrice      float64 `json:"session_price" validate:"gte=0"`
	SessionsCount     int     `json:"sessions_count" validate:"gte=0"`
	AllowInstallments bool    `json:"allow_installments"`
	MinDownPayment    float64 `json:"min_down_payment" validate:"gte=0"`
	MaxInstallments   int     `json:"max_installments" validate:"gte=0"`
	IsActive          bool    `json:"is_active"`
}

func (h *Handler) listPrices(w http.ResponseWriter, r *http.Request) {
	courseID, ok := parseCourseID(w, r)
	if !ok {
		return
	}
	prices, err := h.service.List(r.Context(), courseID)
	if err != nil {
		h.logger.Error("list prices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"prices": prices})
}

func (h *Handler) createPrice(w http.ResponseWriter, r *http.Request) {
	courseID, ok := parseCourseID(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	price, err := h.service.Create(r.Context(), CoursePrice{
		CourseID:          courseID,
		BranchID:          req.BranchID,
		DeliveryType:      req.DeliveryType,
		Mode:              PricingMode(req.Mode),
		Price:             req.Price,
		SessionPrice:      req.SessionPrice,
		SessionsCount:     req.SessionsCount,
		AllowInstallments: req.AllowInstallments,
		MinDownPayment:    req.MinDownPayment,
		MaxInstallments:   req.MaxInstallments,
		IsActive:          req.IsActive,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidMode) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Price", err.Error())
			return
		}
		h.logger.Error("create price", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, price)
}

func (h *Handler) resolvePrice(w http.ResponseWriter, r *http.Request) {
	courseID, ok := parseCourseID(w, r)
	if !ok {
		return
	}
	var branchID *int64
	if raw := r.URL.Query().Get("branch_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Branch", "branch_id must be a positive integer")
			return
		}
		branchID = &parsed
	}
	price, err := h.service.Resolve(r.Context(), courseID, branchID, r.URL.Query().Get("delivery_type"))
	if err != nil {
		if errors.Is(err, ErrPriceNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("resolve price", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, price)
}

func parseCourseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "courseID must be a positive integer")
		return 0, false
	}
	return id, true
}
