package correction

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/platform/httpx"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Handler exposes balance corrections over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), now: time.Now}
}

// MountRoutes registers correction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/corrections", h.list)
	r.Post("/corrections", h.create)
	r.Get("/corrections/{id}", h.get)
	r.Delete("/corrections/{id}", h.delete)
}

type correctionForm struct {
	EntryID     int64  `json:"journal_id" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Note        string `json:"note" validate:"max=500"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	WarehouseID int64  `json:"warehouse_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form correctionForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(form.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a number")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	created, err := h.service.Create(r.Context(), CreateInput{
		EntryID:     form.EntryID,
		Amount:      amount,
		Note:        form.Note,
		ImageURL:    form.ImageURL,
		WarehouseID: form.WarehouseID,
		UserID:      actor.UserID,
	}, h.now())
	if err != nil {
		h.logger.Warn("create correction", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid correction id")
		return
	}
	correction, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, correction)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid correction id")
		return
	}
	if err := h.service.Delete(r.Context(), id, h.now()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "correction deleted"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	warehouseID, _ := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	filter := ListFilter{
		WarehouseID: warehouseID,
		Page:        shared.NewPagination(page, 10, 0),
	}
	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start must be YYYY-MM-DD")
			return
		}
		filter.Start = start
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "end must be YYYY-MM-DD")
			return
		}
		filter.End = shared.EndOfDay(end)
	}
	corrections, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, corrections)
}
