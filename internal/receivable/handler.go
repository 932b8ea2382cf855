package receivable

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

// Handler exposes employee receivables over HTTP.
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

// MountRoutes registers receivable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/receivables", h.list)
	r.Post("/receivables", h.create)
	r.Get("/receivables/{id}", h.get)
	r.Post("/receivables/{id}/payments", h.pay)
	r.Delete("/receivables/{id}", h.delete)
}

type receivableForm struct {
	EmployeeID   int64  `json:"employee_id"`
	EmployeeName string `json:"employee_name" validate:"required,min=3,max=255"`
	Amount       string `json:"amount" validate:"required"`
	Description  string `json:"description" validate:"max=500"`
	WarehouseID  int64  `json:"warehouse_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form receivableForm
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
	created, err := h.service.Create(r.Context(), CreateInput{
		EmployeeID:   form.EmployeeID,
		EmployeeName: form.EmployeeName,
		Amount:       amount,
		Description:  form.Description,
		WarehouseID:  form.WarehouseID,
	})
	if err != nil {
		h.logger.Warn("create receivable", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type paymentForm struct {
	Amount              string `json:"amount" validate:"required"`
	CashAccountID       int64  `json:"cash_account_id" validate:"required"`
	ReceivableAccountID int64  `json:"receivable_account_id" validate:"required"`
	WarehouseID         int64  `json:"warehouse_id"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receivable id")
		return
	}
	var form paymentForm
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
	updated, err := h.service.Pay(r.Context(), PayInput{
		ReceivableID:        id,
		Amount:              amount,
		CashAccountID:       form.CashAccountID,
		ReceivableAccountID: form.ReceivableAccountID,
		WarehouseID:         form.WarehouseID,
		UserID:              actor.UserID,
	}, h.now())
	if err != nil {
		h.logger.Warn("receivable payment", slog.Int64("receivable_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receivable id")
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receivable id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "receivable deleted"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	warehouseID, _ := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	filter := ListFilter{
		WarehouseID: warehouseID,
		Search:      r.URL.Query().Get("search"),
		Page:        shared.NewPagination(page, 10, 0),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid status")
			return
		}
		filter.Status = &status
	}
	receivables, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receivables)
}
