package coa

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/platform/httpx"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Handler exposes the chart of accounts registry over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Post("/accounts", h.create)
	r.Get("/accounts/{id}", h.get)
	r.Put("/accounts/{id}", h.update)
	r.Delete("/accounts/{id}", h.delete)
	r.Delete("/accounts", h.deleteBatch)
	r.Get("/account-categories", h.categories)
	r.Put("/warehouses/{warehouse}/accounts/{id}/binding", h.toggleBinding)
	r.Get("/accounts-by-category", h.byCategories)
}

type accountForm struct {
	CategoryID      int64  `json:"category_id"`
	Name            string `json:"name" validate:"required,min=3,max=255"`
	WarehouseID     *int64 `json:"warehouse_id"`
	StartingBalance string `json:"starting_balance"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form accountForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	starting := decimal.Zero
	if form.StartingBalance != "" {
		parsed, err := decimal.NewFromString(form.StartingBalance)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "starting_balance is not a number")
			return
		}
		starting = parsed
	}
	account, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		CategoryID:      form.CategoryID,
		Name:            form.Name,
		WarehouseID:     form.WarehouseID,
		StartingBalance: starting,
	})
	if err != nil {
		h.logger.Warn("create account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	var form accountForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	starting := decimal.Zero
	if form.StartingBalance != "" {
		parsed, err := decimal.NewFromString(form.StartingBalance)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "starting_balance is not a number")
			return
		}
		starting = parsed
	}
	account, err := h.service.UpdateAccount(r.Context(), UpdateAccountInput{ID: id, Name: form.Name, StartingBalance: starting})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

type deleteBatchForm struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	var form deleteBatchForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	deleted, err := h.service.DeleteAccounts(r.Context(), form.IDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"deleted_count": deleted})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Page:   shared.NewPagination(page, 10, 0),
	}
	accounts, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) toggleBinding(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouse"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	account, err := h.service.ToggleWarehouseBinding(r.Context(), warehouseID, accountID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) byCategories(w http.ResponseWriter, r *http.Request) {
	var categoryIDs []int64
	for _, raw := range strings.Split(r.URL.Query().Get("category_ids"), ",") {
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid category id list")
			return
		}
		categoryIDs = append(categoryIDs, id)
	}
	var warehouseID *int64
	if raw := r.URL.Query().Get("warehouse_id"); raw != "" && raw != "all" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
			return
		}
		warehouseID = &id
	}
	accounts, err := h.service.ByCategories(r.Context(), categoryIDs, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}
