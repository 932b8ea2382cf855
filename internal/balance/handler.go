package balance

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cashbook-erp/cashbook/internal/platform/httpx"
)

// Handler exposes balance reads and reports over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers balance and report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts/{id}/balance", h.accountBalance)
	r.Get("/accounts/{id}/history", h.accountHistory)
	r.Get("/balances", h.warehouseBalances)
	r.Get("/reports/profit-and-loss", h.profitAndLoss)
	r.Get("/reports/equity", h.equity)
	r.Get("/reports/cashflow", h.cashflow)
	r.Get("/dashboard", h.dashboard)
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	date, ok := h.queryDate(w, r, "date", h.now())
	if !ok {
		return
	}
	amount, err := h.service.BalanceAsOf(r.Context(), id, date, h.now())
	if err != nil {
		h.logger.Warn("account balance", slog.Int64("account_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"date":    date.Format("2006-01-02"),
		"balance": amount.String(),
	})
}

func (h *Handler) accountHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	start, end, ok := h.queryRange(w, r)
	if !ok {
		return
	}
	history, err := h.service.History(r.Context(), id, start, end)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) warehouseBalances(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := h.queryWarehouse(w, r)
	if !ok {
		return
	}
	date, ok := h.queryDate(w, r, "date", h.now())
	if !ok {
		return
	}
	balances, err := h.service.BalancesForWarehouse(r.Context(), warehouseID, date, h.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := h.queryWarehouse(w, r)
	if !ok {
		return
	}
	start, end, ok := h.queryRange(w, r)
	if !ok {
		return
	}
	report, err := h.service.ProfitAndLoss(r.Context(), warehouseID, start, end)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) equity(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := h.queryWarehouse(w, r)
	if !ok {
		return
	}
	date, ok := h.queryDate(w, r, "date", h.now())
	if !ok {
		return
	}
	report, err := h.service.Equity(r.Context(), warehouseID, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) cashflow(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := h.queryWarehouse(w, r)
	if !ok {
		return
	}
	start, end, ok := h.queryRange(w, r)
	if !ok {
		return
	}
	report, err := h.service.Cashflow(r.Context(), warehouseID, start, end)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := h.queryWarehouse(w, r)
	if !ok {
		return
	}
	date, ok := h.queryDate(w, r, "date", h.now())
	if !ok {
		return
	}
	dashboard, err := h.service.Dashboard(r.Context(), warehouseID, date, h.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) queryDate(w http.ResponseWriter, r *http.Request, param string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return fallback, true
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", param+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (h *Handler) queryRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	start, ok := h.queryDate(w, r, "start", h.now())
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := h.queryDate(w, r, "end", h.now())
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "end precedes start")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *Handler) queryWarehouse(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	raw := r.URL.Query().Get("warehouse_id")
	if raw == "" || raw == "all" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return nil, false
	}
	return &id, true
}
