package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cashbook-erp/cashbook/internal/balance"
	"github.com/cashbook-erp/cashbook/internal/coa"
	"github.com/cashbook-erp/cashbook/internal/correction"
	"github.com/cashbook-erp/cashbook/internal/journal"
	"github.com/cashbook-erp/cashbook/internal/platform/httpx"
	"github.com/cashbook-erp/cashbook/internal/receivable"
	"github.com/cashbook-erp/cashbook/internal/shared"
	"github.com/cashbook-erp/cashbook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Pool     *pgxpool.Pool
	Activity *shared.ActivityLogger

	COAHandler        *coa.Handler
	JournalHandler    *journal.Handler
	BalanceHandler    *balance.Handler
	CorrectionHandler *correction.Handler
	ReceivableHandler *receivable.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		if params.COAHandler != nil {
			params.COAHandler.MountRoutes(api)
		}
		if params.JournalHandler != nil {
			params.JournalHandler.MountRoutes(api)
		}
		if params.BalanceHandler != nil {
			params.BalanceHandler.MountRoutes(api)
		}
		if params.CorrectionHandler != nil {
			params.CorrectionHandler.MountRoutes(api)
		}
		if params.ReceivableHandler != nil {
			params.ReceivableHandler.MountRoutes(api)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", func(jr chi.Router) {
				params.JobHandler.MountRoutes(jr)
			})
		}
		if params.Activity != nil {
			api.Get("/activity", listActivity(params.Logger, params.Activity))
		}
	})

	return r
}

// listActivity serves the mutation audit trail, newest first.
func listActivity(logger *slog.Logger, activity *shared.ActivityLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		end := time.Now().UTC()
		start := end.AddDate(0, 0, -30)
		if raw := q.Get("start"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start must be YYYY-MM-DD")
				return
			}
			start = parsed
		}
		if raw := q.Get("end"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "end must be YYYY-MM-DD")
				return
			}
			end = shared.EndOfDay(parsed)
		}
		warehouseID, _ := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
		page, _ := strconv.Atoi(q.Get("page"))
		logs, err := activity.ListActivity(r.Context(), start, end, warehouseID, shared.NewPagination(page, 25, 0))
		if err != nil {
			logger.Error("list activity", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, logs)
	}
}
