package journal

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

// Handler exposes the journal ledger over HTTP.
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

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/journals", h.list)
	r.Post("/journals", h.post)
	r.Get("/journals/{id}", h.get)
	r.Patch("/journals/{id}", h.update)
	r.Delete("/journals/{id}", h.delete)
	r.Post("/journals/transfer", h.transfer)
	r.Post("/journals/deposit", h.deposit)
	r.Post("/journals/voucher", h.voucher)
	r.Post("/journals/mutation", h.mutation)
	r.Put("/journals/confirm", h.confirm)
	r.Put("/journals/{id}/status", h.status)
	r.Get("/invoices/{invoice}", h.byInvoice)
}

type entryForm struct {
	DateIssued      string `json:"date_issued"`
	DebitAccountID  int64  `json:"debit_account_id" validate:"required"`
	CreditAccountID int64  `json:"credit_account_id" validate:"required"`
	Amount          string `json:"amount" validate:"required"`
	FeeAmount       string `json:"fee_amount"`
	TrxType         string `json:"trx_type" validate:"required"`
	Description     string `json:"description" validate:"max=500"`
	WarehouseID     int64  `json:"warehouse_id"`
}

func (f entryForm) toInput(actor shared.Actor) (PostInput, error) {
	amount, err := decimal.NewFromString(f.Amount)
	if err != nil {
		return PostInput{}, err
	}
	fee := decimal.Zero
	if f.FeeAmount != "" {
		fee, err = decimal.NewFromString(f.FeeAmount)
		if err != nil {
			return PostInput{}, err
		}
	}
	in := PostInput{
		DebitAccountID:  f.DebitAccountID,
		CreditAccountID: f.CreditAccountID,
		Amount:          amount,
		FeeAmount:       fee,
		TrxType:         f.TrxType,
		Description:     f.Description,
		WarehouseID:     f.WarehouseID,
		UserID:          actor.UserID,
	}
	if in.WarehouseID == 0 {
		in.WarehouseID = actor.WarehouseID
	}
	if f.DateIssued != "" {
		date, err := time.Parse("2006-01-02", f.DateIssued)
		if err != nil {
			return PostInput{}, err
		}
		in.DateIssued = date
	}
	return in, nil
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var form entryForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	in, err := form.toInput(actor)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount or date")
		return
	}
	entry, err := h.service.Post(r.Context(), in, h.now())
	if err != nil {
		h.logger.Warn("post journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

type transferForm struct {
	entryForm
	CustomerName string `json:"customer_name" validate:"max=255"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	h.postShortcut(w, r, func(in TransferInput) (Entry, error) {
		return h.service.PostTransfer(r.Context(), in, h.now())
	})
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	h.postShortcut(w, r, func(in TransferInput) (Entry, error) {
		return h.service.PostDeposit(r.Context(), in, h.now())
	})
}

func (h *Handler) voucher(w http.ResponseWriter, r *http.Request) {
	h.postShortcut(w, r, func(in TransferInput) (Entry, error) {
		return h.service.PostVoucher(r.Context(), in, h.now())
	})
}

func (h *Handler) postShortcut(w http.ResponseWriter, r *http.Request, post func(TransferInput) (Entry, error)) {
	var form transferForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	base, err := form.toInput(actor)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount or date")
		return
	}
	entry, err := post(TransferInput{
		DateIssued:      base.DateIssued,
		DebitAccountID:  base.DebitAccountID,
		CreditAccountID: base.CreditAccountID,
		Amount:          base.Amount,
		FeeAmount:       base.FeeAmount,
		CustomerName:    form.CustomerName,
		Description:     base.Description,
		WarehouseID:     base.WarehouseID,
		UserID:          base.UserID,
	})
	if err != nil {
		h.logger.Warn("post journal shortcut", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

type mutationForm struct {
	entryForm
	FeeDebitAccount  int64 `json:"fee_debit_account_id"`
	FeeCreditAccount int64 `json:"fee_credit_account_id"`
}

func (h *Handler) mutation(w http.ResponseWriter, r *http.Request) {
	var form mutationForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	base, err := form.toInput(actor)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount or date")
		return
	}
	entries, err := h.service.PostMutation(r.Context(), MutationInput{
		DateIssued:       base.DateIssued,
		DebitAccountID:   base.DebitAccountID,
		CreditAccountID:  base.CreditAccountID,
		Amount:           base.Amount,
		FeeAmount:        base.FeeAmount,
		FeeDebitAccount:  form.FeeDebitAccount,
		FeeCreditAccount: form.FeeCreditAccount,
		Description:      base.Description,
		WarehouseID:      base.WarehouseID,
		UserID:           base.UserID,
	}, h.now())
	if err != nil {
		h.logger.Warn("post mutation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entries)
}

type updateForm struct {
	Amount      *string `json:"amount"`
	FeeAmount   *string `json:"fee_amount"`
	Description *string `json:"description"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var form updateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	in := UpdateInput{ID: id, Description: form.Description}
	if form.Amount != nil {
		amount, err := decimal.NewFromString(*form.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a number")
			return
		}
		in.Amount = &amount
	}
	if form.FeeAmount != nil {
		fee, err := decimal.NewFromString(*form.FeeAmount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "fee_amount is not a number")
			return
		}
		in.FeeAmount = &fee
	}
	entry, err := h.service.Update(r.Context(), in, h.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	if err := h.service.Delete(r.Context(), id, h.now()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "entry deleted"})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) byInvoice(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetByInvoice(r.Context(), chi.URLParam(r, "invoice"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	accountID, _ := strconv.ParseInt(q.Get("account_id"), 10, 64)
	warehouseID, _ := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	filter := ListFilter{
		AccountID:   accountID,
		WarehouseID: warehouseID,
		TrxType:     q.Get("trx_type"),
		Search:      q.Get("search"),
		Page:        shared.NewPagination(page, 10, 0),
	}
	if raw := q.Get("start"); raw != "" {
		start, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start must be YYYY-MM-DD")
			return
		}
		filter.Start = start
	}
	if raw := q.Get("end"); raw != "" {
		end, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "end must be YYYY-MM-DD")
			return
		}
		filter.End = shared.EndOfDay(end)
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

type confirmForm struct {
	IDs       []int64 `json:"ids" validate:"required,min=1"`
	Confirmed bool    `json:"confirmed"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var form confirmForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.Confirm(r.Context(), form.IDs, form.Confirmed)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated_count": updated})
}

type statusForm struct {
	Status int `json:"status"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var form statusForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.service.SetDeliveryStatus(r.Context(), id, form.Status); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}
