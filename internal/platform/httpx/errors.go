// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// RespondError maps ledger errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrLocked):
		Problem(w, http.StatusForbidden, "Locked", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrPeriodClosed):
		Problem(w, http.StatusForbidden, "Period Closed", err.Error())
	case errors.Is(err, shared.ErrInsufficientFunds):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Funds", err.Error())
	case errors.Is(err, shared.ErrConsistency):
		Problem(w, http.StatusInternalServerError, "Ledger Inconsistent", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
