package balance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/coa"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Activity is the raw two-sided sum of journal amounts touching one
// account over some range. Sums over zero matching rows are zero, never
// absent, so downstream arithmetic stays total.
type Activity struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Ending applies the one sign rule the whole engine rests on: an account
// accumulates activity on its normal side positively and on the opposite
// side negatively. Every balance anywhere in the system comes from this
// function; an unresolvable normal side is a hard failure, never a
// defaulted sign.
func Ending(side coa.NormalSide, opening decimal.Decimal, activity Activity) (decimal.Decimal, error) {
	switch side {
	case coa.NormalSideDebit:
		return opening.Add(activity.Debit).Sub(activity.Credit), nil
	case coa.NormalSideCredit:
		return opening.Add(activity.Credit).Sub(activity.Debit), nil
	default:
		return decimal.Zero, fmt.Errorf("balance: unknown normal side %q: %w", side, shared.ErrConsistency)
	}
}
