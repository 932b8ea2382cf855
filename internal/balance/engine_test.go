package balance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cashbook-erp/cashbook/internal/coa"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestEndingDebitNormal(t *testing.T) {
	got, err := Ending(coa.NormalSideDebit, d("1000"), Activity{Debit: d("300"), Credit: d("120")})
	require.NoError(t, err)
	require.True(t, got.Equal(d("1180")), "got %s", got)
}

func TestEndingCreditNormal(t *testing.T) {
	got, err := Ending(coa.NormalSideCredit, d("1000"), Activity{Debit: d("300"), Credit: d("120")})
	require.NoError(t, err)
	require.True(t, got.Equal(d("820")), "got %s", got)
}

func TestEndingCanGoNegative(t *testing.T) {
	got, err := Ending(coa.NormalSideDebit, d("50"), Activity{Debit: decimal.Zero, Credit: d("80")})
	require.NoError(t, err)
	require.True(t, got.Equal(d("-30")), "got %s", got)
}

func TestEndingUnknownSideFails(t *testing.T) {
	_, err := Ending("", d("10"), Activity{Debit: decimal.Zero, Credit: decimal.Zero})
	require.ErrorIs(t, err, shared.ErrConsistency)

	_, err = Ending("X", decimal.Zero, Activity{Debit: decimal.Zero, Credit: decimal.Zero})
	require.ErrorIs(t, err, shared.ErrConsistency)
}
