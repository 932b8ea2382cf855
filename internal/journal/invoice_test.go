package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatInvoice(t *testing.T) {
	day := time.Date(2026, time.March, 7, 15, 4, 5, 0, time.UTC)
	scope := JournalScope(12, day)

	require.Equal(t, "JR.BK.07032026.12.0000001", FormatInvoice(scope, 1))
	require.Equal(t, "JR.BK.07032026.12.0042137", FormatInvoice(scope, 42137))
}

func TestInvoiceSequenceRoundTrip(t *testing.T) {
	scope := JournalScope(3, time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC))
	for _, seq := range []int{1, 99, 1234567} {
		require.Equal(t, seq, InvoiceSequence(FormatInvoice(scope, seq)))
	}
}

func TestLockKeyStablePerScope(t *testing.T) {
	day := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)
	a := JournalScope(12, day)
	b := JournalScope(12, day.Add(5*time.Hour))
	require.Equal(t, a.LockKey(), b.LockKey(), "same poster and calendar day share a lock")

	other := JournalScope(13, day)
	require.NotEqual(t, a.LockKey(), other.LockKey(), "different posters use different locks")

	nextDay := JournalScope(12, day.AddDate(0, 0, 1))
	require.NotEqual(t, a.LockKey(), nextDay.LockKey(), "different days use different locks")
}
