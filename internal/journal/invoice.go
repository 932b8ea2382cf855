package journal

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Invoice prefixes. The prefix plus the poster and calendar day define the
// sequence scope; bulk sales and purchase entries number independently.
const (
	InvoicePrefixJournal  = "JR.BK"
	InvoicePrefixSales    = "SO.BK"
	InvoicePrefixPurchase = "PO.BK"
)

// invoiceSequenceDigits is the width of the numeric suffix.
const invoiceSequenceDigits = 7

// SequenceScope identifies one invoice numbering stream: a poster, a
// calendar day, and a prefix. Entries of the bulk classes (Sales, Purchase)
// are excluded from the default journal stream.
type SequenceScope struct {
	Prefix string
	UserID int64
	Day    time.Time
}

// JournalScope returns the default journal numbering stream for a poster
// on a given day.
func JournalScope(userID int64, day time.Time) SequenceScope {
	return SequenceScope{Prefix: InvoicePrefixJournal, UserID: userID, Day: shared.DateOnly(day)}
}

// LockKey derives the advisory-lock key serialising sequence assignment for
// this scope. Concurrent posters in the same scope queue on this key before
// reading the current maximum, so numbers never collide.
func (s SequenceScope) LockKey() int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s|%d|%s", s.Prefix, s.UserID, s.Day.Format("2006-01-02"))
	return int64(h.Sum64())
}

// FormatInvoice renders `<PREFIX>.<DDMMYYYY>.<poster>.<7-digit sequence>`.
func FormatInvoice(scope SequenceScope, sequence int) string {
	return fmt.Sprintf("%s.%s.%d.%0*d", scope.Prefix, scope.Day.Format("02012006"), scope.UserID, invoiceSequenceDigits, sequence)
}

// InvoiceSequence extracts the numeric suffix of an invoice number.
func InvoiceSequence(invoice string) int {
	if len(invoice) < invoiceSequenceDigits {
		return 0
	}
	seq, err := strconv.Atoi(invoice[len(invoice)-invoiceSequenceDigits:])
	if err != nil {
		return 0
	}
	return seq
}
