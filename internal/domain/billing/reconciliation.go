package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConservationTolerance bounds rounding drift when a receipt's allocations
// are checked against its declared amount received (0.01 currency units).
var ConservationTolerance = decimal.NewFromFloat(0.01)

// ReconciliationResult holds the recomputed paid/balance amounts and status
// for one invoice.
type ReconciliationResult struct {
	PaidAmount    decimal.Decimal
	BalanceAmount decimal.Decimal
	Status        InvoiceStatus
}

// Reconcile recomputes an invoice's paid amount, balance, and status from its
// full, current set of payments. It is pure and idempotent: it performs no
// I/O and the caller persists the result inside the same transaction that
// changed the payment set. It must be re-run in full whenever a payment is
// added or removed; a missed decrement under incremental patching corrupts
// the balance forever, so incremental patching is not offered at all.
//
// Only payments in the invoice's currency participate in the sum. Currency
// mismatch is rejected at payment-creation time; the filter here keeps a
// historical mismatch from silently distorting the balance.
func Reconcile(inv *Invoice, payments []Payment, now time.Time) ReconciliationResult {
	paid := decimal.Zero
	for i := range payments {
		if payments[i].Currency == inv.Currency {
			paid = paid.Add(payments[i].Amount)
		}
	}

	balance := inv.TotalAmount.Sub(paid)

	return ReconciliationResult{
		PaidAmount:    paid,
		BalanceAmount: balance,
		Status:        DeriveStatus(inv.Status, inv.TotalAmount, paid, balance, inv.DueDate, now),
	}
}

// DeriveStatus computes the invoice status from its amounts, due date, and
// the current time. CANCELLED is sticky and short-circuits every other rule.
// DRAFT is only ever set explicitly at issuance and is exited by the first
// reconciliation that finds a payment.
func DeriveStatus(current InvoiceStatus, total, paid, balance decimal.Decimal, dueDate time.Time, now time.Time) InvoiceStatus {
	if current == InvoiceStatusCancelled {
		return InvoiceStatusCancelled
	}

	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return InvoiceStatusPaid
	case paid.GreaterThan(decimal.Zero) && paid.LessThan(total):
		return InvoiceStatusPartiallyPaid
	case paid.IsZero() && now.After(dueDate):
		return InvoiceStatusOverdue
	default:
		// A reconciliation always exits DRAFT: once the payment set has been
		// touched the invoice is live.
		return InvoiceStatusPending
	}
}
