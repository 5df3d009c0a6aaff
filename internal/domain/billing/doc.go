// Package billing contains the property-management billing ledger: invoices
// issued against leases or landlords, payments received against them, and
// receipts that fan a single money-received event out across one or more
// invoices. All three aggregates are organization-scoped; the paid/balance
// amounts of an invoice are only ever recomputed from its full payment
// history, never patched incrementally.
package billing
