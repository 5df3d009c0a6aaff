package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/nyumbani/backend/internal/domain/billing"
	"github.com/nyumbani/backend/internal/domain/shared"
)

// GormTransactionManager implements billing.TransactionManager. Each call to
// InTransaction opens one database transaction and hands the callback a
// repository set bound to it; row locks taken through those repositories hold
// until the transaction commits or rolls back.
type GormTransactionManager struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormTransactionManager creates a new GormTransactionManager
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// SetOutboxEventSaver wires the outbox saver into every repository set handed
// to transactional callbacks, so domain events land in the outbox atomically
// with the aggregate changes.
func (m *GormTransactionManager) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	m.outboxSaver = saver
}

// InTransaction runs fn inside one atomic transaction. Returning an error
// from fn rolls everything back.
func (m *GormTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, repos billing.RepositorySet) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, newRepositorySet(tx, m.outboxSaver))
	})
}

// NewRepositorySet builds the ledger repository set over one database handle.
// Passing a transaction binds every repository to that transaction.
func NewRepositorySet(db *gorm.DB) billing.RepositorySet {
	return newRepositorySet(db, nil)
}

func newRepositorySet(db *gorm.DB, saver shared.OutboxEventSaver) billing.RepositorySet {
	invoices := NewGormInvoiceRepository(db)
	payments := NewGormPaymentRepository(db)
	receipts := NewGormReceiptRepository(db)
	if saver != nil {
		invoices.SetOutboxEventSaver(saver)
		payments.SetOutboxEventSaver(saver)
		receipts.SetOutboxEventSaver(saver)
	}
	return billing.RepositorySet{
		Invoices:  invoices,
		Payments:  payments,
		Receipts:  receipts,
		Sequences: NewGormSequenceRepository(db),
	}
}

// Ensure GormTransactionManager implements TransactionManager
var _ billing.TransactionManager = (*GormTransactionManager)(nil)
