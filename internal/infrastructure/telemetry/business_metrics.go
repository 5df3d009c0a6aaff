// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics provides business metrics for the billing ledger.
// It tracks invoice issuance, payment activity, and the outstanding position.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	invoiceIssuedTotal   *Counter
	invoiceAmountTotal   *Counter
	paymentRecordedTotal *Counter
	paymentAmountTotal   *Counter
	receiptCreatedTotal  *Counter

	// Gauge metrics (point-in-time values)
	outstandingBalance *FloatGauge
	overdueBalance     *FloatGauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	balanceProvider BalanceMetricsProvider
}

// BalanceMetricsProvider provides open-position data for periodic metrics
// collection. The interface keeps the telemetry layer from depending on the
// billing domain directly.
type BalanceMetricsProvider interface {
	// GetOutstandingBalance returns the summed open balance for an organization
	GetOutstandingBalance(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error)

	// GetOverdueBalance returns the summed overdue balance for an organization
	GetOverdueBalance(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	BalanceProvider BalanceMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		balanceProvider: cfg.BalanceProvider,
	}

	var err error

	lm.invoiceIssuedTotal, err = NewCounter(
		cfg.Meter,
		"ledger_invoice_issued_total",
		"Total number of invoices issued",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	lm.invoiceAmountTotal, err = NewCounter(
		cfg.Meter,
		"ledger_invoice_amount_total",
		"Total invoiced amount in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	lm.paymentRecordedTotal, err = NewCounter(
		cfg.Meter,
		"ledger_payment_recorded_total",
		"Total number of payments recorded",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	lm.paymentAmountTotal, err = NewCounter(
		cfg.Meter,
		"ledger_payment_amount_total",
		"Total payment amount in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	lm.receiptCreatedTotal, err = NewCounter(
		cfg.Meter,
		"ledger_receipt_created_total",
		"Total number of receipts created",
		"{receipts}",
	)
	if err != nil {
		return nil, err
	}

	lm.outstandingBalance, err = NewFloatGauge(
		cfg.Meter,
		"ledger_outstanding_balance",
		"Summed open invoice balance per organization",
		"{currency_units}",
	)
	if err != nil {
		return nil, err
	}

	lm.overdueBalance, err = NewFloatGauge(
		cfg.Meter,
		"ledger_overdue_balance",
		"Summed overdue invoice balance per organization",
		"{currency_units}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// =============================================================================
// Invoice Metrics
// =============================================================================

// RecordInvoiceIssued records an invoice issuance with its total amount.
func (lm *LedgerMetrics) RecordInvoiceIssued(ctx context.Context, orgID uuid.UUID, class string, amount decimal.Decimal) {
	lm.invoiceIssuedTotal.Inc(ctx,
		AttrOrganizationID.String(orgID.String()),
		AttrTransactionClass.String(class),
	)
	lm.invoiceAmountTotal.Add(ctx, amount.Mul(decimal.NewFromInt(100)).IntPart(),
		AttrOrganizationID.String(orgID.String()),
		AttrTransactionClass.String(class),
	)
}

// =============================================================================
// Payment and Receipt Metrics
// =============================================================================

// RecordPayment records a payment with its amount.
func (lm *LedgerMetrics) RecordPayment(ctx context.Context, orgID uuid.UUID, method string, amount decimal.Decimal) {
	lm.paymentRecordedTotal.Inc(ctx,
		AttrOrganizationID.String(orgID.String()),
		AttrPaymentMethod.String(method),
	)
	lm.paymentAmountTotal.Add(ctx, amount.Mul(decimal.NewFromInt(100)).IntPart(),
		AttrOrganizationID.String(orgID.String()),
		AttrPaymentMethod.String(method),
	)
}

// RecordReceiptCreated records a receipt creation.
func (lm *LedgerMetrics) RecordReceiptCreated(ctx context.Context, orgID uuid.UUID, receiptType string) {
	lm.receiptCreatedTotal.Inc(ctx,
		AttrOrganizationID.String(orgID.String()),
		AttrReceiptType.String(receiptType),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// OrganizationProvider provides organization IDs for periodic metrics collection.
type OrganizationProvider interface {
	GetActiveOrganizationIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of the balance gauges.
// Non-blocking; use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, orgProvider OrganizationProvider, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go lm.runPeriodicCollection(ctx, orgProvider, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, orgProvider OrganizationProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.collectBalanceMetrics(ctx, orgProvider)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectBalanceMetrics(ctx, orgProvider)
		}
	}
}

func (lm *LedgerMetrics) collectBalanceMetrics(ctx context.Context, orgProvider OrganizationProvider) {
	if lm.balanceProvider == nil {
		lm.logger.Debug("No balance provider configured, skipping balance metrics collection")
		return
	}

	orgIDs, err := orgProvider.GetActiveOrganizationIDs(ctx)
	if err != nil {
		lm.logger.Error("Failed to get organization IDs for metrics collection", zap.Error(err))
		return
	}

	for _, orgID := range orgIDs {
		lm.collectOrgBalanceMetrics(ctx, orgID)
	}
}

func (lm *LedgerMetrics) collectOrgBalanceMetrics(ctx context.Context, orgID uuid.UUID) {
	outstanding, err := lm.balanceProvider.GetOutstandingBalance(ctx, orgID)
	if err != nil {
		lm.logger.Warn("Failed to get outstanding balance for organization",
			zap.String("organization_id", orgID.String()),
			zap.Error(err),
		)
	} else {
		lm.outstandingBalance.Record(ctx, outstanding.InexactFloat64(),
			AttrOrganizationID.String(orgID.String()),
		)
	}

	overdue, err := lm.balanceProvider.GetOverdueBalance(ctx, orgID)
	if err != nil {
		lm.logger.Warn("Failed to get overdue balance for organization",
			zap.String("organization_id", orgID.String()),
			zap.Error(err),
		)
	} else {
		lm.overdueBalance.Record(ctx, overdue.InexactFloat64(),
			AttrOrganizationID.String(orgID.String()),
		)
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
