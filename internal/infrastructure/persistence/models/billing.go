package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/billing"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	OrgAggregateModel
	InvoiceNumber string                   `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_org_number,priority:2"`
	LandlordID    *uuid.UUID               `gorm:"type:uuid;index"`
	LeaseID       *uuid.UUID               `gorm:"type:uuid;index"`
	Class         billing.TransactionClass `gorm:"column:transaction_class;type:varchar(30);not null;index"`
	BillTo        string                   `gorm:"type:varchar(200)"`
	IssueDate     time.Time                `gorm:"not null;index"`
	DueDate       time.Time                `gorm:"not null;index"`
	Currency      valueobject.Currency     `gorm:"type:varchar(3);not null;default:'KES'"`
	SpotRate      decimal.Decimal          `gorm:"type:decimal(18,6);not null;default:0"`
	Amount        decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	VATAmount     decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount   decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	PaidAmount    decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceAmount decimal.Decimal          `gorm:"type:decimal(18,4);not null;index"`
	Status        billing.InvoiceStatus    `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	CancelledAt   *time.Time
	CancelReason  string             `gorm:"type:varchar(500)"`
	Items         []InvoiceItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber: m.InvoiceNumber,
		LandlordID:    m.LandlordID,
		LeaseID:       m.LeaseID,
		Class:         m.Class,
		BillTo:        m.BillTo,
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		Currency:      m.Currency,
		SpotRate:      m.SpotRate,
		Amount:        m.Amount,
		VATAmount:     m.VATAmount,
		TotalAmount:   m.TotalAmount,
		PaidAmount:    m.PaidAmount,
		BalanceAmount: m.BalanceAmount,
		Status:        m.Status,
		CancelledAt:   m.CancelledAt,
		CancelReason:  m.CancelReason,
		Items:         make([]billing.InvoiceItem, len(m.Items)),
	}
	m.PopulateOrgAggregateRoot(&inv.OrgAggregateRoot)
	for i, item := range m.Items {
		inv.Items[i] = *item.ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainOrgAggregateRoot(inv.OrgAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.LandlordID = inv.LandlordID
	m.LeaseID = inv.LeaseID
	m.Class = inv.Class
	m.BillTo = inv.BillTo
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Currency = inv.Currency
	m.SpotRate = inv.SpotRate
	m.Amount = inv.Amount
	m.VATAmount = inv.VATAmount
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.BalanceAmount = inv.BalanceAmount
	m.Status = inv.Status
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i, item := range inv.Items {
		m.Items[i] = *InvoiceItemModelFromDomain(&item)
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for invoice line items.
type InvoiceItemModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Particular    string          `gorm:"type:varchar(200);not null"`
	IncomeAccount string          `gorm:"type:varchar(100)"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:1"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem.
func (m *InvoiceItemModel) ToDomain() *billing.InvoiceItem {
	return &billing.InvoiceItem{
		ID:            m.ID,
		InvoiceID:     m.InvoiceID,
		Particular:    m.Particular,
		IncomeAccount: m.IncomeAccount,
		Quantity:      m.Quantity,
		UnitCost:      m.UnitCost,
		TaxRate:       m.TaxRate,
		TaxAmount:     m.TaxAmount,
		LineTotal:     m.LineTotal,
	}
}

// InvoiceItemModelFromDomain creates a new persistence model from a domain InvoiceItem.
func InvoiceItemModelFromDomain(item *billing.InvoiceItem) *InvoiceItemModel {
	return &InvoiceItemModel{
		ID:            item.ID,
		InvoiceID:     item.InvoiceID,
		Particular:    item.Particular,
		IncomeAccount: item.IncomeAccount,
		Quantity:      item.Quantity,
		UnitCost:      item.UnitCost,
		TaxRate:       item.TaxRate,
		TaxAmount:     item.TaxAmount,
		LineTotal:     item.LineTotal,
	}
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	OrgAggregateModel
	InvoiceID     *uuid.UUID            `gorm:"type:uuid;index"`
	LeaseID       *uuid.UUID            `gorm:"type:uuid;index"`
	ReceiptID     *uuid.UUID            `gorm:"type:uuid;index"`
	PaymentDate   time.Time             `gorm:"not null;index"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Currency      valueobject.Currency  `gorm:"type:varchar(3);not null;default:'KES'"`
	SpotRate      decimal.Decimal       `gorm:"type:decimal(18,6);not null;default:0"`
	Method        billing.PaymentMethod `gorm:"type:varchar(20);not null;index"`
	Kind          billing.PaymentKind   `gorm:"type:varchar(20);not null"`
	ChequeNumber  string                `gorm:"type:varchar(50)"`
	ChequeDate    *time.Time
	MobileReceipt string `gorm:"type:varchar(50)"`
	MobilePhone   string `gorm:"type:varchar(20)"`
	PayeeName     string `gorm:"type:varchar(200)"`
	PaidFrom      string `gorm:"type:varchar(200)"`
	PaidTo        string `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *billing.Payment {
	p := &billing.Payment{
		InvoiceID:     m.InvoiceID,
		LeaseID:       m.LeaseID,
		ReceiptID:     m.ReceiptID,
		PaymentDate:   m.PaymentDate,
		Amount:        m.Amount,
		Currency:      m.Currency,
		SpotRate:      m.SpotRate,
		Method:        m.Method,
		Kind:          m.Kind,
		ChequeNumber:  m.ChequeNumber,
		ChequeDate:    m.ChequeDate,
		MobileReceipt: m.MobileReceipt,
		MobilePhone:   m.MobilePhone,
		PayeeName:     m.PayeeName,
		PaidFrom:      m.PaidFrom,
		PaidTo:        m.PaidTo,
	}
	m.PopulateOrgAggregateRoot(&p.OrgAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainOrgAggregateRoot(p.OrgAggregateRoot)
	m.InvoiceID = p.InvoiceID
	m.LeaseID = p.LeaseID
	m.ReceiptID = p.ReceiptID
	m.PaymentDate = p.PaymentDate
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.SpotRate = p.SpotRate
	m.Method = p.Method
	m.Kind = p.Kind
	m.ChequeNumber = p.ChequeNumber
	m.ChequeDate = p.ChequeDate
	m.MobileReceipt = p.MobileReceipt
	m.MobilePhone = p.MobilePhone
	m.PayeeName = p.PayeeName
	m.PaidFrom = p.PaidFrom
	m.PaidTo = p.PaidTo
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// ReceiptModel is the persistence model for the Receipt aggregate root.
type ReceiptModel struct {
	OrgAggregateModel
	ReceiptNumber  string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_receipt_org_number,priority:2"`
	Type           billing.ReceiptType     `gorm:"column:receipt_type;type:varchar(20);not null;index"`
	Category       billing.ReceiptCategory `gorm:"type:varchar(20);not null;default:'GENERAL'"`
	PayerName      string                  `gorm:"type:varchar(200);not null"`
	LesseeID       *uuid.UUID              `gorm:"type:uuid;index"`
	LandlordID     *uuid.UUID              `gorm:"type:uuid;index"`
	Method         billing.PaymentMethod   `gorm:"type:varchar(20);not null"`
	DepositAccount string                  `gorm:"type:varchar(100)"`
	RecordingDate  time.Time               `gorm:"not null;index"`
	AmountReceived decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Currency       valueobject.Currency    `gorm:"type:varchar(3);not null;default:'KES'"`
	SpotRate       decimal.Decimal         `gorm:"type:decimal(18,6);not null;default:0"`
	BankingDate    *time.Time
	Lines          []ReceiptLineModel `gorm:"foreignKey:ReceiptID;references:ID"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt entity.
func (m *ReceiptModel) ToDomain() *billing.Receipt {
	r := &billing.Receipt{
		ReceiptNumber:  m.ReceiptNumber,
		Type:           m.Type,
		Category:       m.Category,
		PayerName:      m.PayerName,
		LesseeID:       m.LesseeID,
		LandlordID:     m.LandlordID,
		Method:         m.Method,
		DepositAccount: m.DepositAccount,
		RecordingDate:  m.RecordingDate,
		AmountReceived: m.AmountReceived,
		Currency:       m.Currency,
		SpotRate:       m.SpotRate,
		BankingDate:    m.BankingDate,
		Lines:          make([]billing.ReceiptLine, len(m.Lines)),
	}
	m.PopulateOrgAggregateRoot(&r.OrgAggregateRoot)
	for i, line := range m.Lines {
		r.Lines[i] = *line.ToDomain()
	}
	return r
}

// FromDomain populates the persistence model from a domain Receipt entity.
func (m *ReceiptModel) FromDomain(r *billing.Receipt) {
	m.FromDomainOrgAggregateRoot(r.OrgAggregateRoot)
	m.ReceiptNumber = r.ReceiptNumber
	m.Type = r.Type
	m.Category = r.Category
	m.PayerName = r.PayerName
	m.LesseeID = r.LesseeID
	m.LandlordID = r.LandlordID
	m.Method = r.Method
	m.DepositAccount = r.DepositAccount
	m.RecordingDate = r.RecordingDate
	m.AmountReceived = r.AmountReceived
	m.Currency = r.Currency
	m.SpotRate = r.SpotRate
	m.BankingDate = r.BankingDate
	m.Lines = make([]ReceiptLineModel, len(r.Lines))
	for i, line := range r.Lines {
		m.Lines[i] = *ReceiptLineModelFromDomain(&line)
	}
}

// ReceiptModelFromDomain creates a new persistence model from a domain Receipt.
func ReceiptModelFromDomain(r *billing.Receipt) *ReceiptModel {
	m := &ReceiptModel{}
	m.FromDomain(r)
	return m
}

// ReceiptLineModel is the persistence model for per-invoice receipt applications.
type ReceiptLineModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReceiptID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceNumber    string          `gorm:"type:varchar(50);not null"`
	InvoiceTotal     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PreviousReceipts decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AmountDue        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Payment          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NewBalance       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WithholdingTax   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ReceiptLineModel) TableName() string {
	return "receipt_lines"
}

// ToDomain converts the persistence model to a domain ReceiptLine.
func (m *ReceiptLineModel) ToDomain() *billing.ReceiptLine {
	return &billing.ReceiptLine{
		ID:               m.ID,
		ReceiptID:        m.ReceiptID,
		InvoiceID:        m.InvoiceID,
		InvoiceNumber:    m.InvoiceNumber,
		InvoiceTotal:     m.InvoiceTotal,
		PreviousReceipts: m.PreviousReceipts,
		AmountDue:        m.AmountDue,
		Payment:          m.Payment,
		NewBalance:       m.NewBalance,
		WithholdingTax:   m.WithholdingTax,
	}
}

// ReceiptLineModelFromDomain creates a new persistence model from a domain ReceiptLine.
func ReceiptLineModelFromDomain(line *billing.ReceiptLine) *ReceiptLineModel {
	return &ReceiptLineModel{
		ID:               line.ID,
		ReceiptID:        line.ReceiptID,
		InvoiceID:        line.InvoiceID,
		InvoiceNumber:    line.InvoiceNumber,
		InvoiceTotal:     line.InvoiceTotal,
		PreviousReceipts: line.PreviousReceipts,
		AmountDue:        line.AmountDue,
		Payment:          line.Payment,
		NewBalance:       line.NewBalance,
		WithholdingTax:   line.WithholdingTax,
	}
}

// DocumentSequenceModel backs the per-organization document number sequences.
// One row per organization, document kind, and period; the unique index lets
// concurrent issuers race on an atomic upsert instead of a read-then-write.
type DocumentSequenceModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sequence_org_kind_period,priority:1"`
	Kind           string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_sequence_org_kind_period,priority:2"`
	Period         string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_sequence_org_kind_period,priority:3"`
	Value          int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}
