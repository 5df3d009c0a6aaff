package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nyumbani/backend/internal/domain/billing"
	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/infrastructure/persistence/models"
)

// GormReceiptRepository implements ReceiptRepository using GORM
type GormReceiptRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormReceiptRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByIDForOrg finds a receipt with its lines by ID for an organization
func (r *GormReceiptRepository) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*billing.Receipt, error) {
	var model models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumberForOrg finds a receipt by its receipt number
func (r *GormReceiptRepository) FindByNumberForOrg(ctx context.Context, orgID uuid.UUID, receiptNumber string) (*billing.Receipt, error) {
	var model models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("organization_id = ? AND receipt_number = ?", orgID, receiptNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForOrg finds all receipts for an organization with filtering
func (r *GormReceiptRepository) FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter billing.ReceiptFilter) ([]billing.Receipt, error) {
	var receiptModels []models.ReceiptModel
	query := r.db.WithContext(ctx).Model(&models.ReceiptModel{}).
		Preload("Lines").
		Where("organization_id = ?", orgID)
	query = r.applyReceiptFilter(query, filter)

	if err := query.Find(&receiptModels).Error; err != nil {
		return nil, err
	}
	receipts := make([]billing.Receipt, len(receiptModels))
	for i, model := range receiptModels {
		receipts[i] = *model.ToDomain()
	}
	return receipts, nil
}

// CountForOrg counts receipts matching the filter
func (r *GormReceiptRepository) CountForOrg(ctx context.Context, orgID uuid.UUID, filter billing.ReceiptFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.ReceiptModel{}).
		Where("organization_id = ?", orgID)
	query = r.applyReceiptFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create persists a new receipt together with its lines
func (r *GormReceiptRepository) Create(ctx context.Context, receipt *billing.Receipt) error {
	model := models.ReceiptModelFromDomain(receipt)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if r.outboxSaver != nil {
		if events := receipt.GetDomainEvents(); len(events) > 0 {
			if err := r.outboxSaver.SaveEvents(ctx, r.db, events...); err != nil {
				return fmt.Errorf("failed to save events to outbox: %w", err)
			}
		}
	}
	return nil
}

// DeleteForOrg hard deletes a receipt and its lines
func (r *GormReceiptRepository) DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.ReceiptModel{}, "organization_id = ? AND id = ?", orgID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return r.db.WithContext(ctx).
		Delete(&models.ReceiptLineModel{}, "receipt_id = ?", id).Error
}

// applyReceiptFilter applies filter options to the query
func (r *GormReceiptRepository) applyReceiptFilter(query *gorm.DB, filter billing.ReceiptFilter) *gorm.DB {
	query = r.applyReceiptFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, ReceiptSortFields, "recording_date")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	return query
}

// applyReceiptFilterWithoutPagination applies filter options without pagination
func (r *GormReceiptRepository) applyReceiptFilterWithoutPagination(query *gorm.DB, filter billing.ReceiptFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("receipt_number ILIKE ? OR payer_name ILIKE ?", searchPattern, searchPattern)
	}

	if filter.Type != nil {
		query = query.Where("receipt_type = ?", *filter.Type)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.LesseeID != nil {
		query = query.Where("lessee_id = ?", *filter.LesseeID)
	}
	if filter.LandlordID != nil {
		query = query.Where("landlord_id = ?", *filter.LandlordID)
	}
	if filter.FromDate != nil {
		query = query.Where("recording_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("recording_date <= ?", *filter.ToDate)
	}

	return query
}

// Ensure GormReceiptRepository implements ReceiptRepository
var _ billing.ReceiptRepository = (*GormReceiptRepository)(nil)
