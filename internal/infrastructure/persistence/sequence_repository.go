package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nyumbani/backend/internal/domain/billing"
)

// GormSequenceRepository implements SequenceRepository using GORM.
// Next relies on an atomic upsert against the unique
// (organization_id, kind, period) index, so concurrent issuers serialize on
// the sequence row instead of racing a read-then-write counter.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Next returns the next sequence value for the document kind and period
// within an organization, starting at 1.
func (r *GormSequenceRepository) Next(ctx context.Context, orgID uuid.UUID, kind, period string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO document_sequences (id, organization_id, kind, period, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, NOW(), NOW())
		ON CONFLICT (organization_id, kind, period)
		DO UPDATE SET value = document_sequences.value + 1, updated_at = NOW()
		RETURNING value`,
		uuid.New(), orgID, kind, period,
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Ensure GormSequenceRepository implements SequenceRepository
var _ billing.SequenceRepository = (*GormSequenceRepository)(nil)
