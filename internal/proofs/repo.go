package proofs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a payment proof repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, proof *models.PaymentProof) (*models.PaymentProof, error) {
	if err := r.db.WithContext(ctx).Create(proof).Error; err != nil {
		return nil, err
	}
	return proof, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	if err := r.db.WithContext(ctx).First(&proof, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	if err := r.db.WithContext(ctx).First(&proof, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *repository) Save(ctx context.Context, proof *models.PaymentProof) error {
	return r.db.WithContext(ctx).Save(proof).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PaymentProof{}).Error
}

func (r *repository) ListUnlinkedBefore(ctx context.Context, cutoff time.Time) ([]models.PaymentProof, error) {
	var rows []models.PaymentProof
	err := r.db.WithContext(ctx).
		Where("order_id IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
