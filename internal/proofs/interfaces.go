package proofs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
)

// Repository exposes payment proof persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, proof *models.PaymentProof) (*models.PaymentProof, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentProof, error)
	Save(ctx context.Context, proof *models.PaymentProof) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListUnlinkedBefore(ctx context.Context, cutoff time.Time) ([]models.PaymentProof, error)
}
