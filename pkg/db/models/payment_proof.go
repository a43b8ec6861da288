package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentProof records an uploaded bank transfer slip awaiting review.
type PaymentProof struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid;index"`
	URL         string     `gorm:"column:url;not null"`
	ContentType string     `gorm:"column:content_type;not null"`
	SizeBytes   int64      `gorm:"column:size_bytes;not null"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
