package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/pkg/enums"
)

// PromoSnapshot freezes the promo terms in force at checkout so later
// edits to the promo code cannot change what an order was charged.
type PromoSnapshot struct {
	PromoID           uuid.UUID          `json:"promo_id"`
	Code              string             `json:"code"`
	DiscountType      enums.DiscountType `json:"discount_type"`
	Value             decimal.Decimal    `json:"value"`
	MaxDiscountAmount *decimal.Decimal   `json:"max_discount_amount,omitempty"`
	DiscountApplied   decimal.Decimal    `json:"discount_applied"`
}
