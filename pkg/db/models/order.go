package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/pkg/enums"
	"github.com/saysophanna/babybear-backend/pkg/types"
)

// Order is the committed result of a checkout.
type Order struct {
	ID                  uuid.UUID                       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         string                          `gorm:"column:order_number;not null;uniqueIndex"`
	UserID              uuid.UUID                       `gorm:"column:user_id;type:uuid;not null;index"`
	Currency            enums.Currency                  `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status              enums.OrderStatus               `gorm:"column:status;type:text;not null;default:'order_placed'"`
	PaymentMethod       enums.PaymentMethod             `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus       enums.PaymentStatus             `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentConfirmation enums.PaymentConfirmationStatus `gorm:"column:payment_confirmation;type:text;not null;default:'na'"`
	Subtotal            decimal.Decimal                 `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount            decimal.Decimal                 `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	DeliveryFee         decimal.Decimal                 `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	Total               decimal.Decimal                 `gorm:"column:total;type:numeric(12,2);not null"`
	DeliveryAddress     types.Address                   `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	Promo               *types.PromoSnapshot            `gorm:"column:promo;type:jsonb;serializer:json"`
	ChargeRef           *string                         `gorm:"column:charge_ref;index"`
	ProofURL            *string                         `gorm:"column:proof_url"`
	Note                *string                         `gorm:"column:note"`
	DeliveredAt         *time.Time                      `gorm:"column:delivered_at"`
	CancelledAt         *time.Time                      `gorm:"column:cancelled_at"`
	Items               []OrderItem                     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time                       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                       `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a purchased line within an order.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	ImageURL  *string         `gorm:"column:image_url"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
