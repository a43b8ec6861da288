package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/logger"
	"github.com/saysophanna/babybear-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ItemInput is one purchased line in a new order.
type ItemInput struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	ImageURL  *string
}

// CreateInput carries a finalized checkout draft into persistence.
type CreateInput struct {
	UserID          uuid.UUID
	Currency        enums.Currency
	PaymentMethod   enums.PaymentMethod
	Items           []ItemInput
	DeliveryAddress types.Address
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	DeliveryFee     decimal.Decimal
	Total           decimal.Decimal
	Promo           *types.PromoSnapshot
	ChargeRef       *string
	ProofURL        *string
	Note            *string
}

// Service defines order creation and the post-creation lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByChargeRef(ctx context.Context, chargeRef string) (*models.Order, error)
	List(ctx context.Context, filters ListFilters) ([]models.Order, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RejectPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	logger *logger.Logger
	now    func() time.Time
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logger: logg, now: time.Now}, nil
}

// statusTransitions is the single source of truth for fulfillment moves.
// Cancelled is reachable from every non-terminal state.
var statusTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusOrderPlaced:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:     {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

func canTransitionStatus(from, to enums.OrderStatus) bool {
	for _, candidate := range statusTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if err := input.DeliveryAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}
	if input.Total.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total cannot be negative")
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	paymentStatus := enums.PaymentStatusPending
	confirmation := enums.PaymentConfirmationStatusNA
	switch input.PaymentMethod {
	case enums.PaymentMethodBankTransfer:
		if input.ProofURL == nil || strings.TrimSpace(*input.ProofURL) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank transfer orders require a payment proof")
		}
		paymentStatus = enums.PaymentStatusPendingConfirmation
		confirmation = enums.PaymentConfirmationStatusPendingReview
	case enums.PaymentMethodKHQR:
		if input.ChargeRef == nil || strings.TrimSpace(*input.ChargeRef) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "khqr orders require a charge reference")
		}
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative")
		}
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}

	order := &models.Order{
		OrderNumber:         newOrderNumber(s.now()),
		UserID:              input.UserID,
		Currency:            currency,
		Status:              enums.OrderStatusOrderPlaced,
		PaymentMethod:       input.PaymentMethod,
		PaymentStatus:       paymentStatus,
		PaymentConfirmation: confirmation,
		Subtotal:            input.Subtotal,
		Discount:            input.Discount,
		DeliveryFee:         input.DeliveryFee,
		Total:               input.Total,
		DeliveryAddress:     input.DeliveryAddress,
		Promo:               input.Promo,
		ChargeRef:           input.ChargeRef,
		ProofURL:            input.ProofURL,
		Note:                input.Note,
		Items:               items,
	}

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "order not found")
	}

	ctx = s.logger.WithOrderID(ctx, created.ID.String())
	s.logger.Info(s.logger.WithField(ctx, "payment_method", created.PaymentMethod.String()), "order created")
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "order not found")
	}
	return order, nil
}

// GetByChargeRef resolves a committed order from a gateway charge
// reference, the md5 the settlement report identifies payments by.
func (s *service) GetByChargeRef(ctx context.Context, chargeRef string) (*models.Order, error) {
	if chargeRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge reference required")
	}
	order, err := s.repo.FindByChargeRef(ctx, chargeRef)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filters ListFilters) ([]models.Order, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	orders, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "orders not found")
	}
	return orders, nil
}

func (s *service) SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if status == enums.OrderStatusPaymentRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment rejection is driven by rejectPayment, not setStatus")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.FromDB(err, "order not found")
		}

		if order.Status == status {
			updated = order
			return nil
		}
		// Orders awaiting proof review may be cancelled but not advanced.
		if order.PaymentConfirmation == enums.PaymentConfirmationStatusPendingReview &&
			status != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment proof is pending review").
				WithDetails(map[string]string{"payment_confirmation": order.PaymentConfirmation.String()})
		}
		if !canTransitionStatus(order.Status, status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, status)).
				WithDetails(map[string]string{"from": order.Status.String(), "to": status.String()})
		}

		now := s.now()
		order.Status = status
		switch status {
		case enums.OrderStatusDelivered:
			order.DeliveredAt = &now
			// Cash is collected at the door, so delivery settles COD orders.
			if order.PaymentMethod == enums.PaymentMethodCOD {
				order.PaymentStatus = enums.PaymentStatusPaid
				order.PaymentConfirmation = enums.PaymentConfirmationStatusConfirmed
			}
		case enums.OrderStatusCancelled:
			order.CancelledAt = &now
		}

		updated, err = repo.Save(ctx, order)
		if err != nil {
			return pkgerrors.FromDB(err, "order not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"status":   status.String(),
	}), "order status updated")
	return updated, nil
}

func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.reviewPayment(ctx, orderID, true)
}

func (s *service) RejectPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.reviewPayment(ctx, orderID, false)
}

func (s *service) reviewPayment(ctx context.Context, orderID uuid.UUID, approve bool) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.FromDB(err, "order not found")
		}

		if order.PaymentMethod != enums.PaymentMethodBankTransfer {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment review applies to bank transfer orders only")
		}
		if order.PaymentConfirmation != enums.PaymentConfirmationStatusPendingReview {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment proof is not awaiting review").
				WithDetails(map[string]string{"payment_confirmation": order.PaymentConfirmation.String()})
		}

		if approve {
			order.PaymentConfirmation = enums.PaymentConfirmationStatusConfirmed
			order.PaymentStatus = enums.PaymentStatusPaid
			if order.Status == enums.OrderStatusOrderPlaced {
				order.Status = enums.OrderStatusProcessing
			}
		} else {
			order.PaymentConfirmation = enums.PaymentConfirmationStatusRejected
			order.PaymentStatus = enums.PaymentStatusFailed
			order.Status = enums.OrderStatusPaymentRejected
		}

		updated, err = repo.Save(ctx, order)
		if err != nil {
			return pkgerrors.FromDB(err, "order not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := "payment rejected"
	if approve {
		action = "payment confirmed"
	}
	s.logger.Info(s.logger.WithOrderID(ctx, orderID.String()), action)
	return updated, nil
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("BB-%s-%s", now.Format("20060102"), suffix)
}
