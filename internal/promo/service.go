package promo

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
	"github.com/saysophanna/babybear-backend/pkg/types"
)

// RejectReason explains why a promo code could not be applied.
type RejectReason string

const (
	RejectReasonNotFound     RejectReason = "not_found"
	RejectReasonInactive     RejectReason = "inactive"
	RejectReasonExpired      RejectReason = "expired"
	RejectReasonBelowMinimum RejectReason = "below_minimum"
)

// ValidateInput carries the code and cart context for validation.
type ValidateInput struct {
	Code     string
	Subtotal decimal.Decimal
}

// CreateInput captures the fields a seller provides for a new promo code.
type CreateInput struct {
	Code              string
	DiscountType      enums.DiscountType
	Value             decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	Active            bool
	StartsAt          *time.Time
	ExpiresAt         *time.Time
}

// UpdateInput applies partial edits to an existing promo code.
type UpdateInput struct {
	ID                uuid.UUID
	Value             *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	Active            *bool
	StartsAt          *time.Time
	ExpiresAt         *time.Time
}

// Service defines promo validation and seller-side management.
type Service interface {
	Validate(ctx context.Context, input ValidateInput) (*types.PromoSnapshot, error)
	Create(ctx context.Context, input CreateInput) (*models.PromoCode, error)
	Update(ctx context.Context, input UpdateInput) (*models.PromoCode, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a promo service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Validate(ctx context.Context, input ValidateInput) (*types.PromoSnapshot, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, rejected(RejectReasonNotFound, "promo code required")
	}
	if input.Subtotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal cannot be negative")
	}

	promo, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, rejected(RejectReasonNotFound, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}

	now := s.now()
	if !promo.Active {
		return nil, rejected(RejectReasonInactive, "promo code is not active")
	}
	if promo.StartsAt != nil && now.Before(*promo.StartsAt) {
		return nil, rejected(RejectReasonInactive, "promo code is not active yet")
	}
	if promo.ExpiresAt != nil && promo.ExpiresAt.Before(now) {
		return nil, rejected(RejectReasonExpired, "promo code has expired")
	}
	if promo.MinOrderAmount != nil && input.Subtotal.LessThan(*promo.MinOrderAmount) {
		return nil, rejected(RejectReasonBelowMinimum, fmt.Sprintf("order minimum of %s not met", promo.MinOrderAmount.StringFixed(2))).
			WithDetails(map[string]string{
				"reason":           string(RejectReasonBelowMinimum),
				"min_order_amount": promo.MinOrderAmount.StringFixed(2),
			})
	}

	snapshot := &types.PromoSnapshot{
		PromoID:           promo.ID,
		Code:              promo.Code,
		DiscountType:      promo.DiscountType,
		Value:             promo.Value,
		MaxDiscountAmount: promo.MaxDiscountAmount,
	}
	snapshot.DiscountApplied = ComputeDiscount(*snapshot, input.Subtotal)
	return snapshot, nil
}

// ComputeDiscount derives the discount amount a snapshot grants against a
// subtotal. The result is rounded half up to two decimal places and never
// exceeds the subtotal.
func ComputeDiscount(snapshot types.PromoSnapshot, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsNegative() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch snapshot.DiscountType {
	case enums.DiscountTypePercentage:
		amount = subtotal.Mul(snapshot.Value).Div(decimal.NewFromInt(100))
		if snapshot.MaxDiscountAmount != nil && amount.GreaterThan(*snapshot.MaxDiscountAmount) {
			amount = *snapshot.MaxDiscountAmount
		}
	case enums.DiscountTypeFixed:
		amount = snapshot.Value
	default:
		return decimal.Zero
	}

	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

// NormalizeCode upper-cases and trims a raw promo code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PromoCode, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	if !input.DiscountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	}
	if !input.Value.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if input.MaxDiscountAmount != nil && input.DiscountType != enums.DiscountTypePercentage {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max discount amount applies to percentage codes only")
	}
	if input.MaxDiscountAmount != nil && !input.MaxDiscountAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max discount amount must be positive")
	}
	if input.MinOrderAmount != nil && input.MinOrderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min order amount cannot be negative")
	}

	promo := &models.PromoCode{
		Code:              code,
		DiscountType:      input.DiscountType,
		Value:             input.Value,
		MaxDiscountAmount: input.MaxDiscountAmount,
		MinOrderAmount:    input.MinOrderAmount,
		Active:            input.Active,
		StartsAt:          input.StartsAt,
		ExpiresAt:         input.ExpiresAt,
	}

	created, err := s.repo.Create(ctx, promo)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "promo code not found")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.PromoCode, error) {
	if input.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo id required")
	}

	promo, err := s.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "promo code not found")
	}

	if input.Value != nil {
		if !input.Value.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
		}
		promo.Value = *input.Value
	}
	if input.MaxDiscountAmount != nil {
		promo.MaxDiscountAmount = input.MaxDiscountAmount
	}
	if input.MinOrderAmount != nil {
		promo.MinOrderAmount = input.MinOrderAmount
	}
	if input.Active != nil {
		promo.Active = *input.Active
	}
	if input.StartsAt != nil {
		promo.StartsAt = input.StartsAt
	}
	if input.ExpiresAt != nil {
		promo.ExpiresAt = input.ExpiresAt
	}

	updated, err := s.repo.Update(ctx, promo)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "promo code not found")
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo id required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.FromDB(err, "promo code not found")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo id required")
	}
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "promo code not found")
	}
	return promo, nil
}

func (s *service) List(ctx context.Context) ([]models.PromoCode, error) {
	promos, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "promo codes not found")
	}
	return promos, nil
}

func rejected(reason RejectReason, message string) *pkgerrors.Error {
	code := pkgerrors.CodeValidation
	if reason == RejectReasonNotFound {
		code = pkgerrors.CodeNotFound
	}
	return pkgerrors.New(code, message).WithDetails(map[string]string{"reason": string(reason)})
}
