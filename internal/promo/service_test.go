package promo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/types"
)

type stubPromoRepo struct {
	byCode  map[string]*models.PromoCode
	created *models.PromoCode
}

func (s *stubPromoRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPromoRepo) Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}
	s.created = promo
	return promo, nil
}

func (s *stubPromoRepo) Update(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	return promo, nil
}

func (s *stubPromoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *stubPromoRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	for _, promo := range s.byCode {
		if promo.ID == id {
			return promo, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPromoRepo) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	if promo, ok := s.byCode[strings.ToLower(code)]; ok {
		return promo, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPromoRepo) List(ctx context.Context) ([]models.PromoCode, error) {
	out := make([]models.PromoCode, 0, len(s.byCode))
	for _, promo := range s.byCode {
		out = append(out, *promo)
	}
	return out, nil
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func activePromo(code string, discountType enums.DiscountType, value string) *models.PromoCode {
	return &models.PromoCode{
		ID:           uuid.New(),
		Code:         code,
		DiscountType: discountType,
		Value:        dec(value),
		Active:       true,
	}
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestValidatePercentageUnderCap(t *testing.T) {
	promo := activePromo("SAVE10", enums.DiscountTypePercentage, "10")
	promo.MaxDiscountAmount = decPtr("3.00")
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{"save10": promo}}
	svc := newTestService(t, repo)

	snapshot, err := svc.Validate(context.Background(), ValidateInput{Code: "save10", Subtotal: dec("20.00")})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !snapshot.DiscountApplied.Equal(dec("2.00")) {
		t.Fatalf("expected discount 2.00, got %s", snapshot.DiscountApplied)
	}
	if snapshot.PromoID != promo.ID {
		t.Fatal("snapshot should carry the promo id")
	}
}

func TestValidatePercentageHitsCap(t *testing.T) {
	promo := activePromo("SAVE20", enums.DiscountTypePercentage, "20")
	promo.MaxDiscountAmount = decPtr("5.00")
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{"save20": promo}}
	svc := newTestService(t, repo)

	snapshot, err := svc.Validate(context.Background(), ValidateInput{Code: "SAVE20", Subtotal: dec("50.00")})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !snapshot.DiscountApplied.Equal(dec("5.00")) {
		t.Fatalf("expected capped discount 5.00, got %s", snapshot.DiscountApplied)
	}
}

func TestValidateFixedNeverExceedsSubtotal(t *testing.T) {
	promo := activePromo("FLAT5", enums.DiscountTypeFixed, "5.00")
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{"flat5": promo}}
	svc := newTestService(t, repo)

	snapshot, err := svc.Validate(context.Background(), ValidateInput{Code: "flat5", Subtotal: dec("3.25")})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !snapshot.DiscountApplied.Equal(dec("3.25")) {
		t.Fatalf("expected discount clamped to subtotal, got %s", snapshot.DiscountApplied)
	}
}

func TestValidateRejectsUnknownCode(t *testing.T) {
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{}}
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), ValidateInput{Code: "NOPE", Subtotal: dec("10.00")})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestValidateRejectsInactiveCode(t *testing.T) {
	promo := activePromo("OFF", enums.DiscountTypeFixed, "1.00")
	promo.Active = false
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{"off": promo}}
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), ValidateInput{Code: "off", Subtotal: dec("10.00")})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["reason"] != string(RejectReasonInactive) {
		t.Fatalf("expected inactive reason, got %v", typed.Details())
	}
}

func TestValidateRejectsExpiredCode(t *testing.T) {
	promo := activePromo("OLD", enums.DiscountTypeFixed, "1.00")
	past := time.Now().Add(-time.Hour)
	promo.ExpiresAt = &past
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{"old": promo}}
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), ValidateInput{Code: "old", Subtotal: dec("10.00")})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["reason"] != string(RejectReasonExpired) {
		t.Fatalf("expected expired reason, got %v", typed.Details())
	}
}

func TestValidateRejectsBelowMinimum(t *testing.T) {
	promo := activePromo("BIG", enums.DiscountTypeFixed, "5.00")
	promo.MinOrderAmount = decPtr("25.00")
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{"big": promo}}
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), ValidateInput{Code: "big", Subtotal: dec("24.99")})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["reason"] != string(RejectReasonBelowMinimum) {
		t.Fatalf("expected below minimum reason, got %v", typed.Details())
	}
}

func TestComputeDiscountRoundsHalfUp(t *testing.T) {
	snapshot := types.PromoSnapshot{
		DiscountType: enums.DiscountTypePercentage,
		Value:        dec("12.5"),
	}
	// 10.01 * 12.5% = 1.25125 -> 1.25; 10.04 * 12.5% = 1.255 -> 1.26
	if got := ComputeDiscount(snapshot, dec("10.01")); !got.Equal(dec("1.25")) {
		t.Fatalf("expected 1.25, got %s", got)
	}
	if got := ComputeDiscount(snapshot, dec("10.04")); !got.Equal(dec("1.26")) {
		t.Fatalf("expected 1.26, got %s", got)
	}
}

func TestCreateRejectsCapOnFixedCode(t *testing.T) {
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{}}
	svc := newTestService(t, repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Code:              "flat",
		DiscountType:      enums.DiscountTypeFixed,
		Value:             dec("5.00"),
		MaxDiscountAmount: decPtr("3.00"),
		Active:            true,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateNormalizesCode(t *testing.T) {
	repo := &stubPromoRepo{byCode: map[string]*models.PromoCode{}}
	svc := newTestService(t, repo)

	created, err := svc.Create(context.Background(), CreateInput{
		Code:         "  welcome10 ",
		DiscountType: enums.DiscountTypePercentage,
		Value:        dec("10"),
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Code != "WELCOME10" {
		t.Fatalf("expected normalized code WELCOME10, got %q", created.Code)
	}
}
