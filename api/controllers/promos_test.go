package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/saysophanna/babybear-backend/internal/promo"
	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func jsonBody(body string) io.Reader {
	return strings.NewReader(body)
}

type stubControllerPromoService struct {
	validate func(ctx context.Context, input promo.ValidateInput) (*types.PromoSnapshot, error)
	create   func(ctx context.Context, input promo.CreateInput) (*models.PromoCode, error)
}

func (s *stubControllerPromoService) Validate(ctx context.Context, input promo.ValidateInput) (*types.PromoSnapshot, error) {
	if s.validate != nil {
		return s.validate(ctx, input)
	}
	return nil, nil
}

func (s *stubControllerPromoService) Create(ctx context.Context, input promo.CreateInput) (*models.PromoCode, error) {
	if s.create != nil {
		return s.create(ctx, input)
	}
	return nil, nil
}

func (s *stubControllerPromoService) Update(ctx context.Context, input promo.UpdateInput) (*models.PromoCode, error) {
	return nil, nil
}

func (s *stubControllerPromoService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *stubControllerPromoService) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	return nil, nil
}

func (s *stubControllerPromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	return nil, nil
}

func TestPromoValidateReturnsDiscount(t *testing.T) {
	svc := &stubControllerPromoService{
		validate: func(ctx context.Context, input promo.ValidateInput) (*types.PromoSnapshot, error) {
			if input.Code != "SAVE10" {
				t.Fatalf("unexpected code %q", input.Code)
			}
			if !input.Subtotal.Equal(decimal.RequireFromString("20.00")) {
				t.Fatalf("unexpected subtotal %s", input.Subtotal)
			}
			return &types.PromoSnapshot{
				Code:            "SAVE10",
				DiscountType:    enums.DiscountTypePercentage,
				Value:           decimal.RequireFromString("10"),
				DiscountApplied: decimal.RequireFromString("2.00"),
			}, nil
		},
	}

	handler := PromoValidate(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/promos/validate", jsonBody(`{"code":"SAVE10","subtotal":"20.00"}`))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data promoValidateResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.DiscountApplied != "2.00" {
		t.Fatalf("unexpected discount %q", envelope.Data.DiscountApplied)
	}
}

func TestPromoValidateSurfacesRejectionReason(t *testing.T) {
	svc := &stubControllerPromoService{
		validate: func(ctx context.Context, input promo.ValidateInput) (*types.PromoSnapshot, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code has expired").
				WithDetails(map[string]string{"reason": "expired"})
		},
	}

	handler := PromoValidate(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/promos/validate", jsonBody(`{"code":"OLD","subtotal":"20.00"}`))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Details["reason"] != "expired" {
		t.Fatalf("expected rejection reason, got %+v", envelope.Error)
	}
}

func TestAdminPromoCreateParsesAmounts(t *testing.T) {
	var got promo.CreateInput
	svc := &stubControllerPromoService{
		create: func(ctx context.Context, input promo.CreateInput) (*models.PromoCode, error) {
			got = input
			return &models.PromoCode{
				ID:           uuid.New(),
				Code:         "WELCOME10",
				DiscountType: input.DiscountType,
				Value:        input.Value,
				Active:       input.Active,
			}, nil
		},
	}

	handler := AdminPromoCreate(svc, nil)
	body := `{"code":"welcome10","discount_type":"percentage","value":"10","max_discount_amount":"3.00","active":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/promos", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	if got.DiscountType != enums.DiscountTypePercentage {
		t.Fatalf("unexpected discount type %s", got.DiscountType)
	}
	if got.MaxDiscountAmount == nil || !got.MaxDiscountAmount.Equal(decimal.RequireFromString("3.00")) {
		t.Fatalf("cap not parsed: %+v", got.MaxDiscountAmount)
	}
}
