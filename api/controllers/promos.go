package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/api/responses"
	"github.com/saysophanna/babybear-backend/api/validators"
	"github.com/saysophanna/babybear-backend/internal/promo"
	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/logger"
)

type promoCreateRequest struct {
	Code              string     `json:"code" validate:"required"`
	DiscountType      string     `json:"discount_type" validate:"required,oneof=percentage fixed"`
	Value             string     `json:"value" validate:"required"`
	MaxDiscountAmount *string    `json:"max_discount_amount"`
	MinOrderAmount    *string    `json:"min_order_amount"`
	Active            bool       `json:"active"`
	StartsAt          *time.Time `json:"starts_at"`
	ExpiresAt         *time.Time `json:"expires_at"`
}

type promoUpdateRequest struct {
	Value             *string    `json:"value"`
	MaxDiscountAmount *string    `json:"max_discount_amount"`
	MinOrderAmount    *string    `json:"min_order_amount"`
	Active            *bool      `json:"active"`
	StartsAt          *time.Time `json:"starts_at"`
	ExpiresAt         *time.Time `json:"expires_at"`
}

type promoResponse struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	DiscountType      string     `json:"discount_type"`
	Value             string     `json:"value"`
	MaxDiscountAmount *string    `json:"max_discount_amount,omitempty"`
	MinOrderAmount    *string    `json:"min_order_amount,omitempty"`
	Active            bool       `json:"active"`
	StartsAt          *time.Time `json:"starts_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

func promoView(code *models.PromoCode) promoResponse {
	resp := promoResponse{
		ID:           code.ID.String(),
		Code:         code.Code,
		DiscountType: code.DiscountType.String(),
		Value:        code.Value.StringFixed(2),
		Active:       code.Active,
		StartsAt:     code.StartsAt,
		ExpiresAt:    code.ExpiresAt,
	}
	if code.MaxDiscountAmount != nil {
		v := code.MaxDiscountAmount.StringFixed(2)
		resp.MaxDiscountAmount = &v
	}
	if code.MinOrderAmount != nil {
		v := code.MinOrderAmount.StringFixed(2)
		resp.MinOrderAmount = &v
	}
	return resp
}

func parseAmount(raw string, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount").
			WithDetails(map[string]string{"field": field})
	}
	return value, nil
}

func parseOptionalAmount(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := parseAmount(*raw, field)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func parsePromoID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "promoId"))
	promoID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promo id")
	}
	return promoID, nil
}

// AdminPromoCreate registers a new promo code.
func AdminPromoCreate(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body promoCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType, err := enums.ParseDiscountType(body.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}
		value, err := parseAmount(body.Value, "value")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		maxDiscount, err := parseOptionalAmount(body.MaxDiscountAmount, "max_discount_amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		minOrder, err := parseOptionalAmount(body.MinOrderAmount, "min_order_amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), promo.CreateInput{
			Code:              body.Code,
			DiscountType:      discountType,
			Value:             value,
			MaxDiscountAmount: maxDiscount,
			MinOrderAmount:    minOrder,
			Active:            body.Active,
			StartsAt:          body.StartsAt,
			ExpiresAt:         body.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, promoView(created))
	}
}

// AdminPromoUpdate applies partial edits to a promo code.
func AdminPromoUpdate(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promoID, err := parsePromoID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body promoUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := promo.UpdateInput{
			ID:        promoID,
			Active:    body.Active,
			StartsAt:  body.StartsAt,
			ExpiresAt: body.ExpiresAt,
		}
		if input.Value, err = parseOptionalAmount(body.Value, "value"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.MaxDiscountAmount, err = parseOptionalAmount(body.MaxDiscountAmount, "max_discount_amount"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.MinOrderAmount, err = parseOptionalAmount(body.MinOrderAmount, "min_order_amount"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promoView(updated))
	}
}

// AdminPromoDelete removes a promo code.
func AdminPromoDelete(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promoID, err := parsePromoID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), promoID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminPromoList returns every promo code.
func AdminPromoList(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]promoResponse, 0, len(list))
		for i := range list {
			out = append(out, promoView(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type promoValidateRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal string `json:"subtotal" validate:"required"`
}

type promoValidateResponse struct {
	Code            string `json:"code"`
	DiscountType    string `json:"discount_type"`
	DiscountApplied string `json:"discount_applied"`
}

// PromoValidate checks a code against a subtotal without applying it.
func PromoValidate(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body promoValidateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subtotal, err := parseAmount(body.Subtotal, "subtotal")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Validate(r.Context(), promo.ValidateInput{Code: body.Code, Subtotal: subtotal})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promoValidateResponse{
			Code:            snapshot.Code,
			DiscountType:    snapshot.DiscountType.String(),
			DiscountApplied: snapshot.DiscountApplied.StringFixed(2),
		})
	}
}
