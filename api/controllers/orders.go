package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saysophanna/babybear-backend/api/middleware"
	"github.com/saysophanna/babybear-backend/api/responses"
	"github.com/saysophanna/babybear-backend/api/validators"
	internalorders "github.com/saysophanna/babybear-backend/internal/orders"
	"github.com/saysophanna/babybear-backend/internal/proofs"
	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/logger"
	"github.com/saysophanna/babybear-backend/pkg/types"
)

type orderItemResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice string  `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	ImageURL  *string `json:"image_url,omitempty"`
}

type orderResponse struct {
	ID                  string              `json:"id"`
	OrderNumber         string              `json:"order_number"`
	Status              string              `json:"status"`
	PaymentMethod       string              `json:"payment_method"`
	PaymentStatus       string              `json:"payment_status"`
	PaymentConfirmation string              `json:"payment_confirmation"`
	Currency            string              `json:"currency"`
	Subtotal            string              `json:"subtotal"`
	Discount            string              `json:"discount"`
	DeliveryFee         string              `json:"delivery_fee"`
	Total               string              `json:"total"`
	DeliveryAddress     types.Address       `json:"delivery_address"`
	PromoCode           *string             `json:"promo_code,omitempty"`
	ProofURL            *string             `json:"proof_url,omitempty"`
	Note                *string             `json:"note,omitempty"`
	Items               []orderItemResponse `json:"items"`
	CreatedAt           string              `json:"created_at"`
	DeliveredAt         *string             `json:"delivered_at,omitempty"`
	CancelledAt         *string             `json:"cancelled_at,omitempty"`
}

func orderView(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:                  order.ID.String(),
		OrderNumber:         order.OrderNumber,
		Status:              order.Status.String(),
		PaymentMethod:       order.PaymentMethod.String(),
		PaymentStatus:       order.PaymentStatus.String(),
		PaymentConfirmation: order.PaymentConfirmation.String(),
		Currency:            order.Currency.String(),
		Subtotal:            order.Subtotal.StringFixed(2),
		Discount:            order.Discount.StringFixed(2),
		DeliveryFee:         order.DeliveryFee.StringFixed(2),
		Total:               order.Total.StringFixed(2),
		DeliveryAddress:     order.DeliveryAddress,
		ProofURL:            order.ProofURL,
		Note:                order.Note,
		Items:               make([]orderItemResponse, 0, len(order.Items)),
		CreatedAt:           order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if order.Promo != nil {
		code := order.Promo.Code
		resp.PromoCode = &code
	}
	if order.DeliveredAt != nil {
		t := order.DeliveredAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.DeliveredAt = &t
	}
	if order.CancelledAt != nil {
		t := order.CancelledAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.CancelledAt = &t
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}
	return resp
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

// OrdersList returns the buyer's orders, newest first.
func OrdersList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := internalorders.ListFilters{UserID: &userID}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(list))
		for i := range list {
			out = append(out, orderView(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderDetail returns one order after checking ownership.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.UserID != userID && middleware.RoleFromContext(r.Context()) != string(enums.UserRoleAdmin) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, orderView(order))
	}
}

// OrderCancel cancels the buyer's own order if it has not reached a terminal status.
func OrderCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.UserID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		updated, err := svc.SetStatus(r.Context(), orderID, enums.OrderStatusCancelled)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(updated))
	}
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminOrdersList returns every order, optionally filtered by status.
func AdminOrdersList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filters internalorders.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]orderResponse, 0, len(list))
		for i := range list {
			out = append(out, orderView(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminOrderByChargeRef resolves an order from a gateway charge reference,
// for reconciling a settlement line against what was sold.
func AdminOrderByChargeRef(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chargeRef := strings.TrimSpace(chi.URLParam(r, "chargeRef"))
		order, err := svc.GetByChargeRef(r.Context(), chargeRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(order))
	}
}

// AdminOrderSetStatus advances an order along the fulfilment path.
func AdminOrderSetStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body orderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		updated, err := svc.SetStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView(updated))
	}
}

// AdminOrderConfirmPayment approves a pending bank transfer.
func AdminOrderConfirmPayment(svc internalorders.Service, proofSvc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.ConfirmPayment(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := proofSvc.MarkReviewedByOrder(r.Context(), updated.ID); err != nil {
			logg.Error(r.Context(), "mark payment proof reviewed failed", err)
		}
		responses.WriteSuccess(w, orderView(updated))
	}
}

// AdminOrderRejectPayment declines a pending bank transfer.
func AdminOrderRejectPayment(svc internalorders.Service, proofSvc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.RejectPayment(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := proofSvc.MarkReviewedByOrder(r.Context(), updated.ID); err != nil {
			logg.Error(r.Context(), "mark payment proof reviewed failed", err)
		}
		responses.WriteSuccess(w, orderView(updated))
	}
}
