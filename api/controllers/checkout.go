package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/api/middleware"
	"github.com/saysophanna/babybear-backend/api/responses"
	"github.com/saysophanna/babybear-backend/api/validators"
	"github.com/saysophanna/babybear-backend/internal/checkout"
	"github.com/saysophanna/babybear-backend/internal/proofs"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/logger"
	"github.com/saysophanna/babybear-backend/pkg/types"
)

type checkoutItemRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid4"`
	Name      string  `json:"name" validate:"required"`
	UnitPrice string  `json:"unit_price" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
	ImageURL  *string `json:"image_url"`
}

type checkoutItemsRequest struct {
	Items []checkoutItemRequest `json:"items" validate:"required,dive"`
}

type checkoutAddressRequest struct {
	Label     string `json:"label"`
	Recipient string `json:"recipient" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Line1     string `json:"line1" validate:"required"`
	Line2     string `json:"line2"`
	City      string `json:"city" validate:"required"`
	Province  string `json:"province"`
	Note      string `json:"note"`
}

type checkoutMethodRequest struct {
	Method string `json:"method" validate:"required,oneof=cod bank_transfer khqr"`
}

type checkoutPromoRequest struct {
	Code string `json:"code" validate:"required"`
}

type checkoutProofRequest struct {
	ProofID string `json:"proof_id" validate:"required,uuid4"`
}

type checkoutItemResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice string  `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	ImageURL  *string `json:"image_url,omitempty"`
}

type checkoutPromoResponse struct {
	Code            string `json:"code"`
	DiscountApplied string `json:"discount_applied"`
}

type checkoutSessionResponse struct {
	SessionID   string                 `json:"session_id"`
	State       string                 `json:"state"`
	Items       []checkoutItemResponse `json:"items"`
	Address     *types.Address         `json:"address,omitempty"`
	Method      string                 `json:"method,omitempty"`
	Currency    string                 `json:"currency"`
	Promo       *checkoutPromoResponse `json:"promo,omitempty"`
	ProofURL    *string                `json:"proof_url,omitempty"`
	QRPayload   string                 `json:"qr_payload,omitempty"`
	Deeplink    *string                `json:"deeplink,omitempty"`
	Subtotal    string                 `json:"subtotal"`
	Discount    string                 `json:"discount"`
	DeliveryFee string                 `json:"delivery_fee"`
	Total       string                 `json:"total"`
	OrderID     *string                `json:"order_id,omitempty"`
	PollOutcome *string                `json:"poll_outcome,omitempty"`
}

func checkoutSessionView(view checkout.View) checkoutSessionResponse {
	resp := checkoutSessionResponse{
		SessionID:   view.ID.String(),
		State:       view.State.String(),
		Items:       make([]checkoutItemResponse, 0, len(view.Draft.Items)),
		Address:     view.Draft.Address,
		Method:      view.Draft.Method.String(),
		Currency:    view.Draft.Currency.String(),
		ProofURL:    view.Draft.ProofURL,
		QRPayload:   view.Draft.QRPayload,
		Deeplink:    view.Draft.Deeplink,
		Subtotal:    view.Draft.Subtotal.StringFixed(2),
		Discount:    view.Draft.Discount.StringFixed(2),
		DeliveryFee: view.Draft.DeliveryFee.StringFixed(2),
		Total:       view.Draft.Total.StringFixed(2),
	}
	for _, item := range view.Draft.Items {
		resp.Items = append(resp.Items, checkoutItemResponse{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}
	if view.Draft.Promo != nil {
		resp.Promo = &checkoutPromoResponse{
			Code:            view.Draft.Promo.Code,
			DiscountApplied: view.Draft.Promo.DiscountApplied.StringFixed(2),
		}
	}
	if view.OrderID != nil {
		id := view.OrderID.String()
		resp.OrderID = &id
	}
	if view.LastOutcome != nil {
		outcome := string(*view.LastOutcome)
		resp.PollOutcome = &outcome
	}
	return resp
}

func requireUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return userID, nil
}

func sessionFromRequest(manager *checkout.Manager, r *http.Request) (*checkout.Session, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(chi.URLParam(r, "sessionId"))
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id")
	}
	return manager.Get(sessionID, userID)
}

// CheckoutSessionCreate opens a fresh checkout session for the buyer.
func CheckoutSessionCreate(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := manager.Create(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutSessionDetail returns the current session state and draft.
func CheckoutSessionDetail(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutSetItems replaces the cart contents of a session.
func CheckoutSetItems(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutItemsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkout.Item, 0, len(body.Items))
		for _, in := range body.Items {
			productID, err := uuid.Parse(in.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			price, err := decimal.NewFromString(in.UnitPrice)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit price"))
				return
			}
			items = append(items, checkout.Item{
				ProductID: productID,
				Name:      in.Name,
				UnitPrice: price,
				Quantity:  in.Quantity,
				ImageURL:  in.ImageURL,
			})
		}

		if err := session.SetItems(items); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutSelectAddress records the delivery destination.
func CheckoutSelectAddress(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutAddressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address := types.Address{
			Label:     body.Label,
			Recipient: body.Recipient,
			Phone:     body.Phone,
			Line1:     body.Line1,
			Line2:     body.Line2,
			City:      body.City,
			Province:  body.Province,
			Note:      body.Note,
		}
		if err := session.SelectAddress(address); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutSelectMethod selects the payment method. Choosing KHQR also
// requests a charge and returns the QR payload for display.
func CheckoutSelectMethod(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutMethodRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		if err := session.SelectMethod(r.Context(), method); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutApplyPromo validates a code against the current subtotal and applies it.
func CheckoutApplyPromo(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutPromoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := session.ApplyPromo(r.Context(), body.Code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutRemovePromo drops the applied promo code.
func CheckoutRemovePromo(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session.RemovePromo()
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutAttachProof links an uploaded transfer slip to the session.
// The slip must exist and belong to the caller.
func CheckoutAttachProof(manager *checkout.Manager, proofSvc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutProofRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proofID, err := uuid.Parse(body.ProofID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid proof id"))
			return
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		proof, err := proofSvc.Get(r.Context(), session.UserID, role, proofID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := session.AttachProof(proof.ID, proof.URL); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutSubmit attempts to place the order from the current draft.
func CheckoutSubmit(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := session.Submit(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutCancelPolling stops waiting for a KHQR confirmation.
func CheckoutCancelPolling(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFromRequest(manager, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session.CancelPolling()

		// The poll result lands asynchronously; give the session a moment
		// to settle so the response reflects the cancellation.
		deadline := time.Now().Add(500 * time.Millisecond)
		for time.Now().Before(deadline) {
			if view := session.Snapshot(); view.State != checkout.StateGating {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		responses.WriteSuccess(w, checkoutSessionView(session.Snapshot()))
	}
}

// CheckoutSessionDelete abandons a session.
func CheckoutSessionDelete(manager *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		raw := strings.TrimSpace(chi.URLParam(r, "sessionId"))
		sessionID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
			return
		}
		if err := manager.Remove(sessionID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}
