package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/api/middleware"
	internalorders "github.com/saysophanna/babybear-backend/internal/orders"
	internalproofs "github.com/saysophanna/babybear-backend/internal/proofs"
	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	"github.com/saysophanna/babybear-backend/pkg/types"
)

type stubControllerOrdersService struct {
	create         func(ctx context.Context, input internalorders.CreateInput) (*models.Order, error)
	get            func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	getByChargeRef func(ctx context.Context, chargeRef string) (*models.Order, error)
	list           func(ctx context.Context, filters internalorders.ListFilters) ([]models.Order, error)
	setStatus      func(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	confirmPayment func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	rejectPayment  func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

func (s *stubControllerOrdersService) Create(ctx context.Context, input internalorders.CreateInput) (*models.Order, error) {
	if s.create != nil {
		return s.create(ctx, input)
	}
	return nil, nil
}

func (s *stubControllerOrdersService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, nil
}

func (s *stubControllerOrdersService) GetByChargeRef(ctx context.Context, chargeRef string) (*models.Order, error) {
	if s.getByChargeRef != nil {
		return s.getByChargeRef(ctx, chargeRef)
	}
	return nil, nil
}

func (s *stubControllerOrdersService) List(ctx context.Context, filters internalorders.ListFilters) ([]models.Order, error) {
	if s.list != nil {
		return s.list(ctx, filters)
	}
	return nil, nil
}

func (s *stubControllerOrdersService) SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if s.setStatus != nil {
		return s.setStatus(ctx, orderID, status)
	}
	return nil, nil
}

func (s *stubControllerOrdersService) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.confirmPayment != nil {
		return s.confirmPayment(ctx, orderID)
	}
	return nil, nil
}

func (s *stubControllerOrdersService) RejectPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.rejectPayment != nil {
		return s.rejectPayment(ctx, orderID)
	}
	return nil, nil
}

type stubControllerProofService struct {
	markReviewedByOrder func(ctx context.Context, orderID uuid.UUID) error
}

func (s *stubControllerProofService) Upload(ctx context.Context, userID uuid.UUID, input internalproofs.UploadInput) (*models.PaymentProof, error) {
	return nil, nil
}

func (s *stubControllerProofService) Get(ctx context.Context, userID uuid.UUID, role enums.UserRole, id uuid.UUID) (*models.PaymentProof, error) {
	return nil, nil
}

func (s *stubControllerProofService) AttachOrder(ctx context.Context, proofID, orderID uuid.UUID) error {
	return nil
}

func (s *stubControllerProofService) MarkReviewedByOrder(ctx context.Context, orderID uuid.UUID) error {
	if s.markReviewedByOrder != nil {
		return s.markReviewedByOrder(ctx, orderID)
	}
	return nil
}

func sampleOrder(userID uuid.UUID) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "BB-20260110-ABCDEF",
		UserID:        userID,
		Currency:      enums.CurrencyUSD,
		Status:        enums.OrderStatusOrderPlaced,
		PaymentMethod: enums.PaymentMethodCOD,
		PaymentStatus: enums.PaymentStatusPending,
		Subtotal:      decimal.RequireFromString("20.00"),
		DeliveryFee:   decimal.RequireFromString("1.50"),
		Total:         decimal.RequireFromString("21.50"),
		DeliveryAddress: types.Address{
			Recipient: "Dara",
			Phone:     "012345678",
			Line1:     "St 123",
			City:      "Phnom Penh",
		},
	}
}

func TestOrdersListFiltersByCaller(t *testing.T) {
	userID := uuid.New()
	svc := &stubControllerOrdersService{
		list: func(ctx context.Context, filters internalorders.ListFilters) ([]models.Order, error) {
			if filters.UserID == nil || *filters.UserID != userID {
				t.Fatalf("expected user filter %s, got %v", userID, filters.UserID)
			}
			if filters.Status == nil || *filters.Status != enums.OrderStatusDelivered {
				t.Fatal("status filter not parsed")
			}
			return []models.Order{*sampleOrder(userID)}, nil
		},
	}

	handler := OrdersList(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=delivered", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data []orderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].Total != "21.50" {
		t.Fatalf("unexpected orders in response: %+v", envelope.Data)
	}
}

func TestOrderDetailHidesForeignOrders(t *testing.T) {
	owner := uuid.New()
	order := sampleOrder(owner)
	svc := &stubControllerOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return order, nil
		},
	}

	r := chi.NewRouter()
	r.Get("/orders/{orderId}", OrderDetail(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/orders/"+order.ID.String(), nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestOrderCancelUsesCancelledStatus(t *testing.T) {
	owner := uuid.New()
	order := sampleOrder(owner)
	var gotStatus enums.OrderStatus
	svc := &stubControllerOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return order, nil
		},
		setStatus: func(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
			gotStatus = status
			updated := *order
			updated.Status = status
			return &updated, nil
		},
	}

	r := chi.NewRouter()
	r.Post("/orders/{orderId}/cancel", OrderCancel(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/orders/"+order.ID.String()+"/cancel", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), owner.String()))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotStatus != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", gotStatus)
	}
}

func TestAdminOrderByChargeRefLooksUpOrder(t *testing.T) {
	order := sampleOrder(uuid.New())
	var gotRef string
	svc := &stubControllerOrdersService{
		getByChargeRef: func(ctx context.Context, chargeRef string) (*models.Order, error) {
			gotRef = chargeRef
			return order, nil
		},
	}

	r := chi.NewRouter()
	r.Get("/orders/by-charge-ref/{chargeRef}", AdminOrderByChargeRef(svc, nil))

	ref := "0b7f2f4f1c9f4d2e8a6b5c4d3e2f1a0b"
	req := httptest.NewRequest(http.MethodGet, "/orders/by-charge-ref/"+ref, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotRef != ref {
		t.Fatalf("expected charge ref %q, got %q", ref, gotRef)
	}

	var envelope struct {
		Data orderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != order.ID.String() {
		t.Fatalf("expected order %s, got %s", order.ID, envelope.Data.ID)
	}
}

func TestAdminOrderConfirmPaymentMarksProofReviewed(t *testing.T) {
	order := sampleOrder(uuid.New())
	svc := &stubControllerOrdersService{
		confirmPayment: func(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
			updated := *order
			updated.PaymentStatus = enums.PaymentStatusPaid
			return &updated, nil
		},
	}
	var reviewed *uuid.UUID
	proofSvc := &stubControllerProofService{
		markReviewedByOrder: func(ctx context.Context, orderID uuid.UUID) error {
			reviewed = &orderID
			return nil
		},
	}

	r := chi.NewRouter()
	r.Post("/orders/{orderId}/confirm-payment", AdminOrderConfirmPayment(svc, proofSvc, nil))

	req := httptest.NewRequest(http.MethodPost, "/orders/"+order.ID.String()+"/confirm-payment", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if reviewed == nil || *reviewed != order.ID {
		t.Fatalf("expected proof for order %s marked reviewed, got %v", order.ID, reviewed)
	}
}

func TestAdminOrderSetStatusRejectsUnknownStatus(t *testing.T) {
	svc := &stubControllerOrdersService{}

	r := chi.NewRouter()
	r.Post("/orders/{orderId}/status", AdminOrderSetStatus(svc, nil))

	body := `{"status":"teleported"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/status", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
