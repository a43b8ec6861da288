package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/internal/orders"
	"github.com/saysophanna/babybear-backend/internal/payments/bakong"
	"github.com/saysophanna/babybear-backend/internal/promo"
	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/logger"
	"github.com/saysophanna/babybear-backend/pkg/metrics"
	"github.com/saysophanna/babybear-backend/pkg/types"
)

type orderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (*models.Order, error)
}

type promoValidator interface {
	Validate(ctx context.Context, input promo.ValidateInput) (*types.PromoSnapshot, error)
}

type proofLinker interface {
	AttachOrder(ctx context.Context, proofID, orderID uuid.UUID) error
}

// Rules carries the checkout policy knobs.
type Rules struct {
	PollInterval         time.Duration
	PollTimeout          time.Duration
	DeliveryFee          decimal.Decimal
	FreeDeliveryMinItems int
}

// Item is one cart line inside a checkout draft.
type Item struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	ImageURL  *string
}

// Draft is the order-in-progress owned by the session until submission.
type Draft struct {
	Items       []Item
	Address     *types.Address
	Method      enums.PaymentMethod
	Currency    enums.Currency
	Promo       *types.PromoSnapshot
	ProofID     *uuid.UUID
	ProofURL    *string
	ChargeRef   *string
	QRPayload   string
	Deeplink    *string
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
	Note        *string
}

// Session drives one buyer's checkout from cart to committed order.
type Session struct {
	ID     uuid.UUID
	UserID uuid.UUID

	gateway bakong.Gateway
	orders  orderCreator
	promos  promoValidator
	proofs  proofLinker
	rules   Rules
	logger  *logger.Logger
	metrics *metrics.CheckoutMetrics

	mu          sync.Mutex
	state       State
	draft       Draft
	poller      *Poller
	orderID     *uuid.UUID
	lastOutcome *PollOutcome
}

// NewSession builds a checkout session for one buyer.
func NewSession(userID uuid.UUID, gateway bakong.Gateway, orderSvc orderCreator, promoSvc promoValidator, proofSvc proofLinker, rules Rules, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Session, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if promoSvc == nil {
		return nil, fmt.Errorf("promo service required")
	}
	if proofSvc == nil {
		return nil, fmt.Errorf("proof service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Session{
		ID:      uuid.New(),
		UserID:  userID,
		gateway: gateway,
		orders:  orderSvc,
		promos:  promoSvc,
		proofs:  proofSvc,
		rules:   rules,
		logger:  logg,
		metrics: m,
		state:   StateIdle,
		draft:   Draft{Currency: enums.CurrencyUSD},
	}, nil
}

// View is a read-only copy handed to callers.
type View struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	State       State
	Draft       Draft
	OrderID     *uuid.UUID
	LastOutcome *PollOutcome
}

// Snapshot returns the current state and draft.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:          s.ID,
		UserID:      s.UserID,
		State:       s.state,
		Draft:       s.draft,
		OrderID:     s.orderID,
		LastOutcome: s.lastOutcome,
	}
}

// SetItems replaces the cart contents and recomputes totals.
func (s *Session) SetItems(items []Item) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already committed")
	}
	s.draft.Items = items
	s.recomputeLocked()
	return nil
}

// SelectAddress records the delivery destination.
func (s *Session) SelectAddress(address types.Address) error {
	if err := address.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, StateAddressSelected) {
		return s.transitionErrorLocked(StateAddressSelected)
	}
	s.cancelPollLocked()
	// Abandon any outstanding charge so the poll's late Cancelled
	// outcome cannot match and move the session forward.
	s.draft.ChargeRef = nil
	s.draft.QRPayload = ""
	s.draft.Deeplink = nil
	s.draft.Address = &address
	s.state = StateAddressSelected
	return nil
}

// SelectMethod chooses how the order will be paid. For KHQR this also
// requests a charge and begins polling for confirmation; the session
// submits itself when the poll confirms.
func (s *Session) SelectMethod(ctx context.Context, method enums.PaymentMethod) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	s.mu.Lock()
	if !canTransition(s.state, StateMethodSelected) {
		defer s.mu.Unlock()
		return s.transitionErrorLocked(StateMethodSelected)
	}
	if s.draft.Address == nil {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "select a delivery address first")
	}
	if len(s.draft.Items) == 0 {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	s.cancelPollLocked()
	s.draft.Method = method
	s.draft.ChargeRef = nil
	s.draft.QRPayload = ""
	s.draft.Deeplink = nil
	s.lastOutcome = nil
	s.state = StateMethodSelected

	if method != enums.PaymentMethodKHQR {
		s.mu.Unlock()
		return nil
	}

	total := s.draft.Total
	currency := s.draft.Currency
	billNumber := s.ID.String()
	s.mu.Unlock()

	charge, err := s.gateway.RequestCharge(ctx, bakong.ChargeParams{
		Amount:     total,
		Currency:   currency,
		BillNumber: billNumber,
	})
	if err != nil {
		// Stay in MethodSelected so the user can retry the charge.
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateMethodSelected || s.draft.Method != enums.PaymentMethodKHQR {
		// The user moved on while the charge was in flight.
		return nil
	}
	s.draft.ChargeRef = &charge.ChargeRef
	s.draft.QRPayload = charge.QRPayload
	s.draft.Deeplink = charge.Deeplink
	s.state = StateGating

	return s.startPollLocked(charge.ChargeRef)
}

func (s *Session) startPollLocked(chargeRef string) error {
	poller, err := NewPoller(s.gateway, s.rules.PollInterval, s.rules.PollTimeout, s.logger, s.metrics)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment poller")
	}

	// The poll must outlive the request that started it.
	ctx := s.logger.WithSessionID(context.Background(), s.ID.String())
	results, err := poller.Start(ctx, chargeRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "start payment poll")
	}
	s.poller = poller

	go func() {
		result, ok := <-results
		if !ok {
			return
		}
		s.handlePollResult(ctx, result)
	}()
	return nil
}

// handlePollResult is the only consumer of poll outcomes; all poll-driven
// transitions happen here rather than in callback closures.
func (s *Session) handlePollResult(ctx context.Context, result PollResult) {
	s.mu.Lock()
	if s.draft.ChargeRef == nil || *s.draft.ChargeRef != result.ChargeRef {
		// Stale poller from an abandoned charge.
		s.mu.Unlock()
		return
	}
	s.poller = nil
	outcome := result.Outcome
	s.lastOutcome = &outcome

	switch result.Outcome {
	case PollOutcomeConfirmed:
		if !canTransition(s.state, StateReadyToSubmit) {
			s.mu.Unlock()
			return
		}
		s.state = StateReadyToSubmit
		s.mu.Unlock()
		if err := s.submit(ctx, &result.ChargeRef); err != nil {
			s.logger.Error(ctx, "auto-submit after payment confirmation failed", err)
		}

	case PollOutcomeTimedOut, PollOutcomeCancelled:
		// The charge reference is abandoned; a late confirmation for it
		// must not create an order.
		s.draft.ChargeRef = nil
		s.draft.QRPayload = ""
		s.draft.Deeplink = nil
		if canTransition(s.state, StateMethodSelected) {
			s.state = StateMethodSelected
		}
		s.mu.Unlock()
	}
}

// CancelPolling stops an in-flight gateway poll at the user's request.
func (s *Session) CancelPolling() {
	s.mu.Lock()
	poller := s.poller
	s.mu.Unlock()
	if poller != nil {
		poller.Cancel()
	}
}

func (s *Session) cancelPollLocked() {
	if s.poller != nil {
		s.poller.Cancel()
		s.poller = nil
	}
}

// ApplyPromo validates a code against the current subtotal and applies it.
func (s *Session) ApplyPromo(ctx context.Context, code string) error {
	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already committed")
	}
	subtotal := s.draft.Subtotal
	s.mu.Unlock()

	snapshot, err := s.promos.Validate(ctx, promo.ValidateInput{Code: code, Subtotal: subtotal})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Promo = snapshot
	s.recomputeLocked()
	return nil
}

// RemovePromo drops the applied code and resets the discount to zero.
func (s *Session) RemovePromo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Promo = nil
	s.recomputeLocked()
}

// AttachProof records an uploaded transfer slip. The proof is linked to
// the order at submission so the retention sweep cannot reclaim it.
func (s *Session) AttachProof(proofID uuid.UUID, proofURL string) error {
	if proofID == uuid.Nil || proofURL == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "proof reference required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already committed")
	}
	s.draft.ProofID = &proofID
	s.draft.ProofURL = &proofURL
	return nil
}

// Submit creates the order. Repeated triggers while a submission is in
// flight are ignored so a double activation cannot create two orders.
func (s *Session) Submit(ctx context.Context) error {
	return s.submit(ctx, nil)
}

func (s *Session) submit(ctx context.Context, pollChargeRef *string) error {
	s.mu.Lock()
	// A poll-driven submit only commits the confirmed KHQR charge. If the
	// user switched method or regenerated the charge between the
	// confirmation and this point, the outcome is stale.
	if pollChargeRef != nil {
		if s.state != StateReadyToSubmit ||
			s.draft.Method != enums.PaymentMethodKHQR ||
			s.draft.ChargeRef == nil || *s.draft.ChargeRef != *pollChargeRef {
			s.mu.Unlock()
			return nil
		}
	}
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateCommitted {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already committed")
	}

	// KHQR submission is poll-driven, never user-triggered: only a
	// confirmed poll moves the session to ReadyToSubmit.
	if s.draft.Method == enums.PaymentMethodKHQR && s.state == StateGating {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "awaiting payment confirmation")
	}

	if err := s.gateLocked(); err != nil {
		method := s.draft.Method
		s.mu.Unlock()
		s.metrics.IncSubmission(method.String(), "blocked")
		return err
	}

	if s.state != StateReadyToSubmit {
		if !canTransition(s.state, StateReadyToSubmit) {
			defer s.mu.Unlock()
			return s.transitionErrorLocked(StateReadyToSubmit)
		}
		s.state = StateReadyToSubmit
	}
	s.state = StateSubmitting

	input := orders.CreateInput{
		UserID:          s.UserID,
		Currency:        s.draft.Currency,
		PaymentMethod:   s.draft.Method,
		DeliveryAddress: *s.draft.Address,
		Subtotal:        s.draft.Subtotal,
		Discount:        s.draft.Discount,
		DeliveryFee:     s.draft.DeliveryFee,
		Total:           s.draft.Total,
		Promo:           s.draft.Promo,
		ChargeRef:       s.draft.ChargeRef,
		ProofURL:        s.draft.ProofURL,
		Note:            s.draft.Note,
	}
	for _, item := range s.draft.Items {
		input.Items = append(input.Items, orders.ItemInput{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}
	method := s.draft.Method
	proofID := s.draft.ProofID
	s.mu.Unlock()

	order, err := s.orders.Create(ctx, input)
	if err == nil && proofID != nil {
		// The order row is committed either way; a failed link leaves the
		// proof unlinked and eligible for the retention sweep, so surface
		// it loudly.
		if linkErr := s.proofs.AttachOrder(ctx, *proofID, order.ID); linkErr != nil {
			s.logger.Error(ctx, "link payment proof to order failed", linkErr)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// The draft survives so the user can retry without redoing
		// address, promo, or proof.
		s.state = StateFailed
		s.metrics.IncSubmission(method.String(), "failed")
		return err
	}

	s.state = StateCommitted
	s.orderID = &order.ID
	s.draft.Items = nil
	s.draft.ProofID = nil
	s.draft.ProofURL = nil
	s.draft.ChargeRef = nil
	s.draft.QRPayload = ""
	s.draft.Deeplink = nil
	s.cancelPollLocked()
	s.recomputeLocked()
	s.metrics.IncSubmission(method.String(), "committed")
	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"checkout_session_id": s.ID.String(),
		"order_id":            order.ID.String(),
	}), "checkout committed")
	return nil
}

// gateLocked enforces per-method submission preconditions.
func (s *Session) gateLocked() error {
	if s.draft.Address == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "select a delivery address first")
	}
	if len(s.draft.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	switch s.draft.Method {
	case enums.PaymentMethodCOD:
		return nil
	case enums.PaymentMethodBankTransfer:
		if s.draft.ProofID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "upload a payment proof before submitting")
		}
		return nil
	case enums.PaymentMethodKHQR:
		if s.draft.ChargeRef == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "awaiting payment confirmation")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "select a payment method first")
	}
}

func (s *Session) recomputeLocked() {
	subtotal := decimal.Zero
	itemCount := 0
	for _, item := range s.draft.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		itemCount += item.Quantity
	}
	s.draft.Subtotal = subtotal.Round(2)

	discount := decimal.Zero
	if s.draft.Promo != nil {
		discount = promo.ComputeDiscount(*s.draft.Promo, s.draft.Subtotal)
		s.draft.Promo.DiscountApplied = discount
	}
	s.draft.Discount = discount

	fee := decimal.Zero
	if itemCount > 0 && itemCount < s.rules.FreeDeliveryMinItems {
		fee = s.rules.DeliveryFee
	}
	s.draft.DeliveryFee = fee

	total := s.draft.Subtotal.Add(fee).Sub(discount).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}
	s.draft.Total = total
}

func (s *Session) transitionErrorLocked(to State) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move checkout from %s to %s", s.state, to)).
		WithDetails(map[string]string{"from": s.state.String(), "to": to.String()})
}
