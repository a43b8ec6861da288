package checkout

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/saysophanna/babybear-backend/internal/payments/bakong"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/logger"
	"github.com/saysophanna/babybear-backend/pkg/metrics"
)

// Manager owns the live checkout sessions for this process.
type Manager struct {
	gateway bakong.Gateway
	orders  orderCreator
	promos  promoValidator
	proofs  proofLinker
	rules   Rules
	logger  *logger.Logger
	metrics *metrics.CheckoutMetrics

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager builds a session manager with the shared dependencies.
func NewManager(gateway bakong.Gateway, orderSvc orderCreator, promoSvc promoValidator, proofSvc proofLinker, rules Rules, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Manager, error) {
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
	return &Manager{
		gateway:  gateway,
		orders:   orderSvc,
		promos:   promoSvc,
		proofs:   proofSvc,
		rules:    rules,
		logger:   logg,
		metrics:  m,
		sessions: make(map[uuid.UUID]*Session),
	}, nil
}

// Create starts a fresh session for the buyer.
func (m *Manager) Create(userID uuid.UUID) (*Session, error) {
	session, err := NewSession(userID, m.gateway, m.orders, m.promos, m.proofs, m.rules, m.logger, m.metrics)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "create checkout session")
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	return session, nil
}

// Get looks up a session and enforces ownership.
func (m *Manager) Get(sessionID, userID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	if session.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout session does not belong to user")
	}
	return session, nil
}

// Remove abandons a session, cancelling any in-flight poll.
func (m *Manager) Remove(sessionID, userID uuid.UUID) error {
	session, err := m.Get(sessionID, userID)
	if err != nil {
		return err
	}
	session.CancelPolling()

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}
