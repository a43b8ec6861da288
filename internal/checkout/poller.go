package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/saysophanna/babybear-backend/internal/payments/bakong"
	"github.com/saysophanna/babybear-backend/pkg/logger"
	"github.com/saysophanna/babybear-backend/pkg/metrics"
)

// PollOutcome is the single terminal result of one polling run.
type PollOutcome string

const (
	PollOutcomeConfirmed PollOutcome = "confirmed"
	PollOutcomeTimedOut  PollOutcome = "timed_out"
	PollOutcomeCancelled PollOutcome = "cancelled"
)

// PollResult is delivered exactly once per started poller.
type PollResult struct {
	Outcome   PollOutcome
	ChargeRef string
}

type statusChecker interface {
	CheckStatus(ctx context.Context, chargeRef string) (*bakong.ChargeStatus, error)
}

var errPollerStarted = errors.New("poller already started")

// Poller repeatedly checks one charge until it is paid, the deadline
// passes, or the poller is cancelled. It is single-use: start a new
// Poller for every charge.
type Poller struct {
	checker  statusChecker
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger
	metrics  *metrics.CheckoutMetrics

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	once    sync.Once
	results chan PollResult
}

// NewPoller builds a poller for a single charge confirmation run.
func NewPoller(checker statusChecker, interval, timeout time.Duration, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Poller, error) {
	if checker == nil {
		return nil, errors.New("status checker required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if interval <= 0 {
		interval = 4 * time.Second
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Poller{
		checker:  checker,
		interval: interval,
		timeout:  timeout,
		logger:   logg,
		metrics:  m,
		results:  make(chan PollResult, 1),
	}, nil
}

// Start begins polling and returns the channel the terminal result will
// be delivered on. The channel receives exactly one value.
func (p *Poller) Start(ctx context.Context, chargeRef string) (<-chan PollResult, error) {
	if chargeRef == "" {
		return nil, errors.New("charge reference required")
	}

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil, errPollerStarted
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(runCtx, chargeRef)
	return p.results, nil
}

// Cancel stops an in-flight poll. The result channel receives Cancelled.
// Cancelling a poller that already finished is a no-op.
func (p *Poller) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Poller) run(ctx context.Context, chargeRef string) {
	// Both the tick loop and the deadline resolve through ctx, so one
	// cancellation path cleans up every timer.
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	ctx = p.logger.WithField(ctx, "charge_ref", chargeRef)

	for {
		select {
		case <-ctx.Done():
			p.finish(ctx, PollResult{Outcome: PollOutcomeCancelled, ChargeRef: chargeRef})
			return

		case <-deadline.C:
			p.finish(ctx, PollResult{Outcome: PollOutcomeTimedOut, ChargeRef: chargeRef})
			return

		case <-ticker.C:
			status, err := p.checker.CheckStatus(ctx, chargeRef)
			if err != nil {
				// A failed status check is not a failed payment. Keep
				// polling until the deadline settles it.
				p.logger.Warn(p.logger.WithField(ctx, "error", err.Error()), "charge status check failed")
				continue
			}
			if status.Paid {
				p.finish(ctx, PollResult{Outcome: PollOutcomeConfirmed, ChargeRef: chargeRef})
				return
			}
		}
	}
}

func (p *Poller) finish(ctx context.Context, result PollResult) {
	p.once.Do(func() {
		p.mu.Lock()
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
		p.mu.Unlock()

		p.metrics.IncPollOutcome(string(result.Outcome))
		p.logger.Info(p.logger.WithField(ctx, "outcome", string(result.Outcome)), "payment poll finished")
		p.results <- result
		close(p.results)
	})
}
