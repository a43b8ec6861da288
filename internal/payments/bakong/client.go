package bakong

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/pkg/config"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/logger"
	"github.com/saysophanna/babybear-backend/pkg/metrics"
)

const (
	checkTransactionPath = "/v1/check_transaction_by_md5"
	generateDeeplinkPath = "/v1/generate_deeplink_by_qr"
)

var (
	errLoggerRequired  = errors.New("bakong logger is required")
	errAccountRequired = errors.New("bakong account id is required")
)

// Gateway is the payment surface the checkout flow depends on.
type Gateway interface {
	RequestCharge(ctx context.Context, params ChargeParams) (*Charge, error)
	CheckStatus(ctx context.Context, chargeRef string) (*ChargeStatus, error)
}

// ChargeParams describes one QR payment attempt.
type ChargeParams struct {
	Amount           decimal.Decimal
	Currency         enums.Currency
	BillNumber       string
	GenerateDeeplink bool
	CallbackURL      string
}

// Charge is the result of requesting a payment QR.
type Charge struct {
	QRPayload string
	ChargeRef string
	Deeplink  *string
}

// ChargeStatus reports whether a charge has settled.
type ChargeStatus struct {
	Paid bool
}

// Client talks to the Bakong open API and renders KHQR payloads locally.
type Client struct {
	cfg        config.BakongConfig
	httpClient *http.Client
	logger     *logger.Logger
	metrics    *metrics.CheckoutMetrics
	now        func() time.Time
}

// NewClient validates the merchant credentials and builds the wrapper.
func NewClient(ctx context.Context, cfg config.BakongConfig, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, errAccountRequired
	}
	if strings.TrimSpace(cfg.MerchantName) == "" {
		return nil, errors.New("bakong merchant name is required")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logg,
		metrics:    m,
		now:        time.Now,
	}
	logg.Info(ctx, "bakong client initialized")
	return c, nil
}

// RequestCharge renders a dynamic KHQR payload and derives its charge
// reference. The QR itself is built locally; only the optional deeplink
// needs a network round trip, and its failure does not fail the charge.
func (c *Client) RequestCharge(ctx context.Context, params ChargeParams) (*Charge, error) {
	start := c.now()
	qr, err := BuildQR(QRParams{
		AccountID:     c.cfg.AccountID,
		MerchantName:  c.cfg.MerchantName,
		MerchantCity:  c.cfg.MerchantCity,
		Amount:        params.Amount,
		Currency:      params.Currency,
		BillNumber:    params.BillNumber,
		StoreLabel:    c.cfg.AppName,
		TerminalLabel: "Checkout",
	}, start)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build payment qr")
	}

	charge := &Charge{
		QRPayload: qr,
		ChargeRef: ChargeRef(qr),
	}

	if params.GenerateDeeplink {
		deeplink, err := c.generateDeeplink(ctx, qr, params.CallbackURL)
		if err != nil {
			c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "bakong deeplink generation failed")
		} else {
			charge.Deeplink = &deeplink
		}
	}

	c.metrics.ObserveGatewayDuration("request_charge", c.now().Sub(start))
	c.logger.Info(c.logger.WithField(ctx, "charge_ref", charge.ChargeRef), "bakong charge created")
	return charge, nil
}

type checkTransactionRequest struct {
	MD5 string `json:"md5"`
}

type checkTransactionResponse struct {
	ResponseCode    int    `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	Data            *struct {
		Hash string `json:"hash"`
	} `json:"data"`
}

// CheckStatus asks the gateway whether the charge has been paid. A known
// charge with no settlement yet is reported as unpaid, not as an error.
func (c *Client) CheckStatus(ctx context.Context, chargeRef string) (*ChargeStatus, error) {
	if strings.TrimSpace(chargeRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge reference required")
	}

	start := c.now()
	body, err := json.Marshal(checkTransactionRequest{MD5: chargeRef})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode status request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+checkTransactionPath, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build status request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction status")
	}
	defer resp.Body.Close()

	c.metrics.ObserveGatewayDuration("check_status", c.now().Sub(start))

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "bakong token rejected")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("bakong returned status %d", resp.StatusCode))
	}

	var decoded checkTransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode status response")
	}

	// A non-zero responseCode means the gateway has not seen the payment
	// yet, which the poller treats as "keep waiting".
	paid := decoded.ResponseCode == 0 && decoded.Data != nil && decoded.Data.Hash != ""
	return &ChargeStatus{Paid: paid}, nil
}

type deeplinkRequest struct {
	QR         string             `json:"qr"`
	SourceInfo deeplinkSourceInfo `json:"sourceInfo"`
}

type deeplinkSourceInfo struct {
	AppIconURL          string `json:"appIconUrl"`
	AppName             string `json:"appName"`
	AppDeepLinkCallback string `json:"appDeepLinkCallback"`
}

type deeplinkResponse struct {
	ResponseCode int `json:"responseCode"`
	Data         *struct {
		ShortLink string `json:"shortLink"`
	} `json:"data"`
}

func (c *Client) generateDeeplink(ctx context.Context, qr, callbackURL string) (string, error) {
	body, err := json.Marshal(deeplinkRequest{
		QR: qr,
		SourceInfo: deeplinkSourceInfo{
			AppIconURL:          c.cfg.AppIconURL,
			AppName:             c.cfg.AppName,
			AppDeepLinkCallback: callbackURL,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode deeplink request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+generateDeeplinkPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build deeplink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate deeplink: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deeplink endpoint returned status %d", resp.StatusCode)
	}

	var decoded deeplinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode deeplink response: %w", err)
	}
	if decoded.ResponseCode != 0 || decoded.Data == nil || decoded.Data.ShortLink == "" {
		return "", fmt.Errorf("deeplink generation rejected (code %d)", decoded.ResponseCode)
	}
	return decoded.Data.ShortLink, nil
}
