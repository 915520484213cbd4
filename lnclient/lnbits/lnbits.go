package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/lnclient"
	decodepay "github.com/flokiorg/lngateway/lndecodepay"
	"github.com/flokiorg/lngateway/logger"
)

const API_KEY_HEADER = "X-Api-Key"

// LNbitsService is the custodial adapter. It has no channel view and the
// backend takes no fee limit.
type LNbitsService struct {
	baseURL    string
	adminKey   string
	invoiceKey string
	webhookURL string
	httpClient *http.Client
	cfg        config.BackendConfig
	logger     zerolog.Logger
}

func NewLNbitsService(ctx context.Context, cfg config.BackendConfig) (lnclient.LNClient, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, errors.New("one or more required LNbits configuration are missing")
	}

	invoiceKey := cfg.InvoiceKey
	if invoiceKey == "" {
		invoiceKey = cfg.APIKey
	}

	return &LNbitsService{
		baseURL:    strings.TrimSuffix(cfg.Endpoint, "/"),
		adminKey:   cfg.APIKey,
		invoiceKey: invoiceKey,
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{},
		cfg:        cfg,
		logger:     logger.Logger.With().Str("backend", constants.BACKEND_LNBITS).Logger(),
	}, nil
}

func (svc *LNbitsService) Shutdown() error {
	svc.httpClient.CloseIdleConnections()
	return nil
}

func (svc *LNbitsService) Capabilities() lnclient.Capability {
	return lnclient.CapInvoices | lnclient.CapPayments | lnclient.CapPaymentStatus | lnclient.CapWalletBalance
}

func (svc *LNbitsService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.cfg.ConnectionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.cfg.ConnectionTimeout)
}

func (svc *LNbitsService) request(ctx context.Context, method, path, key string, payload interface{}, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, svc.baseURL+path, bodyReader)
	if err != nil {
		return lnclient.WrapError(lnclient.KindBackendError, err, "failed to build request")
	}
	req.Header.Set(API_KEY_HEADER, key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := svc.httpClient.Do(req)
	if err != nil {
		return lnclient.FromTransport(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return lnclient.FromTransport(err)
	}

	if res.StatusCode >= 300 {
		svc.logger.Error().
			Str("path", path).
			Str("body", string(body)).
			Int("statusCode", res.StatusCode).
			Msg("LNbits endpoint returned non-success code")
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Detail != "" {
			body = []byte(errResp.Detail)
		}
		return lnclient.FromHTTP(res.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return lnclient.WrapError(lnclient.KindBackendConnectionError, err, "failed to deserialize json from %s", path)
	}
	return nil
}

func (svc *LNbitsService) CreateInvoice(ctx context.Context, req *lnclient.CreateInvoiceRequest) (*lnclient.Invoice, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	expiry := req.ExpirySeconds
	if expiry == 0 {
		expiry = int64(constants.DEFAULT_INVOICE_EXPIRY.Seconds())
	}

	var resp paymentResponse
	err := svc.request(ctx, http.MethodPost, "/api/v1/payments", svc.invoiceKey, &createInvoiceRequest{
		Out:     false,
		Amount:  req.AmountSat,
		Memo:    req.Memo,
		Expiry:  expiry,
		Webhook: svc.webhookURL,
	}, &resp)
	if err != nil {
		return nil, err
	}

	invoice := &lnclient.Invoice{
		ID:             resp.CheckingID,
		PaymentHash:    resp.PaymentHash,
		PaymentRequest: resp.bolt11(),
		AmountSat:      req.AmountSat,
		Memo:           req.Memo,
		Status:         lnclient.InvoiceStatusPending,
		CreatedAt:      time.Now(),
		ExpiresAt:      time.Now().Add(time.Duration(expiry) * time.Second),
	}
	if decoded, err := decodepay.Decodepay(invoice.PaymentRequest); err == nil {
		invoice.CreatedAt = time.Unix(int64(decoded.CreatedAt), 0)
		invoice.ExpiresAt = decoded.ExpiresAt()
	}
	return invoice, nil
}

// PayInvoice posts the payment and reads its status back. LNbits applies
// its own fee reserve, so the limit is only checked after the fact.
func (svc *LNbitsService) PayInvoice(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
	decoded, err := decodepay.Decodepay(req.PaymentRequest)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "failed to decode invoice")
	}

	amountSat := decoded.AmountSat()
	payload := &payInvoiceRequest{Out: true, Bolt11: req.PaymentRequest}
	if amountSat == 0 {
		amountSat = req.AmountSat
		payload.Amount = req.AmountSat
	}

	payment := &lnclient.Payment{
		PaymentHash:    decoded.PaymentHash,
		PaymentRequest: req.PaymentRequest,
		AmountSat:      amountSat,
		FeeLimitSat:    req.FeeLimitSat,
		Status:         lnclient.PaymentStateInFlight,
		AttemptCount:   1,
		CreatedAt:      time.Now(),
	}

	payCtx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var resp paymentResponse
	err = svc.request(payCtx, http.MethodPost, "/api/v1/payments", svc.adminKey, payload, &resp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			svc.logger.Info().Str("payment_hash", payment.PaymentHash).Msg("Payment still in flight")
			return payment, nil
		}
		return nil, err
	}

	status, err := svc.GetPaymentStatus(ctx, payment.PaymentHash)
	if err != nil {
		// the payment was accepted; polling resolves it
		svc.logger.Warn().Err(err).Str("payment_hash", payment.PaymentHash).Msg("Failed to read payment status")
		return payment, nil
	}

	payment.Status = status.Status
	payment.FeeSat = status.FeeSat
	payment.Preimage = status.Preimage
	payment.FailureReason = status.FailureReason
	if payment.Status.IsTerminal() {
		now := time.Now()
		payment.CompletedAt = &now
	}
	if payment.FeeSat > req.FeeLimitSat {
		svc.logger.Warn().
			Str("payment_hash", payment.PaymentHash).
			Uint64("fee", payment.FeeSat).
			Uint64("fee_limit", req.FeeLimitSat).
			Msg("Custodial backend charged more than the fee limit")
	}
	return payment, nil
}

func (svc *LNbitsService) fetchPayment(ctx context.Context, paymentHash string) (*paymentStatusResponse, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var resp paymentStatusResponse
	if err := svc.request(ctx, http.MethodGet, "/api/v1/payments/"+paymentHash, svc.invoiceKey, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (svc *LNbitsService) GetPaymentStatus(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
	resp, err := svc.fetchPayment(ctx, paymentHash)
	if err != nil {
		return nil, err
	}

	status := &lnclient.PaymentStatus{
		PaymentHash:  paymentHash,
		Direction:    constants.PAYMENT_DIRECTION_INCOMING,
		Preimage:     resp.Preimage,
		AttemptCount: 1,
	}
	if details := resp.Details; details != nil {
		if details.Amount < 0 {
			status.Direction = constants.PAYMENT_DIRECTION_OUTGOING
		}
		status.AmountSat = abs(details.Amount) / 1000
		status.FeeSat = (abs(details.Fee) + 999) / 1000
		if status.Preimage == "" {
			status.Preimage = details.Preimage
		}
	}

	switch resp.state() {
	case "success":
		status.Status = lnclient.PaymentStateSucceeded
	case "failed":
		status.Status = lnclient.PaymentStateFailed
		status.FailureReason = "payment failed"
	default:
		status.Status = lnclient.PaymentStatePending
		if status.Direction == constants.PAYMENT_DIRECTION_OUTGOING {
			status.Status = lnclient.PaymentStateInFlight
		}
	}
	if status.Status != lnclient.PaymentStateSucceeded {
		status.Preimage = ""
	}
	return status, nil
}

func (svc *LNbitsService) LookupInvoice(ctx context.Context, paymentHash string) (*lnclient.Invoice, error) {
	resp, err := svc.fetchPayment(ctx, paymentHash)
	if err != nil {
		return nil, err
	}
	if resp.Details == nil {
		return nil, lnclient.NewNotFoundError("invoice " + paymentHash)
	}
	if resp.Details.Amount < 0 {
		return nil, lnclient.NewNotFoundError("invoice " + paymentHash)
	}

	details := resp.Details
	invoice := &lnclient.Invoice{
		PaymentHash:    paymentHash,
		PaymentRequest: details.Bolt11,
		AmountSat:      abs(details.Amount) / 1000,
		Memo:           details.Memo,
		CreatedAt:      details.Time.Time,
		ExpiresAt:      details.Expiry.Time,
	}
	if decoded, err := decodepay.Decodepay(details.Bolt11); err == nil {
		invoice.CreatedAt = time.Unix(int64(decoded.CreatedAt), 0)
		invoice.ExpiresAt = decoded.ExpiresAt()
	}

	switch resp.state() {
	case "success":
		invoice.Status = lnclient.InvoiceStatusSettled
	case "failed":
		invoice.Status = lnclient.InvoiceStatusCancelled
	default:
		invoice.Status = lnclient.InvoiceStatusPending
	}
	if invoice.Status == lnclient.InvoiceStatusPending && !invoice.ExpiresAt.IsZero() && !time.Now().Before(invoice.ExpiresAt) {
		invoice.Status = lnclient.InvoiceStatusExpired
	}
	return invoice, nil
}

func (svc *LNbitsService) GetWalletBalance(ctx context.Context) (*lnclient.WalletBalance, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var resp walletResponse
	if err := svc.request(ctx, http.MethodGet, "/api/v1/wallet", svc.invoiceKey, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Balance < 0 {
		resp.Balance = 0
	}
	return &lnclient.WalletBalance{ConfirmedSat: uint64(resp.Balance) / 1000}, nil
}

func (svc *LNbitsService) GetChannelBalance(ctx context.Context) (*lnclient.ChannelBalance, error) {
	return nil, lnclient.NewNotSupportedError(constants.BACKEND_LNBITS, lnclient.CapChannelBalance)
}

func (svc *LNbitsService) ListChannels(ctx context.Context) ([]lnclient.Channel, error) {
	return nil, lnclient.NewNotSupportedError(constants.BACKEND_LNBITS, lnclient.CapChannels)
}

func (svc *LNbitsService) OpenChannel(ctx context.Context, req *lnclient.OpenChannelRequest) (*lnclient.Channel, error) {
	return nil, lnclient.NewNotSupportedError(constants.BACKEND_LNBITS, lnclient.CapChannels)
}

func (svc *LNbitsService) CloseChannel(ctx context.Context, req *lnclient.CloseChannelRequest) (*lnclient.CloseChannelResponse, error) {
	return nil, lnclient.NewNotSupportedError(constants.BACKEND_LNBITS, lnclient.CapChannels)
}

// GetInfo reports the wallet; a custodial account has no node identity.
func (svc *LNbitsService) GetInfo(ctx context.Context) (*lnclient.NodeInfo, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var resp walletResponse
	if err := svc.request(ctx, http.MethodGet, "/api/v1/wallet", svc.invoiceKey, nil, &resp); err != nil {
		return nil, err
	}
	return &lnclient.NodeInfo{
		Alias:   resp.Name,
		Network: svc.cfg.Network,
		Version: "lnbits",
		Synced:  true,
	}, nil
}
