package cln

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	decodepay "github.com/flokiorg/lngateway/lndecodepay"
	"github.com/flokiorg/lngateway/logger"
)

// risk factor passed to getroute when estimating fees
const ROUTE_RISK_FACTOR = 10

type CLNService struct {
	rpc            *rpcClient
	cfg            config.BackendConfig
	ctx            context.Context
	cancel         context.CancelFunc
	eventPublisher events.EventPublisher
	logger         zerolog.Logger
	startedAt      time.Time
}

// NewCLNService builds the adapter for the lightning-rpc socket at
// cfg.Endpoint. Nothing is dialed until the first call.
func NewCLNService(ctx context.Context, eventPublisher events.EventPublisher, cfg config.BackendConfig) (lnclient.LNClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("CLN socket path is required")
	}

	clnCtx, cancel := context.WithCancel(ctx)
	svc := &CLNService{
		rpc: &rpcClient{
			socketPath: cfg.Endpoint,
			timeout:    cfg.ConnectionTimeout,
		},
		cfg:            cfg,
		ctx:            clnCtx,
		cancel:         cancel,
		eventPublisher: eventPublisher,
		logger:         logger.Logger.With().Str("backend", constants.BACKEND_CLN).Logger(),
		startedAt:      time.Now(),
	}
	if eventPublisher != nil {
		go svc.subscribeInvoices(clnCtx)
	}
	return svc, nil
}

func (svc *CLNService) Shutdown() error {
	svc.logger.Info().Msg("Shutting down CLN client")
	svc.cancel()
	return nil
}

func (svc *CLNService) Capabilities() lnclient.Capability {
	return lnclient.CapAll
}

// subscribeInvoices long-polls waitanyinvoice. lightningd replays paid
// invoices from the given pay index, so anything paid before startup is
// skipped.
func (svc *CLNService) subscribeInvoices(ctx context.Context) {
	var lastPayIndex uint64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var invoice clnInvoice
		err := svc.rpc.callWithTimeout(ctx, 0, "waitanyinvoice", map[string]interface{}{
			"lastpay_index": lastPayIndex,
		}, &invoice)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			svc.logger.Error().Err(err).Msg("Error waiting for invoices")
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Second):
				continue
			}
		}

		if invoice.PayIndex > lastPayIndex {
			lastPayIndex = invoice.PayIndex
		}
		if invoice.PaidAt == 0 || time.Unix(invoice.PaidAt, 0).Before(svc.startedAt) {
			continue
		}

		inv := invoice.toInvoice(time.Now())
		svc.logger.Info().Str("payment_hash", inv.PaymentHash).Msg("Received invoice payment")
		svc.eventPublisher.Publish(&events.Event{
			Event: constants.EVENT_INVOICE_SETTLED,
			Properties: &lnclient.InvoiceUpdate{
				Backend:     constants.BACKEND_CLN,
				PaymentHash: inv.PaymentHash,
				Status:      inv.Status,
				SettledAt:   inv.SettledAt,
			},
		})
	}
}

func (svc *CLNService) CreateInvoice(ctx context.Context, req *lnclient.CreateInvoiceRequest) (*lnclient.Invoice, error) {
	expiry := req.ExpirySeconds
	if expiry == 0 {
		expiry = int64(constants.DEFAULT_INVOICE_EXPIRY.Seconds())
	}
	label := uuid.NewString()

	var resp struct {
		PaymentHash string `json:"payment_hash"`
		ExpiresAt   int64  `json:"expires_at"`
		Bolt11      string `json:"bolt11"`
	}
	err := svc.rpc.call(ctx, "invoice", map[string]interface{}{
		"amount_msat": req.AmountSat * 1000,
		"label":       label,
		"description": req.Memo,
		"expiry":      expiry,
	}, &resp)
	if err != nil {
		svc.logger.Error().Err(err).Uint64("amount", req.AmountSat).Msg("Failed to create invoice")
		return nil, normalizeError(err)
	}

	createdAt := time.Now()
	if decoded, err := decodepay.Decodepay(resp.Bolt11); err == nil {
		createdAt = decoded.CreatedAt
	}

	return &lnclient.Invoice{
		ID:             label,
		PaymentHash:    resp.PaymentHash,
		PaymentRequest: resp.Bolt11,
		AmountSat:      req.AmountSat,
		Memo:           req.Memo,
		Status:         lnclient.InvoiceStatusPending,
		CreatedAt:      createdAt,
		ExpiresAt:      time.Unix(resp.ExpiresAt, 0),
	}, nil
}

func (svc *CLNService) LookupInvoice(ctx context.Context, paymentHash string) (*lnclient.Invoice, error) {
	invoice, err := svc.findInvoice(ctx, paymentHash)
	if err != nil {
		return nil, err
	}
	return invoice.toInvoice(time.Now()), nil
}

func (svc *CLNService) findInvoice(ctx context.Context, paymentHash string) (*clnInvoice, error) {
	var resp struct {
		Invoices []clnInvoice `json:"invoices"`
	}
	err := svc.rpc.call(ctx, "listinvoices", map[string]interface{}{
		"payment_hash": paymentHash,
	}, &resp)
	if err != nil {
		return nil, normalizeError(err)
	}
	if len(resp.Invoices) == 0 {
		return nil, lnclient.NewNotFoundError("invoice " + paymentHash)
	}
	return &resp.Invoices[0], nil
}

// PayInvoice runs pay with the read deadline set to the connection timeout.
// lightningd keeps paying after the socket is closed, so a deadline yields
// an in-flight handle that is resolved through listpays.
func (svc *CLNService) PayInvoice(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
	decoded, err := decodepay.Decodepay(req.PaymentRequest)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "failed to decode invoice")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	params := map[string]interface{}{
		"bolt11":    req.PaymentRequest,
		"maxfee":    req.FeeLimitSat * 1000,
		"retry_for": int64(math.Ceil(timeout.Seconds())),
	}
	if decoded.MSat == 0 && req.AmountSat > 0 {
		params["amount_msat"] = req.AmountSat * 1000
	}

	amountSat := decoded.AmountSat()
	if amountSat == 0 {
		amountSat = req.AmountSat
	}
	handle := &lnclient.Payment{
		PaymentHash:    decoded.PaymentHash,
		PaymentRequest: req.PaymentRequest,
		AmountSat:      amountSat,
		FeeLimitSat:    req.FeeLimitSat,
		Status:         lnclient.PaymentStateInFlight,
		AttemptCount:   1,
		CreatedAt:      time.Now(),
	}

	var resp clnPayResult
	err = svc.rpc.call(ctx, "pay", params, &resp)
	if err != nil {
		if isTimeout(err) && !lnclient.IsNotSent(err) {
			svc.logger.Info().Str("payment_hash", handle.PaymentHash).Msg("Payment still in flight")
			return handle, nil
		}
		if rpcErr, ok := isPaymentFailure(err); ok {
			svc.logger.Warn().Int("code", rpcErr.Code).Str("payment_hash", handle.PaymentHash).Msg(rpcErr.Message)
			now := time.Now()
			handle.Status = lnclient.PaymentStateFailed
			handle.FailureReason = rpcErr.Message
			handle.CompletedAt = &now
			return handle, nil
		}
		svc.logger.Error().Err(err).Str("bolt11", req.PaymentRequest).Msg("Pay failed")
		return nil, normalizeError(err)
	}

	handle.Status = payStatus(resp.Status)
	handle.Preimage = resp.PaymentPreimage
	handle.FeeSat = feeSat(resp.AmountSentMsat, resp.AmountMsat)
	if resp.Parts > 0 {
		handle.AttemptCount = resp.Parts
	}
	if handle.Status.IsTerminal() {
		now := time.Now()
		handle.CompletedAt = &now
	}
	return handle, nil
}

func (svc *CLNService) GetPaymentStatus(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
	var resp struct {
		Pays []clnPay `json:"pays"`
	}
	err := svc.rpc.call(ctx, "listpays", map[string]interface{}{
		"payment_hash": paymentHash,
	}, &resp)
	if err != nil {
		return nil, normalizeError(err)
	}

	if len(resp.Pays) > 0 {
		// earlier failed attempts stay listed; the newest one decides
		sort.SliceStable(resp.Pays, func(i, j int) bool {
			return resp.Pays[i].CreatedAt < resp.Pays[j].CreatedAt
		})
		pay := resp.Pays[len(resp.Pays)-1]
		status := &lnclient.PaymentStatus{
			PaymentHash:  paymentHash,
			Direction:    constants.PAYMENT_DIRECTION_OUTGOING,
			Status:       payStatus(pay.Status),
			AmountSat:    pay.AmountMsat.Sat(),
			FeeSat:       feeSat(pay.AmountSentMsat, pay.AmountMsat),
			Preimage:     pay.Preimage,
			AttemptCount: len(resp.Pays),
		}
		if pay.NumberOfParts > status.AttemptCount {
			status.AttemptCount = pay.NumberOfParts
		}
		if status.Status == lnclient.PaymentStateFailed {
			status.FailureReason = "payment failed"
		}
		return status, nil
	}

	invoice, err := svc.findInvoice(ctx, paymentHash)
	if err != nil {
		if errors.Is(err, lnclient.ErrNotFound) {
			return nil, lnclient.NewNotFoundError("payment " + paymentHash)
		}
		return nil, err
	}
	inv := invoice.toInvoice(time.Now())
	status := &lnclient.PaymentStatus{
		PaymentHash: paymentHash,
		Direction:   constants.PAYMENT_DIRECTION_INCOMING,
		AmountSat:   inv.AmountSat,
	}
	switch inv.Status {
	case lnclient.InvoiceStatusSettled:
		status.Status = lnclient.PaymentStateSucceeded
		status.Preimage = invoice.PaymentPreimage
		if received := invoice.AmountReceivedMsat.Sat(); received > 0 {
			status.AmountSat = received
		}
	case lnclient.InvoiceStatusPending:
		status.Status = lnclient.PaymentStatePending
	default:
		status.Status = lnclient.PaymentStateFailed
		status.FailureReason = "invoice expired"
	}
	return status, nil
}

func (svc *CLNService) GetWalletBalance(ctx context.Context) (*lnclient.WalletBalance, error) {
	var resp struct {
		Outputs []struct {
			AmountMsat Msat   `json:"amount_msat"`
			Status     string `json:"status"`
		} `json:"outputs"`
	}
	if err := svc.rpc.call(ctx, "listfunds", nil, &resp); err != nil {
		return nil, normalizeError(err)
	}

	balance := &lnclient.WalletBalance{}
	for _, output := range resp.Outputs {
		switch output.Status {
		case "confirmed":
			balance.ConfirmedSat += output.AmountMsat.Sat()
		case "unconfirmed":
			balance.UnconfirmedSat += output.AmountMsat.Sat()
		}
	}
	return balance, nil
}

func (svc *CLNService) listPeerChannels(ctx context.Context) ([]clnChannel, error) {
	var resp struct {
		Channels []clnChannel `json:"channels"`
	}
	if err := svc.rpc.call(ctx, "listpeerchannels", nil, &resp); err != nil {
		return nil, normalizeError(err)
	}
	return resp.Channels, nil
}

func (svc *CLNService) GetChannelBalance(ctx context.Context) (*lnclient.ChannelBalance, error) {
	channels, err := svc.listPeerChannels(ctx)
	if err != nil {
		return nil, err
	}

	balance := &lnclient.ChannelBalance{}
	for _, channel := range channels {
		if channel.toChannel().State != lnclient.ChannelStateActive {
			continue
		}
		balance.LocalSat += channel.ToUsMsat.Sat()
		balance.RemoteSat += channel.TotalMsat.Sat() - channel.ToUsMsat.Sat()
	}
	return balance, nil
}

func (svc *CLNService) ListChannels(ctx context.Context) ([]lnclient.Channel, error) {
	channels, err := svc.listPeerChannels(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]lnclient.Channel, 0, len(channels))
	for _, channel := range channels {
		result = append(result, channel.toChannel())
	}
	return result, nil
}

func (svc *CLNService) OpenChannel(ctx context.Context, req *lnclient.OpenChannelRequest) (*lnclient.Channel, error) {
	svc.logger.Info().
		Str("pubkey", req.RemotePubkey).
		Uint64("local_amt", req.LocalAmtSat).
		Msg("Opening channel")

	params := map[string]interface{}{
		"id":       req.RemotePubkey,
		"amount":   req.LocalAmtSat,
		"announce": !req.Private,
	}
	if req.PushAmtSat > 0 {
		params["push_msat"] = req.PushAmtSat * 1000
	}
	if req.SatPerVbyte > 0 {
		params["feerate"] = perkb(req.SatPerVbyte)
	}

	var resp struct {
		Txid      string `json:"txid"`
		Outnum    uint32 `json:"outnum"`
		ChannelID string `json:"channel_id"`
	}
	if err := svc.rpc.call(ctx, "fundchannel", params, &resp); err != nil {
		svc.logger.Error().Err(err).Str("pubkey", req.RemotePubkey).Msg("Failed to open channel")
		return nil, normalizeError(err)
	}

	return &lnclient.Channel{
		ID:               resp.ChannelID,
		RemotePubkey:     req.RemotePubkey,
		CapacitySat:      req.LocalAmtSat,
		LocalBalanceSat:  req.LocalAmtSat - req.PushAmtSat,
		RemoteBalanceSat: req.PushAmtSat,
		State:            lnclient.ChannelStateOpening,
		ChannelPoint:     fmt.Sprintf("%s:%d", resp.Txid, resp.Outnum),
		Private:          req.Private,
	}, nil
}

// CloseChannel closes mutually, or unilaterally after one second when
// forced. A mutual close with an offline peer waits for the peer, so the
// read deadline ends the call with a CLOSING status.
func (svc *CLNService) CloseChannel(ctx context.Context, req *lnclient.CloseChannelRequest) (*lnclient.CloseChannelResponse, error) {
	svc.logger.Info().
		Str("channel_id", req.ChannelID).
		Bool("force", req.Force).
		Msg("Closing channel")

	params := map[string]interface{}{
		"id":                req.ChannelID,
		"unilateraltimeout": 0,
	}
	if req.Force {
		params["unilateraltimeout"] = 1
	} else if req.SatPerVbyte > 0 {
		params["feerange"] = []string{perkb(req.SatPerVbyte), perkb(req.SatPerVbyte)}
	}

	response := &lnclient.CloseChannelResponse{
		ChannelID: req.ChannelID,
		Force:     req.Force,
		Status:    lnclient.ChannelStateClosing,
	}

	var resp struct {
		Type string `json:"type"`
		Txid string `json:"txid"`
	}
	err := svc.rpc.call(ctx, "close", params, &resp)
	if err != nil {
		if isTimeout(err) {
			svc.logger.Warn().Str("channel_id", req.ChannelID).Msg("No close result before deadline")
			return response, nil
		}
		svc.logger.Error().Err(err).Str("channel_id", req.ChannelID).Msg("Failed to close channel")
		return nil, normalizeError(err)
	}

	response.ClosingTxid = resp.Txid
	if resp.Type == "unopened" {
		response.Status = lnclient.ChannelStateClosed
	}
	return response, nil
}

func (svc *CLNService) GetInfo(ctx context.Context) (*lnclient.NodeInfo, error) {
	var resp struct {
		ID                    string `json:"id"`
		Alias                 string `json:"alias"`
		Network               string `json:"network"`
		Version               string `json:"version"`
		BlockHeight           uint32 `json:"blockheight"`
		WarningBitcoindSync   string `json:"warning_bitcoind_sync"`
		WarningLightningdSync string `json:"warning_lightningd_sync"`
	}
	if err := svc.rpc.call(ctx, "getinfo", nil, &resp); err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch node info")
		return nil, normalizeError(err)
	}

	network := resp.Network
	if network == "bitcoin" {
		network = "mainnet"
	}
	return &lnclient.NodeInfo{
		Pubkey:      resp.ID,
		Alias:       resp.Alias,
		Network:     network,
		Version:     resp.Version,
		BlockHeight: resp.BlockHeight,
		Synced:      resp.WarningBitcoindSync == "" && resp.WarningLightningdSync == "",
	}, nil
}

// EstimateRouteFee asks getroute for a path to the payee. Route hints are
// not considered, so private destinations fail to estimate.
func (svc *CLNService) EstimateRouteFee(ctx context.Context, paymentRequest string, amountSat uint64) (uint64, error) {
	decoded, err := decodepay.Decodepay(paymentRequest)
	if err != nil {
		return 0, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "failed to decode invoice")
	}
	amountMsat := uint64(decoded.MSat)
	if amountMsat == 0 {
		amountMsat = amountSat * 1000
	}

	var resp struct {
		Route []struct {
			AmountMsat Msat `json:"amount_msat"`
		} `json:"route"`
	}
	err = svc.rpc.call(ctx, "getroute", map[string]interface{}{
		"id":          decoded.Payee,
		"amount_msat": amountMsat,
		"riskfactor":  ROUTE_RISK_FACTOR,
	}, &resp)
	if err != nil {
		return 0, normalizeError(err)
	}
	if len(resp.Route) == 0 {
		return 0, lnclient.NewError(lnclient.KindBackendError, "no route found")
	}

	first := uint64(resp.Route[0].AmountMsat)
	if first <= amountMsat {
		return 0, nil
	}
	return (first - amountMsat + 999) / 1000, nil
}

func perkb(satPerVbyte uint64) string {
	return fmt.Sprintf("%dperkb", satPerVbyte*1000)
}

func payStatus(status string) lnclient.PaymentState {
	switch status {
	case "complete":
		return lnclient.PaymentStateSucceeded
	case "failed":
		return lnclient.PaymentStateFailed
	case "pending":
		return lnclient.PaymentStateInFlight
	default:
		return lnclient.PaymentStatePending
	}
}

func feeSat(sent Msat, amount Msat) uint64 {
	if sent <= amount {
		return 0
	}
	return (uint64(sent-amount) + 999) / 1000
}
