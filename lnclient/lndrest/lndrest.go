package lndrest

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/lnclient/lnd"
	decodepay "github.com/flokiorg/lngateway/lndecodepay"
	"github.com/flokiorg/lngateway/logger"
)

type LNDRestService struct {
	client *restClient
	cfg    config.BackendConfig
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
	now    func() time.Time

	versionMtx     sync.Mutex
	versionChecked bool
	versionErr     error
}

func NewLNDRestService(ctx context.Context, cfg config.BackendConfig) (lnclient.LNClient, error) {
	if cfg.Endpoint == "" || cfg.MacaroonPath == "" {
		return nil, errors.New("one or more required LND REST configuration are missing")
	}

	httpClient, err := newHTTPClient(cfg.CertPath)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to create LND REST client")
		return nil, err
	}
	macaroonHex, err := readMacaroonHex(cfg.MacaroonPath)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to create LND REST client")
		return nil, err
	}

	return newLNDRestService(ctx, httpClient, macaroonHex, cfg), nil
}

func newLNDRestService(ctx context.Context, httpClient *http.Client, macaroonHex string, cfg config.BackendConfig) *LNDRestService {
	restCtx, cancel := context.WithCancel(ctx)
	return &LNDRestService{
		client: &restClient{
			baseURL:     cfg.Endpoint,
			macaroonHex: macaroonHex,
			httpClient:  httpClient,
		},
		cfg:    cfg,
		ctx:    restCtx,
		cancel: cancel,
		logger: logger.Logger.With().Str("backend", constants.BACKEND_LND_REST).Logger(),
		now:    time.Now,
	}
}

func (svc *LNDRestService) Shutdown() error {
	svc.logger.Info().Msg("Shutting down LND REST client")
	svc.cancel()
	svc.client.httpClient.CloseIdleConnections()
	return nil
}

func (svc *LNDRestService) Capabilities() lnclient.Capability {
	return lnclient.CapAll
}

func (svc *LNDRestService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.cfg.ConnectionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.cfg.ConnectionTimeout)
}

func (svc *LNDRestService) CreateInvoice(ctx context.Context, req *lnclient.CreateInvoiceRequest) (*lnclient.Invoice, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	expiry := req.ExpirySeconds
	if expiry == 0 {
		expiry = int64(constants.DEFAULT_INVOICE_EXPIRY.Seconds())
	}

	var resp lnrpc.AddInvoiceResponse
	err := svc.client.call(ctx, http.MethodPost, "/v1/invoices", &lnrpc.Invoice{
		Value:  int64(req.AmountSat),
		Memo:   req.Memo,
		Expiry: expiry,
	}, &resp)
	if err != nil {
		svc.logger.Error().Err(err).Uint64("amount", req.AmountSat).Msg("Failed to create invoice")
		return nil, lnclient.FromGRPC(err)
	}

	var invoice lnrpc.Invoice
	err = svc.client.call(ctx, http.MethodGet, "/v1/invoice/"+hex.EncodeToString(resp.RHash), nil, &invoice)
	if err != nil {
		svc.logger.Warn().Err(err).Msg("Failed to lookup created invoice")
		decoded, decodeErr := decodepay.Decodepay(resp.PaymentRequest)
		if decodeErr != nil {
			return nil, lnclient.WrapError(lnclient.KindBackendError, decodeErr, "node returned an undecodable invoice")
		}
		return &lnclient.Invoice{
			PaymentHash:    hex.EncodeToString(resp.RHash),
			PaymentRequest: resp.PaymentRequest,
			AmountSat:      req.AmountSat,
			Memo:           req.Memo,
			Status:         lnclient.InvoiceStatusPending,
			CreatedAt:      decoded.CreatedAt,
			ExpiresAt:      decoded.ExpiresAt(),
		}, nil
	}
	return lnd.ToInvoice(&invoice, svc.now()), nil
}

func (svc *LNDRestService) PayInvoice(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
	decoded, err := decodepay.Decodepay(req.PaymentRequest)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "failed to decode invoice")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	sendRequest := &routerrpc.SendPaymentRequest{
		PaymentRequest: req.PaymentRequest,
		MaxParts:       lnd.MAX_PARTIAL_PAYMENTS,
		FeeLimitSat:    int64(req.FeeLimitSat),
		TimeoutSeconds: int32(math.Ceil(timeout.Seconds())),
	}
	if req.AmountSat > 0 {
		sendRequest.Amt = int64(req.AmountSat)
	}

	// LND keeps routing after the response body is closed
	streamCtx, cancel := context.WithCancel(svc.ctx)
	defer cancel()

	type result struct {
		payment *lnrpc.Payment
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		body, next, err := svc.client.stream(streamCtx, http.MethodPost, "/v2/router/send", sendRequest)
		if err != nil {
			ch <- result{err: err}
			return
		}
		defer body.Close()
		var payment lnrpc.Payment
		err = next(&payment)
		ch <- result{payment: &payment, err: err}
	}()

	var timer <-chan time.Time
	if svc.cfg.ConnectionTimeout > 0 {
		t := time.NewTimer(svc.cfg.ConnectionTimeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case r := <-ch:
		if r.err != nil {
			svc.logger.Error().Err(r.err).Str("bolt11", req.PaymentRequest).Msg("SendPayment failed")
			return nil, lnclient.FromGRPC(r.err)
		}
		payment := lnd.ToPayment(r.payment)
		payment.FeeLimitSat = req.FeeLimitSat
		if payment.AttemptCount == 0 {
			payment.AttemptCount = 1
		}
		return payment, nil
	case <-ctx.Done():
		return nil, lnclient.FromTransport(ctx.Err())
	case <-timer:
		amountSat := decoded.AmountSat()
		if amountSat == 0 {
			amountSat = req.AmountSat
		}
		svc.logger.Info().Str("payment_hash", decoded.PaymentHash).Msg("Payment still in flight")
		return &lnclient.Payment{
			PaymentHash:    decoded.PaymentHash,
			PaymentRequest: req.PaymentRequest,
			AmountSat:      amountSat,
			FeeLimitSat:    req.FeeLimitSat,
			Status:         lnclient.PaymentStateInFlight,
			AttemptCount:   1,
			CreatedAt:      time.Now(),
		}, nil
	}
}

func (svc *LNDRestService) GetPaymentStatus(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
	hashBytes, err := decodeHash(paymentHash)
	if err != nil {
		return nil, err
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	body, next, err := svc.client.stream(ctx, http.MethodGet, "/v2/router/track/"+base64.URLEncoding.EncodeToString(hashBytes), nil)
	if err == nil {
		var payment lnrpc.Payment
		err = next(&payment)
		body.Close()
		if err == nil {
			return lnd.ToOutgoingStatus(&payment), nil
		}
	}
	if status.Code(err) != codes.NotFound && !errors.Is(err, lnclient.ErrNotFound) {
		svc.logger.Error().Err(err).Str("payment_hash", paymentHash).Msg("Failed to track payment")
		return nil, lnclient.FromGRPC(err)
	}

	var invoice lnrpc.Invoice
	err = svc.client.call(ctx, http.MethodGet, "/v1/invoice/"+paymentHash, nil, &invoice)
	if err != nil {
		if status.Code(err) == codes.NotFound || errors.Is(err, lnclient.ErrNotFound) {
			return nil, lnclient.NewNotFoundError("payment " + paymentHash)
		}
		return nil, lnclient.FromGRPC(err)
	}
	return lnd.ToIncomingStatus(&invoice, svc.now()), nil
}

func (svc *LNDRestService) LookupInvoice(ctx context.Context, paymentHash string) (*lnclient.Invoice, error) {
	if _, err := decodeHash(paymentHash); err != nil {
		return nil, err
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var invoice lnrpc.Invoice
	err := svc.client.call(ctx, http.MethodGet, "/v1/invoice/"+paymentHash, nil, &invoice)
	if err != nil {
		if status.Code(err) == codes.NotFound || errors.Is(err, lnclient.ErrNotFound) {
			return nil, lnclient.NewNotFoundError("invoice " + paymentHash)
		}
		return nil, lnclient.FromGRPC(err)
	}
	return lnd.ToInvoice(&invoice, svc.now()), nil
}

func (svc *LNDRestService) GetWalletBalance(ctx context.Context) (*lnclient.WalletBalance, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var resp lnrpc.WalletBalanceResponse
	if err := svc.client.call(ctx, http.MethodGet, "/v1/balance/blockchain", nil, &resp); err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	return &lnclient.WalletBalance{
		ConfirmedSat:   uint64(resp.ConfirmedBalance),
		UnconfirmedSat: uint64(resp.UnconfirmedBalance),
	}, nil
}

func (svc *LNDRestService) GetChannelBalance(ctx context.Context) (*lnclient.ChannelBalance, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var resp lnrpc.ChannelBalanceResponse
	if err := svc.client.call(ctx, http.MethodGet, "/v1/balance/channels", nil, &resp); err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	return &lnclient.ChannelBalance{
		LocalSat:  resp.GetLocalBalance().GetSat(),
		RemoteSat: resp.GetRemoteBalance().GetSat(),
	}, nil
}

func (svc *LNDRestService) ListChannels(ctx context.Context) ([]lnclient.Channel, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var open lnrpc.ListChannelsResponse
	if err := svc.client.call(ctx, http.MethodGet, "/v1/channels", nil, &open); err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	var pending lnrpc.PendingChannelsResponse
	if err := svc.client.call(ctx, http.MethodGet, "/v1/channels/pending", nil, &pending); err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	return lnd.ToChannels(&open, &pending), nil
}

func (svc *LNDRestService) OpenChannel(ctx context.Context, req *lnclient.OpenChannelRequest) (*lnclient.Channel, error) {
	pubkey, err := hex.DecodeString(req.RemotePubkey)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindInvalidPubkey, err, "invalid pubkey")
	}

	svc.logger.Info().
		Str("pubkey", req.RemotePubkey).
		Uint64("local_amt", req.LocalAmtSat).
		Msg("Opening channel")

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var point lnrpc.ChannelPoint
	err = svc.client.call(ctx, http.MethodPost, "/v1/channels", &lnrpc.OpenChannelRequest{
		NodePubkey:         pubkey,
		LocalFundingAmount: int64(req.LocalAmtSat),
		PushSat:            int64(req.PushAmtSat),
		Private:            req.Private,
		TargetConf:         req.TargetConf,
		SatPerVbyte:        req.SatPerVbyte,
	}, &point)
	if err != nil {
		svc.logger.Error().Err(err).Str("pubkey", req.RemotePubkey).Msg("Failed to open channel")
		return nil, lnclient.FromGRPC(err)
	}

	channelPoint, err := lnd.ChannelPointString(&point)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindBackendError, err, "invalid funding txid")
	}
	return &lnclient.Channel{
		ID:               channelPoint,
		RemotePubkey:     req.RemotePubkey,
		CapacitySat:      req.LocalAmtSat,
		LocalBalanceSat:  req.LocalAmtSat - req.PushAmtSat,
		RemoteBalanceSat: req.PushAmtSat,
		State:            lnclient.ChannelStateOpening,
		ChannelPoint:     channelPoint,
		Private:          req.Private,
	}, nil
}

func (svc *LNDRestService) CloseChannel(ctx context.Context, req *lnclient.CloseChannelRequest) (*lnclient.CloseChannelResponse, error) {
	svc.logger.Info().
		Str("channel_id", req.ChannelID).
		Bool("force", req.Force).
		Msg("Closing channel")

	channelPoint, err := svc.resolveChannelPoint(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("force", strconv.FormatBool(req.Force))
	if !req.Force && req.SatPerVbyte > 0 {
		query.Set("sat_per_vbyte", strconv.FormatUint(req.SatPerVbyte, 10))
	}
	path := fmt.Sprintf("/v1/channels/%s/%d?%s", channelPoint.GetFundingTxidStr(), channelPoint.OutputIndex, query.Encode())

	response := &lnclient.CloseChannelResponse{
		ChannelID: req.ChannelID,
		Force:     req.Force,
		Status:    lnclient.ChannelStateClosing,
	}

	streamCtx, cancel := svc.withTimeout(svc.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	body, next, err := svc.client.stream(streamCtx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	defer body.Close()

	var update lnrpc.CloseStatusUpdate
	if err := next(&update); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			svc.logger.Warn().Str("channel_id", req.ChannelID).Msg("No close update before deadline")
			return response, nil
		}
		return nil, lnclient.FromGRPC(err)
	}

	switch u := update.Update.(type) {
	case *lnrpc.CloseStatusUpdate_ClosePending:
		response.ClosingTxid, err = lnd.ClosingTxid(u.ClosePending.Txid)
	case *lnrpc.CloseStatusUpdate_ChanClose:
		response.ClosingTxid, err = lnd.ClosingTxid(u.ChanClose.ClosingTxid)
		response.Status = lnclient.ChannelStateClosed
	}
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindBackendError, err, "invalid closing txid")
	}
	return response, nil
}

func (svc *LNDRestService) resolveChannelPoint(ctx context.Context, channelID string) (*lnrpc.ChannelPoint, error) {
	if strings.Contains(channelID, ":") {
		return lnd.ParseChannelPoint(channelID)
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var resp lnrpc.ListChannelsResponse
	if err := svc.client.call(ctx, http.MethodGet, "/v1/channels", nil, &resp); err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	for _, channel := range resp.Channels {
		if strconv.FormatUint(channel.ChanId, 10) == channelID {
			return lnd.ParseChannelPoint(channel.ChannelPoint)
		}
	}
	return nil, lnclient.NewNotFoundError("channel " + channelID)
}

func (svc *LNDRestService) GetInfo(ctx context.Context) (*lnclient.NodeInfo, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var resp lnrpc.GetInfoResponse
	if err := svc.client.call(ctx, http.MethodGet, "/v1/getinfo", nil, &resp); err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch node info")
		return nil, lnclient.FromGRPC(err)
	}

	svc.versionMtx.Lock()
	if !svc.versionChecked {
		svc.versionChecked = true
		svc.versionErr = lnd.CheckVersion(resp.Version)
		if svc.versionErr != nil {
			svc.logger.Warn().Err(svc.versionErr).Msg("Route fee estimation disabled")
		}
	}
	svc.versionMtx.Unlock()

	return lnd.ToNodeInfo(&resp), nil
}

func (svc *LNDRestService) EstimateRouteFee(ctx context.Context, paymentRequest string, amountSat uint64) (uint64, error) {
	svc.versionMtx.Lock()
	checked := svc.versionChecked
	svc.versionMtx.Unlock()
	if !checked {
		if _, err := svc.GetInfo(ctx); err != nil {
			return 0, err
		}
	}
	svc.versionMtx.Lock()
	versionErr := svc.versionErr
	svc.versionMtx.Unlock()
	if versionErr != nil {
		return 0, lnclient.WrapError(lnclient.KindNotSupported, versionErr, "route fee estimation not supported")
	}

	decoded, err := decodepay.Decodepay(paymentRequest)
	if err != nil {
		return 0, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "failed to decode invoice")
	}

	timeout := svc.cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	feeRequest := &routerrpc.RouteFeeRequest{Timeout: uint32(timeout.Seconds())}
	if decoded.MSat == 0 {
		dest, err := hex.DecodeString(decoded.Payee)
		if err != nil {
			return 0, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "invalid payee")
		}
		feeRequest.Dest = dest
		feeRequest.AmtSat = int64(amountSat)
	} else {
		feeRequest.PaymentRequest = paymentRequest
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var resp routerrpc.RouteFeeResponse
	if err := svc.client.call(ctx, http.MethodPost, "/v2/router/route/estimatefee", feeRequest, &resp); err != nil {
		return 0, lnclient.FromGRPC(err)
	}
	if resp.FailureReason != lnrpc.PaymentFailureReason_FAILURE_REASON_NONE {
		msg := lnd.FailureReasonMessage(resp.FailureReason)
		return 0, lnclient.NewError(lnclient.ClassifyMessage(msg), "%s", msg)
	}
	return uint64(math.Ceil(float64(resp.RoutingFeeMsat) / 1000)), nil
}

func decodeHash(paymentHash string) ([]byte, error) {
	hashBytes, err := hex.DecodeString(paymentHash)
	if err != nil || len(hashBytes) != 32 {
		return nil, lnclient.NewError(lnclient.KindInvalidPaymentHash, "payment hash must be 32 bytes hex")
	}
	return hashBytes, nil
}
