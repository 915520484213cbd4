package lnd

import (
	"context"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/lnclient/lnd/wrapper"
	decodepay "github.com/flokiorg/lngateway/lndecodepay"
	"github.com/flokiorg/lngateway/logger"
)

const MAX_PARTIAL_PAYMENTS = 16

// lndClient is the subset of the LND RPC surface the adapter uses.
type lndClient interface {
	GetInfo(ctx context.Context, req *lnrpc.GetInfoRequest, options ...grpc.CallOption) (*lnrpc.GetInfoResponse, error)
	AddInvoice(ctx context.Context, req *lnrpc.Invoice, options ...grpc.CallOption) (*lnrpc.AddInvoiceResponse, error)
	LookupInvoice(ctx context.Context, req *lnrpc.PaymentHash, options ...grpc.CallOption) (*lnrpc.Invoice, error)
	SubscribeInvoices(ctx context.Context, req *lnrpc.InvoiceSubscription, options ...grpc.CallOption) (lnrpc.Lightning_SubscribeInvoicesClient, error)
	SendPayment(ctx context.Context, req *routerrpc.SendPaymentRequest, options ...grpc.CallOption) (routerrpc.Router_SendPaymentV2Client, error)
	TrackPayment(ctx context.Context, req *routerrpc.TrackPaymentRequest, options ...grpc.CallOption) (routerrpc.Router_TrackPaymentV2Client, error)
	EstimateRouteFee(ctx context.Context, req *routerrpc.RouteFeeRequest, options ...grpc.CallOption) (*routerrpc.RouteFeeResponse, error)
	WalletBalance(ctx context.Context, req *lnrpc.WalletBalanceRequest, options ...grpc.CallOption) (*lnrpc.WalletBalanceResponse, error)
	ChannelBalance(ctx context.Context, req *lnrpc.ChannelBalanceRequest, options ...grpc.CallOption) (*lnrpc.ChannelBalanceResponse, error)
	ListChannels(ctx context.Context, req *lnrpc.ListChannelsRequest, options ...grpc.CallOption) (*lnrpc.ListChannelsResponse, error)
	PendingChannels(ctx context.Context, req *lnrpc.PendingChannelsRequest, options ...grpc.CallOption) (*lnrpc.PendingChannelsResponse, error)
	OpenChannelSync(ctx context.Context, req *lnrpc.OpenChannelRequest, options ...grpc.CallOption) (*lnrpc.ChannelPoint, error)
	CloseChannel(ctx context.Context, req *lnrpc.CloseChannelRequest, options ...grpc.CallOption) (lnrpc.Lightning_CloseChannelClient, error)
	Close() error
}

type LNDService struct {
	client         lndClient
	cfg            config.BackendConfig
	cancel         context.CancelFunc
	ctx            context.Context
	eventPublisher events.EventPublisher
	logger         zerolog.Logger
	now            func() time.Time

	versionMtx     sync.Mutex
	versionChecked bool
	versionErr     error
}

// NewLNDService builds the adapter without contacting the node; the gRPC
// connection is established on first use.
func NewLNDService(ctx context.Context, eventPublisher events.EventPublisher, cfg config.BackendConfig) (lnclient.LNClient, error) {
	if cfg.Endpoint == "" || cfg.MacaroonPath == "" || cfg.CertPath == "" {
		return nil, errors.New("one or more required LND configuration are missing")
	}

	lndClient, err := wrapper.NewLNDclient(wrapper.LNDoptions{
		Address:      cfg.Endpoint,
		CertFile:     cfg.CertPath,
		MacaroonFile: cfg.MacaroonPath,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to create new LND client")
		return nil, err
	}

	return newLNDService(ctx, lndClient, eventPublisher, cfg), nil
}

func newLNDService(ctx context.Context, client lndClient, eventPublisher events.EventPublisher, cfg config.BackendConfig) *LNDService {
	lndCtx, cancel := context.WithCancel(ctx)
	svc := &LNDService{
		client:         client,
		cfg:            cfg,
		cancel:         cancel,
		ctx:            lndCtx,
		eventPublisher: eventPublisher,
		logger:         logger.Logger.With().Str("backend", constants.BACKEND_LND).Logger(),
		now:            time.Now,
	}
	if eventPublisher != nil {
		go svc.subscribeInvoices(lndCtx)
	}
	return svc
}

func (svc *LNDService) subscribeInvoices(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			invoiceStream, err := svc.client.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{})
			if err != nil {
				svc.logger.Error().Err(err).Msg("Error subscribing to invoices")
				select {
				case <-ctx.Done():
					return
				case <-time.After(10 * time.Second):
					continue
				}
			}
		invoicesLoop:
			for {
				invoice, err := invoiceStream.Recv()
				if err != nil {
					if ctx.Err() == nil {
						svc.logger.Error().Err(err).Msg("Failed to receive invoice")
					}
					select {
					case <-ctx.Done():
						return
					case <-time.After(2 * time.Second):
						break invoicesLoop
					}
				}

				svc.publishInvoiceUpdate(invoice)
			}
		}
	}
}

func (svc *LNDService) publishInvoiceUpdate(invoice *lnrpc.Invoice) {
	var eventName string
	switch invoice.State {
	case lnrpc.Invoice_SETTLED:
		eventName = constants.EVENT_INVOICE_SETTLED
	case lnrpc.Invoice_CANCELED:
		eventName = constants.EVENT_INVOICE_CANCELLED
	default:
		return
	}

	inv := ToInvoice(invoice, svc.now())
	svc.logger.Info().
		Str("payment_hash", inv.PaymentHash).
		Str("status", string(inv.Status)).
		Msg("Received invoice update")

	svc.eventPublisher.Publish(&events.Event{
		Event: eventName,
		Properties: &lnclient.InvoiceUpdate{
			Backend:     constants.BACKEND_LND,
			PaymentHash: inv.PaymentHash,
			Status:      inv.Status,
			SettledAt:   inv.SettledAt,
		},
	})
}

func (svc *LNDService) Shutdown() error {
	svc.logger.Info().Msg("Shutting down LND client")
	svc.cancel()
	return svc.client.Close()
}

func (svc *LNDService) Capabilities() lnclient.Capability {
	return lnclient.CapAll
}

func (svc *LNDService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.cfg.ConnectionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.cfg.ConnectionTimeout)
}

func (svc *LNDService) CreateInvoice(ctx context.Context, req *lnclient.CreateInvoiceRequest) (*lnclient.Invoice, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	expiry := req.ExpirySeconds
	if expiry == 0 {
		expiry = int64(constants.DEFAULT_INVOICE_EXPIRY.Seconds())
	}

	resp, err := svc.client.AddInvoice(ctx, &lnrpc.Invoice{
		Value:  int64(req.AmountSat),
		Memo:   req.Memo,
		Expiry: expiry,
	})
	if err != nil {
		svc.logger.Error().Err(err).Uint64("amount", req.AmountSat).Msg("Failed to create invoice")
		return nil, lnclient.FromGRPC(err)
	}

	inv, err := svc.client.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: resp.RHash})
	if err != nil {
		// the invoice exists on the node; fall back to what the request encodes
		svc.logger.Warn().Err(err).Msg("Failed to lookup created invoice")
		return invoiceFromPaymentRequest(resp, req)
	}

	return ToInvoice(inv, svc.now()), nil
}

func invoiceFromPaymentRequest(resp *lnrpc.AddInvoiceResponse, req *lnclient.CreateInvoiceRequest) (*lnclient.Invoice, error) {
	decoded, err := decodepay.Decodepay(resp.PaymentRequest)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindBackendError, err, "node returned an undecodable invoice")
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

// PayInvoice submits the payment and returns after the first update. LND
// keeps routing after the stream is closed, so a non-terminal update is
// returned as a handle for GetPaymentStatus.
func (svc *LNDService) PayInvoice(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	sendRequest := &routerrpc.SendPaymentRequest{
		PaymentRequest: req.PaymentRequest,
		MaxParts:       MAX_PARTIAL_PAYMENTS,
		FeeLimitSat:    int64(req.FeeLimitSat),
		TimeoutSeconds: int32(math.Ceil(timeout.Seconds())),
	}
	if req.AmountSat > 0 {
		sendRequest.Amt = int64(req.AmountSat)
	}

	// the stream lives on the service context so a cancelled caller does not
	// tear it down before the first update is read
	streamCtx, cancel := context.WithCancel(svc.ctx)
	defer cancel()

	payStream, err := svc.client.SendPayment(streamCtx, sendRequest)
	if err != nil {
		svc.logger.Error().Err(err).Str("bolt11", req.PaymentRequest).Msg("SendPayment failed")
		return nil, sendPaymentError(err)
	}

	payment, err := recvFirst(ctx, svc.cfg.ConnectionTimeout, payStream.Recv)
	if errors.Is(err, context.DeadlineExceeded) {
		// LND accepted the request; the outcome is unknown until tracked
		return pendingHandle(req)
	}
	if err != nil {
		svc.logger.Error().Err(err).Str("bolt11", req.PaymentRequest).Msg("Couldn't get response from paystream")
		return nil, recvPaymentError(err)
	}

	result := ToPayment(payment)
	result.FeeLimitSat = req.FeeLimitSat
	if result.AttemptCount == 0 {
		result.AttemptCount = 1
	}
	svc.logger.Info().
		Str("payment_hash", result.PaymentHash).
		Str("status", string(result.Status)).
		Msg("Payment dispatched")
	return result, nil
}

// sendPaymentError classifies a failure to open the payment stream. An
// unavailable connection means the request never left; a stream that broke
// while the request was written may have reached LND.
func sendPaymentError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return lnclient.WrapError(lnclient.KindBackendConnectionError, err, "payment stream broke")
	}
	if st.Code() == codes.Unavailable {
		return lnclient.NotSent(lnclient.FromGRPC(err))
	}
	return lnclient.FromGRPC(err)
}

// recvPaymentError classifies a failure reading the first payment update.
// LND has the request by now, so only a status it sent back is a rejection.
func recvPaymentError(err error) error {
	if _, ok := status.FromError(err); !ok {
		return lnclient.WrapError(lnclient.KindBackendConnectionError, err, "payment stream broke")
	}
	return lnclient.FromGRPC(err)
}

func pendingHandle(req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
	decoded, err := decodepay.Decodepay(req.PaymentRequest)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "failed to decode invoice")
	}
	amountSat := decoded.AmountSat()
	if amountSat == 0 {
		amountSat = req.AmountSat
	}
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

// recvFirst waits for one stream message, giving up when ctx is done or the
// optional timeout passes. The caller cancels the stream afterwards.
func recvFirst[T any](ctx context.Context, timeout time.Duration, recv func() (*T, error)) (*T, error) {
	type result struct {
		msg *T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := recv()
		ch <- result{msg, err}
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case r := <-ch:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer:
		return nil, context.DeadlineExceeded
	}
}

func (svc *LNDService) GetPaymentStatus(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
	hashBytes, err := decodeHash(paymentHash)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := svc.withTimeout(ctx)
	defer cancel()

	stream, err := svc.client.TrackPayment(streamCtx, &routerrpc.TrackPaymentRequest{PaymentHash: hashBytes})
	if err == nil {
		var payment *lnrpc.Payment
		payment, err = stream.Recv()
		if err == nil {
			return ToOutgoingStatus(payment), nil
		}
	}
	if status.Code(err) != codes.NotFound {
		svc.logger.Error().Err(err).Str("payment_hash", paymentHash).Msg("Failed to track payment")
		return nil, lnclient.FromGRPC(err)
	}

	invoice, err := svc.client.LookupInvoice(streamCtx, &lnrpc.PaymentHash{RHash: hashBytes})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, lnclient.NewNotFoundError("payment " + paymentHash)
		}
		return nil, lnclient.FromGRPC(err)
	}
	return ToIncomingStatus(invoice, svc.now()), nil
}

func (svc *LNDService) LookupInvoice(ctx context.Context, paymentHash string) (*lnclient.Invoice, error) {
	hashBytes, err := decodeHash(paymentHash)
	if err != nil {
		return nil, err
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	invoice, err := svc.client.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: hashBytes})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, lnclient.NewNotFoundError("invoice " + paymentHash)
		}
		svc.logger.Error().Err(err).Str("payment_hash", paymentHash).Msg("Failed to lookup invoice")
		return nil, lnclient.FromGRPC(err)
	}
	return ToInvoice(invoice, svc.now()), nil
}

func (svc *LNDService) GetWalletBalance(ctx context.Context) (*lnclient.WalletBalance, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	resp, err := svc.client.WalletBalance(ctx, &lnrpc.WalletBalanceRequest{})
	if err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	return &lnclient.WalletBalance{
		ConfirmedSat:   uint64(resp.ConfirmedBalance),
		UnconfirmedSat: uint64(resp.UnconfirmedBalance),
	}, nil
}

func (svc *LNDService) GetChannelBalance(ctx context.Context) (*lnclient.ChannelBalance, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	resp, err := svc.client.ChannelBalance(ctx, &lnrpc.ChannelBalanceRequest{})
	if err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	return &lnclient.ChannelBalance{
		LocalSat:  resp.GetLocalBalance().GetSat(),
		RemoteSat: resp.GetRemoteBalance().GetSat(),
	}, nil
}

func (svc *LNDService) ListChannels(ctx context.Context) ([]lnclient.Channel, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	open, err := svc.client.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	pending, err := svc.client.PendingChannels(ctx, &lnrpc.PendingChannelsRequest{})
	if err != nil {
		return nil, lnclient.FromGRPC(err)
	}
	return ToChannels(open, pending), nil
}

func (svc *LNDService) OpenChannel(ctx context.Context, req *lnclient.OpenChannelRequest) (*lnclient.Channel, error) {
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

	point, err := svc.client.OpenChannelSync(ctx, &lnrpc.OpenChannelRequest{
		NodePubkey:         pubkey,
		LocalFundingAmount: int64(req.LocalAmtSat),
		PushSat:            int64(req.PushAmtSat),
		Private:            req.Private,
		TargetConf:         req.TargetConf,
		SatPerVbyte:        req.SatPerVbyte,
	})
	if err != nil {
		svc.logger.Error().Err(err).Str("pubkey", req.RemotePubkey).Msg("Failed to open channel")
		return nil, lnclient.FromGRPC(err)
	}

	channelPoint, err := ChannelPointString(point)
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

// CloseChannel accepts either a numeric channel id or a funding outpoint.
func (svc *LNDService) CloseChannel(ctx context.Context, req *lnclient.CloseChannelRequest) (*lnclient.CloseChannelResponse, error) {
	svc.logger.Info().
		Str("channel_id", req.ChannelID).
		Bool("force", req.Force).
		Msg("Closing channel")

	channelPoint, err := svc.resolveChannelPoint(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}

	closeRequest := &lnrpc.CloseChannelRequest{
		ChannelPoint: channelPoint,
		Force:        req.Force,
	}
	if !req.Force {
		closeRequest.SatPerVbyte = req.SatPerVbyte
	}

	streamCtx, cancel := context.WithCancel(svc.ctx)
	defer cancel()

	stream, err := svc.client.CloseChannel(streamCtx, closeRequest)
	if err != nil {
		svc.logger.Error().Err(err).Str("channel_id", req.ChannelID).Msg("Failed to close channel")
		return nil, lnclient.FromGRPC(err)
	}

	response := &lnclient.CloseChannelResponse{
		ChannelID: req.ChannelID,
		Force:     req.Force,
		Status:    lnclient.ChannelStateClosing,
	}

	update, err := recvFirst(ctx, svc.cfg.ConnectionTimeout, stream.Recv)
	if errors.Is(err, context.DeadlineExceeded) {
		// the close was accepted but the peer has not answered yet
		svc.logger.Warn().Str("channel_id", req.ChannelID).Msg("No close update before deadline")
		return response, nil
	}
	if err != nil {
		return nil, lnclient.FromGRPC(err)
	}

	switch u := update.Update.(type) {
	case *lnrpc.CloseStatusUpdate_ClosePending:
		response.ClosingTxid, err = ClosingTxid(u.ClosePending.Txid)
	case *lnrpc.CloseStatusUpdate_ChanClose:
		response.ClosingTxid, err = ClosingTxid(u.ChanClose.ClosingTxid)
		response.Status = lnclient.ChannelStateClosed
	}
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindBackendError, err, "invalid closing txid")
	}

	svc.logger.Info().
		Str("closing_txid", response.ClosingTxid).
		Msg("Channel close pending")
	return response, nil
}

func (svc *LNDService) resolveChannelPoint(ctx context.Context, channelID string) (*lnrpc.ChannelPoint, error) {
	if strings.Contains(channelID, ":") {
		return ParseChannelPoint(channelID)
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	resp, err := svc.client.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch channels")
		return nil, lnclient.FromGRPC(err)
	}
	for _, channel := range resp.Channels {
		if ToOpenChannel(channel).ID == channelID {
			return ParseChannelPoint(channel.ChannelPoint)
		}
	}
	return nil, lnclient.NewNotFoundError("channel " + channelID)
}

func (svc *LNDService) GetInfo(ctx context.Context) (*lnclient.NodeInfo, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	resp, err := svc.client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch node info")
		return nil, lnclient.FromGRPC(err)
	}
	svc.recordVersion(resp.Version)
	return ToNodeInfo(resp), nil
}

func (svc *LNDService) recordVersion(version string) {
	svc.versionMtx.Lock()
	defer svc.versionMtx.Unlock()
	if svc.versionChecked {
		return
	}
	svc.versionChecked = true
	svc.versionErr = CheckVersion(version)
	if svc.versionErr != nil {
		svc.logger.Warn().Err(svc.versionErr).Msg("Route fee estimation disabled")
	}
}

func (svc *LNDService) supportsFeeEstimate(ctx context.Context) error {
	svc.versionMtx.Lock()
	checked := svc.versionChecked
	svc.versionMtx.Unlock()
	if !checked {
		if _, err := svc.GetInfo(ctx); err != nil {
			return err
		}
	}
	svc.versionMtx.Lock()
	defer svc.versionMtx.Unlock()
	if svc.versionErr != nil {
		return lnclient.WrapError(lnclient.KindNotSupported, svc.versionErr, "route fee estimation not supported")
	}
	return nil
}

// EstimateRouteFee estimates the route fee of an invoice. For amountless invoices
// the destination is queried with the given amount instead.
func (svc *LNDService) EstimateRouteFee(ctx context.Context, paymentRequest string, amountSat uint64) (uint64, error) {
	if err := svc.supportsFeeEstimate(ctx); err != nil {
		return 0, err
	}

	decoded, err := decodepay.Decodepay(paymentRequest)
	if err != nil {
		return 0, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "failed to decode invoice")
	}

	timeout := svc.cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	feeRequest := &routerrpc.RouteFeeRequest{
		Timeout: uint32(timeout.Seconds()),
	}
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

	resp, err := svc.client.EstimateRouteFee(ctx, feeRequest)
	if err != nil {
		return 0, lnclient.FromGRPC(err)
	}
	if resp.FailureReason != lnrpc.PaymentFailureReason_FAILURE_REASON_NONE {
		msg := FailureReasonMessage(resp.FailureReason)
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
