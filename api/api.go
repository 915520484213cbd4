package api

import (
	"context"
	"strings"

	"github.com/flokiorg/lngateway/channels"
	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/payments"
	"github.com/flokiorg/lngateway/pkg/version"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/service"
	"github.com/flokiorg/lngateway/wallet"
)

type api struct {
	svc            service.Service
	cfg            config.Config
	eventPublisher events.EventPublisher
}

func NewAPI(svc service.Service) *api {
	return &api{
		svc:            svc,
		cfg:            svc.GetConfig(),
		eventPublisher: svc.GetEventPublisher(),
	}
}

func (api *api) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*lnclient.Invoice, error) {
	return api.svc.GetPaymentsService().CreateInvoice(ctx, req.AmountSat, req.Memo, req.ExpirySeconds)
}

func (api *api) LookupInvoice(ctx context.Context, paymentHash string) (*lnclient.Invoice, error) {
	return api.svc.GetPaymentsService().LookupInvoice(ctx, strings.ToLower(paymentHash))
}

func (api *api) PayInvoice(ctx context.Context, req *PayInvoiceRequest) (*lnclient.Payment, error) {
	if strings.TrimSpace(req.Invoice) == "" {
		return nil, lnclient.NewError(lnclient.KindInvalidInvoiceFormat, "invoice is required")
	}
	return api.svc.GetPaymentsService().PayInvoice(ctx, req.Invoice, payments.PayOptions{
		AmountSat:   req.AmountSat,
		FeeLimitSat: req.FeeLimitSat,
	})
}

func (api *api) GetPaymentStatus(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
	return api.svc.GetPaymentsService().GetPaymentStatus(ctx, strings.ToLower(paymentHash))
}

// AwaitPayment blocks until an outgoing payment still being tracked reaches a
// final or timed out state, or until ctx ends.
func (api *api) AwaitPayment(ctx context.Context, paymentHash string) (*lnclient.Payment, error) {
	return api.svc.GetPaymentsService().AwaitPayment(ctx, strings.ToLower(paymentHash))
}

func (api *api) GetWalletBalance(ctx context.Context) (*lnclient.WalletBalance, error) {
	return api.svc.GetWalletService().GetWalletBalance(ctx)
}

func (api *api) GetChannelBalance(ctx context.Context) (*lnclient.ChannelBalance, error) {
	return api.svc.GetWalletService().GetChannelBalance(ctx)
}

func (api *api) ListChannels(ctx context.Context) ([]lnclient.Channel, error) {
	return api.svc.GetChannelsService().ListChannels(ctx)
}

func (api *api) OpenChannel(ctx context.Context, req *OpenChannelRequest) (*lnclient.Channel, error) {
	return api.svc.GetChannelsService().OpenChannel(ctx, channels.OpenChannelParams{
		RemotePubkey: req.Pubkey,
		LocalAmtSat:  req.LocalAmtSat,
		PushAmtSat:   req.PushAmtSat,
		Private:      req.Private,
		TargetConf:   req.TargetConf,
		SatPerVbyte:  req.SatPerVbyte,
	})
}

func (api *api) CloseChannel(ctx context.Context, channelID string, force bool) (*lnclient.CloseChannelResponse, error) {
	return api.svc.GetChannelsService().CloseChannel(ctx, channelID, channels.CloseOptions{Force: force})
}

// HandleInvoiceWebhook applies an externally reported invoice status and
// tells the other subscribers about it.
func (api *api) HandleInvoiceWebhook(ctx context.Context, req *InvoiceWebhookRequest) (*lnclient.Invoice, error) {
	status, err := webhookStatus(req)
	if err != nil {
		return nil, err
	}
	paymentHash := strings.ToLower(strings.TrimSpace(req.PaymentHash))

	invoice, err := api.svc.GetPaymentsService().UpdateInvoiceStatus(ctx, paymentHash, status, nil)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("payment_hash", paymentHash).Str("status", string(status)).Msg("Failed to apply invoice webhook")
		return nil, err
	}

	event := ""
	switch status {
	case lnclient.InvoiceStatusSettled:
		event = constants.EVENT_INVOICE_SETTLED
	case lnclient.InvoiceStatusCancelled:
		event = constants.EVENT_INVOICE_CANCELLED
	}
	if event != "" {
		api.eventPublisher.Publish(&events.Event{
			Event: event,
			Properties: &lnclient.InvoiceUpdate{
				Backend:     api.svc.GetRegistry().Active(),
				PaymentHash: paymentHash,
				Status:      status,
				SettledAt:   invoice.SettledAt,
			},
		})
	}
	return invoice, nil
}

func webhookStatus(req *InvoiceWebhookRequest) (lnclient.InvoiceStatus, error) {
	switch strings.ToLower(strings.TrimSpace(req.Status)) {
	case "settled", "paid", "success", "complete":
		return lnclient.InvoiceStatusSettled, nil
	case "cancelled", "canceled", "failed":
		return lnclient.InvoiceStatusCancelled, nil
	case "expired":
		return lnclient.InvoiceStatusExpired, nil
	case "":
	default:
		return "", lnclient.NewError(lnclient.KindInvalidTransition, "unsupported invoice status %q", req.Status)
	}

	if req.Paid != nil && *req.Paid {
		return lnclient.InvoiceStatusSettled, nil
	}
	if req.Pending != nil && !*req.Pending {
		return lnclient.InvoiceStatusSettled, nil
	}
	return "", lnclient.NewError(lnclient.KindInvalidTransition, "webhook does not report a final invoice status")
}

func (api *api) GetNodeInfo(ctx context.Context) (*wallet.NodeInfo, error) {
	return api.svc.GetWalletService().GetNodeInfo(ctx)
}

func (api *api) GetInfo(ctx context.Context) (*InfoResponse, error) {
	policy := api.svc.GetPolicy()
	limits := policy.Limits()
	ledger := policy.Ledger().Snapshot()

	return &InfoResponse{
		Version:       version.Tag,
		Network:       api.cfg.GetNetwork(),
		ActiveBackend: api.svc.GetRegistry().Active(),
		Backends:      api.svc.GetRegistry().Status(),
		Limits: LimitsResponse{
			MinPaymentSat:         limits.MinPaymentSat,
			MaxPaymentSat:         limits.MaxPaymentSat,
			DailyOutboundLimitSat: limits.DailyOutboundLimitSat,
			MaxRoutingFeePercent:  limits.MaxRoutingFeePercent.String(),
			DailySpentSat:         ledger.DailySpentSat,
			ReservedSat:           ledger.ReservedSat,
			RemainingDailySat:     policy.RemainingDailySat(),
		},
	}, nil
}

func (api *api) Health(ctx context.Context) (*HealthResponse, error) {
	var alarms []HealthAlarm

	reg := api.svc.GetRegistry()
	failed := []string{}
	for _, status := range reg.Status() {
		if status.Error != "" && !status.Active {
			failed = append(failed, status.Name)
		}
	}
	if len(failed) > 0 {
		alarms = append(alarms, NewHealthAlarm(HealthAlarmKindBackendInitFailed, failed))
	}

	info, err := api.svc.GetWalletService().GetNodeInfo(ctx)
	if err != nil {
		alarms = append(alarms, NewHealthAlarm(HealthAlarmKindBackendUnavailable, map[string]string{
			"backend": reg.Active(),
			"kind":    string(lnclient.KindOf(err)),
		}))
	} else if !info.Synced {
		alarms = append(alarms, NewHealthAlarm(HealthAlarmKindNodeNotSynced, info.BlockHeight))
	}

	if remaining := api.svc.GetPolicy().RemainingDailySat(); remaining != nil && *remaining == 0 {
		alarms = append(alarms, NewHealthAlarm(HealthAlarmKindDailyLimitReached, nil))
	}

	return &HealthResponse{Alarms: alarms}, nil
}

func (api *api) ListBackends() []registry.BackendStatus {
	return api.svc.GetRegistry().Status()
}

// SetActiveBackend switches backends for new operations. Payments already
// in flight keep polling the backend they were sent through.
func (api *api) SetActiveBackend(name string) error {
	name = strings.ToUpper(strings.TrimSpace(name))
	if err := api.svc.GetRegistry().SetActive(name); err != nil {
		return err
	}
	if err := api.cfg.SetActiveBackend(name); err != nil {
		logger.Logger.Error().Err(err).Str("backend", name).Msg("Failed to persist active backend")
		return err
	}
	return nil
}
