package api

import (
	"context"

	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/wallet"
)

// API is shared by the http and mcp front ends.
type API interface {
	CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*lnclient.Invoice, error)
	LookupInvoice(ctx context.Context, paymentHash string) (*lnclient.Invoice, error)
	PayInvoice(ctx context.Context, req *PayInvoiceRequest) (*lnclient.Payment, error)
	GetPaymentStatus(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error)
	AwaitPayment(ctx context.Context, paymentHash string) (*lnclient.Payment, error)
	GetWalletBalance(ctx context.Context) (*lnclient.WalletBalance, error)
	GetChannelBalance(ctx context.Context) (*lnclient.ChannelBalance, error)
	ListChannels(ctx context.Context) ([]lnclient.Channel, error)
	OpenChannel(ctx context.Context, req *OpenChannelRequest) (*lnclient.Channel, error)
	CloseChannel(ctx context.Context, channelID string, force bool) (*lnclient.CloseChannelResponse, error)
	HandleInvoiceWebhook(ctx context.Context, req *InvoiceWebhookRequest) (*lnclient.Invoice, error)
	GetNodeInfo(ctx context.Context) (*wallet.NodeInfo, error)
	GetInfo(ctx context.Context) (*InfoResponse, error)
	Health(ctx context.Context) (*HealthResponse, error)
	ListBackends() []registry.BackendStatus
	SetActiveBackend(name string) error
}

type CreateInvoiceRequest struct {
	AmountSat     uint64 `json:"amountSat"`
	Memo          string `json:"memo"`
	ExpirySeconds int64  `json:"expirySeconds"`
}

type PayInvoiceRequest struct {
	Invoice     string  `json:"invoice"`
	AmountSat   *uint64 `json:"amountSat"`
	FeeLimitSat *uint64 `json:"feeLimitSat"`
}

type OpenChannelRequest struct {
	Pubkey      string `json:"pubkey"`
	LocalAmtSat uint64 `json:"localAmtSat"`
	PushAmtSat  uint64 `json:"pushAmtSat"`
	Private     bool   `json:"private"`
	TargetConf  int32  `json:"targetConf"`
	SatPerVbyte uint64 `json:"satPerVbyte"`
}

// InvoiceWebhookRequest accepts the LNbits payment callback as well as a
// plain {payment_hash, status} body.
type InvoiceWebhookRequest struct {
	PaymentHash string `json:"payment_hash"`
	Paid        *bool  `json:"paid"`
	Pending     *bool  `json:"pending"`
	Status      string `json:"status"`
}

type SetActiveBackendRequest struct {
	Backend string `json:"backend"`
}

type LimitsResponse struct {
	MinPaymentSat         uint64  `json:"minPaymentSat"`
	MaxPaymentSat         uint64  `json:"maxPaymentSat"`
	DailyOutboundLimitSat uint64  `json:"dailyOutboundLimitSat"`
	MaxRoutingFeePercent  string  `json:"maxRoutingFeePercent"`
	DailySpentSat         uint64  `json:"dailySpentSat"`
	ReservedSat           uint64  `json:"reservedSat"`
	RemainingDailySat     *uint64 `json:"remainingDailySat,omitempty"`
}

type InfoResponse struct {
	Version       string                   `json:"version"`
	Network       string                   `json:"network"`
	ActiveBackend string                   `json:"activeBackend"`
	Backends      []registry.BackendStatus `json:"backends"`
	Limits        LimitsResponse           `json:"limits"`
}

type HealthAlarmKind string

const (
	HealthAlarmKindBackendUnavailable HealthAlarmKind = "backend_unavailable"
	HealthAlarmKindBackendInitFailed  HealthAlarmKind = "backend_init_failed"
	HealthAlarmKindNodeNotSynced      HealthAlarmKind = "node_not_synced"
	HealthAlarmKindDailyLimitReached  HealthAlarmKind = "daily_limit_reached"
)

type HealthAlarm struct {
	Kind       HealthAlarmKind `json:"kind"`
	RawDetails any             `json:"rawDetails,omitempty"`
}

func NewHealthAlarm(kind HealthAlarmKind, rawDetails any) HealthAlarm {
	return HealthAlarm{
		Kind:       kind,
		RawDetails: rawDetails,
	}
}

type HealthResponse struct {
	Alarms []HealthAlarm `json:"alarms,omitempty"`
}

type ErrorResponse struct {
	Kind    lnclient.ErrorKind `json:"kind,omitempty"`
	Reason  lnclient.ErrorKind `json:"reason,omitempty"`
	Message string             `json:"message"`
}

// NewErrorResponse exposes the error kind so clients can tell a rejected
// payment from one whose outcome is unknown.
func NewErrorResponse(err error) ErrorResponse {
	response := ErrorResponse{
		Kind:    lnclient.KindOf(err),
		Message: err.Error(),
	}
	if reason := lnclient.ReasonOf(err); reason != response.Kind {
		response.Reason = reason
	}
	return response
}
