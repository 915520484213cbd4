package lnclient

import (
	"context"
	"strings"
	"time"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusSettled   InvoiceStatus = "SETTLED"
	InvoiceStatusExpired   InvoiceStatus = "EXPIRED"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusSettled || s == InvoiceStatusExpired || s == InvoiceStatusCancelled
}

type PaymentState string

const (
	PaymentStatePending   PaymentState = "PENDING"
	PaymentStateInFlight  PaymentState = "IN_FLIGHT"
	PaymentStateSucceeded PaymentState = "SUCCEEDED"
	PaymentStateFailed    PaymentState = "FAILED"
	// set by the orchestrator only, never reported by a backend
	PaymentStateTimedOut PaymentState = "TIMED_OUT"
)

func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateSucceeded || s == PaymentStateFailed
}

type ChannelState string

const (
	ChannelStateOpening ChannelState = "OPENING"
	ChannelStateActive  ChannelState = "ACTIVE"
	ChannelStateClosing ChannelState = "CLOSING"
	ChannelStateClosed  ChannelState = "CLOSED"
)

type Invoice struct {
	ID             string        `json:"id"`
	PaymentHash    string        `json:"paymentHash"`
	PaymentRequest string        `json:"paymentRequest"`
	AmountSat      uint64        `json:"amountSat"`
	Memo           string        `json:"memo"`
	Status         InvoiceStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	ExpiresAt      time.Time     `json:"expiresAt"`
	SettledAt      *time.Time    `json:"settledAt,omitempty"`
}

// InvoiceUpdate is the payload of invoice events published by adapters that
// stream invoice state from the node.
type InvoiceUpdate struct {
	Backend     string        `json:"backend"`
	PaymentHash string        `json:"paymentHash"`
	Status      InvoiceStatus `json:"status"`
	SettledAt   *time.Time    `json:"settledAt,omitempty"`
}

type Payment struct {
	PaymentHash    string       `json:"paymentHash"`
	PaymentRequest string       `json:"paymentRequest"`
	AmountSat      uint64       `json:"amountSat"`
	FeeLimitSat    uint64       `json:"feeLimitSat"`
	FeeSat         uint64       `json:"feeSat"`
	Preimage       string       `json:"preimage,omitempty"`
	Status         PaymentState `json:"status"`
	FailureReason  string       `json:"failureReason,omitempty"`
	AttemptCount   int          `json:"attemptCount"`
	CreatedAt      time.Time    `json:"createdAt"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
}

// PaymentStatus is what a backend reports for a payment hash. Outgoing
// payments are looked up first, then incoming invoices.
type PaymentStatus struct {
	PaymentHash   string       `json:"paymentHash"`
	Direction     string       `json:"direction"`
	Status        PaymentState `json:"status"`
	AmountSat     uint64       `json:"amountSat"`
	FeeSat        uint64       `json:"feeSat"`
	Preimage      string       `json:"preimage,omitempty"`
	FailureReason string       `json:"failureReason,omitempty"`
	AttemptCount  int          `json:"attemptCount"`
}

type Channel struct {
	ID               string       `json:"id"`
	RemotePubkey     string       `json:"remotePubkey"`
	CapacitySat      uint64       `json:"capacitySat"`
	LocalBalanceSat  uint64       `json:"localBalanceSat"`
	RemoteBalanceSat uint64       `json:"remoteBalanceSat"`
	State            ChannelState `json:"state"`
	ChannelPoint     string       `json:"channelPoint,omitempty"`
	Private          bool         `json:"private"`
}

type WalletBalance struct {
	ConfirmedSat   uint64 `json:"confirmedSat"`
	UnconfirmedSat uint64 `json:"unconfirmedSat"`
}

type ChannelBalance struct {
	LocalSat  uint64 `json:"localSat"`
	RemoteSat uint64 `json:"remoteSat"`
}

type NodeInfo struct {
	Pubkey      string `json:"pubkey"`
	Alias       string `json:"alias"`
	Network     string `json:"network"`
	Version     string `json:"version"`
	BlockHeight uint32 `json:"blockHeight"`
	Synced      bool   `json:"synced"`
}

type CreateInvoiceRequest struct {
	AmountSat     uint64
	Memo          string
	ExpirySeconds int64
}

type PayInvoiceRequest struct {
	PaymentRequest string
	// only set for amountless invoices
	AmountSat   uint64
	FeeLimitSat uint64
	Timeout     time.Duration
}

type OpenChannelRequest struct {
	RemotePubkey string
	LocalAmtSat  uint64
	PushAmtSat   uint64
	Private      bool
	TargetConf   int32
	SatPerVbyte  uint64
}

type CloseChannelRequest struct {
	ChannelID   string
	Force       bool
	SatPerVbyte uint64
}

type CloseChannelResponse struct {
	ChannelID   string       `json:"channelId"`
	ClosingTxid string       `json:"closingTxid,omitempty"`
	Force       bool         `json:"force"`
	Status      ChannelState `json:"status"`
}

// Capability is a bit set of the operations an adapter supports.
type Capability uint32

const (
	CapInvoices Capability = 1 << iota
	CapPayments
	CapPaymentStatus
	CapWalletBalance
	CapChannelBalance
	CapChannels
	CapFeeEstimate
)

const CapAll = CapInvoices | CapPayments | CapPaymentStatus | CapWalletBalance | CapChannelBalance | CapChannels | CapFeeEstimate

func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	names := []struct {
		cap  Capability
		name string
	}{
		{CapInvoices, "invoices"},
		{CapPayments, "payments"},
		{CapPaymentStatus, "payment_status"},
		{CapWalletBalance, "wallet_balance"},
		{CapChannelBalance, "channel_balance"},
		{CapChannels, "channels"},
		{CapFeeEstimate, "fee_estimate"},
	}
	var out []string
	for _, n := range names {
		if c.Has(n.cap) {
			out = append(out, n.name)
		}
	}
	return strings.Join(out, ",")
}

type LNClient interface {
	CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*Invoice, error)
	// PayInvoice submits the payment once. The result is either terminal or
	// a pending/in-flight handle that must be polled via GetPaymentStatus.
	PayInvoice(ctx context.Context, req *PayInvoiceRequest) (*Payment, error)
	GetPaymentStatus(ctx context.Context, paymentHash string) (*PaymentStatus, error)
	LookupInvoice(ctx context.Context, paymentHash string) (*Invoice, error)
	GetWalletBalance(ctx context.Context) (*WalletBalance, error)
	GetChannelBalance(ctx context.Context) (*ChannelBalance, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	OpenChannel(ctx context.Context, req *OpenChannelRequest) (*Channel, error)
	CloseChannel(ctx context.Context, req *CloseChannelRequest) (*CloseChannelResponse, error)
	GetInfo(ctx context.Context) (*NodeInfo, error)
	Capabilities() Capability
	Shutdown() error
}

// FeeEstimator is implemented by adapters that can estimate a route fee before
// a payment is dispatched.
type FeeEstimator interface {
	EstimateRouteFee(ctx context.Context, paymentRequest string, amountSat uint64) (uint64, error)
}
