package lnd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lnrpc"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/lnclient"
)

// oldest release whose EstimateRouteFee accepts a payment request
const MIN_LND_VERSION = "0.18.0"

var zeroPreimage = strings.Repeat("0", 64)

// The mapping helpers are shared by the gRPC and REST adapters; the REST
// adapter decodes LND's JSON into the same lnrpc messages.

func ToInvoice(invoice *lnrpc.Invoice, now time.Time) *lnclient.Invoice {
	createdAt := time.Unix(invoice.CreationDate, 0)
	expiresAt := createdAt.Add(time.Duration(invoice.Expiry) * time.Second)

	amountSat := uint64(invoice.Value)
	if amountSat == 0 && invoice.ValueMsat > 0 {
		amountSat = uint64(invoice.ValueMsat / 1000)
	}

	result := &lnclient.Invoice{
		ID:             strconv.FormatUint(invoice.AddIndex, 10),
		PaymentHash:    hex.EncodeToString(invoice.RHash),
		PaymentRequest: invoice.PaymentRequest,
		AmountSat:      amountSat,
		Memo:           invoice.Memo,
		Status:         ToInvoiceStatus(invoice.State, expiresAt, now),
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
	}
	if invoice.State == lnrpc.Invoice_SETTLED && invoice.SettleDate > 0 {
		settledAt := time.Unix(invoice.SettleDate, 0)
		result.SettledAt = &settledAt
	}
	return result
}

// ToInvoiceStatus maps LND invoice states. LND cancels invoices once they
// expire, so a cancellation after the expiry time is reported as EXPIRED.
func ToInvoiceStatus(state lnrpc.Invoice_InvoiceState, expiresAt time.Time, now time.Time) lnclient.InvoiceStatus {
	switch state {
	case lnrpc.Invoice_SETTLED:
		return lnclient.InvoiceStatusSettled
	case lnrpc.Invoice_CANCELED:
		if !expiresAt.IsZero() && !now.Before(expiresAt) {
			return lnclient.InvoiceStatusExpired
		}
		return lnclient.InvoiceStatusCancelled
	default:
		// OPEN and ACCEPTED (held HTLCs) are both still pending
		return lnclient.InvoiceStatusPending
	}
}

func ToPaymentState(status lnrpc.Payment_PaymentStatus) lnclient.PaymentState {
	switch status {
	case lnrpc.Payment_SUCCEEDED:
		return lnclient.PaymentStateSucceeded
	case lnrpc.Payment_FAILED:
		return lnclient.PaymentStateFailed
	case lnrpc.Payment_IN_FLIGHT:
		return lnclient.PaymentStateInFlight
	default:
		return lnclient.PaymentStatePending
	}
}

// FailureReasonMessage turns LND's failure enum into a message that
// lnclient.ClassifyMessage understands.
func FailureReasonMessage(reason lnrpc.PaymentFailureReason) string {
	switch reason {
	case lnrpc.PaymentFailureReason_FAILURE_REASON_NONE:
		return ""
	case lnrpc.PaymentFailureReason_FAILURE_REASON_TIMEOUT:
		return "payment attempt timed out"
	case lnrpc.PaymentFailureReason_FAILURE_REASON_NO_ROUTE:
		return "no route found"
	case lnrpc.PaymentFailureReason_FAILURE_REASON_INCORRECT_PAYMENT_DETAILS:
		return "incorrect payment details: invoice not found by recipient"
	case lnrpc.PaymentFailureReason_FAILURE_REASON_INSUFFICIENT_BALANCE:
		return "insufficient local balance"
	case lnrpc.PaymentFailureReason_FAILURE_REASON_CANCELED:
		return "payment canceled"
	default:
		return strings.ToLower(strings.TrimPrefix(reason.String(), "FAILURE_REASON_"))
	}
}

func ToPayment(payment *lnrpc.Payment) *lnclient.Payment {
	state := ToPaymentState(payment.Status)

	feeSat := uint64(payment.FeeSat)
	if feeSat == 0 && payment.FeeMsat > 0 {
		feeSat = uint64(payment.FeeMsat / 1000)
	}

	result := &lnclient.Payment{
		PaymentHash:    payment.PaymentHash,
		PaymentRequest: payment.PaymentRequest,
		AmountSat:      uint64(payment.ValueSat),
		FeeSat:         feeSat,
		Status:         state,
		AttemptCount:   len(payment.Htlcs),
		CreatedAt:      time.Unix(0, payment.CreationTimeNs),
	}
	if state == lnclient.PaymentStateSucceeded && payment.PaymentPreimage != zeroPreimage {
		result.Preimage = payment.PaymentPreimage
	}
	if state == lnclient.PaymentStateFailed {
		result.FailureReason = FailureReasonMessage(payment.FailureReason)
	}
	if state.IsTerminal() {
		completedAt := lastResolveTime(payment)
		result.CompletedAt = &completedAt
	}
	return result
}

func ToOutgoingStatus(payment *lnrpc.Payment) *lnclient.PaymentStatus {
	p := ToPayment(payment)
	return &lnclient.PaymentStatus{
		PaymentHash:   p.PaymentHash,
		Direction:     constants.PAYMENT_DIRECTION_OUTGOING,
		Status:        p.Status,
		AmountSat:     p.AmountSat,
		FeeSat:        p.FeeSat,
		Preimage:      p.Preimage,
		FailureReason: p.FailureReason,
		AttemptCount:  p.AttemptCount,
	}
}

func ToIncomingStatus(invoice *lnrpc.Invoice, now time.Time) *lnclient.PaymentStatus {
	inv := ToInvoice(invoice, now)
	status := &lnclient.PaymentStatus{
		PaymentHash: inv.PaymentHash,
		Direction:   constants.PAYMENT_DIRECTION_INCOMING,
		AmountSat:   inv.AmountSat,
	}
	switch inv.Status {
	case lnclient.InvoiceStatusSettled:
		status.Status = lnclient.PaymentStateSucceeded
		status.Preimage = hex.EncodeToString(invoice.RPreimage)
		if invoice.AmtPaidSat > 0 {
			status.AmountSat = uint64(invoice.AmtPaidSat)
		}
	case lnclient.InvoiceStatusPending:
		status.Status = lnclient.PaymentStatePending
	default:
		status.Status = lnclient.PaymentStateFailed
		status.FailureReason = strings.ToLower(string(inv.Status))
	}
	return status
}

func lastResolveTime(payment *lnrpc.Payment) time.Time {
	var latest int64
	for _, htlc := range payment.Htlcs {
		if htlc.ResolveTimeNs > latest {
			latest = htlc.ResolveTimeNs
		}
	}
	if latest == 0 {
		return time.Unix(0, payment.CreationTimeNs)
	}
	return time.Unix(0, latest)
}

func ToOpenChannel(channel *lnrpc.Channel) lnclient.Channel {
	return lnclient.Channel{
		ID:               strconv.FormatUint(channel.ChanId, 10),
		RemotePubkey:     channel.RemotePubkey,
		CapacitySat:      uint64(channel.Capacity),
		LocalBalanceSat:  uint64(channel.LocalBalance),
		RemoteBalanceSat: uint64(channel.RemoteBalance),
		State:            lnclient.ChannelStateActive,
		ChannelPoint:     channel.ChannelPoint,
		Private:          channel.Private,
	}
}

func ToPendingChannel(channel *lnrpc.PendingChannelsResponse_PendingChannel, state lnclient.ChannelState) lnclient.Channel {
	return lnclient.Channel{
		ID:               channel.ChannelPoint,
		RemotePubkey:     channel.RemoteNodePub,
		CapacitySat:      uint64(channel.Capacity),
		LocalBalanceSat:  uint64(channel.LocalBalance),
		RemoteBalanceSat: uint64(channel.RemoteBalance),
		State:            state,
		ChannelPoint:     channel.ChannelPoint,
		Private:          channel.Private,
	}
}

// ToChannels merges open and pending channels into one list.
func ToChannels(open *lnrpc.ListChannelsResponse, pending *lnrpc.PendingChannelsResponse) []lnclient.Channel {
	channels := []lnclient.Channel{}
	for _, channel := range open.GetChannels() {
		channels = append(channels, ToOpenChannel(channel))
	}
	for _, p := range pending.GetPendingOpenChannels() {
		if p.Channel != nil {
			channels = append(channels, ToPendingChannel(p.Channel, lnclient.ChannelStateOpening))
		}
	}
	for _, p := range pending.GetWaitingCloseChannels() {
		if p.Channel != nil {
			channels = append(channels, ToPendingChannel(p.Channel, lnclient.ChannelStateClosing))
		}
	}
	for _, p := range pending.GetPendingForceClosingChannels() {
		if p.Channel != nil {
			channels = append(channels, ToPendingChannel(p.Channel, lnclient.ChannelStateClosing))
		}
	}
	return channels
}

func ToNodeInfo(resp *lnrpc.GetInfoResponse) *lnclient.NodeInfo {
	network := ""
	if len(resp.Chains) > 0 {
		network = resp.Chains[0].Network
	}
	return &lnclient.NodeInfo{
		Pubkey:      resp.IdentityPubkey,
		Alias:       resp.Alias,
		Network:     network,
		Version:     resp.Version,
		BlockHeight: resp.BlockHeight,
		Synced:      resp.SyncedToChain,
	}
}

// ChannelPointString renders a funding outpoint as txid:index with the txid
// in the usual reversed byte order.
func ChannelPointString(point *lnrpc.ChannelPoint) (string, error) {
	if txid := point.GetFundingTxidStr(); txid != "" {
		return fmt.Sprintf("%s:%d", txid, point.OutputIndex), nil
	}
	hash, err := chainhash.NewHash(point.GetFundingTxidBytes())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", hash.String(), point.OutputIndex), nil
}

func ParseChannelPoint(channelPoint string) (*lnrpc.ChannelPoint, error) {
	parts := strings.Split(channelPoint, ":")
	if len(parts) != 2 {
		return nil, lnclient.NewError(lnclient.KindNotFound, "invalid channel point %q", channelPoint)
	}
	if _, err := chainhash.NewHashFromStr(parts[0]); err != nil {
		return nil, lnclient.WrapError(lnclient.KindNotFound, err, "invalid channel point txid %q", parts[0])
	}
	outputIndex, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindNotFound, err, "invalid channel point index %q", parts[1])
	}
	return &lnrpc.ChannelPoint{
		FundingTxid: &lnrpc.ChannelPoint_FundingTxidStr{
			FundingTxidStr: parts[0],
		},
		OutputIndex: uint32(outputIndex),
	}, nil
}

// ClosingTxid converts the raw txid bytes of a close update.
func ClosingTxid(raw []byte) (string, error) {
	hash, err := chainhash.NewHash(raw)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// CheckVersion fails for LND releases older than MIN_LND_VERSION. LND
// reports versions like "0.18.4-beta commit=v0.18.4-beta".
func CheckVersion(version string) error {
	fields := strings.Fields(version)
	if len(fields) == 0 {
		return fmt.Errorf("empty LND version")
	}
	core := strings.SplitN(fields[0], "-", 2)[0]
	v, err := semver.NewVersion(core)
	if err != nil {
		return fmt.Errorf("failed to parse LND version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(">= " + MIN_LND_VERSION)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("LND %s is older than the minimum supported version %s", core, MIN_LND_VERSION)
	}
	return nil
}
