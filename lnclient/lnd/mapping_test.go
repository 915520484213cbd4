package lnd

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flokiorg/lngateway/lnclient"
)

func TestToInvoiceStatus(t *testing.T) {
	now := time.Unix(1700000000, 0)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		state     lnrpc.Invoice_InvoiceState
		expiresAt time.Time
		expected  lnclient.InvoiceStatus
	}{
		{"open", lnrpc.Invoice_OPEN, future, lnclient.InvoiceStatusPending},
		{"accepted", lnrpc.Invoice_ACCEPTED, future, lnclient.InvoiceStatusPending},
		{"settled", lnrpc.Invoice_SETTLED, past, lnclient.InvoiceStatusSettled},
		{"cancelled before expiry", lnrpc.Invoice_CANCELED, future, lnclient.InvoiceStatusCancelled},
		{"cancelled after expiry", lnrpc.Invoice_CANCELED, past, lnclient.InvoiceStatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToInvoiceStatus(tt.state, tt.expiresAt, now))
		})
	}
}

func TestToPaymentState(t *testing.T) {
	assert.Equal(t, lnclient.PaymentStateSucceeded, ToPaymentState(lnrpc.Payment_SUCCEEDED))
	assert.Equal(t, lnclient.PaymentStateFailed, ToPaymentState(lnrpc.Payment_FAILED))
	assert.Equal(t, lnclient.PaymentStateInFlight, ToPaymentState(lnrpc.Payment_IN_FLIGHT))
	assert.Equal(t, lnclient.PaymentStatePending, ToPaymentState(lnrpc.Payment_INITIATED))
}

func TestFailureReasonsClassify(t *testing.T) {
	assert.Equal(t, lnclient.KindInsufficientFunds,
		lnclient.ClassifyMessage(FailureReasonMessage(lnrpc.PaymentFailureReason_FAILURE_REASON_INSUFFICIENT_BALANCE)))
	// a routing timeout is a final failure reported by LND, not an unknown outcome
	assert.Equal(t, lnclient.KindBackendError,
		lnclient.ClassifyMessage(FailureReasonMessage(lnrpc.PaymentFailureReason_FAILURE_REASON_TIMEOUT)))
	assert.Empty(t, FailureReasonMessage(lnrpc.PaymentFailureReason_FAILURE_REASON_NONE))
}

func TestToPaymentHidesZeroPreimage(t *testing.T) {
	payment := ToPayment(&lnrpc.Payment{
		Status:          lnrpc.Payment_IN_FLIGHT,
		PaymentPreimage: zeroPreimage,
		FeeMsat:         2500,
	})
	assert.Empty(t, payment.Preimage)
	assert.Equal(t, uint64(2), payment.FeeSat)
	assert.Nil(t, payment.CompletedAt)
}

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, CheckVersion("0.18.4-beta commit=v0.18.4-beta"))
	assert.NoError(t, CheckVersion("0.19.0-beta.rc1"))
	assert.Error(t, CheckVersion("0.17.5-beta"))
	assert.Error(t, CheckVersion(""))
	assert.Error(t, CheckVersion("garbage"))
}

func TestParseChannelPoint(t *testing.T) {
	txid := "8c7f1a42d8f5e0c4a7b1e6c2b4d1f0e9a8c7b6d5e4f3a2b1c0d9e8f7a6b5c4d3"
	point, err := ParseChannelPoint(txid + ":2")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), point.OutputIndex)
	assert.Equal(t, txid, point.GetFundingTxidStr())

	formatted, err := ChannelPointString(point)
	require.NoError(t, err)
	assert.Equal(t, txid+":2", formatted)

	for _, invalid := range []string{"", "abc", txid, txid + ":x", "zz:1"} {
		_, err := ParseChannelPoint(invalid)
		assert.ErrorIs(t, err, lnclient.ErrNotFound, invalid)
	}
}

func TestToNodeInfo(t *testing.T) {
	info := ToNodeInfo(&lnrpc.GetInfoResponse{
		IdentityPubkey: "03ff",
		Alias:          "node",
		Version:        "0.18.4-beta",
		BlockHeight:    10,
		SyncedToChain:  true,
		Chains:         []*lnrpc.Chain{{Network: "testnet"}},
	})
	assert.Equal(t, "testnet", info.Network)
	assert.True(t, info.Synced)
	assert.Equal(t, uint32(10), info.BlockHeight)
}
