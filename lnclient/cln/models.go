package cln

import (
	"fmt"
	"time"

	"github.com/flokiorg/lngateway/lnclient"
)

type clnInvoice struct {
	Label              string `json:"label"`
	Bolt11             string `json:"bolt11"`
	PaymentHash        string `json:"payment_hash"`
	AmountMsat         Msat   `json:"amount_msat"`
	AmountReceivedMsat Msat   `json:"amount_received_msat"`
	Status             string `json:"status"`
	Description        string `json:"description"`
	ExpiresAt          int64  `json:"expires_at"`
	PayIndex           uint64 `json:"pay_index"`
	PaidAt             int64  `json:"paid_at"`
	PaymentPreimage    string `json:"payment_preimage"`
}

func (i *clnInvoice) toInvoice(now time.Time) *lnclient.Invoice {
	expiresAt := time.Unix(i.ExpiresAt, 0)
	invoice := &lnclient.Invoice{
		ID:             i.Label,
		PaymentHash:    i.PaymentHash,
		PaymentRequest: i.Bolt11,
		AmountSat:      i.AmountMsat.Sat(),
		Memo:           i.Description,
		ExpiresAt:      expiresAt,
	}

	switch i.Status {
	case "paid":
		invoice.Status = lnclient.InvoiceStatusSettled
		if i.PaidAt > 0 {
			paidAt := time.Unix(i.PaidAt, 0)
			invoice.SettledAt = &paidAt
		}
	case "expired":
		invoice.Status = lnclient.InvoiceStatusExpired
	default:
		invoice.Status = lnclient.InvoiceStatusPending
		if i.ExpiresAt > 0 && !now.Before(expiresAt) {
			invoice.Status = lnclient.InvoiceStatusExpired
		}
	}
	return invoice
}

type clnPayResult struct {
	PaymentPreimage string `json:"payment_preimage"`
	PaymentHash     string `json:"payment_hash"`
	Parts           int    `json:"parts"`
	AmountMsat      Msat   `json:"amount_msat"`
	AmountSentMsat  Msat   `json:"amount_sent_msat"`
	Status          string `json:"status"`
}

type clnPay struct {
	Bolt11         string `json:"bolt11"`
	PaymentHash    string `json:"payment_hash"`
	Status         string `json:"status"`
	AmountMsat     Msat   `json:"amount_msat"`
	AmountSentMsat Msat   `json:"amount_sent_msat"`
	Preimage       string `json:"preimage"`
	CreatedAt      int64  `json:"created_at"`
	NumberOfParts  int    `json:"number_of_parts"`
}

type clnChannel struct {
	PeerID         string `json:"peer_id"`
	State          string `json:"state"`
	ShortChannelID string `json:"short_channel_id"`
	ChannelID      string `json:"channel_id"`
	FundingTxid    string `json:"funding_txid"`
	FundingOutnum  uint32 `json:"funding_outnum"`
	TotalMsat      Msat   `json:"total_msat"`
	ToUsMsat       Msat   `json:"to_us_msat"`
	Private        bool   `json:"private"`
}

func (c *clnChannel) toChannel() lnclient.Channel {
	id := c.ShortChannelID
	if id == "" {
		id = c.ChannelID
	}
	channel := lnclient.Channel{
		ID:               id,
		RemotePubkey:     c.PeerID,
		CapacitySat:      c.TotalMsat.Sat(),
		LocalBalanceSat:  c.ToUsMsat.Sat(),
		RemoteBalanceSat: c.TotalMsat.Sat() - c.ToUsMsat.Sat(),
		State:            channelState(c.State),
		Private:          c.Private,
	}
	if c.FundingTxid != "" {
		channel.ChannelPoint = fmt.Sprintf("%s:%d", c.FundingTxid, c.FundingOutnum)
	}
	return channel
}

func channelState(state string) lnclient.ChannelState {
	switch state {
	case "CHANNELD_NORMAL", "CHANNELD_AWAITING_SPLICE":
		return lnclient.ChannelStateActive
	case "OPENINGD", "CHANNELD_AWAITING_LOCKIN", "DUALOPEND_OPEN_INIT", "DUALOPEND_OPEN_COMMITTED",
		"DUALOPEND_OPEN_COMMIT_READY", "DUALOPEND_AWAITING_LOCKIN":
		return lnclient.ChannelStateOpening
	case "ONCHAIN", "CLOSED":
		return lnclient.ChannelStateClosed
	default:
		// CHANNELD_SHUTTING_DOWN, CLOSINGD_*, AWAITING_UNILATERAL, FUNDING_SPEND_SEEN
		return lnclient.ChannelStateClosing
	}
}
