package payments

import (
	"strings"
	"time"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/lnclient"
)

type Settings struct {
	// bounds dispatch plus polling of one payment
	PaymentTimeout time.Duration
	// first wait between status polls; doubles up to MAX_POLL_INTERVAL
	PollInterval         time.Duration
	DefaultInvoiceExpiry time.Duration
}

type PayOptions struct {
	// capped by the policy's maximum routing fee
	FeeLimitSat *uint64
	// required for amountless invoices only
	AmountSat *uint64
}

func toInvoice(record *db.Invoice) *lnclient.Invoice {
	return &lnclient.Invoice{
		ID:             record.ID,
		PaymentHash:    record.PaymentHash,
		PaymentRequest: record.PaymentRequest,
		AmountSat:      record.AmountSat,
		Memo:           record.Memo,
		Status:         lnclient.InvoiceStatus(record.State),
		CreatedAt:      record.CreatedAt,
		ExpiresAt:      record.ExpiresAt,
		SettledAt:      record.SettledAt,
	}
}

func toPayment(record *db.Payment) *lnclient.Payment {
	payment := &lnclient.Payment{
		PaymentHash:    record.PaymentHash,
		PaymentRequest: record.PaymentRequest,
		AmountSat:      record.AmountSat,
		FeeLimitSat:    record.FeeLimitSat,
		FeeSat:         record.FeeSat,
		Status:         lnclient.PaymentState(record.State),
		FailureReason:  record.FailureReason,
		AttemptCount:   record.AttemptCount,
		CreatedAt:      record.CreatedAt,
		CompletedAt:    record.CompletedAt,
	}
	if record.Preimage != nil {
		payment.Preimage = *record.Preimage
	}
	return payment
}

func paymentStatusFromRecord(record *db.Payment) *lnclient.PaymentStatus {
	status := &lnclient.PaymentStatus{
		PaymentHash:   record.PaymentHash,
		Direction:     constants.PAYMENT_DIRECTION_OUTGOING,
		Status:        lnclient.PaymentState(record.State),
		AmountSat:     record.AmountSat,
		FeeSat:        record.FeeSat,
		FailureReason: record.FailureReason,
		AttemptCount:  record.AttemptCount,
	}
	if record.Preimage != nil {
		status.Preimage = *record.Preimage
	}
	return status
}

func paymentStatusFromInvoice(invoice *lnclient.Invoice) *lnclient.PaymentStatus {
	status := &lnclient.PaymentStatus{
		PaymentHash: invoice.PaymentHash,
		Direction:   constants.PAYMENT_DIRECTION_INCOMING,
		AmountSat:   invoice.AmountSat,
	}
	switch invoice.Status {
	case lnclient.InvoiceStatusSettled:
		status.Status = lnclient.PaymentStateSucceeded
	case lnclient.InvoiceStatusExpired, lnclient.InvoiceStatusCancelled:
		status.Status = lnclient.PaymentStateFailed
		status.FailureReason = "invoice " + strings.ToLower(string(invoice.Status))
	default:
		status.Status = lnclient.PaymentStatePending
	}
	return status
}
