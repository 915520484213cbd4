package payments

import (
	"context"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/db/queries"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/utils"
)

// GetPaymentStatus answers from local records first. Unresolved outgoing
// payments, including timed out ones, are reconciled against the backend;
// this is the only place a TIMED_OUT payment gets its final state.
func (svc *paymentsService) GetPaymentStatus(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
	if err := validatePaymentHash(paymentHash); err != nil {
		return nil, err
	}

	record, err := queries.GetLatestPayment(svc.db, paymentHash)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return svc.reconcilePayment(ctx, record)
	}

	invoice, err := queries.GetInvoiceByHash(svc.db, paymentHash)
	if err != nil {
		return nil, err
	}
	if invoice != nil {
		refreshed, err := svc.refreshInvoice(ctx, invoice)
		if err != nil {
			return nil, err
		}
		return paymentStatusFromInvoice(refreshed), nil
	}

	lnClient, err := svc.registry.ResolveCapable(lnclient.CapPaymentStatus)
	if err != nil {
		return nil, err
	}
	return utils.RetryRead(ctx, "GetPaymentStatus", func(ctx context.Context) (*lnclient.PaymentStatus, error) {
		return lnClient.GetPaymentStatus(ctx, paymentHash)
	})
}

func (svc *paymentsService) reconcilePayment(ctx context.Context, record *db.Payment) (*lnclient.PaymentStatus, error) {
	if lnclient.PaymentState(record.State).IsTerminal() {
		return paymentStatusFromRecord(record), nil
	}

	lnClient, err := svc.registry.ResolveName(record.Backend)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("payment_hash", record.PaymentHash).Msg("Backend of payment unavailable, reporting stored state")
		return paymentStatusFromRecord(record), nil
	}

	remote, err := utils.RetryRead(ctx, "GetPaymentStatus", func(ctx context.Context) (*lnclient.PaymentStatus, error) {
		return lnClient.GetPaymentStatus(ctx, record.PaymentHash)
	})
	if err != nil {
		logger.Logger.Warn().Err(err).Str("payment_hash", record.PaymentHash).Msg("Failed to reconcile payment, reporting stored state")
		return paymentStatusFromRecord(record), nil
	}

	if !remote.Status.IsTerminal() {
		status := paymentStatusFromRecord(record)
		if remote.AttemptCount > status.AttemptCount {
			status.AttemptCount = remote.AttemptCount
		}
		return status, nil
	}

	logger.Logger.Info().
		Str("payment_hash", record.PaymentHash).
		Str("stored", record.State).
		Str("backend", string(remote.Status)).
		Msg("Reconciling payment")

	var payment *lnclient.Payment
	if remote.Status == lnclient.PaymentStateSucceeded {
		payment, err = svc.settle(record, lnclient.PaymentStateSucceeded, remote.Preimage, remote.FeeSat, remote.AttemptCount, "")
	} else {
		payment, err = svc.settle(record, lnclient.PaymentStateFailed, "", 0, remote.AttemptCount, remote.FailureReason)
	}
	if err != nil {
		return nil, err
	}
	return &lnclient.PaymentStatus{
		PaymentHash:   payment.PaymentHash,
		Direction:     constants.PAYMENT_DIRECTION_OUTGOING,
		Status:        payment.Status,
		AmountSat:     payment.AmountSat,
		FeeSat:        payment.FeeSat,
		Preimage:      payment.Preimage,
		FailureReason: payment.FailureReason,
		AttemptCount:  payment.AttemptCount,
	}, nil
}
