package payments

import (
	"context"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/db/queries"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	decodepay "github.com/flokiorg/lngateway/lndecodepay"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/policy"
)

// PayInvoice authorizes and dispatches a payment exactly once. The result is
// a terminal payment, or a TIMED_OUT payment together with a TimedOut error
// when the outcome is still unknown after the payment timeout. If ctx ends
// first the caller gets the current snapshot and ctx.Err(); the payment
// keeps going.
func (svc *paymentsService) PayInvoice(ctx context.Context, paymentRequest string, opts PayOptions) (*lnclient.Payment, error) {
	paymentRequest = strings.TrimSpace(paymentRequest)
	run := newPaymentRun(paymentRequest)

	decoded, amountSat, err := svc.decodeForPayment(run, paymentRequest, opts)
	if err != nil {
		run.fail()
		return nil, err
	}

	if err := run.advance(StageAuthorizing); err != nil {
		return nil, err
	}

	if err := svc.checkDuplicate(decoded.PaymentHash); err != nil {
		run.fail()
		return nil, err
	}

	if err := svc.policy.Authorize(amountSat); err != nil {
		run.fail()
		run.logger.Info().Err(err).Uint64("amount_sat", amountSat).Msg("Payment rejected by policy")
		return nil, policyError(err)
	}

	feeLimitSat := svc.policy.MaxFeeSat(amountSat)
	if opts.FeeLimitSat != nil && *opts.FeeLimitSat < feeLimitSat {
		feeLimitSat = *opts.FeeLimitSat
	}

	backend := svc.registry.Active()
	lnClient, err := svc.registry.ResolveCapable(lnclient.CapPayments | lnclient.CapPaymentStatus)
	if err != nil {
		run.fail()
		return nil, err
	}

	var requestAmountSat uint64
	if decoded.MSat == 0 {
		requestAmountSat = amountSat
	}

	// nothing was sent yet, so a caller that gave up can still be honored
	if err := ctx.Err(); err != nil {
		run.fail()
		return nil, err
	}

	// the budget is held before the fee estimate, so a payment that loses the
	// race for the daily cap never reaches the backend
	record, err := svc.createPaymentRecord(backend, decoded.PaymentHash, paymentRequest, amountSat, feeLimitSat)
	if err != nil {
		run.fail()
		return nil, err
	}

	if err := svc.checkRouteFee(ctx, run, lnClient, paymentRequest, requestAmountSat, amountSat, feeLimitSat); err != nil {
		run.fail()
		svc.discardPaymentRecord(record)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		run.fail()
		svc.discardPaymentRecord(record)
		return nil, err
	}

	if err := run.advance(StageDispatched); err != nil {
		return nil, err
	}

	t := svc.startTracker(run, lnClient, record, &lnclient.PayInvoiceRequest{
		PaymentRequest: paymentRequest,
		AmountSat:      requestAmountSat,
		FeeLimitSat:    feeLimitSat,
		Timeout:        svc.settings.PaymentTimeout,
	})
	return svc.wait(ctx, t, record.PaymentHash)
}

// AwaitPayment re-attaches to a payment that is still being tracked, or
// returns the stored record.
func (svc *paymentsService) AwaitPayment(ctx context.Context, paymentHash string) (*lnclient.Payment, error) {
	if err := validatePaymentHash(paymentHash); err != nil {
		return nil, err
	}
	if t := svc.liveTracker(paymentHash); t != nil {
		return svc.wait(ctx, t, paymentHash)
	}
	return svc.loadPayment(paymentHash)
}

func (svc *paymentsService) decodeForPayment(run *paymentRun, paymentRequest string, opts PayOptions) (decodepay.Bolt11, uint64, error) {
	decoded, err := svc.decode(paymentRequest)
	if err != nil {
		run.logger.Error().Err(err).Msg("Failed to decode bolt11 invoice")
		return decoded, 0, lnclient.WrapError(lnclient.KindInvalidInvoiceFormat, err, "failed to decode invoice")
	}
	if decoded.PaymentHash == "" {
		return decoded, 0, lnclient.NewError(lnclient.KindInvalidInvoiceFormat, "invoice has no payment hash")
	}
	run.withHash(decoded.PaymentHash)

	if decoded.IsExpired(svc.clock.Now()) {
		run.logger.Error().Time("expiry", decoded.ExpiresAt()).Msg("This invoice has expired")
		return decoded, 0, lnclient.NewError(lnclient.KindInvoiceExpired, "invoice expired at %s", decoded.ExpiresAt().UTC().Format(time.RFC3339))
	}

	amountSat := decoded.AmountSat()
	if decoded.MSat == 0 {
		if opts.AmountSat == nil || *opts.AmountSat == 0 {
			return decoded, 0, lnclient.NewError(lnclient.KindInvalidAmount, "invoice has no amount, an amount must be given")
		}
		amountSat = *opts.AmountSat
	} else if opts.AmountSat != nil && *opts.AmountSat != amountSat {
		return decoded, 0, lnclient.NewError(lnclient.KindInvalidAmount,
			"amount %d sat does not match the invoice amount of %d sat", *opts.AmountSat, amountSat)
	}
	return decoded, amountSat, nil
}

// checkDuplicate rejects a hash that was paid or is still being paid. A
// failed payment may be tried again.
func (svc *paymentsService) checkDuplicate(paymentHash string) error {
	existing, err := queries.GetLatestPayment(svc.db, paymentHash)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	switch lnclient.PaymentState(existing.State) {
	case lnclient.PaymentStateSucceeded:
		logger.Logger.Debug().Str("payment_hash", paymentHash).Msg("This invoice has already been paid")
		return lnclient.NewError(lnclient.KindDuplicatePayment, "this invoice has already been paid")
	case lnclient.PaymentStateFailed:
		return nil
	default:
		logger.Logger.Debug().Str("payment_hash", paymentHash).Str("state", existing.State).Msg("This invoice is already being paid")
		return lnclient.NewError(lnclient.KindDuplicatePayment, "there is already a payment in progress for this invoice")
	}
}

// checkRouteFee estimates the route fee when the backend can, and rejects the
// payment before dispatch if the fee could not fit the limit. A failed estimate
// is not a reason to refuse the payment.
func (svc *paymentsService) checkRouteFee(ctx context.Context, run *paymentRun, lnClient lnclient.LNClient, paymentRequest string, requestAmountSat, amountSat, feeLimitSat uint64) error {
	estimator, ok := lnClient.(lnclient.FeeEstimator)
	if !ok || !lnClient.Capabilities().Has(lnclient.CapFeeEstimate) {
		return nil
	}

	feeSat, err := estimator.EstimateRouteFee(ctx, paymentRequest, requestAmountSat)
	if err != nil {
		run.logger.Warn().Err(err).Msg("Route fee estimate failed, relying on the fee limit")
		return nil
	}

	run.logger.Debug().Uint64("fee_sat", feeSat).Uint64("fee_limit_sat", feeLimitSat).Msg("Estimated route fee")
	if err := svc.policy.AuthorizeFee(amountSat, feeSat); err != nil {
		return err
	}
	if feeSat > feeLimitSat {
		return lnclient.NewError(lnclient.KindFeeTooHigh,
			"estimated routing fee %d sat exceeds the fee limit of %d sat", feeSat, feeLimitSat)
	}
	return nil
}

// createPaymentRecord re-checks for a duplicate and reserves budget under
// one lock, so two concurrent payments can neither pay the same hash nor
// overshoot the daily cap together.
func (svc *paymentsService) createPaymentRecord(backend, paymentHash, paymentRequest string, amountSat, feeLimitSat uint64) (*db.Payment, error) {
	svc.dispatchLock.Lock()
	defer svc.dispatchLock.Unlock()

	if err := svc.checkDuplicate(paymentHash); err != nil {
		return nil, err
	}

	reservation, err := svc.policy.Reserve(amountSat)
	if err != nil {
		logger.Logger.Info().Err(err).Str("payment_hash", paymentHash).Uint64("amount_sat", amountSat).Msg("Payment rejected by policy")
		return nil, policyError(err)
	}

	record := &db.Payment{
		Backend:        backend,
		PaymentHash:    paymentHash,
		PaymentRequest: paymentRequest,
		AmountSat:      amountSat,
		FeeLimitSat:    feeLimitSat,
		State:          string(lnclient.PaymentStatePending),
		CreatedAt:      svc.clock.Now(),
	}
	if err := svc.db.Create(record).Error; err != nil {
		reservation.Release()
		logger.Logger.Error().Err(err).Str("payment_hash", paymentHash).Msg("Failed to save payment")
		return nil, err
	}

	svc.trackersMtx.Lock()
	svc.reservations[paymentHash] = reservation
	svc.trackersMtx.Unlock()
	return record, nil
}

// discardPaymentRecord undoes createPaymentRecord for a payment that was
// rejected before dispatch.
func (svc *paymentsService) discardPaymentRecord(record *db.Payment) {
	svc.dispatchLock.Lock()
	defer svc.dispatchLock.Unlock()

	if err := svc.db.Delete(&db.Payment{}, record.ID).Error; err != nil {
		logger.Logger.Error().Err(err).Str("payment_hash", record.PaymentHash).Msg("Failed to discard payment")
		svc.db.Model(&db.Payment{}).Where("id = ?", record.ID).Updates(map[string]interface{}{
			"State":         string(lnclient.PaymentStateFailed),
			"FailureReason": "rejected before dispatch",
		})
	}
	if reservation := svc.takeReservation(record.PaymentHash); reservation != nil {
		reservation.Release()
	}
}

func (svc *paymentsService) startTracker(run *paymentRun, lnClient lnclient.LNClient, record *db.Payment, req *lnclient.PayInvoiceRequest) *tracker {
	t := &tracker{done: make(chan struct{})}

	svc.trackersMtx.Lock()
	svc.trackers[record.PaymentHash] = t
	svc.trackersMtx.Unlock()

	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		defer func() {
			svc.trackersMtx.Lock()
			delete(svc.trackers, record.PaymentHash)
			svc.trackersMtx.Unlock()
			close(t.done)
		}()
		t.payment, t.err = svc.execute(run, lnClient, record, req)
	}()
	return t
}

func (svc *paymentsService) wait(ctx context.Context, t *tracker, paymentHash string) (*lnclient.Payment, error) {
	select {
	case <-t.done:
		return t.payment, t.err
	case <-ctx.Done():
		logger.Logger.Info().Str("payment_hash", paymentHash).Msg("Caller stopped waiting, payment continues in the background")
		payment, err := svc.loadPayment(paymentHash)
		if err != nil {
			return nil, ctx.Err()
		}
		return payment, ctx.Err()
	}
}

// execute runs on the service context: a caller going away must never
// abandon a payment the backend may still complete. The payment timeout
// bounds the whole run, including an adapter that never returns.
func (svc *paymentsService) execute(run *paymentRun, lnClient lnclient.LNClient, record *db.Payment, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
	run.logger.Info().
		Uint64("amount_sat", record.AmountSat).
		Uint64("fee_limit_sat", record.FeeLimitSat).
		Msg("Dispatching payment")

	deadline := time.Now().Add(svc.settings.PaymentTimeout)
	dispatchCtx, cancel := context.WithDeadline(svc.ctx, deadline)
	defer cancel()

	response, err := dispatch(dispatchCtx, lnClient, req)
	if err != nil {
		switch {
		case dispatchCtx.Err() != nil:
			// out of time or shutting down mid dispatch
			_ = run.advance(StagePolling)
			return svc.timeOut(run, record)
		case outcomeUnknown(err):
			run.logger.Warn().Err(err).Msg("Lost the backend after sending the payment, polling for the outcome")
			svc.markInFlight(record, lnclient.PaymentStateInFlight, 1)
			if err := run.advance(StagePolling); err != nil {
				return nil, err
			}
			return svc.poll(run, lnClient, record, deadline)
		}
		run.fail()
		run.logger.Error().Err(err).Msg("Failed to send payment")
		if _, markErr := svc.settle(record, lnclient.PaymentStateFailed, "", 0, 1, err.Error()); markErr != nil {
			run.logger.Error().Err(markErr).Msg("Failed to mark payment as failed")
		}
		return nil, err
	}

	switch response.Status {
	case lnclient.PaymentStateSucceeded:
		_ = run.advance(StageSucceeded)
		return svc.settle(record, lnclient.PaymentStateSucceeded, response.Preimage, response.FeeSat, response.AttemptCount, "")
	case lnclient.PaymentStateFailed:
		_ = run.advance(StageFailed)
		return svc.settle(record, lnclient.PaymentStateFailed, "", 0, response.AttemptCount, response.FailureReason)
	}

	svc.markInFlight(record, response.Status, response.AttemptCount)
	if err := run.advance(StagePolling); err != nil {
		return nil, err
	}
	return svc.poll(run, lnClient, record, deadline)
}

// dispatch hands the payment to the backend and stops waiting once ctx is
// done, even if the adapter does not. A late answer is picked up by
// reconciliation.
func dispatch(ctx context.Context, lnClient lnclient.LNClient, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
	type result struct {
		payment *lnclient.Payment
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		payment, err := lnClient.PayInvoice(ctx, req)
		ch <- result{payment, err}
	}()

	select {
	case r := <-ch:
		return r.payment, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// outcomeUnknown reports a dispatch error that may have come after the
// backend accepted the payment. Only failures known to precede the send
// settle the payment as failed.
func outcomeUnknown(err error) bool {
	return lnclient.KindOf(err) == lnclient.KindBackendConnectionError && !lnclient.IsNotSent(err)
}

// poll asks the backend for the payment status with exponential backoff
// until a terminal status is seen or the deadline passes.
func (svc *paymentsService) poll(run *paymentRun, lnClient lnclient.LNClient, record *db.Payment, deadline time.Time) (*lnclient.Payment, error) {
	ctx, cancel := context.WithDeadline(svc.ctx, deadline)
	defer cancel()

	backoff := retry.WithCappedDuration(constants.MAX_POLL_INTERVAL, retry.NewExponential(svc.settings.PollInterval))

	var final *lnclient.PaymentStatus
	polls := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		polls++
		status, err := lnClient.GetPaymentStatus(ctx, record.PaymentHash)
		if err != nil {
			run.logger.Debug().Err(err).Int("poll", polls).Msg("Payment status poll failed")
			return retry.RetryableError(err)
		}
		if !status.Status.IsTerminal() {
			svc.markInFlight(record, status.Status, status.AttemptCount)
			return retry.RetryableError(errStillPending)
		}
		final = status
		return nil
	})

	if err != nil || final == nil {
		run.logger.Debug().Err(err).Int("polls", polls).Msg("Stopped polling payment")
		return svc.timeOut(run, record)
	}

	if final.Status == lnclient.PaymentStateSucceeded {
		_ = run.advance(StageSucceeded)
		return svc.settle(record, lnclient.PaymentStateSucceeded, final.Preimage, final.FeeSat, final.AttemptCount, "")
	}
	_ = run.advance(StageFailed)
	return svc.settle(record, lnclient.PaymentStateFailed, "", 0, final.AttemptCount, final.FailureReason)
}

func (svc *paymentsService) timeOut(run *paymentRun, record *db.Payment) (*lnclient.Payment, error) {
	_ = run.advance(StageTimedOut)

	result := svc.db.Model(&db.Payment{}).
		Where("id = ? AND state IN ?", record.ID, []string{string(lnclient.PaymentStatePending), string(lnclient.PaymentStateInFlight)}).
		Update("State", string(lnclient.PaymentStateTimedOut))
	if result.Error != nil {
		run.logger.Error().Err(result.Error).Msg("Failed to mark payment as timed out")
	}

	payment, err := svc.loadPayment(record.PaymentHash)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		// reconciled while we were polling
		return payment, nil
	}

	run.logger.Warn().Dur("timeout", svc.settings.PaymentTimeout).Msg("Payment outcome unknown, budget stays reserved until reconciled")
	svc.eventPublisher.Publish(&events.Event{
		Event:      constants.EVENT_PAYMENT_TIMED_OUT,
		Properties: payment,
	})
	return payment, lnclient.NewError(lnclient.KindTimedOut,
		"payment outcome unknown after %s, check it with get_payment_status and do not pay again", svc.settings.PaymentTimeout)
}

func (svc *paymentsService) markInFlight(record *db.Payment, state lnclient.PaymentState, attempts int) {
	if state != lnclient.PaymentStateInFlight && state != lnclient.PaymentStatePending {
		state = lnclient.PaymentStateInFlight
	}
	if attempts < 1 {
		attempts = 1
	}
	updates := map[string]interface{}{
		"State": string(state),
	}
	if attempts > record.AttemptCount {
		updates["AttemptCount"] = attempts
		record.AttemptCount = attempts
	}
	err := svc.db.Model(&db.Payment{}).
		Where("id = ? AND state IN ?", record.ID, []string{string(lnclient.PaymentStatePending), string(lnclient.PaymentStateInFlight)}).
		Updates(updates).Error
	if err != nil {
		logger.Logger.Error().Err(err).Str("payment_hash", record.PaymentHash).Msg("Failed to update payment progress")
	}
}

// settle writes a terminal state once. Only the writer that moved the record
// commits or releases the reservation, so the spend is counted exactly once
// no matter how many observers see the outcome.
func (svc *paymentsService) settle(record *db.Payment, state lnclient.PaymentState, preimage string, feeSat uint64, attempts int, reason string) (*lnclient.Payment, error) {
	now := svc.clock.Now()
	updates := map[string]interface{}{
		"State":         string(state),
		"FeeSat":        feeSat,
		"FailureReason": reason,
		"CompletedAt":   &now,
	}
	if preimage != "" {
		updates["Preimage"] = &preimage
	}
	if attempts < 1 {
		attempts = 1
	}
	if attempts > record.AttemptCount {
		updates["AttemptCount"] = attempts
	}

	result := svc.db.Model(&db.Payment{}).
		Where("id = ? AND state NOT IN ?", record.ID, queries.TerminalPaymentStates).
		Updates(updates)
	if result.Error != nil {
		logger.Logger.Error().Err(result.Error).
			Str("payment_hash", record.PaymentHash).
			Str("state", string(state)).
			Msg("Failed to update payment")
		return nil, result.Error
	}

	if result.RowsAffected > 0 {
		reservation := svc.takeReservation(record.PaymentHash)
		svc.applyOutcome(reservation, state, record.AmountSat)
	}

	payment, err := svc.loadPayment(record.PaymentHash)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		logger.Logger.Debug().Str("payment_hash", record.PaymentHash).Str("state", string(payment.Status)).Msg("Payment already final")
		return payment, nil
	}

	logger.Logger.Info().
		Str("payment_hash", record.PaymentHash).
		Str("state", string(state)).
		Uint64("amount_sat", record.AmountSat).
		Uint64("fee_sat", feeSat).
		Str("reason", reason).
		Msg("Payment completed")

	event := constants.EVENT_PAYMENT_SUCCEEDED
	if state == lnclient.PaymentStateFailed {
		event = constants.EVENT_PAYMENT_FAILED
	}
	svc.eventPublisher.Publish(&events.Event{
		Event:      event,
		Properties: payment,
	})
	return payment, nil
}

func (svc *paymentsService) applyOutcome(reservation *policy.Reservation, state lnclient.PaymentState, amountSat uint64) {
	switch {
	case state == lnclient.PaymentStateSucceeded && reservation != nil:
		reservation.Commit()
	case state == lnclient.PaymentStateSucceeded:
		svc.policy.Record(amountSat)
	case reservation != nil:
		reservation.Release()
	}
}

func (svc *paymentsService) loadPayment(paymentHash string) (*lnclient.Payment, error) {
	record, err := queries.GetLatestPayment(svc.db, paymentHash)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, lnclient.NewNotFoundError("payment " + paymentHash)
	}
	return toPayment(record), nil
}
