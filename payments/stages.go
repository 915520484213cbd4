package payments

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
)

// Stage is the orchestrator's view of one pay operation. It is finer than
// the persisted payment state.
type Stage string

const (
	StageCreated     Stage = "CREATED"
	StageAuthorizing Stage = "AUTHORIZING"
	StageDispatched  Stage = "DISPATCHED"
	StagePolling     Stage = "POLLING"
	StageSucceeded   Stage = "SUCCEEDED"
	StageFailed      Stage = "FAILED"
	StageTimedOut    Stage = "TIMED_OUT"
)

var stageTransitions = map[Stage][]Stage{
	StageCreated:     {StageAuthorizing, StageFailed},
	StageAuthorizing: {StageDispatched, StageFailed},
	StageDispatched:  {StagePolling, StageSucceeded, StageFailed},
	StagePolling:     {StageSucceeded, StageFailed, StageTimedOut},
}

func (s Stage) IsFinal() bool {
	return s == StageSucceeded || s == StageFailed || s == StageTimedOut
}

func canTransition(from, to Stage) bool {
	return slices.Contains(stageTransitions[from], to)
}

// paymentRun tracks the stage of a single pay operation.
type paymentRun struct {
	stage  Stage
	logger zerolog.Logger
}

func newPaymentRun(paymentRequest string) *paymentRun {
	return &paymentRun{
		stage:  StageCreated,
		logger: logger.Logger.With().Str("bolt11", paymentRequest).Logger(),
	}
}

func (r *paymentRun) withHash(paymentHash string) {
	r.logger = r.logger.With().Str("payment_hash", paymentHash).Logger()
}

func (r *paymentRun) advance(to Stage) error {
	if !canTransition(r.stage, to) {
		r.logger.Error().Str("from", string(r.stage)).Str("to", string(to)).Msg("Invalid payment stage transition")
		return lnclient.NewError(lnclient.KindInvalidTransition, "payment cannot move from %s to %s", r.stage, to)
	}
	r.logger.Debug().Str("from", string(r.stage)).Str("stage", string(to)).Msg("Payment stage changed")
	r.stage = to
	return nil
}

// fail moves the run to Failed from any non-final stage.
func (r *paymentRun) fail() {
	if r.stage.IsFinal() {
		return
	}
	if canTransition(r.stage, StageFailed) {
		r.stage = StageFailed
		r.logger.Debug().Str("stage", string(StageFailed)).Msg("Payment stage changed")
	}
}
