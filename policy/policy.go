package policy

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/flokiorg/lngateway/lnclient"
)

var hundred = decimal.NewFromInt(100)

type Limits struct {
	MinPaymentSat uint64
	// zero disables the cap
	MaxPaymentSat uint64
	// zero disables the cap
	DailyOutboundLimitSat uint64
	MaxRoutingFeePercent  decimal.Decimal
}

type Engine struct {
	limits Limits
	ledger *Ledger
}

func NewEngine(limits Limits, ledger *Ledger) *Engine {
	return &Engine{
		limits: limits,
		ledger: ledger,
	}
}

func (e *Engine) Limits() Limits {
	return e.limits
}

func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// ValidateInvoiceAmount checks the per-payment bounds only. It is used for
// incoming invoices, which do not touch the outbound budget.
func (e *Engine) ValidateInvoiceAmount(amountSat uint64) error {
	return e.checkBounds(amountSat)
}

// Authorize checks amount against the bounds and the remaining daily budget
// (spent plus outstanding reservations). It never changes the spend.
func (e *Engine) Authorize(amountSat uint64) error {
	if err := e.checkBounds(amountSat); err != nil {
		return err
	}
	return e.ledger.check(func(state LedgerState) error {
		return e.checkDaily(state, amountSat)
	})
}

// Reserve authorizes amount and holds it against the daily budget until the
// reservation is committed or released. The check and the hold are atomic,
// so concurrent payments cannot overshoot the cap together.
func (e *Engine) Reserve(amountSat uint64) (*Reservation, error) {
	if err := e.checkBounds(amountSat); err != nil {
		return nil, err
	}
	epoch, err := e.ledger.reserve(amountSat, func(state LedgerState) error {
		return e.checkDaily(state, amountSat)
	})
	if err != nil {
		return nil, err
	}
	return &Reservation{ledger: e.ledger, amountSat: amountSat, epoch: epoch}, nil
}

// Hold reserves amount without any check. Used to rebuild reservations for
// payments still unresolved after a restart.
func (e *Engine) Hold(amountSat uint64) *Reservation {
	epoch := e.ledger.hold(amountSat)
	return &Reservation{ledger: e.ledger, amountSat: amountSat, epoch: epoch}
}

// Record adds a successfully sent amount to the daily spend.
func (e *Engine) Record(amountSat uint64) {
	e.ledger.record(amountSat)
}

// MaxFeeSat is the largest routing fee allowed for amount, rounded down.
func (e *Engine) MaxFeeSat(amountSat uint64) uint64 {
	fee := decimal.NewFromInt(int64(amountSat)).
		Mul(e.limits.MaxRoutingFeePercent).
		Div(hundred).
		Floor()
	if fee.IsNegative() {
		return 0
	}
	return uint64(fee.IntPart())
}

// AuthorizeFee rejects fees above MaxRoutingFeePercent of amount.
func (e *Engine) AuthorizeFee(amountSat uint64, feeSat uint64) error {
	if feeSat == 0 {
		return nil
	}
	// fee/amount > pct/100  <=>  fee*100 > amount*pct
	lhs := decimal.NewFromInt(int64(feeSat)).Mul(hundred)
	rhs := decimal.NewFromInt(int64(amountSat)).Mul(e.limits.MaxRoutingFeePercent)
	if lhs.GreaterThan(rhs) {
		return lnclient.NewError(lnclient.KindFeeTooHigh,
			"routing fee %d sat exceeds %s%% of %d sat", feeSat, e.limits.MaxRoutingFeePercent.String(), amountSat)
	}
	return nil
}

// RemainingDailySat returns the budget left in the current window, or nil
// when there is no daily cap.
func (e *Engine) RemainingDailySat() *uint64 {
	if e.limits.DailyOutboundLimitSat == 0 {
		return nil
	}
	state := e.ledger.Snapshot()
	used := state.DailySpentSat + state.ReservedSat
	remaining := uint64(0)
	if used < e.limits.DailyOutboundLimitSat {
		remaining = e.limits.DailyOutboundLimitSat - used
	}
	return &remaining
}

func (e *Engine) checkBounds(amountSat uint64) error {
	if amountSat == 0 {
		return lnclient.NewError(lnclient.KindInvalidAmount, "amount must be positive")
	}
	if amountSat < e.limits.MinPaymentSat {
		return lnclient.NewError(lnclient.KindBelowMinimum,
			"amount %d sat is below the minimum of %d sat", amountSat, e.limits.MinPaymentSat)
	}
	if e.limits.MaxPaymentSat > 0 && amountSat > e.limits.MaxPaymentSat {
		return lnclient.NewError(lnclient.KindAboveMaximum,
			"amount %d sat is above the maximum of %d sat", amountSat, e.limits.MaxPaymentSat)
	}
	return nil
}

func (e *Engine) checkDaily(state LedgerState, amountSat uint64) error {
	if e.limits.DailyOutboundLimitSat == 0 {
		return nil
	}
	if state.DailySpentSat+state.ReservedSat+amountSat > e.limits.DailyOutboundLimitSat {
		return lnclient.NewError(lnclient.KindDailyLimitExceeded,
			"payment of %d sat would exceed the daily limit of %d sat (%d sat spent, %d sat in flight)",
			amountSat, e.limits.DailyOutboundLimitSat, state.DailySpentSat, state.ReservedSat)
	}
	return nil
}

// Reservation is a hold on the daily budget for one payment. Exactly one of
// Commit or Release takes effect; later calls are no-ops.
type Reservation struct {
	ledger    *Ledger
	amountSat uint64
	epoch     uint64
	once      sync.Once
}

func (r *Reservation) AmountSat() uint64 {
	return r.amountSat
}

func (r *Reservation) Commit() {
	r.once.Do(func() {
		r.ledger.commit(r.amountSat, r.epoch)
	})
}

func (r *Reservation) Release() {
	r.once.Do(func() {
		r.ledger.release(r.amountSat, r.epoch)
	})
}
