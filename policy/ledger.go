package policy

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/logger"
)

type LedgerState struct {
	DailySpentSat uint64
	ReservedSat   uint64
	WindowStart   time.Time
}

// LedgerStore persists the spend window across restarts. Reservations are
// not persisted; they are rebuilt from unresolved payment records.
type LedgerStore interface {
	Load() (*LedgerState, error)
	Save(state LedgerState) error
}

// Ledger tracks outbound spend over a rolling 24h window. All mutations
// happen under one mutex; the window is reset lazily on access.
type Ledger struct {
	mu    sync.Mutex
	clock clockwork.Clock
	store LedgerStore

	dailySpentSat uint64
	reservedSat   uint64
	windowStart   time.Time
	// bumped on every window reset so that reservations taken in an old
	// window do not release budget of the new one
	epoch uint64
}

func NewLedger(clock clockwork.Clock, store LedgerStore) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := &Ledger{
		clock:       clock,
		store:       store,
		windowStart: clock.Now(),
	}

	if store != nil {
		state, err := store.Load()
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to load policy ledger, starting a fresh window")
		} else if state != nil {
			l.dailySpentSat = state.DailySpentSat
			l.windowStart = state.WindowStart
			logger.Logger.Info().
				Uint64("daily_spent_sat", state.DailySpentSat).
				Time("window_start", state.WindowStart).
				Msg("Loaded policy ledger")
		}
	}

	return l
}

func (l *Ledger) Snapshot() LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfElapsedLocked()
	return l.stateLocked()
}

// check runs fn against the current state without mutating anything but the
// window reset.
func (l *Ledger) check(fn func(state LedgerState) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfElapsedLocked()
	return fn(l.stateLocked())
}

// reserve holds amount if fn accepts the current state.
func (l *Ledger) reserve(amountSat uint64, fn func(state LedgerState) error) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfElapsedLocked()
	if err := fn(l.stateLocked()); err != nil {
		return 0, err
	}
	l.reservedSat += amountSat
	return l.epoch, nil
}

// hold reserves amount unconditionally; used to restore reservations of
// payments whose outcome is still unknown after a restart.
func (l *Ledger) hold(amountSat uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfElapsedLocked()
	l.reservedSat += amountSat
	return l.epoch
}

func (l *Ledger) release(amountSat uint64, epoch uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfElapsedLocked()
	l.releaseLocked(amountSat, epoch)
}

func (l *Ledger) commit(amountSat uint64, epoch uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfElapsedLocked()
	l.releaseLocked(amountSat, epoch)
	l.dailySpentSat += amountSat
	l.persistLocked()
}

func (l *Ledger) record(amountSat uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfElapsedLocked()
	l.dailySpentSat += amountSat
	l.persistLocked()
}

func (l *Ledger) releaseLocked(amountSat uint64, epoch uint64) {
	if epoch != l.epoch {
		return
	}
	if amountSat > l.reservedSat {
		l.reservedSat = 0
		return
	}
	l.reservedSat -= amountSat
}

func (l *Ledger) resetIfElapsedLocked() bool {
	now := l.clock.Now()
	if now.Sub(l.windowStart) < constants.POLICY_WINDOW {
		return false
	}
	logger.Logger.Info().
		Uint64("daily_spent_sat", l.dailySpentSat).
		Time("window_start", l.windowStart).
		Msg("Policy window elapsed, resetting daily spend")
	l.dailySpentSat = 0
	l.reservedSat = 0
	l.windowStart = now
	l.epoch++
	l.persistLocked()
	return true
}

func (l *Ledger) stateLocked() LedgerState {
	return LedgerState{
		DailySpentSat: l.dailySpentSat,
		ReservedSat:   l.reservedSat,
		WindowStart:   l.windowStart,
	}
}

// the store is a local database; failures are logged and the in-memory
// ledger stays authoritative
func (l *Ledger) persistLocked() {
	if l.store == nil {
		return
	}
	if err := l.store.Save(l.stateLocked()); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to persist policy ledger")
	}
}
