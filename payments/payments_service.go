package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db/queries"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	decodepay "github.com/flokiorg/lngateway/lndecodepay"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/policy"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/utils"
)

type PaymentsService interface {
	events.EventSubscriber
	CreateInvoice(ctx context.Context, amountSat uint64, memo string, expirySeconds int64) (*lnclient.Invoice, error)
	LookupInvoice(ctx context.Context, paymentHash string) (*lnclient.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, paymentHash string, status lnclient.InvoiceStatus, settledAt *time.Time) (*lnclient.Invoice, error)
	PayInvoice(ctx context.Context, paymentRequest string, opts PayOptions) (*lnclient.Payment, error)
	AwaitPayment(ctx context.Context, paymentHash string) (*lnclient.Payment, error)
	GetPaymentStatus(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error)
	RestoreReservations() error
	Shutdown()
}

// tracker is the background unit of work driving one dispatched payment to
// a final stage. It outlives the caller that started it.
type tracker struct {
	done    chan struct{}
	payment *lnclient.Payment
	err     error
}

type paymentsService struct {
	ctx            context.Context
	cancel         context.CancelFunc
	db             *gorm.DB
	registry       *registry.Registry
	policy         *policy.Engine
	eventPublisher events.EventPublisher
	clock          clockwork.Clock
	settings       Settings
	decode         func(bolt11 string) (decodepay.Bolt11, error)

	// serializes the duplicate check, the budget reservation and the record
	// insert of concurrent payments; never held across a backend call
	dispatchLock sync.Mutex

	trackersMtx  sync.Mutex
	trackers     map[string]*tracker
	reservations map[string]*policy.Reservation
	wg           sync.WaitGroup
}

var errStillPending = errors.New("payment still pending")

func NewPaymentsService(ctx context.Context, gormDB *gorm.DB, reg *registry.Registry, policyEngine *policy.Engine, eventPublisher events.EventPublisher, clock clockwork.Clock, settings Settings) *paymentsService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = 500 * time.Millisecond
	}
	if settings.DefaultInvoiceExpiry <= 0 {
		settings.DefaultInvoiceExpiry = constants.DEFAULT_INVOICE_EXPIRY
	}

	svcCtx, cancel := context.WithCancel(ctx)
	return &paymentsService{
		ctx:            svcCtx,
		cancel:         cancel,
		db:             gormDB,
		registry:       reg,
		policy:         policyEngine,
		eventPublisher: eventPublisher,
		clock:          clock,
		settings:       settings,
		decode:         decodepay.Decodepay,
		trackers:       map[string]*tracker{},
		reservations:   map[string]*policy.Reservation{},
	}
}

// RestoreReservations holds budget for payments whose outcome was still
// unknown when the process stopped. Nothing is re-dispatched; the records
// are reconciled through GetPaymentStatus.
func (svc *paymentsService) RestoreReservations() error {
	unresolved, err := queries.GetUnresolvedPayments(svc.db)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to load unresolved payments")
		return err
	}

	svc.trackersMtx.Lock()
	defer svc.trackersMtx.Unlock()
	for _, payment := range unresolved {
		if _, ok := svc.reservations[payment.PaymentHash]; ok {
			continue
		}
		svc.reservations[payment.PaymentHash] = svc.policy.Hold(payment.AmountSat)
	}

	if len(unresolved) > 0 {
		pendingSat, err := queries.GetUnresolvedOutboundSat(svc.db)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to sum unresolved payments")
		}
		logger.Logger.Warn().
			Int("count", len(unresolved)).
			Uint64("amount_sat", pendingSat).
			Msg("Restored budget reservations for unresolved payments")
	}
	return nil
}

// Shutdown stops every tracker and waits for them to record their state.
// Payments still in flight are left TIMED_OUT for later reconciliation.
func (svc *paymentsService) Shutdown() {
	svc.cancel()
	svc.wg.Wait()
}

func (svc *paymentsService) ConsumeEvent(ctx context.Context, event *events.Event, globalProperties map[string]interface{}) {
	switch event.Event {
	case constants.EVENT_INVOICE_SETTLED, constants.EVENT_INVOICE_CANCELLED:
		update, ok := event.Properties.(*lnclient.InvoiceUpdate)
		if !ok {
			logger.Logger.Error().Interface("event", event).Msg("Failed to cast event")
			return
		}

		_, err := svc.UpdateInvoiceStatus(ctx, update.PaymentHash, update.Status, update.SettledAt)
		if errors.Is(err, lnclient.ErrNotFound) {
			logger.Logger.Debug().Str("payment_hash", update.PaymentHash).Msg("Ignoring update for an invoice not created by the gateway")
			return
		}
		if err != nil {
			logger.Logger.Error().Err(err).
				Str("payment_hash", update.PaymentHash).
				Str("status", string(update.Status)).
				Msg("Failed to apply invoice update")
		}
	}
}

func (svc *paymentsService) takeReservation(paymentHash string) *policy.Reservation {
	svc.trackersMtx.Lock()
	defer svc.trackersMtx.Unlock()
	reservation := svc.reservations[paymentHash]
	delete(svc.reservations, paymentHash)
	return reservation
}

func (svc *paymentsService) liveTracker(paymentHash string) *tracker {
	svc.trackersMtx.Lock()
	defer svc.trackersMtx.Unlock()
	return svc.trackers[paymentHash]
}

func validatePaymentHash(paymentHash string) error {
	if err := utils.ValidateHex32(paymentHash); err != nil {
		return lnclient.WrapError(lnclient.KindInvalidPaymentHash, err, "invalid payment hash")
	}
	return nil
}

// policyError turns a rule rejection into a PolicyViolation naming the rule.
func policyError(err error) error {
	var lnErr *lnclient.Error
	if errors.As(err, &lnErr) {
		return lnclient.NewPolicyViolation(lnErr)
	}
	return err
}
