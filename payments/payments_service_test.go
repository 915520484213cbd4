package payments

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	decodepay "github.com/flokiorg/lngateway/lndecodepay"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/policy"
	"github.com/flokiorg/lngateway/registry"
	testdb "github.com/flokiorg/lngateway/tests/db"
	"github.com/flokiorg/lngateway/tests/mocks"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testHarness struct {
	svc    *paymentsService
	client *mocks.MockLNClient
	clock  *clockwork.FakeClock
	engine *policy.Engine
	db     *gorm.DB
	queue  *events.Queue

	mu       sync.Mutex
	invoices map[string]decodepay.Bolt11
}

func testLimits() policy.Limits {
	return policy.Limits{
		MinPaymentSat:         10,
		MaxPaymentSat:         100_000,
		DailyOutboundLimitSat: 1_000,
		MaxRoutingFeePercent:  decimal.RequireFromString("3"),
	}
}

func testSettings() Settings {
	return Settings{
		PaymentTimeout:       2 * time.Second,
		PollInterval:         20 * time.Millisecond,
		DefaultInvoiceExpiry: time.Hour,
	}
}

func newHarness(t *testing.T, limits policy.Limits, settings Settings) *testHarness {
	logger.Init("4")

	gormDB, err := testdb.NewDB(t)
	require.NoError(t, err)
	t.Cleanup(func() { testdb.CloseDB(gormDB) })

	clock := clockwork.NewFakeClockAt(testStart)
	engine := policy.NewEngine(limits, policy.NewLedger(clock, nil))

	client := mocks.NewMockLNClient(t)
	client.On("Capabilities").Return(lnclient.CapAll).Maybe()
	reg := registry.New(constants.BACKEND_LND)
	reg.Register(constants.BACKEND_LND, client)

	publisher := events.NewEventPublisher()
	queue := events.NewQueue(64,
		constants.EVENT_INVOICE_CREATED,
		constants.EVENT_INVOICE_EXPIRED,
		constants.EVENT_PAYMENT_SUCCEEDED,
		constants.EVENT_PAYMENT_FAILED,
		constants.EVENT_PAYMENT_TIMED_OUT,
	)
	publisher.RegisterSubscriber(queue)

	svc := NewPaymentsService(context.Background(), gormDB, reg, engine, publisher, clock, settings)
	publisher.RegisterSubscriber(svc)
	t.Cleanup(svc.Shutdown)

	h := &testHarness{
		svc:      svc,
		client:   client,
		clock:    clock,
		engine:   engine,
		db:       gormDB,
		queue:    queue,
		invoices: map[string]decodepay.Bolt11{},
	}
	svc.decode = h.decode
	return h
}

func hashOf(i int) string {
	return fmt.Sprintf("%064x", i)
}

// invoice registers a decodable payment request created at the current
// fake time.
func (h *testHarness) invoice(i int, amountSat uint64) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	bolt11 := fmt.Sprintf("lnbcrt%dn1test%d", amountSat, i)
	h.invoices[bolt11] = decodepay.Bolt11{
		Currency:    "bcrt",
		CreatedAt:   int(h.clock.Now().Unix()),
		Expiry:      3600,
		MSat:        int64(amountSat * 1000),
		PaymentHash: hashOf(i),
	}
	return bolt11
}

func (h *testHarness) decode(bolt11 string) (decodepay.Bolt11, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	decoded, ok := h.invoices[bolt11]
	if !ok {
		return decodepay.Bolt11{}, fmt.Errorf("zpay32 decoding failed: unknown invoice %q", bolt11)
	}
	return decoded, nil
}

func (h *testHarness) nextEvent(t *testing.T) *events.Event {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event, err := h.queue.NextEvent(ctx)
	require.NoError(t, err)
	return event
}

func (h *testHarness) storedPayment(t *testing.T, paymentHash string) db.Payment {
	var payment db.Payment
	result := h.db.Where(&db.Payment{PaymentHash: paymentHash}).Order("id desc").Limit(1).Find(&payment)
	require.NoError(t, result.Error)
	require.Equal(t, int64(1), result.RowsAffected)
	return payment
}

func succeeded(paymentHash string, feeSat uint64) *lnclient.Payment {
	now := time.Now()
	return &lnclient.Payment{
		PaymentHash:  paymentHash,
		Status:       lnclient.PaymentStateSucceeded,
		FeeSat:       feeSat,
		Preimage:     "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		AttemptCount: 1,
		CompletedAt:  &now,
	}
}

func TestRestoreReservations(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())

	for i, state := range []lnclient.PaymentState{lnclient.PaymentStateTimedOut, lnclient.PaymentStateInFlight, lnclient.PaymentStateFailed} {
		require.NoError(t, h.db.Create(&db.Payment{
			Backend:     constants.BACKEND_LND,
			PaymentHash: hashOf(i + 1),
			AmountSat:   200,
			State:       string(state),
		}).Error)
	}

	require.NoError(t, h.svc.RestoreReservations())
	assert.Equal(t, uint64(400), h.engine.Ledger().Snapshot().ReservedSat)

	// restoring twice does not double the hold
	require.NoError(t, h.svc.RestoreReservations())
	assert.Equal(t, uint64(400), h.engine.Ledger().Snapshot().ReservedSat)

	// reconciling the timed out payment as failed gives its share back
	h.client.EXPECT().GetPaymentStatus(mock.Anything, hashOf(1)).Return(&lnclient.PaymentStatus{
		PaymentHash:   hashOf(1),
		Direction:     constants.PAYMENT_DIRECTION_OUTGOING,
		Status:        lnclient.PaymentStateFailed,
		FailureReason: "no route found",
	}, nil).Once()

	status, err := h.svc.GetPaymentStatus(context.Background(), hashOf(1))
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateFailed, status.Status)
	assert.Equal(t, "no route found", status.FailureReason)
	assert.Equal(t, uint64(200), h.engine.Ledger().Snapshot().ReservedSat)
	assert.Zero(t, h.engine.Ledger().Snapshot().DailySpentSat)
}

func TestConsumeEventSettlesInvoice(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	invoice := h.createInvoice(t, 7, 500)

	settledAt := testStart.Add(time.Minute)
	publisher := events.NewEventPublisher()
	publisher.RegisterSubscriber(h.svc)
	publisher.PublishSync(&events.Event{
		Event: constants.EVENT_INVOICE_SETTLED,
		Properties: &lnclient.InvoiceUpdate{
			Backend:     constants.BACKEND_LND,
			PaymentHash: invoice.PaymentHash,
			Status:      lnclient.InvoiceStatusSettled,
			SettledAt:   &settledAt,
		},
	})

	var record db.Invoice
	require.NoError(t, h.db.Limit(1).Find(&record, &db.Invoice{PaymentHash: invoice.PaymentHash}).Error)
	assert.Equal(t, string(lnclient.InvoiceStatusSettled), record.State)
	require.NotNil(t, record.SettledAt)
	assert.True(t, settledAt.Equal(*record.SettledAt))

	// updates for invoices the gateway never created are ignored
	publisher.PublishSync(&events.Event{
		Event: constants.EVENT_INVOICE_CANCELLED,
		Properties: &lnclient.InvoiceUpdate{
			PaymentHash: hashOf(999),
			Status:      lnclient.InvoiceStatusCancelled,
		},
	})
	publisher.PublishSync(&events.Event{Event: constants.EVENT_INVOICE_SETTLED, Properties: "not an update"})
}
