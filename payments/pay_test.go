package payments

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/lnclient"
	decodepay "github.com/flokiorg/lngateway/lndecodepay"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/tests/mocks"
	"github.com/flokiorg/lngateway/utils"
)

const coffeeInvoice = "lnbc2500u1pvjluezpp5qqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqypqdq5xysxxatsyp3k7enxv4jsxqzpuaztrnwngzn3kdzw5hydlzf03qdgm2hdq27cqv3agm2awhz5se903vruatfhq77w3ls4evs3ch9zw97j25emudupq63nyw24cg27h2rspfj9srp"

func TestPayInvoiceSucceeded(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 1000)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(0)).Return(uint64(2), nil).Once()
	h.client.EXPECT().PayInvoice(mock.Anything, &lnclient.PayInvoiceRequest{
		PaymentRequest: bolt11,
		FeeLimitSat:    30,
		Timeout:        2 * time.Second,
	}).Return(succeeded(hashOf(1), 2), nil).Once()

	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{FeeLimitSat: utils.Ptr(uint64(50))})
	require.NoError(t, err)

	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	assert.Equal(t, hashOf(1), payment.PaymentHash)
	assert.Equal(t, uint64(1000), payment.AmountSat)
	assert.Equal(t, uint64(30), payment.FeeLimitSat)
	assert.Equal(t, uint64(2), payment.FeeSat)
	assert.NotEmpty(t, payment.Preimage)
	assert.Equal(t, 1, payment.AttemptCount)
	require.NotNil(t, payment.CompletedAt)

	state := h.engine.Ledger().Snapshot()
	assert.Equal(t, uint64(1000), state.DailySpentSat)
	assert.Zero(t, state.ReservedSat)

	event := h.nextEvent(t)
	assert.Equal(t, constants.EVENT_PAYMENT_SUCCEEDED, event.Event)
	assert.Equal(t, hashOf(1), event.Properties.(*lnclient.Payment).PaymentHash)
}

func TestPayInvoiceUserFeeLimitBelowPolicy(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 1000)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(0)).Return(uint64(1), nil).Once()
	h.client.EXPECT().PayInvoice(mock.Anything, mock.MatchedBy(func(req *lnclient.PayInvoiceRequest) bool {
		return req.FeeLimitSat == 5
	})).Return(succeeded(hashOf(1), 1), nil).Once()

	_, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{FeeLimitSat: utils.Ptr(uint64(5))})
	require.NoError(t, err)
}

func TestPayInvoiceOutsideBoundsMakesNoBackendCall(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	ctx := context.Background()

	_, err := h.svc.PayInvoice(ctx, h.invoice(1, 9), PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrPolicyViolation)
	assert.ErrorIs(t, err, lnclient.ErrBelowMinimum)
	assert.Equal(t, lnclient.KindBelowMinimum, lnclient.ReasonOf(err))

	_, err = h.svc.PayInvoice(ctx, h.invoice(2, 100_001), PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrAboveMaximum)

	h.client.AssertNotCalled(t, "PayInvoice", mock.Anything, mock.Anything)
	h.client.AssertNotCalled(t, "EstimateRouteFee", mock.Anything, mock.Anything, mock.Anything)

	var count int64
	require.NoError(t, h.db.Table("payments").Count(&count).Error)
	assert.Zero(t, count)
}

func TestPayInvoiceInvalidInvoice(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	h.svc.decode = decodepay.Decodepay

	_, err := h.svc.PayInvoice(context.Background(), "lnbc1garbage", PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrInvalidInvoiceFormat)

	// the fake clock is years past the expiry of this invoice
	_, err = h.svc.PayInvoice(context.Background(), coffeeInvoice, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrInvoiceExpired)

	h.client.AssertNotCalled(t, "PayInvoice", mock.Anything, mock.Anything)
}

func TestPayAmountlessInvoice(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 0)

	_, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrInvalidAmount)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(200)).Return(uint64(1), nil).Once()
	h.client.EXPECT().PayInvoice(mock.Anything, mock.MatchedBy(func(req *lnclient.PayInvoiceRequest) bool {
		return req.AmountSat == 200 && req.FeeLimitSat == 6
	})).Return(succeeded(hashOf(1), 1), nil).Once()

	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{AmountSat: utils.Ptr(uint64(200))})
	require.NoError(t, err)
	assert.Equal(t, uint64(200), payment.AmountSat)
}

func TestPayInvoiceAmountMismatch(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())

	_, err := h.svc.PayInvoice(context.Background(), h.invoice(1, 100), PayOptions{AmountSat: utils.Ptr(uint64(200))})
	assert.ErrorIs(t, err, lnclient.ErrInvalidAmount)
}

func TestPayInvoiceFeeTooHighBeforeDispatch(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 100)

	// 5 sat on 100 sat is above the 3% cap
	h.client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(0)).Return(uint64(5), nil).Once()

	_, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrFeeTooHigh)
	h.client.AssertNotCalled(t, "PayInvoice", mock.Anything, mock.Anything)

	state := h.engine.Ledger().Snapshot()
	assert.Zero(t, state.ReservedSat)
	assert.Zero(t, state.DailySpentSat)

	// the held budget and the record are both dropped, so it can be tried again
	var count int64
	require.NoError(t, h.db.Table("payments").Count(&count).Error)
	assert.Zero(t, count)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(0)).Return(uint64(1), nil).Once()
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(succeeded(hashOf(1), 1), nil).Once()
	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
}

func TestPayInvoiceFeeAboveUserLimit(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 1000)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(0)).Return(uint64(4), nil).Once()

	_, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{FeeLimitSat: utils.Ptr(uint64(3))})
	assert.ErrorIs(t, err, lnclient.ErrFeeTooHigh)
	h.client.AssertNotCalled(t, "PayInvoice", mock.Anything, mock.Anything)
}

func TestPayInvoiceFeeEstimateFailureIsIgnored(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 1000)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(0)).Return(uint64(0), lnclient.NewError(lnclient.KindNotFound, "unable to find a path")).Once()
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(succeeded(hashOf(1), 3), nil).Once()

	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
}

func TestPayInvoiceWithoutFeeEstimateCapability(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	client := mocks.NewMockLNClient(t)
	client.On("Capabilities").Return(lnclient.CapInvoices | lnclient.CapPayments | lnclient.CapPaymentStatus).Maybe()
	reg := registry.New(constants.BACKEND_LNBITS)
	reg.Register(constants.BACKEND_LNBITS, client)
	h.svc.registry = reg

	bolt11 := h.invoice(1, 1000)
	client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(succeeded(hashOf(1), 3), nil).Once()

	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	client.AssertNotCalled(t, "EstimateRouteFee", mock.Anything, mock.Anything, mock.Anything)

	stored := h.storedPayment(t, hashOf(1))
	assert.Equal(t, constants.BACKEND_LNBITS, stored.Backend)
}

func TestPayInvoiceBackendUnavailable(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	reg := registry.New(constants.BACKEND_CLN)
	reg.RegisterFailure(constants.BACKEND_CLN, errors.New("socket not found"))
	h.svc.registry = reg

	_, err := h.svc.PayInvoice(context.Background(), h.invoice(1, 100), PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrBackendUnavailable)
	assert.Zero(t, h.engine.Ledger().Snapshot().ReservedSat)
}

func TestPayInvoiceDailyLimit(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	ctx := context.Background()

	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).RunAndReturn(func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
		decoded, err := h.decode(req.PaymentRequest)
		require.NoError(t, err)
		return succeeded(decoded.PaymentHash, 0), nil
	})

	for i := 1; i <= 2; i++ {
		payment, err := h.svc.PayInvoice(ctx, h.invoice(i, 400), PayOptions{})
		require.NoError(t, err)
		require.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	}

	_, err := h.svc.PayInvoice(ctx, h.invoice(3, 400), PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrPolicyViolation)
	assert.ErrorIs(t, err, lnclient.ErrDailyLimitExceeded)
	h.client.AssertNumberOfCalls(t, "PayInvoice", 2)

	// a smaller payment still fits
	_, err = h.svc.PayInvoice(ctx, h.invoice(4, 200), PayOptions{})
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	payment, err := h.svc.PayInvoice(ctx, h.invoice(5, 400), PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	assert.Equal(t, uint64(400), h.engine.Ledger().Snapshot().DailySpentSat)
}

func TestConcurrentPaymentsRespectDailyLimit(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())

	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).RunAndReturn(func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
		time.Sleep(10 * time.Millisecond)
		decoded, _ := h.decode(req.PaymentRequest)
		return succeeded(decoded.PaymentHash, 0), nil
	})

	invoices := make([]string, 6)
	for i := range invoices {
		invoices[i] = h.invoice(i+1, 300)
	}

	var wg sync.WaitGroup
	var paid, rejected atomic.Int32
	for _, bolt11 := range invoices {
		wg.Add(1)
		go func(bolt11 string) {
			defer wg.Done()
			_, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
			switch {
			case err == nil:
				paid.Add(1)
			case errors.Is(err, lnclient.ErrDailyLimitExceeded):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(bolt11)
	}
	wg.Wait()

	assert.Equal(t, int32(3), paid.Load())
	assert.Equal(t, int32(3), rejected.Load())
	assert.Equal(t, uint64(900), h.engine.Ledger().Snapshot().DailySpentSat)
	// only payments that held budget estimated the route fee
	h.client.AssertNumberOfCalls(t, "EstimateRouteFee", 3)
}

func TestPayInvoiceFailedReleasesBudget(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 500)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(&lnclient.Payment{
		PaymentHash:   hashOf(1),
		Status:        lnclient.PaymentStateFailed,
		FailureReason: "no route found",
		AttemptCount:  3,
	}, nil).Once()

	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateFailed, payment.Status)
	assert.Equal(t, "no route found", payment.FailureReason)
	assert.Equal(t, 3, payment.AttemptCount)
	assert.Empty(t, payment.Preimage)

	state := h.engine.Ledger().Snapshot()
	assert.Zero(t, state.DailySpentSat)
	assert.Zero(t, state.ReservedSat)
	assert.Equal(t, constants.EVENT_PAYMENT_FAILED, h.nextEvent(t).Event)

	// a failed payment may be tried again
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(succeeded(hashOf(1), 0), nil).Once()
	payment, err = h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
}

func TestPayInvoiceRefusedConnectionFails(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 500)

	refused := lnclient.FromTransport(&net.OpError{Op: "dial", Net: "unix", Err: syscall.ECONNREFUSED})
	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(nil, refused).Once()

	_, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrBackendConnectionError)
	h.client.AssertNumberOfCalls(t, "PayInvoice", 1)
	h.client.AssertNotCalled(t, "GetPaymentStatus", mock.Anything, mock.Anything)

	stored := h.storedPayment(t, hashOf(1))
	assert.Equal(t, string(lnclient.PaymentStateFailed), stored.State)
	assert.Contains(t, stored.FailureReason, "backend unreachable")
	assert.Zero(t, h.engine.Ledger().Snapshot().ReservedSat)

	// the backend never saw it, so paying again is safe
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(succeeded(hashOf(1), 0), nil).Once()
	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
}

func TestPayInvoiceConnectionLostAfterSend(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 500)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).
		Return(nil, lnclient.NewError(lnclient.KindBackendConnectionError, "connection reset after send")).Once()

	var polls atomic.Int32
	h.client.EXPECT().GetPaymentStatus(mock.Anything, hashOf(1)).RunAndReturn(func(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
		if polls.Add(1) < 2 {
			return nil, lnclient.NewError(lnclient.KindBackendConnectionError, "still reconnecting")
		}
		return &lnclient.PaymentStatus{PaymentHash: paymentHash, Status: lnclient.PaymentStateSucceeded, FeeSat: 1, Preimage: "ab", AttemptCount: 1}, nil
	})

	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)

	state := h.engine.Ledger().Snapshot()
	assert.Equal(t, uint64(500), state.DailySpentSat)
	assert.Zero(t, state.ReservedSat)

	_, err = h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)
	h.client.AssertNumberOfCalls(t, "PayInvoice", 1)
}

func TestPayInvoiceConnectionLostAfterSendUnresolved(t *testing.T) {
	settings := testSettings()
	settings.PaymentTimeout = 300 * time.Millisecond
	h := newHarness(t, testLimits(), settings)
	bolt11 := h.invoice(1, 500)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).
		Return(nil, lnclient.NewError(lnclient.KindBackendConnectionError, "connection reset after send")).Once()
	h.client.EXPECT().GetPaymentStatus(mock.Anything, hashOf(1)).
		Return(nil, lnclient.NewError(lnclient.KindBackendConnectionError, "connection refused"))

	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrTimedOut)
	require.NotNil(t, payment)
	assert.Equal(t, lnclient.PaymentStateTimedOut, payment.Status)

	// never released or re-sent while the outcome is unknown
	assert.Equal(t, uint64(500), h.engine.Ledger().Snapshot().ReservedSat)
	_, err = h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)
	h.client.AssertNumberOfCalls(t, "PayInvoice", 1)
}

func TestPayInvoiceDispatchBoundedByPaymentTimeout(t *testing.T) {
	tests := []struct {
		name     string
		dispatch func(stuck <-chan struct{}) func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error)
	}{
		{
			name: "adapter honours the context",
			dispatch: func(stuck <-chan struct{}) func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
				return func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
					<-ctx.Done()
					return nil, lnclient.FromTransport(ctx.Err())
				}
			},
		},
		{
			name: "adapter ignores the context",
			dispatch: func(stuck <-chan struct{}) func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
				return func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
					<-stuck
					return nil, lnclient.NewError(lnclient.KindBackendConnectionError, "gave up")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			settings.PaymentTimeout = 300 * time.Millisecond
			h := newHarness(t, testLimits(), settings)
			bolt11 := h.invoice(1, 500)

			stuck := make(chan struct{})
			t.Cleanup(func() { close(stuck) })

			h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
			h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).RunAndReturn(tt.dispatch(stuck)).Once()

			started := time.Now()
			payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
			elapsed := time.Since(started)

			assert.ErrorIs(t, err, lnclient.ErrTimedOut)
			require.NotNil(t, payment)
			assert.Equal(t, lnclient.PaymentStateTimedOut, payment.Status)
			assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
			assert.Less(t, elapsed, 2*time.Second)
			assert.Equal(t, constants.EVENT_PAYMENT_TIMED_OUT, h.nextEvent(t).Event)

			assert.Equal(t, uint64(500), h.engine.Ledger().Snapshot().ReservedSat)
			_, err = h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
			assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)
			h.client.AssertNumberOfCalls(t, "PayInvoice", 1)
		})
	}
}

func TestPayInvoiceLosingBudgetRaceSkipsFeeEstimate(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())

	client := mocks.NewMockLNClient(t)
	var competing atomic.Bool
	client.EXPECT().Capabilities().RunAndReturn(func() lnclient.Capability {
		// another payment takes the budget right after this one is authorized
		if competing.CompareAndSwap(true, false) {
			_, err := h.engine.Reserve(700)
			require.NoError(t, err)
		}
		return lnclient.CapAll
	}).Maybe()
	reg := registry.New(constants.BACKEND_LND)
	reg.Register(constants.BACKEND_LND, client)
	h.svc.registry = reg
	competing.Store(true)

	_, err := h.svc.PayInvoice(context.Background(), h.invoice(1, 400), PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrDailyLimitExceeded)

	client.AssertNotCalled(t, "EstimateRouteFee", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "PayInvoice", mock.Anything, mock.Anything)
	var count int64
	require.NoError(t, h.db.Table("payments").Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, uint64(700), h.engine.Ledger().Snapshot().ReservedSat)
}

func TestPayInvoiceDuplicate(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 500)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(succeeded(hashOf(1), 0), nil).Once()

	_, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	require.NoError(t, err)

	_, err = h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)
	h.client.AssertNumberOfCalls(t, "PayInvoice", 1)
	assert.Equal(t, uint64(500), h.engine.Ledger().Snapshot().DailySpentSat)
}

func TestPayInvoiceDuplicateWhileInFlight(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 500)

	release := make(chan struct{})
	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).RunAndReturn(func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
		<-release
		return succeeded(hashOf(1), 0), nil
	}).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.svc.PayInvoice(ctx, bolt11, PayOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)

	close(release)
	payment, err := h.svc.AwaitPayment(context.Background(), hashOf(1))
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
}

func TestCallerCancellationDetaches(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())
	bolt11 := h.invoice(1, 500)

	release := make(chan struct{})
	var dispatchCancelled atomic.Bool
	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).RunAndReturn(func(ctx context.Context, req *lnclient.PayInvoiceRequest) (*lnclient.Payment, error) {
		<-release
		dispatchCancelled.Store(ctx.Err() != nil)
		return &lnclient.Payment{PaymentHash: hashOf(1), Status: lnclient.PaymentStateInFlight}, nil
	}).Once()

	var polls atomic.Int32
	h.client.EXPECT().GetPaymentStatus(mock.Anything, hashOf(1)).RunAndReturn(func(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
		if polls.Add(1) < 3 {
			return &lnclient.PaymentStatus{PaymentHash: paymentHash, Status: lnclient.PaymentStateInFlight, AttemptCount: 2}, nil
		}
		return &lnclient.PaymentStatus{PaymentHash: paymentHash, Status: lnclient.PaymentStateSucceeded, FeeSat: 1, Preimage: "ab", AttemptCount: 2}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	snapshot, err := h.svc.PayInvoice(ctx, bolt11, PayOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, snapshot)
	assert.Equal(t, lnclient.PaymentStatePending, snapshot.Status)

	close(release)
	payment, err := h.svc.AwaitPayment(context.Background(), hashOf(1))
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	assert.Equal(t, 2, payment.AttemptCount)
	assert.False(t, dispatchCancelled.Load())
	assert.Equal(t, uint64(500), h.engine.Ledger().Snapshot().DailySpentSat)
}

func TestPayInvoiceTimesOut(t *testing.T) {
	settings := testSettings()
	settings.PaymentTimeout = time.Second
	h := newHarness(t, testLimits(), settings)
	bolt11 := h.invoice(1, 500)

	h.client.EXPECT().EstimateRouteFee(mock.Anything, mock.Anything, mock.Anything).Return(uint64(0), nil)
	h.client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(&lnclient.Payment{
		PaymentHash: hashOf(1),
		Status:      lnclient.PaymentStateInFlight,
	}, nil).Once()

	var settled atomic.Bool
	h.client.EXPECT().GetPaymentStatus(mock.Anything, hashOf(1)).RunAndReturn(func(ctx context.Context, paymentHash string) (*lnclient.PaymentStatus, error) {
		if settled.Load() {
			return &lnclient.PaymentStatus{PaymentHash: paymentHash, Status: lnclient.PaymentStateSucceeded, FeeSat: 2, Preimage: "ab"}, nil
		}
		return &lnclient.PaymentStatus{PaymentHash: paymentHash, Status: lnclient.PaymentStateInFlight}, nil
	})

	started := time.Now()
	payment, err := h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrTimedOut)
	assert.Equal(t, lnclient.CategoryAmbiguous, lnclient.KindOf(err).Category())
	require.NotNil(t, payment)
	assert.Equal(t, lnclient.PaymentStateTimedOut, payment.Status)
	assert.GreaterOrEqual(t, time.Since(started), time.Second)
	assert.Equal(t, constants.EVENT_PAYMENT_TIMED_OUT, h.nextEvent(t).Event)

	// the outcome is unknown, so the budget stays held and nothing is re-sent
	h.client.AssertNumberOfCalls(t, "PayInvoice", 1)
	assert.Equal(t, uint64(500), h.engine.Ledger().Snapshot().ReservedSat)

	_, err = h.svc.PayInvoice(context.Background(), bolt11, PayOptions{})
	assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)

	status, err := h.svc.GetPaymentStatus(context.Background(), hashOf(1))
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateTimedOut, status.Status)

	// the backend finally settles; reconciliation records the spend
	settled.Store(true)
	status, err = h.svc.GetPaymentStatus(context.Background(), hashOf(1))
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, status.Status)
	assert.Equal(t, uint64(2), status.FeeSat)

	state := h.engine.Ledger().Snapshot()
	assert.Equal(t, uint64(500), state.DailySpentSat)
	assert.Zero(t, state.ReservedSat)
	assert.Equal(t, constants.EVENT_PAYMENT_SUCCEEDED, h.nextEvent(t).Event)

	// terminal records are served locally
	status, err = h.svc.GetPaymentStatus(context.Background(), hashOf(1))
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, status.Status)
}

func TestGetPaymentStatusUnknownHash(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())

	h.client.EXPECT().GetPaymentStatus(mock.Anything, hashOf(9)).Return(nil, lnclient.NewNotFoundError("payment")).Once()

	_, err := h.svc.GetPaymentStatus(context.Background(), hashOf(9))
	assert.ErrorIs(t, err, lnclient.ErrNotFound)

	_, err = h.svc.GetPaymentStatus(context.Background(), "xyz")
	assert.ErrorIs(t, err, lnclient.ErrInvalidPaymentHash)
}

func TestAwaitPaymentUnknown(t *testing.T) {
	h := newHarness(t, testLimits(), testSettings())

	_, err := h.svc.AwaitPayment(context.Background(), hashOf(9))
	assert.ErrorIs(t, err, lnclient.ErrNotFound)
}
