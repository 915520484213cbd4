package lnbits

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
)

const coffeeInvoice = "lnbc2500u1pvjluezpp5qqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqypqdq5xysxxatsyp3k7enxv4jsxqzpuaztrnwngzn3kdzw5hydlzf03qdgm2hdq27cqv3agm2awhz5se903vruatfhq77w3ls4evs3ch9zw97j25emudupq63nyw24cg27h2rspfj9srp"
const coffeeHash = "0001020304050607080900010203040506070809000102030405060708090102"
const testPreimage = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

const adminKey = "admin-key"
const invoiceKey = "invoice-key"

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func newTestService(t *testing.T, mux *http.ServeMux) *LNbitsService {
	logger.Init("4")
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	svc, err := NewLNbitsService(context.Background(), config.BackendConfig{
		Name:              constants.BACKEND_LNBITS,
		Endpoint:          server.URL + "/",
		APIKey:            adminKey,
		InvoiceKey:        invoiceKey,
		WebhookURL:        "https://gateway.example/api/webhooks/lnbits",
		Network:           "mainnet",
		ConnectionTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	return svc.(*LNbitsService)
}

func TestNewLNbitsServiceRequiresKey(t *testing.T) {
	_, err := NewLNbitsService(context.Background(), config.BackendConfig{Endpoint: "http://localhost:5000"})
	assert.Error(t, err)
}

func TestCreateInvoice(t *testing.T) {
	var received createInvoiceRequest
	var key string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get(API_KEY_HEADER)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(t, w, http.StatusCreated, map[string]interface{}{
			"payment_hash":    coffeeHash,
			"payment_request": coffeeInvoice,
			"checking_id":     coffeeHash,
		})
	})
	svc := newTestService(t, mux)

	invoice, err := svc.CreateInvoice(context.Background(), &lnclient.CreateInvoiceRequest{AmountSat: 1000, Memo: "coffee", ExpirySeconds: 600})
	require.NoError(t, err)

	assert.Equal(t, invoiceKey, key)
	assert.False(t, received.Out)
	assert.Equal(t, uint64(1000), received.Amount)
	assert.Equal(t, "coffee", received.Memo)
	assert.Equal(t, int64(600), received.Expiry)
	assert.Equal(t, "https://gateway.example/api/webhooks/lnbits", received.Webhook)

	assert.Equal(t, coffeeHash, invoice.PaymentHash)
	assert.Equal(t, coffeeInvoice, invoice.PaymentRequest)
	assert.Equal(t, lnclient.InvoiceStatusPending, invoice.Status)
	assert.Equal(t, int64(1496314658), invoice.CreatedAt.Unix())
	assert.Equal(t, int64(1496314658+60), invoice.ExpiresAt.Unix())
}

func TestCreateInvoiceNewResponseField(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusCreated, map[string]interface{}{
			"payment_hash": coffeeHash,
			"bolt11":       coffeeInvoice,
		})
	})
	svc := newTestService(t, mux)

	invoice, err := svc.CreateInvoice(context.Background(), &lnclient.CreateInvoiceRequest{AmountSat: 1})
	require.NoError(t, err)
	assert.Equal(t, coffeeInvoice, invoice.PaymentRequest)
}

func TestPayInvoiceSucceeded(t *testing.T) {
	var received payInvoiceRequest
	var key string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get(API_KEY_HEADER)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(t, w, http.StatusCreated, map[string]interface{}{"payment_hash": coffeeHash, "checking_id": coffeeHash})
	})
	mux.HandleFunc("GET /api/v1/payments/{hash}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, coffeeHash, r.PathValue("hash"))
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"paid":     true,
			"preimage": testPreimage,
			"details": map[string]interface{}{
				"status": "success",
				"amount": -250000000,
				"fee":    -1500,
				"bolt11": coffeeInvoice,
			},
		})
	})
	svc := newTestService(t, mux)

	payment, err := svc.PayInvoice(context.Background(), &lnclient.PayInvoiceRequest{PaymentRequest: coffeeInvoice, FeeLimitSat: 2500})
	require.NoError(t, err)

	assert.Equal(t, adminKey, key)
	assert.True(t, received.Out)
	assert.Equal(t, coffeeInvoice, received.Bolt11)
	assert.Zero(t, received.Amount)

	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	assert.Equal(t, coffeeHash, payment.PaymentHash)
	assert.Equal(t, uint64(250000), payment.AmountSat)
	assert.Equal(t, uint64(2), payment.FeeSat)
	assert.Equal(t, testPreimage, payment.Preimage)
	assert.Equal(t, 1, payment.AttemptCount)
	assert.NotNil(t, payment.CompletedAt)
}

func TestPayInvoiceRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]interface{}{"detail": "Insufficient balance."})
	})
	svc := newTestService(t, mux)

	_, err := svc.PayInvoice(context.Background(), &lnclient.PayInvoiceRequest{PaymentRequest: coffeeInvoice, FeeLimitSat: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, lnclient.ErrInsufficientFunds)
}

func TestPayInvoiceDeadlineReturnsInFlight(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	svc := newTestService(t, mux)

	payment, err := svc.PayInvoice(context.Background(), &lnclient.PayInvoiceRequest{PaymentRequest: coffeeInvoice, FeeLimitSat: 10})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateInFlight, payment.Status)
	assert.Equal(t, coffeeHash, payment.PaymentHash)
	assert.Nil(t, payment.CompletedAt)
}

func TestPayInvoiceInvalidInvoice(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	_, err := svc.PayInvoice(context.Background(), &lnclient.PayInvoiceRequest{PaymentRequest: "lnbc1garbage"})
	assert.ErrorIs(t, err, lnclient.ErrInvalidInvoiceFormat)
}

func TestGetPaymentStatus(t *testing.T) {
	responses := map[string]interface{}{
		"pending-out": map[string]interface{}{
			"paid":    false,
			"details": map[string]interface{}{"status": "pending", "amount": -5000000, "fee": 0},
		},
		"failed-legacy": map[string]interface{}{
			"paid":    false,
			"details": map[string]interface{}{"pending": false, "amount": -5000000},
		},
		"incoming-paid": map[string]interface{}{
			"paid":     true,
			"preimage": testPreimage,
			"details":  map[string]interface{}{"pending": false, "amount": 21000},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/payments/{hash}", func(w http.ResponseWriter, r *http.Request) {
		resp, ok := responses[r.PathValue("hash")]
		if !ok {
			writeJSON(t, w, http.StatusNotFound, map[string]interface{}{"detail": "Payment does not exist."})
			return
		}
		writeJSON(t, w, http.StatusOK, resp)
	})
	svc := newTestService(t, mux)
	ctx := context.Background()

	status, err := svc.GetPaymentStatus(ctx, "pending-out")
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateInFlight, status.Status)
	assert.Equal(t, constants.PAYMENT_DIRECTION_OUTGOING, status.Direction)
	assert.Equal(t, uint64(5000), status.AmountSat)

	status, err = svc.GetPaymentStatus(ctx, "failed-legacy")
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateFailed, status.Status)
	assert.Empty(t, status.Preimage)

	status, err = svc.GetPaymentStatus(ctx, "incoming-paid")
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, status.Status)
	assert.Equal(t, constants.PAYMENT_DIRECTION_INCOMING, status.Direction)
	assert.Equal(t, uint64(21), status.AmountSat)
	assert.Equal(t, testPreimage, status.Preimage)

	_, err = svc.GetPaymentStatus(ctx, "unknown")
	assert.ErrorIs(t, err, lnclient.ErrNotFound)
}

func TestLookupInvoice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/payments/{hash}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("hash") {
		case "settled":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"paid": true,
				"details": map[string]interface{}{
					"status": "success",
					"amount": 21000,
					"memo":   "tip",
					"time":   "2026-01-02T10:00:00",
					"expiry": "2026-01-02T11:00:00",
				},
			})
		case "stale":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"paid": false,
				"details": map[string]interface{}{
					"status": "pending",
					"amount": 21000,
					"time":   1700000000,
					"expiry": 1700003600,
				},
			})
		case "outgoing":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"paid":    true,
				"details": map[string]interface{}{"status": "success", "amount": -21000},
			})
		}
	})
	svc := newTestService(t, mux)
	ctx := context.Background()

	invoice, err := svc.LookupInvoice(ctx, "settled")
	require.NoError(t, err)
	assert.Equal(t, lnclient.InvoiceStatusSettled, invoice.Status)
	assert.Equal(t, uint64(21), invoice.AmountSat)
	assert.Equal(t, "tip", invoice.Memo)
	assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), invoice.CreatedAt)

	invoice, err = svc.LookupInvoice(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, lnclient.InvoiceStatusExpired, invoice.Status)

	_, err = svc.LookupInvoice(ctx, "outgoing")
	assert.ErrorIs(t, err, lnclient.ErrNotFound)
}

func TestBalancesAndInfo(t *testing.T) {
	var key string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/wallet", func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get(API_KEY_HEADER)
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"name": "agent wallet", "balance": 1234567})
	})
	svc := newTestService(t, mux)
	ctx := context.Background()

	balance, err := svc.GetWalletBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), balance.ConfirmedSat)
	assert.Zero(t, balance.UnconfirmedSat)
	assert.Equal(t, invoiceKey, key)

	info, err := svc.GetInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "agent wallet", info.Alias)
	assert.Equal(t, "mainnet", info.Network)
	assert.True(t, info.Synced)
}

func TestChannelOperationsNotSupported(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())
	ctx := context.Background()

	assert.False(t, svc.Capabilities().Has(lnclient.CapChannels))
	assert.False(t, svc.Capabilities().Has(lnclient.CapChannelBalance))
	assert.True(t, svc.Capabilities().Has(lnclient.CapPayments|lnclient.CapInvoices))

	_, err := svc.GetChannelBalance(ctx)
	assert.ErrorIs(t, err, lnclient.ErrNotSupported)
	_, err = svc.ListChannels(ctx)
	assert.ErrorIs(t, err, lnclient.ErrNotSupported)
	_, err = svc.OpenChannel(ctx, &lnclient.OpenChannelRequest{})
	assert.ErrorIs(t, err, lnclient.ErrNotSupported)
	_, err = svc.CloseChannel(ctx, &lnclient.CloseChannelRequest{})
	assert.ErrorIs(t, err, lnclient.ErrNotSupported)

	_, ok := interface{}(svc).(lnclient.FeeEstimator)
	assert.False(t, ok)
}

func TestUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/wallet", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"detail": "Invalid key or wallet."})
	})
	svc := newTestService(t, mux)

	_, err := svc.GetWalletBalance(context.Background())
	assert.ErrorIs(t, err, lnclient.ErrBackendUnavailable)
	assert.False(t, lnclient.IsTransient(err))
}

func TestServerDown(t *testing.T) {
	logger.Init("4")
	server := httptest.NewServer(http.NewServeMux())
	url := server.URL
	server.Close()

	svc, err := NewLNbitsService(context.Background(), config.BackendConfig{Endpoint: url, APIKey: adminKey})
	require.NoError(t, err)

	_, err = svc.GetWalletBalance(context.Background())
	assert.ErrorIs(t, err, lnclient.ErrBackendConnectionError)
	assert.True(t, lnclient.IsTransient(err))
}

func TestFlexibleTime(t *testing.T) {
	var ts flexibleTime
	require.NoError(t, json.Unmarshal([]byte(`1700000000`), &ts))
	assert.Equal(t, int64(1700000000), ts.Unix())

	require.NoError(t, json.Unmarshal([]byte(`"1700000000.5"`), &ts))
	assert.Equal(t, int64(1700000000), ts.Unix())

	require.NoError(t, json.Unmarshal([]byte(`"2026-01-02T10:00:00Z"`), &ts))
	assert.Equal(t, 2026, ts.Year())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
