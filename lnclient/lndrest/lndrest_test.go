package lndrest

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
)

const coffeeInvoice = "lnbc2500u1pvjluezpp5qqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqypqdq5xysxxatsyp3k7enxv4jsxqzpuaztrnwngzn3kdzw5hydlzf03qdgm2hdq27cqv3agm2awhz5se903vruatfhq77w3ls4evs3ch9zw97j25emudupq63nyw24cg27h2rspfj9srp"
const coffeeHash = "0001020304050607080900010203040506070809000102030405060708090102"
const testMacaroon = "0201036c6e64"

type recorder struct {
	mu       sync.Mutex
	requests map[string][]byte
	headers  http.Header
}

func (r *recorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.Method+" "+req.URL.Path] = body
	r.headers = req.Header.Clone()
}

func (r *recorder) body(key string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[key]
}

func writeProto(t *testing.T, w http.ResponseWriter, msg proto.Message) {
	payload, err := protojson.Marshal(msg)
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func writeStreamResult(t *testing.T, w http.ResponseWriter, msg proto.Message) {
	payload, err := protojson.Marshal(msg)
	require.NoError(t, err)
	_, _ = fmt.Fprintf(w, "{\"result\":%s}\n", payload)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func newTestService(t *testing.T, mux *http.ServeMux, rec *recorder) *LNDRestService {
	logger.Init("4")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec.record(req)
		mux.ServeHTTP(w, req)
	}))
	t.Cleanup(server.Close)

	svc := newLNDRestService(context.Background(), server.Client(), testMacaroon, config.BackendConfig{
		Name:              constants.BACKEND_LND_REST,
		Endpoint:          server.URL,
		ConnectionTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = svc.Shutdown() })
	return svc
}

func newRecorder() *recorder {
	return &recorder{requests: map[string][]byte{}}
}

func coffeeHashBytes() []byte {
	hash, _ := hex.DecodeString(coffeeHash)
	return hash
}

func TestCreateInvoiceSendsMacaroon(t *testing.T) {
	rec := newRecorder()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		writeProto(t, w, &lnrpc.AddInvoiceResponse{RHash: coffeeHashBytes(), PaymentRequest: coffeeInvoice, AddIndex: 3})
	})
	mux.HandleFunc("GET /v1/invoice/{hash}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, coffeeHash, r.PathValue("hash"))
		writeProto(t, w, &lnrpc.Invoice{
			RHash:          coffeeHashBytes(),
			Value:          1000,
			Memo:           "test",
			PaymentRequest: coffeeInvoice,
			CreationDate:   time.Now().Unix(),
			Expiry:         3600,
			AddIndex:       3,
			State:          lnrpc.Invoice_OPEN,
		})
	})
	svc := newTestService(t, mux, rec)

	invoice, err := svc.CreateInvoice(context.Background(), &lnclient.CreateInvoiceRequest{AmountSat: 1000, Memo: "test"})
	require.NoError(t, err)
	assert.Equal(t, coffeeHash, invoice.PaymentHash)
	assert.Equal(t, uint64(1000), invoice.AmountSat)
	assert.Equal(t, lnclient.InvoiceStatusPending, invoice.Status)
	assert.Equal(t, testMacaroon, rec.headers.Get(MACAROON_HEADER))

	var sent lnrpc.Invoice
	require.NoError(t, protojson.Unmarshal(rec.body("POST /v1/invoices"), &sent))
	assert.Equal(t, int64(1000), sent.Value)
	assert.Equal(t, int64(3600), sent.Expiry)
}

func TestPayInvoiceStream(t *testing.T) {
	rec := newRecorder()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/router/send", func(w http.ResponseWriter, r *http.Request) {
		writeStreamResult(t, w, &lnrpc.Payment{
			PaymentHash:     coffeeHash,
			ValueSat:        250000,
			FeeSat:          3,
			PaymentPreimage: "ff" + coffeeHash[2:],
			Status:          lnrpc.Payment_SUCCEEDED,
			Htlcs:           []*lnrpc.HTLCAttempt{{ResolveTimeNs: 10}},
		})
	})
	svc := newTestService(t, mux, rec)

	payment, err := svc.PayInvoice(context.Background(), &lnclient.PayInvoiceRequest{
		PaymentRequest: coffeeInvoice,
		FeeLimitSat:    25,
	})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	assert.Equal(t, uint64(3), payment.FeeSat)
	assert.Equal(t, 1, payment.AttemptCount)

	var sent routerrpc.SendPaymentRequest
	require.NoError(t, protojson.Unmarshal(rec.body("POST /v2/router/send"), &sent))
	assert.Equal(t, int64(25), sent.FeeLimitSat)
	assert.Equal(t, int32(60), sent.TimeoutSeconds)
}

func TestPayInvoiceStreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/router/send", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, `{"error":{"code":2,"message":"invoice is already paid"}}`)
	})
	svc := newTestService(t, mux, newRecorder())

	_, err := svc.PayInvoice(context.Background(), &lnclient.PayInvoiceRequest{PaymentRequest: coffeeInvoice})
	assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)
}

func TestPayInvoiceSlowStreamIsInFlight(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/router/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	svc := newTestService(t, mux, newRecorder())
	t.Cleanup(func() { close(release) })

	payment, err := svc.PayInvoice(context.Background(), &lnclient.PayInvoiceRequest{PaymentRequest: coffeeInvoice})
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateInFlight, payment.Status)
	assert.Equal(t, coffeeHash, payment.PaymentHash)
}

func TestGetPaymentStatusTrack(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/router/track/{hash}", func(w http.ResponseWriter, r *http.Request) {
		hash, err := base64.URLEncoding.DecodeString(r.PathValue("hash"))
		require.NoError(t, err)
		assert.Equal(t, coffeeHash, hex.EncodeToString(hash))
		writeStreamResult(t, w, &lnrpc.Payment{
			PaymentHash: coffeeHash,
			ValueSat:    100,
			Status:      lnrpc.Payment_IN_FLIGHT,
			Htlcs:       []*lnrpc.HTLCAttempt{{}, {}},
		})
	})
	svc := newTestService(t, mux, newRecorder())

	status, err := svc.GetPaymentStatus(context.Background(), coffeeHash)
	require.NoError(t, err)
	assert.Equal(t, lnclient.PaymentStateInFlight, status.Status)
	assert.Equal(t, 2, status.AttemptCount)
	assert.Equal(t, constants.PAYMENT_DIRECTION_OUTGOING, status.Direction)
}

func TestGetPaymentStatusFallsBackToInvoice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/router/track/{hash}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, `{"error":{"code":5,"message":"payment isn't initiated"}}`)
	})
	mux.HandleFunc("GET /v1/invoice/{hash}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("hash") != coffeeHash {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, `{"code":5,"message":"unable to locate invoice"}`)
			return
		}
		writeProto(t, w, &lnrpc.Invoice{
			RHash:        coffeeHashBytes(),
			Value:        1000,
			CreationDate: time.Now().Add(-2 * time.Hour).Unix(),
			Expiry:       3600,
			State:        lnrpc.Invoice_CANCELED,
		})
	})
	svc := newTestService(t, mux, newRecorder())

	status, err := svc.GetPaymentStatus(context.Background(), coffeeHash)
	require.NoError(t, err)
	assert.Equal(t, constants.PAYMENT_DIRECTION_INCOMING, status.Direction)
	assert.Equal(t, lnclient.PaymentStateFailed, status.Status)
	assert.Equal(t, "expired", status.FailureReason)

	_, err = svc.GetPaymentStatus(context.Background(), "ff"+coffeeHash[2:])
	assert.ErrorIs(t, err, lnclient.ErrNotFound)
}

func TestBalancesChannelsAndInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/balance/blockchain", func(w http.ResponseWriter, r *http.Request) {
		// the REST proxy encodes int64 as strings
		_, _ = fmt.Fprint(w, `{"confirmed_balance":"42000","unconfirmed_balance":"1000","total_balance":"43000"}`)
	})
	mux.HandleFunc("GET /v1/balance/channels", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"local_balance":{"sat":"9000","msat":"9000000"},"remote_balance":{"sat":"1000","msat":"1000000"}}`)
	})
	mux.HandleFunc("GET /v1/channels", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"channels":[{"chan_id":"123","remote_pubkey":"02aa","channel_point":"ab:0","capacity":"10000","local_balance":"9000","remote_balance":"1000","active":true}]}`)
	})
	mux.HandleFunc("GET /v1/channels/pending", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"waiting_close_channels":[{"channel":{"remote_node_pub":"02bb","channel_point":"cd:1","capacity":"5000"}}]}`)
	})
	mux.HandleFunc("GET /v1/getinfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"identity_pubkey":"03ff","alias":"rest","version":"0.18.3-beta","block_height":100,"synced_to_chain":true,"chains":[{"chain":"bitcoin","network":"regtest"}]}`)
	})
	svc := newTestService(t, mux, newRecorder())
	ctx := context.Background()

	wallet, err := svc.GetWalletBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42000), wallet.ConfirmedSat)

	balance, err := svc.GetChannelBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9000), balance.LocalSat)
	assert.Equal(t, uint64(1000), balance.RemoteSat)

	channels, err := svc.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "123", channels[0].ID)
	assert.Equal(t, lnclient.ChannelStateClosing, channels[1].State)

	info, err := svc.GetInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "regtest", info.Network)
	assert.Equal(t, uint32(100), info.BlockHeight)
}

func TestCloseChannel(t *testing.T) {
	txid := chainhash.Hash{7}
	rec := newRecorder()
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /v1/channels/{txid}/{index}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, txid.String(), r.PathValue("txid"))
		assert.Equal(t, "2", r.PathValue("index"))
		assert.Equal(t, "true", r.URL.Query().Get("force"))
		assert.Empty(t, r.URL.Query().Get("sat_per_vbyte"))
		writeStreamResult(t, w, &lnrpc.CloseStatusUpdate{
			Update: &lnrpc.CloseStatusUpdate_ClosePending{
				ClosePending: &lnrpc.PendingUpdate{Txid: txid[:]},
			},
		})
	})
	svc := newTestService(t, mux, rec)

	resp, err := svc.CloseChannel(context.Background(), &lnclient.CloseChannelRequest{
		ChannelID:   txid.String() + ":2",
		Force:       true,
		SatPerVbyte: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, txid.String(), resp.ClosingTxid)
	assert.Equal(t, lnclient.ChannelStateClosing, resp.Status)
}

func TestUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/getinfo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `{"code":2,"message":"verification failed: signature mismatch"}`)
	})
	svc := newTestService(t, mux, newRecorder())

	_, err := svc.GetInfo(context.Background())
	assert.ErrorIs(t, err, lnclient.ErrBackendUnavailable)
}

func TestEstimateRouteFee(t *testing.T) {
	rec := newRecorder()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/getinfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"version":"0.18.4-beta"}`)
	})
	mux.HandleFunc("POST /v2/router/route/estimatefee", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"routing_fee_msat":"3001","time_lock_delay":"40","failure_reason":"FAILURE_REASON_NONE"}`)
	})
	svc := newTestService(t, mux, rec)

	fee, err := svc.EstimateRouteFee(context.Background(), coffeeInvoice, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), fee)

	var sent routerrpc.RouteFeeRequest
	require.NoError(t, protojson.Unmarshal(rec.body("POST /v2/router/route/estimatefee"), &sent))
	assert.Equal(t, coffeeInvoice, sent.PaymentRequest)
}

func TestServerDown(t *testing.T) {
	logger.Init("4")
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	svc := newLNDRestService(context.Background(), http.DefaultClient, testMacaroon, config.BackendConfig{Endpoint: server.URL})
	_, err := svc.GetWalletBalance(context.Background())
	assert.True(t, lnclient.IsTransient(err))
}
