package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/registry"
	testdb "github.com/flokiorg/lngateway/tests/db"
	"github.com/flokiorg/lngateway/tests/mocks"
)

func testAppConfig() *config.AppConfig {
	return &config.AppConfig{
		LNBackendType:               constants.BACKEND_LND,
		Network:                     "regtest",
		LNDAddress:                  "localhost:10009",
		LNDCertFile:                 "/tmp/tls.cert",
		LNDMacaroonFile:             "/tmp/admin.macaroon",
		LNbitsURL:                   "http://localhost:5000",
		LNbitsAdminKey:              "admin",
		MinPaymentSat:               1,
		MaxPaymentSat:               100_000,
		DailyOutboundLimitSat:       1_000_000,
		MaxRoutingFeePercent:        "1.0",
		ConnectionTimeoutSeconds:    30,
		PaymentTimeoutSeconds:       60,
		PaymentPollIntervalMs:       500,
		DefaultInvoiceExpirySeconds: 3600,
	}
}

func mockFactory(client lnclient.LNClient) registry.Factory {
	return func(ctx context.Context, cfg config.BackendConfig) (lnclient.LNClient, error) {
		return client, nil
	}
}

func failingFactory(err error) registry.Factory {
	return func(ctx context.Context, cfg config.BackendConfig) (lnclient.LNClient, error) {
		return nil, err
	}
}

func TestNewService(t *testing.T) {
	logger.Init("4")
	gormDB, err := testdb.NewDB(t)
	require.NoError(t, err)

	client := mocks.NewMockLNClient(t)
	client.On("Capabilities").Return(lnclient.CapAll).Maybe()
	client.EXPECT().GetInfo(mock.Anything).Return(&lnclient.NodeInfo{Pubkey: "02aa", Network: "regtest"}, nil).Once()
	client.EXPECT().Shutdown().Return(nil).Once()

	svc, err := NewServiceFromConfig(context.Background(), testAppConfig(), gormDB, map[string]registry.Factory{
		constants.BACKEND_LND:    mockFactory(client),
		constants.BACKEND_LNBITS: failingFactory(errors.New("bad key")),
	}, clockwork.NewFakeClock())
	require.NoError(t, err)

	assert.Equal(t, constants.BACKEND_LND, svc.GetRegistry().Active())
	assert.Equal(t, []string{constants.BACKEND_LNBITS, constants.BACKEND_LND}, svc.GetRegistry().Names())
	assert.Equal(t, uint64(100_000), svc.GetPolicy().Limits().MaxPaymentSat)
	assert.Equal(t, "1", svc.GetPolicy().Limits().MaxRoutingFeePercent.String())

	secret, err := svc.GetConfig().GetJWTSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 64)

	_, err = svc.GetRegistry().ResolveName(constants.BACKEND_LNBITS)
	assert.ErrorIs(t, err, lnclient.ErrBackendUnavailable)

	svc.Shutdown()
}

func TestNewServiceRestoresReservations(t *testing.T) {
	logger.Init("4")
	gormDB, err := testdb.NewDB(t)
	require.NoError(t, err)

	require.NoError(t, gormDB.Create(&db.Payment{
		Backend:     constants.BACKEND_LND,
		PaymentHash: "0000000000000000000000000000000000000000000000000000000000000001",
		AmountSat:   2_500,
		State:       string(lnclient.PaymentStateTimedOut),
	}).Error)

	now := time.Now()
	require.NoError(t, gormDB.Create(&db.PolicyLedger{
		ID:            db.PolicyLedgerID,
		DailySpentSat: 7_000,
		WindowStart:   now.Add(-time.Hour),
	}).Error)

	client := mocks.NewMockLNClient(t)
	client.On("Capabilities").Return(lnclient.CapAll).Maybe()
	client.EXPECT().GetInfo(mock.Anything).Return(nil, lnclient.NewError(lnclient.KindBackendConnectionError, "connection refused")).Once()
	client.EXPECT().Shutdown().Return(nil).Once()

	svc, err := NewServiceFromConfig(context.Background(), testAppConfig(), gormDB, map[string]registry.Factory{
		constants.BACKEND_LND: mockFactory(client),
	}, clockwork.NewFakeClockAt(now))
	require.NoError(t, err)
	defer svc.Shutdown()

	state := svc.GetPolicy().Ledger().Snapshot()
	assert.Equal(t, uint64(7_000), state.DailySpentSat)
	assert.Equal(t, uint64(2_500), state.ReservedSat)
	assert.Equal(t, uint64(1_000_000-9_500), *svc.GetPolicy().RemainingDailySat())
}

func TestNewServiceActiveBackendDown(t *testing.T) {
	logger.Init("4")
	gormDB, err := testdb.NewDB(t)
	require.NoError(t, err)

	svc, err := NewServiceFromConfig(context.Background(), testAppConfig(), gormDB, map[string]registry.Factory{
		constants.BACKEND_LND: failingFactory(errors.New("failed to read macaroon")),
	}, clockwork.NewFakeClock())
	require.NoError(t, err)
	defer svc.Shutdown()

	_, err = svc.GetWalletService().GetWalletBalance(context.Background())
	assert.ErrorIs(t, err, lnclient.ErrBackendUnavailable)

	_, err = svc.GetPaymentsService().CreateInvoice(context.Background(), 100, "coffee", 0)
	assert.ErrorIs(t, err, lnclient.ErrBackendUnavailable)
}

func TestNewServiceInvalidConfig(t *testing.T) {
	logger.Init("4")
	gormDB, err := testdb.NewDB(t)
	require.NoError(t, err)
	defer testdb.CloseDB(gormDB)

	appConfig := testAppConfig()
	appConfig.LNBackendType = "ECLAIR"

	_, err = NewServiceFromConfig(context.Background(), appConfig, gormDB, nil, clockwork.NewFakeClock())
	assert.ErrorContains(t, err, "unsupported LN_BACKEND_TYPE")
}
