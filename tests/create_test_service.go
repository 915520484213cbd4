package tests

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/service"
	testdb "github.com/flokiorg/lngateway/tests/db"
	"github.com/flokiorg/lngateway/tests/mocks"
)

const (
	TestJWTSecret     = "0000000000000000000000000000000000000000000000000000000000000001"
	TestWebhookSecret = "webhook-secret"
)

var MockNodeInfo = lnclient.NodeInfo{
	Pubkey:      "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
	Alias:       "gateway-test",
	Network:     "regtest",
	Version:     "0.18.4-beta commit=v0.18.4-beta",
	BlockHeight: 800_000,
	Synced:      true,
}

func TestAppConfig() *config.AppConfig {
	return &config.AppConfig{
		LNBackendType:               constants.BACKEND_LND,
		Network:                     "regtest",
		LNDAddress:                  "localhost:10009",
		LNDCertFile:                 "/tmp/tls.cert",
		LNDMacaroonFile:             "/tmp/admin.macaroon",
		MinPaymentSat:               10,
		MaxPaymentSat:               100_000,
		DailyOutboundLimitSat:       1_000,
		MaxRoutingFeePercent:        "3",
		ConnectionTimeoutSeconds:    5,
		PaymentTimeoutSeconds:       2,
		PaymentPollIntervalMs:       20,
		DefaultInvoiceExpirySeconds: 3600,
		JWTSecret:                   TestJWTSecret,
		WebhookSecret:               TestWebhookSecret,
		MCPServerName:               "Lightning Gateway Test",
	}
}

// NewMockLNClient returns a mock that answers the calls every service makes
// in the background.
func NewMockLNClient(t *testing.T, caps lnclient.Capability) *mocks.MockLNClient {
	client := mocks.NewMockLNClient(t)
	client.On("Capabilities").Return(caps).Maybe()
	client.On("GetInfo", mock.Anything).Return(&MockNodeInfo, nil).Maybe()
	client.On("Shutdown").Return(nil).Maybe()
	return client
}

// CreateTestService starts a gateway on the LND backend type backed by a
// mock client.
func CreateTestService(t *testing.T) (service.Service, *mocks.MockLNClient) {
	client := NewMockLNClient(t, lnclient.CapAll)
	svc := CreateTestServiceWithFactories(t, TestAppConfig(), map[string]registry.Factory{
		constants.BACKEND_LND: func(ctx context.Context, cfg config.BackendConfig) (lnclient.LNClient, error) {
			return client, nil
		},
	})
	return svc, client
}

func CreateTestServiceWithFactories(t *testing.T, appConfig *config.AppConfig, factories map[string]registry.Factory) service.Service {
	logger.Init("4")

	gormDB, err := testdb.NewDB(t)
	require.NoError(t, err)

	svc, err := service.NewServiceFromConfig(context.Background(), appConfig, gormDB, factories, clockwork.NewRealClock())
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)
	return svc
}
