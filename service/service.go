package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/flokiorg/lngateway/channels"
	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/db/migrations"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/payments"
	"github.com/flokiorg/lngateway/pkg/version"
	"github.com/flokiorg/lngateway/policy"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/wallet"
)

type service struct {
	cfg config.Config

	db              *gorm.DB
	registry        *registry.Registry
	policy          *policy.Engine
	paymentsService payments.PaymentsService
	channelsService channels.ChannelsService
	walletService   wallet.WalletService
	eventPublisher  events.EventPublisher
	ctx             context.Context
	cancelFn        context.CancelFunc
	wg              *sync.WaitGroup
}

func NewService(ctx context.Context) (*service, error) {
	// Load config from environment variables / .env file
	godotenv.Load(".env")
	appConfig := &config.AppConfig{}
	err := envconfig.Process("", appConfig)
	if err != nil {
		return nil, err
	}

	logger.Init(appConfig.LogLevel)
	logger.Logger.Info().Msg("Lightning gateway " + version.Tag)

	if appConfig.Workdir == "" {
		appConfig.Workdir = filepath.Join(xdg.DataHome, "/lngateway")
		logger.Logger.Info().Interface("workdir", appConfig.Workdir).Msg("No workdir specified, using default")
	}
	// make sure workdir exists
	os.MkdirAll(appConfig.Workdir, os.ModePerm)

	if appConfig.LogToFile {
		err = logger.AddFileLogger(appConfig.Workdir)
		if err != nil {
			return nil, err
		}
	}

	// If DATABASE_URI is a URI or a path, leave it unchanged.
	// If it only contains a filename, prepend the workdir.
	if !strings.HasPrefix(appConfig.DatabaseUri, "file:") {
		databasePath, _ := filepath.Split(appConfig.DatabaseUri)
		if databasePath == "" {
			appConfig.DatabaseUri = filepath.Join(appConfig.Workdir, appConfig.DatabaseUri)
		}
	}

	gormDB, err := db.NewDB(appConfig.DatabaseUri, appConfig.LogDBQueries)
	if err != nil {
		return nil, err
	}

	svc, err := NewServiceFromConfig(ctx, appConfig, gormDB, adapterFactories(), clockwork.NewRealClock())
	if err != nil {
		db.Stop(gormDB)
		return nil, err
	}
	return svc, nil
}

// NewServiceFromConfig wires the gateway on an open database. Factories for
// LND and CLN are added unless the caller supplies its own.
func NewServiceFromConfig(ctx context.Context, appConfig *config.AppConfig, gormDB *gorm.DB, factories map[string]registry.Factory, clock clockwork.Clock) (*service, error) {
	err := migrations.Migrate(gormDB)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to migrate database")
		return nil, err
	}

	cfg, err := config.NewConfig(appConfig, gormDB)
	if err != nil {
		return nil, err
	}

	feePercent, err := appConfig.RoutingFeePercent()
	if err != nil {
		return nil, err
	}
	policyEngine := policy.NewEngine(policy.Limits{
		MinPaymentSat:         appConfig.MinPaymentSat,
		MaxPaymentSat:         appConfig.MaxPaymentSat,
		DailyOutboundLimitSat: appConfig.DailyOutboundLimitSat,
		MaxRoutingFeePercent:  feePercent,
	}, policy.NewLedger(clock, policy.NewGormLedgerStore(gormDB)))

	eventPublisher := events.NewEventPublisher()

	ctx, cancelFn := context.WithCancel(ctx)

	var wg sync.WaitGroup
	svc := &service{
		cfg:            cfg,
		ctx:            ctx,
		cancelFn:       cancelFn,
		wg:             &wg,
		db:             gormDB,
		policy:         policyEngine,
		eventPublisher: eventPublisher,
		registry:       registry.New(cfg.GetActiveBackend()),
	}

	svc.launchLNBackends(ctx, factories)

	paymentsService := payments.NewPaymentsService(ctx, gormDB, svc.registry, policyEngine, eventPublisher, clock, payments.Settings{
		PaymentTimeout:       appConfig.PaymentTimeout(),
		PollInterval:         appConfig.PaymentPollInterval(),
		DefaultInvoiceExpiry: appConfig.DefaultInvoiceExpiry(),
	})
	err = paymentsService.RestoreReservations()
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to restore payment reservations")
		cancelFn()
		return nil, err
	}
	svc.paymentsService = paymentsService
	svc.channelsService = channels.NewChannelsService(svc.registry, eventPublisher)
	svc.walletService = wallet.NewWalletService(svc.registry)

	eventPublisher.RegisterSubscriber(paymentsService)
	eventPublisher.RegisterSubscriber(&eventLogConsumer{})

	limits := policyEngine.Limits()
	eventPublisher.Publish(&events.Event{
		Event: constants.EVENT_GATEWAY_STARTED,
		Properties: map[string]interface{}{
			"version":                  version.Tag,
			"backend":                  svc.registry.Active(),
			"min_payment_sat":          limits.MinPaymentSat,
			"max_payment_sat":          limits.MaxPaymentSat,
			"daily_outbound_limit_sat": limits.DailyOutboundLimitSat,
			"max_routing_fee_percent":  limits.MaxRoutingFeePercent.String(),
		},
	})

	return svc, nil
}

func (svc *service) Shutdown() {
	svc.cancelFn()
	svc.paymentsService.Shutdown()
	svc.stopLNClients()
	svc.wg.Wait()
	svc.eventPublisher.PublishSync(&events.Event{
		Event: constants.EVENT_GATEWAY_STOPPED,
	})
	db.Stop(svc.db)
}

func (svc *service) GetDB() *gorm.DB {
	return svc.db
}

func (svc *service) GetConfig() config.Config {
	return svc.cfg
}

func (svc *service) GetEventPublisher() events.EventPublisher {
	return svc.eventPublisher
}

func (svc *service) GetRegistry() *registry.Registry {
	return svc.registry
}

func (svc *service) GetPolicy() *policy.Engine {
	return svc.policy
}

func (svc *service) GetPaymentsService() payments.PaymentsService {
	return svc.paymentsService
}

func (svc *service) GetChannelsService() channels.ChannelsService {
	return svc.channelsService
}

func (svc *service) GetWalletService() wallet.WalletService {
	return svc.walletService
}
