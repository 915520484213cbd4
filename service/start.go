package service

import (
	"context"
	"time"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/lnclient/cln"
	"github.com/flokiorg/lngateway/lnclient/lnbits"
	"github.com/flokiorg/lngateway/lnclient/lnd"
	"github.com/flokiorg/lngateway/lnclient/lndrest"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/registry"
)

const nodeInfoTimeout = 10 * time.Second

// adapterFactories maps every supported backend type to its constructor.
// The publisher is bound at launch for the adapters that stream invoice
// updates.
func adapterFactories() map[string]registry.Factory {
	return map[string]registry.Factory{
		constants.BACKEND_LND_REST: lndrest.NewLNDRestService,
		constants.BACKEND_LNBITS:   lnbits.NewLNbitsService,
	}
}

func (svc *service) launchLNBackends(ctx context.Context, factories map[string]registry.Factory) {
	factories = svc.bindStreamingFactories(factories)

	logger.Logger.Info().Str("backend", svc.registry.Active()).Msg("Connecting to Lightning backend")
	svc.registry.Init(ctx, svc.cfg.GetEnv().BackendConfigs(), factories)

	for _, status := range svc.registry.Status() {
		event := logger.Logger.Info()
		if status.Error != "" {
			event = logger.Logger.Error().Str("error", status.Error)
		}
		event.Str("backend", status.Name).
			Bool("active", status.Active).
			Str("capabilities", status.Capabilities).
			Msg("Lightning backend initialized")
	}

	lnClient, err := svc.registry.Resolve()
	if err != nil {
		// the gateway still serves requests; every call answers BackendUnavailable
		logger.Logger.Error().Err(err).Str("backend", svc.registry.Active()).Msg("Active Lightning backend is not available")
		svc.eventPublisher.Publish(&events.Event{
			Event: constants.EVENT_BACKEND_START_FAILED,
			Properties: map[string]interface{}{
				"backend": svc.registry.Active(),
			},
		})
		return
	}

	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		svc.publishNodeInfo(ctx, lnClient)
	}()
}

// bindStreamingFactories adds the adapters that need the event publisher,
// unless the caller already supplied its own.
func (svc *service) bindStreamingFactories(factories map[string]registry.Factory) map[string]registry.Factory {
	bound := map[string]registry.Factory{
		constants.BACKEND_LND: func(ctx context.Context, cfg config.BackendConfig) (lnclient.LNClient, error) {
			return lnd.NewLNDService(ctx, svc.eventPublisher, cfg)
		},
		constants.BACKEND_CLN: func(ctx context.Context, cfg config.BackendConfig) (lnclient.LNClient, error) {
			return cln.NewCLNService(ctx, svc.eventPublisher, cfg)
		},
	}
	for name, factory := range factories {
		bound[name] = factory
	}
	return bound
}

func (svc *service) publishNodeInfo(ctx context.Context, lnClient lnclient.LNClient) {
	ctx, cancel := context.WithTimeout(ctx, nodeInfoTimeout)
	defer cancel()

	info, err := lnClient.GetInfo(ctx)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Failed to fetch node info")
		return
	}
	svc.eventPublisher.SetGlobalProperty("node_id", info.Pubkey)
	svc.eventPublisher.SetGlobalProperty("network", info.Network)
	logger.Logger.Info().
		Str("backend", svc.registry.Active()).
		Str("pubkey", info.Pubkey).
		Str("alias", info.Alias).
		Str("version", info.Version).
		Bool("synced", info.Synced).
		Msg("Connected to Lightning backend")
}

func (svc *service) stopLNClients() {
	logger.Logger.Info().Msg("Shutting down Lightning backends")
	svc.registry.Shutdown()
	logger.Logger.Info().Msg("Lightning backends shut down")
}
