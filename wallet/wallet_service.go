package wallet

import (
	"context"

	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/utils"
)

type NodeInfo struct {
	lnclient.NodeInfo
	Backend      string `json:"backend"`
	Capabilities string `json:"capabilities"`
}

type WalletService interface {
	GetWalletBalance(ctx context.Context) (*lnclient.WalletBalance, error)
	GetChannelBalance(ctx context.Context) (*lnclient.ChannelBalance, error)
	GetNodeInfo(ctx context.Context) (*NodeInfo, error)
}

type walletService struct {
	registry *registry.Registry
}

func NewWalletService(reg *registry.Registry) *walletService {
	return &walletService{registry: reg}
}

func (svc *walletService) GetWalletBalance(ctx context.Context) (*lnclient.WalletBalance, error) {
	lnClient, err := svc.registry.ResolveCapable(lnclient.CapWalletBalance)
	if err != nil {
		return nil, err
	}
	balance, err := utils.RetryRead(ctx, "wallet_balance", lnClient.GetWalletBalance)
	if err != nil {
		logger.Logger.Error().Err(err).Str("backend", svc.registry.Active()).Msg("Failed to fetch wallet balance")
		return nil, err
	}
	return balance, nil
}

func (svc *walletService) GetChannelBalance(ctx context.Context) (*lnclient.ChannelBalance, error) {
	lnClient, err := svc.registry.ResolveCapable(lnclient.CapChannelBalance)
	if err != nil {
		return nil, err
	}
	balance, err := utils.RetryRead(ctx, "channel_balance", lnClient.GetChannelBalance)
	if err != nil {
		logger.Logger.Error().Err(err).Str("backend", svc.registry.Active()).Msg("Failed to fetch channel balance")
		return nil, err
	}
	return balance, nil
}

// GetNodeInfo is available on every backend.
func (svc *walletService) GetNodeInfo(ctx context.Context) (*NodeInfo, error) {
	lnClient, err := svc.registry.Resolve()
	if err != nil {
		return nil, err
	}
	info, err := utils.RetryRead(ctx, "node_info", lnClient.GetInfo)
	if err != nil {
		logger.Logger.Error().Err(err).Str("backend", svc.registry.Active()).Msg("Failed to fetch node info")
		return nil, err
	}
	return &NodeInfo{
		NodeInfo:     *info,
		Backend:      svc.registry.Active(),
		Capabilities: lnClient.Capabilities().String(),
	}, nil
}
