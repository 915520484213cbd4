package service

import (
	"gorm.io/gorm"

	"github.com/flokiorg/lngateway/channels"
	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/payments"
	"github.com/flokiorg/lngateway/policy"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/wallet"
)

type Service interface {
	Shutdown()

	// used by the http and mcp front ends
	GetEventPublisher() events.EventPublisher
	GetRegistry() *registry.Registry
	GetPolicy() *policy.Engine
	GetPaymentsService() payments.PaymentsService
	GetChannelsService() channels.ChannelsService
	GetWalletService() wallet.WalletService
	GetDB() *gorm.DB
	GetConfig() config.Config
}
