package channels

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/registry"
	"github.com/flokiorg/lngateway/utils"
)

type OpenChannelParams struct {
	RemotePubkey string
	LocalAmtSat  uint64
	PushAmtSat   uint64
	Private      bool
	TargetConf   int32
	SatPerVbyte  uint64
}

// CloseOptions zero value is a cooperative close.
type CloseOptions struct {
	Force       bool
	SatPerVbyte uint64
}

type ChannelsService interface {
	ListChannels(ctx context.Context) ([]lnclient.Channel, error)
	OpenChannel(ctx context.Context, params OpenChannelParams) (*lnclient.Channel, error)
	CloseChannel(ctx context.Context, channelID string, opts CloseOptions) (*lnclient.CloseChannelResponse, error)
}

type channelsService struct {
	registry       *registry.Registry
	eventPublisher events.EventPublisher
}

func NewChannelsService(reg *registry.Registry, eventPublisher events.EventPublisher) *channelsService {
	return &channelsService{
		registry:       reg,
		eventPublisher: eventPublisher,
	}
}

// ListChannels always asks the backend; channel state is never cached.
func (svc *channelsService) ListChannels(ctx context.Context) ([]lnclient.Channel, error) {
	lnClient, err := svc.registry.ResolveCapable(lnclient.CapChannels)
	if err != nil {
		return nil, err
	}
	channels, err := utils.RetryRead(ctx, "list_channels", lnClient.ListChannels)
	if err != nil {
		logger.Logger.Error().Err(err).Str("backend", svc.registry.Active()).Msg("Failed to list channels")
		return nil, err
	}
	if channels == nil {
		channels = []lnclient.Channel{}
	}
	return channels, nil
}

// OpenChannel validates the request before the backend sees it. The funding
// call is sent once; a failure is returned as is.
func (svc *channelsService) OpenChannel(ctx context.Context, params OpenChannelParams) (*lnclient.Channel, error) {
	pubkey, err := ParsePubkey(params.RemotePubkey)
	if err != nil {
		return nil, err
	}
	if params.LocalAmtSat == 0 {
		return nil, lnclient.NewError(lnclient.KindInvalidAmount, "local amount must be positive")
	}
	if params.PushAmtSat > params.LocalAmtSat {
		return nil, lnclient.NewError(lnclient.KindInvalidAmount,
			"push amount %d sat exceeds the local amount of %d sat", params.PushAmtSat, params.LocalAmtSat)
	}
	if params.TargetConf < 0 {
		return nil, lnclient.NewError(lnclient.KindInvalidAmount, "target confirmations must not be negative")
	}

	lnClient, err := svc.registry.ResolveCapable(lnclient.CapChannels)
	if err != nil {
		return nil, err
	}

	logger.Logger.Info().
		Str("backend", svc.registry.Active()).
		Str("remote_pubkey", pubkey).
		Uint64("local_amt_sat", params.LocalAmtSat).
		Uint64("push_amt_sat", params.PushAmtSat).
		Bool("private", params.Private).
		Msg("Opening channel")

	channel, err := lnClient.OpenChannel(ctx, &lnclient.OpenChannelRequest{
		RemotePubkey: pubkey,
		LocalAmtSat:  params.LocalAmtSat,
		PushAmtSat:   params.PushAmtSat,
		Private:      params.Private,
		TargetConf:   params.TargetConf,
		SatPerVbyte:  params.SatPerVbyte,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Str("remote_pubkey", pubkey).Msg("Failed to open channel")
		return nil, err
	}

	svc.eventPublisher.Publish(&events.Event{
		Event:      constants.EVENT_CHANNEL_OPENED,
		Properties: channel,
	})
	return channel, nil
}

func (svc *channelsService) CloseChannel(ctx context.Context, channelID string, opts CloseOptions) (*lnclient.CloseChannelResponse, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, lnclient.NewNotFoundError("channel")
	}

	lnClient, err := svc.registry.ResolveCapable(lnclient.CapChannels)
	if err != nil {
		return nil, err
	}

	logger.Logger.Info().
		Str("backend", svc.registry.Active()).
		Str("channel_id", channelID).
		Bool("force", opts.Force).
		Msg("Closing channel")

	response, err := lnClient.CloseChannel(ctx, &lnclient.CloseChannelRequest{
		ChannelID:   channelID,
		Force:       opts.Force,
		SatPerVbyte: opts.SatPerVbyte,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Str("channel_id", channelID).Bool("force", opts.Force).Msg("Failed to close channel")
		return nil, err
	}

	svc.eventPublisher.Publish(&events.Event{
		Event:      constants.EVENT_CHANNEL_CLOSED,
		Properties: response,
	})
	return response, nil
}

// ParsePubkey accepts a 33 byte compressed secp256k1 key in hex and returns
// it lowercased.
func ParsePubkey(pubkey string) (string, error) {
	pubkey = strings.ToLower(strings.TrimSpace(pubkey))
	raw, err := hex.DecodeString(pubkey)
	if err != nil {
		return "", lnclient.WrapError(lnclient.KindInvalidPubkey, err, "pubkey is not hex")
	}
	if len(raw) != btcec.PubKeyBytesLenCompressed {
		return "", lnclient.NewError(lnclient.KindInvalidPubkey,
			"pubkey must be %d bytes, got %d", btcec.PubKeyBytesLenCompressed, len(raw))
	}
	if _, err := btcec.ParsePubKey(raw); err != nil {
		return "", lnclient.WrapError(lnclient.KindInvalidPubkey, err, "pubkey is not on the curve")
	}
	return pubkey, nil
}
