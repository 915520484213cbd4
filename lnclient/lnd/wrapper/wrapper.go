package wrapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"

	"github.com/flokiorg/lngateway/utils"
)

const maxMessageSize = 50 * 1024 * 1024

type LNDoptions struct {
	Address      string
	CertFile     string
	MacaroonFile string
}

// LNDWrapper bundles the lightning and router clients of one node. The
// connection is established lazily by gRPC on the first call.
type LNDWrapper struct {
	client       lnrpc.LightningClient
	routerClient routerrpc.RouterClient
	conn         *grpc.ClientConn
}

func NewLNDclient(lndOptions LNDoptions) (*LNDWrapper, error) {
	if lndOptions.Address == "" {
		return nil, errors.New("LND address is required")
	}

	if _, err := utils.ReadCredentialFile(lndOptions.CertFile); err != nil {
		return nil, fmt.Errorf("failed to load TLS cert: %w", err)
	}
	creds, err := credentials.NewClientTLSFromFile(lndOptions.CertFile, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS cert: %w", err)
	}

	macBytes, err := utils.ReadCredentialFile(lndOptions.MacaroonFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read macaroon: %w", err)
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal macaroon: %w", err)
	}

	macCreds, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("failed to create macaroon credential: %w", err)
	}

	conn, err := grpc.NewClient(lndOptions.Address,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCreds),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxMessageSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LND client: %w", err)
	}

	return &LNDWrapper{
		client:       lnrpc.NewLightningClient(conn),
		routerClient: routerrpc.NewRouterClient(conn),
		conn:         conn,
	}, nil
}

func (wrapper *LNDWrapper) Close() error {
	return wrapper.conn.Close()
}

func (wrapper *LNDWrapper) GetInfo(ctx context.Context, req *lnrpc.GetInfoRequest, options ...grpc.CallOption) (*lnrpc.GetInfoResponse, error) {
	return wrapper.client.GetInfo(ctx, req, options...)
}

func (wrapper *LNDWrapper) AddInvoice(ctx context.Context, req *lnrpc.Invoice, options ...grpc.CallOption) (*lnrpc.AddInvoiceResponse, error) {
	return wrapper.client.AddInvoice(ctx, req, options...)
}

func (wrapper *LNDWrapper) LookupInvoice(ctx context.Context, req *lnrpc.PaymentHash, options ...grpc.CallOption) (*lnrpc.Invoice, error) {
	return wrapper.client.LookupInvoice(ctx, req, options...)
}

func (wrapper *LNDWrapper) SubscribeInvoices(ctx context.Context, req *lnrpc.InvoiceSubscription, options ...grpc.CallOption) (lnrpc.Lightning_SubscribeInvoicesClient, error) {
	return wrapper.client.SubscribeInvoices(ctx, req, options...)
}

func (wrapper *LNDWrapper) SendPayment(ctx context.Context, req *routerrpc.SendPaymentRequest, options ...grpc.CallOption) (routerrpc.Router_SendPaymentV2Client, error) {
	return wrapper.routerClient.SendPaymentV2(ctx, req, options...)
}

func (wrapper *LNDWrapper) TrackPayment(ctx context.Context, req *routerrpc.TrackPaymentRequest, options ...grpc.CallOption) (routerrpc.Router_TrackPaymentV2Client, error) {
	return wrapper.routerClient.TrackPaymentV2(ctx, req, options...)
}

func (wrapper *LNDWrapper) EstimateRouteFee(ctx context.Context, req *routerrpc.RouteFeeRequest, options ...grpc.CallOption) (*routerrpc.RouteFeeResponse, error) {
	return wrapper.routerClient.EstimateRouteFee(ctx, req, options...)
}

func (wrapper *LNDWrapper) WalletBalance(ctx context.Context, req *lnrpc.WalletBalanceRequest, options ...grpc.CallOption) (*lnrpc.WalletBalanceResponse, error) {
	return wrapper.client.WalletBalance(ctx, req, options...)
}

func (wrapper *LNDWrapper) ChannelBalance(ctx context.Context, req *lnrpc.ChannelBalanceRequest, options ...grpc.CallOption) (*lnrpc.ChannelBalanceResponse, error) {
	return wrapper.client.ChannelBalance(ctx, req, options...)
}

func (wrapper *LNDWrapper) ListChannels(ctx context.Context, req *lnrpc.ListChannelsRequest, options ...grpc.CallOption) (*lnrpc.ListChannelsResponse, error) {
	return wrapper.client.ListChannels(ctx, req, options...)
}

func (wrapper *LNDWrapper) PendingChannels(ctx context.Context, req *lnrpc.PendingChannelsRequest, options ...grpc.CallOption) (*lnrpc.PendingChannelsResponse, error) {
	return wrapper.client.PendingChannels(ctx, req, options...)
}

func (wrapper *LNDWrapper) OpenChannelSync(ctx context.Context, req *lnrpc.OpenChannelRequest, options ...grpc.CallOption) (*lnrpc.ChannelPoint, error) {
	return wrapper.client.OpenChannelSync(ctx, req, options...)
}

func (wrapper *LNDWrapper) CloseChannel(ctx context.Context, req *lnrpc.CloseChannelRequest, options ...grpc.CallOption) (lnrpc.Lightning_CloseChannelClient, error) {
	return wrapper.client.CloseChannel(ctx, req, options...)
}
