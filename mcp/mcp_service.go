package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/flokiorg/lngateway/api"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/pkg/version"
	"github.com/flokiorg/lngateway/wallet"
)

const NodeInfoResourceURI = "resource://lightning/node/info"

// MCPService exposes the gateway to agents as MCP tools.
type MCPService struct {
	api       api.API
	mcpServer *mcpserver.MCPServer
}

func NewMCPService(gatewayAPI api.API, name string) *MCPService {
	mcpSvc := &MCPService{
		api: gatewayAPI,
		mcpServer: mcpserver.NewMCPServer(name, version.Tag,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	mcpSvc.registerTools()
	return mcpSvc
}

func (mcpSvc *MCPService) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(mcpSvc.mcpServer)
}

func (mcpSvc *MCPService) GetMCPServer() *mcpserver.MCPServer {
	return mcpSvc.mcpServer
}

func (mcpSvc *MCPService) registerTools() {
	s := mcpSvc.mcpServer

	s.AddTool(mcpproto.NewTool("create_invoice",
		mcpproto.WithDescription("Create a Lightning invoice to receive a payment"),
		mcpproto.WithNumber("amount_sat", mcpproto.Required(), mcpproto.Description("Amount in satoshis")),
		mcpproto.WithString("memo", mcpproto.Description("Description shown to the payer")),
		mcpproto.WithNumber("expiry_seconds", mcpproto.Description("Seconds until the invoice expires")),
	), mcpSvc.createInvoiceHandler)

	s.AddTool(mcpproto.NewTool("pay_invoice",
		mcpproto.WithDescription("Pay a BOLT11 Lightning invoice within the gateway spending limits"),
		mcpproto.WithString("invoice", mcpproto.Required(), mcpproto.Description("BOLT11 payment request")),
		mcpproto.WithNumber("amount_sat", mcpproto.Description("Amount in satoshis, only for invoices without an amount")),
		mcpproto.WithNumber("fee_limit_sat", mcpproto.Description("Maximum routing fee in satoshis")),
	), mcpSvc.payInvoiceHandler)

	s.AddTool(mcpproto.NewTool("get_payment_status",
		mcpproto.WithDescription("Look up the status of a payment or invoice by payment hash"),
		mcpproto.WithString("payment_hash", mcpproto.Required(), mcpproto.Description("Hex encoded payment hash")),
		mcpproto.WithBoolean("wait", mcpproto.Description("Wait for an outgoing payment that is still in flight to finish")),
	), mcpSvc.paymentStatusHandler)

	s.AddTool(mcpproto.NewTool("get_wallet_balance",
		mcpproto.WithDescription("Get the on-chain wallet balance"),
	), mcpSvc.walletBalanceHandler)

	s.AddTool(mcpproto.NewTool("get_channel_balance",
		mcpproto.WithDescription("Get the Lightning channel balance"),
	), mcpSvc.channelBalanceHandler)

	s.AddTool(mcpproto.NewTool("list_channels",
		mcpproto.WithDescription("List the node's Lightning channels"),
	), mcpSvc.listChannelsHandler)

	s.AddTool(mcpproto.NewTool("open_channel",
		mcpproto.WithDescription("Open a Lightning channel to a peer"),
		mcpproto.WithString("pubkey", mcpproto.Required(), mcpproto.Description("Compressed public key of the peer, hex encoded")),
		mcpproto.WithNumber("local_amount_sat", mcpproto.Required(), mcpproto.Description("Channel funding amount in satoshis")),
		mcpproto.WithNumber("push_amount_sat", mcpproto.Description("Amount given to the peer on open")),
		mcpproto.WithBoolean("private", mcpproto.Description("Do not announce the channel")),
	), mcpSvc.openChannelHandler)

	s.AddTool(mcpproto.NewTool("close_channel",
		mcpproto.WithDescription("Close a Lightning channel"),
		mcpproto.WithString("channel_id", mcpproto.Required(), mcpproto.Description("Channel point or id as listed by list_channels")),
		mcpproto.WithBoolean("force", mcpproto.Description("Force close an unresponsive peer")),
	), mcpSvc.closeChannelHandler)

	s.AddResource(mcpproto.NewResource(NodeInfoResourceURI, "Node info",
		mcpproto.WithResourceDescription("Identity, network and capabilities of the active Lightning backend"),
		mcpproto.WithMIMEType("application/json"),
	), mcpSvc.nodeInfoResourceHandler)
}

func (mcpSvc *MCPService) createInvoiceHandler(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	amountSat, err := requireSat(req, "amount_sat")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	expirySeconds, err := optionalSat(req, "expiry_seconds")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	createRequest := &api.CreateInvoiceRequest{
		AmountSat: amountSat,
		Memo:      req.GetString("memo", ""),
	}
	if expirySeconds != nil {
		createRequest.ExpirySeconds = int64(*expirySeconds)
	}

	invoice, err := mcpSvc.api.CreateInvoice(ctx, createRequest)
	return toolResult("create_invoice", invoice, err)
}

func (mcpSvc *MCPService) payInvoiceHandler(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	invoice, err := req.RequireString("invoice")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	amountSat, err := optionalSat(req, "amount_sat")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	feeLimitSat, err := optionalSat(req, "fee_limit_sat")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	payment, err := mcpSvc.api.PayInvoice(ctx, &api.PayInvoiceRequest{
		Invoice:     invoice,
		AmountSat:   amountSat,
		FeeLimitSat: feeLimitSat,
	})
	if err != nil && lnclient.KindOf(err) == lnclient.KindTimedOut && payment != nil {
		// the agent should poll get_payment_status instead of paying again
		return jsonResult(map[string]any{
			"payment": payment,
			"kind":    lnclient.KindTimedOut,
			"message": err.Error(),
		})
	}
	return toolResult("pay_invoice", payment, err)
}

func (mcpSvc *MCPService) paymentStatusHandler(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	paymentHash, err := req.RequireString("payment_hash")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	if req.GetBool("wait", false) {
		payment, err := mcpSvc.api.AwaitPayment(ctx, paymentHash)
		return toolResult("get_payment_status", payment, err)
	}

	status, err := mcpSvc.api.GetPaymentStatus(ctx, paymentHash)
	return toolResult("get_payment_status", status, err)
}

func (mcpSvc *MCPService) walletBalanceHandler(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	balance, err := mcpSvc.api.GetWalletBalance(ctx)
	return toolResult("get_wallet_balance", balance, err)
}

func (mcpSvc *MCPService) channelBalanceHandler(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	balance, err := mcpSvc.api.GetChannelBalance(ctx)
	return toolResult("get_channel_balance", balance, err)
}

func (mcpSvc *MCPService) listChannelsHandler(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	channels, err := mcpSvc.api.ListChannels(ctx)
	return toolResult("list_channels", channels, err)
}

func (mcpSvc *MCPService) openChannelHandler(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	pubkey, err := req.RequireString("pubkey")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	localAmtSat, err := requireSat(req, "local_amount_sat")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	pushAmtSat, err := optionalSat(req, "push_amount_sat")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	openRequest := &api.OpenChannelRequest{
		Pubkey:      pubkey,
		LocalAmtSat: localAmtSat,
		Private:     req.GetBool("private", false),
	}
	if pushAmtSat != nil {
		openRequest.PushAmtSat = *pushAmtSat
	}

	channel, err := mcpSvc.api.OpenChannel(ctx, openRequest)
	return toolResult("open_channel", channel, err)
}

func (mcpSvc *MCPService) closeChannelHandler(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	response, err := mcpSvc.api.CloseChannel(ctx, channelID, req.GetBool("force", false))
	return toolResult("close_channel", response, err)
}

func (mcpSvc *MCPService) nodeInfoResourceHandler(ctx context.Context, req mcpproto.ReadResourceRequest) ([]mcpproto.ResourceContents, error) {
	nodeInfo, err := mcpSvc.api.GetNodeInfo(ctx)
	if err != nil {
		return nil, err
	}
	resource := nodeInfoResource{NodeInfo: nodeInfo}
	// custodial backends have no channels to count
	if channels, err := mcpSvc.api.ListChannels(ctx); err == nil {
		count := len(channels)
		resource.ChannelCount = &count
	}
	body, err := json.Marshal(resource)
	if err != nil {
		return nil, err
	}
	return []mcpproto.ResourceContents{
		mcpproto.TextResourceContents{
			URI:      NodeInfoResourceURI,
			MIMEType: "application/json",
			Text:     string(body),
		},
	}, nil
}

type nodeInfoResource struct {
	*wallet.NodeInfo
	ChannelCount *int `json:"channelCount,omitempty"`
}

// toolResult reports gateway errors as tool errors carrying the error kind,
// so an agent can tell a policy rejection from an unreachable node.
func toolResult(tool string, value any, err error) (*mcpproto.CallToolResult, error) {
	if err != nil {
		logger.Logger.Info().Err(err).Str("tool", tool).Msg("MCP tool call failed")
		body, marshalErr := json.Marshal(api.NewErrorResponse(err))
		if marshalErr != nil {
			return nil, marshalErr
		}
		return mcpproto.NewToolResultError(string(body)), nil
	}
	return jsonResult(value)
}

func jsonResult(value any) (*mcpproto.CallToolResult, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return mcpproto.NewToolResultText(string(body)), nil
}

// JSON numbers arrive as float64
func requireSat(req mcpproto.CallToolRequest, name string) (uint64, error) {
	value, err := req.RequireFloat(name)
	if err != nil {
		return 0, err
	}
	return toSat(name, value)
}

func optionalSat(req mcpproto.CallToolRequest, name string) (*uint64, error) {
	if _, ok := req.GetArguments()[name]; !ok {
		return nil, nil
	}
	value, err := req.RequireFloat(name)
	if err != nil {
		return nil, err
	}
	sat, err := toSat(name, value)
	if err != nil {
		return nil, err
	}
	return &sat, nil
}

func toSat(name string, value float64) (uint64, error) {
	if value < 0 || value != float64(uint64(value)) {
		return 0, fmt.Errorf("%s must be a whole non-negative number", name)
	}
	return uint64(value), nil
}
