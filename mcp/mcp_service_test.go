package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flokiorg/lngateway/api"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/tests"
	"github.com/flokiorg/lngateway/tests/mocks"
)

func createTestMCPService(t *testing.T) (*MCPService, *mocks.MockLNClient) {
	svc, client := tests.CreateTestService(t)
	return NewMCPService(api.NewAPI(svc), "test"), client
}

func callRequest(name string, arguments map[string]any) mcpproto.CallToolRequest {
	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments
	return req
}

func resultText(t *testing.T, result *mcpproto.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	content, ok := result.Content[0].(mcpproto.TextContent)
	require.True(t, ok)
	return content.Text
}

func TestCreateInvoiceTool(t *testing.T) {
	mcpSvc, client := createTestMCPService(t)

	hash := "1111111111111111111111111111111111111111111111111111111111111111"
	client.EXPECT().CreateInvoice(mock.Anything, &lnclient.CreateInvoiceRequest{
		AmountSat:     1000,
		Memo:          "api credits",
		ExpirySeconds: 600,
	}).Return(&lnclient.Invoice{
		PaymentHash:    hash,
		PaymentRequest: tests.NewTestInvoice(t, hash, 1000, time.Now(), 10*time.Minute),
		AmountSat:      1000,
		Status:         lnclient.InvoiceStatusPending,
	}, nil).Once()

	result, err := mcpSvc.createInvoiceHandler(context.Background(), callRequest("create_invoice", map[string]any{
		"amount_sat":     float64(1000),
		"memo":           "api credits",
		"expiry_seconds": float64(600),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var invoice lnclient.Invoice
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &invoice))
	assert.Equal(t, hash, invoice.PaymentHash)
	assert.Equal(t, uint64(1000), invoice.AmountSat)
}

func TestCreateInvoiceToolRejectsFractionalAmount(t *testing.T) {
	mcpSvc, _ := createTestMCPService(t)

	result, err := mcpSvc.createInvoiceHandler(context.Background(), callRequest("create_invoice", map[string]any{
		"amount_sat": 10.5,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestPayInvoiceTool(t *testing.T) {
	mcpSvc, client := createTestMCPService(t)

	hash := "2222222222222222222222222222222222222222222222222222222222222222"
	bolt11 := tests.NewTestInvoice(t, hash, 200, time.Now(), time.Hour)

	client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(0)).Return(uint64(1), nil).Once()
	client.EXPECT().PayInvoice(mock.Anything, mock.MatchedBy(func(req *lnclient.PayInvoiceRequest) bool {
		// the agent asked for less than the 3% policy cap
		return req.PaymentRequest == bolt11 && req.FeeLimitSat == 2
	})).Return(&lnclient.Payment{
		PaymentHash:  hash,
		Status:       lnclient.PaymentStateSucceeded,
		FeeSat:       1,
		Preimage:     "3333333333333333333333333333333333333333333333333333333333333333",
		AttemptCount: 1,
	}, nil).Once()

	result, err := mcpSvc.payInvoiceHandler(context.Background(), callRequest("pay_invoice", map[string]any{
		"invoice":       bolt11,
		"fee_limit_sat": float64(2),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payment lnclient.Payment
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payment))
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	assert.Equal(t, uint64(200), payment.AmountSat)
}

func TestPayInvoiceToolPolicyRejection(t *testing.T) {
	mcpSvc, _ := createTestMCPService(t)

	bolt11 := tests.NewTestInvoice(t, "4444444444444444444444444444444444444444444444444444444444444444", 5, time.Now(), time.Hour)

	result, err := mcpSvc.payInvoiceHandler(context.Background(), callRequest("pay_invoice", map[string]any{
		"invoice": bolt11,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var errorResponse api.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &errorResponse))
	assert.Equal(t, lnclient.KindPolicyViolation, errorResponse.Kind)
	assert.Equal(t, lnclient.KindBelowMinimum, errorResponse.Reason)
}

func TestPayInvoiceToolMissingInvoice(t *testing.T) {
	mcpSvc, _ := createTestMCPService(t)

	result, err := mcpSvc.payInvoiceHandler(context.Background(), callRequest("pay_invoice", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestPaymentStatusToolUnknownHash(t *testing.T) {
	mcpSvc, client := createTestMCPService(t)

	hash := "5555555555555555555555555555555555555555555555555555555555555555"
	client.EXPECT().GetPaymentStatus(mock.Anything, hash).Return(nil, lnclient.NewNotFoundError("payment "+hash)).Once()

	result, err := mcpSvc.paymentStatusHandler(context.Background(), callRequest("get_payment_status", map[string]any{
		"payment_hash": hash,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(lnclient.KindNotFound))
}

func TestPaymentStatusToolWait(t *testing.T) {
	mcpSvc, client := createTestMCPService(t)

	hash := "6666666666666666666666666666666666666666666666666666666666666666"
	bolt11 := tests.NewTestInvoice(t, hash, 300, time.Now(), time.Hour)
	client.EXPECT().EstimateRouteFee(mock.Anything, bolt11, uint64(0)).Return(uint64(0), nil).Once()
	client.EXPECT().PayInvoice(mock.Anything, mock.Anything).Return(&lnclient.Payment{
		PaymentHash:  hash,
		Status:       lnclient.PaymentStateSucceeded,
		Preimage:     "7777777777777777777777777777777777777777777777777777777777777777",
		AttemptCount: 1,
	}, nil).Once()

	_, err := mcpSvc.payInvoiceHandler(context.Background(), callRequest("pay_invoice", map[string]any{"invoice": bolt11}))
	require.NoError(t, err)

	result, err := mcpSvc.paymentStatusHandler(context.Background(), callRequest("get_payment_status", map[string]any{
		"payment_hash": hash,
		"wait":         true,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payment lnclient.Payment
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payment))
	assert.Equal(t, lnclient.PaymentStateSucceeded, payment.Status)
	assert.Equal(t, uint64(300), payment.AmountSat)
	client.AssertNotCalled(t, "GetPaymentStatus", mock.Anything, mock.Anything)
}

func TestBalanceTools(t *testing.T) {
	mcpSvc, client := createTestMCPService(t)

	client.EXPECT().GetWalletBalance(mock.Anything).Return(&lnclient.WalletBalance{ConfirmedSat: 50_000}, nil).Once()
	result, err := mcpSvc.walletBalanceHandler(context.Background(), callRequest("get_wallet_balance", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var walletBalance lnclient.WalletBalance
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &walletBalance))
	assert.Equal(t, uint64(50_000), walletBalance.ConfirmedSat)

	client.EXPECT().GetChannelBalance(mock.Anything).Return(nil, lnclient.NewError(lnclient.KindBackendUnavailable, "node is down")).Once()
	result, err = mcpSvc.channelBalanceHandler(context.Background(), callRequest("get_channel_balance", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestChannelTools(t *testing.T) {
	mcpSvc, client := createTestMCPService(t)

	client.EXPECT().ListChannels(mock.Anything).Return(nil, nil).Once()
	result, err := mcpSvc.listChannelsHandler(context.Background(), callRequest("list_channels", nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, result))

	client.EXPECT().OpenChannel(mock.Anything, &lnclient.OpenChannelRequest{
		RemotePubkey: tests.MockNodeInfo.Pubkey,
		LocalAmtSat:  100_000,
		PushAmtSat:   1_000,
	}).Return(&lnclient.Channel{ID: "ab:1", RemotePubkey: tests.MockNodeInfo.Pubkey, CapacitySat: 100_000}, nil).Once()
	result, err = mcpSvc.openChannelHandler(context.Background(), callRequest("open_channel", map[string]any{
		"pubkey":           tests.MockNodeInfo.Pubkey,
		"local_amount_sat": float64(100_000),
		"push_amount_sat":  float64(1_000),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	client.EXPECT().CloseChannel(mock.Anything, &lnclient.CloseChannelRequest{ChannelID: "ab:1"}).
		Return(&lnclient.CloseChannelResponse{ChannelID: "ab:1"}, nil).Once()
	result, err = mcpSvc.closeChannelHandler(context.Background(), callRequest("close_channel", map[string]any{
		"channel_id": "ab:1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestNodeInfoResource(t *testing.T) {
	mcpSvc, client := createTestMCPService(t)

	client.EXPECT().ListChannels(mock.Anything).Return([]lnclient.Channel{{ID: "ab:0"}, {ID: "cd:1"}}, nil).Once()

	contents, err := mcpSvc.nodeInfoResourceHandler(context.Background(), mcpproto.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcpproto.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, NodeInfoResourceURI, text.URI)
	assert.Contains(t, text.Text, tests.MockNodeInfo.Pubkey)
	assert.Contains(t, text.Text, "LND")

	var resource map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &resource))
	assert.Equal(t, float64(2), resource["channelCount"])
	assert.Equal(t, "regtest", resource["network"])
}
