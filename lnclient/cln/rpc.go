package cln

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flokiorg/lngateway/lnclient"
)

// JSON-RPC error codes returned by lightningd
const (
	CODE_INVALID_PARAMS             = -32602
	CODE_PAY_IN_PROGRESS            = 200
	CODE_PAY_RHASH_ALREADY_USED     = 201
	CODE_PAY_DESTINATION_FAIL       = 203
	CODE_PAY_ROUTE_NOT_FOUND        = 205
	CODE_PAY_ROUTE_TOO_EXPENSIVE    = 206
	CODE_PAY_INVOICE_EXPIRED        = 207
	CODE_PAY_UNSPECIFIED_ERROR      = 209
	CODE_PAY_STOPPED_RETRYING       = 210
	CODE_FUND_CANNOT_AFFORD         = 300
	CODE_FUNDING_PEER_NOT_CONNECTED = 301
	CODE_INVOICE_NOT_FOUND          = 902
)

type JsonRpcRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      string      `json:"id"`
}

type JsonRpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JsonRpcError   `json:"error,omitempty"`
	ID      string          `json:"id"`
}

type JsonRpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *JsonRpcError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// rpcClient speaks JSON-RPC 2.0 over the lightning-rpc unix socket, one
// connection per call.
type rpcClient struct {
	socketPath string
	timeout    time.Duration
}

// call sends one request and decodes the result into result. When neither
// ctx nor the client carry a deadline the call may block indefinitely.
func (c *rpcClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	return c.callWithTimeout(ctx, c.timeout, method, params, result)
}

func (c *rpcClient) callWithTimeout(ctx context.Context, timeout time.Duration, method string, params interface{}, result interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return lnclient.FromTransport(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock reads when ctx is cancelled without a deadline
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if params == nil {
		params = map[string]interface{}{}
	}
	request := JsonRpcRequest{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	}
	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return lnclient.FromTransport(err)
	}

	var response JsonRpcResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return lnclient.FromTransport(ctx.Err())
		}
		return lnclient.FromTransport(err)
	}
	if response.ID != request.ID {
		return lnclient.NewError(lnclient.KindBackendConnectionError, "response id %q does not match request %q", response.ID, request.ID)
	}
	if response.Error != nil {
		return response.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(response.Result, result); err != nil {
		// lightningd already ran the command
		return lnclient.WrapError(lnclient.KindBackendConnectionError, err, "failed to decode %s result", method)
	}
	return nil
}

// isTimeout reports whether the call gave up waiting for lightningd.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// normalizeError maps lightningd error codes to gateway error kinds.
func normalizeError(err error) error {
	var rpcErr *JsonRpcError
	if !errors.As(err, &rpcErr) {
		return lnclient.FromTransport(err)
	}

	switch rpcErr.Code {
	case CODE_PAY_IN_PROGRESS, CODE_PAY_RHASH_ALREADY_USED:
		return lnclient.WrapError(lnclient.KindDuplicatePayment, err, "%s", rpcErr.Message)
	case CODE_PAY_ROUTE_TOO_EXPENSIVE:
		return lnclient.WrapError(lnclient.KindFeeTooHigh, err, "%s", rpcErr.Message)
	case CODE_PAY_INVOICE_EXPIRED:
		return lnclient.WrapError(lnclient.KindInvoiceExpired, err, "%s", rpcErr.Message)
	case CODE_FUNDING_PEER_NOT_CONNECTED:
		return lnclient.WrapError(lnclient.KindBackendError, err, "%s", rpcErr.Message)
	case CODE_FUND_CANNOT_AFFORD:
		return lnclient.WrapError(lnclient.KindInsufficientFunds, err, "%s", rpcErr.Message)
	case CODE_INVOICE_NOT_FOUND:
		return lnclient.WrapError(lnclient.KindNotFound, err, "%s", rpcErr.Message)
	default:
		return lnclient.WrapError(lnclient.ClassifyMessage(rpcErr.Message), err, "%s", rpcErr.Message)
	}
}

// isPaymentFailure reports lightningd errors that end a payment attempt for
// good; they are reported as a FAILED payment rather than an error.
func isPaymentFailure(err error) (*JsonRpcError, bool) {
	var rpcErr *JsonRpcError
	if !errors.As(err, &rpcErr) {
		return nil, false
	}
	switch rpcErr.Code {
	case CODE_PAY_DESTINATION_FAIL, CODE_PAY_ROUTE_NOT_FOUND, CODE_PAY_UNSPECIFIED_ERROR, CODE_PAY_STOPPED_RETRYING:
		return rpcErr, true
	}
	return nil, false
}

// Msat accepts both the integer form of current lightningd releases and the
// legacy "1000msat" strings.
type Msat uint64

func (m *Msat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	s = strings.TrimSuffix(s, "msat")
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid msat amount %s: %w", string(data), err)
	}
	*m = Msat(v)
	return nil
}

func (m Msat) Sat() uint64 {
	return uint64(m) / 1000
}
