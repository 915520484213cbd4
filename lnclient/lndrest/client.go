package lndrest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/utils"
)

const MACAROON_HEADER = "Grpc-Metadata-macaroon"

var (
	marshalOptions   = protojson.MarshalOptions{UseProtoNames: true}
	unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}
)

// restError is the error body of LND's REST proxy, both for unary calls and
// inside streamed responses.
type restError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *restError) grpcError() error {
	return status.Error(codes.Code(e.Code), e.Message)
}

type streamLine struct {
	Result json.RawMessage `json:"result"`
	Error  *restError      `json:"error"`
}

// restClient talks to LND's REST proxy. Request and response bodies are the
// protojson form of the lnrpc messages.
type restClient struct {
	baseURL     string
	macaroonHex string
	httpClient  *http.Client
}

func newHTTPClient(certPath string) (*http.Client, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if certPath != "" {
		pem, err := utils.ReadCredentialFile(certPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse TLS cert")
		}
		tlsConfig.RootCAs = pool
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func readMacaroonHex(path string) (string, error) {
	macBytes, err := utils.ReadCredentialFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read macaroon: %w", err)
	}
	return hex.EncodeToString(macBytes), nil
}

func (c *restClient) newRequest(ctx context.Context, method, path string, body proto.Message) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := marshalOptions.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.baseURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(MACAROON_HEADER, c.macaroonHex)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *restClient) do(ctx context.Context, method, path string, body proto.Message) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, lnclient.WrapError(lnclient.KindBackendError, err, "failed to build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, lnclient.FromTransport(err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}
	return resp, nil
}

// call performs a unary request and decodes the response into out.
func (c *restClient) call(ctx context.Context, method, path string, body proto.Message, out proto.Message) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return lnclient.FromTransport(err)
	}
	if err := unmarshalOptions.Unmarshal(payload, out); err != nil {
		return lnclient.WrapError(lnclient.KindBackendConnectionError, err, "failed to decode %s response", path)
	}
	return nil
}

// stream opens a server-streaming endpoint. next decodes one message into
// out; the caller closes the returned body.
func (c *restClient) stream(ctx context.Context, method, path string, body proto.Message) (io.ReadCloser, func(out proto.Message) error, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, nil, err
	}

	decoder := json.NewDecoder(resp.Body)
	next := func(out proto.Message) error {
		var line streamLine
		if err := decoder.Decode(&line); err != nil {
			if ctx.Err() != nil {
				return lnclient.FromTransport(ctx.Err())
			}
			return lnclient.FromTransport(err)
		}
		if line.Error != nil {
			return line.Error.grpcError()
		}
		if err := unmarshalOptions.Unmarshal(line.Result, out); err != nil {
			return lnclient.WrapError(lnclient.KindBackendConnectionError, err, "failed to decode stream message")
		}
		return nil
	}
	return resp.Body, next, nil
}

// responseError turns a non-2xx response into a gRPC status when the body
// carries one, so both LND adapters classify errors the same way.
func responseError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var restErr restError
	if err := json.Unmarshal(payload, &restErr); err == nil && restErr.Message != "" {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return lnclient.FromHTTP(resp.StatusCode, payload)
		}
		return restErr.grpcError()
	}
	return lnclient.FromHTTP(resp.StatusCode, payload)
}
