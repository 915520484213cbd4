package lnclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// phrases reported by LND, Core Lightning and LNbits for the same conditions.
// Order matters: the generic invoice phrases come last. Timeouts are not
// classified here; only the payment orchestrator decides an outcome is unknown.
var messageKinds = []struct {
	kind    ErrorKind
	phrases []string
}{
	{KindInvoiceExpired, []string{"invoice expired", "invoice is expired", "invoice has expired"}},
	{KindDuplicatePayment, []string{"already paid", "invoice is already paid", "payment is in transition", "already succeeded"}},
	{KindInsufficientFunds, []string{"insufficient", "not enough", "insufficient_balance", "cannot afford"}},
	{KindFeeTooHigh, []string{"fee exceeds", "fee limit", "route too expensive", "too expensive"}},
	{KindNotFound, []string{"not found", "unable to find", "unknown channel", "no such", "unable to locate", "isn't initiated", "no payment", "does not exist"}},
	{KindInvalidPubkey, []string{"pubkey", "public key", "node id", "invalid id"}},
	{KindInvalidInvoiceFormat, []string{"invalid bolt11", "invalid payment request", "payment request", "checksum", "bech32", "invoice", "bolt11"}},
}

// ClassifyMessage maps a backend error message to a kind. Unrecognized
// messages become BackendError.
func ClassifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, mk := range messageKinds {
		for _, phrase := range mk.phrases {
			if strings.Contains(lower, phrase) {
				return mk.kind
			}
		}
	}
	return KindBackendError
}

// FromGRPC normalizes an error returned by a gRPC call.
func FromGRPC(err error) error {
	if err == nil {
		return nil
	}
	var lnErr *Error
	if errors.As(err, &lnErr) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return FromTransport(err)
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Aborted:
		return WrapError(KindBackendConnectionError, err, "backend unreachable")
	case codes.Unauthenticated, codes.PermissionDenied:
		return WrapError(KindBackendUnavailable, err, "backend rejected credentials")
	case codes.NotFound:
		return WrapError(KindNotFound, err, "%s", st.Message())
	case codes.Unimplemented:
		return WrapError(KindNotSupported, err, "%s", st.Message())
	case codes.ResourceExhausted:
		return WrapError(KindBackendConnectionError, err, "%s", st.Message())
	default:
		return WrapError(ClassifyMessage(st.Message()), err, "%s", st.Message())
	}
}

// FromHTTP normalizes a non-2xx response of an HTTP backend.
func FromHTTP(statusCode int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	err := fmt.Errorf("http %d: %s", statusCode, msg)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return WrapError(KindBackendUnavailable, err, "backend rejected credentials")
	case statusCode == http.StatusNotFound:
		kind := ClassifyMessage(msg)
		if kind == KindBackendError {
			kind = KindNotFound
		}
		return WrapError(kind, err, "not found")
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests:
		return WrapError(KindBackendConnectionError, err, "backend busy")
	case statusCode == http.StatusNotImplemented:
		return WrapError(KindNotSupported, err, "not implemented by backend")
	case statusCode >= 500:
		// LND's REST proxy reports most RPC rejections as 500 with a message
		kind := ClassifyMessage(msg)
		if kind == KindBackendError {
			kind = KindBackendConnectionError
		}
		return WrapError(kind, err, "backend error")
	default:
		return WrapError(ClassifyMessage(msg), err, "backend rejected request")
	}
}

// FromTransport normalizes network level failures: dial errors, resets and
// deadlines all mean the backend could not be reached. Only dial failures are
// marked NotSent; a reset may come after the backend read the request.
func FromTransport(err error) error {
	if err == nil {
		return nil
	}
	var lnErr *Error
	if errors.As(err, &lnErr) {
		return err
	}

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ENOENT), errors.Is(err, os.ErrNotExist):
		return NotSent(WrapError(KindBackendConnectionError, err, "backend unreachable"))
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return NotSent(WrapError(KindBackendConnectionError, err, "backend unreachable"))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return WrapError(KindBackendConnectionError, err, "request aborted")
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return WrapError(KindBackendConnectionError, err, "connection closed")
	case errors.As(err, &opErr), errors.As(err, &netErr):
		return WrapError(KindBackendConnectionError, err, "backend unreachable")
	}
	return WrapError(ClassifyMessage(err.Error()), err, "backend call failed")
}
