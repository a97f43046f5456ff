package cerr

import (
	"context"
	"errors"
	"net"

	"connectrpc.com/connect"

	"github.com/vocautobot/vockanban/pkg/clog"
)

// NewConvertConnectErrorInterceptor turns handler errors into connect errors
// so that every RPC failure reaches the caller with a code and a safe
// message; the underlying error stays in the request's log attributes.
func NewConvertConnectErrorInterceptor() connect.Interceptor {
	return convertInterceptor{}
}

type convertInterceptor struct{}

func (convertInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		resp, err := next(ctx, req)
		if req.Spec().IsClient {
			return resp, err
		}
		return resp, ExtractConnectError(ctx, err)
	}
}

func (convertInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (convertInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		return ExtractConnectError(ctx, next(ctx, conn))
	}
}

// ExtractConnectError converts err for the wire. Caller cancellation and an
// expired deadline keep their own codes; any other error that is not an
// *Error is reported as Unknown.
func ExtractConnectError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	clog.AddError(ctx, err)
	var cerr *Error
	switch {
	case errors.As(err, &cerr):
		if cerr.Stack != "" {
			clog.AddStack(ctx, cerr.Stack)
		}
		return cerr.ConnectError()
	case isCanceled(err):
		return NewError(Canceled, "connection closed", err).ConnectError()
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(DeadlineExceeded, "request timed out", err).ConnectError()
	}
	return NewError(Unknown, "unknown error", err).ConnectError()
}

func isCanceled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.Err == "operation was canceled"
}
