package clog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/proto"
)

type connectConfig struct {
	Filter func(spec connect.Spec) bool
}

type ConnectOption interface {
	apply(*connectConfig)
}

type connectOptionFunc func(*connectConfig)

func (o connectOptionFunc) apply(c *connectConfig) {
	o(c)
}

// WithConnectFilter limits the summary line to procedures for which filter
// returns true. Attributes are still collected for every call.
func WithConnectFilter(filter func(connect.Spec) bool) ConnectOption {
	return connectOptionFunc(func(cfg *connectConfig) {
		cfg.Filter = filter
	})
}

// NewSlogConnectInterceptor logs one summary line per handled call. Handlers
// add their own attributes (ticket, session, outcome) to the context, and
// the line carries them.
func NewSlogConnectInterceptor(opts ...ConnectOption) connect.Interceptor {
	cfg := connectConfig{}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return &slogConnectInterceptor{cfg: cfg}
}

type slogConnectInterceptor struct {
	cfg connectConfig
}

func (s *slogConnectInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx = s.begin(ctx, req.Spec())
		AddAttribute(ctx, "method", req.HTTPMethod())
		start := time.Now()
		resp, err := next(ctx, req)
		s.finish(ctx, req.Spec(), start, err)
		return resp, err
	}
}

func (s *slogConnectInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (s *slogConnectInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx = s.begin(ctx, conn.Spec())
		slog.InfoContext(ctx, "Connected")
		start := time.Now()
		err := next(ctx, conn)
		s.finish(ctx, conn.Spec(), start, err)
		return err
	}
}

func (s *slogConnectInterceptor) begin(ctx context.Context, spec connect.Spec) context.Context {
	ctx = ContextWithSlog(ctx)
	AddAttributes(ctx, map[string]any{
		"procedure":   spec.Procedure,
		"stream_type": spec.StreamType.String(),
	})
	return ctx
}

func (s *slogConnectInterceptor) finish(ctx context.Context, spec connect.Spec, start time.Time, err error) {
	if s.cfg.Filter != nil && !s.cfg.Filter(spec) {
		return
	}
	AddAttribute(ctx, "duration", time.Since(start))
	if err == nil {
		AddAttribute(ctx, "code", "ok")
		slog.InfoContext(ctx, "Finished")
		return
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		connectErr = connect.NewError(connect.CodeUnknown, err)
	}
	AddAttribute(ctx, "code", connectErr.Code().String())
	if details := detailMessages(ctx, connectErr); len(details) > 0 {
		AddAttribute(ctx, "err_details", details)
	}
	slog.Log(ctx, ConnectCodeLevel(connectErr.Code()), connectErr.Message())
}

func detailMessages(ctx context.Context, err *connect.Error) []proto.Message {
	var out []proto.Message
	for _, d := range err.Details() {
		msg, derr := d.Value()
		if derr != nil {
			slog.WarnContext(ctx, "failed to decode error detail", "type", d.Type(), ErrorAttributeKey, derr)
			continue
		}
		out = append(out, msg)
	}
	return out
}
