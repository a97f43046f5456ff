package client

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/vocautobot/vockanban/internal/board"
)

// BoardClient provides the operator operations on a running board daemon.
type BoardClient struct {
	client *board.BoardServiceClient
}

// NewBoardClient creates a client for the daemon at baseURL. A non-empty
// apiKey is sent as a Bearer token on every call.
func NewBoardClient(httpClient connect.HTTPClient, baseURL, apiKey string) *BoardClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var opts []connect.ClientOption
	if apiKey != "" {
		opts = append(opts, connect.WithInterceptors(newAPIKeyInterceptor(apiKey)))
	}
	return &BoardClient{
		client: board.NewBoardServiceClient(httpClient, baseURL, opts...),
	}
}

// Board returns the five lanes in display order.
func (c *BoardClient) Board(ctx context.Context) ([]board.ColumnView, error) {
	resp, err := c.client.GetBoard(ctx, connect.NewRequest(&board.GetBoardRequest{}))
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return resp.Msg.Columns, nil
}

// Move drops a ticket onto a column and waits for the backend to settle it.
func (c *BoardClient) Move(ctx context.Context, req *board.MoveTicketRequest) (*board.TransitionResponse, error) {
	resp, err := c.client.MoveTicket(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to move ticket: %w", err)
	}
	return resp.Msg, nil
}

// Pending reports whether ticketID has an unresolved transition. With a zero
// ticketID it reports every pending ticket.
func (c *BoardClient) Pending(ctx context.Context, ticketID int64) (*board.GetPendingResponse, error) {
	resp, err := c.client.GetPending(ctx, connect.NewRequest(&board.GetPendingRequest{TicketID: ticketID}))
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transitions: %w", err)
	}
	return resp.Msg, nil
}

func (c *BoardClient) Refresh(ctx context.Context) (int, error) {
	resp, err := c.client.Refresh(ctx, connect.NewRequest(&board.RefreshRequest{}))
	if err != nil {
		return 0, fmt.Errorf("failed to refresh board: %w", err)
	}
	return resp.Msg.Tickets, nil
}

// Watch streams board events to fn until ctx ends, the stream closes or fn
// returns an error.
func (c *BoardClient) Watch(ctx context.Context, req *board.SubscribeEventsRequest, fn func(*board.Event) error) error {
	stream, err := c.client.SubscribeEvents(ctx, connect.NewRequest(req))
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event stream failed: %w", err)
	}
	return nil
}

type apiKeyInterceptor struct {
	apiKey string
}

func newAPIKeyInterceptor(apiKey string) *apiKeyInterceptor {
	return &apiKeyInterceptor{apiKey: apiKey}
}

func (i *apiKeyInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		req.Header().Set("Authorization", "Bearer "+i.apiKey)
		return next(ctx, req)
	}
}

func (i *apiKeyInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set("Authorization", "Bearer "+i.apiKey)
		return conn
	}
}

func (i *apiKeyInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
