package board

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/vocautobot/vockanban/pkg/rpcjson"
)

const BoardServiceName = "vockanban.v1.BoardService"

const (
	OpenSessionProcedure     = "/" + BoardServiceName + "/OpenSession"
	CloseSessionProcedure    = "/" + BoardServiceName + "/CloseSession"
	GetBoardProcedure        = "/" + BoardServiceName + "/GetBoard"
	BeginDragProcedure       = "/" + BoardServiceName + "/BeginDrag"
	DragOverProcedure        = "/" + BoardServiceName + "/DragOver"
	CancelDragProcedure      = "/" + BoardServiceName + "/CancelDrag"
	DropProcedure            = "/" + BoardServiceName + "/Drop"
	MoveTicketProcedure      = "/" + BoardServiceName + "/MoveTicket"
	GetPendingProcedure      = "/" + BoardServiceName + "/GetPending"
	RefreshProcedure         = "/" + BoardServiceName + "/Refresh"
	SubscribeEventsProcedure = "/" + BoardServiceName + "/SubscribeEvents"
)

type BoardServiceHandler interface {
	OpenSession(context.Context, *connect.Request[OpenSessionRequest]) (*connect.Response[OpenSessionResponse], error)
	CloseSession(context.Context, *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error)
	GetBoard(context.Context, *connect.Request[GetBoardRequest]) (*connect.Response[GetBoardResponse], error)
	BeginDrag(context.Context, *connect.Request[BeginDragRequest]) (*connect.Response[DragResponse], error)
	DragOver(context.Context, *connect.Request[DragOverRequest]) (*connect.Response[DragResponse], error)
	CancelDrag(context.Context, *connect.Request[CancelDragRequest]) (*connect.Response[DragResponse], error)
	Drop(context.Context, *connect.Request[DropRequest]) (*connect.Response[TransitionResponse], error)
	MoveTicket(context.Context, *connect.Request[MoveTicketRequest]) (*connect.Response[TransitionResponse], error)
	GetPending(context.Context, *connect.Request[GetPendingRequest]) (*connect.Response[GetPendingResponse], error)
	Refresh(context.Context, *connect.Request[RefreshRequest]) (*connect.Response[RefreshResponse], error)
	SubscribeEvents(context.Context, *connect.Request[SubscribeEventsRequest], *connect.ServerStream[Event]) error
}

// NewBoardServiceHandler mounts every procedure of svc. Messages travel as
// JSON; the handler always installs the plain-struct codec.
func NewBoardServiceHandler(svc BoardServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, rpcjson.Option())
	mux := http.NewServeMux()
	mux.Handle(OpenSessionProcedure, connect.NewUnaryHandler(OpenSessionProcedure, svc.OpenSession, opts...))
	mux.Handle(CloseSessionProcedure, connect.NewUnaryHandler(CloseSessionProcedure, svc.CloseSession, opts...))
	mux.Handle(GetBoardProcedure, connect.NewUnaryHandler(GetBoardProcedure, svc.GetBoard, opts...))
	mux.Handle(BeginDragProcedure, connect.NewUnaryHandler(BeginDragProcedure, svc.BeginDrag, opts...))
	mux.Handle(DragOverProcedure, connect.NewUnaryHandler(DragOverProcedure, svc.DragOver, opts...))
	mux.Handle(CancelDragProcedure, connect.NewUnaryHandler(CancelDragProcedure, svc.CancelDrag, opts...))
	mux.Handle(DropProcedure, connect.NewUnaryHandler(DropProcedure, svc.Drop, opts...))
	mux.Handle(MoveTicketProcedure, connect.NewUnaryHandler(MoveTicketProcedure, svc.MoveTicket, opts...))
	mux.Handle(GetPendingProcedure, connect.NewUnaryHandler(GetPendingProcedure, svc.GetPending, opts...))
	mux.Handle(RefreshProcedure, connect.NewUnaryHandler(RefreshProcedure, svc.Refresh, opts...))
	mux.Handle(SubscribeEventsProcedure, connect.NewServerStreamHandler(SubscribeEventsProcedure, svc.SubscribeEvents, opts...))
	return "/" + BoardServiceName + "/", mux
}

// BoardServiceClient is the typed client side of BoardService.
type BoardServiceClient struct {
	openSession     *connect.Client[OpenSessionRequest, OpenSessionResponse]
	closeSession    *connect.Client[CloseSessionRequest, CloseSessionResponse]
	getBoard        *connect.Client[GetBoardRequest, GetBoardResponse]
	beginDrag       *connect.Client[BeginDragRequest, DragResponse]
	dragOver        *connect.Client[DragOverRequest, DragResponse]
	cancelDrag      *connect.Client[CancelDragRequest, DragResponse]
	drop            *connect.Client[DropRequest, TransitionResponse]
	moveTicket      *connect.Client[MoveTicketRequest, TransitionResponse]
	getPending      *connect.Client[GetPendingRequest, GetPendingResponse]
	refresh         *connect.Client[RefreshRequest, RefreshResponse]
	subscribeEvents *connect.Client[SubscribeEventsRequest, Event]
}

func NewBoardServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BoardServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append(opts, rpcjson.Option())
	return &BoardServiceClient{
		openSession:     connect.NewClient[OpenSessionRequest, OpenSessionResponse](httpClient, baseURL+OpenSessionProcedure, opts...),
		closeSession:    connect.NewClient[CloseSessionRequest, CloseSessionResponse](httpClient, baseURL+CloseSessionProcedure, opts...),
		getBoard:        connect.NewClient[GetBoardRequest, GetBoardResponse](httpClient, baseURL+GetBoardProcedure, opts...),
		beginDrag:       connect.NewClient[BeginDragRequest, DragResponse](httpClient, baseURL+BeginDragProcedure, opts...),
		dragOver:        connect.NewClient[DragOverRequest, DragResponse](httpClient, baseURL+DragOverProcedure, opts...),
		cancelDrag:      connect.NewClient[CancelDragRequest, DragResponse](httpClient, baseURL+CancelDragProcedure, opts...),
		drop:            connect.NewClient[DropRequest, TransitionResponse](httpClient, baseURL+DropProcedure, opts...),
		moveTicket:      connect.NewClient[MoveTicketRequest, TransitionResponse](httpClient, baseURL+MoveTicketProcedure, opts...),
		getPending:      connect.NewClient[GetPendingRequest, GetPendingResponse](httpClient, baseURL+GetPendingProcedure, opts...),
		refresh:         connect.NewClient[RefreshRequest, RefreshResponse](httpClient, baseURL+RefreshProcedure, opts...),
		subscribeEvents: connect.NewClient[SubscribeEventsRequest, Event](httpClient, baseURL+SubscribeEventsProcedure, opts...),
	}
}

func (c *BoardServiceClient) OpenSession(ctx context.Context, req *connect.Request[OpenSessionRequest]) (*connect.Response[OpenSessionResponse], error) {
	return c.openSession.CallUnary(ctx, req)
}

func (c *BoardServiceClient) CloseSession(ctx context.Context, req *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error) {
	return c.closeSession.CallUnary(ctx, req)
}

func (c *BoardServiceClient) GetBoard(ctx context.Context, req *connect.Request[GetBoardRequest]) (*connect.Response[GetBoardResponse], error) {
	return c.getBoard.CallUnary(ctx, req)
}

func (c *BoardServiceClient) BeginDrag(ctx context.Context, req *connect.Request[BeginDragRequest]) (*connect.Response[DragResponse], error) {
	return c.beginDrag.CallUnary(ctx, req)
}

func (c *BoardServiceClient) DragOver(ctx context.Context, req *connect.Request[DragOverRequest]) (*connect.Response[DragResponse], error) {
	return c.dragOver.CallUnary(ctx, req)
}

func (c *BoardServiceClient) CancelDrag(ctx context.Context, req *connect.Request[CancelDragRequest]) (*connect.Response[DragResponse], error) {
	return c.cancelDrag.CallUnary(ctx, req)
}

func (c *BoardServiceClient) Drop(ctx context.Context, req *connect.Request[DropRequest]) (*connect.Response[TransitionResponse], error) {
	return c.drop.CallUnary(ctx, req)
}

func (c *BoardServiceClient) MoveTicket(ctx context.Context, req *connect.Request[MoveTicketRequest]) (*connect.Response[TransitionResponse], error) {
	return c.moveTicket.CallUnary(ctx, req)
}

func (c *BoardServiceClient) GetPending(ctx context.Context, req *connect.Request[GetPendingRequest]) (*connect.Response[GetPendingResponse], error) {
	return c.getPending.CallUnary(ctx, req)
}

func (c *BoardServiceClient) Refresh(ctx context.Context, req *connect.Request[RefreshRequest]) (*connect.Response[RefreshResponse], error) {
	return c.refresh.CallUnary(ctx, req)
}

func (c *BoardServiceClient) SubscribeEvents(ctx context.Context, req *connect.Request[SubscribeEventsRequest]) (*connect.ServerStreamForClient[Event], error) {
	return c.subscribeEvents.CallServerStream(ctx, req)
}
