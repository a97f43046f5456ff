package board

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/vocautobot/vockanban/internal/eventbus"
	"github.com/vocautobot/vockanban/internal/kanban"
	"github.com/vocautobot/vockanban/pkg/cerr"
	"github.com/vocautobot/vockanban/pkg/clog"
)

var _ BoardServiceHandler = (*Server)(nil)

const eventBuffer = 64

var errSessionNotFound = cerr.NewError(cerr.NotFound, "board session not found", nil)

type Server struct {
	board    *kanban.Board
	sessions *SessionRegistry
	eventBus *eventbus.Bus
}

func NewServer(board *kanban.Board, sessions *SessionRegistry, eventBus *eventbus.Bus) *Server {
	return &Server{
		board:    board,
		sessions: sessions,
		eventBus: eventBus,
	}
}

func (s *Server) OpenSession(ctx context.Context, _ *connect.Request[OpenSessionRequest]) (*connect.Response[OpenSessionResponse], error) {
	id := s.sessions.Open()
	clog.AddAttribute(ctx, clog.SessionIDKey, id)
	return connect.NewResponse(&OpenSessionResponse{SessionID: id}), nil
}

func (s *Server) CloseSession(ctx context.Context, req *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error) {
	clog.AddAttribute(ctx, clog.SessionIDKey, req.Msg.SessionID)
	if !s.sessions.Close(req.Msg.SessionID) {
		return nil, errSessionNotFound
	}
	return connect.NewResponse(&CloseSessionResponse{}), nil
}

func (s *Server) GetBoard(_ context.Context, req *connect.Request[GetBoardRequest]) (*connect.Response[GetBoardResponse], error) {
	resp := &GetBoardResponse{Columns: s.columns()}
	if req.Msg.SessionID != "" {
		drag, err := s.session(req.Msg.SessionID)
		if err != nil {
			return nil, err
		}
		v := dragView(drag.Snapshot())
		resp.Drag = &v
	}
	return connect.NewResponse(resp), nil
}

// Columns returns the board lanes with per-ticket pending flags.
func (s *Server) Columns() []ColumnView {
	return s.columns()
}

// Ticket returns one card with its pending flag.
func (s *Server) Ticket(id int64) (*TicketView, error) {
	t, ok := s.board.Ticket(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", kanban.ErrTicketNotFound, id)
	}
	return &TicketView{Ticket: *t, Pending: s.board.IsPending(id)}, nil
}

func (s *Server) columns() []ColumnView {
	groups := s.board.Columns()
	views := make([]ColumnView, 0, len(groups))
	for _, g := range groups {
		cv := ColumnView{Column: string(g.Column), Label: g.Column.Label(), Tickets: make([]TicketView, 0, len(g.Tickets))}
		for _, t := range g.Tickets {
			cv.Tickets = append(cv.Tickets, TicketView{Ticket: *t, Pending: s.board.IsPending(t.ID)})
		}
		views = append(views, cv)
	}
	return views
}

func (s *Server) BeginDrag(ctx context.Context, req *connect.Request[BeginDragRequest]) (*connect.Response[DragResponse], error) {
	clog.AddAttribute(ctx, clog.SessionIDKey, req.Msg.SessionID)
	clog.AddTicket(ctx, req.Msg.TicketID)
	drag, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	if err := drag.Begin(req.Msg.TicketID); err != nil {
		return nil, err
	}
	return connect.NewResponse(&DragResponse{Drag: dragView(drag.Snapshot())}), nil
}

func (s *Server) DragOver(_ context.Context, req *connect.Request[DragOverRequest]) (*connect.Response[DragResponse], error) {
	drag, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	var col kanban.Column
	if req.Msg.Column != "" {
		if col, err = parseColumn(req.Msg.Column); err != nil {
			return nil, err
		}
	}
	if err := drag.Over(col); err != nil {
		return nil, err
	}
	return connect.NewResponse(&DragResponse{Drag: dragView(drag.Snapshot())}), nil
}

func (s *Server) CancelDrag(_ context.Context, req *connect.Request[CancelDragRequest]) (*connect.Response[DragResponse], error) {
	drag, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	drag.Cancel()
	return connect.NewResponse(&DragResponse{Drag: dragView(drag.Snapshot())}), nil
}

func (s *Server) Drop(ctx context.Context, req *connect.Request[DropRequest]) (*connect.Response[TransitionResponse], error) {
	clog.AddAttributes(ctx, map[string]any{clog.SessionIDKey: req.Msg.SessionID, clog.ColumnKey: req.Msg.Column})
	drag, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	col, err := parseColumn(req.Msg.Column)
	if err != nil {
		drag.Cancel()
		return nil, err
	}
	res, err := s.board.Drop(ctx, drag, col, req.Msg.RejectReason)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(s.transition(ctx, res)), nil
}

func (s *Server) MoveTicket(ctx context.Context, req *connect.Request[MoveTicketRequest]) (*connect.Response[TransitionResponse], error) {
	clog.AddTicket(ctx, req.Msg.TicketID)
	clog.AddAttribute(ctx, clog.ColumnKey, req.Msg.Column)
	col, err := parseColumn(req.Msg.Column)
	if err != nil {
		return nil, err
	}
	res, err := s.board.Move(ctx, kanban.Move{
		TicketID:       req.Msg.TicketID,
		Column:         col,
		ProcessingNote: req.Msg.ProcessingNote,
		RejectReason:   req.Msg.RejectReason,
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(s.transition(ctx, res)), nil
}

func (s *Server) GetPending(_ context.Context, req *connect.Request[GetPendingRequest]) (*connect.Response[GetPendingResponse], error) {
	ids := s.board.Engine().PendingTickets()
	resp := &GetPendingResponse{TicketIDs: ids}
	if req.Msg.TicketID != 0 {
		if _, ok := s.board.Ticket(req.Msg.TicketID); !ok {
			return nil, fmt.Errorf("%w: %d", kanban.ErrTicketNotFound, req.Msg.TicketID)
		}
		resp.Pending = s.board.IsPending(req.Msg.TicketID)
	} else {
		resp.Pending = len(ids) > 0
	}
	return connect.NewResponse(resp), nil
}

func (s *Server) Refresh(ctx context.Context, _ *connect.Request[RefreshRequest]) (*connect.Response[RefreshResponse], error) {
	n, err := s.board.Refresh(ctx)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "failed to reload tickets from the VOC backend", err)
	}
	return connect.NewResponse(&RefreshResponse{Tickets: n}), nil
}

func (s *Server) SubscribeEvents(ctx context.Context, req *connect.Request[SubscribeEventsRequest], stream *connect.ServerStream[Event]) error {
	subID, ch := s.eventBus.Subscribe(eventBuffer)
	defer s.eventBus.Unsubscribe(subID)

	types := make([]eventbus.Type, 0, len(req.Msg.Types))
	for _, t := range req.Msg.Types {
		types = append(types, eventbus.Type(t))
	}
	ticketID := req.Msg.TicketID

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if len(types) > 0 && !slices.Contains(types, event.Type) {
				continue
			}
			// board-wide events reach every subscriber
			if ticketID != 0 && event.TicketID != 0 && event.TicketID != ticketID {
				continue
			}
			if err := stream.Send(event); err != nil {
				return err
			}
		}
	}
}

// SweepSessions closes idle sessions every interval until ctx ends.
func (s *Server) SweepSessions(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(maxIdle); n > 0 {
				slog.InfoContext(ctx, "closed idle board sessions", "count", n)
			}
		}
	}
}

// parseColumn attaches the accepted column names as a violation detail.
func parseColumn(raw string) (kanban.Column, error) {
	col, err := kanban.ParseColumn(raw)
	if err != nil {
		names := make([]string, len(kanban.Columns))
		for i, c := range kanban.Columns {
			names[i] = string(c)
		}
		return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown column %q", raw), err).
			AddDetailMessageWithCode("column must be one of "+strings.Join(names, ", "), "column.in")
	}
	return col, nil
}

func (s *Server) session(id string) (*kanban.DragSession, error) {
	drag, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	return drag, nil
}

// transition also tags the request log line with the ticket and its outcome.
func (s *Server) transition(ctx context.Context, res kanban.Result) *TransitionResponse {
	clog.AddTicket(ctx, res.TicketID)
	clog.AddAttribute(ctx, clog.OutcomeKey, res.Outcome.String())
	return transitionResponse(res, s.board.IsPending(res.TicketID))
}
