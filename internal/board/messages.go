package board

import (
	"github.com/vocautobot/vockanban/internal/eventbus"
	"github.com/vocautobot/vockanban/internal/kanban"
	"github.com/vocautobot/vockanban/internal/voc"
)

type OpenSessionRequest struct{}

type OpenSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type CloseSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type CloseSessionResponse struct{}

type GetBoardRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

type GetBoardResponse struct {
	Columns []ColumnView `json:"columns"`
	Drag    *DragView    `json:"drag,omitempty"`
}

type ColumnView struct {
	Column  string       `json:"column"`
	Label   string       `json:"label"`
	Tickets []TicketView `json:"tickets"`
}

type TicketView struct {
	voc.Ticket
	Pending bool `json:"pending"`
}

type DragView struct {
	State        string `json:"state"`
	TicketID     int64  `json:"ticketId,omitempty"`
	SourceColumn string `json:"sourceColumn,omitempty"`
	OverColumn   string `json:"overColumn,omitempty"`
}

type BeginDragRequest struct {
	SessionID string `json:"sessionId"`
	TicketID  int64  `json:"ticketId"`
}

type DragOverRequest struct {
	SessionID string `json:"sessionId"`
	Column    string `json:"column"`
}

type CancelDragRequest struct {
	SessionID string `json:"sessionId"`
}

// DragResponse answers every gesture call with the session's new state.
type DragResponse struct {
	Drag DragView `json:"drag"`
}

type DropRequest struct {
	SessionID    string `json:"sessionId"`
	Column       string `json:"column"`
	RejectReason string `json:"rejectReason,omitempty"`
}

type MoveTicketRequest struct {
	TicketID       int64  `json:"ticketId"`
	Column         string `json:"column"`
	ProcessingNote string `json:"processingNote,omitempty"`
	RejectReason   string `json:"rejectReason,omitempty"`
}

type TransitionResponse struct {
	Outcome  string      `json:"outcome"`
	TicketID int64       `json:"ticketId"`
	From     string      `json:"from"`
	To       string      `json:"to"`
	Ticket   *TicketView `json:"ticket,omitempty"`
	Message  string      `json:"message,omitempty"`
	Conflict bool        `json:"conflict,omitempty"`
}

type GetPendingRequest struct {
	// TicketID zero asks for every pending ticket.
	TicketID int64 `json:"ticketId,omitempty"`
}

type GetPendingResponse struct {
	Pending   bool    `json:"pending"`
	TicketIDs []int64 `json:"ticketIds"`
}

type RefreshRequest struct{}

type RefreshResponse struct {
	Tickets int `json:"tickets"`
}

type SubscribeEventsRequest struct {
	TicketID int64    `json:"ticketId,omitempty"`
	Types    []string `json:"types,omitempty"`
}

type Event = eventbus.Event

func dragView(s kanban.DragSnapshot) DragView {
	return DragView{
		State:        s.State.String(),
		TicketID:     s.TicketID,
		SourceColumn: string(s.SourceColumn),
		OverColumn:   string(s.OverColumn),
	}
}

func transitionResponse(r kanban.Result, pending bool) *TransitionResponse {
	resp := &TransitionResponse{
		Outcome:  r.Outcome.String(),
		TicketID: r.TicketID,
		From:     string(r.From),
		To:       string(r.To),
		Message:  r.Message,
		Conflict: r.Conflict,
	}
	if r.Ticket != nil {
		resp.Ticket = &TicketView{Ticket: *r.Ticket, Pending: pending}
	}
	return resp
}
