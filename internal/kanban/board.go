package kanban

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/vocautobot/vockanban/internal/eventbus"
	"github.com/vocautobot/vockanban/internal/voc"
)

// Board is the rendering boundary: lanes to draw, drag sessions to drive and
// pending flags for the cards. All sessions share one store and engine.
type Board struct {
	engine    *Engine
	store     *Store
	lister    TicketLister
	publisher Publisher
	logger    *slog.Logger

	lockTerminal      bool
	refreshOnConflict bool
}

type BoardOption func(*Board)

func WithLockTerminal(lock bool) BoardOption {
	return func(b *Board) { b.lockTerminal = lock }
}

func WithRefreshOnConflict(refresh bool) BoardOption {
	return func(b *Board) { b.refreshOnConflict = refresh }
}

func WithBoardPublisher(p Publisher) BoardOption {
	return func(b *Board) { b.publisher = p }
}

func WithBoardLogger(l *slog.Logger) BoardOption {
	return func(b *Board) { b.logger = l }
}

func NewBoard(engine *Engine, lister TicketLister, opts ...BoardOption) *Board {
	b := &Board{
		engine:            engine,
		store:             engine.Store(),
		lister:            lister,
		logger:            slog.Default(),
		lockTerminal:      true,
		refreshOnConflict: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Board) Engine() *Engine {
	return b.engine
}

// NewSession returns a drag session bound to this board.
func (b *Board) NewSession() *DragSession {
	return NewDragSession(b.store, WithTerminalLock(b.lockTerminal))
}

func (b *Board) Columns() []ColumnGroup {
	return b.store.Columns()
}

func (b *Board) Ticket(id int64) (*voc.Ticket, bool) {
	return b.store.Get(id)
}

func (b *Board) IsPending(id int64) bool {
	return b.engine.IsPending(id)
}

// Refresh re-runs the ticket list fetch and replaces the store contents.
func (b *Board) Refresh(ctx context.Context) (int, error) {
	tickets, err := b.lister.ListTickets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	if skipped := b.store.Load(tickets); len(skipped) > 0 {
		b.logger.WarnContext(ctx, "skipped tickets without a known status", "ticket_ids", skipped)
	}
	n := b.store.Len()
	b.logger.InfoContext(ctx, "board reloaded", "tickets", n)
	if b.publisher != nil {
		b.publisher.PublishNew(eventbus.BoardReloaded, 0, map[string]string{"tickets": strconv.Itoa(n)})
	}
	return n, nil
}

// Drop ends the session's gesture on target and waits for the transition.
// The session is idle again before the backend call starts.
func (b *Board) Drop(ctx context.Context, s *DragSession, target Column, rejectReason string) (Result, error) {
	g, err := s.Drop(target)
	if err != nil {
		return Result{}, err
	}
	return b.Move(ctx, Move{TicketID: g.TicketID, Column: g.TargetColumn, RejectReason: rejectReason})
}

// Move runs a transition without a drag gesture. A conflict reported by the
// backend triggers a reload when the board is configured for it.
func (b *Board) Move(ctx context.Context, m Move) (Result, error) {
	if m.Column != ColumnClosed {
		m.RejectReason = ""
	}
	res, err := b.engine.Attempt(ctx, m)
	if err != nil {
		return res, err
	}
	if res.Conflict && b.refreshOnConflict {
		if _, err := b.Refresh(ctx); err != nil {
			b.logger.WarnContext(ctx, "failed to reload board after conflict", "ticket_id", m.TicketID, "error", err)
		} else {
			res.Ticket, _ = b.store.Get(m.TicketID)
		}
	}
	return res, nil
}
