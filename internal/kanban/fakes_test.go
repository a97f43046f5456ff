package kanban

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocautobot/vockanban/internal/voc"
)

type backendCall struct {
	TicketID int64
	Change   voc.StatusChange
}

// scriptedBackend answers immediately, through fn when set. Without fn every
// call succeeds with no ticket payload.
type scriptedBackend struct {
	mu    sync.Mutex
	calls []backendCall
	fn    func(ctx context.Context, id int64, change voc.StatusChange) (*voc.Ticket, error)
}

func (b *scriptedBackend) ChangeStatus(ctx context.Context, id int64, change voc.StatusChange) (*voc.Ticket, error) {
	b.mu.Lock()
	b.calls = append(b.calls, backendCall{TicketID: id, Change: change})
	fn := b.fn
	b.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, id, change)
}

func (b *scriptedBackend) Calls() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendCall(nil), b.calls...)
}

type gatedCall struct {
	ctx      context.Context
	TicketID int64
	Change   voc.StatusChange
	reply    chan error
}

// Succeed lets the call return the requested status.
func (c *gatedCall) Succeed() { c.reply <- nil }

func (c *gatedCall) Fail(err error) { c.reply <- err }

// gatedBackend blocks every call until the test answers it.
type gatedBackend struct {
	arrived chan *gatedCall
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{arrived: make(chan *gatedCall, 256)}
}

func (g *gatedBackend) ChangeStatus(ctx context.Context, id int64, change voc.StatusChange) (*voc.Ticket, error) {
	c := &gatedCall{ctx: ctx, TicketID: id, Change: change, reply: make(chan error, 1)}
	g.arrived <- c
	select {
	case err := <-c.reply:
		if err != nil {
			return nil, err
		}
		return &voc.Ticket{ID: id, Status: change.Status, UpdatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fataler interface {
	Fatalf(format string, args ...any)
}

func (g *gatedBackend) next(t fataler) *gatedCall {
	select {
	case c := <-g.arrived:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("backend call did not arrive")
		return nil
	}
}

func (g *gatedBackend) assertIdle(t fataler) {
	select {
	case c := <-g.arrived:
		t.Fatalf("unexpected backend call for ticket %d to %s", c.TicketID, c.Change.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

type staticLister struct {
	mu      sync.Mutex
	tickets []*voc.Ticket
	calls   int
	err     error
}

func (l *staticLister) ListTickets(context.Context) ([]*voc.Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	out := make([]*voc.Ticket, 0, len(l.tickets))
	for _, t := range l.tickets {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (l *staticLister) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func newTicket(id int64, status voc.Status) *voc.Ticket {
	return &voc.Ticket{
		ID:       id,
		TicketID: fmt.Sprintf("VOC-%05d", id),
		Title:    fmt.Sprintf("ticket %d", id),
		Status:   status,
		Priority: voc.PriorityNormal,
	}
}

func loadedStore(tickets ...*voc.Ticket) *Store {
	s := NewStore()
	s.Load(tickets)
	return s
}

func statusOf(s *Store, id int64) voc.Status {
	t, ok := s.Get(id)
	if !ok {
		return ""
	}
	return t.Status
}
