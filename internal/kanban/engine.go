package kanban

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/vocautobot/vockanban/internal/eventbus"
	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/pkg/cerr"
	"github.com/vocautobot/vockanban/pkg/clog"
	"github.com/vocautobot/vockanban/pkg/panicerr"
)

const DefaultTransitionTimeout = 30 * time.Second

// StatusChanger is the backend status-change command.
type StatusChanger interface {
	ChangeStatus(ctx context.Context, ticketID int64, change voc.StatusChange) (*voc.Ticket, error)
}

// TicketLister is the bulk ticket fetch used to (re)populate the store.
type TicketLister interface {
	ListTickets(ctx context.Context) ([]*voc.Ticket, error)
}

// Publisher receives board events. *eventbus.Bus implements it.
type Publisher interface {
	PublishNew(eventType eventbus.Type, ticketID int64, metadata map[string]string)
}

type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeCommitted
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "IGNORED"
	case OutcomeCommitted:
		return "COMMITTED"
	case OutcomeRolledBack:
		return "ROLLED_BACK"
	}
	return "Outcome(" + strconv.Itoa(int(o)) + ")"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the settled outcome of one drop.
type Result struct {
	Outcome  Outcome
	TicketID int64
	From     voc.Status
	To       voc.Status
	// Ticket is the store's view after reconciliation, nil when the ticket
	// left the store in the meantime.
	Ticket *voc.Ticket
	// Message is the user-facing failure notice for RolledBack.
	Message string
	// Conflict is set when the backend reported a concurrent modification.
	Conflict bool
	Err      error
}

// Move is a drop request with its optional backend annotations.
type Move struct {
	TicketID       int64
	Column         Column
	ProcessingNote string
	RejectReason   string
}

type pendingState int

const (
	pendingInFlight pendingState = iota
	pendingCommitted
	pendingFailed
)

// PendingTransition is an optimistic status change awaiting the backend.
type PendingTransition struct {
	TicketID        int64
	PreviousStatus  voc.Status
	RequestedStatus voc.Status

	change        voc.StatusChange
	token         Token
	previousToken Token
	state         pendingState
	done          chan struct{}
	result        Result
}

// Done is closed once the transition has been reconciled.
func (p *PendingTransition) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the transition settles or ctx ends. The transition keeps
// running when ctx ends first.
func (p *PendingTransition) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Engine applies drops optimistically and reconciles them with the backend.
// Calls for one ticket reach the backend in drop order; different tickets
// never wait on each other.
type Engine struct {
	store     *Store
	backend   StatusChanger
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration
	ordered   bool

	mu      sync.Mutex
	pending map[int64][]*PendingTransition

	wg conc.WaitGroup
}

type EngineOption func(*Engine)

func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithOrderedCalls controls whether a ticket's backend calls wait for the
// previous call on the same ticket. On by default.
func WithOrderedCalls(ordered bool) EngineOption {
	return func(e *Engine) { e.ordered = ordered }
}

func NewEngine(store *Store, backend StatusChanger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		backend: backend,
		logger:  slog.Default(),
		timeout: DefaultTransitionTimeout,
		ordered: true,
		pending: make(map[int64][]*PendingTransition),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Store() *Store {
	return e.store
}

// AttemptDrop moves a ticket to a column and waits for the backend.
func (e *Engine) AttemptDrop(ctx context.Context, ticketID int64, target Column) (Result, error) {
	return e.Attempt(ctx, Move{TicketID: ticketID, Column: target})
}

// Attempt submits m and waits for its outcome. Backend failures are reported
// as RolledBack results; only invalid input returns an error.
func (e *Engine) Attempt(ctx context.Context, m Move) (Result, error) {
	p, err := e.Submit(ctx, m)
	if err != nil {
		return Result{}, err
	}
	return p.Wait(ctx)
}

// Submit applies m to the store and starts the backend call. The returned
// transition is already settled for a same-column drop.
func (e *Engine) Submit(ctx context.Context, m Move) (*PendingTransition, error) {
	status, ok := CanonicalStatus(m.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, m.Column)
	}

	p, prev, err := e.apply(m, status)
	if err != nil {
		return nil, err
	}
	if p.token == 0 {
		return p, nil
	}

	e.logger.DebugContext(ctx, "transition applied",
		clog.TicketIDKey, m.TicketID, clog.FromKey, p.PreviousStatus, clog.ToKey, p.RequestedStatus, "token", p.token)
	e.publish(eventbus.TransitionApplied, m.TicketID, map[string]string{
		"from":  string(p.PreviousStatus),
		"to":    string(p.RequestedStatus),
		"token": strconv.FormatUint(uint64(p.token), 10),
	})

	callCtx := context.WithoutCancel(ctx)
	e.wg.Go(func() {
		e.run(callCtx, p, prev)
	})
	return p, nil
}

// apply writes the optimistic status and appends the transition to the
// ticket's chain. A same-column drop comes back already settled with a zero
// token and no chain entry.
func (e *Engine) apply(m Move, status voc.Status) (p, prev *PendingTransition, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep, moved, found := e.store.move(m.TicketID, m.Column, status)
	if !found {
		return nil, nil, fmt.Errorf("%w: %d", ErrTicketNotFound, m.TicketID)
	}
	if !moved {
		t, _ := e.store.Get(m.TicketID)
		p = &PendingTransition{
			TicketID:        m.TicketID,
			PreviousStatus:  rep.PreviousStatus,
			RequestedStatus: rep.PreviousStatus,
			done:            make(chan struct{}),
			result: Result{
				Outcome:  OutcomeIgnored,
				TicketID: m.TicketID,
				From:     rep.PreviousStatus,
				To:       rep.PreviousStatus,
				Ticket:   t,
			},
		}
		close(p.done)
		return p, nil, nil
	}

	p = &PendingTransition{
		TicketID:        m.TicketID,
		PreviousStatus:  rep.PreviousStatus,
		RequestedStatus: rep.Status,
		change: voc.StatusChange{
			Status:         rep.Status,
			ProcessingNote: m.ProcessingNote,
			RejectReason:   m.RejectReason,
		},
		token:         rep.Token,
		previousToken: rep.PreviousToken,
		done:          make(chan struct{}),
	}
	chain := e.pending[m.TicketID]
	if len(chain) > 0 {
		prev = chain[len(chain)-1]
	}
	e.pending[m.TicketID] = append(chain, p)
	return p, prev, nil
}

// IsPending reports whether a transition for the ticket is awaiting the backend.
func (e *Engine) IsPending(ticketID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.ContainsFunc(e.pending[ticketID], func(p *PendingTransition) bool {
		return p.state == pendingInFlight
	})
}

// PendingTickets returns the ids with a transition in flight.
func (e *Engine) PendingTickets() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Wait blocks until every submitted transition has been reconciled.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context, p, prev *PendingTransition) {
	if prev != nil && e.ordered {
		<-prev.done
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	confirmed, err := panicerr.Call(callCtx, func(ctx context.Context) (*voc.Ticket, error) {
		return e.backend.ChangeStatus(ctx, p.TicketID, p.change)
	})
	if err != nil {
		e.rollback(ctx, p, err)
	} else {
		e.commit(ctx, p, confirmed)
	}
	close(p.done)
}

func (e *Engine) commit(ctx context.Context, p *PendingTransition, confirmed *voc.Ticket) {
	e.mu.Lock()
	p.state = pendingCommitted
	applied := confirmed != nil && e.store.refresh(p.TicketID, p.token, confirmed)
	e.settleLocked(p.TicketID)
	e.mu.Unlock()

	t, _ := e.store.Get(p.TicketID)
	p.result = Result{
		Outcome:  OutcomeCommitted,
		TicketID: p.TicketID,
		From:     p.PreviousStatus,
		To:       p.RequestedStatus,
		Ticket:   t,
	}

	e.logger.InfoContext(ctx, "transition committed",
		clog.TicketIDKey, p.TicketID, clog.FromKey, p.PreviousStatus, clog.ToKey, p.RequestedStatus,
		clog.OutcomeKey, OutcomeCommitted, "token", p.token, "superseded", !applied)
	e.publish(eventbus.TransitionCommitted, p.TicketID, map[string]string{
		"from": string(p.PreviousStatus),
		"to":   string(p.RequestedStatus),
	})
}

func (e *Engine) rollback(ctx context.Context, p *PendingTransition, err error) {
	e.mu.Lock()
	p.state = pendingFailed
	status, token := e.restoreTargetLocked(p)
	restored := e.store.restore(p.TicketID, p.token, status, token)
	e.settleLocked(p.TicketID)
	e.mu.Unlock()

	msg := failureMessage(err)
	conflict := cerr.CodeOf(err) == cerr.Aborted
	t, _ := e.store.Get(p.TicketID)
	p.result = Result{
		Outcome:  OutcomeRolledBack,
		TicketID: p.TicketID,
		From:     p.PreviousStatus,
		To:       p.RequestedStatus,
		Ticket:   t,
		Message:  msg,
		Conflict: conflict,
		Err:      err,
	}

	e.logger.WarnContext(ctx, "transition rolled back",
		clog.TicketIDKey, p.TicketID, clog.FromKey, p.PreviousStatus, clog.ToKey, p.RequestedStatus,
		clog.OutcomeKey, OutcomeRolledBack, "restored", status, "applied", restored, "conflict", conflict, "error", err)
	e.publish(eventbus.TransitionRolledBack, p.TicketID, map[string]string{
		"from":     string(p.PreviousStatus),
		"to":       string(p.RequestedStatus),
		"restored": string(status),
		"message":  msg,
		"conflict": strconv.FormatBool(conflict),
	})
}

// restoreTargetLocked finds the status to fall back to when p fails. It walks
// past predecessors that failed themselves, so the board never rests on a
// status the backend refused.
func (e *Engine) restoreTargetLocked(p *PendingTransition) (voc.Status, Token) {
	chain := e.pending[p.TicketID]
	cur := p
	for {
		var prev *PendingTransition
		for _, c := range chain {
			if c.token == cur.previousToken {
				prev = c
				break
			}
		}
		if prev == nil || prev.state != pendingFailed {
			return cur.PreviousStatus, cur.previousToken
		}
		cur = prev
	}
}

// settleLocked drops the ticket's chain once nothing in it is in flight.
func (e *Engine) settleLocked(ticketID int64) {
	for _, c := range e.pending[ticketID] {
		if c.state == pendingInFlight {
			return
		}
	}
	delete(e.pending, ticketID)
}

func (e *Engine) publish(eventType eventbus.Type, ticketID int64, metadata map[string]string) {
	if e.publisher == nil {
		return
	}
	e.publisher.PublishNew(eventType, ticketID, metadata)
}

func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutMessage
	}
	if msg, ok := cerr.MessageOf(err); ok {
		return msg
	}
	return defaultFailureMessage
}
