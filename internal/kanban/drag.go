package kanban

import (
	"fmt"
	"sync"
)

type DragState int

const (
	DragIdle DragState = iota
	DragDragging
)

func (s DragState) String() string {
	if s == DragDragging {
		return "dragging"
	}
	return "idle"
}

// DragSnapshot is a copy of a drag session's state for rendering.
type DragSnapshot struct {
	State        DragState
	TicketID     int64
	SourceColumn Column
	OverColumn   Column
}

// DragGesture is what Drop hands to the engine once the gesture has ended.
type DragGesture struct {
	TicketID     int64
	SourceColumn Column
	TargetColumn Column
}

// DragSession tracks a single drag gesture: Idle until Begin, Dragging until
// Drop or Cancel. Keeping one session per user is the caller's job; Begin
// during a drag abandons the earlier gesture.
type DragSession struct {
	store        *Store
	lockTerminal bool

	mu    sync.Mutex
	state DragState
	id    int64
	src   Column
	over  Column
}

type DragOption func(*DragSession)

// WithTerminalLock refuses drags of tickets already in a terminal status.
func WithTerminalLock(lock bool) DragOption {
	return func(d *DragSession) { d.lockTerminal = lock }
}

func NewDragSession(store *Store, opts ...DragOption) *DragSession {
	d := &DragSession{store: store}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DragSession) Begin(ticketID int64) error {
	t, ok := d.store.Get(ticketID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrTicketNotFound, ticketID)
	}
	if d.lockTerminal && t.Status.IsTerminal() {
		return fmt.Errorf("%w: %d is %s", ErrTicketLocked, ticketID, t.Status)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = DragDragging
	d.id = ticketID
	d.src = Classify(t.Status)
	d.over = ""
	return nil
}

// Over marks the column currently under the pointer. It is display state only.
func (d *DragSession) Over(c Column) error {
	if c != "" && !c.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DragDragging {
		return ErrNoActiveDrag
	}
	d.over = c
	return nil
}

// Drop ends the gesture and returns what was dropped where. The session is
// Idle afterwards whether or not the target is valid.
func (d *DragSession) Drop(target Column) (DragGesture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DragDragging {
		return DragGesture{}, ErrNoActiveDrag
	}
	g := DragGesture{TicketID: d.id, SourceColumn: d.src, TargetColumn: target}
	d.resetLocked()
	if !target.Valid() {
		return DragGesture{}, fmt.Errorf("%w: %q", ErrUnknownColumn, target)
	}
	return g, nil
}

// Cancel ends the gesture without a transition. Cancelling an idle session
// is a no-op.
func (d *DragSession) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *DragSession) Snapshot() DragSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DragSnapshot{State: d.state, TicketID: d.id, SourceColumn: d.src, OverColumn: d.over}
}

func (d *DragSession) resetLocked() {
	d.state = DragIdle
	d.id = 0
	d.src = ""
	d.over = ""
}
