package kanban

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocautobot/vockanban/internal/eventbus"
	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/pkg/cerr"
)

func TestEngine_DropNewOntoInProgressCommits(t *testing.T) {
	updated := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	backend := &scriptedBackend{fn: func(_ context.Context, id int64, change voc.StatusChange) (*voc.Ticket, error) {
		tk := newTicket(id, change.Status)
		tk.UpdatedAt = updated
		return tk, nil
	}}
	store := loadedStore(newTicket(1, voc.StatusNew))
	engine := NewEngine(store, backend)

	res, err := engine.AttemptDrop(context.Background(), 1, ColumnInProgress)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, voc.StatusNew, res.From)
	assert.Equal(t, voc.StatusInProgress, res.To)
	assert.Empty(t, res.Message)

	got, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, voc.StatusInProgress, got.Status)
	assert.Equal(t, updated, got.UpdatedAt)
	require.Len(t, backend.Calls(), 1)
	assert.Equal(t, voc.StatusInProgress, backend.Calls()[0].Change.Status)
	assert.False(t, engine.IsPending(1))
}

func TestEngine_DropPendingOntoResolvedTimesOut(t *testing.T) {
	backend := &scriptedBackend{fn: func(ctx context.Context, _ int64, _ voc.StatusChange) (*voc.Ticket, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	store := loadedStore(newTicket(2, voc.StatusPending))
	engine := NewEngine(store, backend, WithTimeout(20*time.Millisecond))

	res, err := engine.AttemptDrop(context.Background(), 2, ColumnResolved)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, voc.StatusPending, statusOf(store, 2))
	assert.Equal(t, "status change timed out", res.Message)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestEngine_SameColumnDropIsIgnored(t *testing.T) {
	backend := &scriptedBackend{}
	store := loadedStore(newTicket(3, voc.StatusResolved), newTicket(4, voc.StatusRejected))
	engine := NewEngine(store, backend)
	tokenBefore, _ := store.TokenOf(3)

	res, err := engine.AttemptDrop(context.Background(), 3, ColumnResolved)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, voc.StatusResolved, statusOf(store, 3))
	tokenAfter, _ := store.TokenOf(3)
	assert.Equal(t, tokenBefore, tokenAfter)

	// REJECTED already sits in the CLOSED lane
	res, err = engine.AttemptDrop(context.Background(), 4, ColumnClosed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, voc.StatusRejected, statusOf(store, 4))

	assert.Empty(t, backend.Calls())
}

func TestEngine_OptimisticApplyIsVisibleBeforeBackend(t *testing.T) {
	backend := newGatedBackend()
	store := loadedStore(newTicket(5, voc.StatusNew))
	engine := NewEngine(store, backend)

	p, err := engine.Submit(context.Background(), Move{TicketID: 5, Column: ColumnResolved})
	require.NoError(t, err)
	assert.Equal(t, voc.StatusNew, p.PreviousStatus)
	assert.Equal(t, voc.StatusResolved, p.RequestedStatus)

	call := backend.next(t)
	assert.Equal(t, voc.StatusResolved, statusOf(store, 5))
	assert.True(t, engine.IsPending(5))
	assert.Equal(t, []int64{5}, engine.PendingTickets())

	call.Succeed()
	res, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.False(t, engine.IsPending(5))
	assert.Empty(t, engine.PendingTickets())
}

func TestEngine_RollbackRestoresExactStatus(t *testing.T) {
	backend := &scriptedBackend{fn: func(context.Context, int64, voc.StatusChange) (*voc.Ticket, error) {
		return nil, cerr.NewError(cerr.InvalidArgument, "cannot transition from PENDING to REJECTED", nil)
	}}
	store := loadedStore(newTicket(6, voc.StatusPending))
	tokenBefore, _ := store.TokenOf(6)
	engine := NewEngine(store, backend)

	res, err := engine.AttemptDrop(context.Background(), 6, ColumnClosed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, voc.StatusPending, statusOf(store, 6))
	assert.Equal(t, "cannot transition from PENDING to REJECTED", res.Message)
	assert.False(t, res.Conflict)

	tokenAfter, _ := store.TokenOf(6)
	assert.Equal(t, tokenBefore, tokenAfter)
}

func TestEngine_FailureWithoutMessageUsesGenericNotice(t *testing.T) {
	backend := &scriptedBackend{fn: func(context.Context, int64, voc.StatusChange) (*voc.Ticket, error) {
		return nil, errors.New("connection reset by peer")
	}}
	engine := NewEngine(loadedStore(newTicket(7, voc.StatusNew)), backend)

	res, err := engine.AttemptDrop(context.Background(), 7, ColumnInProgress)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, "Failed to change the ticket status.", res.Message)
}

func TestEngine_BackendPanicRollsBack(t *testing.T) {
	backend := &scriptedBackend{fn: func(context.Context, int64, voc.StatusChange) (*voc.Ticket, error) {
		panic("adapter bug")
	}}
	store := loadedStore(newTicket(8, voc.StatusInProgress))
	engine := NewEngine(store, backend)

	res, err := engine.AttemptDrop(context.Background(), 8, ColumnResolved)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, voc.StatusInProgress, statusOf(store, 8))
	assert.Equal(t, "Failed to change the ticket status.", res.Message)
}

func TestEngine_ConflictIsFlagged(t *testing.T) {
	backend := &scriptedBackend{fn: func(context.Context, int64, voc.StatusChange) (*voc.Ticket, error) {
		return nil, cerr.NewError(cerr.Aborted, "The ticket was changed by someone else.", nil)
	}}
	engine := NewEngine(loadedStore(newTicket(9, voc.StatusNew)), backend)

	res, err := engine.AttemptDrop(context.Background(), 9, ColumnInProgress)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.True(t, res.Conflict)
	assert.Equal(t, "The ticket was changed by someone else.", res.Message)
}

func TestEngine_InvalidInput(t *testing.T) {
	backend := &scriptedBackend{}
	store := loadedStore(newTicket(10, voc.StatusNew))
	engine := NewEngine(store, backend)

	_, err := engine.AttemptDrop(context.Background(), 10, Column("ARCHIVE"))
	assert.ErrorIs(t, err, ErrUnknownColumn)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = engine.AttemptDrop(context.Background(), 404, ColumnResolved)
	assert.ErrorIs(t, err, ErrTicketNotFound)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	assert.Equal(t, voc.StatusNew, statusOf(store, 10))
	assert.Empty(t, backend.Calls())
}

func TestEngine_NoStaleRollback(t *testing.T) {
	backend := newGatedBackend()
	store := loadedStore(newTicket(11, voc.StatusNew))
	engine := NewEngine(store, backend, WithOrderedCalls(false))
	ctx := context.Background()

	first, err := engine.Submit(ctx, Move{TicketID: 11, Column: ColumnInProgress})
	require.NoError(t, err)
	second, err := engine.Submit(ctx, Move{TicketID: 11, Column: ColumnResolved})
	require.NoError(t, err)
	assert.Equal(t, voc.StatusInProgress, second.PreviousStatus)

	calls := map[voc.Status]*gatedCall{}
	for range 2 {
		c := backend.next(t)
		calls[c.Change.Status] = c
	}

	calls[voc.StatusResolved].Succeed()
	res2, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res2.Outcome)
	assert.True(t, engine.IsPending(11))

	calls[voc.StatusInProgress].Fail(errors.New("boom"))
	res1, err := first.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res1.Outcome)

	assert.Equal(t, voc.StatusResolved, statusOf(store, 11))
	assert.False(t, engine.IsPending(11))
}

func TestEngine_OrderedCallsForSameTicket(t *testing.T) {
	backend := newGatedBackend()
	store := loadedStore(newTicket(12, voc.StatusNew), newTicket(13, voc.StatusNew))
	engine := NewEngine(store, backend)
	ctx := context.Background()

	first, err := engine.Submit(ctx, Move{TicketID: 12, Column: ColumnInProgress})
	require.NoError(t, err)
	second, err := engine.Submit(ctx, Move{TicketID: 12, Column: ColumnResolved})
	require.NoError(t, err)
	other, err := engine.Submit(ctx, Move{TicketID: 13, Column: ColumnClosed})
	require.NoError(t, err)

	// the other ticket is not held back by ticket 12
	seen := map[int64]*gatedCall{}
	for range 2 {
		c := backend.next(t)
		seen[c.TicketID] = c
	}
	require.Contains(t, seen, int64(12))
	require.Contains(t, seen, int64(13))
	assert.Equal(t, voc.StatusInProgress, seen[12].Change.Status)
	backend.assertIdle(t)

	seen[13].Succeed()
	_, err = other.Wait(ctx)
	require.NoError(t, err)

	seen[12].Fail(errors.New("boom"))
	res1, err := first.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res1.Outcome)
	// the newer optimistic status survives the stale failure
	assert.Equal(t, voc.StatusResolved, statusOf(store, 12))

	next := backend.next(t)
	assert.Equal(t, voc.StatusResolved, next.Change.Status)
	next.Succeed()
	res2, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res2.Outcome)
	assert.Equal(t, voc.StatusResolved, statusOf(store, 12))
	assert.Equal(t, voc.StatusRejected, statusOf(store, 13))
}

func TestEngine_ChainedFailuresFallBackToConfirmedStatus(t *testing.T) {
	tests := []struct {
		name    string
		ordered bool
		// order in which the two calls are failed
		failSecondFirst bool
	}{
		{name: "ordered", ordered: true},
		{name: "unordered first fails first", ordered: false},
		{name: "unordered second fails first", ordered: false, failSecondFirst: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newGatedBackend()
			store := loadedStore(newTicket(14, voc.StatusNew))
			engine := NewEngine(store, backend, WithOrderedCalls(tt.ordered))
			ctx := context.Background()

			first, err := engine.Submit(ctx, Move{TicketID: 14, Column: ColumnInProgress})
			require.NoError(t, err)
			second, err := engine.Submit(ctx, Move{TicketID: 14, Column: ColumnResolved})
			require.NoError(t, err)

			if tt.ordered {
				backend.next(t).Fail(errors.New("first"))
				_, _ = first.Wait(ctx)
				assert.Equal(t, voc.StatusResolved, statusOf(store, 14))
				backend.next(t).Fail(errors.New("second"))
				_, _ = second.Wait(ctx)
			} else {
				calls := map[voc.Status]*gatedCall{}
				for range 2 {
					c := backend.next(t)
					calls[c.Change.Status] = c
				}
				if tt.failSecondFirst {
					calls[voc.StatusResolved].Fail(errors.New("second"))
					_, _ = second.Wait(ctx)
					// the first is still in flight, so its status is the fallback for now
					assert.Equal(t, voc.StatusInProgress, statusOf(store, 14))
					calls[voc.StatusInProgress].Fail(errors.New("first"))
					_, _ = first.Wait(ctx)
				} else {
					calls[voc.StatusInProgress].Fail(errors.New("first"))
					_, _ = first.Wait(ctx)
					calls[voc.StatusResolved].Fail(errors.New("second"))
					_, _ = second.Wait(ctx)
				}
			}

			assert.Equal(t, voc.StatusNew, statusOf(store, 14))
			assert.False(t, engine.IsPending(14))
		})
	}
}

func TestEngine_CallerCancellationDoesNotAbortTransition(t *testing.T) {
	backend := newGatedBackend()
	store := loadedStore(newTicket(15, voc.StatusNew))
	engine := NewEngine(store, backend)

	ctx, cancel := context.WithCancel(context.Background())
	p, err := engine.Submit(ctx, Move{TicketID: 15, Column: ColumnInProgress})
	require.NoError(t, err)
	cancel()

	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	call := backend.next(t)
	assert.NoError(t, call.ctx.Err())
	call.Succeed()
	engine.Wait()

	res, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, voc.StatusInProgress, statusOf(store, 15))
}

func TestEngine_ReconcileAfterTicketRemoved(t *testing.T) {
	backend := newGatedBackend()
	store := loadedStore(newTicket(16, voc.StatusNew))
	engine := NewEngine(store, backend)

	p, err := engine.Submit(context.Background(), Move{TicketID: 16, Column: ColumnInProgress})
	require.NoError(t, err)
	call := backend.next(t)

	store.Load(nil)
	call.Fail(errors.New("boom"))

	res, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Nil(t, res.Ticket)
	assert.Zero(t, store.Len())
}

func TestEngine_ReloadWinsOverInFlightRollback(t *testing.T) {
	backend := newGatedBackend()
	store := loadedStore(newTicket(17, voc.StatusNew))
	engine := NewEngine(store, backend)

	p, err := engine.Submit(context.Background(), Move{TicketID: 17, Column: ColumnInProgress})
	require.NoError(t, err)
	call := backend.next(t)

	store.Load([]*voc.Ticket{newTicket(17, voc.StatusPending)})
	call.Fail(errors.New("boom"))
	_, err = p.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, voc.StatusPending, statusOf(store, 17))
}

func TestEngine_PublishesTransitionEvents(t *testing.T) {
	bus := eventbus.New()
	subID, ch := bus.Subscribe(8)
	defer bus.Unsubscribe(subID)

	backend := &scriptedBackend{fn: func(_ context.Context, _ int64, change voc.StatusChange) (*voc.Ticket, error) {
		if change.Status == voc.StatusRejected {
			return nil, errors.New("boom")
		}
		return nil, nil
	}}
	store := loadedStore(newTicket(18, voc.StatusNew))
	engine := NewEngine(store, backend, WithPublisher(bus))

	_, err := engine.AttemptDrop(context.Background(), 18, ColumnInProgress)
	require.NoError(t, err)
	_, err = engine.AttemptDrop(context.Background(), 18, ColumnClosed)
	require.NoError(t, err)

	var types []eventbus.Type
	for range 4 {
		select {
		case ev := <-ch:
			assert.Equal(t, int64(18), ev.TicketID)
			types = append(types, ev.Type)
			if ev.Type == eventbus.TransitionRolledBack {
				assert.Equal(t, "IN_PROGRESS", ev.Metadata["restored"])
				assert.Equal(t, "Failed to change the ticket status.", ev.Metadata["message"])
			}
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, []eventbus.Type{
		eventbus.TransitionApplied,
		eventbus.TransitionCommitted,
		eventbus.TransitionApplied,
		eventbus.TransitionRolledBack,
	}, types)
	// an empty payload still commits the requested status
	assert.Equal(t, voc.StatusInProgress, statusOf(store, 18))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "IGNORED", OutcomeIgnored.String())
	assert.Equal(t, "COMMITTED", OutcomeCommitted.String())
	assert.Equal(t, "ROLLED_BACK", OutcomeRolledBack.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
