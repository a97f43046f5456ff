package kanban

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocautobot/vockanban/internal/voc"
)

func TestStore_ReplaceStampsIncreasingTokens(t *testing.T) {
	s := loadedStore(newTicket(1, voc.StatusNew))
	t0, ok := s.TokenOf(1)
	require.True(t, ok)

	rep, ok := s.Replace(1, voc.StatusInProgress)
	require.True(t, ok)
	assert.Equal(t, voc.StatusNew, rep.PreviousStatus)
	assert.Equal(t, t0, rep.PreviousToken)
	assert.Greater(t, rep.Token, t0)

	rep2, ok := s.Replace(1, voc.StatusResolved)
	require.True(t, ok)
	assert.Greater(t, rep2.Token, rep.Token)
	assert.Equal(t, voc.StatusResolved, statusOf(s, 1))
}

func TestStore_ReplaceMissingIsNoop(t *testing.T) {
	s := loadedStore(newTicket(1, voc.StatusNew))
	_, ok := s.Replace(2, voc.StatusResolved)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStore_LoadSkipsTicketsWithoutStatus(t *testing.T) {
	var blank voc.Ticket
	require.NoError(t, json.Unmarshal([]byte(`{"id":7,"status":null}`), &blank))
	require.Equal(t, voc.Status(""), blank.Status)

	s := NewStore()
	skipped := s.Load([]*voc.Ticket{&blank, newTicket(8, voc.StatusNew)})
	assert.Equal(t, []int64{7}, skipped)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get(7)
	assert.False(t, ok)

	assert.NotPanics(t, func() { s.Columns() })
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := loadedStore(newTicket(1, voc.StatusNew))
	got, ok := s.Get(1)
	require.True(t, ok)
	got.Status = voc.StatusClosed
	got.Title = "changed"

	again, _ := s.Get(1)
	assert.Equal(t, voc.StatusNew, again.Status)
	assert.Equal(t, "ticket 1", again.Title)
}

func TestStore_RestoreAndRefreshAreTokenGuarded(t *testing.T) {
	s := loadedStore(newTicket(1, voc.StatusNew))
	first, _ := s.Replace(1, voc.StatusInProgress)
	second, _ := s.Replace(1, voc.StatusResolved)

	// stale token: nothing happens
	assert.False(t, s.restore(1, first.Token, first.PreviousStatus, first.PreviousToken))
	assert.False(t, s.refresh(1, first.Token, newTicket(1, voc.StatusInProgress)))
	assert.Equal(t, voc.StatusResolved, statusOf(s, 1))

	updated := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	confirmed := &voc.Ticket{ID: 1, Status: voc.StatusResolved, ResolvedAt: &updated, UpdatedAt: updated}
	assert.True(t, s.refresh(1, second.Token, confirmed))
	got, _ := s.Get(1)
	assert.Equal(t, "ticket 1", got.Title)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, updated, *got.ResolvedAt)
	assert.Equal(t, updated, got.UpdatedAt)
	tok, _ := s.TokenOf(1)
	assert.Equal(t, second.Token, tok)

	assert.True(t, s.restore(1, second.Token, second.PreviousStatus, second.PreviousToken))
	assert.Equal(t, voc.StatusInProgress, statusOf(s, 1))
	tok, _ = s.TokenOf(1)
	assert.Equal(t, first.Token, tok)
}

func TestStore_LoadReplacesContentsAndKeepsOrder(t *testing.T) {
	s := loadedStore(newTicket(1, voc.StatusNew), newTicket(2, voc.StatusNew))
	before, _ := s.TokenOf(1)

	s.Load([]*voc.Ticket{newTicket(3, voc.StatusPending), newTicket(1, voc.StatusResolved), nil})
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get(2)
	assert.False(t, ok)

	after, _ := s.TokenOf(1)
	assert.NotEqual(t, before, after)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)
}

func TestStore_HundredTicketsGroupIntoFiveLanes(t *testing.T) {
	tickets := make([]*voc.Ticket, 100)
	for i := range tickets {
		tickets[i] = newTicket(int64(i+1), voc.Statuses[i%len(voc.Statuses)])
	}
	s := loadedStore(tickets...)

	groups := s.Columns()
	require.Len(t, groups, 5)

	seen := map[int64]Column{}
	for i, g := range groups {
		assert.Equal(t, Columns[i], g.Column)
		for _, tk := range g.Tickets {
			prev, dup := seen[tk.ID]
			assert.False(t, dup, "ticket %d in %s and %s", tk.ID, prev, g.Column)
			seen[tk.ID] = g.Column
			assert.Equal(t, g.Column, Classify(tk.Status))
		}
	}
	assert.Len(t, seen, 100)

	// CLOSED holds both CLOSED and REJECTED tickets
	sizes := map[Column]int{}
	for _, g := range groups {
		sizes[g.Column] = len(g.Tickets)
	}
	assert.Equal(t, map[Column]int{
		ColumnNew:        17,
		ColumnInProgress: 17,
		ColumnPending:    17,
		ColumnResolved:   17,
		ColumnClosed:     32,
	}, sizes)
}

func TestStore_EmptyColumnsArePresent(t *testing.T) {
	groups := NewStore().Columns()
	require.Len(t, groups, 5)
	for _, g := range groups {
		assert.NotNil(t, g.Tickets)
		assert.Empty(t, g.Tickets)
	}
}
