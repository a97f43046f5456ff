package kanban

import (
	"sync"

	"github.com/vocautobot/vockanban/internal/voc"
)

// Token identifies one write to a ticket record. Tokens come from a single
// counter per store, so a newer write always carries a larger token.
type Token uint64

// Replacement describes the record before and after a Replace.
type Replacement struct {
	PreviousStatus voc.Status
	PreviousToken  Token
	Status         voc.Status
	Token          Token
}

// ColumnGroup is one lane of the board in display order.
type ColumnGroup struct {
	Column  Column
	Tickets []*voc.Ticket
}

type record struct {
	ticket *voc.Ticket
	token  Token
}

// Store is the in-memory ticket collection shared by the engine and the
// renderers. Every read hands out a copy; records are only ever swapped
// whole, so a reader never observes a half-applied change.
type Store struct {
	mu      sync.RWMutex
	records map[int64]*record
	order   []int64
	last    Token
}

func NewStore() *Store {
	return &Store{records: make(map[int64]*record)}
}

// Load replaces the whole collection with a fresh list fetch. Every record
// gets a new token, so reconciliations of transitions started before the
// load leave the fetched state alone. Tickets without a known status cannot
// be placed in a lane; they are left out and their ids returned.
func (s *Store) Load(tickets []*voc.Ticket) (skipped []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[int64]*record, len(tickets))
	s.order = s.order[:0]
	for _, t := range tickets {
		if t == nil {
			continue
		}
		if !t.Status.Valid() {
			skipped = append(skipped, t.ID)
			continue
		}
		if _, dup := s.records[t.ID]; !dup {
			s.order = append(s.order, t.ID)
		}
		s.records[t.ID] = &record{ticket: t.Clone(), token: s.nextToken()}
	}
	return skipped
}

func (s *Store) Get(id int64) (*voc.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.ticket.Clone(), true
}

// TokenOf returns the token of the latest write to the ticket.
func (s *Store) TokenOf(id int64) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return 0, false
	}
	return rec.token, true
}

// Replace sets the ticket's status and stamps a new token. It reports false
// when the ticket is not in the store, in which case nothing changes.
func (s *Store) Replace(id int64, status voc.Status) (Replacement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Replacement{}, false
	}
	return s.replaceLocked(rec, status), true
}

// move is Replace guarded by the same-column check, done under one lock so a
// concurrent load cannot slip between the check and the write.
func (s *Store) move(id int64, target Column, status voc.Status) (rep Replacement, moved, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Replacement{}, false, false
	}
	if Classify(rec.ticket.Status) == target {
		return Replacement{PreviousStatus: rec.ticket.Status, PreviousToken: rec.token, Status: rec.ticket.Status, Token: rec.token}, false, true
	}
	return s.replaceLocked(rec, status), true, true
}

func (s *Store) replaceLocked(rec *record, status voc.Status) Replacement {
	rep := Replacement{
		PreviousStatus: rec.ticket.Status,
		PreviousToken:  rec.token,
		Status:         status,
	}
	next := rec.ticket.Clone()
	next.Status = status
	rec.ticket = next
	rec.token = s.nextToken()
	rep.Token = rec.token
	return rep
}

// restore puts status and token back when the record still carries expect.
func (s *Store) restore(id int64, expect Token, status voc.Status, token Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.token != expect {
		return false
	}
	next := rec.ticket.Clone()
	next.Status = status
	rec.ticket = next
	rec.token = token
	return true
}

// refresh merges the fields a status change touches from a server-confirmed
// ticket when the record still carries expect. The token is kept.
func (s *Store) refresh(id int64, expect Token, confirmed *voc.Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.token != expect {
		return false
	}
	next := rec.ticket.Clone()
	if confirmed.Status.Valid() {
		next.Status = confirmed.Status
	}
	if confirmed.ProcessingNote != "" {
		next.ProcessingNote = confirmed.ProcessingNote
	}
	if confirmed.RejectReason != "" {
		next.RejectReason = confirmed.RejectReason
	}
	c := confirmed.Clone()
	if c.ResolvedAt != nil {
		next.ResolvedAt = c.ResolvedAt
	}
	if c.ClosedAt != nil {
		next.ClosedAt = c.ClosedAt
	}
	if !c.UpdatedAt.IsZero() {
		next.UpdatedAt = c.UpdatedAt
	}
	rec.ticket = next
	return true
}

// List returns every ticket in load order.
func (s *Store) List() []*voc.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*voc.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].ticket.Clone())
	}
	return out
}

// Columns groups the tickets into the five lanes, in display order. Every
// lane is present even when empty.
func (s *Store) Columns() []ColumnGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := make(map[Column]int, len(Columns))
	groups := make([]ColumnGroup, len(Columns))
	for i, c := range Columns {
		idx[c] = i
		groups[i] = ColumnGroup{Column: c, Tickets: []*voc.Ticket{}}
	}
	for _, id := range s.order {
		t := s.records[id].ticket
		i := idx[Classify(t.Status)]
		groups[i].Tickets = append(groups[i].Tickets, t.Clone())
	}
	return groups
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) nextToken() Token {
	s.last++
	return s.last
}
