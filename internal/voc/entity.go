package voc

import (
	"fmt"
	"time"

	"github.com/vocautobot/vockanban/pkg/cerr"
)

type Ticket struct {
	ID             int64      `json:"id" yaml:"id"`
	TicketID       string     `json:"ticketId" yaml:"ticket_id"`
	Title          string     `json:"title" yaml:"title"`
	Content        string     `json:"content,omitempty" yaml:"content"`
	Status         Status     `json:"status" yaml:"status"`
	Priority       Priority   `json:"priority" yaml:"priority"`
	Channel        Channel    `json:"channel,omitempty" yaml:"channel"`
	CustomerName   string     `json:"customerName,omitempty" yaml:"customer_name"`
	CustomerEmail  string     `json:"customerEmail,omitempty" yaml:"customer_email"`
	ProcessingNote string     `json:"processingNote,omitempty" yaml:"processing_note,omitempty"`
	RejectReason   string     `json:"rejectReason,omitempty" yaml:"reject_reason,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty" yaml:"resolved_at,omitempty"`
	ClosedAt       *time.Time `json:"closedAt,omitempty" yaml:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" yaml:"updated_at"`
}

// Clone returns a deep copy so callers can hand tickets out of a store
// without sharing the timestamp pointers.
func (t *Ticket) Clone() *Ticket {
	c := *t
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		c.ResolvedAt = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		c.ClosedAt = &v
	}
	return &c
}

// StatusChange is the payload of a status-change command.
type StatusChange struct {
	Status         Status `json:"status"`
	ProcessingNote string `json:"processingNote,omitempty"`
	RejectReason   string `json:"rejectReason,omitempty"`
}

// ApplyStatusChange validates the transition against the backend rule table
// and stamps the lifecycle timestamps.
func (t *Ticket) ApplyStatusChange(change StatusChange, now time.Time) error {
	if !change.Status.Valid() {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown status %q", change.Status), nil)
	}
	if !t.Status.CanTransitionTo(change.Status) {
		return cerr.NewError(cerr.InvalidArgument,
			fmt.Sprintf("cannot transition from %s to %s", t.Status, change.Status), nil)
	}
	t.Status = change.Status
	switch change.Status {
	case StatusResolved:
		t.ResolvedAt = &now
	case StatusClosed:
		t.ClosedAt = &now
	}
	if change.ProcessingNote != "" {
		t.ProcessingNote = change.ProcessingNote
	}
	if change.RejectReason != "" {
		t.RejectReason = change.RejectReason
	}
	t.UpdatedAt = now
	return nil
}
