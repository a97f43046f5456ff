package voc

import (
	"fmt"
	"slices"
)

// Status is the lifecycle status of a VOC ticket.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPending    Status = "PENDING"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
	StatusRejected   Status = "REJECTED"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusNew,
	StatusInProgress,
	StatusPending,
	StatusResolved,
	StatusClosed,
	StatusRejected,
}

// allowedTransitions mirrors the backend rule table. PENDING is kept for
// legacy tickets; nothing transitions into it any more.
var allowedTransitions = map[Status][]Status{
	StatusNew:        {StatusInProgress, StatusResolved, StatusRejected},
	StatusInProgress: {StatusResolved, StatusRejected},
	StatusPending:    {StatusResolved, StatusRejected},
	StatusResolved:   {},
	StatusClosed:     {},
	StatusRejected:   {},
}

var statusLabels = map[Status]string{
	StatusNew:        "New",
	StatusInProgress: "In progress",
	StatusPending:    "Pending",
	StatusResolved:   "Resolved",
	StatusClosed:     "Closed",
	StatusRejected:   "Rejected",
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown VOC status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected || s == StatusClosed
}

// CanTransitionTo reports whether the backend accepts a change from s to next.
// A transition to the same status is never allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return false
	}
	return slices.Contains(allowedTransitions[s], next)
}

// AllowedTargets returns the statuses reachable from s in one step.
func (s Status) AllowedTargets() []Status {
	return slices.Clone(allowedTransitions[s])
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Priority is display-only for the board.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown VOC priority %q", s)
}

type Channel string

const (
	ChannelWeb   Channel = "WEB"
	ChannelEmail Channel = "EMAIL"
	ChannelPhone Channel = "PHONE"
	ChannelChat  Channel = "CHAT"
	ChannelSNS   Channel = "SNS"
	ChannelOther Channel = "OTHER"
)
