// Package kanban holds the board core: the status-to-column classifier, the
// shared ticket store, drag sessions and the optimistic transition engine.
package kanban

import (
	"fmt"

	"github.com/vocautobot/vockanban/internal/voc"
)

type Column string

const (
	ColumnNew        Column = "NEW"
	ColumnInProgress Column = "IN_PROGRESS"
	ColumnPending    Column = "PENDING"
	ColumnResolved   Column = "RESOLVED"
	ColumnClosed     Column = "CLOSED"
)

// Columns is the fixed left-to-right display order.
var Columns = []Column{
	ColumnNew,
	ColumnInProgress,
	ColumnPending,
	ColumnResolved,
	ColumnClosed,
}

var statusColumns = map[voc.Status]Column{
	voc.StatusNew:        ColumnNew,
	voc.StatusInProgress: ColumnInProgress,
	voc.StatusPending:    ColumnPending,
	voc.StatusResolved:   ColumnResolved,
	voc.StatusClosed:     ColumnClosed,
	voc.StatusRejected:   ColumnClosed,
}

// CLOSED sends REJECTED: it is the only status in that lane the backend
// accepts as a transition target.
var canonicalStatuses = map[Column]voc.Status{
	ColumnNew:        voc.StatusNew,
	ColumnInProgress: voc.StatusInProgress,
	ColumnPending:    voc.StatusPending,
	ColumnResolved:   voc.StatusResolved,
	ColumnClosed:     voc.StatusRejected,
}

// Classify maps a status to its display column. It panics on a status the
// board does not know; statuses are validated when tickets are decoded.
func Classify(status voc.Status) Column {
	c, ok := statusColumns[status]
	if !ok {
		panic(fmt.Sprintf("kanban: unclassifiable status %q", status))
	}
	return c
}

// CanonicalStatus returns the status a drop onto c sends to the backend.
func CanonicalStatus(c Column) (voc.Status, bool) {
	s, ok := canonicalStatuses[c]
	return s, ok
}

func ParseColumn(s string) (Column, error) {
	c := Column(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownColumn, s)
	}
	return c, nil
}

func (c Column) Valid() bool {
	_, ok := canonicalStatuses[c]
	return ok
}

func (c Column) String() string {
	return string(c)
}

func (c Column) Label() string {
	switch c {
	case ColumnNew:
		return "New"
	case ColumnInProgress:
		return "In progress"
	case ColumnPending:
		return "Pending"
	case ColumnResolved:
		return "Resolved"
	case ColumnClosed:
		return "Closed"
	}
	return string(c)
}
