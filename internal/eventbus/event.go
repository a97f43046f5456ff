package eventbus

import (
	"strconv"
	"time"
)

type Type string

const (
	TransitionApplied    Type = "transition.applied"
	TransitionCommitted  Type = "transition.committed"
	TransitionRolledBack Type = "transition.rolled_back"
	BoardReloaded        Type = "board.reloaded"
)

// Event is a board change notification. TicketID is zero for board-wide
// events. Origin identifies the bus that first published the event.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	TicketID  int64             `json:"ticketId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Origin    string            `json:"origin"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (e *Event) ResourceID() string {
	if e.TicketID == 0 {
		return ""
	}
	return strconv.FormatInt(e.TicketID, 10)
}
