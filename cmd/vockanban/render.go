package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/vocautobot/vockanban/internal/board"
	"github.com/vocautobot/vockanban/internal/kanban"
	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/pkg/color"
)

func printBoard(w io.Writer, cols []board.ColumnView) {
	for i, col := range cols {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", color.Bold.Sprint(col.Label), color.Dim.Sprintf("(%d)", len(col.Tickets)))
		for _, t := range col.Tickets {
			fmt.Fprintf(w, "  %s\n", ticketLine(&t))
		}
	}
}

func ticketLine(t *board.TicketView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", t.ID, t.Title)
	if t.TicketID != "" {
		b.WriteString(" " + color.Dim.Sprint(t.TicketID))
	}
	if t.Priority == voc.PriorityHigh || t.Priority == voc.PriorityUrgent {
		b.WriteString(" " + color.Warning.Sprint(string(t.Priority)))
	}
	if t.Pending {
		b.WriteString(" " + color.Warning.Sprint("(saving...)"))
	}
	if moves := legalMoves(t.Status); len(moves) > 0 {
		b.WriteString(" " + color.Dim.Sprint("-> "+strings.Join(moves, ", ")))
	}
	return b.String()
}

// legalMoves lists the columns the backend will accept a drop onto.
func legalMoves(s voc.Status) []string {
	var out []string
	for _, target := range s.AllowedTargets() {
		out = append(out, string(kanban.Classify(target)))
	}
	return out
}

func printTransition(w io.Writer, res *board.TransitionResponse) {
	switch res.Outcome {
	case kanban.OutcomeCommitted.String():
		fmt.Fprintf(w, "%s #%d %s -> %s\n", color.Success.Sprint("Moved"), res.TicketID, res.From, res.To)
	case kanban.OutcomeIgnored.String():
		fmt.Fprintf(w, "#%d is already on %s\n", res.TicketID, res.To)
	default:
		fmt.Fprintf(w, "%s #%d stays on %s: %s\n", color.Failure.Sprint("Rolled back"), res.TicketID, res.From, res.Message)
		if res.Conflict {
			fmt.Fprintln(w, color.Dim.Sprint("The ticket was changed by someone else; the board has been reloaded."))
		}
	}
}

func printPending(w io.Writer, id int64, res *board.GetPendingResponse) {
	if id != 0 {
		if res.Pending {
			fmt.Fprintf(w, "#%d has a status change in flight\n", id)
		} else {
			fmt.Fprintf(w, "#%d is settled\n", id)
		}
		return
	}
	if len(res.TicketIDs) == 0 {
		fmt.Fprintln(w, "No pending transitions")
		return
	}
	ids := make([]string, len(res.TicketIDs))
	for i, tid := range res.TicketIDs {
		ids[i] = fmt.Sprintf("#%d", tid)
	}
	fmt.Fprintf(w, "Pending: %s\n", strings.Join(ids, ", "))
}

func printEvent(w io.Writer, ev *board.Event) {
	key := "board"
	if ev.TicketID != 0 {
		key = fmt.Sprintf("#%d", ev.TicketID)
	}
	var detail string
	if from, to := ev.Metadata["from"], ev.Metadata["to"]; from != "" || to != "" {
		detail = from + " -> " + to
	}
	if msg := ev.Metadata["message"]; msg != "" {
		detail += " (" + msg + ")"
	}
	if n := ev.Metadata["tickets"]; n != "" {
		detail = n + " tickets"
	}
	fmt.Fprintf(w, "%s %s %s %s\n",
		color.Dim.Sprint(ev.CreatedAt.Format("15:04:05")), color.Prefix(key), ev.Type, detail)
}
