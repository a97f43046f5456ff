package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/vocautobot/vockanban/internal/board"
	"github.com/vocautobot/vockanban/internal/client"
	"github.com/vocautobot/vockanban/internal/config"
	"github.com/vocautobot/vockanban/pkg/color"
)

var (
	app = kingpin.New("vockanban", "Operator CLI for the VOC Kanban board daemon")

	serverURL = app.Flag("server", "Board daemon URL").String()
	apiKey    = app.Flag("api-key", "Board daemon API key").String()

	boardCmd = app.Command("board", "Print the board")

	moveCmd    = app.Command("move", "Move a ticket onto a column")
	moveID     = moveCmd.Arg("id", "Ticket ID").Required().Int64()
	moveColumn = moveCmd.Arg("column", "Target column (NEW, IN_PROGRESS, PENDING, RESOLVED, CLOSED)").Required().String()
	moveNote   = moveCmd.Flag("note", "Processing note sent with the change").String()
	moveReason = moveCmd.Flag("reason", "Reject reason, used when moving onto CLOSED").String()

	pendingCmd = app.Command("pending", "Show tickets with an unresolved status change")
	pendingID  = pendingCmd.Arg("id", "Ticket ID").Int64()

	refreshCmd = app.Command("refresh", "Reload the ticket list from the VOC backend")

	watchCmd    = app.Command("watch", "Stream board events")
	watchTicket = watchCmd.Flag("ticket", "Only events for this ticket").Int64()
	watchTypes  = watchCmd.Flag("type", "Only events of this type (repeatable)").Strings()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadClientEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *serverURL == "" {
		*serverURL = env.ServerURL
	}
	if *apiKey == "" {
		*apiKey = env.APIKey
	}
	color.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.NewBoardClient(nil, *serverURL, *apiKey)
	if err := run(ctx, c, command); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.Failure.Sprint("Error:"), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.BoardClient, command string) error {
	out := os.Stdout
	switch command {
	case boardCmd.FullCommand():
		cols, err := c.Board(ctx)
		if err != nil {
			return err
		}
		printBoard(out, cols)
	case moveCmd.FullCommand():
		res, err := c.Move(ctx, &board.MoveTicketRequest{
			TicketID:       *moveID,
			Column:         *moveColumn,
			ProcessingNote: *moveNote,
			RejectReason:   *moveReason,
		})
		if err != nil {
			return err
		}
		printTransition(out, res)
	case pendingCmd.FullCommand():
		res, err := c.Pending(ctx, *pendingID)
		if err != nil {
			return err
		}
		printPending(out, *pendingID, res)
	case refreshCmd.FullCommand():
		n, err := c.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Reloaded %d tickets\n", n)
	case watchCmd.FullCommand():
		return c.Watch(ctx, &board.SubscribeEventsRequest{TicketID: *watchTicket, Types: *watchTypes}, func(ev *board.Event) error {
			printEvent(out, ev)
			return nil
		})
	}
	return nil
}
