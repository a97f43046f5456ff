package kanban

import "github.com/vocautobot/vockanban/pkg/cerr"

var (
	ErrUnknownColumn  = cerr.NewError(cerr.InvalidArgument, "unknown column", nil)
	ErrTicketNotFound = cerr.NewError(cerr.NotFound, "ticket not found", nil)
	ErrNoActiveDrag   = cerr.NewError(cerr.FailedPrecondition, "no drag in progress", nil)
	ErrTicketLocked   = cerr.NewError(cerr.FailedPrecondition, "ticket is closed and cannot be moved", nil)
)

const (
	defaultFailureMessage = "Failed to change the ticket status."
	timeoutMessage        = "status change timed out"
)
