package voc

import "context"

type ListFilter struct {
	Statuses []Status
}

type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id int64) (*Ticket, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Ticket, int, error)
	Update(ctx context.Context, t *Ticket) error
}
