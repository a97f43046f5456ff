package clog

import (
	"context"
	"sync"
)

// Attribute keys shared by the board daemon, the mock backend and the text
// handler, which renders them on the summary line.
const (
	TicketIDKey  = "ticket_id"
	SessionIDKey = "session_id"
	ColumnKey    = "column"
	FromKey      = "from"
	ToKey        = "to"
	OutcomeKey   = "outcome"

	ErrorAttributeKey = "error.message"
	StackAttributeKey = "error.stack"
)

// attrSet collects attributes for the lifetime of one request; every record
// logged with that context carries them.
type attrSet struct {
	mu    sync.RWMutex
	attrs map[string]any
}

type attrSetKey struct{}

func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, attrSetKey{}, &attrSet{attrs: make(map[string]any)})
}

func setFrom(ctx context.Context) *attrSet {
	s, _ := ctx.Value(attrSetKey{}).(*attrSet)
	return s
}

// AddAttribute is a no-op on a context not prepared by ContextWithSlog.
func AddAttribute(ctx context.Context, key string, value any) {
	AddAttributes(ctx, map[string]any{key: value})
}

// AddAttributes merges attributes in. Nested maps merge key by key.
func AddAttributes(ctx context.Context, attributes map[string]any) {
	s := setFrom(ctx)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merge(s.attrs, attributes)
}

// AddTicket records the ticket a request acts on.
func AddTicket(ctx context.Context, ticketID int64) {
	AddAttribute(ctx, TicketIDKey, ticketID)
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

// GetAttribute returns the attribute when it is set and holds a T.
func GetAttribute[T any](ctx context.Context, key string) T {
	var zero T
	s := setFrom(ctx)
	if s == nil {
		return zero
	}
	s.mu.RLock()
	v, ok := s.attrs[key].(T)
	s.mu.RUnlock()
	if !ok {
		return zero
	}
	return v
}

// GetAttributes returns a copy of the request's attributes, or nil outside a
// request.
func GetAttributes(ctx context.Context) map[string]any {
	s := setFrom(ctx)
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAttrs(s.attrs)
}

func cloneAttrs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = cloneAttrs(sub)
		}
		out[k] = v
	}
	return out
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if cur, ok := dst[k].(map[string]any); ok {
			merge(cur, sub)
			continue
		}
		dst[k] = cloneAttrs(sub)
	}
}
