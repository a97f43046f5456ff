package clog

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Lead key sets for the text handler: the request line of an RPC and of a
// plain HTTP request.
var (
	ConnectLeadKeys = []string{"method", "stream_type", "procedure"}
	HTTPLeadKeys    = []string{"proto", "method", "path", "status"}
)

type TextHandlerConfig struct {
	Color    bool
	Level    *slog.Level
	LeadKeys []string
}

type TextHandlerOption func(*TextHandlerConfig)

func WithColor(c bool) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Color = c
	}
}

func WithLevel(level slog.Level) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Level = &level
	}
}

// WithLeadKeys sets the attributes printed, in order, before the message.
func WithLeadKeys(keys ...string) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.LeadKeys = keys
	}
}

// TextHandler writes a one-line summary per record for local development:
//
//	2026-03-01T09:00:00Z INFO POST /vockanban.v1.BoardService/Drop #42 NEW→IN_PROGRESS [COMMITTED] "transition committed"
//
// followed by the remaining attributes, one per line and sorted by key.
type TextHandler struct {
	cfg    TextHandlerConfig
	prefix string
	attrs  []slog.Attr
	mu     *sync.Mutex
	w      io.Writer
}

func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	cfg := TextHandlerConfig{Color: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TextHandler{cfg: cfg, mu: &sync.Mutex{}, w: w}
}

func (h *TextHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.cfg.Level != nil {
		minLevel = *h.cfg.Level
	}
	return l >= minLevel
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

var levelColors = map[slog.Level]color.Attribute{
	slog.LevelDebug: color.FgCyan,
	slog.LevelInfo:  color.FgBlue,
	slog.LevelWarn:  color.FgYellow,
	slog.LevelError: color.FgRed,
}

var outcomeColors = map[string]color.Attribute{
	"COMMITTED":   color.FgGreen,
	"ROLLED_BACK": color.FgRed,
	"IGNORED":     color.Faint,
}

func (h *TextHandler) Handle(_ context.Context, record slog.Record) error {
	kv := make(map[string]slog.Value, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		kv[a.Key] = a.Value.Resolve()
	}
	record.Attrs(func(a slog.Attr) bool {
		kv[h.prefix+a.Key] = a.Value.Resolve()
		return true
	})
	take := func(key string) (string, bool) {
		v, ok := kv[key]
		if ok {
			delete(kv, key)
		}
		return v.String(), ok
	}

	var buf bytes.Buffer
	h.paint(&buf, nil, record.Time.Format(time.RFC3339)+" ")
	h.paint(&buf, []color.Attribute{levelColors[record.Level]}, record.Level.String()+" ")

	for _, key := range h.cfg.LeadKeys {
		if v, ok := take(key); ok {
			h.paint(&buf, nil, v+" ")
		}
	}
	if id, ok := take(TicketIDKey); ok {
		h.paint(&buf, []color.Attribute{color.Bold}, "#"+id+" ")
	}
	if from, ok := kv[FromKey]; ok {
		if to, ok := kv[ToKey]; ok {
			delete(kv, FromKey)
			delete(kv, ToKey)
			h.paint(&buf, nil, from.String()+"→"+to.String()+" ")
		}
	}
	if outcome, ok := take(OutcomeKey); ok {
		h.paint(&buf, []color.Attribute{outcomeColors[outcome]}, "["+outcome+"] ")
	}
	if code, ok := take("code"); ok {
		h.paint(&buf, []color.Attribute{color.FgGreen}, "["+code+"] ")
	}
	h.paint(&buf, []color.Attribute{color.FgGreen}, `"`+record.Message+`"`)
	for _, key := range []string{ErrorAttributeKey, "error"} {
		if e, ok := take(key); ok {
			h.paint(&buf, []color.Attribute{color.FgRed}, ` "`+e+`"`)
		}
	}
	buf.WriteByte('\n')

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		buf.WriteString("    " + k + "=" + strings.ReplaceAll(kv[k].String(), "\n", "\n      ") + "\n")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *TextHandler) paint(buf *bytes.Buffer, attrs []color.Attribute, s string) {
	attrs = slices.DeleteFunc(attrs, func(a color.Attribute) bool { return a == 0 })
	if !h.cfg.Color || len(attrs) == 0 {
		buf.WriteString(s)
		return
	}
	c := color.New(attrs...)
	c.EnableColor()
	buf.WriteString(c.Sprint(s))
}
