// Package vocapi is the REST client for the VOC backend status API.
package vocapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/pkg/cerr"
)

const (
	tracerName      = "github.com/vocautobot/vockanban/internal/vocapi"
	DefaultPageSize = 100
	maxPages        = 1000
	conflictMessage = "The ticket was changed by someone else. Reload the board and try again."
)

type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
	tracer     trace.Tracer
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// New returns a client for the backend rooted at baseURL, e.g.
// http://localhost:8080/api. Paths are resolved under baseURL + "/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pageSize:   DefaultPageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracer = otel.Tracer(tracerName)
	return c
}

// ChangeStatus issues PATCH /v1/vocs/{id}/status and returns the updated ticket.
func (c *Client) ChangeStatus(ctx context.Context, id int64, change voc.StatusChange) (*voc.Ticket, error) {
	var resp Response[*voc.Ticket]
	path := fmt.Sprintf("/v1/vocs/%d/status", id)
	if err := c.do(ctx, "ChangeStatus", http.MethodPatch, path, nil, change, &resp, attribute.Int64("voc.id", id), attribute.String("voc.status", string(change.Status))); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) GetTicket(ctx context.Context, id int64) (*voc.Ticket, error) {
	var resp Response[*voc.Ticket]
	if err := c.do(ctx, "GetTicket", http.MethodGet, fmt.Sprintf("/v1/vocs/%d", id), nil, nil, &resp, attribute.Int64("voc.id", id)); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, cerr.NewError(cerr.NotFound, "voc not found", nil)
	}
	return resp.Data, nil
}

// Page is one page of the ticket list.
type Page struct {
	Tickets       []*voc.Ticket
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int
}

// ListPage fetches a zero-based page, optionally filtered by status.
func (c *Client) ListPage(ctx context.Context, page, size int, statuses ...voc.Status) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	for _, s := range statuses {
		q.Add("status", string(s))
	}
	var resp Response[[]*voc.Ticket]
	if err := c.do(ctx, "ListTickets", http.MethodGet, "/v1/vocs", q, nil, &resp, attribute.Int("voc.page", page)); err != nil {
		return nil, err
	}
	return &Page{
		Tickets:       resp.Data,
		Page:          resp.Page,
		Size:          resp.Size,
		TotalElements: resp.TotalElements,
		TotalPages:    resp.TotalPages,
	}, nil
}

// ListTickets reads every page of the ticket list.
func (c *Client) ListTickets(ctx context.Context) ([]*voc.Ticket, error) {
	var all []*voc.Ticket
	for page := 0; page < maxPages; page++ {
		p, err := c.ListPage(ctx, page, c.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Tickets...)
		if len(p.Tickets) == 0 || page+1 >= p.TotalPages {
			break
		}
	}
	return all, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any, attrs ...attribute.KeyValue) (err error) {
	ctx, span := c.tracer.Start(ctx, "vocapi."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(append(attrs,
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)...)

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response of %s %s: %w", method, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return statusError(method, path, res.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return cerr.NewError(cerr.Internal, "unexpected response from the VOC backend",
			fmt.Errorf("failed to decode %s %s: %w", method, path, err))
	}
	if env, ok := out.(interface{ failed() *ErrorBody }); ok {
		if eb := env.failed(); eb != nil {
			return cerr.NewError(codeFromBody(eb.Code, cerr.Unknown), eb.Message,
				fmt.Errorf("%s %s: %s", method, path, eb.Code))
		}
	}
	return nil
}

func (r *Response[T]) failed() *ErrorBody {
	if r.Success {
		return nil
	}
	if r.Error != nil {
		return r.Error
	}
	return &ErrorBody{Code: CodeInternalError}
}

func statusError(method, path string, status int, data []byte) error {
	var env Response[json.RawMessage]
	var body ErrorBody
	if json.Unmarshal(data, &env) == nil && env.Error != nil {
		body = *env.Error
	}
	code := cerr.NewCodeFromHTTPStatus(status)
	msg := body.Message
	if code == cerr.Aborted && msg == "" {
		msg = conflictMessage
	}
	return cerr.NewError(code, msg, fmt.Errorf("%s %s: status %d %s", method, path, status, body.Code))
}

func codeFromBody(code string, fallback cerr.Code) cerr.Code {
	switch code {
	case CodeInvalidStatusTransition, CodeInvalidInput:
		return cerr.InvalidArgument
	case CodeVOCNotFound:
		return cerr.NotFound
	case CodeConflict:
		return cerr.Aborted
	case CodeUnauthorized:
		return cerr.Unauthenticated
	}
	return fallback
}
