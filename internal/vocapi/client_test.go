package vocapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/pkg/cerr"
)

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	})
	return tp, exporter
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ChangeStatus(t *testing.T) {
	_, exporter := setupTestTracer(t)

	var gotAuth string
	var gotBody voc.StatusChange
	r := chi.NewRouter()
	r.Patch("/api/v1/vocs/{id}/status", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
		id, _ := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		writeJSON(w, http.StatusOK, OK(&voc.Ticket{
			ID:        id,
			Status:    gotBody.Status,
			UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(srv.URL+"/api/", WithToken("secret"))
	tk, err := c.ChangeStatus(context.Background(), 12, voc.StatusChange{Status: voc.StatusRejected, RejectReason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), tk.ID)
	assert.Equal(t, voc.StatusRejected, tk.Status)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "spam", gotBody.RejectReason)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "vocapi.ChangeStatus", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.Int64("voc.id", 12))
	assert.Contains(t, spans[0].Attributes, attribute.Int("http.response.status_code", http.StatusOK))
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		wantCode cerr.Code
		wantMsg  string
	}{
		{
			name:     "invalid transition",
			status:   http.StatusBadRequest,
			body:     Fail(CodeInvalidStatusTransition, "cannot transition from RESOLVED to NEW"),
			wantCode: cerr.InvalidArgument,
			wantMsg:  "cannot transition from RESOLVED to NEW",
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     Fail(CodeVOCNotFound, "VOC not found: 9"),
			wantCode: cerr.NotFound,
			wantMsg:  "VOC not found: 9",
		},
		{
			name:     "conflict without message",
			status:   http.StatusConflict,
			body:     map[string]any{"success": false},
			wantCode: cerr.Aborted,
			wantMsg:  conflictMessage,
		},
		{
			name:     "unavailable with plain body",
			status:   http.StatusServiceUnavailable,
			body:     "down for maintenance",
			wantCode: cerr.Unavailable,
		},
		{
			name:     "success false on 200",
			status:   http.StatusOK,
			body:     Fail(CodeConflict, "modified concurrently"),
			wantCode: cerr.Aborted,
			wantMsg:  "modified concurrently",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, exporter := setupTestTracer(t)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL).ChangeStatus(context.Background(), 9, voc.StatusChange{Status: voc.StatusResolved})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, cerr.CodeOf(err))
			msg, ok := cerr.MessageOf(err)
			assert.Equal(t, tt.wantMsg != "", ok)
			assert.Equal(t, tt.wantMsg, msg)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status.Code)
		})
	}
}

func TestClient_TransportErrorHasNoBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).ChangeStatus(context.Background(), 1, voc.StatusChange{Status: voc.StatusResolved})
	require.Error(t, err)
	_, ok := cerr.MessageOf(err)
	assert.False(t, ok)
}

func TestClient_ListTicketsReadsEveryPage(t *testing.T) {
	tickets := make([]*voc.Ticket, 5)
	for i := range tickets {
		tickets[i] = &voc.Ticket{ID: int64(i + 1), Status: voc.StatusNew, Priority: voc.PriorityLow}
	}
	var pages []string
	r := chi.NewRouter()
	r.Get("/v1/vocs", func(w http.ResponseWriter, req *http.Request) {
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		size, _ := strconv.Atoi(req.URL.Query().Get("size"))
		pages = append(pages, req.URL.Query().Get("page"))
		start := min(page*size, len(tickets))
		end := min(start+size, len(tickets))
		writeJSON(w, http.StatusOK, Response[[]*voc.Ticket]{
			Success:       true,
			Data:          tickets[start:end],
			Page:          page,
			Size:          size,
			TotalElements: int64(len(tickets)),
			TotalPages:    (len(tickets) + size - 1) / size,
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	got, err := New(srv.URL, WithPageSize(2)).ListTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, int64(5), got[4].ID)
	assert.Equal(t, []string{"0", "1", "2"}, pages)
}

func TestClient_ListRejectsUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":1,"status":"ARCHIVED"}],"totalPages":1}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).ListTickets(context.Background())
	require.Error(t, err)
	assert.Equal(t, cerr.Internal, cerr.CodeOf(err))
}

func TestClient_GetTicketAndStatusFilter(t *testing.T) {
	var gotStatuses []string
	r := chi.NewRouter()
	r.Get("/v1/vocs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, OK(&voc.Ticket{ID: 3, Status: voc.StatusPending}))
	})
	r.Get("/v1/vocs", func(w http.ResponseWriter, req *http.Request) {
		gotStatuses = req.URL.Query()["status"]
		writeJSON(w, http.StatusOK, OK([]*voc.Ticket{}))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(srv.URL)
	tk, err := c.GetTicket(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, voc.StatusPending, tk.Status)

	_, err = c.ListPage(context.Background(), 0, 10, voc.StatusNew, voc.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW", "PENDING"}, gotStatuses)
}
