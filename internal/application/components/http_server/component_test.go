package http_server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

func testComponent() *HTTPServerComponent {
	cfg := &HTTPServerConfig{Enabled: true, EnableHealth: true}
	setDefaults(cfg)
	return NewHTTPServerComponent(cfg, core.NewContainer())
}

func TestBuildHandlerServesHealth(t *testing.T) {
	hc := testComponent()
	h, err := hc.buildHandler()
	if err != nil {
		t.Fatalf("buildHandler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("healthz body = %q, want ok", rec.Body.String())
	}
}

func TestBuildHandlerMountsRegisteredRoutes(t *testing.T) {
	old := registrars
	defer func() { registrars = old }()
	registrars = nil
	RegisterRoutes(func(r chi.Router, c *core.Container) error {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("pong"))
		})
		return nil
	})

	hc := testComponent()
	h, err := hc.buildHandler()
	if err != nil {
		t.Fatalf("buildHandler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("ping = %d %q, want 200 pong", rec.Code, rec.Body.String())
	}
}

func TestAccessLogEchoesTraceparent(t *testing.T) {
	hc := testComponent()
	h := hc.accessLog(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	want := "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-01"
	if got := rec.Header().Get("traceparent"); got != want {
		t.Fatalf("traceparent = %q, want %q", got, want)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestAccessLogWithoutSpanSetsNoHeader(t *testing.T) {
	hc := testComponent()
	h := hc.accessLog(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := rec.Header().Get("traceparent"); got != "" {
		t.Fatalf("traceparent = %q, want empty", got)
	}
}
